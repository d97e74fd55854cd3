// Package relay is the gateway-to-back transport: a Connect RPC service
// carried over cleartext HTTP/2 with CBOR-encoded envelopes.
//
// The service has no .proto definition. Handlers and clients are built
// directly from the envelope types in package messages, and every decoded
// envelope is validated before it reaches a handler.
package relay
