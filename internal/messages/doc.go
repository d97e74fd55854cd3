// Package messages defines every envelope that crosses a process boundary:
// browser to gateway, gateway to back, back to gateway, and the admin
// channel.
//
// Each envelope is a closed sum type. It is a struct of optional pointer
// fields of which exactly one must be set. Payload returns that one field
// as a typed interface value so that handlers can switch on it, and fails
// with ErrNoVariant or ErrManyVariants otherwise. The matching Wrap
// function builds an envelope from a payload.
//
// Field keys are CBOR integers; see internal/codec for the encoder setup.
package messages
