// Package gateway is the browser-facing tier. It terminates websocket
// sessions, relays each one to the back shard owning its room and mirrors
// the zones a session can see.
//
// Zone events reach a browser through a per-session Batcher. Client
// messages go upstream unchanged, except moving position updates which
// are shed while the process is overheated.
package gateway
