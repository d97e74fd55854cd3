// Package back is the authoritative tier. It owns every room of its shard,
// serves the relay RoomManager service to gateways and turns room side
// effects into stream messages.
//
// Each room is driven by one actor goroutine; handlers submit closures to
// it and never touch room state directly. Outbound messages go through a
// per-stream queue drained by a writer goroutine, so the actor never
// blocks on the network.
package back
