// Package room holds the authoritative state of one map instance: its
// users, the proximity groups they form, item states and the zone grid
// that decides which remote listeners hear about each change.
//
// A Room is not safe for concurrent use. Its owner must serialize every
// call, which the back service does by running each room on its own
// goroutine. Side effects leave the room through the Notifier, the Admin
// handles and each user's Conn.
package room
