// Package wsclient is a browser-side client of the gateway websocket.
//
// It dials /room with the join parameters in the query string, encodes
// ClientMessage frames and decodes ServerMessage frames. Tests and the
// wabot load generator use it in place of a real browser.
package wsclient
