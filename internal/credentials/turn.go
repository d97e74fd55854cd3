// Package credentials mints the short-lived secrets handed to browsers:
// TURN relay credentials for WebRTC and JWTs for Jitsi rooms.
package credentials

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/davidmehren/workadventure/internal/clock"
)

// DefaultTURNValidity is how long minted TURN credentials stay valid.
const DefaultTURNValidity = 4 * time.Hour

// TURN mints coturn "use-auth-secret" credentials.
type TURN struct {
	secret   []byte
	urls     []string
	validity time.Duration
	clock    clock.Clock
}

// NewTURN builds a minter. An empty secret disables credentials, a zero
// validity uses DefaultTURNValidity and a nil clock uses the wall clock.
func NewTURN(secret string, urls []string, validity time.Duration, clk clock.Clock) *TURN {
	if validity <= 0 {
		validity = DefaultTURNValidity
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &TURN{
		secret:   []byte(secret),
		urls:     urls,
		validity: validity,
		clock:    clk,
	}
}

// Enabled reports whether a shared secret is configured.
func (t *TURN) Enabled() bool {
	return t != nil && len(t.secret) > 0
}

// Credentials returns a username and password for the given peer id.
// Both are empty when no secret is configured.
func (t *TURN) Credentials(peerID int32) (username, password string) {
	if !t.Enabled() {
		return "", ""
	}
	expires := t.clock.Now().Add(t.validity).Unix()
	username = strconv.FormatInt(expires, 10) + ":" + strconv.FormatInt(int64(peerID), 10)

	mac := hmac.New(sha1.New, t.secret)
	mac.Write([]byte(username))
	password = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return username, password
}

// ICEServers renders the configured TURN URLs with the given credentials.
// It returns nil when no URL is configured.
func (t *TURN) ICEServers(username, password string) []webrtc.ICEServer {
	if t == nil || len(t.urls) == 0 {
		return nil
	}
	server := webrtc.ICEServer{URLs: t.urls}
	if username != "" {
		server.Username = username
		server.Credential = password
	}
	return []webrtc.ICEServer{server}
}
