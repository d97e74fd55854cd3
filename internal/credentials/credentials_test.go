package credentials

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/davidmehren/workadventure/internal/clock"
)

var epoch = time.Unix(1_700_000_000, 0)

func TestTURN_Credentials(t *testing.T) {
	turn := NewTURN("s3cret", nil, 0, clock.Fake(epoch))

	username, password := turn.Credentials(42)

	wantUser := "1700014400:42"
	if username != wantUser {
		t.Errorf("username = %q, want %q", username, wantUser)
	}

	mac := hmac.New(sha1.New, []byte("s3cret"))
	mac.Write([]byte(wantUser))
	wantPass := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if password != wantPass {
		t.Errorf("password = %q, want %q", password, wantPass)
	}
}

func TestTURN_Disabled(t *testing.T) {
	turn := NewTURN("", []string{"turn:example.org"}, time.Hour, clock.Fake(epoch))
	if turn.Enabled() {
		t.Error("Enabled() = true with an empty secret")
	}
	username, password := turn.Credentials(1)
	if username != "" || password != "" {
		t.Errorf("Credentials() = %q, %q, want empty", username, password)
	}

	servers := turn.ICEServers("", "")
	if len(servers) != 1 {
		t.Fatalf("len(ICEServers) = %d, want 1", len(servers))
	}
	if servers[0].Username != "" {
		t.Errorf("Username = %q, want empty", servers[0].Username)
	}
}

func TestTURN_ICEServers(t *testing.T) {
	turn := NewTURN("x", []string{"turn:a:3478", "turns:a:5349"}, time.Minute, clock.Fake(epoch))
	servers := turn.ICEServers("u", "p")
	if len(servers) != 1 {
		t.Fatalf("len(ICEServers) = %d, want 1", len(servers))
	}
	if len(servers[0].URLs) != 2 {
		t.Errorf("URLs = %v, want 2 entries", servers[0].URLs)
	}
	if servers[0].Username != "u" || servers[0].Credential != "p" {
		t.Errorf("server = %+v, want username u and credential p", servers[0])
	}

	if NewTURN("x", nil, 0, nil).ICEServers("u", "p") != nil {
		t.Error("ICEServers without URLs should be nil")
	}
}

func TestJitsi_Token(t *testing.T) {
	j := NewJitsi("meet.example.org", "workadventure", "k3y", clock.Fake(epoch))

	signed, err := j.Token("lobby", "admin", []string{"member", "admin"})
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return []byte("k3y"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return epoch }))
	if err != nil {
		t.Fatalf("ParseWithClaims() error = %v", err)
	}

	checks := map[string]any{
		"aud":       "jitsi",
		"iss":       "workadventure",
		"sub":       "meet.example.org",
		"room":      "lobby",
		"moderator": true,
	}
	for key, want := range checks {
		if claims[key] != want {
			t.Errorf("claims[%q] = %v, want %v", key, claims[key], want)
		}
	}

	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)
	if exp-iat != (24 * time.Hour).Seconds() {
		t.Errorf("exp - iat = %v, want 24h", exp-iat)
	}
}

func TestJitsi_NotModerator(t *testing.T) {
	j := NewJitsi("meet", "iss", "k", clock.Fake(epoch))
	signed, err := j.Token("room", "admin", []string{"member"})
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	payload := strings.Split(signed, ".")[1]
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !strings.Contains(string(raw), `"moderator":false`) {
		t.Errorf("payload = %s, want moderator false", raw)
	}
}

func TestJitsi_MissingSecret(t *testing.T) {
	j := NewJitsi("meet", "iss", "", nil)
	if _, err := j.Token("room", "", nil); !errors.Is(err, ErrJitsiSecretMissing) {
		t.Errorf("Token() error = %v, want ErrJitsiSecretMissing", err)
	}
}
