package credentials

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/davidmehren/workadventure/internal/clock"
)

// ErrJitsiSecretMissing is returned when a token is requested but no
// signing secret is configured.
var ErrJitsiSecretMissing = errors.New("you must set jitsi.secret to generate JWT tokens for Jitsi")

const jitsiTokenLifetime = 24 * time.Hour

// Jitsi signs room tokens for a Jitsi deployment with prosody JWT auth.
type Jitsi struct {
	url    string
	issuer string
	secret []byte
	clock  clock.Clock
}

func NewJitsi(url, issuer, secret string, clk clock.Clock) *Jitsi {
	if clk == nil {
		clk = clock.Real()
	}
	return &Jitsi{url: url, issuer: issuer, secret: []byte(secret), clock: clk}
}

// Enabled reports whether tokens can be signed.
func (j *Jitsi) Enabled() bool {
	return j != nil && len(j.secret) > 0
}

// Token signs an HS256 token for room. The holder is a moderator when its
// tags contain tag.
func (j *Jitsi) Token(room, tag string, userTags []string) (string, error) {
	if !j.Enabled() {
		return "", ErrJitsiSecretMissing
	}

	now := j.clock.Now()
	claims := jwt.MapClaims{
		"aud":       "jitsi",
		"iss":       j.issuer,
		"sub":       j.url,
		"room":      room,
		"moderator": tag != "" && slices.Contains(userTags, tag),
		"iat":       now.Unix(),
		"exp":       now.Add(jitsiTokenLifetime).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign jitsi token: %w", err)
	}
	return signed, nil
}
