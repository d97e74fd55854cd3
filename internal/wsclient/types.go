package wsclient

import (
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/davidmehren/workadventure/internal/geometry"
)

var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// Config configures a Client.
type Config struct {
	URL          string        // Gateway room endpoint, e.g. ws://localhost:8080/room
	PingTimeout  time.Duration // Max time without a ping before the connection is stale
	WriteTimeout time.Duration
	BufferSize   int // Decoded message channel size
}

func DefaultConfig() Config {
	return Config{
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1024,
	}
}

// JoinParams is the join request carried by the upgrade query string.
type JoinParams struct {
	RoomID          string
	Name            string
	CharacterLayers []string
	X, Y            int32
	Viewport        geometry.Viewport
	Token           string
}

// URL appends the join parameters to base.
func (p JoinParams) URL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("roomId", p.RoomID)
	q.Set("name", p.Name)
	for _, layer := range p.CharacterLayers {
		q.Add("characterLayers", layer)
	}
	q.Set("x", strconv.Itoa(int(p.X)))
	q.Set("y", strconv.Itoa(int(p.Y)))
	q.Set("top", strconv.Itoa(int(p.Viewport.Top)))
	q.Set("bottom", strconv.Itoa(int(p.Viewport.Bottom)))
	q.Set("left", strconv.Itoa(int(p.Viewport.Left)))
	q.Set("right", strconv.Itoa(int(p.Viewport.Right)))
	if p.Token != "" {
		q.Set("token", p.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
