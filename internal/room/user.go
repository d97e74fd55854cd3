package room

import (
	"slices"

	"github.com/davidmehren/workadventure/internal/geometry"
	"github.com/davidmehren/workadventure/internal/messages"
)

// Conn is the outbound side of a user's join stream.
type Conn interface {
	Send(msg *messages.ServerMessage)
	// Close ends the stream once queued messages are written.
	Close()
}

// User is one participant. Its exported fields never change after join.
type User struct {
	ID              int32
	UUID            string
	Name            string
	IPAddress       string
	CharacterLayers []messages.CharacterLayer
	Tags            []string

	conn     Conn
	position geometry.Position
	silent   bool
	group    *Group
	left     bool

	cell   geometry.Cell
	inGrid bool
}

func (u *User) Conn() Conn                  { return u.conn }
func (u *User) Position() geometry.Position { return u.position }
func (u *User) Silent() bool                { return u.silent }

// Group returns the user's group, or nil.
func (u *User) Group() *Group { return u.group }

// HasTag reports whether the user carries tag.
func (u *User) HasTag(tag string) bool { return slices.Contains(u.Tags, tag) }

func (u *User) Send(msg *messages.ServerMessage) {
	if u.conn != nil {
		u.conn.Send(msg)
	}
}

func (u *User) x() float64 { return float64(u.position.X) }
func (u *User) y() float64 { return float64(u.position.Y) }

func (u *User) gridCell(size int32) geometry.Cell {
	return geometry.CellOf(u.position.X, u.position.Y, size)
}

func (u *User) zoneState() (*geometry.Cell, *bool) { return &u.cell, &u.inGrid }
