package messages

import "github.com/davidmehren/workadventure/internal/geometry"

// ZoneRequest subscribes to one cell of one room.
type ZoneRequest struct {
	RoomID string `cbor:"1,keyasint"`
	X      int32  `cbor:"2,keyasint"`
	Y      int32  `cbor:"3,keyasint"`
}

func (r *ZoneRequest) Cell() geometry.Cell { return geometry.Cell{X: r.X, Y: r.Y} }

func (r *ZoneRequest) Validate() error { return nil }

// UserJoinedZoneMessage announces a user entering a cell. FromZone is the
// cell it came from, nil for a fresh join or a snapshot.
type UserJoinedZoneMessage struct {
	UserID          int32             `cbor:"1,keyasint"`
	Name            string            `cbor:"2,keyasint"`
	CharacterLayers []CharacterLayer  `cbor:"3,keyasint,omitempty"`
	Position        geometry.Position `cbor:"4,keyasint"`
	FromZone        *geometry.Cell    `cbor:"5,keyasint,omitempty"`
}

// UserLeftZoneMessage announces a user leaving a cell. ToZone is nil when
// the user left the room.
type UserLeftZoneMessage struct {
	UserID int32          `cbor:"1,keyasint"`
	ToZone *geometry.Cell `cbor:"2,keyasint,omitempty"`
}

type GroupUpdateZoneMessage struct {
	GroupID   int32          `cbor:"1,keyasint"`
	Position  geometry.Point `cbor:"2,keyasint"`
	GroupSize int32          `cbor:"3,keyasint"`
	FromZone  *geometry.Cell `cbor:"4,keyasint,omitempty"`
}

type GroupLeftZoneMessage struct {
	GroupID int32          `cbor:"1,keyasint"`
	ToZone  *geometry.Cell `cbor:"2,keyasint,omitempty"`
}

// ZoneEventPayload is a variant of ZoneEvent.
type ZoneEventPayload interface{ isZoneEventPayload() }

func (*UserJoinedZoneMessage) isZoneEventPayload()  {}
func (*UserMovedMessage) isZoneEventPayload()       {}
func (*UserLeftZoneMessage) isZoneEventPayload()    {}
func (*GroupUpdateZoneMessage) isZoneEventPayload() {}
func (*GroupLeftZoneMessage) isZoneEventPayload()   {}

type ZoneEvent struct {
	UserJoinedZone  *UserJoinedZoneMessage  `cbor:"1,keyasint,omitempty"`
	UserMoved       *UserMovedMessage       `cbor:"2,keyasint,omitempty"`
	UserLeftZone    *UserLeftZoneMessage    `cbor:"3,keyasint,omitempty"`
	GroupUpdateZone *GroupUpdateZoneMessage `cbor:"4,keyasint,omitempty"`
	GroupLeftZone   *GroupLeftZoneMessage   `cbor:"5,keyasint,omitempty"`
}

func (m *ZoneEvent) Payload() (ZoneEventPayload, error) {
	p := picker[ZoneEventPayload]{envelope: "ZoneEvent"}
	p.add(m.UserJoinedZone != nil, m.UserJoinedZone)
	p.add(m.UserMoved != nil, m.UserMoved)
	p.add(m.UserLeftZone != nil, m.UserLeftZone)
	p.add(m.GroupUpdateZone != nil, m.GroupUpdateZone)
	p.add(m.GroupLeftZone != nil, m.GroupLeftZone)
	return p.result()
}

func WrapZoneEvent(p ZoneEventPayload) *ZoneEvent {
	m := &ZoneEvent{}
	switch v := p.(type) {
	case *UserJoinedZoneMessage:
		m.UserJoinedZone = v
	case *UserMovedMessage:
		m.UserMoved = v
	case *UserLeftZoneMessage:
		m.UserLeftZone = v
	case *GroupUpdateZoneMessage:
		m.GroupUpdateZone = v
	case *GroupLeftZoneMessage:
		m.GroupLeftZone = v
	}
	return m
}

// ZoneBatch is one frame of a zone stream.
type ZoneBatch struct {
	Events []*ZoneEvent `cbor:"1,keyasint"`
}

func (b *ZoneBatch) Validate() error {
	for _, ev := range b.Events {
		if _, err := ev.Payload(); err != nil {
			return err
		}
	}
	return nil
}
