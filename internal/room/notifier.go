package room

import (
	"github.com/davidmehren/workadventure/internal/geometry"
	"github.com/davidmehren/workadventure/internal/messages"
)

// Notifier receives every side effect a room produces. Implementations
// must not call back into the room.
type Notifier interface {
	// Joined is called once the user is registered and placed on the grid.
	Joined(user *User, items []messages.ItemStateMessage)
	Left(user *User)
	// GroupStart asks user to open a peer connection to peer.
	GroupStart(user, peer *User, initiator bool)
	// GroupStop tells user to drop its peer connection to peer.
	GroupStop(user, peer *User)
	ZoneEnter(l Listener, e Entity, from *geometry.Cell)
	ZoneMove(l Listener, e Entity)
	ZoneLeave(l Listener, e Entity, to *geometry.Cell)
}

// Admin receives membership changes for a whole room.
type Admin interface {
	SendAdmin(msg *messages.ServerToAdmin)
}

// EnterEvent describes e to a listener that did not know it.
func EnterEvent(e Entity, from *geometry.Cell) *messages.ZoneEvent {
	switch v := e.(type) {
	case *User:
		return messages.WrapZoneEvent(&messages.UserJoinedZoneMessage{
			UserID:          v.ID,
			Name:            v.Name,
			CharacterLayers: v.CharacterLayers,
			Position:        v.position,
			FromZone:        from,
		})
	case *Group:
		return messages.WrapZoneEvent(&messages.GroupUpdateZoneMessage{
			GroupID:   v.id,
			Position:  v.Position(),
			GroupSize: int32(v.Size()),
			FromZone:  from,
		})
	}
	return nil
}

// MoveEvent describes the new position of e.
func MoveEvent(e Entity) *messages.ZoneEvent {
	switch v := e.(type) {
	case *User:
		return messages.WrapZoneEvent(&messages.UserMovedMessage{
			UserID:   v.ID,
			Position: v.position,
		})
	case *Group:
		return messages.WrapZoneEvent(&messages.GroupUpdateZoneMessage{
			GroupID:   v.id,
			Position:  v.Position(),
			GroupSize: int32(v.Size()),
		})
	}
	return nil
}

// LeaveEvent tells a listener to forget e.
func LeaveEvent(e Entity, to *geometry.Cell) *messages.ZoneEvent {
	switch v := e.(type) {
	case *User:
		return messages.WrapZoneEvent(&messages.UserLeftZoneMessage{UserID: v.ID, ToZone: to})
	case *Group:
		return messages.WrapZoneEvent(&messages.GroupLeftZoneMessage{GroupID: v.id, ToZone: to})
	}
	return nil
}

func memberJoin(u *User) *messages.ServerToAdmin {
	return messages.WrapServerToAdmin(&messages.MemberJoin{
		UUID:      u.UUID,
		Name:      u.Name,
		IPAddress: u.IPAddress,
	})
}

func memberLeave(u *User) *messages.ServerToAdmin {
	return messages.WrapServerToAdmin(&messages.MemberLeave{UUID: u.UUID})
}
