package back

import (
	"github.com/davidmehren/workadventure/internal/audit"
	"github.com/davidmehren/workadventure/internal/geometry"
	"github.com/davidmehren/workadventure/internal/messages"
	"github.com/davidmehren/workadventure/internal/room"
)

// notifier turns the side effects of one room into stream messages.
type notifier struct {
	svc    *Service
	roomID string
}

func (n *notifier) Joined(u *room.User, items []messages.ItemStateMessage) {
	u.Send(messages.WrapServer(&messages.RoomJoinedMessage{
		CurrentUserID: u.ID,
		Items:         items,
		Tags:          u.Tags,
	}))
	n.record(u, audit.KindJoin)
}

func (n *notifier) Left(u *room.User) {
	n.record(u, audit.KindLeave)
}

func (n *notifier) GroupStart(u, peer *room.User, initiator bool) {
	username, password := n.svc.turn.Credentials(peer.ID)
	u.Send(messages.WrapServer(&messages.WebRtcStartMessage{
		UserID:         peer.ID,
		Name:           peer.Name,
		Initiator:      initiator,
		WebRtcUser:     username,
		WebRtcPassword: password,
		ICEServers:     n.svc.turn.ICEServers(username, password),
	}))
}

func (n *notifier) GroupStop(u, peer *room.User) {
	u.Send(messages.WrapServer(&messages.WebRtcDisconnectMessage{UserID: peer.ID}))
}

func (n *notifier) ZoneEnter(l room.Listener, e room.Entity, from *geometry.Cell) {
	n.emit(l, room.EnterEvent(e, from))
}

func (n *notifier) ZoneMove(l room.Listener, e room.Entity) {
	n.emit(l, room.MoveEvent(e))
}

func (n *notifier) ZoneLeave(l room.Listener, e room.Entity, to *geometry.Cell) {
	n.emit(l, room.LeaveEvent(e, to))
}

func (n *notifier) emit(l room.Listener, ev *messages.ZoneEvent) {
	zl, ok := l.(*zoneListener)
	if !ok || ev == nil {
		return
	}
	zl.emit(ev)
}

func (n *notifier) record(u *room.User, kind audit.Kind) {
	if n.svc.audit == nil {
		return
	}
	n.svc.audit.Record(audit.Event{
		At:        n.svc.clock.Now(),
		Instance:  n.svc.instance,
		RoomID:    n.roomID,
		UserUUID:  u.UUID,
		Name:      u.Name,
		IPAddress: u.IPAddress,
		Kind:      kind,
	})
}

func sendUserMessage(msgType, message string) *messages.ServerMessage {
	return messages.WrapServer(&messages.SendUserMessage{Type: msgType, Message: message})
}
