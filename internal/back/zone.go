package back

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	"github.com/davidmehren/workadventure/internal/messages"
	"github.com/davidmehren/workadventure/internal/room"
)

// ListenZone streams one cell of a live room. The first batch is the
// snapshot of the cell; every later event travels in its own batch.
func (s *Service) ListenZone(ctx context.Context, req *connect.Request[messages.ZoneRequest], stream *connect.ServerStream[messages.ZoneBatch]) error {
	a := s.rooms.get(req.Msg.RoomID)
	if a == nil {
		s.logger.Warn("zone subscription for a room that is gone, race condition", "room_id", req.Msg.RoomID)
		return connect.NewError(connect.CodeNotFound, fmt.Errorf("room %q not found", req.Msg.RoomID))
	}

	cell := req.Msg.Cell()
	logger := s.logger.With("room_id", req.Msg.RoomID, "zone_x", cell.X, "zone_y", cell.Y)
	l := &zoneListener{newOutbound(stream.Send, logger)}

	err := a.exec(func(r *room.Room) {
		users, groups := r.AddZoneListener(l, cell)
		snapshot := make([]*messages.ZoneEvent, 0, len(users)+len(groups))
		for _, u := range users {
			snapshot = append(snapshot, room.EnterEvent(u, nil))
		}
		for _, g := range groups {
			snapshot = append(snapshot, room.EnterEvent(g, nil))
		}
		l.emit(snapshot...)
	})
	if err != nil {
		l.Close()
		l.wait()
		return connect.NewError(connect.CodeNotFound, fmt.Errorf("room %q not found", req.Msg.RoomID))
	}
	logger.Debug("zone listener added")

	select {
	case <-ctx.Done():
	case <-l.closed:
	case <-a.Done():
	}

	_ = a.exec(func(r *room.Room) { r.RemoveListener(l) })
	l.Close()
	l.wait()
	logger.Debug("zone listener removed")
	return nil
}
