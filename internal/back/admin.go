package back

import (
	"context"
	"errors"
	"io"

	"connectrpc.com/connect"

	"github.com/davidmehren/workadventure/internal/messages"
	"github.com/davidmehren/workadventure/internal/room"
)

var errFirstNotSubscribe = errors.New("The first message sent MUST be of type subscribeToRoom")

// AdminRoom streams the membership changes of one room. The room is
// created if needed and stays alive while the stream is open.
func (s *Service) AdminRoom(ctx context.Context, stream *connect.BidiStream[messages.AdminPusherToBack, messages.ServerToAdmin]) error {
	first, err := stream.Receive()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if first.SubscribeToRoom == nil {
		return connect.NewError(connect.CodeInvalidArgument, errFirstNotSubscribe)
	}

	roomID := first.SubscribeToRoom.RoomID
	logger := s.logger.With("room_id", roomID)
	admin := &adminConn{newOutbound(stream.Send, logger)}

	a, err := s.rooms.join(ctx, roomID, func(r *room.Room) error {
		if r.Closing() {
			return room.ErrRoomClosing
		}
		r.AdminJoin(admin)
		return nil
	})
	if err != nil {
		admin.Close()
		admin.wait()
		logger.Warn("admin subscription rejected", "error", err)
		return connect.NewError(joinErrorCode(err), err)
	}
	logger.Info("admin subscribed")

	// Later messages carry nothing; reading only detects the end of the
	// stream.
	ended := make(chan struct{})
	go func() {
		defer close(ended)
		for {
			if _, err := stream.Receive(); err != nil {
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-ended:
	case <-admin.closed:
	case <-a.Done():
	}

	_ = a.exec(func(r *room.Room) { r.AdminLeave(admin) })
	s.rooms.release(a)
	admin.Close()
	admin.wait()
	logger.Info("admin unsubscribed")
	return nil
}

// SendAdminMessage delivers an administrator's text to one user.
func (s *Service) SendAdminMessage(ctx context.Context, req *connect.Request[messages.AdminMessage]) (*connect.Response[messages.Empty], error) {
	msg := req.Msg
	s.withRecipient(msg.RoomID, msg.RecipientUUID, func(r *room.Room, u *room.User) {
		u.Send(sendUserMessage(MessageTypeAdmin, msg.Message))
	})
	return connect.NewResponse(&messages.Empty{}), nil
}

// Ban removes a user from its room and closes its stream after a delay.
func (s *Service) Ban(ctx context.Context, req *connect.Request[messages.BanRequest]) (*connect.Response[messages.Empty], error) {
	msg := req.Msg
	s.withRecipient(msg.RoomID, msg.RecipientUUID, func(r *room.Room, u *room.User) {
		s.ban(r, u, MessageTypeBanned, msg.Message)
	})
	return connect.NewResponse(&messages.Empty{}), nil
}

// withRecipient runs fn on the room of a user identified by uuid. Missing
// rooms and users are logged and ignored.
func (s *Service) withRecipient(roomID, userUUID string, fn func(r *room.Room, u *room.User)) {
	logger := s.logger.With("room_id", roomID, "user_uuid", userUUID)

	a := s.rooms.get(roomID)
	if a == nil {
		logger.Warn("admin action for a room that is gone, race condition")
		return
	}
	err := a.exec(func(r *room.Room) {
		u := r.UserByUUID(userUUID)
		if u == nil {
			logger.Warn("admin action for a user that left, race condition")
			return
		}
		fn(r, u)
	})
	if err != nil {
		logger.Warn("admin action for a room that is closing", "error", err)
	}
}
