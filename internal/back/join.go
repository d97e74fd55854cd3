package back

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/davidmehren/workadventure/internal/adminapi"
	"github.com/davidmehren/workadventure/internal/messages"
	"github.com/davidmehren/workadventure/internal/room"
)

// Protocol violations reported on a join stream.
var (
	errFirstNotJoin = errors.New("The first message sent MUST be of type JoinRoomMessage")
	errJoinTwice    = errors.New("Cannot call JoinRoomMessage twice!")
	errUnhandled    = errors.New("Unhandled message type")
	errInvalid      = errors.New("Invalid message")
)

// JoinRoom serves one user for the lifetime of its stream.
func (s *Service) JoinRoom(ctx context.Context, stream *connect.BidiStream[messages.PusherToBack, messages.ServerMessage]) error {
	first, err := stream.Receive()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if invalidMessage(err) {
			return s.reject(stream, connect.CodeInvalidArgument, errInvalid)
		}
		return err
	}

	join := first.JoinRoom
	if join == nil {
		return s.reject(stream, connect.CodeInvalidArgument, errFirstNotJoin)
	}
	if _, err := uuid.Parse(join.UserUUID); err != nil {
		return s.reject(stream, connect.CodeInvalidArgument, fmt.Errorf("invalid user uuid %q", join.UserUUID))
	}

	logger := s.logger.With("room_id", join.RoomID, "user_uuid", join.UserUUID)
	conn := userConn{newOutbound(stream.Send, logger)}

	var user *room.User
	a, err := s.rooms.join(ctx, join.RoomID, func(r *room.Room) error {
		u, err := r.Join(conn, join)
		user = u
		return err
	})
	if err != nil {
		conn.Close()
		conn.wait()
		logger.Warn("join rejected", "error", err)
		return s.reject(stream, joinErrorCode(err), err)
	}
	logger = logger.With("user_id", user.ID)

	defer func() {
		_ = a.exec(func(r *room.Room) { r.Leave(user) })
		s.rooms.release(a)
		conn.Close()
		conn.wait()
		logger.Debug("join stream closed")
	}()

	incoming := make(chan *messages.PusherToBack)
	recvErr := make(chan error, 1)
	go func() {
		for {
			msg, err := stream.Receive()
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case incoming <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-conn.closed:
			return nil
		case <-a.Done():
			return nil
		case err := <-recvErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			if invalidMessage(err) {
				conn.Send(messages.Error(errInvalid.Error()))
				logger.Warn("protocol violation", "error", err)
				return connect.NewError(connect.CodeInvalidArgument, errInvalid)
			}
			logger.Debug("join stream receive failed", "error", err)
			return err
		case msg := <-incoming:
			if err := s.handle(a, user, conn, msg, logger); err != nil {
				conn.Send(messages.Error(err.Error()))
				logger.Warn("protocol violation", "error", err)
				return connect.NewError(connect.CodeInvalidArgument, err)
			}
		}
	}
}

func joinErrorCode(err error) connect.Code {
	switch {
	case errors.Is(err, room.ErrInvalidRoomID):
		return connect.CodeInvalidArgument
	case errors.Is(err, room.ErrRoomClosing):
		return connect.CodeFailedPrecondition
	case errors.Is(err, adminapi.ErrMapNotFound), adminapi.IsNotFound(err):
		return connect.CodeNotFound
	}
	return connect.CodeUnavailable
}

// reject writes an Error frame and ends the stream with code.
// invalidMessage reports whether a Receive error comes from a frame that
// did not decode or failed envelope validation.
func invalidMessage(err error) bool {
	return connect.CodeOf(err) == connect.CodeInvalidArgument
}

func (s *Service) reject(stream *connect.BidiStream[messages.PusherToBack, messages.ServerMessage], code connect.Code, err error) error {
	if sendErr := stream.Send(messages.Error(err.Error())); sendErr != nil {
		s.logger.Debug("failed to send error frame", "error", sendErr)
	}
	return connect.NewError(code, err)
}

// handle applies one message of an established join stream. A returned
// error ends the stream.
func (s *Service) handle(a *actor, u *room.User, conn userConn, msg *messages.PusherToBack, logger *slog.Logger) error {
	payload, err := msg.Payload()
	if err != nil {
		return errUnhandled
	}

	switch p := payload.(type) {
	case *messages.JoinRoomMessage:
		return errJoinTwice

	case *messages.UserMovesMessage:
		return s.onActor(a, func(r *room.Room) { r.UpdatePosition(u, p.Position) })

	case *messages.SilentMessage:
		return s.onActor(a, func(r *room.Room) { r.SetSilent(u, p.Silent) })

	case *messages.ItemEventMessage:
		state, err := room.ParseItemState(p.StateJSON)
		if err != nil {
			logger.Warn("invalid item state", "item_id", p.ItemID, "error", err)
			conn.Send(messages.Error(fmt.Sprintf("Invalid state for item %d: %v", p.ItemID, err)))
			return nil
		}
		return s.onActor(a, func(r *room.Room) {
			r.Broadcast(messages.Batch(messages.WrapSub(p)))
			r.SetItemState(p.ItemID, state)
		})

	case *messages.WebRtcSignalToServer:
		return s.onActor(a, func(r *room.Room) {
			receiver := r.User(p.ReceiverID)
			if receiver == nil {
				logger.Warn("webrtc signal to a user that left, race condition", "receiver_id", p.ReceiverID)
				return
			}
			username, password := s.turn.Credentials(u.ID)
			receiver.Send(messages.WrapServer(&messages.WebRtcSignalToClient{
				UserID:         u.ID,
				Signal:         p.Signal,
				WebRtcUser:     username,
				WebRtcPassword: password,
			}))
		})

	case *messages.WebRtcScreenSharingSignalToServer:
		return s.onActor(a, func(r *room.Room) {
			receiver := r.User(p.ReceiverID)
			if receiver == nil {
				logger.Warn("screen sharing signal to a user that left, race condition", "receiver_id", p.ReceiverID)
				return
			}
			username, password := s.turn.Credentials(u.ID)
			receiver.Send(messages.WrapServer(&messages.WebRtcScreenSharingSignalToClient{
				UserID:         u.ID,
				Signal:         p.Signal,
				WebRtcUser:     username,
				WebRtcPassword: password,
			}))
		})

	case *messages.PlayGlobalMessage:
		return s.onActor(a, func(r *room.Room) { r.Broadcast(messages.WrapServer(p)) })

	case *messages.QueryJitsiJwtMessage:
		token, err := s.jitsi.Token(p.JitsiRoom, p.Tag, u.Tags)
		if err != nil {
			logger.Warn("cannot sign jitsi token", "error", err)
			conn.Send(messages.Error(err.Error()))
			return nil
		}
		conn.Send(messages.WrapServer(&messages.JitsiJwtMessage{Jwt: token, JitsiRoom: p.JitsiRoom}))
		return nil

	case *messages.SendUserMessage:
		conn.Send(sendUserMessage(p.Type, p.Message))
		return nil

	case *messages.BanUserMessage:
		return s.onActor(a, func(r *room.Room) { s.ban(r, u, p.Type, p.Message) })
	}
	return errUnhandled
}

// onActor runs fn on the room. A room that stopped meanwhile is not a
// protocol error; the stream ends through the actor's done channel.
func (s *Service) onActor(a *actor, fn func(r *room.Room)) error {
	_ = a.exec(fn)
	return nil
}
