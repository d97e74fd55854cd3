package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/davidmehren/workadventure/internal/messages"
	"github.com/davidmehren/workadventure/internal/room"
)

// Admin websocket frame types.
const (
	AdminListen      = "Listen"
	AdminMemberJoin  = "MemberJoin"
	AdminMemberLeave = "MemberLeave"
)

// adminFrame is a JSON text frame of the admin websocket.
type adminFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type adminEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// handleAdminRooms relays the membership stream of one room to admin
// tooling. The first valid Listen frame picks the room.
func (s *Server) handleAdminRooms(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("admin websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var relayDone chan struct{}
	for {
		var frame adminFrame
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		if frame.Type != AdminListen {
			s.logger.Warn("unexpected admin frame", "type", frame.Type)
			continue
		}
		var roomID string
		if err := json.Unmarshal(frame.Data, &roomID); err != nil {
			s.logger.Warn("invalid admin listen frame", "error", err)
			continue
		}
		if _, err := room.ParseID(roomID); err != nil {
			s.logger.Warn("invalid admin listen frame", "error", err)
			continue
		}
		if relayDone != nil {
			s.logger.Warn("admin socket already listening", "room_id", roomID)
			continue
		}

		relayDone = make(chan struct{})
		go func() {
			defer close(relayDone)
			s.relayAdmin(ctx, conn, roomID)
		}()
	}

	cancel()
	if relayDone != nil {
		<-relayDone
	}
}

func (s *Server) relayAdmin(ctx context.Context, conn *websocket.Conn, roomID string) {
	logger := s.logger.With("room_id", roomID)

	stream := s.shards.ClientFor(roomID).AdminRoom(ctx)
	defer stream.CloseResponse()

	subscribe := &messages.AdminPusherToBack{SubscribeToRoom: &messages.SubscribeToRoomMessage{RoomID: roomID}}
	if err := stream.Send(subscribe); err != nil {
		logger.Warn("failed to open admin stream", "error", err)
		closeAdmin(conn, s.cfg.WriteTimeout, CloseErrorBack)
		return
	}
	logger.Info("admin listening")

	for {
		msg, err := stream.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			reason := CloseErrorBack
			if errors.Is(err, io.EOF) {
				reason = CloseLostBack
			}
			logger.Warn("admin stream ended", "error", err)
			closeAdmin(conn, s.cfg.WriteTimeout, reason)
			return
		}

		var ev adminEvent
		switch {
		case msg.MemberJoin != nil:
			ev = adminEvent{Type: AdminMemberJoin, Data: msg.MemberJoin}
		case msg.MemberLeave != nil:
			ev = adminEvent{Type: AdminMemberLeave, Data: msg.MemberLeave}
		default:
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			logger.Debug("admin socket write failed", "error", err)
			conn.Close()
			return
		}
	}
}

func closeAdmin(conn *websocket.Conn, timeout time.Duration, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
	conn.Close()
}

// requireAdmin checks the bearer token of admin requests.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			http.Error(w, "admin endpoints disabled", http.StatusNotFound)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleAdminMessage(w http.ResponseWriter, r *http.Request) {
	var msg messages.AdminMessage
	if !decodeAdminRequest(w, r, &msg) {
		return
	}
	notice := &messages.SendUserMessage{Type: messages.UserMessageAdmin, Message: msg.Message}
	if s.deliverLocal(msg.RoomID, msg.RecipientUUID, notice) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.shards.ClientFor(msg.RoomID).SendAdminMessage(r.Context(), &msg); err != nil {
		s.adminRelayFailed(w, "send admin message", msg.RoomID, err)
		return
	}
	s.adminRemote.Add(1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminBan(w http.ResponseWriter, r *http.Request) {
	var req messages.BanRequest
	if !decodeAdminRequest(w, r, &req) {
		return
	}
	notice := &messages.BanUserMessage{Type: messages.UserMessageBanned, Message: req.Message}
	if !s.deliverLocal(req.RoomID, req.RecipientUUID, notice) {
		if err := s.shards.ClientFor(req.RoomID).Ban(r.Context(), &req); err != nil {
			s.adminRelayFailed(w, "ban", req.RoomID, err)
			return
		}
		s.adminRemote.Add(1)
	}
	s.logger.Info("member banned", "room_id", req.RoomID, "user_uuid", req.RecipientUUID)
	w.WriteHeader(http.StatusNoContent)
}

// deliverLocal writes payload on the join stream of every session of
// userUUID this gateway holds in roomID. It reports false when none took
// it, so the caller falls back to the unary call routed by room.
func (s *Server) deliverLocal(roomID, userUUID string, payload messages.PusherToBackPayload) bool {
	delivered := false
	for _, sess := range s.sessionsOf(roomID, userUUID) {
		if err := sess.sendBack(messages.WrapPusherToBack(payload)); err != nil {
			sess.logger.Debug("admin notice not sent on join stream", "error", err)
			continue
		}
		delivered = true
	}
	if delivered {
		s.adminLocal.Add(1)
	}
	return delivered
}

func (s *Server) adminRelayFailed(w http.ResponseWriter, action, roomID string, err error) {
	s.logger.Warn("admin relay failed", "action", action, "room_id", roomID, "error", err)
	http.Error(w, "back server unavailable", http.StatusBadGateway)
}

// adminTarget is the part common to admin message and ban requests.
type adminTarget struct {
	RoomID        string `json:"roomId"`
	RecipientUUID string `json:"recipientUuid"`
}

// decodeAdminRequest reads the JSON body into v. It answers 400 and returns
// false when the body or its target is invalid.
func decodeAdminRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return false
	}
	var target adminTarget
	if err := json.Unmarshal(body, &target); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	if target.RecipientUUID == "" {
		http.Error(w, "recipientUuid is required", http.StatusBadRequest)
		return false
	}
	if _, err := room.ParseID(target.RoomID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}
