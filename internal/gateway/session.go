package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/davidmehren/workadventure/internal/codec"
	"github.com/davidmehren/workadventure/internal/geometry"
	"github.com/davidmehren/workadventure/internal/messages"
)

// ReasonSlowConsumer is sent with 1013 when a session cannot keep up.
const ReasonSlowConsumer = "Too many pending messages"

// errNoJoinStream is returned when a message is sent before the join stream
// is open or after it was closed.
var errNoJoinStream = errors.New("join stream not open")

// backStream is the join stream of a session on its shard.
type backStream interface {
	Send(*messages.PusherToBack) error
	Receive() (*messages.ServerMessage, error)
	CloseRequest() error
	CloseResponse() error
}

// Session is one browser connection. It owns a join stream on the shard of
// its room, a batcher for zone events and a bounded outbound queue.
type Session struct {
	ID     ulid.ULID
	server *Server
	room   *PusherRoom
	conn   *websocket.Conn
	join   *messages.JoinRoomMessage
	logger *slog.Logger

	batcher *Batcher
	out     chan []byte

	userID atomic.Int32
	joined atomic.Bool

	// mu orders viewport changes with the subscriptions they produce.
	mu       sync.Mutex
	viewport geometry.Viewport

	backMu        sync.Mutex
	back          backStream
	backClosed    bool
	disconnecting atomic.Bool

	closeOnce   sync.Once
	closing     chan struct{}
	closeCode   int
	closeReason string
	writerDone  chan struct{}
}

func newSession(s *Server, conn *websocket.Conn, join *messages.JoinRoomMessage, vp geometry.Viewport) *Session {
	id := ulid.Make()
	sess := &Session{
		ID:         id,
		server:     s,
		conn:       conn,
		join:       join,
		logger:     s.logger.With("session_id", id.String(), "room_id", join.RoomID, "user_uuid", join.UserUUID),
		out:        make(chan []byte, s.cfg.SendBuffer),
		viewport:   vp,
		closing:    make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	sess.batcher = NewBatcher(s.cfg.FlushInterval, s.cfg.MaxPending, s.cfg.Clock, func(subs []*messages.SubMessage) {
		sess.send(messages.Batch(subs...))
	})
	return sess
}

func (s *Session) ownUserID() int32 { return s.userID.Load() }

// emit queues a zone-derived message for the next batch frame.
func (s *Session) emit(sub *messages.SubMessage) { s.batcher.Add(sub) }

// send queues msg without blocking. A full queue closes the session.
func (s *Session) send(msg *messages.ServerMessage) {
	data, err := codec.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to encode server message", "error", err)
		return
	}
	select {
	case s.out <- data:
	default:
		s.server.slowConsumers.Add(1)
		s.logger.Warn("outbound queue full, closing session", "capacity", cap(s.out))
		s.closeWith(websocket.CloseTryAgainLater, ReasonSlowConsumer)
	}
}

// closeWith asks the writer to close the socket with code. Only the first
// call counts.
func (s *Session) closeWith(code int, reason string) {
	s.closeOnce.Do(func() {
		s.closeCode = code
		s.closeReason = reason
		close(s.closing)
	})
}

// serve runs the session until the browser or the shard goes away.
func (s *Session) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.writeLoop()
	defer s.cleanup(cancel)

	client := s.server.shards.ClientFor(s.join.RoomID)
	back := client.JoinRoom(ctx)
	if err := back.Send(messages.WrapPusherToBack(s.join)); err != nil {
		s.logger.Warn("failed to open join stream", "error", err)
		s.closeWith(websocket.CloseInternalServerErr, CloseErrorBack)
		return
	}
	s.backMu.Lock()
	s.back = back
	s.backMu.Unlock()

	go s.backLoop(back)
	s.readLoop()
}

func (s *Session) cleanup(cancel context.CancelFunc) {
	s.disconnecting.Store(true)
	s.server.leave(s)

	s.backMu.Lock()
	if s.back != nil {
		if err := s.back.CloseRequest(); err != nil {
			s.logger.Debug("failed to close join stream", "error", err)
		}
	}
	s.backClosed = true
	s.backMu.Unlock()
	cancel()
	s.closeWith(websocket.CloseNormalClosure, "")
	<-s.writerDone
	s.conn.Close()
	s.logger.Info("session closed", "frames", s.batcher.Frames())
}

// sendBack writes msg on the join stream. It is safe for concurrent use.
func (s *Session) sendBack(msg *messages.PusherToBack) error {
	s.backMu.Lock()
	defer s.backMu.Unlock()

	if s.back == nil || s.backClosed {
		return errNoJoinStream
	}
	return s.back.Send(msg)
}

// backLoop forwards the join stream to the browser.
func (s *Session) backLoop(back backStream) {
	defer back.CloseResponse()

	for {
		msg, err := back.Receive()
		if err != nil {
			if s.disconnecting.Load() {
				return
			}
			if errors.Is(err, io.EOF) {
				s.logger.Warn("join stream ended")
				s.closeWith(websocket.CloseInternalServerErr, CloseLostBack)
			} else {
				s.logger.Warn("join stream failed", "error", err)
				s.closeWith(websocket.CloseInternalServerErr, CloseErrorBack)
			}
			return
		}

		s.send(msg)

		if msg.RoomJoined != nil {
			s.userID.Store(msg.RoomJoined.CurrentUserID)
			s.mu.Lock()
			s.joined.Store(true)
			s.watch(s.viewport)
			s.mu.Unlock()
		}
	}
}

func (s *Session) readLoop() {
	s.conn.SetReadLimit(s.server.cfg.ReadLimit)
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("browser connection lost", "error", err)
			}
			return
		}
		s.extendReadDeadline()

		var msg messages.ClientMessage
		if err := codec.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("invalid client frame", "error", err)
			if s.logger.Enabled(context.Background(), slog.LevelDebug) {
				if diag, derr := codec.Diagnose(data); derr == nil {
					s.logger.Debug("invalid client frame content", "cbor", diag)
				}
			}
			s.violation("Invalid message")
			return
		}
		payload, err := msg.Payload()
		if err != nil {
			s.logger.Warn("invalid client message", "error", err)
			s.violation("Unhandled message type")
			return
		}
		s.handle(payload)
	}
}

// violation reports a protocol error to the browser and closes the
// connection once the error frame is written.
func (s *Session) violation(reason string) {
	s.send(messages.Error(reason))
	s.closeWith(websocket.ClosePolicyViolation, reason)
}

func (s *Session) extendReadDeadline() {
	s.conn.SetReadDeadline(time.Now().Add(3 * s.server.cfg.PingInterval))
}

func (s *Session) handle(payload messages.ClientPayload) {
	switch p := payload.(type) {
	case *messages.ViewportMessage:
		s.setViewport(p.Viewport)
		return

	case *messages.UserMovesMessage:
		if p.Position.Moving && s.server.overheated() {
			s.server.shedMoves.Add(1)
			return
		}
		s.forward(payload)
		s.setViewport(p.Viewport)
		return

	case *messages.QueryJitsiJwtMessage:
		if s.server.cfg.Jitsi.Enabled() {
			token, err := s.server.cfg.Jitsi.Token(p.JitsiRoom, p.Tag, s.join.Tags)
			if err != nil {
				s.logger.Error("failed to sign jitsi token", "error", err)
				s.send(messages.Error(err.Error()))
				return
			}
			s.send(messages.WrapServer(&messages.JitsiJwtMessage{Jwt: token, JitsiRoom: p.JitsiRoom}))
			return
		}
	}
	s.forward(payload)
}

func (s *Session) forward(payload messages.ClientPayload) {
	msg := messages.ForwardClient(payload)
	if msg == nil {
		return
	}
	if err := s.sendBack(msg); err != nil {
		// The join stream reports the failure on Receive.
		s.logger.Debug("failed to forward message", "error", err)
	}
}

func (s *Session) setViewport(vp geometry.Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewport = vp
	if s.joined.Load() {
		s.watch(vp)
	}
}

// watch subscribes to the cells of vp. A session that started to
// disconnect meanwhile is unsubscribed again. The caller holds s.mu.
func (s *Session) watch(vp geometry.Viewport) {
	s.room.dispatcher.SetViewport(s, vp)
	if s.disconnecting.Load() {
		s.room.dispatcher.RemoveSession(s)
	}
}

// writeLoop is the only writer of the socket.
func (s *Session) writeLoop() {
	defer close(s.writerDone)

	ping := s.server.cfg.Clock.NewTicker(s.server.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case data := <-s.out:
			if err := s.write(data); err != nil {
				s.logger.Debug("write failed", "error", err)
				s.conn.Close()
				return
			}

		case <-ping.C:
			deadline := time.Now().Add(s.server.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
			}

		case <-s.closing:
			s.batcher.Close()
			if s.closeCode != websocket.CloseTryAgainLater {
				s.drain()
			}
			deadline := time.Now().Add(s.server.cfg.WriteTimeout)
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(s.closeCode, s.closeReason), deadline)
			s.conn.Close()
			return
		}
	}
}

// drain writes what is already queued.
func (s *Session) drain() {
	for {
		select {
		case data := <-s.out:
			if err := s.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) write(data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.server.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}
