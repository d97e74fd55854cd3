package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/davidmehren/workadventure/internal/adminapi"
	"github.com/davidmehren/workadventure/internal/clock"
	"github.com/davidmehren/workadventure/internal/credentials"
	"github.com/davidmehren/workadventure/internal/geometry"
	"github.com/davidmehren/workadventure/internal/messages"
	"github.com/davidmehren/workadventure/internal/relay"
	"github.com/davidmehren/workadventure/internal/room"
)

// Session defaults.
const (
	DefaultZoneSize     = 320
	DefaultSendBuffer   = 256
	DefaultWriteTimeout = 10 * time.Second
	DefaultPingInterval = 30 * time.Second
	DefaultReadLimit    = 64 * 1024

	DefaultMaxViewportCells = 256
)

// MemberSource resolves the tags and textures of a member.
type MemberSource interface {
	FetchMemberData(ctx context.Context, uuid string) (*adminapi.MemberData, error)
}

// LoadGauge reports whether position updates should be shed.
type LoadGauge interface {
	IsOverheated() bool
}

// Config configures a Server.
type Config struct {
	ZoneSize      int32
	FlushInterval time.Duration
	MaxPending    int
	SendBuffer    int
	WriteTimeout  time.Duration
	PingInterval  time.Duration
	ReadLimit     int64
	// MaxViewportCells caps the zone cells one viewport may cover.
	MaxViewportCells int64

	// AdminToken protects the admin endpoints. Empty disables them.
	AdminToken string

	Shards *relay.ClientRepository
	// Members and Maps are optional.
	Members MemberSource
	Maps    adminapi.MapSource
	Jitsi   *credentials.Jitsi
	Load    LoadGauge

	Clock  clock.Clock
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ZoneSize <= 0 {
		c.ZoneSize = DefaultZoneSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = DefaultReadLimit
	}
	if c.MaxViewportCells <= 0 {
		c.MaxViewportCells = DefaultMaxViewportCells
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Server is the gateway process state: browser sessions grouped by room.
type Server struct {
	cfg      Config
	shards   *relay.ClientRepository
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	rooms map[string]*PusherRoom

	sessions      atomic.Int64
	shedMoves     atomic.Int64
	slowConsumers atomic.Int64
	adminLocal    atomic.Int64
	adminRemote   atomic.Int64
}

func NewServer(cfg Config) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		cfg:    cfg,
		shards: cfg.Shards,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: cfg.Logger.With("component", "gateway"),
		rooms:  make(map[string]*PusherRoom),
	}
}

// Handler returns the browser and admin endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /room", s.handleRoom)
	mux.HandleFunc("GET /admin/rooms", s.requireAdmin(s.handleAdminRooms))
	mux.HandleFunc("POST /admin/message", s.requireAdmin(s.handleAdminMessage))
	mux.HandleFunc("POST /admin/ban", s.requireAdmin(s.handleAdminBan))
	return mux
}

// joinRequest is the join data carried by the upgrade query string.
type joinRequest struct {
	roomID   room.ID
	name     string
	layers   []string
	position geometry.Position
	viewport geometry.Viewport
	token    string
}

func parseJoinRequest(r *http.Request) (*joinRequest, error) {
	q := r.URL.Query()

	id, err := room.ParseID(q.Get("roomId"))
	if err != nil {
		return nil, err
	}

	var ints [6]int32
	for i, key := range []string{"x", "y", "top", "bottom", "left", "right"} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, errors.New("invalid " + key + " parameter")
		}
		ints[i] = int32(v)
	}

	return &joinRequest{
		roomID:   id,
		name:     q.Get("name"),
		layers:   q["characterLayers"],
		position: geometry.Position{X: ints[0], Y: ints[1], Direction: geometry.Down},
		viewport: geometry.Viewport{Top: ints[2], Bottom: ints[3], Left: ints[4], Right: ints[5]},
		token:    q.Get("token"),
	}, nil
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	req, err := parseJoinRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !req.viewport.Valid() || req.viewport.CellCount(s.cfg.ZoneSize) > s.cfg.MaxViewportCells {
		http.Error(w, "invalid viewport", http.StatusBadRequest)
		return
	}
	logger := s.logger.With("room_id", req.roomID.Raw)

	userUUID := uuid.NewString()
	var member *adminapi.MemberData
	if req.token != "" {
		parsed, err := uuid.Parse(req.token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userUUID = parsed.String()

		if s.cfg.Members != nil {
			member, err = s.cfg.Members.FetchMemberData(r.Context(), userUUID)
			switch {
			case adminapi.IsNotFound(err):
				http.Error(w, "unknown member", http.StatusForbidden)
				return
			case err != nil:
				logger.Warn("member lookup failed", "error", err)
				http.Error(w, "admin api unavailable", http.StatusServiceUnavailable)
				return
			}
		}
	}

	var details *adminapi.MapDetails
	if !req.roomID.Anonymous && s.cfg.Maps != nil {
		id := req.roomID
		details, err = s.cfg.Maps.FetchMapDetails(r.Context(), id.Organization, id.World, id.Room)
		switch {
		case errors.Is(err, adminapi.ErrMapNotFound), adminapi.IsNotFound(err):
			http.Error(w, "room not found", http.StatusNotFound)
			return
		case err != nil:
			logger.Warn("map lookup failed", "error", err)
			http.Error(w, "admin api unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	join := &messages.JoinRoomMessage{
		RoomID:    req.roomID.Raw,
		UserUUID:  userUUID,
		IPAddress: clientIP(r),
		Name:      req.name,
		Position:  req.position,
	}
	if member != nil {
		join.Tags = member.Tags
		join.CharacterLayers = adminapi.MergeCharacterLayers(req.layers, member.Textures)
	} else {
		join.CharacterLayers = adminapi.MergeCharacterLayers(req.layers, nil)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered.
		logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	sess := newSession(s, conn, join, req.viewport)
	s.enter(sess, req.roomID, details)

	sess.logger.Info("session opened", "name", join.Name)
	sess.serve(r.Context())
}

// enter attaches sess to the room of id, creating the room when needed.
func (s *Server) enter(sess *Session, id room.ID, details *adminapi.MapDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr, ok := s.rooms[id.Raw]
	if !ok {
		pr = newPusherRoom(id, s.cfg.ZoneSize, s.cfg.MaxViewportCells, s.shards.ClientFor(id.Raw), s.logger)
		s.rooms[id.Raw] = pr
		s.logger.Debug("room opened", "room_id", id.Raw)
	}
	if details != nil {
		pr.details = details
	}
	pr.sessions[sess] = struct{}{}
	sess.room = pr
	s.sessions.Add(1)
}

// leave detaches sess from its room and closes the room when it was the
// last session.
func (s *Server) leave(sess *Session) {
	pr := sess.room

	s.mu.Lock()
	if _, ok := pr.sessions[sess]; !ok {
		s.mu.Unlock()
		return
	}
	delete(pr.sessions, sess)
	pr.dispatcher.RemoveSession(sess)
	empty := len(pr.sessions) == 0
	if empty {
		delete(s.rooms, pr.ID.Raw)
	}
	s.mu.Unlock()
	s.sessions.Add(-1)

	if empty {
		pr.dispatcher.Close()
		s.logger.Debug("room closed", "room_id", pr.ID.Raw)
	}
}

// sessionsOf returns the sessions of userUUID in roomID held by this
// gateway.
func (s *Server) sessionsOf(roomID, userUUID string) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	var out []*Session
	for sess := range pr.sessions {
		if sess.join.UserUUID == userUUID {
			out = append(out, sess)
		}
	}
	return out
}

func (s *Server) overheated() bool {
	return s.cfg.Load != nil && s.cfg.Load.IsOverheated()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Stats summarizes the gateway for health checks.
type Stats struct {
	Rooms         int   `json:"rooms"`
	Sessions      int64 `json:"sessions"`
	Mirrors       int   `json:"mirrors"`
	ShardsInUse   int   `json:"shards_in_use"`
	ShedMoves     int64 `json:"shed_moves"`
	SlowConsumers int64 `json:"slow_consumers"`
	AdminLocal    int64 `json:"admin_local"`
	AdminRemote   int64 `json:"admin_remote"`
	Overheated    bool  `json:"overheated"`
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	rooms := len(s.rooms)
	mirrors := 0
	for _, pr := range s.rooms {
		mirrors += pr.dispatcher.Mirrors()
	}
	s.mu.Unlock()

	return Stats{
		Rooms:         rooms,
		Sessions:      s.sessions.Load(),
		Mirrors:       mirrors,
		ShardsInUse:   s.shards.Connected(),
		ShedMoves:     s.shedMoves.Load(),
		SlowConsumers: s.slowConsumers.Load(),
		AdminLocal:    s.adminLocal.Load(),
		AdminRemote:   s.adminRemote.Load(),
		Overheated:    s.overheated(),
	}
}

// Rooms describes every open room.
func (s *Server) Rooms() []RoomStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RoomStats, 0, len(s.rooms))
	for id, pr := range s.rooms {
		st := RoomStats{
			ID:       id,
			Sessions: len(pr.sessions),
			Mirrors:  pr.dispatcher.Mirrors(),
			MapURL:   pr.ID.MapURL,
		}
		if pr.details != nil {
			st.MapURL = pr.details.MapURL
			st.Policy = pr.details.PolicyType
			st.Tags = pr.details.Tags
		}
		out = append(out, st)
	}
	return out
}

// Shutdown closes every browser session with 1001 and waits for them to
// finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	var all []*Session
	for _, pr := range s.rooms {
		for sess := range pr.sessions {
			all = append(all, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range all {
		sess.closeWith(websocket.CloseGoingAway, "Server is shutting down")
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for s.sessions.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
