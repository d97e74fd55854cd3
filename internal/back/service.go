package back

import (
	"log/slog"
	"time"

	"github.com/davidmehren/workadventure/internal/adminapi"
	"github.com/davidmehren/workadventure/internal/audit"
	"github.com/davidmehren/workadventure/internal/clock"
	"github.com/davidmehren/workadventure/internal/credentials"
	"github.com/davidmehren/workadventure/internal/messages"
	"github.com/davidmehren/workadventure/internal/relay"
	"github.com/davidmehren/workadventure/internal/room"
)

// DefaultBanCloseDelay is how long a banned user's stream stays open so
// the ban message reaches the browser.
const DefaultBanCloseDelay = 10 * time.Second

// Admin message types delivered as SendUserMessage.
const (
	MessageTypeAdmin  = messages.UserMessageAdmin
	MessageTypeBanned = messages.UserMessageBanned
)

// MemberRecorder receives every room membership change.
type MemberRecorder interface {
	Record(e audit.Event)
}

// Config configures a Service.
type Config struct {
	Instance      string
	Room          room.Config
	TURN          *credentials.TURN
	Jitsi         *credentials.Jitsi
	BanCloseDelay time.Duration
	// Maps resolves private rooms. Nil creates them without details.
	Maps adminapi.MapSource
	// Audit may be nil.
	Audit  MemberRecorder
	Clock  clock.Clock
	Logger *slog.Logger
}

// Service implements the relay RoomManager service.
type Service struct {
	instance string
	turn     *credentials.TURN
	jitsi    *credentials.Jitsi
	banDelay time.Duration
	audit    MemberRecorder
	clock    clock.Clock
	logger   *slog.Logger

	rooms *Registry
}

var _ relay.RoomManagerHandler = (*Service)(nil)

func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.BanCloseDelay <= 0 {
		cfg.BanCloseDelay = DefaultBanCloseDelay
	}

	s := &Service{
		instance: cfg.Instance,
		turn:     cfg.TURN,
		jitsi:    cfg.Jitsi,
		banDelay: cfg.BanCloseDelay,
		audit:    cfg.Audit,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
	s.rooms = NewRegistry(cfg.Room, cfg.Maps, s.notifierFor, cfg.Logger)
	return s
}

// Rooms returns the room registry.
func (s *Service) Rooms() *Registry { return s.rooms }

// Close stops every room.
func (s *Service) Close() { s.rooms.Close() }

func (s *Service) notifierFor(id room.ID) room.Notifier {
	return &notifier{svc: s, roomID: id.Raw}
}

// ban sends the ban notice, removes u at once and closes its stream after
// the configured delay. It must run on the room's actor.
func (s *Service) ban(r *room.Room, u *room.User, msgType, message string) {
	u.Send(sendUserMessage(msgType, message))
	r.Leave(u)

	conn := u.Conn()
	if conn == nil {
		return
	}
	s.clock.AfterFunc(s.banDelay, conn.Close)
	s.logger.Info("user banned",
		"room_id", r.ID().Raw,
		"user_uuid", u.UUID,
		"close_delay", s.banDelay,
	)
}
