package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Kind is the membership transition recorded by an Event.
type Kind string

const (
	KindJoin  Kind = "join"
	KindLeave Kind = "leave"
)

// Event is one row of room_member_events.
type Event struct {
	At        time.Time
	Instance  string
	RoomID    string
	UserUUID  string
	Name      string
	IPAddress string
	Kind      Kind
}

// Store persists batches of events.
type Store interface {
	Insert(ctx context.Context, events []Event) error
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS room_member_events (
	id          BIGSERIAL PRIMARY KEY,
	at          TIMESTAMPTZ NOT NULL,
	instance    TEXT NOT NULL,
	room_id     TEXT NOT NULL,
	user_uuid   TEXT NOT NULL,
	name        TEXT NOT NULL,
	ip_address  TEXT NOT NULL,
	kind        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS room_member_events_room_at ON room_member_events (room_id, at);
`

const insertSQL = `
INSERT INTO room_member_events (at, instance, room_id, user_uuid, name, ip_address, kind)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// PgStore writes events with pgx batches.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureSchema creates the events table if it is missing.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

func (s *PgStore) Insert(ctx context.Context, events []Event) error {
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(insertSQL, e.At, e.Instance, e.RoomID, e.UserUUID, e.Name, e.IPAddress, string(e.Kind))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert member event: %w", err)
		}
	}
	return nil
}

// Ping checks the database connection.
func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PgStore) Close() {
	s.pool.Close()
}
