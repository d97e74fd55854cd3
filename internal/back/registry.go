package back

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/davidmehren/workadventure/internal/adminapi"
	"github.com/davidmehren/workadventure/internal/room"
)

// Registry owns the live rooms of the shard. Concurrent creators of the
// same room share one creation.
type Registry struct {
	cfg      room.Config
	maps     adminapi.MapSource
	notifier func(id room.ID) room.Notifier
	logger   *slog.Logger

	mu     sync.Mutex
	actors map[string]*actor
	group  singleflight.Group
}

// NewRegistry creates a registry. maps may be nil, in which case private
// rooms are created without details.
func NewRegistry(cfg room.Config, maps adminapi.MapSource, notifier func(id room.ID) room.Notifier, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		maps:     maps,
		notifier: notifier,
		logger:   logger,
		actors:   make(map[string]*actor),
	}
}

// get returns the actor of a live room, or nil.
func (g *Registry) get(rawID string) *actor {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.actors[rawID]
}

// getOrCreate returns the actor of rawID, creating the room if needed.
func (g *Registry) getOrCreate(ctx context.Context, rawID string) (*actor, error) {
	if a := g.get(rawID); a != nil {
		return a, nil
	}

	v, err, _ := g.group.Do(rawID, func() (any, error) {
		if a := g.get(rawID); a != nil {
			return a, nil
		}

		id, err := room.ParseID(rawID)
		if err != nil {
			return nil, err
		}
		details, err := g.details(ctx, id)
		if err != nil {
			return nil, err
		}

		r := room.New(id, details, g.cfg, g.notifier(id), g.logger)
		a := newActor(r)

		g.mu.Lock()
		g.actors[rawID] = a
		g.mu.Unlock()

		g.logger.Info("room created", "room_id", rawID, "map_url", details.MapURL)
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*actor), nil
}

func (g *Registry) details(ctx context.Context, id room.ID) (room.Details, error) {
	if id.Anonymous {
		return room.Details{MapURL: id.MapURL}, nil
	}
	if g.maps == nil {
		return room.Details{}, nil
	}
	d, err := g.maps.FetchMapDetails(ctx, id.Organization, id.World, id.Room)
	if err != nil {
		return room.Details{}, fmt.Errorf("fetch map details: %w", err)
	}
	return room.Details{MapURL: d.MapURL, Policy: d.PolicyType, Tags: d.Tags}, nil
}

// join runs fn against rawID's room, retrying once if the room was being
// torn down at the same time.
func (g *Registry) join(ctx context.Context, rawID string, fn func(r *room.Room) error) (*actor, error) {
	for attempt := 0; ; attempt++ {
		a, err := g.getOrCreate(ctx, rawID)
		if err != nil {
			return nil, err
		}

		var joinErr error
		if err := a.exec(func(r *room.Room) { joinErr = fn(r) }); err != nil {
			joinErr = err
		}
		if joinErr == nil {
			return a, nil
		}
		if !errors.Is(joinErr, room.ErrRoomClosing) || attempt > 0 {
			return nil, joinErr
		}
	}
}

// release deletes the room of a once it has neither users nor admins.
func (g *Registry) release(a *actor) {
	g.mu.Lock()
	defer g.mu.Unlock()

	empty := false
	err := a.exec(func(r *room.Room) {
		if r.IsEmpty() {
			r.Close()
			empty = true
		}
	})
	if err != nil || !empty {
		return
	}

	id := a.room.ID().Raw
	if g.actors[id] == a {
		delete(g.actors, id)
	}
	a.shutdown()
	g.logger.Info("room deleted", "room_id", id)
}

// RoomStats is a summary of one room.
type RoomStats struct {
	ID        string `json:"id"`
	Users     int    `json:"users"`
	Groups    int    `json:"groups"`
	Listeners int    `json:"listeners"`
}

// Stats summarizes every live room.
func (g *Registry) Stats() []RoomStats {
	g.mu.Lock()
	actors := make([]*actor, 0, len(g.actors))
	for _, a := range g.actors {
		actors = append(actors, a)
	}
	g.mu.Unlock()

	out := make([]RoomStats, 0, len(actors))
	for _, a := range actors {
		var s RoomStats
		err := a.exec(func(r *room.Room) {
			s = RoomStats{
				ID:        r.ID().Raw,
				Users:     r.UserCount(),
				Groups:    len(r.Groups()),
				Listeners: r.ListenerCount(),
			}
		})
		if err == nil {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.actors)
}

// Close stops every room.
func (g *Registry) Close() {
	g.mu.Lock()
	actors := g.actors
	g.actors = make(map[string]*actor)
	g.mu.Unlock()

	for _, a := range actors {
		a.shutdown()
	}
}
