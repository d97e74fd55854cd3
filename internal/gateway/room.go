package gateway

import (
	"context"
	"log/slog"

	"github.com/davidmehren/workadventure/internal/adminapi"
	"github.com/davidmehren/workadventure/internal/messages"
	"github.com/davidmehren/workadventure/internal/relay"
	"github.com/davidmehren/workadventure/internal/room"
)

// PusherRoom is the gateway view of a room: its sessions in this process
// and the dispatcher sharing their zone subscriptions.
type PusherRoom struct {
	ID         room.ID
	dispatcher *PositionDispatcher

	// Guarded by the server lock.
	sessions map[*Session]struct{}
	details  *adminapi.MapDetails
}

func newPusherRoom(id room.ID, zoneSize int32, maxCells int64, client *relay.Client, logger *slog.Logger) *PusherRoom {
	listen := func(ctx context.Context, req *messages.ZoneRequest) (zoneStream, error) {
		stream, err := client.ListenZone(ctx, req)
		if err != nil {
			return nil, err
		}
		return stream, nil
	}
	return &PusherRoom{
		ID:         id,
		dispatcher: NewPositionDispatcher(id.Raw, zoneSize, maxCells, listen, logger),
		sessions:   make(map[*Session]struct{}),
	}
}

// RoomStats describes one room for the debug endpoint.
type RoomStats struct {
	ID       string   `json:"id"`
	Sessions int      `json:"sessions"`
	Mirrors  int      `json:"mirrors"`
	MapURL   string   `json:"map_url,omitempty"`
	Policy   int      `json:"policy_type,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}
