package relay

import (
	"context"
	"fmt"
	"strings"

	"connectrpc.com/connect"

	"github.com/davidmehren/workadventure/internal/messages"
)

// Client calls one back shard.
type Client struct {
	baseURL          string
	joinRoom         *connect.Client[messages.PusherToBack, messages.ServerMessage]
	listenZone       *connect.Client[messages.ZoneRequest, messages.ZoneBatch]
	adminRoom        *connect.Client[messages.AdminPusherToBack, messages.ServerToAdmin]
	sendAdminMessage *connect.Client[messages.AdminMessage, messages.Empty]
	ban              *connect.Client[messages.BanRequest, messages.Empty]
}

// NewClient creates a client for the shard at baseURL. compression is
// CompressionZstd or CompressionIdentity.
func NewClient(httpClient connect.HTTPClient, baseURL, compression string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	base := []connect.ClientOption{connect.WithCodec(Codec{}), connect.WithAcceptCompression(CompressionZstd, newZstdDecompressor, newZstdCompressor)}
	if compression == CompressionZstd {
		base = append(base, connect.WithSendCompression(CompressionZstd))
	}
	opts = append(base, opts...)

	return &Client{
		baseURL:          baseURL,
		joinRoom:         connect.NewClient[messages.PusherToBack, messages.ServerMessage](httpClient, baseURL+JoinRoomProcedure, opts...),
		listenZone:       connect.NewClient[messages.ZoneRequest, messages.ZoneBatch](httpClient, baseURL+ListenZoneProcedure, opts...),
		adminRoom:        connect.NewClient[messages.AdminPusherToBack, messages.ServerToAdmin](httpClient, baseURL+AdminRoomProcedure, opts...),
		sendAdminMessage: connect.NewClient[messages.AdminMessage, messages.Empty](httpClient, baseURL+SendAdminMessageProcedure, opts...),
		ban:              connect.NewClient[messages.BanRequest, messages.Empty](httpClient, baseURL+BanProcedure, opts...),
	}
}

// BaseURL returns the shard endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// JoinRoom opens a user stream. The first message sent must carry a
// JoinRoomMessage.
func (c *Client) JoinRoom(ctx context.Context) *connect.BidiStreamForClient[messages.PusherToBack, messages.ServerMessage] {
	return c.joinRoom.CallBidiStream(ctx)
}

// ListenZone subscribes to one cell. The first batch is the snapshot.
func (c *Client) ListenZone(ctx context.Context, req *messages.ZoneRequest) (*connect.ServerStreamForClient[messages.ZoneBatch], error) {
	return c.listenZone.CallServerStream(ctx, connect.NewRequest(req))
}

// AdminRoom opens an admin stream. The first message sent must subscribe
// to a room.
func (c *Client) AdminRoom(ctx context.Context) *connect.BidiStreamForClient[messages.AdminPusherToBack, messages.ServerToAdmin] {
	return c.adminRoom.CallBidiStream(ctx)
}

func (c *Client) SendAdminMessage(ctx context.Context, msg *messages.AdminMessage) error {
	if _, err := c.sendAdminMessage.CallUnary(ctx, connect.NewRequest(msg)); err != nil {
		return fmt.Errorf("send admin message: %w", err)
	}
	return nil
}

func (c *Client) Ban(ctx context.Context, req *messages.BanRequest) error {
	if _, err := c.ban.CallUnary(ctx, connect.NewRequest(req)); err != nil {
		return fmt.Errorf("ban user: %w", err)
	}
	return nil
}
