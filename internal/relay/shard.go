package relay

import (
	"encoding/binary"
	"log/slog"
	"sync"

	"connectrpc.com/connect"
	"github.com/zeebo/blake3"
)

// ShardIndex maps a room id onto one of n shards. The first four bytes of
// the BLAKE3 digest are read big-endian and reduced modulo n.
func ShardIndex(roomID string, n int) int {
	if n <= 0 {
		panic("relay: ShardIndex with no shards")
	}
	sum := blake3.Sum256([]byte(roomID))
	return int(binary.BigEndian.Uint32(sum[:4]) % uint32(n))
}

// ClientRepository hands out one lazily created Client per shard.
type ClientRepository struct {
	endpoints   []string
	compression string
	httpClient  connect.HTTPClient
	logger      *slog.Logger

	mu      sync.Mutex
	clients map[int]*Client
}

func NewClientRepository(endpoints []string, compression string, httpClient connect.HTTPClient, logger *slog.Logger) *ClientRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientRepository{
		endpoints:   endpoints,
		compression: compression,
		httpClient:  httpClient,
		logger:      logger,
		clients:     make(map[int]*Client),
	}
}

// ClientFor returns the client of the shard owning roomID.
func (r *ClientRepository) ClientFor(roomID string) *Client {
	idx := ShardIndex(roomID, len(r.endpoints))

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[idx]; ok {
		return c
	}
	c := NewClient(r.httpClient, r.endpoints[idx], r.compression)
	r.clients[idx] = c
	r.logger.Debug("created shard client", "shard", idx, "endpoint", r.endpoints[idx])
	return c
}

// Endpoints returns the configured shard endpoints.
func (r *ClientRepository) Endpoints() []string {
	return append([]string(nil), r.endpoints...)
}

// Connected returns the number of shard clients created so far.
func (r *ClientRepository) Connected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
