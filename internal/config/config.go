package config

import (
	"log/slog"
	"strings"
	"time"
)

// BackConfig is the root configuration of an authoritative shard.
type BackConfig struct {
	Instance       InstanceConfig `yaml:"instance"`
	Server         ServerConfig   `yaml:"server"`
	Room           RoomConfig     `yaml:"room"`
	TURN           TURNConfig     `yaml:"turn"`
	Jitsi          JitsiConfig    `yaml:"jitsi"`
	Ban            BanConfig      `yaml:"ban"`
	AdminAPI       AdminAPIConfig `yaml:"admin_api"`
	MapDetailsFile string         `yaml:"map_details_file"`
	Audit          AuditConfig    `yaml:"audit"`
	Log            LogConfig      `yaml:"log"`
}

// PusherConfig is the root configuration of a gateway.
type PusherConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Server   ServerConfig   `yaml:"server"`
	Shards   ShardsConfig   `yaml:"shards"`
	Room     RoomConfig     `yaml:"room"`
	Batch    BatchConfig    `yaml:"batch"`
	Load     LoadConfig     `yaml:"load"`
	Session  SessionConfig  `yaml:"session"`
	Jitsi    JitsiConfig    `yaml:"jitsi"`
	Admin    AdminConfig    `yaml:"admin"`
	AdminAPI AdminAPIConfig `yaml:"admin_api"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies a process in logs and health output.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Listen            string        `yaml:"listen"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// RoomConfig holds the grid and clustering parameters.
type RoomConfig struct {
	ZoneSize          int     `yaml:"zone_size"`
	FormationDistance float64 `yaml:"formation_distance"`
	GroupRadius       float64 `yaml:"group_radius"`
	MaxPerGroup       int     `yaml:"max_per_group"`
}

// TURNConfig holds the coturn shared secret.
type TURNConfig struct {
	Secret   string        `yaml:"secret"`
	Validity time.Duration `yaml:"validity"`
	URLs     []string      `yaml:"urls"`
}

type JitsiConfig struct {
	URL    string `yaml:"url"`
	Issuer string `yaml:"issuer"`
	Secret string `yaml:"secret"`
}

type BanConfig struct {
	CloseDelay time.Duration `yaml:"close_delay"`
}

// AdminAPIConfig points at the optional administration service.
type AdminAPIConfig struct {
	URL        string        `yaml:"url"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// AuditConfig enables the membership audit log.
type AuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ShardsConfig lists the authoritative endpoints rooms are spread over.
type ShardsConfig struct {
	Endpoints   []string `yaml:"endpoints"`
	Compression string   `yaml:"compression"`
}

type BatchConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxPending    int           `yaml:"max_pending"`
}

type LoadConfig struct {
	CPUOverheatThreshold float64       `yaml:"cpu_overheat_threshold"`
	SampleInterval       time.Duration `yaml:"sample_interval"`
}

// SessionConfig holds per browser connection limits.
type SessionConfig struct {
	SendBuffer   int           `yaml:"send_buffer"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	ReadLimit    int64         `yaml:"read_limit"`
	// MaxViewportCells caps the zone cells one viewport may subscribe to.
	MaxViewportCells int64 `yaml:"max_viewport_cells"`
}

// AdminConfig protects the gateway admin endpoints.
type AdminConfig struct {
	Token string `yaml:"token"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name onto slog.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
