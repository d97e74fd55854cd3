package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBackListen           = ":50051"
	DefaultPusherListen         = ":8080"
	DefaultReadHeaderTimeout    = 10 * time.Second
	DefaultShutdownTimeout      = 10 * time.Second
	DefaultZoneSize             = 320
	DefaultFormationDistance    = 64
	DefaultGroupRadius          = 48
	DefaultTURNValidity         = 4 * time.Hour
	DefaultBanCloseDelay        = 10 * time.Second
	DefaultAdminAPITimeout      = 10 * time.Second
	DefaultAdminAPIMaxRetries   = 3
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultAuditBatchSize       = 500
	DefaultAuditFlushInterval   = time.Second
	DefaultAuditBufferSize      = 10000
	DefaultCompression          = "zstd"
	DefaultBatchFlushInterval   = 100 * time.Millisecond
	DefaultBatchMaxPending      = 500
	DefaultCPUOverheatThreshold = 80
	DefaultLoadSampleInterval   = 100 * time.Millisecond
	DefaultSendBuffer           = 256
	DefaultWriteTimeout         = 10 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultReadLimit            = 64 * 1024
	DefaultMaxViewportCells     = 256
	DefaultLogLevel             = "info"
)

func (c *BackConfig) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultBackListen
	}
	applyServerDefaults(&c.Server)
	applyRoomDefaults(&c.Room)

	if c.TURN.Validity == 0 {
		c.TURN.Validity = DefaultTURNValidity
	}
	if c.Ban.CloseDelay == 0 {
		c.Ban.CloseDelay = DefaultBanCloseDelay
	}
	applyAdminAPIDefaults(&c.AdminAPI)

	// Audit defaults
	applyDBDefaults(&c.Audit.Database)
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = DefaultAuditBatchSize
	}
	if c.Audit.FlushInterval == 0 {
		c.Audit.FlushInterval = DefaultAuditFlushInterval
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = DefaultAuditBufferSize
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func (c *PusherConfig) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultPusherListen
	}
	applyServerDefaults(&c.Server)
	applyRoomDefaults(&c.Room)

	if c.Shards.Compression == "" {
		c.Shards.Compression = DefaultCompression
	}

	// Batching and load shedding
	if c.Batch.FlushInterval == 0 {
		c.Batch.FlushInterval = DefaultBatchFlushInterval
	}
	if c.Batch.MaxPending == 0 {
		c.Batch.MaxPending = DefaultBatchMaxPending
	}
	if c.Load.CPUOverheatThreshold == 0 {
		c.Load.CPUOverheatThreshold = DefaultCPUOverheatThreshold
	}
	if c.Load.SampleInterval == 0 {
		c.Load.SampleInterval = DefaultLoadSampleInterval
	}

	// Session defaults
	if c.Session.SendBuffer == 0 {
		c.Session.SendBuffer = DefaultSendBuffer
	}
	if c.Session.WriteTimeout == 0 {
		c.Session.WriteTimeout = DefaultWriteTimeout
	}
	if c.Session.PingInterval == 0 {
		c.Session.PingInterval = DefaultPingInterval
	}
	if c.Session.ReadLimit == 0 {
		c.Session.ReadLimit = DefaultReadLimit
	}
	if c.Session.MaxViewportCells == 0 {
		c.Session.MaxViewportCells = DefaultMaxViewportCells
	}

	applyAdminAPIDefaults(&c.AdminAPI)
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.ReadHeaderTimeout == 0 {
		s.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyRoomDefaults(r *RoomConfig) {
	if r.ZoneSize == 0 {
		r.ZoneSize = DefaultZoneSize
	}
	if r.FormationDistance == 0 {
		r.FormationDistance = DefaultFormationDistance
	}
	if r.GroupRadius == 0 {
		r.GroupRadius = DefaultGroupRadius
	}
}

func applyAdminAPIDefaults(a *AdminAPIConfig) {
	if a.Timeout == 0 {
		a.Timeout = DefaultAdminAPITimeout
	}
	if a.MaxRetries == 0 {
		a.MaxRetries = DefaultAdminAPIMaxRetries
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
