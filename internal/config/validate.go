package config

import (
	"errors"
	"fmt"
	"slices"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks that all required fields are set and values are valid.
func (c *BackConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}
	if c.Server.Listen == "" {
		return errors.New("server.listen is required")
	}
	if err := c.Room.validate("room"); err != nil {
		return err
	}
	if c.TURN.Validity < 0 {
		return errors.New("turn.validity must be >= 0")
	}
	if c.Ban.CloseDelay < 0 {
		return errors.New("ban.close_delay must be >= 0")
	}
	if c.AdminAPI.URL != "" && c.MapDetailsFile != "" {
		return errors.New("admin_api.url and map_details_file are mutually exclusive")
	}

	if c.Audit.Enabled {
		if err := c.Audit.Database.validate("audit.database"); err != nil {
			return err
		}
		if c.Audit.BatchSize < 1 {
			return errors.New("audit.batch_size must be >= 1")
		}
		if c.Audit.BufferSize < 1 {
			return errors.New("audit.buffer_size must be >= 1")
		}
	}

	return c.Log.validate()
}

// Validate checks that all required fields are set and values are valid.
func (c *PusherConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}
	if c.Server.Listen == "" {
		return errors.New("server.listen is required")
	}

	if len(c.Shards.Endpoints) == 0 {
		return errors.New("shards.endpoints must list at least one endpoint")
	}
	for i, endpoint := range c.Shards.Endpoints {
		if endpoint == "" {
			return fmt.Errorf("shards.endpoints[%d] is empty", i)
		}
	}
	if c.Shards.Compression != "zstd" && c.Shards.Compression != "identity" {
		return fmt.Errorf("shards.compression must be zstd or identity, got %q", c.Shards.Compression)
	}

	if err := c.Room.validate("room"); err != nil {
		return err
	}
	if c.Batch.FlushInterval <= 0 {
		return errors.New("batch.flush_interval must be > 0")
	}
	if c.Batch.MaxPending < 1 {
		return errors.New("batch.max_pending must be >= 1")
	}
	if c.Load.CPUOverheatThreshold <= 0 {
		return errors.New("load.cpu_overheat_threshold must be > 0")
	}
	if c.Load.SampleInterval <= 0 {
		return errors.New("load.sample_interval must be > 0")
	}
	if c.Session.SendBuffer < 1 {
		return errors.New("session.send_buffer must be >= 1")
	}
	if c.Session.MaxViewportCells < 1 {
		return errors.New("session.max_viewport_cells must be >= 1")
	}

	return c.Log.validate()
}

func (r *RoomConfig) validate(prefix string) error {
	if r.ZoneSize < 1 {
		return fmt.Errorf("%s.zone_size must be >= 1", prefix)
	}
	if r.FormationDistance <= 0 {
		return fmt.Errorf("%s.formation_distance must be > 0", prefix)
	}
	if r.GroupRadius <= 0 {
		return fmt.Errorf("%s.group_radius must be > 0", prefix)
	}
	if r.MaxPerGroup < 0 {
		return fmt.Errorf("%s.max_per_group must be >= 0", prefix)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func (l *LogConfig) validate() error {
	if !slices.Contains(logLevels, l.Level) {
		return fmt.Errorf("log.level must be one of %v, got %q", logLevels, l.Level)
	}
	return nil
}
