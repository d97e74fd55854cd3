package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/davidmehren/workadventure/internal/adminapi"
	"github.com/davidmehren/workadventure/internal/audit"
	"github.com/davidmehren/workadventure/internal/back"
	"github.com/davidmehren/workadventure/internal/clock"
	"github.com/davidmehren/workadventure/internal/config"
	"github.com/davidmehren/workadventure/internal/credentials"
	"github.com/davidmehren/workadventure/internal/database"
	"github.com/davidmehren/workadventure/internal/relay"
	"github.com/davidmehren/workadventure/internal/room"
	"github.com/davidmehren/workadventure/internal/version"
)

func main() {
	configPath := pflag.String("config", "configs/back.local.yaml", "path to config file")
	pflag.Parse()

	cfg, err := config.LoadAndValidate[config.BackConfig](*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting back",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	maps, err := mapSource(cfg, logger)
	if err != nil {
		logger.Error("failed to load map details", "error", err)
		os.Exit(1)
	}

	var (
		store  *audit.PgStore
		writer *audit.Writer
	)
	if cfg.Audit.Enabled {
		logger.Info("connecting to audit database",
			"host", cfg.Audit.Database.Host,
			"port", cfg.Audit.Database.Port,
			"database", cfg.Audit.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Audit.Database, "workadventure-back")
		if err != nil {
			logger.Error("failed to connect to audit database", "error", err)
			os.Exit(1)
		}
		store = audit.NewPgStore(pool)
		defer store.Close()

		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to create audit schema", "error", err)
			os.Exit(1)
		}

		wcfg := audit.DefaultWriterConfig()
		wcfg.BatchSize = cfg.Audit.BatchSize
		wcfg.FlushInterval = cfg.Audit.FlushInterval
		wcfg.BufferSize = cfg.Audit.BufferSize
		writer = audit.NewWriter(wcfg, store, clock.Real(), logger)
		if err := writer.Start(ctx); err != nil {
			logger.Error("failed to start audit writer", "error", err)
			os.Exit(1)
		}
		logger.Info("audit log enabled")
	}

	svcCfg := back.Config{
		Instance: cfg.Instance.ID,
		Room: room.Config{
			ZoneSize:          int32(cfg.Room.ZoneSize),
			FormationDistance: cfg.Room.FormationDistance,
			GroupRadius:       cfg.Room.GroupRadius,
			MaxPerGroup:       cfg.Room.MaxPerGroup,
		},
		TURN:          credentials.NewTURN(cfg.TURN.Secret, cfg.TURN.URLs, cfg.TURN.Validity, nil),
		Jitsi:         credentials.NewJitsi(cfg.Jitsi.URL, cfg.Jitsi.Issuer, cfg.Jitsi.Secret, nil),
		BanCloseDelay: cfg.Ban.CloseDelay,
		Maps:          maps,
		Logger:        logger,
	}
	if writer != nil {
		svcCfg.Audit = writer
	}
	svc := back.NewService(svcCfg)

	mux := http.NewServeMux()
	path, handler := relay.NewHandler(svc)
	mux.Handle(path, handler)
	mux.Handle("/", createHealthHandler(svc, store, writer))

	server := relay.NewServer(cfg.Server.Listen, mux, cfg.Server.ReadHeaderTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Listen)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		svc.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
	}

	if writer != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := writer.Stop(stopCtx); err != nil {
			logger.Warn("audit writer stop", "error", err)
		}
	}

	logger.Info("back stopped")
}

// mapSource prefers the admin API over a local map details file. Both may
// be unset, in which case private rooms carry no details.
func mapSource(cfg *config.BackConfig, logger *slog.Logger) (adminapi.MapSource, error) {
	switch {
	case cfg.AdminAPI.URL != "":
		logger.Info("resolving private rooms through admin api", "url", cfg.AdminAPI.URL)
		return adminapi.NewClient(
			cfg.AdminAPI.URL,
			cfg.AdminAPI.Token,
			adminapi.WithLogger(logger),
			adminapi.WithTimeout(cfg.AdminAPI.Timeout),
			adminapi.WithRetries(cfg.AdminAPI.MaxRetries, time.Second),
		), nil
	case cfg.MapDetailsFile != "":
		src, err := adminapi.LoadFileSource(cfg.MapDetailsFile)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded map details file", "path", cfg.MapDetailsFile, "maps", src.Len())
		return src, nil
	}
	return nil, nil
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(svc *back.Service, store *audit.PgStore, writer *audit.Writer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		users := 0
		rooms := svc.Rooms().Stats()
		for _, rs := range rooms {
			users += rs.Users
		}
		health.Components["rooms"] = len(rooms)
		health.Components["users"] = users

		if store != nil {
			if err := store.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["audit_db"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["audit_db"] = "connected"
			}
			st := writer.Stats()
			health.Components["audit_writer"] = map[string]int64{
				"inserts": st.Inserts,
				"flushes": st.Flushes,
				"errors":  st.Errors,
				"dropped": st.Dropped,
			}
			if st.Dropped > 0 {
				health.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/rooms", func(w http.ResponseWriter, r *http.Request) {
		rooms := svc.Rooms().Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count": len(rooms),
			"rooms": rooms,
		})
	})

	return mux
}
