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
	"github.com/davidmehren/workadventure/internal/config"
	"github.com/davidmehren/workadventure/internal/cputrack"
	"github.com/davidmehren/workadventure/internal/credentials"
	"github.com/davidmehren/workadventure/internal/gateway"
	"github.com/davidmehren/workadventure/internal/relay"
	"github.com/davidmehren/workadventure/internal/version"
)

func main() {
	configPath := pflag.String("config", "configs/pusher.local.yaml", "path to config file")
	pflag.Parse()

	cfg, err := config.LoadAndValidate[config.PusherConfig](*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting pusher",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
		"shards", len(cfg.Shards.Endpoints),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := cputrack.New(cputrack.Config{
		Threshold: cfg.Load.CPUOverheatThreshold,
		Interval:  cfg.Load.SampleInterval,
		Logger:    logger,
	})
	tracker.Start(ctx)
	defer tracker.Stop()

	shards := relay.NewClientRepository(cfg.Shards.Endpoints, cfg.Shards.Compression, relay.NewHTTPClient(), logger)

	gwCfg := gateway.Config{
		ZoneSize:         int32(cfg.Room.ZoneSize),
		FlushInterval:    cfg.Batch.FlushInterval,
		MaxPending:       cfg.Batch.MaxPending,
		SendBuffer:       cfg.Session.SendBuffer,
		WriteTimeout:     cfg.Session.WriteTimeout,
		PingInterval:     cfg.Session.PingInterval,
		ReadLimit:        cfg.Session.ReadLimit,
		MaxViewportCells: cfg.Session.MaxViewportCells,
		AdminToken:       cfg.Admin.Token,
		Shards:           shards,
		Jitsi:            credentials.NewJitsi(cfg.Jitsi.URL, cfg.Jitsi.Issuer, cfg.Jitsi.Secret, nil),
		Load:             tracker,
		Logger:           logger,
	}
	if cfg.AdminAPI.URL != "" {
		api := adminapi.NewClient(
			cfg.AdminAPI.URL,
			cfg.AdminAPI.Token,
			adminapi.WithLogger(logger),
			adminapi.WithTimeout(cfg.AdminAPI.Timeout),
			adminapi.WithRetries(cfg.AdminAPI.MaxRetries, time.Second),
		)
		gwCfg.Members = api
		gwCfg.Maps = api
		logger.Info("admin api enabled", "url", cfg.AdminAPI.URL)
	}
	gw := gateway.NewServer(gwCfg)

	mux := http.NewServeMux()
	mux.Handle("/", gw.Handler())
	health := createHealthHandler(gw, tracker)
	mux.Handle("/health", health)
	mux.Handle("/debug/", health)

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

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

		// Hijacked websockets are not tracked by http.Server.
		if err := gw.Shutdown(shutdownCtx); err != nil {
			logger.Warn("sessions still open at shutdown", "error", err)
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
	}
	logger.Info("pusher stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(gw *gateway.Server, tracker *cputrack.Tracker) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		st := gw.Stats()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status: "healthy",
			Components: map[string]any{
				"gateway": st,
				"cpu": map[string]any{
					"load":       tracker.Load(),
					"overheated": st.Overheated,
				},
			},
		}
		if st.Overheated {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/rooms", func(w http.ResponseWriter, r *http.Request) {
		rooms := gw.Rooms()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count": len(rooms),
			"rooms": rooms,
		})
	})

	return mux
}
