// wabot walks simulated players around a room through a pusher and reports
// what they receive.
// Usage: go run ./cmd/wabot --url ws://localhost:8080/room --bots 20
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/davidmehren/workadventure/internal/geometry"
	"github.com/davidmehren/workadventure/internal/messages"
	"github.com/davidmehren/workadventure/internal/wsclient"
)

type options struct {
	url      string
	roomID   string
	bots     int
	step     int32
	interval time.Duration
	area     int32
	duration time.Duration
}

// counters aggregates what every bot received.
type counters struct {
	frames    atomic.Int64
	subs      atomic.Int64
	webrtc    atomic.Int64
	errors    atomic.Int64
	connected atomic.Int64
}

func main() {
	var opts options
	pflag.StringVar(&opts.url, "url", "ws://localhost:8080/room", "pusher room endpoint")
	pflag.StringVar(&opts.roomID, "room", "_/global/maps.example.com/office.json", "room to join")
	pflag.IntVar(&opts.bots, "bots", 10, "number of simulated players")
	pflag.Int32Var(&opts.step, "step", 16, "pixels per move")
	pflag.DurationVar(&opts.interval, "interval", 200*time.Millisecond, "time between moves")
	pflag.Int32Var(&opts.area, "area", 1000, "side of the square the bots walk in")
	pflag.DurationVar(&opts.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	verbose := pflag.Bool("verbose", false, "log every received message")
	pflag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	var stats counters
	g, gctx := errgroup.WithContext(ctx)
	for i := range opts.bots {
		g.Go(func() error {
			return runBot(gctx, i, opts, &stats, logger.With("bot", i))
		})
	}
	go printStats(ctx, &stats, logger)

	if err := g.Wait(); err != nil {
		logger.Error("bot failed", "error", err)
		os.Exit(1)
	}
	logger.Info("done",
		"frames", stats.frames.Load(),
		"sub_messages", stats.subs.Load(),
		"webrtc", stats.webrtc.Load(),
		"errors", stats.errors.Load(),
	)
}

func runBot(ctx context.Context, id int, opts options, stats *counters, logger *slog.Logger) error {
	x := rand.Int32N(opts.area)
	y := rand.Int32N(opts.area)

	params := wsclient.JoinParams{
		RoomID:          opts.roomID,
		Name:            fmt.Sprintf("bot-%d", id),
		CharacterLayers: []string{"male1"},
		X:               x,
		Y:               y,
		Viewport:        viewportAround(x, y),
	}
	raw, err := params.URL(opts.url)
	if err != nil {
		return fmt.Errorf("build join url: %w", err)
	}

	cfg := wsclient.DefaultConfig()
	cfg.URL = raw
	client := wsclient.New(cfg, logger)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect bot %d: %w", id, err)
	}
	defer client.Close()
	stats.connected.Add(1)
	defer stats.connected.Add(-1)

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	steps := 0
	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-client.Messages():
			if !ok {
				return nil
			}
			count(msg, stats, logger)

		case err := <-client.Errors():
			stats.errors.Add(1)
			logger.Warn("connection ended", "error", err)
			return nil

		case <-ticker.C:
			steps++
			dir := geometry.Direction(rand.IntN(4))
			x, y = walk(x, y, dir, opts.step, opts.area)
			// Every fifth step the bot stops so the move is never shed.
			moving := steps%5 != 0
			err := client.Send(messages.WrapClient(&messages.UserMovesMessage{
				Position: geometry.Position{X: x, Y: y, Direction: dir, Moving: moving},
				Viewport: viewportAround(x, y),
			}))
			if err != nil {
				logger.Warn("send failed", "error", err)
				return nil
			}
		}
	}
}

func count(msg *messages.ServerMessage, stats *counters, logger *slog.Logger) {
	stats.frames.Add(1)
	switch {
	case msg.Batch != nil:
		stats.subs.Add(int64(len(msg.Batch.Payload)))
	case msg.WebRtcStart != nil, msg.WebRtcDisconnect != nil:
		stats.webrtc.Add(1)
	case msg.Error != nil:
		stats.errors.Add(1)
		logger.Warn("server error", "message", msg.Error.Message)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		p, _ := msg.Payload()
		logger.Debug("received", "type", fmt.Sprintf("%T", p))
	}
}

func walk(x, y int32, dir geometry.Direction, step, area int32) (int32, int32) {
	switch dir {
	case geometry.Up:
		y -= step
	case geometry.Down:
		y += step
	case geometry.Left:
		x -= step
	case geometry.Right:
		x += step
	}
	return clamp(x, area), clamp(y, area)
}

func clamp(v, area int32) int32 {
	return max(0, min(v, area))
}

func viewportAround(x, y int32) geometry.Viewport {
	return geometry.Viewport{Left: x - 400, Top: y - 300, Right: x + 400, Bottom: y + 300}
}

func printStats(ctx context.Context, stats *counters, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("stats",
				"connected", stats.connected.Load(),
				"frames", stats.frames.Load(),
				"sub_messages", stats.subs.Load(),
				"webrtc", stats.webrtc.Load(),
				"errors", stats.errors.Load(),
			)
		}
	}
}
