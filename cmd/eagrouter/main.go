// Command eagrouter runs the tick-driven delivery fleet simulation: it loads
// the bootstrap grid/restaurant/bot seed, opens the entity store, starts the
// engine and HTTP server, and optionally drops into an interactive console.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ron808/eagrouter/internal/bootstrap"
	"github.com/ron808/eagrouter/internal/config"
	"github.com/ron808/eagrouter/internal/console"
	"github.com/ron808/eagrouter/internal/engine"
	"github.com/ron808/eagrouter/internal/grid"
	"github.com/ron808/eagrouter/internal/httpapi"
	"github.com/ron808/eagrouter/internal/store"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	interactive := flag.Bool("console", false, "run an interactive console on stdin/stdout")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := run(log, *configPath, *interactive); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, configPath string, interactive bool) error {
	uc, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err := uc.Resolve(log)
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}

	seed, err := bootstrap.Load(cfg.BootstrapDir)
	if err != nil {
		return fmt.Errorf("load bootstrap data: %w", err)
	}
	g, err := grid.New(seed.Nodes, seed.Blocked)
	if err != nil {
		return fmt.Errorf("build grid: %w", err)
	}
	station, ok := g.NodeAt(cfg.StationX, cfg.StationY)
	if !ok {
		return fmt.Errorf("station coordinate (%d,%d) is not on the grid", cfg.StationX, cfg.StationY)
	}

	st, err := store.Config{Log: log, DBPath: cfg.DBPath}.Open()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	st.SeedRestaurants(seed.Restaurants)
	st.SeedBots(bootstrap.Bots(cfg.BotCount, cfg.BotCapacity, station.ID))

	eng := engine.Config{
		Log:                     log,
		Store:                   st,
		Grid:                    g,
		StationNodeID:           station.ID,
		ThrottleLimit:           cfg.ThrottleLimit,
		ThrottleWindowTicks:     cfg.ThrottleWindowTicks,
		ThrottleWindowWallClock: cfg.ThrottleWindowWallClock,
		TickInterval:            cfg.TickInterval,
	}.New()
	defer eng.Close()

	srv := httpapi.Config{
		Log:            log,
		Engine:         eng,
		Addr:           cfg.Address,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxRequestBody: cfg.MaxRequestBody,
	}.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	if interactive {
		console.New(eng, log).Run(ctx)
		stop()
	}

	log.Info("eagrouter listening", "address", cfg.Address, "bots", cfg.BotCount, "nodes", g.Len())
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return <-errCh
	}
}
