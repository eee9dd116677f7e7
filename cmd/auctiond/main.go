package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/clock"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/config"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/engine"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/franchise"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/health"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/leader"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/notify"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/server"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/jayppatell1996-lgtm/cricket-auction/internal/store/postgres"
	_ "github.com/jayppatell1996-lgtm/cricket-auction/internal/store/redisstore"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup telemetry.
	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	// Open store using the configured driver (postgres or redis).
	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to store", slog.String("driver", cfg.Database.Driver))

	// Discord announcements are optional.
	var notifier engine.Notifier
	if cfg.Notify.Enabled {
		announcer, notifyErr := notify.New(cfg.Notify, logger)
		if notifyErr != nil {
			return fmt.Errorf("creating announcer: %w", notifyErr)
		}
		defer announcer.Close()
		notifier = announcer
	}

	eng := engine.New(engine.Config{
		OpeningWindow:      cfg.Auction.OpeningWindow.D(),
		ContinuationWindow: cfg.Auction.ContinuationWindow.D(),
		ExpiryGrace:        cfg.Auction.ExpiryGrace.D(),
		BidLockWait:        cfg.Auction.BidLockWait.D(),
		BidLockHold:        cfg.Auction.BidLockHold.D(),
		Tiers:              tiersFromConfig(cfg.Auction.IncrementTiers),
	}, repos, notifier, logger, tp.TracerProvider, clk)

	franchiseMgr := franchise.NewManager(repos.Teams, repos.Rosters, repos.Events, logger, tp.TracerProvider)

	// Setup health checks.
	healthHandler := health.NewHandler(clk,
		health.Checker{
			Name:  "store",
			Check: repos.Ping,
		},
	)

	apiServer := server.New(cfg.Server, eng, franchiseMgr, logger, tp.TracerProvider)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.LivenessHandler())
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler())
	apiServer.Register(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
			logger.ErrorContext(ctx, "http server error", slog.Any("error", listenErr))
		}
	}()

	// serve marks this replica ready and blocks until shutdown. Under
	// leader election only the leader serves: a standby replica stays
	// unready so traffic never reaches a non-mutating instance.
	serve := func(ctx context.Context) {
		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "auctiond is running", slog.String("version", version))

		<-ctx.Done()
		healthHandler.SetReady(false)
	}

	if cfg.LeaderElection.Enabled {
		logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")

		if leaderErr := leader.Run(ctx, cfg.LeaderElection, logger, serve, func() {
			logger.Info("lost leadership, shutting down...")
			cancel()
		}); leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
	} else {
		serve(ctx)
		logger.Info("shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.D())
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}

func tiersFromConfig(tiers []config.IncrementTier) []engine.Tier {
	out := make([]engine.Tier, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, engine.Tier{Below: t.Below, Step: t.Step})
	}
	return out
}
