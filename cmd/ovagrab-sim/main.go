// Command ovagrab-sim serves a simulated OVA export service for development
// and testing of the ovagrab clients. Exports are simulated; no VM data is
// transferred.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iconidentify/ovagrab/internal/api"
	"github.com/iconidentify/ovagrab/internal/api/handler"
	"github.com/iconidentify/ovagrab/internal/config"
	"github.com/iconidentify/ovagrab/internal/repository"
	"github.com/iconidentify/ovagrab/internal/worker"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ovagrab-sim %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := cfg.Log.NewLogger(os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	logger.Info("starting ovagrab-sim",
		"version", Version,
		"build_time", BuildTime,
	)

	if err := run(cfg.Sim, logger); err != nil {
		logger.Error("simulator failed", "error", err)
		closer.Close()
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func run(cfg config.SimConfig, logger *slog.Logger) error {
	inventory, err := repository.LoadInventory(cfg.InventoryPath)
	if err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}

	// Keep more history than /api/status shows so /ready counts stay useful.
	queue := repository.NewInMemoryExportQueue(cfg.HistoryLimit * 10)
	sessions := repository.NewInMemorySessionRepository()

	if cfg.Password == "" {
		logger.Warn("no simulator password configured, any password is accepted")
	}

	router := api.NewRouter(api.Handlers{
		Session:   handler.NewSessionHandler(sessions, queue, cfg.Username, cfg.Password, logger.With("component", "session")),
		Inventory: handler.NewInventoryHandler(inventory, logger.With("component", "inventory")),
		Queue:     handler.NewQueueHandler(queue, cfg.DownloadDir, cfg.HistoryLimit, logger.With("component", "queue")),
		Health:    handler.NewHealthHandler(queue),
	}, sessions, logger)

	exporter := worker.NewExporter(worker.ExporterConfig{
		StepInterval: cfg.StepInterval,
		StepPercent:  float64(cfg.StepPercent),
	}, queue, inventory, logger.With("component", "exporter"))

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exporter.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		if err := exporter.Stop(5 * time.Second); err != nil {
			logger.Error("exporter shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}
