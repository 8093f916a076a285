package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielhkuo/lowbid/cliparse"
	"github.com/danielhkuo/lowbid/db"
	"github.com/danielhkuo/lowbid/engine"
	"github.com/danielhkuo/lowbid/middleware"
	"github.com/danielhkuo/lowbid/router"
	"github.com/danielhkuo/lowbid/store"
)

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect and verify
	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err, "type", cfg.DatabaseType)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	// Rebuild every open auction from its bid log
	st := store.New(dbConn)
	hub := engine.NewHub(cfg.SubscriberBuffer)
	registry := engine.NewRegistry(st, hub, engine.RegistryOptions{TopN: cfg.RankTopN})
	if err := registry.Warm(context.Background()); err != nil {
		slog.Error("session warm-up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Sessions ready", "open", registry.Len())

	sweeper, err := registry.StartSweeper(cfg.SweepInterval)
	if err != nil {
		slog.Error("sweeper start failed", "error", err)
		os.Exit(1)
	}

	// Create router
	mux := router.NewRouter(registry, st, cfg)

	// Create server
	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		<-sweeper.Stop().Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			server.Close()
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
