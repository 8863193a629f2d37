package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/debtbot/debtcollector/internal/auth"
	"github.com/debtbot/debtcollector/internal/config"
	"github.com/debtbot/debtcollector/internal/ledger"
	"github.com/debtbot/debtcollector/internal/server"
	"github.com/debtbot/debtcollector/internal/storage"
	"github.com/debtbot/debtcollector/internal/storage/mongo"
	"github.com/debtbot/debtcollector/internal/storage/sqlite"
	"github.com/debtbot/debtcollector/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "backend", cfg.Store.Backend)

	svc := ledger.NewService(store)
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(svc, jwtManager),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("Server starting", "address", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return mongo.New(connectCtx, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
	default:
		return sqlite.New(cfg.Store.SQLitePath)
	}
}
