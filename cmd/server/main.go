// Command scoutsync-server serves the events document over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scoutpluse/scoutsync/internal/auth"
	"github.com/scoutpluse/scoutsync/internal/bus"
	"github.com/scoutpluse/scoutsync/internal/config"
	"github.com/scoutpluse/scoutsync/internal/document"
	"github.com/scoutpluse/scoutsync/internal/limiter"
	"github.com/scoutpluse/scoutsync/internal/manager"
	"github.com/scoutpluse/scoutsync/internal/repository/sqlite"
	httpserver "github.com/scoutpluse/scoutsync/internal/server/http"
	"github.com/scoutpluse/scoutsync/internal/store"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration and starts the HTTP server with graceful shutdown.
func main() {
	cfg := config.Load()

	addr := flag.String("addr", cfg.Server.Addr, "listen address")
	dataFile := flag.String("data", cfg.Document.Path, "events data file")
	backupDir := flag.String("backup-dir", cfg.Document.BackupDir, "backup directory")
	retain := flag.Int("backup-retain", cfg.Document.Retain, "backups to keep")
	token := flag.String("token", cfg.Mirror.Token, "shared security token")
	dsn := flag.String("dsn", "scoutsync-server.db", "user database path")
	jwtKey := flag.String("jwt-key", cfg.Auth.JWTSecret, "HS256 signing key")
	ttl := flag.Duration("token-ttl", cfg.Auth.TokenTTL, "session token TTL")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := sqlite.Open(ctx, *dsn)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer kv.Close()

	st := store.New(kv, bus.New(), logger, cfg.Storage.Prefix)
	if len(st.GetUsers(ctx)) == 0 {
		if err := st.SaveUsers(ctx, manager.DemoUsers()); err != nil {
			logger.Fatal("seed users", zap.Error(err))
		}
		logger.Info("seeded demo user accounts")
	}

	lim := limiter.NewMemory(cfg.Auth.LoginWindow, cfg.Auth.MaxAttempts, cfg.Auth.BlockFor)
	authSvc := auth.New(st, lim, []byte(*jwtKey), *ttl, logger)

	docs := document.New(*dataFile, *backupDir, *retain, logger)
	api := httpserver.New(docs, *token, authSvc, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
		logger.Info("stopped")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}
}
