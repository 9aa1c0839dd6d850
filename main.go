package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bedmatch/pkg/accounts"
	"bedmatch/pkg/auth"
	"bedmatch/pkg/config"
	"bedmatch/pkg/handlers"
	"bedmatch/pkg/logger"
	"bedmatch/pkg/matching"
	"bedmatch/pkg/session"
	"bedmatch/pkg/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := "config.yaml"
	if p := os.Getenv("BEDMATCH_CONFIG"); p != "" {
		configPath = p
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat, "bedmatch")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize store
	dataStore, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store at %s: %w", cfg.Store.Driver, cfg.Store.Path, err)
	}
	defer dataStore.Close()

	sessions, err := session.Open(ctx, cfg.Session, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("open %s sessions: %w", cfg.Session.Driver, err)
	}
	defer sessions.Close()

	// Initialize auth and services
	authService := auth.New(&cfg.Auth, sessions)
	accountService := accounts.NewService(dataStore, authService, accounts.DefaultAvatars, zlog.Named("accounts"))
	matchingService := matching.NewService(dataStore, zlog.Named("matching"))

	h := handlers.New(cfg, accountService, matchingService, authService, zlog.Named("http"))

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("starting bedmatch",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.String("sessions", cfg.Session.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
