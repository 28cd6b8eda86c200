package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kwahn/chess-arena/internal/arena"
	"github.com/kwahn/chess-arena/internal/config"
	"github.com/kwahn/chess-arena/internal/obslog"
	"github.com/kwahn/chess-arena/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogFile); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	store, err := arena.NewStore(cfg.RedisURL, cfg.GameTTL())
	if err != nil {
		logger.Fatal("store init error", zap.Error(err))
	}
	defer store.Close()

	registry := arena.NewRegistry()
	coord := arena.NewCoordinator(registry, store, arena.NewEngine())

	if cfg.DatabaseURL != "" {
		archive, err := arena.NewArchive(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("archive init error", zap.Error(err))
		}
		defer archive.Close()
		coord.AttachArchive(archive)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewServer(registry, coord, cfg.AllowedOrigins))

	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", cfg.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
