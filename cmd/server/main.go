package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/cache"
	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/config"
	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/database"
	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/ws"
)

func main() {
	cfg := config.Load()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.Warnf("invalid log level %q, using info", cfg.LogLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres and Redis are optional collaborators. Without them the
	// server still runs; it just keeps no snapshots and no audit trail.
	if cfg.PostgresDSN != "" {
		if err := database.Connect(ctx, cfg.PostgresDSN); err != nil {
			logrus.WithError(err).Warn("postgres unavailable, persistence disabled")
		}
	} else {
		logrus.Info("DATABASE_URL not set, persistence disabled")
	}
	if cfg.RedisAddr != "" {
		if err := cache.InitRedis(ctx, cfg.RedisAddr, os.Getenv("REDIS_PASSWORD"), cfg.RedisDB); err != nil {
			logrus.WithError(err).Warn("redis unavailable, audit queue disabled")
		}
	} else {
		logrus.Info("REDIS_ADDR not set, audit queue disabled")
	}

	sessions := ws.NewSessionManager(cfg.SessionSecret)
	hub := ws.NewHub(cfg, sessions)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("addr", cfg.ListenAddr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("shutdown")
	}
	if database.DB != nil {
		database.DB.Close()
	}
	if cache.Rdb != nil {
		_ = cache.Rdb.Close()
	}
}
