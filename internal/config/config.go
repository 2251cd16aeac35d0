// Package config loads server configuration from the environment, with a
// .env file picked up in development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds everything the server reads at startup.
type Config struct {
	ListenAddr     string // host:port for the HTTP/WebSocket listener
	AllowedOrigins []string

	TurnSeconds     int // action deadline per player; 0 disables the timer
	CounterWindowMS int // interrupt window length
	GraceSeconds    int // disconnect grace before forfeit

	PostgresDSN string // empty disables persistence
	RedisAddr   string // empty disables the audit queue
	RedisDB     int

	SessionSecret string // HMAC key for reconnect session tokens
	LogLevel      string
}

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file loaded")
	}

	cfg := Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		TurnSeconds:     getEnvInt("TURN_SECONDS", 45),
		CounterWindowMS: getEnvInt("COUNTER_WINDOW_MS", 5000),
		GraceSeconds:    getEnvInt("GRACE_SECONDS", 30),
		PostgresDSN:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		SessionSecret:   getEnv("SESSION_SECRET", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, part := range strings.Split(origins, ",") {
			if part = strings.TrimSpace(part); part != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, part)
			}
		}
	}
	return cfg
}

// TurnDuration converts TurnSeconds, 0 meaning disabled.
func (c Config) TurnDuration() time.Duration {
	return time.Duration(c.TurnSeconds) * time.Second
}

// CounterWindow converts CounterWindowMS.
func (c Config) CounterWindow() time.Duration {
	return time.Duration(c.CounterWindowMS) * time.Millisecond
}

// GraceDuration converts GraceSeconds.
func (c Config) GraceDuration() time.Duration {
	return time.Duration(c.GraceSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid integer %q, using %d", val, fallback)
		return fallback
	}
	return num
}
