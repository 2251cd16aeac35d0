// Package database persists game snapshots to Postgres via pgx. Like the
// Redis audit queue, the database is optional: a nil pool skips
// persistence without affecting live games.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// DB is the shared connection pool. Nil until Connect succeeds.
var DB *pgxpool.Pool

// Connect opens the pool and verifies the schema exists.
func Connect(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("postgres ping: %w", err)
	}
	DB = pool
	if err := ensureSchema(ctx); err != nil {
		return err
	}
	logrus.Info("postgres connected")
	return nil
}

func ensureSchema(ctx context.Context) error {
	_, err := DB.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS games (
			id            UUID PRIMARY KEY,
			initial_state JSONB,
			final_state   JSONB,
			winner_id     UUID,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			finished_at   TIMESTAMPTZ
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertInitialGameState stores the dealt state of a new game. Called on a
// background goroutine; failures are logged, not surfaced.
func UpsertInitialGameState(gameID uuid.UUID, state []byte) {
	if DB == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := DB.Exec(ctx, `
		INSERT INTO games (id, initial_state)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET initial_state = EXCLUDED.initial_state`,
		gameID, state)
	if err != nil {
		logrus.WithError(err).WithField("game_id", gameID).Error("storing initial game state")
	}
}

// StoreFinalGameState stores the concluded state and winner. Called on a
// background goroutine; failures are logged, not surfaced.
func StoreFinalGameState(gameID uuid.UUID, winnerID uuid.UUID, state []byte) {
	if DB == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var winner interface{}
	if winnerID != uuid.Nil {
		winner = winnerID
	}
	_, err := DB.Exec(ctx, `
		INSERT INTO games (id, final_state, winner_id, finished_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET final_state = EXCLUDED.final_state,
		    winner_id   = EXCLUDED.winner_id,
		    finished_at = EXCLUDED.finished_at`,
		gameID, state, winner)
	if err != nil {
		logrus.WithError(err).WithField("game_id", gameID).Error("storing final game state")
	}
}
