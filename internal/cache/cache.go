// Package cache wraps the Redis client used for the game action audit
// queue. A nil client is a supported degraded mode: games run, the audit
// trail is simply not written.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Rdb is the shared Redis client. Nil until InitRedis succeeds.
var Rdb *redis.Client

// gameActionQueue is the list the historian consumes from.
const gameActionQueue = "meo-no:game-actions"

// InitRedis connects and pings the Redis server at addr.
func InitRedis(ctx context.Context, addr, password string, db int) error {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", addr, err)
	}
	Rdb = client
	logrus.WithField("addr", addr).Info("redis connected")
	return nil
}

// GameActionRecord is one entry on the audit queue. ActionIndex orders
// records within a game.
type GameActionRecord struct {
	GameID        uuid.UUID              `json:"gameId"`
	ActionIndex   int                    `json:"actionIndex"`
	ActorUserID   uuid.UUID              `json:"actorUserId"`
	ActionType    string                 `json:"actionType"`
	ActionPayload map[string]interface{} `json:"actionPayload"`
	Timestamp     int64                  `json:"timestamp"`
}

// PublishGameAction pushes one record onto the audit queue.
func PublishGameAction(ctx context.Context, rec GameActionRecord) error {
	if Rdb == nil {
		return fmt.Errorf("redis client not initialized")
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	if err := Rdb.LPush(ctx, gameActionQueue, buf).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", gameActionQueue, err)
	}
	return nil
}
