package game

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/cache"
)

// logAction publishes one action record to the Redis audit queue for the
// historian. Publishing is fire-and-forget; a missing Redis client only
// drops the audit trail, never the game. Increments the internal action
// index for ordering. Assumes lock is held by caller.
func (g *Game) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		GameID:        g.ID,
		ActionIndex:   g.actionIndex,
		ActorUserID:   actorID, // uuid.Nil for game-level events
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}

	go func(rec cache.GameActionRecord) {
		if cache.Rdb == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			log.Printf("Error: Game %s: Failed publishing action %d ('%s') to Redis: %v", g.ID, rec.ActionIndex, rec.ActionType, err)
		}
	}(record)
}
