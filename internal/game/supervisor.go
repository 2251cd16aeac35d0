package game

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/models"
)

// HandleDisconnect marks a player as away and arms the forfeit grace timer.
// Their seat and hand stay untouched; if their action deadline comes due
// while away, the neutral default is played for them.
func (g *Game) HandleDisconnect(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	p := g.playerLocked(playerID)
	if p == nil {
		log.Printf("Game %s: Disconnected player %s not found.", g.ID, playerID)
		return
	}
	if !p.Connected {
		log.Printf("Game %s: Player %s already marked as disconnected.", g.ID, playerID)
		return
	}
	log.Printf("Game %s: Handling disconnect for player %s.", g.ID, playerID)
	p.Connected = false
	p.Conn = nil

	g.logAction(playerID, string(EventPlayerDisconnected), nil)
	g.fireEventLocked(GameEvent{Type: EventPlayerDisconnected, User: &EventUser{ID: playerID}})

	if !g.Started || g.GameOver {
		return
	}
	ps := g.Eng.PlayerByID(playerID)
	if ps == nil || !ps.Alive {
		return
	}
	g.Eng.SetAway(playerID, true)

	if t, ok := g.graceTimers[playerID]; ok {
		t.Stop()
	}
	grace := g.GraceDuration
	g.graceTimers[playerID] = time.AfterFunc(grace, func() {
		g.onGraceExpire(playerID)
	})
	log.Printf("Game %s: Player %s has %s to reconnect before forfeiting.", g.ID, playerID, grace)

	// If it was their move, play the default now rather than waiting out
	// their deadline.
	g.autoPlayAwayLocked()
	if g.GameOver {
		return
	}
	g.scheduleTurnTimerLocked()
	g.broadcastSyncLocked()
}

// HandleReconnect rebinds a returning player and cancels their forfeit.
func (g *Game) HandleReconnect(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	p := g.playerLocked(playerID)
	if p == nil {
		log.Printf("Game %s: Reconnecting player %s not found.", g.ID, playerID)
		return
	}
	log.Printf("Game %s: Handling reconnect for player %s.", g.ID, playerID)
	p.Connected = true

	if t, ok := g.graceTimers[playerID]; ok {
		t.Stop()
		delete(g.graceTimers, playerID)
	}

	g.logAction(playerID, string(EventPlayerReconnected), nil)
	g.fireEventLocked(GameEvent{Type: EventPlayerReconnected, User: &EventUser{ID: playerID}})

	if !g.Started || g.GameOver {
		return
	}
	g.Eng.SetAway(playerID, false)
	g.sendSyncLocked(playerID)

	// A returning player gets a fresh deadline if the move is theirs.
	if g.responsibleLocked() == playerID {
		log.Printf("Game %s: Player %s reconnected on their move. Rescheduling timer.", g.ID, playerID)
		g.scheduleTurnTimerLocked()
	}
	g.broadcastSyncLocked()
}

// onGraceExpire forfeits a player whose reconnection grace ran out.
func (g *Game) onGraceExpire(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	delete(g.graceTimers, playerID)
	if g.GameOver || !g.Started {
		return
	}
	p := g.playerLocked(playerID)
	if p == nil || p.Connected {
		return
	}
	ps := g.Eng.PlayerByID(playerID)
	if ps == nil || !ps.Alive {
		return
	}
	log.Printf("Game %s: Grace expired for player %s. Forfeiting.", g.ID, playerID)

	turnBefore := g.Eng.TurnID
	if err := g.Eng.EliminatePlayer(playerID); err != nil {
		log.Printf("Warning: Game %s: forfeiting %s failed: %v", g.ID, playerID, err)
		return
	}
	g.fireEliminationLocked(playerID, "forfeit")
	g.afterMutationLocked(g.Eng.TurnID != turnBefore)
}

// playerLocked finds a seat by player ID. Assumes lock is held.
func (g *Game) playerLocked(playerID uuid.UUID) *models.Player {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}
