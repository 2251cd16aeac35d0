// Package game hosts the per-room orchestration around the pure rules
// engine: turn and counter-window timers, event fan-out, disconnect
// supervision and audit logging. The engine owns the rules; this package
// owns the clock.
package game

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/database"
	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/engine"
	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/models"
)

// Default timings; the hub overrides these from config when creating a game.
const (
	DefaultTurnDuration  = 45 * time.Second
	DefaultCounterWindow = 5 * time.Second
	DefaultGraceDuration = 30 * time.Second
)

// OnGameEndFunc is called once when a game concludes, with the winner's ID
// (uuid.Nil if the game was terminated without a winner).
type OnGameEndFunc func(roomID uuid.UUID, winnerID uuid.UUID)

// Game wraps one engine instance with everything the engine deliberately
// does not do: timers, broadcasting, disconnect grace and persistence.
// All access is serialized through Mu.
type Game struct {
	ID      uuid.UUID
	RoomID  uuid.UUID
	Players []*models.Player // fixed seat order, mirrors engine seats

	Eng *engine.Game

	Started  bool
	GameOver bool
	Flagged  bool // terminated by a failed consistency check

	TurnDuration  time.Duration // deadline for the player who must act; 0 disables
	CounterWindow time.Duration // interrupt window length, reset on each counter
	GraceDuration time.Duration // disconnect grace before forfeit

	turnTimer   *time.Timer
	windowTimer *time.Timer
	graceTimers map[uuid.UUID]*time.Timer

	turnDeadline   time.Time
	windowDeadline time.Time
	turnSeq        int // invalidates stale turn-timer callbacks
	windowSeq      int // invalidates stale window-timer callbacks

	tickStop chan struct{}

	actionIndex int

	Mu sync.Mutex

	BroadcastFn         func(ev GameEvent)                     // sends an event to all connected players
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent) // sends an event to a single player
	SystemNoticeFn      func(text string)                      // optional room chat notice
	OnGameEnd           OnGameEndFunc
}

// NewGame creates an unstarted game for the given seats.
func NewGame(roomID uuid.UUID, players []*models.Player) *Game {
	return &Game{
		ID:            uuid.New(),
		RoomID:        roomID,
		Players:       players,
		TurnDuration:  DefaultTurnDuration,
		CounterWindow: DefaultCounterWindow,
		GraceDuration: DefaultGraceDuration,
		graceTimers:   make(map[uuid.UUID]*time.Timer),
		tickStop:      make(chan struct{}),
	}
}

// Start builds the deck, deals hands and opens the first turn. The seed
// drives every shuffle, so a fixed seed replays an identical game.
func (g *Game) Start(seed uint64) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Started || g.GameOver {
		log.Printf("Game %s: Start called in invalid state (Started:%v, Over:%v). Ignoring.", g.ID, g.Started, g.GameOver)
		return nil
	}

	ids := make([]uuid.UUID, len(g.Players))
	for i, p := range g.Players {
		ids[i] = p.ID
	}
	eng, err := engine.NewGame(seed, ids)
	if err != nil {
		return err
	}
	g.Eng = eng
	g.Started = true
	log.Printf("Game %s: Started with %d players, seed %d.", g.ID, len(ids), seed)

	g.logAction(uuid.Nil, "game_start", map[string]interface{}{"players": len(ids)})
	g.persistSnapshotLocked(true)

	g.broadcastSyncLocked()
	g.fireTurnEventLocked()
	g.scheduleTurnTimerLocked()
	go g.tickLoop()
	return nil
}

// HandleAction routes one inbound player action. Rejections go back to the
// sender as a private fail event; the room state never changes on a
// rejected action.
func (g *Game) HandleAction(playerID uuid.UUID, action models.GameAction) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.GameOver {
		log.Printf("Game %s: Action %s from %s ignored (game over).", g.ID, action.ActionType, playerID)
		return
	}
	if !g.Started {
		log.Printf("Game %s: Action %s from %s ignored (game not started).", g.ID, action.ActionType, playerID)
		return
	}

	switch action.ActionType {
	case "action_play_cards":
		g.handlePlayCardsLocked(playerID, action.Payload)
	case "action_play_counter":
		g.handleCounterLocked(playerID)
	case "action_draw_card":
		g.handleDrawLocked(playerID)
	case "action_defuse":
		g.handleDefuseLocked(playerID, action.Payload)
	case "action_give_card":
		g.handleGiveLocked(playerID, action.Payload)
	case "action_ack_peek":
		g.handleAckPeekLocked(playerID)
	default:
		log.Printf("Game %s: Unknown action type '%s' from player %s.", g.ID, action.ActionType, playerID)
		g.rejectLocked(playerID, action.ActionType, engine.ErrInvalidAction)
	}
}

// rejectLocked sends a private failure event for an action the engine (or
// the router) refused. Assumes lock is held.
func (g *Game) rejectLocked(playerID uuid.UUID, actionType string, err error) {
	reason := "invalid"
	switch {
	case errors.Is(err, engine.ErrRaceRejected):
		reason = "too_late"
	case errors.Is(err, engine.ErrRuleViolation):
		reason = "rule_violation"
	}
	g.fireEventToPlayerLocked(playerID, GameEvent{
		Type: EventPrivateActionFail,
		Payload: map[string]interface{}{
			"action":  actionType,
			"reason":  reason,
			"message": err.Error(),
		},
	})
	g.logAction(playerID, string(EventPrivateActionFail), map[string]interface{}{"action": actionType, "reason": reason})
}

// ---------------------------------------------------------------------------
// Action handlers. All assume the lock is held.

func (g *Game) handlePlayCardsLocked(playerID uuid.UUID, payload map[string]interface{}) {
	cardIDs, err := payloadUUIDList(payload, "cardIds")
	if err != nil {
		g.rejectLocked(playerID, "action_play_cards", err)
		return
	}
	targetPlayer, _ := payloadUUID(payload, "targetPlayerId")
	targetCard, _ := payloadUUID(payload, "targetCardId")

	act, err := g.Eng.PlayCards(playerID, cardIDs, targetPlayer, targetCard)
	if err != nil {
		g.rejectLocked(playerID, "action_play_cards", err)
		return
	}

	// The played cards are in the discard pile now, so their identity is
	// public even though the effect is still deferred.
	pay := map[string]interface{}{
		"playKind": act.Kind.String(),
		"cards":    discardTail(g.Eng.Discard, len(act.CardIDs)),
	}
	if act.TargetID != uuid.Nil {
		pay["targetPlayerId"] = act.TargetID.String()
	}
	g.fireEventLocked(GameEvent{Type: EventPlayerAction, User: &EventUser{ID: playerID}, Payload: pay})
	g.logAction(playerID, "action_play_cards", pay)

	g.openWindowLocked()
	g.broadcastSyncLocked()
}

func (g *Game) handleCounterLocked(playerID uuid.UUID) {
	act, err := g.Eng.PlayCounter(playerID)
	if err != nil {
		g.rejectLocked(playerID, "action_play_counter", err)
		return
	}

	pay := map[string]interface{}{
		"playKind": act.Kind.String(),
		"cards":    discardTail(g.Eng.Discard, 1),
		"depth":    len(g.Eng.Interrupt.Counters),
	}
	g.fireEventLocked(GameEvent{Type: EventPlayerAction, User: &EventUser{ID: playerID}, Payload: pay})
	g.logAction(playerID, "action_play_counter", pay)

	// Each counter restarts the window in full.
	g.openWindowLocked()
	g.broadcastSyncLocked()
}

func (g *Game) handleDrawLocked(playerID uuid.UUID) {
	res, err := g.Eng.Draw(playerID)
	if err != nil {
		g.rejectLocked(playerID, "action_draw_card", err)
		return
	}

	g.fireEventLocked(GameEvent{Type: EventPlayerDraw, User: &EventUser{ID: playerID}, Payload: map[string]interface{}{
		"bomb":     res.Bomb,
		"deckSize": len(g.Eng.Deck),
	}})
	if !res.Bomb {
		g.fireEventToPlayerLocked(playerID, GameEvent{Type: EventPrivateDraw, Payload: map[string]interface{}{
			"card": cardPayload(res.Card),
		}})
	}
	g.logAction(playerID, "action_draw_card", map[string]interface{}{"bomb": res.Bomb, "eliminated": res.Eliminated})

	if res.Eliminated {
		g.fireEliminationLocked(playerID, "exploded")
	}
	g.afterMutationLocked(res.TurnEnded)
}

func (g *Game) handleDefuseLocked(playerID uuid.UUID, payload map[string]interface{}) {
	position, ok := payloadInt(payload, "position")
	if !ok {
		g.rejectLocked(playerID, "action_defuse", engine.ErrInvalidAction)
		return
	}
	if _, err := g.Eng.DefuseInsert(playerID, position); err != nil {
		g.rejectLocked(playerID, "action_defuse", err)
		return
	}

	// The reinsert position stays secret; only the fact of the defuse is
	// public. The audit trail keeps the position server-side.
	g.fireEventLocked(GameEvent{Type: EventPlayerDefused, User: &EventUser{ID: playerID}})
	g.logAction(playerID, "action_defuse", map[string]interface{}{"position": position})
	g.afterMutationLocked(true)
}

func (g *Game) handleGiveLocked(playerID uuid.UUID, payload map[string]interface{}) {
	cardID, err := payloadUUID(payload, "cardId")
	if err != nil {
		g.rejectLocked(playerID, "action_give_card", err)
		return
	}
	receiverID := g.Eng.Pending.PlayerID // cleared by GiveCard, capture first
	card, err := g.Eng.GiveCard(playerID, cardID)
	if err != nil {
		g.rejectLocked(playerID, "action_give_card", err)
		return
	}

	g.fireEventToPlayerLocked(playerID, GameEvent{Type: EventPrivateCardMoved, Payload: map[string]interface{}{
		"card": cardPayload(*card), "to": receiverID.String(),
	}})
	g.fireEventToPlayerLocked(receiverID, GameEvent{Type: EventPrivateCardMoved, Payload: map[string]interface{}{
		"card": cardPayload(*card), "from": playerID.String(),
	}})
	g.fireEventLocked(GameEvent{Type: EventPlayerAction, User: &EventUser{ID: playerID}, Payload: map[string]interface{}{
		"playKind": "favor_given", "targetPlayerId": receiverID.String(),
	}})
	g.logAction(playerID, "action_give_card", map[string]interface{}{"to": receiverID.String()})
	g.afterMutationLocked(false)
}

func (g *Game) handleAckPeekLocked(playerID uuid.UUID) {
	if err := g.Eng.AcknowledgePeek(playerID); err != nil {
		g.rejectLocked(playerID, "action_ack_peek", err)
		return
	}
	g.logAction(playerID, "action_ack_peek", nil)
	g.afterMutationLocked(false)
}

// ---------------------------------------------------------------------------
// Interrupt window.

// openWindowLocked (re)opens the counter window: the previous window timer
// is invalidated and a fresh one armed for the full duration. Assumes lock
// is held.
func (g *Game) openWindowLocked() {
	if g.windowTimer != nil {
		g.windowTimer.Stop()
	}
	if g.turnTimer != nil {
		// The turn deadline is suspended while the window is open.
		g.turnTimer.Stop()
		g.turnDeadline = time.Time{}
	}
	g.windowSeq++
	seq := g.windowSeq
	g.windowDeadline = time.Now().Add(g.CounterWindow)
	g.windowTimer = time.AfterFunc(g.CounterWindow, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		if g.GameOver || seq != g.windowSeq {
			return
		}
		g.resolveWindowLocked()
	})

	g.fireEventLocked(GameEvent{Type: EventCounterWindow, Payload: map[string]interface{}{
		"deadline":   g.windowDeadline.UnixMilli(),
		"depth":      len(g.Eng.Interrupt.Counters),
		"declaredBy": g.Eng.Interrupt.Play.Actor.String(),
		"playKind":   g.Eng.Interrupt.Play.Kind.String(),
	}})
}

// resolveWindowLocked closes the counter window and applies (or cancels)
// the deferred play. Assumes lock is held.
func (g *Game) resolveWindowLocked() {
	g.windowDeadline = time.Time{}
	res, err := g.Eng.ResolveInterrupt()
	if err != nil {
		log.Printf("Error: Game %s: resolving counter window: %v", g.ID, err)
		return
	}

	pay := map[string]interface{}{
		"playKind":  res.Play.Kind.String(),
		"counters":  res.Counters,
		"cancelled": res.Cancelled,
		"fizzled":   res.Fizzled,
	}
	if res.Claimed != nil {
		pay["claimedCard"] = cardPayload(*res.Claimed)
	}
	if res.StolenFrom != uuid.Nil {
		pay["stolenFrom"] = res.StolenFrom.String()
	}
	g.fireEventLocked(GameEvent{Type: EventCounterResolved, User: &EventUser{ID: res.Play.Actor}, Payload: pay})
	g.logAction(res.Play.Actor, string(EventCounterResolved), pay)

	if res.Peeked != nil {
		cards := make([]map[string]interface{}, len(res.Peeked))
		for i, c := range res.Peeked {
			cards[i] = cardPayload(c)
		}
		g.fireEventToPlayerLocked(res.Play.Actor, GameEvent{Type: EventPrivatePeek, Payload: map[string]interface{}{
			"cards": cards,
		}})
	}
	if res.Stolen != nil {
		g.fireEventToPlayerLocked(res.Play.Actor, GameEvent{Type: EventPrivateCardMoved, Payload: map[string]interface{}{
			"card": cardPayload(*res.Stolen), "from": res.StolenFrom.String(),
		}})
		g.fireEventToPlayerLocked(res.StolenFrom, GameEvent{Type: EventPrivateCardMoved, Payload: map[string]interface{}{
			"card": cardPayload(*res.Stolen), "to": res.Play.Actor.String(),
		}})
	}

	g.afterMutationLocked(res.TurnEnded)
}

// ---------------------------------------------------------------------------
// Turn flow.

// afterMutationLocked runs the common post-action sequence: consistency
// check, end-of-game detection, turn events, away-player auto-play, timer
// rescheduling and state sync. Assumes lock is held.
func (g *Game) afterMutationLocked(turnEnded bool) {
	if err := g.Eng.CheckConservation(); err != nil {
		g.terminateFlaggedLocked(err)
		return
	}
	if g.Eng.IsOver() {
		g.endGameLocked()
		return
	}
	if g.windowTimer != nil && g.Eng.Phase != engine.PhaseCounterPending {
		// The interrupt was cleared outside the window timer (declarer
		// eliminated mid-window). Disarm it so it cannot fire on a
		// window that no longer exists.
		g.windowTimer.Stop()
		g.windowTimer = nil
		g.windowSeq++
		g.windowDeadline = time.Time{}
	}
	if turnEnded {
		g.fireTurnEventLocked()
	}
	g.autoPlayAwayLocked()
	if g.GameOver {
		return
	}
	g.scheduleTurnTimerLocked()
	g.broadcastSyncLocked()
}

// fireTurnEventLocked announces the new turn owner. Assumes lock is held.
func (g *Game) fireTurnEventLocked() {
	cur := g.Eng.CurrentPlayerID()
	g.fireEventLocked(GameEvent{Type: EventPlayerTurn, User: &EventUser{ID: cur}, Payload: map[string]interface{}{
		"turnId":    g.Eng.TurnID,
		"drawsOwed": g.Eng.DrawsOwed,
	}})
	g.logAction(cur, string(EventPlayerTurn), map[string]interface{}{"turnId": g.Eng.TurnID, "drawsOwed": g.Eng.DrawsOwed})
}

// responsibleLocked returns the player the turn deadline currently applies
// to: the pending actor in a pending phase, the turn owner otherwise, and
// nobody while the counter window is open. Assumes lock is held.
func (g *Game) responsibleLocked() uuid.UUID {
	switch g.Eng.Phase {
	case engine.PhaseDefusePending, engine.PhasePeekPending:
		return g.Eng.Pending.PlayerID
	case engine.PhaseFavorPending:
		return g.Eng.Pending.TargetID
	case engine.PhaseCounterPending, engine.PhaseGameOver:
		return uuid.Nil
	default:
		return g.Eng.CurrentPlayerID()
	}
}

// scheduleTurnTimerLocked restarts the action deadline for whoever must act
// next. Assumes lock is held.
func (g *Game) scheduleTurnTimerLocked() {
	if g.turnTimer != nil {
		g.turnTimer.Stop()
	}
	g.turnDeadline = time.Time{}
	if g.GameOver || g.TurnDuration <= 0 {
		return
	}
	resp := g.responsibleLocked()
	if resp == uuid.Nil {
		return
	}
	g.turnSeq++
	seq := g.turnSeq
	g.turnDeadline = time.Now().Add(g.TurnDuration)
	g.turnTimer = time.AfterFunc(g.TurnDuration, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		if g.GameOver || seq != g.turnSeq {
			return
		}
		log.Printf("Game %s: Turn deadline expired for player %s.", g.ID, resp)
		g.autoResolveLocked(resp)
	})
}

// autoResolveLocked plays the forced default for a player who ran out of
// time or is away, then runs the usual post-action sequence. Assumes lock
// is held.
func (g *Game) autoResolveLocked(playerID uuid.UUID) {
	res, err := g.Eng.AutoResolve(playerID)
	if err != nil {
		log.Printf("Warning: Game %s: auto-resolve for %s failed: %v", g.ID, playerID, err)
		return
	}

	pay := map[string]interface{}{"auto": true}
	turnEnded := false
	switch {
	case res.Drew != nil:
		pay["drew"] = true
		pay["bomb"] = res.Drew.Bomb
		g.fireEventLocked(GameEvent{Type: EventPlayerDraw, User: &EventUser{ID: playerID}, Payload: map[string]interface{}{
			"bomb": res.Drew.Bomb, "deckSize": len(g.Eng.Deck), "auto": true,
		}})
		if res.Drew.Eliminated {
			g.fireEliminationLocked(playerID, "exploded")
		}
		if res.AutoDefused {
			g.fireEventLocked(GameEvent{Type: EventPlayerDefused, User: &EventUser{ID: playerID}})
		}
		turnEnded = res.Drew.TurnEnded || res.AutoDefused
	case res.AutoDefused:
		g.fireEventLocked(GameEvent{Type: EventPlayerDefused, User: &EventUser{ID: playerID}})
		turnEnded = true
	case res.GaveCard != nil:
		pay["gave"] = true
	case res.FavorFizzled:
		pay["favorFizzled"] = true
	case res.AckedPeek:
		pay["ackedPeek"] = true
	}
	g.logAction(playerID, "auto_resolve", pay)
	g.afterMutationLocked(turnEnded)
}

// autoPlayAwayLocked advances play past away players: whoever the deadline
// would apply to gets their neutral default immediately instead of after a
// full timeout. Skipped while the counter window is open and when nobody
// is left connected (the grace timers settle that case). Assumes lock is
// held.
func (g *Game) autoPlayAwayLocked() {
	for !g.GameOver && !g.Eng.IsOver() && g.Eng.Phase != engine.PhaseCounterPending {
		resp := g.responsibleLocked()
		if resp == uuid.Nil {
			return
		}
		ps := g.Eng.PlayerByID(resp)
		if ps == nil || !ps.Away {
			return
		}
		if !g.anyAliveConnectedLocked() {
			return
		}

		turnBefore := g.Eng.TurnID
		res, err := g.Eng.AutoResolve(resp)
		if err != nil {
			log.Printf("Warning: Game %s: away auto-play for %s failed: %v", g.ID, resp, err)
			return
		}
		if res.Drew != nil {
			g.fireEventLocked(GameEvent{Type: EventPlayerDraw, User: &EventUser{ID: resp}, Payload: map[string]interface{}{
				"bomb": res.Drew.Bomb, "deckSize": len(g.Eng.Deck), "auto": true,
			}})
			if res.Drew.Eliminated {
				g.fireEliminationLocked(resp, "exploded")
			}
		}
		if res.AutoDefused {
			g.fireEventLocked(GameEvent{Type: EventPlayerDefused, User: &EventUser{ID: resp}})
		}
		g.logAction(resp, "auto_resolve", map[string]interface{}{"auto": true, "away": true})

		if err := g.Eng.CheckConservation(); err != nil {
			g.terminateFlaggedLocked(err)
			return
		}
		if g.Eng.IsOver() {
			g.endGameLocked()
			return
		}
		if g.Eng.TurnID != turnBefore {
			g.fireTurnEventLocked()
		}
	}
}

func (g *Game) anyAliveConnectedLocked() bool {
	for _, ps := range g.Eng.Players {
		if ps.Alive && !ps.Away {
			return true
		}
	}
	return false
}

// fireEliminationLocked announces a player's elimination. Assumes lock is
// held.
func (g *Game) fireEliminationLocked(playerID uuid.UUID, reason string) {
	g.fireEventLocked(GameEvent{Type: EventPlayerEliminated, User: &EventUser{ID: playerID}, Payload: map[string]interface{}{
		"reason": reason,
	}})
	g.logAction(playerID, string(EventPlayerEliminated), map[string]interface{}{"reason": reason})
	switch reason {
	case "forfeit":
		g.systemNoticeLocked(g.displayNameLocked(playerID) + " forfeited.")
	default:
		g.systemNoticeLocked(g.displayNameLocked(playerID) + " exploded!")
	}
}

// systemNoticeLocked pushes a chat-style notice to the room, if the hub
// installed a handler. Assumes lock is held.
func (g *Game) systemNoticeLocked(text string) {
	if g.SystemNoticeFn == nil {
		return
	}
	fn := g.SystemNoticeFn
	go fn(text)
}

// displayNameLocked resolves a seat to a printable name. Assumes lock is
// held.
func (g *Game) displayNameLocked(playerID uuid.UUID) string {
	if p := g.playerLocked(playerID); p != nil && p.User != nil && p.User.Username != "" {
		return p.User.Username
	}
	return playerID.String()
}

// ---------------------------------------------------------------------------
// End of game.

// endGameLocked finalizes the game: stops every timer, announces the
// winner, persists the final snapshot and notifies the hub. Assumes lock
// is held.
func (g *Game) endGameLocked() {
	if g.GameOver {
		return
	}
	g.GameOver = true
	g.stopTimersLocked()

	winner := uuid.Nil
	if g.Eng != nil {
		winner = g.Eng.Winner
	}
	pay := map[string]interface{}{"winner": winner.String()}
	if g.Flagged {
		pay["flagged"] = true
	}
	g.fireEventLocked(GameEvent{Type: EventGameEnd, Payload: pay})
	g.logAction(uuid.Nil, string(EventGameEnd), pay)
	if winner != uuid.Nil {
		g.systemNoticeLocked(g.displayNameLocked(winner) + " wins!")
	}
	g.broadcastSyncLocked()
	g.persistSnapshotLocked(false)

	log.Printf("Game %s: Ended. Winner: %s (flagged: %v).", g.ID, winner, g.Flagged)
	if g.OnGameEnd != nil {
		cb := g.OnGameEnd
		roomID, winnerID := g.RoomID, winner
		go cb(roomID, winnerID)
	}
}

// Stop halts all timers and marks the game over without declaring a
// winner. For tearing a game down from outside the action flow.
func (g *Game) Stop() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.GameOver = true
	g.stopTimersLocked()
}

// terminateFlaggedLocked aborts the game after a failed consistency check.
// No winner is declared. Assumes lock is held.
func (g *Game) terminateFlaggedLocked(err error) {
	log.Printf("Error: Game %s: consistency check failed, terminating: %v", g.ID, err)
	g.Flagged = true
	if g.Eng != nil {
		g.Eng.Winner = uuid.Nil
		g.Eng.Phase = engine.PhaseGameOver
	}
	g.endGameLocked()
}

func (g *Game) stopTimersLocked() {
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}
	if g.windowTimer != nil {
		g.windowTimer.Stop()
		g.windowTimer = nil
	}
	for id, t := range g.graceTimers {
		t.Stop()
		delete(g.graceTimers, id)
	}
	g.turnDeadline = time.Time{}
	g.windowDeadline = time.Time{}
	select {
	case <-g.tickStop:
	default:
		close(g.tickStop)
	}
}

// tickLoop broadcasts a once-a-second countdown while a deadline is
// running, so clients can render timers without trusting their own clocks.
func (g *Game) tickLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-g.tickStop:
			return
		case <-ticker.C:
			g.Mu.Lock()
			if g.GameOver {
				g.Mu.Unlock()
				return
			}
			pay := map[string]interface{}{"turnId": g.Eng.TurnID}
			send := false
			if !g.turnDeadline.IsZero() {
				pay["turnRemainingMs"] = time.Until(g.turnDeadline).Milliseconds()
				send = true
			}
			if !g.windowDeadline.IsZero() {
				pay["windowRemainingMs"] = time.Until(g.windowDeadline).Milliseconds()
				send = true
			}
			if send {
				g.fireEventLocked(GameEvent{Type: EventTurnTick, Payload: pay})
			}
			g.Mu.Unlock()
		}
	}
}

// ---------------------------------------------------------------------------
// Event and persistence plumbing.

// fireEventLocked broadcasts an event to the room. Assumes lock is held.
func (g *Game) fireEventLocked(ev GameEvent) {
	if g.BroadcastFn == nil {
		log.Printf("Warning: Game %s: BroadcastFn is nil, dropping event %s.", g.ID, ev.Type)
		return
	}
	g.BroadcastFn(ev)
}

// fireEventToPlayerLocked sends an event to one player. Assumes lock is
// held.
func (g *Game) fireEventToPlayerLocked(playerID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn == nil {
		log.Printf("Warning: Game %s: BroadcastToPlayerFn is nil, dropping event %s for %s.", g.ID, ev.Type, playerID)
		return
	}
	g.BroadcastToPlayerFn(playerID, ev)
}

// persistSnapshotLocked stores the full engine state. The snapshot is
// marshalled under the lock and written asynchronously. Assumes lock is
// held.
func (g *Game) persistSnapshotLocked(initial bool) {
	if database.DB == nil {
		return
	}
	buf, err := json.Marshal(g.Eng)
	if err != nil {
		log.Printf("Error: Game %s: marshalling snapshot: %v", g.ID, err)
		return
	}
	gameID := g.ID
	if initial {
		go database.UpsertInitialGameState(gameID, buf)
	} else {
		winner := g.Eng.Winner
		go database.StoreFinalGameState(gameID, winner, buf)
	}
}

// ---------------------------------------------------------------------------
// Payload helpers.

func cardPayload(c engine.Card) map[string]interface{} {
	return map[string]interface{}{"id": c.ID.String(), "kind": c.Kind.String()}
}

// discardTail returns the last n discard-pile cards as event payloads.
func discardTail(discard []engine.Card, n int) []map[string]interface{} {
	if n > len(discard) {
		n = len(discard)
	}
	out := make([]map[string]interface{}, 0, n)
	for _, c := range discard[len(discard)-n:] {
		out = append(out, cardPayload(c))
	}
	return out
}

func payloadUUID(payload map[string]interface{}, key string) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, engine.ErrInvalidAction
	}
	s, ok := payload[key].(string)
	if !ok || s == "" {
		return uuid.Nil, engine.ErrInvalidAction
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, engine.ErrInvalidAction
	}
	return id, nil
}

func payloadUUIDList(payload map[string]interface{}, key string) ([]uuid.UUID, error) {
	if payload == nil {
		return nil, engine.ErrInvalidAction
	}
	raw, ok := payload[key].([]interface{})
	if !ok {
		return nil, engine.ErrInvalidAction
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, engine.ErrInvalidAction
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, engine.ErrInvalidAction
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func payloadInt(payload map[string]interface{}, key string) (int, bool) {
	if payload == nil {
		return 0, false
	}
	switch v := payload[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
