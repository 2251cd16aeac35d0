package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/engine"
)

// ClientCard is a fully revealed card in a client-facing state.
type ClientCard struct {
	ID   uuid.UUID `json:"id"`
	Kind string    `json:"kind"`
}

// ClientPlayerState is one seat as seen by a particular recipient. Hand is
// populated only for the recipient's own seat; everyone else gets a count.
type ClientPlayerState struct {
	PlayerID      uuid.UUID    `json:"playerId"`
	Username      string       `json:"username,omitempty"`
	HandSize      int          `json:"handSize"`
	Hand          []ClientCard `json:"hand,omitempty"`
	Alive         bool         `json:"alive"`
	Connected     bool         `json:"connected"`
	IsCurrentTurn bool         `json:"isCurrentTurn"`
}

// ClientPending describes the in-flight multi-step action. Peeked cards are
// included only for the peeking player.
type ClientPending struct {
	Type     string       `json:"type"`
	PlayerID uuid.UUID    `json:"playerId"`
	TargetID uuid.UUID    `json:"targetId,omitempty"`
	Peeked   []ClientCard `json:"peeked,omitempty"`
}

// ClientCounterWindow describes an open interrupt window.
type ClientCounterWindow struct {
	PlayKind    string    `json:"playKind"`
	DeclaredBy  uuid.UUID `json:"declaredBy"`
	Depth       int       `json:"depth"`
	TopDeclarer uuid.UUID `json:"topDeclarer"`
	DeadlineMS  int64     `json:"deadlineMs"`
}

// ClientLastPlayed echoes the most recent declared action.
type ClientLastPlayed struct {
	PlayerID  uuid.UUID   `json:"playerId"`
	Kind      string      `json:"kind"`
	CardIDs   []uuid.UUID `json:"cardIds"`
	TargetID  uuid.UUID   `json:"targetId,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ClientGameState is the redacted full-state snapshot pushed to one
// recipient. What a recipient cannot legitimately know is either counted
// or omitted.
type ClientGameState struct {
	GameID   uuid.UUID `json:"gameId"`
	RoomID   uuid.UUID `json:"roomId"`
	Started  bool      `json:"started"`
	GameOver bool      `json:"gameOver"`
	Flagged  bool      `json:"flagged,omitempty"`

	Phase           string    `json:"phase"`
	TurnID          int       `json:"turnId"`
	CurrentPlayerID uuid.UUID `json:"currentPlayerId"`
	DrawsOwed       int       `json:"drawsOwed"`

	DeckSize int          `json:"deckSize"`
	Discard  []ClientCard `json:"discard"`

	Players []ClientPlayerState `json:"players"`

	Pending       *ClientPending       `json:"pending,omitempty"`
	CounterWindow *ClientCounterWindow `json:"counterWindow,omitempty"`
	LastPlayed    *ClientLastPlayed    `json:"lastPlayed,omitempty"`

	WinnerID        uuid.UUID `json:"winnerId,omitempty"`
	TurnRemainingMS int64     `json:"turnRemainingMs,omitempty"`
}

// ClientStateFor projects the authoritative state for one recipient.
// Assumes lock is held.
func (g *Game) ClientStateFor(forPlayer uuid.UUID) *ClientGameState {
	st := &ClientGameState{
		GameID:   g.ID,
		RoomID:   g.RoomID,
		Started:  g.Started,
		GameOver: g.GameOver,
		Flagged:  g.Flagged,
	}
	if g.Eng == nil {
		return st
	}

	st.Phase = g.Eng.Phase.String()
	st.TurnID = g.Eng.TurnID
	st.CurrentPlayerID = g.Eng.CurrentPlayerID()
	st.DrawsOwed = g.Eng.DrawsOwed
	st.DeckSize = len(g.Eng.Deck)
	st.WinnerID = g.Eng.Winner
	if !g.turnDeadline.IsZero() {
		st.TurnRemainingMS = time.Until(g.turnDeadline).Milliseconds()
	}

	st.Discard = make([]ClientCard, len(g.Eng.Discard))
	for i, c := range g.Eng.Discard {
		st.Discard[i] = ClientCard{ID: c.ID, Kind: c.Kind.String()}
	}

	st.Players = make([]ClientPlayerState, len(g.Eng.Players))
	for i, ps := range g.Eng.Players {
		cp := ClientPlayerState{
			PlayerID:      ps.ID,
			HandSize:      len(ps.Hand),
			Alive:         ps.Alive,
			Connected:     !ps.Away,
			IsCurrentTurn: ps.ID == st.CurrentPlayerID && !g.Eng.IsOver(),
		}
		if p := g.playerLocked(ps.ID); p != nil && p.User != nil {
			cp.Username = p.User.Username
		}
		if ps.ID == forPlayer {
			cp.Hand = make([]ClientCard, len(ps.Hand))
			for j, c := range ps.Hand {
				cp.Hand[j] = ClientCard{ID: c.ID, Kind: c.Kind.String()}
			}
		}
		st.Players[i] = cp
	}

	if g.Eng.Pending.Type != engine.PendingNone {
		pend := &ClientPending{
			PlayerID: g.Eng.Pending.PlayerID,
			TargetID: g.Eng.Pending.TargetID,
		}
		switch g.Eng.Pending.Type {
		case engine.PendingDefuseInsert:
			pend.Type = "defuse_insert"
		case engine.PendingFavorGive:
			pend.Type = "favor_give"
		case engine.PendingPeekAck:
			pend.Type = "peek_ack"
			if forPlayer == g.Eng.Pending.PlayerID {
				pend.Peeked = make([]ClientCard, len(g.Eng.Pending.Peeked))
				for j, c := range g.Eng.Pending.Peeked {
					pend.Peeked[j] = ClientCard{ID: c.ID, Kind: c.Kind.String()}
				}
			}
		}
		st.Pending = pend
	}

	if g.Eng.Interrupt.Active {
		st.CounterWindow = &ClientCounterWindow{
			PlayKind:    g.Eng.Interrupt.Play.Kind.String(),
			DeclaredBy:  g.Eng.Interrupt.Play.Actor,
			Depth:       len(g.Eng.Interrupt.Counters),
			TopDeclarer: g.Eng.Interrupt.TopDeclarer(),
			DeadlineMS:  g.windowDeadline.UnixMilli(),
		}
	}

	if lp := g.Eng.LastPlayed; lp != nil {
		st.LastPlayed = &ClientLastPlayed{
			PlayerID:  lp.PlayerID,
			Kind:      lp.Kind.String(),
			CardIDs:   lp.CardIDs,
			TargetID:  lp.TargetID,
			Timestamp: lp.Timestamp.UnixMilli(),
		}
	}
	return st
}

// sendSyncLocked pushes a fresh redacted snapshot to one player. Assumes
// lock is held.
func (g *Game) sendSyncLocked(playerID uuid.UUID) {
	g.fireEventToPlayerLocked(playerID, GameEvent{
		Type:  EventPrivateSyncState,
		State: g.ClientStateFor(playerID),
	})
}

// broadcastSyncLocked pushes individually redacted snapshots to every
// connected player. Assumes lock is held.
func (g *Game) broadcastSyncLocked() {
	for _, p := range g.Players {
		if p.Connected {
			g.sendSyncLocked(p.ID)
		}
	}
}
