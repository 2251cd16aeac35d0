package game

import "github.com/google/uuid"

// GameEventType represents the type of a game-related event delivered over
// the transport collaborator.
type GameEventType string

// Event types. "private_" events go to a single recipient, everything else
// is broadcast to the room.
const (
	EventPrivateSyncState  GameEventType = "private_sync_state"  // per-recipient redacted state
	EventPrivateActionFail GameEventType = "private_action_fail" // rejection, sender only
	EventPrivateDraw       GameEventType = "private_draw"        // drawn card details
	EventPrivatePeek       GameEventType = "private_peek_reveal" // see-future cards
	EventPrivateCardMoved  GameEventType = "private_card_moved"  // favor/steal card details

	EventPlayerAction       GameEventType = "game_action"          // action broadcast for animation/log
	EventPlayerDraw         GameEventType = "player_draw"          // public draw notice (card hidden)
	EventPlayerDefused      GameEventType = "player_defused"       // bomb defused and reinserted
	EventCounterWindow      GameEventType = "game_counter_window"  // window opened or extended
	EventCounterResolved    GameEventType = "game_counter_resolved"
	EventPlayerTurn         GameEventType = "game_player_turn"
	EventTurnTick           GameEventType = "game_turn_tick"
	EventPlayerEliminated   GameEventType = "player_eliminated"
	EventPlayerDisconnected GameEventType = "player_disconnected"
	EventPlayerReconnected  GameEventType = "player_reconnected"
	EventGameEnd            GameEventType = "game_end"
)

// EventUser identifies a user within a GameEvent payload.
type EventUser struct {
	ID uuid.UUID `json:"id"`
}

// GameEvent is the standard envelope for outbound game events.
type GameEvent struct {
	Type    GameEventType          `json:"type"`
	User    *EventUser             `json:"user,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	State   *ClientGameState       `json:"state,omitempty"`
}
