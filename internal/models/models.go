// Package models holds the wire-facing player and action types shared by the
// game core and the transport layer.
package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// User is the display identity behind a seat.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// Player binds a stable player identity to its (replaceable) transport
// connection. The game core never touches Conn; only the ws layer does.
type Player struct {
	ID        uuid.UUID
	User      *User
	Conn      *websocket.Conn
	Connected bool
}

// GameAction is an inbound player action envelope.
type GameAction struct {
	ActionType string                 `json:"type"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}
