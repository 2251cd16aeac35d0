package ws

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/engine"
	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/game"
	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/models"
)

// Room is one lobby: a fixed set of seats that becomes a game's seat order
// when the host starts it. Guarded by the hub's roomsMu.
type Room struct {
	ID         uuid.UUID
	Name       string
	HostID     uuid.UUID
	MaxPlayers int
	Players    []*models.Player

	Game *game.Game

	restartVotes map[uuid.UUID]bool
}

func (r *Room) player(playerID uuid.UUID) *models.Player {
	for _, p := range r.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (r *Room) removePlayer(playerID uuid.UUID) {
	for i, p := range r.Players {
		if p.ID == playerID {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			break
		}
	}
	if r.HostID == playerID && len(r.Players) > 0 {
		r.HostID = r.Players[0].ID
	}
}

func (r *Room) info() map[string]interface{} {
	players := make([]map[string]interface{}, len(r.Players))
	for i, p := range r.Players {
		players[i] = map[string]interface{}{
			"id":        p.ID.String(),
			"username":  p.User.Username,
			"connected": p.Connected,
		}
	}
	return map[string]interface{}{
		"id":         r.ID.String(),
		"name":       r.Name,
		"hostId":     r.HostID.String(),
		"maxPlayers": r.MaxPlayers,
		"players":    players,
		"started":    r.Game != nil && !r.Game.GameOver,
	}
}

// ---------------------------------------------------------------------------
// Lobby handlers.

func (h *Hub) handleCreateRoom(c *Client, m map[string]interface{}) {
	if h.roomOf(c.playerID) != nil {
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "ALREADY_SEATED"}})
		return
	}
	name, _ := m["name"].(string)
	maxPlayers := engine.MaxPlayers
	if v, ok := m["maxPlayers"].(float64); ok && int(v) >= engine.MinPlayers && int(v) <= engine.MaxPlayers {
		maxPlayers = int(v)
	}

	room := &Room{
		ID:           uuid.New(),
		Name:         name,
		HostID:       c.playerID,
		MaxPlayers:   maxPlayers,
		restartVotes: make(map[uuid.UUID]bool),
	}
	room.Players = append(room.Players, h.newSeat(c))

	h.roomsMu.Lock()
	h.rooms[room.ID] = room
	h.roomsMu.Unlock()

	logrus.WithFields(logrus.Fields{"room_id": room.ID, "host": c.playerID}).Info("room created")
	h.sendTo(c, Msg{T: "room_created", M: map[string]interface{}{"room": room.info()}})
}

func (h *Hub) handleJoinRoom(c *Client, m map[string]interface{}) {
	roomID, err := uuid.Parse(stringField(m, "room"))
	if err != nil {
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "NO_ROOM"}})
		return
	}
	if h.roomOf(c.playerID) != nil {
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "ALREADY_SEATED"}})
		return
	}

	h.roomsMu.Lock()
	room := h.rooms[roomID]
	switch {
	case room == nil:
		h.roomsMu.Unlock()
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "NO_ROOM"}})
		return
	case room.Game != nil && !room.Game.GameOver:
		h.roomsMu.Unlock()
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "GAME_RUNNING"}})
		return
	case len(room.Players) >= room.MaxPlayers:
		h.roomsMu.Unlock()
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "ROOM_FULL"}})
		return
	}
	room.Players = append(room.Players, h.newSeat(c))
	h.roomsMu.Unlock()

	logrus.WithFields(logrus.Fields{"room_id": room.ID, "player_id": c.playerID}).Info("player joined room")
	h.broadcastRoomInfo(room)
}

func (h *Hub) handleLeaveRoom(c *Client) {
	room := h.roomOf(c.playerID)
	if room == nil {
		return
	}
	h.roomsMu.Lock()
	if g := room.Game; g != nil && !g.GameOver {
		h.roomsMu.Unlock()
		// Leaving a live game is a disconnect; the grace timer decides the rest.
		g.HandleDisconnect(c.playerID)
		return
	}
	room.removePlayer(c.playerID)
	empty := len(room.Players) == 0
	if empty {
		delete(h.rooms, room.ID)
	}
	h.roomsMu.Unlock()

	h.sendTo(c, Msg{T: "room_left", M: map[string]interface{}{"room": room.ID.String()}})
	if !empty {
		h.broadcastRoomInfo(room)
	}
}

func (h *Hub) handleStartGame(c *Client) {
	room := h.roomOf(c.playerID)
	if room == nil {
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "NO_ROOM"}})
		return
	}

	h.roomsMu.Lock()
	switch {
	case room.HostID != c.playerID:
		h.roomsMu.Unlock()
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "NOT_HOST"}})
		return
	case room.Game != nil && !room.Game.GameOver:
		h.roomsMu.Unlock()
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "GAME_RUNNING"}})
		return
	case len(room.Players) < engine.MinPlayers:
		h.roomsMu.Unlock()
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "NOT_ENOUGH_PLAYERS"}})
		return
	}
	g := h.newGameForRoom(room)
	room.Game = g
	room.restartVotes = make(map[uuid.UUID]bool)
	h.roomsMu.Unlock()

	if err := g.Start(randSeed()); err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Error("starting game")
		h.roomsMu.Lock()
		room.Game = nil
		h.roomsMu.Unlock()
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "START_FAILED"}})
		return
	}
	h.broadcastRoomInfo(room)
}

// handleRestartVote counts one vote for a rematch. A new game with the
// same seats starts once every connected seat has voted.
func (h *Hub) handleRestartVote(c *Client) {
	room := h.roomOf(c.playerID)
	if room == nil {
		return
	}

	h.roomsMu.Lock()
	if room.Game == nil || !room.Game.GameOver {
		h.roomsMu.Unlock()
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "GAME_RUNNING"}})
		return
	}
	room.restartVotes[c.playerID] = true
	votes, needed := 0, 0
	for _, p := range room.Players {
		if p.Connected {
			needed++
			if room.restartVotes[p.ID] {
				votes++
			}
		}
	}
	unanimous := needed >= engine.MinPlayers && votes == needed
	var g *game.Game
	if unanimous {
		g = h.newGameForRoom(room)
		room.Game = g
		room.restartVotes = make(map[uuid.UUID]bool)
	}
	h.roomsMu.Unlock()

	h.broadcastToRoom(room, Msg{T: "restart_votes", M: map[string]interface{}{"votes": votes, "needed": needed}})
	if g != nil {
		if err := g.Start(randSeed()); err != nil {
			logrus.WithError(err).WithField("room_id", room.ID).Error("restarting game")
			return
		}
		h.broadcastRoomInfo(room)
	}
}

func (h *Hub) handleChat(c *Client, m map[string]interface{}) {
	text, _ := m["text"].(string)
	room := h.roomOf(c.playerID)
	if room == nil || text == "" {
		return
	}
	h.broadcastToRoom(room, Msg{T: "chat", M: map[string]interface{}{
		"from":      c.playerID.String(),
		"from_name": c.username,
		"text":      text,
	}})
}

// ---------------------------------------------------------------------------
// Room helpers.

// newGameForRoom builds a configured, wired game for the room's current
// seats. Caller holds roomsMu.
func (h *Hub) newGameForRoom(room *Room) *game.Game {
	g := game.NewGame(room.ID, room.Players)
	g.TurnDuration = h.cfg.TurnDuration()
	g.CounterWindow = h.cfg.CounterWindow()
	g.GraceDuration = h.cfg.GraceDuration()
	roomRef := room
	g.BroadcastFn = func(ev game.GameEvent) { h.broadcastEventToRoom(roomRef, ev) }
	g.BroadcastToPlayerFn = h.SendEventToPlayer
	g.SystemNoticeFn = func(text string) {
		h.broadcastToRoom(roomRef, Msg{T: "chat", M: map[string]interface{}{
			"from": "system", "text": text,
		}})
	}
	g.OnGameEnd = func(roomID, winnerID uuid.UUID) {
		h.broadcastToRoom(roomRef, Msg{T: "game_over", M: map[string]interface{}{
			"room": roomID.String(), "winner": winnerID.String(),
		}})
	}
	return g
}

func (h *Hub) newSeat(c *Client) *models.Player {
	username := c.username
	if username == "" {
		username = "player-" + c.playerID.String()[:8]
	}
	return &models.Player{
		ID:        c.playerID,
		User:      &models.User{ID: c.playerID, Username: username},
		Conn:      c.conn,
		Connected: true,
	}
}

// roomOf finds the room a player is seated in, if any.
func (h *Hub) roomOf(playerID uuid.UUID) *Room {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	for _, room := range h.rooms {
		for _, p := range room.Players {
			if p.ID == playerID {
				return room
			}
		}
	}
	return nil
}

func (h *Hub) roomsSnapshot() []map[string]interface{} {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	list := make([]map[string]interface{}, 0, len(h.rooms))
	for _, r := range h.rooms {
		list = append(list, r.info())
	}
	return list
}

func (h *Hub) broadcastRoomInfo(room *Room) {
	h.roomsMu.RLock()
	info := room.info()
	h.roomsMu.RUnlock()
	h.broadcastToRoom(room, Msg{T: "room_state", M: map[string]interface{}{"room": info}})
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
