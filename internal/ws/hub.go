// Package ws is the WebSocket transport: client registry, room lobby and
// the bridge between inbound action messages and the game orchestrator.
package ws

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/config"
	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/game"
	"github.com/phoprono1/thoi-dai-meo-no-sub001/internal/models"
)

// Msg is the lobby message envelope. Game events travel as bare GameEvent
// JSON; clients tell them apart by the "type" field.
type Msg struct {
	T string                 `json:"t"`
	M map[string]interface{} `json:"m,omitempty"`
}

// Client is one live WebSocket connection bound to a player identity.
type Client struct {
	playerID uuid.UUID
	username string
	conn     *websocket.Conn
	send     chan []byte
}

// Hub owns all connections and rooms.
type Hub struct {
	cfg      config.Config
	sessions *SessionManager

	allowOrigins map[string]bool

	mu      sync.RWMutex
	clients map[uuid.UUID]*Client // by player ID; a reconnect replaces the entry

	roomsMu sync.RWMutex
	rooms   map[uuid.UUID]*Room
}

// NewHub creates a hub with the given configuration.
func NewHub(cfg config.Config, sessions *SessionManager) *Hub {
	allow := map[string]bool{}
	for _, o := range cfg.AllowedOrigins {
		allow[o] = true
	}
	return &Hub{
		cfg:          cfg,
		sessions:     sessions,
		allowOrigins: allow,
		clients:      make(map[uuid.UUID]*Client),
		rooms:        make(map[uuid.UUID]*Room),
	}
}

// ServeWS upgrades the connection, establishes (or resumes) the player
// identity and runs the read loop until the connection drops.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" && len(h.allowOrigins) > 0 && !h.allowOrigins[origin] {
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}

	playerID := uuid.New()
	username := ""
	resumed := false
	if tok := r.URL.Query().Get("session"); tok != "" {
		if id, name, err := h.sessions.ParseToken(tok); err == nil {
			playerID, username, resumed = id, name, true
		} else {
			logrus.WithError(err).Debug("rejected session token, issuing fresh identity")
		}
	}

	client := &Client{playerID: playerID, username: username, conn: conn, send: make(chan []byte, 64)}

	h.registerClient(client)
	logrus.WithFields(logrus.Fields{"player_id": playerID, "resumed": resumed}).Info("client connected")

	go h.writePump(r.Context(), client)

	token, err := h.sessions.IssueToken(playerID, username)
	if err != nil {
		logrus.WithError(err).Error("issuing session token")
	}
	h.sendTo(client, Msg{T: "welcome", M: map[string]interface{}{
		"id":       playerID.String(),
		"session":  token,
		"username": username,
	}})

	if resumed {
		h.rebindPlayer(client)
	}

	h.readLoop(r.Context(), client)

	h.mu.Lock()
	current := h.clients[playerID] == client
	if current {
		delete(h.clients, playerID)
		close(client.send)
	}
	h.mu.Unlock()
	if current {
		// A superseded connection exits without side effects; the
		// replacement already owns the identity.
		h.onClientGone(playerID)
	}
	logrus.WithField("player_id", playerID).Info("client disconnected")
}

// registerClient installs the client as the live connection for its player
// identity. A superseded connection is closed, never its send channel: its
// read loop may still be dispatching, and the cleanup in ServeWS skips
// deregistration for a replaced client, so the channel stays safe to send
// on until both pumps exit on the connection error.
func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	old := h.clients[c.playerID]
	h.clients[c.playerID] = c
	h.mu.Unlock()
	if old != nil && old.conn != nil {
		_ = old.conn.Close(websocket.StatusPolicyViolation, "superseded by newer connection")
	}
}

func (h *Hub) writePump(ctx context.Context, c *Client) {
	ping := time.NewTicker(15 * time.Second)
	defer func() {
		ping.Stop()
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, c *Client) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var m Msg
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		h.dispatch(c, m)
	}
}

func (h *Hub) dispatch(c *Client, m Msg) {
	switch m.T {
	case "set_name":
		name, _ := m.M["name"].(string)
		if name != "" {
			c.username = name
			if room := h.roomOf(c.playerID); room != nil {
				h.roomsMu.Lock()
				if p := room.player(c.playerID); p != nil {
					p.User.Username = name
				}
				h.roomsMu.Unlock()
				h.broadcastRoomInfo(room)
			}
		}
	case "list_rooms":
		h.sendTo(c, Msg{T: "rooms", M: map[string]interface{}{"list": h.roomsSnapshot()}})
	case "create_room":
		h.handleCreateRoom(c, m.M)
	case "join_room":
		h.handleJoinRoom(c, m.M)
	case "leave_room":
		h.handleLeaveRoom(c)
	case "start_game":
		h.handleStartGame(c)
	case "restart_vote":
		h.handleRestartVote(c)
	case "chat":
		h.handleChat(c, m.M)
	case "action":
		h.handleGameAction(c, m.M)
	case "pong":
		// keepalive reply, nothing to do
	default:
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "UNKNOWN_TYPE", "t": m.T}})
	}
}

// handleGameAction forwards one inbound action to the room's running game.
func (h *Hub) handleGameAction(c *Client, m map[string]interface{}) {
	actionType, _ := m["type"].(string)
	payload, _ := m["payload"].(map[string]interface{})
	if actionType == "" {
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "BAD_ACTION"}})
		return
	}
	room := h.roomOf(c.playerID)
	if room == nil {
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "NO_GAME"}})
		return
	}
	h.roomsMu.RLock()
	g := room.Game
	h.roomsMu.RUnlock()
	if g == nil {
		h.sendTo(c, Msg{T: "error", M: map[string]interface{}{"code": "NO_GAME"}})
		return
	}
	g.HandleAction(c.playerID, models.GameAction{ActionType: actionType, Payload: payload})
}

// rebindPlayer reattaches a resumed identity to its room and running game.
func (h *Hub) rebindPlayer(c *Client) {
	room := h.roomOf(c.playerID)
	if room == nil {
		return
	}
	h.roomsMu.Lock()
	if p := room.player(c.playerID); p != nil {
		p.Conn = c.conn
		p.Connected = true
		if c.username == "" && p.User != nil {
			c.username = p.User.Username
		}
	}
	g := room.Game
	h.roomsMu.Unlock()

	h.broadcastRoomInfo(room)
	if g != nil {
		g.HandleReconnect(c.playerID)
	}
}

// onClientGone handles a dropped connection: mid-game it starts the grace
// supervision, in the lobby it frees the seat.
func (h *Hub) onClientGone(playerID uuid.UUID) {
	room := h.roomOf(playerID)
	if room == nil {
		return
	}
	h.roomsMu.Lock()
	g := room.Game
	inGame := g != nil && !g.GameOver
	if !inGame {
		room.removePlayer(playerID)
		empty := len(room.Players) == 0
		if empty {
			delete(h.rooms, room.ID)
		}
		h.roomsMu.Unlock()
		if !empty {
			h.broadcastRoomInfo(room)
		}
		return
	}
	h.roomsMu.Unlock()
	g.HandleDisconnect(playerID)
}

// ---------------------------------------------------------------------------
// Send helpers.

func (h *Hub) sendTo(c *Client, msg Msg) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// SendEventToPlayer delivers one game event to a single player, if
// connected. Wired as game.BroadcastToPlayerFn.
func (h *Hub) SendEventToPlayer(playerID uuid.UUID, ev game.GameEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	// Held across the send so the cleanup in ServeWS cannot close the
	// channel between lookup and send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	c := h.clients[playerID]
	if c == nil {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// broadcastEventToRoom delivers one game event to every connected seat of
// a room. Wired as game.BroadcastFn.
func (h *Hub) broadcastEventToRoom(room *Room, ev game.GameEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.roomsMu.RLock()
	ids := make([]uuid.UUID, 0, len(room.Players))
	for _, p := range room.Players {
		ids = append(ids, p.ID)
	}
	h.roomsMu.RUnlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range ids {
		if c := h.clients[id]; c != nil {
			select {
			case c.send <- b:
			default:
			}
		}
	}
}

// broadcastToRoom sends a lobby message to every connected seat of a room.
func (h *Hub) broadcastToRoom(room *Room, msg Msg) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.roomsMu.RLock()
	ids := make([]uuid.UUID, 0, len(room.Players))
	for _, p := range room.Players {
		ids = append(ids, p.ID)
	}
	h.roomsMu.RUnlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range ids {
		if c := h.clients[id]; c != nil {
			select {
			case c.send <- b:
			default:
			}
		}
	}
}

func randSeed() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint64(b[:])
}
