package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// client is one connected transport session. The session id doubles as the
// player's transport identifier in the players table.
type client struct {
	conn      *websocket.Conn
	sessionID string
	writeMu   sync.Mutex

	// sink, when set, receives events instead of the connection.
	sink func(event string, payload any)
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func (c *client) send(event string, payload any) {
	if c.sink != nil {
		c.sink(event, payload)
		return
	}
	if c.conn == nil {
		return
	}
	data, err := json.Marshal(outbound{Event: event, Data: payload})
	if err != nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.WriteMessage(websocket.TextMessage, data)
}

type hub struct {
	mu       sync.Mutex
	rooms    map[string]map[*client]struct{}
	sessions map[string]*client
}

func newHub() *hub {
	return &hub{
		rooms:    make(map[string]map[*client]struct{}),
		sessions: make(map[string]*client),
	}
}

func (h *hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[c.sessionID] = c
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, c.sessionID)
	for code, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, code)
		}
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (h *hub) join(code string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[code]
	if room == nil {
		room = make(map[*client]struct{})
		h.rooms[code] = room
	}
	room[c] = struct{}{}
}

func (h *hub) roomClients(code string) []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := make([]*client, 0, len(h.rooms[code]))
	for c := range h.rooms[code] {
		clients = append(clients, c)
	}
	return clients
}

func (h *hub) broadcastRoom(code, event string, payload any) {
	for _, c := range h.roomClients(code) {
		c.send(event, payload)
	}
}

func (h *hub) broadcastAll(event string, payload any) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.sessions))
	for _, c := range h.sessions {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.send(event, payload)
	}
}

// sendToSession delivers an event to one session. Reports whether the session
// had a live connection.
func (h *hub) sendToSession(sessionID, event string, payload any) bool {
	h.mu.Lock()
	c, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	c.send(event, payload)
	return true
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// commandHandlers maps inbound event names to their typed handlers.
var commandHandlers = map[string]func(*Server, *client, json.RawMessage){
	"create_game":       (*Server).handleCreateGame,
	"join_game":         (*Server).handleJoinGame,
	"start_game":        (*Server).handleStartGame,
	"submit_prompt":     (*Server).handleSubmitPrompt,
	"submit_drawing":    (*Server).handleSubmitDrawing,
	"submit_guess":      (*Server).handleSubmitGuess,
	"get_random_prompt": (*Server).handleRandomPrompt,
	"get_reveal":        (*Server).handleGetReveal,
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed error=%v", err)
		return
	}
	c := &client{conn: conn, sessionID: uuid.NewString()}
	s.hub.register(c)
	log.Printf("session connected session_id=%s", c.sessionID)

	if games, err := s.gw.WaitingGames(); err == nil {
		c.send("active_games_list", waitingGamesPayload(games))
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.send("error_message", map[string]any{"message": "malformed message"})
			continue
		}
		handler, ok := commandHandlers[env.Event]
		if !ok {
			c.send("error_message", map[string]any{"message": "unknown event: " + env.Event})
			continue
		}
		handler(s, c, env.Data)
	}

	log.Printf("session disconnected session_id=%s", c.sessionID)
	s.handleDisconnect(c)
	s.hub.unregister(c)
}
