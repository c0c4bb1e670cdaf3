package server

import (
	"encoding/json"
	"sync"
	"testing"

	"sketch-relay/internal/config"
)

type sentEvent struct {
	name    string
	payload any
}

type eventLog struct {
	mu      sync.Mutex
	entries []sentEvent
}

func (l *eventLog) record(event string, payload any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, sentEvent{name: event, payload: payload})
}

// last returns the payload of the most recent event with the given name.
func (l *eventLog) last(name string) (map[string]any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].name == name {
			payload, _ := l.entries[i].payload.(map[string]any)
			return payload, true
		}
	}
	return nil, false
}

// lastRaw returns the untyped payload of the most recent event with the
// given name, for events that carry something other than an object.
func (l *eventLog) lastRaw(name string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].name == name {
			return l.entries[i].payload, true
		}
	}
	return nil, false
}

func (l *eventLog) count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, entry := range l.entries {
		if entry.name == name {
			n++
		}
	}
	return n
}

func newTestServer() (*Server, *fakeGateway) {
	gw := newFakeGateway()
	return New(gw, config.Default()), gw
}

// newTestClient builds a connected transport session whose outbound events
// land in an event log instead of a websocket.
func newTestClient(srv *Server, sessionID string) (*client, *eventLog) {
	log := &eventLog{}
	c := &client{sessionID: sessionID, sink: log.record}
	srv.hub.register(c)
	return c, log
}

func dispatch(t *testing.T, srv *Server, c *client, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	handler, ok := commandHandlers[event]
	if !ok {
		t.Fatalf("no handler for %s", event)
	}
	handler(srv, c, data)
}

func playerIDFrom(t *testing.T, log *eventLog, event string) uint {
	t.Helper()
	payload, ok := log.last(event)
	if !ok {
		t.Fatalf("no %s event recorded", event)
	}
	id, ok := payload["player_id"].(uint)
	if !ok {
		t.Fatalf("%s payload has no player_id: %v", event, payload)
	}
	return id
}

func threadIDFrom(t *testing.T, log *eventLog, event string) uint {
	t.Helper()
	payload, ok := log.last(event)
	if !ok {
		t.Fatalf("no %s event recorded", event)
	}
	id, ok := payload["thread_id"].(uint)
	if !ok {
		t.Fatalf("%s payload has no thread_id: %v", event, payload)
	}
	return id
}

type testPlayer struct {
	name     string
	client   *client
	log      *eventLog
	playerID uint
}

// setupGame creates a game with the named players joined and, when start is
// true, started by the first player (the master).
func setupGame(t *testing.T, srv *Server, code string, start bool, names ...string) []*testPlayer {
	t.Helper()
	players := make([]*testPlayer, 0, len(names))
	for i, name := range names {
		c, log := newTestClient(srv, "sess-"+name)
		p := &testPlayer{name: name, client: c, log: log}
		if i == 0 {
			dispatch(t, srv, c, "create_game", map[string]any{"player_name": name, "game_code": code})
			p.playerID = playerIDFrom(t, log, "game_created")
		} else {
			dispatch(t, srv, c, "join_game", map[string]any{"player_name": name, "game_code": code})
			p.playerID = playerIDFrom(t, log, "game_joined")
		}
		players = append(players, p)
	}
	if start {
		dispatch(t, srv, players[0].client, "start_game", map[string]any{
			"game_code": code,
			"player_id": players[0].playerID,
		})
	}
	return players
}
