package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJoinQR(t *testing.T) {
	srv, _ := newTestServer()
	c, _ := newTestClient(srv, "sess-1")
	dispatch(t, srv, c, "create_game", map[string]any{"player_name": "Ada", "game_code": "QRCOD"})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/qr/qrcod")
	if err != nil {
		t.Fatalf("get qr: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q, want image/png", ct)
	}
}

func TestJoinQRUnknownGame(t *testing.T) {
	srv, _ := newTestServer()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/qr/NOPE9")
	if err != nil {
		t.Fatalf("get qr: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
