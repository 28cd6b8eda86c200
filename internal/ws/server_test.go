package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kwahn/chess-arena/internal/arena"
)

type wireFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) (*httptest.Server, *arena.Registry) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	store, err := arena.NewStore(fmt.Sprintf("redis://%s/0", mr.Addr()), time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := arena.NewRegistry()
	coord := arena.NewCoordinator(registry, store, arena.NewEngine())
	srv := httptest.NewServer(NewServer(registry, coord, nil))
	t.Cleanup(srv.Close)
	return srv, registry
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "test done") })
	return c
}

func send(t *testing.T, c *websocket.Conn, typ string, payload any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	frame := map[string]any{"type": typ}
	if payload != nil {
		frame["payload"] = payload
	}
	if err := wsjson.Write(ctx, c, frame); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func recv(t *testing.T, c *websocket.Conn) wireFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var f wireFrame
	if err := wsjson.Read(ctx, c, &f); err != nil {
		t.Fatalf("read: %v", err)
	}
	return f
}

func recvNothing(t *testing.T, c *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var f wireFrame
	if err := wsjson.Read(ctx, c, &f); err == nil {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestFullGameOverWire(t *testing.T) {
	srv, _ := newTestServer(t)

	clientA := dial(t, srv)
	clientB := dial(t, srv)

	// A creates
	send(t, clientA, arena.TypeCreateGame, nil)
	created := recv(t, clientA)
	if created.Type != arena.TypeGameCreated {
		t.Fatalf("frame = %+v, want game_created", created)
	}
	var gc struct {
		GameID string `json:"gameId"`
	}
	if err := json.Unmarshal(created.Payload, &gc); err != nil || gc.GameID == "" {
		t.Fatalf("game_created payload: %s (%v)", created.Payload, err)
	}

	// B joins; both sides get init_game with complementary colors
	send(t, clientB, arena.TypeJoinGame, map[string]string{"gameId": gc.GameID})
	initA, initB := recv(t, clientA), recv(t, clientB)
	if initA.Type != arena.TypeInitGame || initB.Type != arena.TypeInitGame {
		t.Fatalf("init frames = %+v / %+v", initA, initB)
	}
	var colorA, colorB struct {
		Color  string `json:"color"`
		GameID string `json:"gameId"`
	}
	_ = json.Unmarshal(initA.Payload, &colorA)
	_ = json.Unmarshal(initB.Payload, &colorB)
	if colorA.Color != "white" || colorB.Color != "black" || colorA.GameID != gc.GameID {
		t.Fatalf("colors = %+v / %+v", colorA, colorB)
	}

	// A moves; the move reaches B only
	send(t, clientA, arena.TypeMove, map[string]any{
		"gameId": gc.GameID,
		"move":   map[string]string{"from": "e2", "to": "e4"},
	})
	fwd := recv(t, clientB)
	if fwd.Type != arena.TypeMove {
		t.Fatalf("forwarded frame = %+v, want move", fwd)
	}
	var mv struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	_ = json.Unmarshal(fwd.Payload, &mv)
	if mv.From != "e2" || mv.To != "e4" {
		t.Fatalf("forwarded move = %+v", mv)
	}
	recvNothing(t, clientA)
}

func TestJoinUnknownGameOverWire(t *testing.T) {
	srv, _ := newTestServer(t)
	client := dial(t, srv)

	send(t, client, arena.TypeJoinGame, map[string]string{"gameId": "ZZZZZZ"})
	frame := recv(t, client)
	if frame.Type != arena.TypeError {
		t.Fatalf("frame = %+v, want error", frame)
	}
	var e struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(frame.Payload, &e)
	if e.Message != "Game not found" {
		t.Fatalf("message = %q", e.Message)
	}
}

func TestDisconnectPrunesRegistry(t *testing.T) {
	srv, registry := newTestServer(t)

	c := dial(t, srv)
	deadline := time.Now().Add(2 * time.Second)
	for registry.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("registry never saw the connection")
		}
		time.Sleep(10 * time.Millisecond)
	}

	_ = c.Close(websocket.StatusNormalClosure, "done")
	for registry.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("registry not pruned after disconnect: %d", registry.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
