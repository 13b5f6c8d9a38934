package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"saythat-server/game"
)

type fakeSource struct {
	current string
}

func (f fakeSource) CurrentScene(context.Context) (string, error) {
	if f.current == "" {
		return "", errors.New("none")
	}
	return f.current, nil
}

func (f fakeSource) SceneSnapshot(_ context.Context, scene string, _ int) (game.SceneSnapshot, error) {
	return game.SceneSnapshot{Scene: scene, TotalScore: len(scene)}, nil
}

func startHub(t *testing.T, src SceneSource) (*Hub, string) {
	t.Helper()
	hub := NewHub(src, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestSnapshotOnConnect(t *testing.T) {
	_, url := startHub(t, fakeSource{current: "forest"})
	conn := dial(t, url)

	var msg SnapshotMsg
	readJSON(t, conn, &msg)
	if msg.Type != "snapshot" || msg.Snapshot.Scene != "forest" {
		t.Errorf("unexpected snapshot %+v", msg)
	}
}

func TestPublishReachesOnlySceneClients(t *testing.T) {
	hub, url := startHub(t, fakeSource{})
	beach := dial(t, url+"?scene=beach")
	city := dial(t, url+"?scene=city")

	var snap SnapshotMsg
	readJSON(t, beach, &snap)
	readJSON(t, city, &snap)

	hub.Publish("beach", "total_score", "", json.RawMessage("7"))
	hub.Publish("city", "summary", "taxi", json.RawMessage(`{"num_langs":1,"score":1}`))

	var got UpdateMsg
	readJSON(t, beach, &got)
	if got.Type != "total_score" || got.Scene != "beach" || string(got.Value) != "7" {
		t.Errorf("beach got %+v", got)
	}
	readJSON(t, city, &got)
	if got.Type != "summary" || got.Key != "taxi" {
		t.Errorf("city got %+v", got)
	}
}

func TestSubscribeSwitchesScene(t *testing.T) {
	hub, url := startHub(t, fakeSource{})
	conn := dial(t, url+"?scene=beach")
	var snap SnapshotMsg
	readJSON(t, conn, &snap)

	if err := conn.WriteJSON(SubscribeMsg{Type: "subscribe", Scene: "desert"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readJSON(t, conn, &snap)
	if snap.Snapshot.Scene != "desert" {
		t.Fatalf("expected desert snapshot, got %+v", snap)
	}

	hub.Publish("beach", "total_score", "", json.RawMessage("1"))
	hub.Publish("desert", "total_score", "", json.RawMessage("2"))
	var got UpdateMsg
	readJSON(t, conn, &got)
	if got.Scene != "desert" || string(got.Value) != "2" {
		t.Errorf("expected only desert updates, got %+v", got)
	}
}

func TestUnknownMessageType(t *testing.T) {
	_, url := startHub(t, fakeSource{current: "x"})
	conn := dial(t, url)
	var snap SnapshotMsg
	readJSON(t, conn, &snap)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"flip_card"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var msg ErrorMsg
	readJSON(t, conn, &msg)
	if msg.Type != "error" || !strings.Contains(msg.Message, "flip_card") {
		t.Errorf("unexpected reply %+v", msg)
	}
}

func TestNoSceneRejected(t *testing.T) {
	_, url := startHub(t, fakeSource{})
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail without a scene")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Errorf("expected 400, got %v", resp)
	}
}

// slowSource blocks snapshot reads until released.
type slowSource struct {
	reading chan struct{}
	release chan struct{}
}

func (s slowSource) CurrentScene(context.Context) (string, error) { return "forest", nil }

func (s slowSource) SceneSnapshot(_ context.Context, scene string, _ int) (game.SceneSnapshot, error) {
	s.reading <- struct{}{}
	<-s.release
	return game.SceneSnapshot{Scene: scene}, nil
}

func TestUpdateDuringSnapshotFollowsIt(t *testing.T) {
	src := slowSource{reading: make(chan struct{}), release: make(chan struct{})}
	hub, url := startHub(t, src)
	conn := dial(t, url)

	select {
	case <-src.reading:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot was never read")
	}
	hub.Publish("forest", "total_score", "", json.RawMessage("7"))
	close(src.release)

	var snap SnapshotMsg
	readJSON(t, conn, &snap)
	if snap.Type != "snapshot" {
		t.Fatalf("first message = %q, want snapshot", snap.Type)
	}
	var upd UpdateMsg
	readJSON(t, conn, &upd)
	if upd.Type != "total_score" || string(upd.Value) != "7" {
		t.Errorf("update committed during the snapshot read was lost, got %+v", upd)
	}
}
