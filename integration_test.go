package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"saythat-server/config"
	"saythat-server/game"
	"saythat-server/speech"
	"saythat-server/store"
)

type scriptedRecognizer struct {
	transcripts map[string]string // by language tag
}

func (s scriptedRecognizer) Recognize(_ context.Context, _ string, req speech.Request) ([]any, error) {
	return []any{s.transcripts[req.LanguageCode]}, nil
}

type dictionaryTranslator struct {
	words map[string]string // by target code
}

func (d dictionaryTranslator) Translate(_ context.Context, text, _, to string) (any, error) {
	if w, ok := d.words[to]; ok {
		return []any{w}, nil
	}
	return text + "-" + to, nil
}

// setupTestServer creates a test HTTP server with the full service stack on
// the in-memory store.
func setupTestServer(t *testing.T) (*httptest.Server, *app, *store.MemoryStore) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st := store.NewMemoryStore()
	rec := scriptedRecognizer{transcripts: map[string]string{"nl-NL": "Kaas", "de-DE": "Brot"}}
	tr := dictionaryTranslator{words: map[string]string{"nl": "Kaas", "de": "Käse"}}
	a := newApp(ctx, config.Defaults(), st, rec, tr, nil, nil)
	go a.hub.Run(ctx)

	server := httptest.NewServer(a.handler)
	t.Cleanup(server.Close)
	return server, a, st
}

func call(t *testing.T, method, url, body string, wantStatus int) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d", method, url, resp.StatusCode, wantStatus)
	}
	return resp
}

// connectWS opens a projector feed for scene.
func connectWS(t *testing.T, server *httptest.Server, scene string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/projector?scene=" + scene
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads projector messages until one has the given type.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if msg["type"] == msgType {
			return msg
		}
	}
}

func TestIntegration_SpokenGuessScores(t *testing.T) {
	server, a, st := setupTestServer(t)
	ctx := context.Background()

	call(t, http.MethodPut, server.URL+"/admin/current_scene", `{"scene":"kitchen"}`, http.StatusNoContent)
	call(t, http.MethodPut, server.URL+"/admin/scenes/kitchen/nouns/Cheese", "", http.StatusAccepted)
	a.router.Wait()

	var english string
	if ok, _ := st.Get(ctx, game.DictionaryPath("kitchen", "nl-NL", "kaas"), &english); !ok || english != "cheese" {
		t.Fatalf("fan-out did not register the Dutch noun, got %q", english)
	}

	call(t, http.MethodPost, server.URL+"/api/users/u1", "", http.StatusCreated)
	call(t, http.MethodPut, server.URL+"/api/users/u1/lang", `{"name":"Nederlands","code":"nl-NL"}`, http.StatusNoContent)

	projector := connectWS(t, server, "kitchen")
	snap := readUntil(t, projector, "snapshot")
	if s := snap["snapshot"].(map[string]any); s["scene"] != "kitchen" {
		t.Fatalf("unexpected snapshot %v", snap)
	}

	resp := call(t, http.MethodPost, server.URL+"/api/users/u1/uploads", `{"timestamp":"1000"}`, http.StatusCreated)
	var upload struct {
		ObjectName string `json:"object_name"`
	}
	json.NewDecoder(resp.Body).Decode(&upload)

	event := `{"name":"` + upload.ObjectName + `","mediaLink":"https://storage/` + upload.ObjectName + `","resourceState":"exists","metageneration":"1"}`
	call(t, http.MethodPost, server.URL+"/events/storage", event, http.StatusOK)
	a.router.Wait()

	msg := readUntil(t, projector, "total_score")
	if msg["value"] != float64(1) {
		t.Errorf("projector total_score = %v, want 1", msg["value"])
	}

	var score int
	st.Get(ctx, game.ScorePath("u1", "kitchen"), &score)
	if score != 1 {
		t.Errorf("user score = %d, want 1", score)
	}
	var mix game.LangMix
	st.Get(ctx, game.TotalLangsPath("kitchen"), &mix)
	if mix["nl-NL"] != 1 || mix[game.NumLanguagesKey] != 1 {
		t.Errorf("language mix = %v", mix)
	}
	var sum game.Summary
	st.Get(ctx, game.SummaryPath("kitchen", "cheese"), &sum)
	if sum.Score != 1 || sum.Langs["nl-NL"] != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if ok, _ := st.Get(ctx, game.InProgressPath("u1", "kitchen", "1000"), new(string)); ok {
		t.Error("in-progress marker should be cleared")
	}

	// Saying the same word again judges it correct without scoring twice.
	call(t, http.MethodPost, server.URL+"/api/users/u1/uploads", `{"timestamp":"2000"}`, http.StatusCreated)
	event = strings.Replace(event, ".1000.", ".2000.", 2)
	call(t, http.MethodPost, server.URL+"/events/storage", event, http.StatusOK)
	a.router.Wait()

	st.Get(ctx, game.ScorePath("u1", "kitchen"), &score)
	if score != 1 {
		t.Errorf("repeated guess changed score to %d", score)
	}
	var state string
	st.Get(ctx, game.GuessPath("u1", "kitchen", "kaas"), &state)
	if state != game.GuessCorrect {
		t.Errorf("guess state = %q, want true", state)
	}
}

func TestIntegration_WrongGuessIsLogged(t *testing.T) {
	server, a, st := setupTestServer(t)
	ctx := context.Background()

	call(t, http.MethodPut, server.URL+"/admin/current_scene", `{"scene":"bakery"}`, http.StatusNoContent)
	call(t, http.MethodPut, server.URL+"/admin/scenes/bakery/nouns/cake", "", http.StatusAccepted)
	call(t, http.MethodPost, server.URL+"/api/users/u2", "", http.StatusCreated)
	call(t, http.MethodPut, server.URL+"/api/users/u2/lang", `{"name":"Deutsch","code":"de-DE"}`, http.StatusNoContent)
	a.router.Wait()

	projector := connectWS(t, server, "bakery")
	readUntil(t, projector, "snapshot")

	event := `{"name":"speech/u2.de-DE.5.raw","resourceState":"exists","metageneration":"1"}`
	call(t, http.MethodPost, server.URL+"/events/storage", event, http.StatusOK)
	a.router.Wait()

	msg := readUntil(t, projector, "guess")
	value := msg["value"].(map[string]any)
	if value["original"] != "brot" || value["correctness"] != "false" || value["translated"] != nil {
		t.Errorf("unexpected guess message %v", value)
	}
	if ok, _ := st.Get(ctx, game.ScorePath("u2", "bakery"), new(int)); ok {
		t.Error("wrong guess must not create a score")
	}
}
