package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"saythat-server/gameerrors"
)

func TestFirstAlternative(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"plain string", "kaas", "kaas"},
		{"list", []any{"kaas", "kaasje", "Kelly"}, "kaas"},
		{"nested list", []any{[]any{"fromage", "omelette"}}, "fromage"},
		{"string slice", []string{"Käse"}, "Käse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FirstAlternative(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFirstAlternativeRejectsOddShapes(t *testing.T) {
	for _, in := range []any{nil, 7, "", []any{}, []any{map[string]string{}}} {
		if _, err := FirstAlternative(in); !errors.Is(err, gameerrors.ErrUnexpectedShape) {
			t.Errorf("FirstAlternative(%#v): expected ErrUnexpectedShape, got %v", in, err)
		}
	}
}

func TestClientTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Source != "en" || req.Target != "nl" || len(req.Q) != 1 || req.Q[0] != "cheese" {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"Kaas"}]}}`))
	}))
	defer srv.Close()

	c, err := New("key", WithEndpoint(srv.URL), WithRateLimit(0, 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Translate(context.Background(), "cheese", "en", "nl")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	got, err := FirstAlternative(res)
	if err != nil || got != "Kaas" {
		t.Errorf("got %q (%v), want Kaas", got, err)
	}
}

func TestClientTranslateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c, _ := New("key", WithEndpoint(srv.URL))
	if _, err := c.Translate(context.Background(), "cheese", "en", "fr"); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestClientRateLimitHonoursContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"x"}]}}`))
	}))
	defer srv.Close()

	c, _ := New("key", WithEndpoint(srv.URL), WithRateLimit(0.5, 1))
	if _, err := c.Translate(context.Background(), "a", "en", "fr"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Translate(ctx, "b", "en", "fr"); err == nil {
		t.Fatal("expected limiter wait to fail before the deadline")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 request to reach the server, got %d", n)
	}
}
