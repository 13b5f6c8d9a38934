// Package triggers turns committed store changes into game operations, the
// way database triggers would: a pending guess is judged, a score change
// updates the scene totals, and a new English noun is translated.
package triggers

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"saythat-server/game"
	"saythat-server/lang"
	"saythat-server/observe"
	"saythat-server/store"
)

// Engine is the set of game operations the router invokes.
type Engine interface {
	JudgeGuessedNoun(ctx context.Context, userID, scene, noun string, guessedBefore bool) error
	SettleCollectiveScore(ctx context.Context, userID, scene string) error
	NounAdded(ctx context.Context, scene, noun string) error
}

// Feed receives aggregate changes for live display. Publish must not block.
type Feed interface {
	Publish(scene, kind, key string, value json.RawMessage)
}

// Projector message kinds.
const (
	KindTotalScore = "total_score"
	KindTotalLangs = "total_langs"
	KindSummary    = "summary"
	KindGuess      = "guess"
)

// Router dispatches store changes. Handle runs the game operations and should
// see each write once, from the process that made it; Forward relays
// aggregates to projectors and should see every write. Each triggered
// operation runs in its own goroutine; failures are logged and not retried.
type Router struct {
	ctx     context.Context
	engine  Engine
	feed    Feed
	metrics *observe.Metrics

	wg sync.WaitGroup
}

// NewRouter creates a Router. feed and metrics may be nil.
func NewRouter(ctx context.Context, engine Engine, feed Feed, metrics *observe.Metrics) *Router {
	return &Router{ctx: ctx, engine: engine, feed: feed, metrics: metrics}
}

// Handle runs the game operation a change triggers. It is meant to be passed
// to store.Subscribe.
func (r *Router) Handle(c store.Change) {
	seg, ok := splitChange(c)
	if !ok {
		return
	}
	switch {
	case match(seg, "users", "*", "scenes", "*", "nouns", "*"):
		r.onGuessWritten(seg[1], seg[3], seg[5], c)
	case match(seg, "users", "*", "scenes", "*", "score"):
		r.onScoreWritten(seg[1], seg[3], c)
	case match(seg, "admin", "scenes", "*", "nouns", lang.Source, "*"):
		if c.After != nil {
			r.run("noun_added", func(ctx context.Context) error {
				return r.engine.NounAdded(ctx, seg[2], seg[5])
			})
		}
	}
}

// Forward publishes aggregate changes to the projector feed. It is meant to be
// passed to store.Watch.
func (r *Router) Forward(c store.Change) {
	if r.feed == nil {
		return
	}
	seg, ok := splitChange(c)
	if !ok {
		return
	}
	switch {
	case match(seg, "total_scores", "*"):
		r.publish(seg[1], KindTotalScore, "", c.After)
	case match(seg, "total_langs", "*"):
		r.publish(seg[1], KindTotalLangs, "", c.After)
	case match(seg, "summary", "*", "*"):
		r.publish(seg[1], KindSummary, seg[2], c.After)
	case match(seg, "all_guesses", "*", "*"):
		if c.After != nil {
			r.publish(seg[1], KindGuess, seg[2], c.After)
		}
	}
}

// Wait blocks until every operation started so far has finished, including
// operations triggered by their writes.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) onGuessWritten(userID, scene, noun string, c store.Change) {
	var state string
	if c.After == nil || json.Unmarshal(c.After, &state) != nil || state != game.GuessPending {
		return
	}
	guessedBefore := c.Before != nil
	r.run("judge", func(ctx context.Context) error {
		return r.engine.JudgeGuessedNoun(ctx, userID, scene, noun, guessedBefore)
	})
}

func (r *Router) onScoreWritten(userID, scene string, c store.Change) {
	before, err := intOrZero(c.Before)
	if err != nil {
		slog.Warn("score is not a number", "tag", "trigger", "path", c.Path, "error", err)
		return
	}
	after, err := intOrZero(c.After)
	if err != nil {
		slog.Warn("score is not a number", "tag", "trigger", "path", c.Path, "error", err)
		return
	}
	diff := after - before
	if diff == 0 {
		return
	}
	r.run("collective_scores", func(ctx context.Context) error {
		return r.engine.SettleCollectiveScore(ctx, userID, scene)
	})
}

func (r *Router) run(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := fn(r.ctx)
		r.metrics.RecordTrigger(r.ctx, name, err)
		if err != nil {
			slog.Error("trigger failed", "tag", "trigger", "trigger_name", name, "error", err)
		}
	}()
}

func (r *Router) publish(scene, kind, key string, value json.RawMessage) {
	r.feed.Publish(scene, kind, key, value)
}

func splitChange(c store.Change) ([]string, bool) {
	seg, err := store.Split(c.Path)
	if err != nil {
		slog.Warn("ignoring change with undecodable path", "tag", "trigger", "path", c.Path, "error", err)
		return nil, false
	}
	return seg, true
}

// match reports whether seg has the shape of pattern, where "*" matches any
// single segment.
func match(seg []string, pattern ...string) bool {
	if len(seg) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p != "*" && p != seg[i] {
			return false
		}
	}
	return true
}

// intOrZero decodes a stored counter; absent and null read as zero.
func intOrZero(raw json.RawMessage) (int, error) {
	if raw == nil {
		return 0, nil
	}
	var n *int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	if n == nil {
		return 0, nil
	}
	return *n, nil
}
