// Package game implements the scoring and translation core: turning
// transcriptions into guesses, judging guesses against a scene's
// multilingual dictionary, maintaining the derived counters and fanning new
// English nouns out to every supported language.
package game

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"saythat-server/gameerrors"
	"saythat-server/observe"
	"saythat-server/speech"
	"saythat-server/store"
	"saythat-server/translate"
)

// Filter masks unwanted words in a guess.
type Filter interface {
	Clean(s string) string
}

// Engine runs the game operations against a Store. All methods are safe for
// concurrent use; per-key consistency comes from store transactions.
type Engine struct {
	store      store.Store
	recognizer speech.Recognizer
	translator translate.Translator
	filter     Filter
	metrics    *observe.Metrics

	encoding    string
	fanoutLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records engine activity on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEncoding sets the audio encoding passed to the recognizer.
func WithEncoding(enc string) Option {
	return func(e *Engine) {
		if enc != "" {
			e.encoding = enc
		}
	}
}

// WithFanoutLimit caps concurrent translation calls during NounAdded.
// Zero or less means unbounded.
func WithFanoutLimit(n int) Option {
	return func(e *Engine) { e.fanoutLimit = n }
}

// New creates an Engine.
func New(st store.Store, rec speech.Recognizer, tr translate.Translator, f Filter, opts ...Option) *Engine {
	e := &Engine{
		store:      st,
		recognizer: rec,
		translator: tr,
		filter:     f,
		encoding:   "LINEAR16",
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Store returns the engine's backing store.
func (e *Engine) Store() store.Store { return e.store }

// lower applies Unicode full lower-casing. A Caser keeps state, so one is
// built per call.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// CurrentScene returns the id stored at CurrentScenePath.
func (e *Engine) CurrentScene(ctx context.Context) (string, error) {
	var scene string
	ok, err := e.store.Get(ctx, CurrentScenePath, &scene)
	if err != nil {
		return "", fmt.Errorf("read current scene: %w", err)
	}
	if !ok || scene == "" {
		return "", gameerrors.ErrNoCurrentScene
	}
	return scene, nil
}

type task struct {
	name string
	run  func(context.Context) error
}

// runAll starts every task, waits for all of them and returns the failures
// by task name. limit bounds concurrency when positive.
func runAll(ctx context.Context, limit int, tasks []task) map[string]error {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	var mu sync.Mutex
	failed := make(map[string]error)
	for _, t := range tasks {
		g.Go(func() error {
			if err := t.run(ctx); err != nil {
				mu.Lock()
				failed[t.name] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// joinFailures folds named failures into one error, or nil.
func joinFailures(op string, failed map[string]error) error {
	if len(failed) == 0 {
		return nil
	}
	var b strings.Builder
	errs := make([]error, 0, len(failed))
	for i, name := range sortedKeys(failed) {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", name, failed[name])
		errs = append(errs, failed[name])
	}
	return &multiError{msg: op + ": " + b.String(), errs: errs}
}

type multiError struct {
	msg  string
	errs []error
}

func (m *multiError) Error() string   { return m.msg }
func (m *multiError) Unwrap() []error { return m.errs }
