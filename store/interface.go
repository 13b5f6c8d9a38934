package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors shared by all Store implementations.
var (
	// ErrAbort is returned by an UpdateFunc to leave the current value untouched.
	ErrAbort = errors.New("transaction aborted")

	// ErrTooManyRetries is returned when a transaction keeps losing to concurrent writers.
	ErrTooManyRetries = errors.New("transaction retries exhausted")
)

// UpdateFunc computes the next value of a key from its current JSON value.
// current is nil when the key is absent. Returning nil deletes the key;
// returning ErrAbort commits nothing.
type UpdateFunc func(current []byte) ([]byte, error)

// Store abstracts the path-addressed JSON store shared by every trigger.
// Writes to a single path are atomic; there is no atomicity across paths.
type Store interface {
	// Read
	Get(ctx context.Context, path string, dst any) (bool, error)
	Children(ctx context.Context, prefix string) ([]Child, error)

	// Write
	Set(ctx context.Context, path string, value any) error
	Push(ctx context.Context, path string, value any) (string, error)
	Remove(ctx context.Context, path string) error
	Transaction(ctx context.Context, path string, fn UpdateFunc) error

	// Change feed. Subscribe sees the writes committed through this Store
	// value; Watch sees every committed write, whichever process made it.
	Subscribe(fn func(Change))
	Watch(fn func(Change))

	// Lifecycle
	Ping(ctx context.Context) error
	Close()
}

// Ensure both backends implement Store at compile time.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Child is a direct descendant of a listed path.
type Child struct {
	Key   string
	Value json.RawMessage
}

// Change describes one committed write. Before or After is nil when the
// key was absent on that side of the write.
type Change struct {
	Path   string          `json:"path"`
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
}

// Update runs a typed read-modify-write transaction at path. cur is the zero
// value when exists is false. fn may run several times under contention and
// must not have side effects.
func Update[T any](ctx context.Context, s Store, path string, fn func(cur T, exists bool) (T, error)) error {
	return s.Transaction(ctx, path, func(raw []byte) ([]byte, error) {
		var cur T
		exists := raw != nil
		if exists {
			if err := json.Unmarshal(raw, &cur); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
		next, err := fn(cur, exists)
		if err != nil {
			return nil, err
		}
		return json.Marshal(next)
	})
}

// SetIfAbsent writes value at path only when nothing is stored there yet.
// It reports whether the write happened.
func SetIfAbsent(ctx context.Context, s Store, path string, value any) (bool, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	written := false
	err = s.Transaction(ctx, path, func(raw []byte) ([]byte, error) {
		if raw != nil {
			written = false
			return nil, ErrAbort
		}
		written = true
		return encoded, nil
	})
	return written, err
}

type options struct {
	maxRetries int
	onConflict func(path string)
}

// Option configures a Store backend.
type Option func(*options)

// WithMaxRetries bounds how many times a transaction is re-run after losing a race.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithConflictHook registers a callback fired every time a transaction has to retry.
func WithConflictHook(fn func(path string)) Option {
	return func(o *options) {
		o.onConflict = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{maxRetries: 25}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o options) conflict(path string) {
	if o.onConflict != nil {
		o.onConflict(path)
	}
}
