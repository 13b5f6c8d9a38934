package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type entry struct {
	value   []byte
	version uint64
	seq     uint64
}

// MemoryStore is an in-process Store. Transactions are optimistic: the update
// function runs without the lock held and the result is committed only if the
// key's version did not move in the meantime.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]*entry
	clock     uint64
	seq       uint64
	listeners []func(Change)
	opts      options
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		opts:    buildOptions(opts),
	}
}

// Get decodes the value at path into dst and reports whether it exists.
func (s *MemoryStore) Get(_ context.Context, path string, dst any) (bool, error) {
	s.mu.Lock()
	raw, _ := s.snapshotLocked(path)
	s.mu.Unlock()
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// Children lists the direct descendants of prefix in creation order.
func (s *MemoryStore) Children(_ context.Context, prefix string) ([]Child, error) {
	type ordered struct {
		child Child
		seq   uint64
	}
	s.mu.Lock()
	var found []ordered
	for path, e := range s.entries {
		if !isDirectChild(prefix, path) {
			continue
		}
		found = append(found, ordered{
			child: Child{Key: lastSegment(path), Value: append(json.RawMessage(nil), e.value...)},
			seq:   e.seq,
		})
	}
	s.mu.Unlock()

	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })
	out := make([]Child, len(found))
	for i, f := range found {
		out[i] = f.child
	}
	return out, nil
}

// Set overwrites the value at path.
func (s *MemoryStore) Set(_ context.Context, path string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	s.mu.Lock()
	change, changed := s.commitLocked(path, encoded)
	s.mu.Unlock()
	if changed {
		s.notify(change)
	}
	return nil
}

// Push stores value under a fresh, time-ordered child key of path.
func (s *MemoryStore) Push(ctx context.Context, path string, value any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	key := id.String()
	return key, s.Set(ctx, strings.TrimSuffix(path, "/")+"/"+key, value)
}

// Remove deletes the value at path. Removing an absent key is a no-op.
func (s *MemoryStore) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	change, changed := s.commitLocked(path, nil)
	s.mu.Unlock()
	if changed {
		s.notify(change)
	}
	return nil
}

// Transaction applies fn to the value at path with compare-and-retry semantics.
func (s *MemoryStore) Transaction(_ context.Context, path string, fn UpdateFunc) error {
	for attempt := 0; attempt < s.opts.maxRetries; attempt++ {
		s.mu.Lock()
		cur, version := s.snapshotLocked(path)
		s.mu.Unlock()

		next, err := fn(cur)
		if errors.Is(err, ErrAbort) {
			return nil
		}
		if err != nil {
			return err
		}

		s.mu.Lock()
		if _, now := s.snapshotLocked(path); now != version {
			s.mu.Unlock()
			s.opts.conflict(path)
			continue
		}
		change, changed := s.commitLocked(path, next)
		s.mu.Unlock()
		if changed {
			s.notify(change)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrTooManyRetries, path)
}

// Subscribe registers fn to receive every committed change.
func (s *MemoryStore) Subscribe(fn func(Change)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Watch is Subscribe: nothing outside this process writes to a MemoryStore.
func (s *MemoryStore) Watch(fn func(Change)) {
	s.Subscribe(fn)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op for the in-process store.
func (s *MemoryStore) Close() {}

// snapshotLocked returns a copy of the value at path and its version (0 if absent).
func (s *MemoryStore) snapshotLocked(path string) ([]byte, uint64) {
	e, ok := s.entries[path]
	if !ok {
		return nil, 0
	}
	return append([]byte(nil), e.value...), e.version
}

// commitLocked writes value (nil = delete) and returns the resulting change.
// Writes that leave the value unchanged produce no change.
func (s *MemoryStore) commitLocked(path string, value []byte) (Change, bool) {
	e, exists := s.entries[path]
	var before []byte
	if exists {
		before = e.value
	}
	if sameJSON(before, value) {
		return Change{}, false
	}
	s.clock++
	switch {
	case value == nil:
		delete(s.entries, path)
	case exists:
		e.value = value
		e.version = s.clock
	default:
		s.seq++
		s.entries[path] = &entry{value: value, version: s.clock, seq: s.seq}
	}
	return Change{Path: path, Before: before, After: value}, true
}

func (s *MemoryStore) notify(c Change) {
	s.mu.Lock()
	listeners := append([]func(Change){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(c)
	}
}
