package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// changeChannel is the LISTEN/NOTIFY channel carrying committed changes.
const changeChannel = "kv_changes"

// maxNotifyPayload stays under Postgres' 8000 byte NOTIFY limit.
const maxNotifyPayload = 7800

// Versions come from one sequence so a path that is removed and written again
// never reuses a version a concurrent transaction may still hold.
const createTableSQL = `
CREATE SEQUENCE IF NOT EXISTS kv_version_seq;
CREATE TABLE IF NOT EXISTS kv (
	path       TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	version    BIGINT NOT NULL DEFAULT nextval('kv_version_seq'),
	seq        BIGSERIAL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE kv ALTER COLUMN version SET DEFAULT nextval('kv_version_seq');
CREATE INDEX IF NOT EXISTS idx_kv_seq ON kv(seq);
`

// PostgresStore keeps every path as one row of the kv table. Each row carries a
// version that transactions compare against before committing, and every
// commit is announced on the kv_changes channel.
//
// Subscribers hear only the commits made through this PostgresStore, so each
// write is handled by the process that made it even when several servers
// share the database. Watchers hear the kv_changes channel and so see every
// process's commits.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options

	mu       sync.Mutex
	local    []func(Change)
	watchers []func(Change)

	cancel     context.CancelFunc
	listenDone chan struct{}
}

// NewPostgresStore connects to Postgres, ensures the kv table exists and starts
// the change-feed listener.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...Option) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is empty")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &PostgresStore{
		pool:       pool,
		opts:       buildOptions(opts),
		cancel:     cancel,
		listenDone: make(chan struct{}),
	}
	go s.listen(listenCtx)

	slog.Info("connected to Postgres", "tag", "store")
	return s, nil
}

// Close stops the change feed and closes the connection pool.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.cancel()
	<-s.listenDone
	s.pool.Close()
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Get decodes the value at path into dst and reports whether it exists.
func (s *PostgresStore) Get(ctx context.Context, path string, dst any) (bool, error) {
	raw, _, err := s.read(ctx, path)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// Children lists the direct descendants of prefix in creation order.
func (s *PostgresStore) Children(ctx context.Context, prefix string) ([]Child, error) {
	p := strings.TrimSuffix(prefix, "/") + "/"
	rows, err := s.pool.Query(ctx, `
		SELECT path, value
		FROM kv
		WHERE starts_with(path, $1)
		  AND strpos(substr(path, char_length($1) + 1), '/') = 0
		ORDER BY seq`,
		p)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Child
	for rows.Next() {
		var path string
		var value []byte
		if err := rows.Scan(&path, &value); err != nil {
			return nil, err
		}
		out = append(out, Child{Key: lastSegment(path), Value: value})
	}
	return out, rows.Err()
}

// Set overwrites the value at path.
func (s *PostgresStore) Set(ctx context.Context, path string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return s.Transaction(ctx, path, func([]byte) ([]byte, error) { return encoded, nil })
}

// Push stores value under a fresh, time-ordered child key of path.
func (s *PostgresStore) Push(ctx context.Context, path string, value any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	key := id.String()
	return key, s.Set(ctx, strings.TrimSuffix(path, "/")+"/"+key, value)
}

// Remove deletes the value at path. Removing an absent key is a no-op.
func (s *PostgresStore) Remove(ctx context.Context, path string) error {
	return s.Transaction(ctx, path, func([]byte) ([]byte, error) { return nil, nil })
}

// Transaction applies fn to the value at path, retrying whenever another writer
// committed between the read and the conditional write.
func (s *PostgresStore) Transaction(ctx context.Context, path string, fn UpdateFunc) error {
	for attempt := 0; attempt < s.opts.maxRetries; attempt++ {
		cur, version, err := s.read(ctx, path)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if errors.Is(err, ErrAbort) {
			return nil
		}
		if err != nil {
			return err
		}
		ok, err := s.commit(ctx, path, version, cur, next)
		if err != nil {
			return err
		}
		if ok {
			if !sameJSON(cur, next) {
				s.notify(false, Change{Path: path, Before: cur, After: next})
			}
			return nil
		}
		s.opts.conflict(path)
	}
	return fmt.Errorf("%w: %s", ErrTooManyRetries, path)
}

// Subscribe registers fn to receive the changes committed through s. It is
// called synchronously after the commit.
func (s *PostgresStore) Subscribe(fn func(Change)) {
	s.mu.Lock()
	s.local = append(s.local, fn)
	s.mu.Unlock()
}

// Watch registers fn to receive every committed change, including changes
// made by other processes sharing the database.
func (s *PostgresStore) Watch(fn func(Change)) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

func (s *PostgresStore) read(ctx context.Context, path string) ([]byte, int64, error) {
	var value []byte
	var version int64
	err := s.pool.QueryRow(ctx, `SELECT value, version FROM kv WHERE path = $1`, path).Scan(&value, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	return value, version, nil
}

// commit writes next if the row still has the version that was read. It
// reports false when a concurrent writer got there first.
func (s *PostgresStore) commit(ctx context.Context, path string, version int64, before, next []byte) (bool, error) {
	if sameJSON(before, next) {
		return true, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var tag pgconn.CommandTag
	switch {
	case before == nil:
		tag, err = tx.Exec(ctx, `INSERT INTO kv (path, value) VALUES ($1, $2) ON CONFLICT (path) DO NOTHING`, path, string(next))
	case next == nil:
		tag, err = tx.Exec(ctx, `DELETE FROM kv WHERE path = $1 AND version = $2`, path, version)
	default:
		tag, err = tx.Exec(ctx, `UPDATE kv SET value = $2, version = nextval('kv_version_seq'), updated_at = now() WHERE path = $1 AND version = $3`, path, string(next), version)
	}
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	payload, err := encodeChange(Change{Path: path, Before: before, After: next})
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, changeChannel, payload); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// encodeChange serializes a change for NOTIFY. Oversized values are dropped
// and marked so the listener re-reads the current value instead.
func encodeChange(c Change) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	if len(data) <= maxNotifyPayload {
		return string(data), nil
	}
	data, err = json.Marshal(notifyEnvelope{Path: c.Path, Truncated: true, HadBefore: c.Before != nil})
	return string(data), err
}

type notifyEnvelope struct {
	Path      string          `json:"path"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	Truncated bool            `json:"truncated,omitempty"`
	HadBefore bool            `json:"had_before,omitempty"`
}

func (s *PostgresStore) listen(ctx context.Context) {
	defer close(s.listenDone)
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("change feed interrupted, reconnecting", "tag", "store", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (s *PostgresStore) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()
	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		return err
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var env notifyEnvelope
		if err := json.Unmarshal([]byte(n.Payload), &env); err != nil {
			slog.Warn("dropping malformed change notification", "tag", "store", "error", err)
			continue
		}
		c := Change{Path: env.Path, Before: env.Before, After: env.After}
		if env.Truncated {
			after, _, err := s.read(ctx, env.Path)
			if err != nil {
				slog.Warn("re-read of truncated change failed", "tag", "store", "path", env.Path, "error", err)
				continue
			}
			c.After = after
			if env.HadBefore {
				c.Before = json.RawMessage("null")
			}
		}
		s.notify(true, c)
	}
}

func (s *PostgresStore) notify(watchers bool, c Change) {
	s.mu.Lock()
	src := s.local
	if watchers {
		src = s.watchers
	}
	fns := append([]func(Change){}, src...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
