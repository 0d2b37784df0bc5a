// Package postgres adapts an append-only event table into the polling
// source contract, with per-group committed offsets.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"inventory-pulse/internal/events"
)

const (
	defaultEventTable  = "inventory_events"
	defaultOffsetTable = "event_consumer_offsets"
)

// LogSource reads inventory events past the group's committed offset.
//
// The table is append-only with a monotonically increasing log_offset;
// Commit persists the highest offset handed out so far. One LogSource
// instance serves one consumer loop.
type LogSource struct {
	db      *sql.DB
	group   string
	limit   int
	policy  events.ParsePolicy
	backoff time.Duration

	mu        sync.Mutex
	committed int64
	delivered int64
	loaded    bool
}

// Option configures the log source.
type Option func(*LogSource)

// WithPollLimit bounds the number of rows fetched per poll.
func WithPollLimit(limit int) Option {
	return func(s *LogSource) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithParsePolicy selects strict-fail or skip-and-continue decoding.
func WithParsePolicy(policy events.ParsePolicy) Option {
	return func(s *LogSource) {
		s.policy = policy
	}
}

// NewLogSource constructs a source for the given consumer group.
func NewLogSource(db *sql.DB, group string, opts ...Option) (*LogSource, error) {
	if db == nil {
		return nil, errors.New("event log source: nil db")
	}
	if group == "" {
		return nil, errors.New("event log source: empty consumer group")
	}
	s := &LogSource{
		db:      db,
		group:   group,
		limit:   500,
		policy:  events.ParseSkip,
		backoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Poll returns the next batch of events, blocking up to timeout while the
// log is empty.
func (s *LogSource) Poll(ctx context.Context, timeout time.Duration) (events.Batch, error) {
	if s == nil || s.db == nil {
		return events.Batch{}, errors.New("event log source: nil db")
	}
	if err := s.ensureOffset(ctx); err != nil {
		return events.Batch{}, err
	}

	deadline := time.Now().Add(timeout)
	for {
		batch, err := s.fetch(ctx)
		if err != nil {
			return events.Batch{}, err
		}
		if len(batch.Events) > 0 || batch.Skipped > 0 || timeout <= 0 {
			return batch, nil
		}
		if !time.Now().Before(deadline) {
			return batch, nil
		}
		select {
		case <-ctx.Done():
			return events.Batch{}, ctx.Err()
		case <-time.After(s.backoff):
		}
	}
}

// Commit persists the offset of the last delivered event.
func (s *LogSource) Commit(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("event log source: nil db")
	}
	s.mu.Lock()
	offset := s.delivered
	s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO `+defaultOffsetTable+` (group_id, committed_offset, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (group_id) DO UPDATE SET
	committed_offset = GREATEST(`+defaultOffsetTable+`.committed_offset, EXCLUDED.committed_offset),
	updated_at = NOW()`, s.group, offset)
	if err != nil {
		return fmt.Errorf("event log source: commit: %w", err)
	}
	s.mu.Lock()
	s.committed = offset
	s.mu.Unlock()
	return nil
}

// Close is a no-op; the shared *sql.DB is owned by the caller.
func (s *LogSource) Close() error { return nil }

func (s *LogSource) ensureOffset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	row := s.db.QueryRowContext(ctx, `
SELECT committed_offset FROM `+defaultOffsetTable+` WHERE group_id = $1`, s.group)
	var committed int64
	if err := row.Scan(&committed); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("event log source: load offset: %w", err)
		}
		committed = 0
	}
	s.committed = committed
	s.delivered = committed
	s.loaded = true
	return nil
}

func (s *LogSource) fetch(ctx context.Context) (events.Batch, error) {
	s.mu.Lock()
	after := s.delivered
	s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
SELECT log_offset, envelope
FROM `+defaultEventTable+`
WHERE log_offset > $1
ORDER BY log_offset ASC
LIMIT $2`, after, s.limit)
	if err != nil {
		return events.Batch{}, fmt.Errorf("event log source: fetch: %w", err)
	}
	defer rows.Close()

	var batch events.Batch
	last := after
	for rows.Next() {
		var offset int64
		var raw []byte
		if err := rows.Scan(&offset, &raw); err != nil {
			return events.Batch{}, fmt.Errorf("event log source: scan: %w", err)
		}
		event, decodeErr := events.Decode(raw)
		if decodeErr != nil {
			if s.policy == events.ParseStrict {
				return events.Batch{}, decodeErr
			}
			batch.Skipped++
			last = offset
			continue
		}
		batch.Events = append(batch.Events, event)
		last = offset
	}
	if err := rows.Err(); err != nil {
		return events.Batch{}, fmt.Errorf("event log source: iterate: %w", err)
	}

	s.mu.Lock()
	if last > s.delivered {
		s.delivered = last
	}
	s.mu.Unlock()
	return batch, nil
}
