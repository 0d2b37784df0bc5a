// Package postgres implements the notification queue over Postgres.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	notifications "inventory-pulse/internal/notifications/domain"
)

const defaultNotificationsTable = "notifications"

// NotificationStore is a Postgres implementation of the notification
// queue: idempotent creation plus exclusive claiming for delivery.
type NotificationStore struct {
	db    *sql.DB
	table string
}

// NewNotificationStore constructs a store.
func NewNotificationStore(db *sql.DB, opts ...NotificationOption) *NotificationStore {
	store := &NotificationStore{db: db, table: defaultNotificationsTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// NotificationOption configures the store.
type NotificationOption func(*NotificationStore)

// WithNotificationsTable overrides the table name.
func WithNotificationsTable(table string) NotificationOption {
	return func(store *NotificationStore) {
		if table != "" {
			store.table = table
		}
	}
}

// Create enqueues a notification. A duplicate (source_event_id,
// dedupe_key) pair is a defined no-op: the returned id is empty and no
// second record exists.
func (s *NotificationStore) Create(ctx context.Context, n notifications.Notification) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("notification store: nil db")
	}
	if n.DedupeKey == "" {
		return "", errors.New("notification store: empty dedupe key")
	}
	if n.SourceEventID == "" {
		return "", errors.New("notification store: empty source event id")
	}

	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return "", fmt.Errorf("notification store: encode metadata: %w", err)
	}
	id := n.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	type,
	severity,
	message,
	item_id,
	metadata,
	dedupe_key,
	source_event_id,
	status
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, 'pending'
)
ON CONFLICT (source_event_id, dedupe_key)
DO NOTHING
RETURNING id`, s.table)

	var created string
	err = s.db.QueryRowContext(
		ctx,
		query,
		id,
		n.Type,
		n.Severity,
		n.Message,
		n.ItemID,
		metadata,
		n.DedupeKey,
		n.SourceEventID,
	).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		// Duplicate: already enqueued by an earlier delivery of the event.
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return created, nil
}

// ClaimPending exclusively claims up to limit pending notifications.
// FOR UPDATE SKIP LOCKED keeps concurrent deliverers from claiming the
// same rows.
func (s *NotificationStore) ClaimPending(ctx context.Context, limit int) ([]notifications.Notification, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("notification store: nil db")
	}
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
UPDATE %[1]s
SET status = 'claimed', claimed_at = NOW()
WHERE id IN (
	SELECT id
	FROM %[1]s
	WHERE status = 'pending'
	ORDER BY created_at ASC
	LIMIT $1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, type, severity, message, item_id, metadata, dedupe_key, source_event_id, created_at`, s.table)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []notifications.Notification
	for rows.Next() {
		var (
			n        notifications.Notification
			metadata []byte
		)
		if err := rows.Scan(
			&n.ID,
			&n.Type,
			&n.Severity,
			&n.Message,
			&n.ItemID,
			&metadata,
			&n.DedupeKey,
			&n.SourceEventID,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
				return nil, fmt.Errorf("notification store: decode metadata for %s: %w", n.ID, err)
			}
		}
		n.Status = notifications.StatusClaimed
		n.CreatedAt = n.CreatedAt.UTC()
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkDelivered finalizes a claimed notification.
func (s *NotificationStore) MarkDelivered(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("notification store: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = 'delivered', delivered_at = $1
WHERE id = $2 AND status = 'claimed'`, s.table)
	_, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	return err
}

// Release returns a claimed notification to the pending queue so
// another attempt can pick it up.
func (s *NotificationStore) Release(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("notification store: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = 'pending', claimed_at = NULL
WHERE id = $1 AND status = 'claimed'`, s.table)
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}
