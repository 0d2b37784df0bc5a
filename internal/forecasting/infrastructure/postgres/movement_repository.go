package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inventory-pulse/internal/events"
)

const defaultMovementsTable = "inventory_movements"

// MovementRepository loads historical inventory movements.
type MovementRepository struct {
	db    DBTX
	table string
}

// NewMovementRepository constructs a repository.
func NewMovementRepository(db DBTX, opts ...MovementOption) *MovementRepository {
	repo := &MovementRepository{db: db, table: defaultMovementsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// MovementOption configures the repository.
type MovementOption func(*MovementRepository)

// WithMovementsTable overrides the table name.
func WithMovementsTable(table string) MovementOption {
	return func(repo *MovementRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// LoadWindow loads movements in [from, to) for the given items, oldest
// first. An empty id list loads the window for all items.
func (r *MovementRepository) LoadWindow(ctx context.Context, itemIDs []string, from, to time.Time) ([]events.NormalizedEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("movement repo: nil db")
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("movement repo: window [%s, %s) is empty", from, to)
	}

	query := fmt.Sprintf(`
SELECT event_id, item_id, quantity_change, reason, occurred_at
FROM %s
WHERE occurred_at >= $1 AND occurred_at < $2`, r.table)

	var (
		rows *sql.Rows
		err  error
	)
	if len(itemIDs) == 0 {
		query += "\nORDER BY occurred_at ASC"
		rows, err = r.db.QueryContext(ctx, query, from.UTC(), to.UTC())
	} else {
		query += "\n  AND item_id = ANY($3)\nORDER BY occurred_at ASC"
		rows, err = r.db.QueryContext(ctx, query, from.UTC(), to.UTC(), itemIDs)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []events.NormalizedEvent
	for rows.Next() {
		var event events.NormalizedEvent
		if err := rows.Scan(
			&event.EventID,
			&event.ItemID,
			&event.QuantityChange,
			&event.Reason,
			&event.At,
		); err != nil {
			return nil, err
		}
		event.At = event.At.UTC()
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
