package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	forecasting "inventory-pulse/internal/forecasting/domain"
)

const defaultForecastsTable = "forecasts"

// ForecastRepository persists forecasts.
type ForecastRepository struct {
	db    DBTX
	table string
}

// NewForecastRepository constructs a repository.
func NewForecastRepository(db DBTX, opts ...ForecastOption) *ForecastRepository {
	repo := &ForecastRepository{db: db, table: defaultForecastsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ForecastOption configures the repository.
type ForecastOption func(*ForecastRepository)

// WithForecastsTable overrides the table name.
func WithForecastsTable(table string) ForecastOption {
	return func(repo *ForecastRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WriteForecasts upserts forecasts on (item_id, computed_at), so a
// recomputed batch for the same instant overwrites rather than
// duplicates.
func (r *ForecastRepository) WriteForecasts(ctx context.Context, forecasts []forecasting.Forecast) error {
	if r == nil || r.db == nil {
		return errors.New("forecast repo: nil db")
	}
	if len(forecasts) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	item_id,
	computed_at,
	horizon_days,
	avg_daily_delta,
	days_to_stockout,
	suggested_reorder_qty,
	suggested_order_date,
	confidence,
	features
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)
ON CONFLICT (item_id, computed_at)
DO UPDATE SET
	horizon_days = EXCLUDED.horizon_days,
	avg_daily_delta = EXCLUDED.avg_daily_delta,
	days_to_stockout = EXCLUDED.days_to_stockout,
	suggested_reorder_qty = EXCLUDED.suggested_reorder_qty,
	suggested_order_date = EXCLUDED.suggested_order_date,
	confidence = EXCLUDED.confidence,
	features = EXCLUDED.features`, r.table)

	for _, f := range forecasts {
		if f.ItemID == "" {
			return errors.New("forecast repo: forecast missing item id")
		}
		features, err := json.Marshal(f.Features)
		if err != nil {
			return fmt.Errorf("forecast repo: encode features for %s: %w", f.ItemID, err)
		}
		if _, err := r.db.ExecContext(
			ctx,
			query,
			f.ID,
			f.ItemID,
			f.ComputedAt.UTC(),
			f.HorizonDays,
			f.AvgDailyDelta,
			f.DaysToStockout,
			f.SuggestedReorderQty,
			f.SuggestedOrderDate,
			f.Confidence,
			features,
		); err != nil {
			return fmt.Errorf("forecast repo: write forecast for %s: %w", f.ItemID, err)
		}
	}
	return nil
}

// Latest returns the most recent forecast per item, newest computed_at
// first by item id.
func (r *ForecastRepository) Latest(ctx context.Context, limit int) ([]forecasting.Forecast, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("forecast repo: nil db")
	}
	if limit <= 0 {
		limit = 500
	}

	query := fmt.Sprintf(`
SELECT DISTINCT ON (item_id)
	id, item_id, computed_at, horizon_days, avg_daily_delta,
	days_to_stockout, suggested_reorder_qty, suggested_order_date,
	confidence, features
FROM %s
ORDER BY item_id ASC, computed_at DESC
LIMIT $1`, r.table)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []forecasting.Forecast
	for rows.Next() {
		var (
			f        forecasting.Forecast
			features []byte
		)
		if err := rows.Scan(
			&f.ID,
			&f.ItemID,
			&f.ComputedAt,
			&f.HorizonDays,
			&f.AvgDailyDelta,
			&f.DaysToStockout,
			&f.SuggestedReorderQty,
			&f.SuggestedOrderDate,
			&f.Confidence,
			&features,
		); err != nil {
			return nil, err
		}
		f.ComputedAt = f.ComputedAt.UTC()
		if len(features) > 0 {
			if err := json.Unmarshal(features, &f.Features); err != nil {
				return nil, fmt.Errorf("forecast repo: decode features for %s: %w", f.ItemID, err)
			}
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
