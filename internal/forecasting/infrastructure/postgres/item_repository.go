package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	forecasting "inventory-pulse/internal/forecasting/domain"
)

const (
	defaultItemsTable       = "items"
	defaultStockLevelsTable = "stock_levels"
)

// ItemRepository is a Postgres implementation for item policy
// parameters and on-hand quantities.
type ItemRepository struct {
	db          DBTX
	itemsTable  string
	levelsTable string
}

// NewItemRepository constructs a repository.
func NewItemRepository(db DBTX, opts ...ItemOption) *ItemRepository {
	repo := &ItemRepository{
		db:          db,
		itemsTable:  defaultItemsTable,
		levelsTable: defaultStockLevelsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ItemOption configures the repository.
type ItemOption func(*ItemRepository)

// WithItemsTable overrides the items table name.
func WithItemsTable(table string) ItemOption {
	return func(repo *ItemRepository) {
		if table != "" {
			repo.itemsTable = table
		}
	}
}

// WithStockLevelsTable overrides the stock levels table name.
func WithStockLevelsTable(table string) ItemOption {
	return func(repo *ItemRepository) {
		if table != "" {
			repo.levelsTable = table
		}
	}
}

// LoadItems loads replenishment parameters for the given items, or for
// every active item when no ids are passed. Nullable policy columns come
// back as zero values and are defaulted by the caller.
func (r *ItemRepository) LoadItems(ctx context.Context, itemIDs []string) ([]forecasting.ItemPolicy, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("item repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, name, sku, lead_time_days, safety_stock_days, service_level, lead_time_std_days
FROM %s
WHERE is_active = TRUE`, r.itemsTable)

	var (
		rows *sql.Rows
		err  error
	)
	if len(itemIDs) == 0 {
		query += "\nORDER BY id ASC"
		rows, err = r.db.QueryContext(ctx, query)
	} else {
		query += "\n  AND id = ANY($1)\nORDER BY id ASC"
		rows, err = r.db.QueryContext(ctx, query, itemIDs)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []forecasting.ItemPolicy
	for rows.Next() {
		var (
			item         forecasting.ItemPolicy
			leadTime     sql.NullFloat64
			safetyStock  sql.NullFloat64
			serviceLevel sql.NullFloat64
			leadTimeStd  sql.NullFloat64
		)
		if err := rows.Scan(
			&item.ItemID,
			&item.Name,
			&item.SKU,
			&leadTime,
			&safetyStock,
			&serviceLevel,
			&leadTimeStd,
		); err != nil {
			return nil, err
		}
		item.LeadTimeDays = leadTime.Float64
		item.SafetyStockDays = safetyStock.Float64
		item.ServiceLevel = serviceLevel.Float64
		item.LeadTimeStdDays = leadTimeStd.Float64
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LoadCurrentQuantities sums on-hand stock across locations per item.
// Items with no stock rows are simply absent from the map.
func (r *ItemRepository) LoadCurrentQuantities(ctx context.Context, itemIDs []string) (map[string]float64, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("item repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT item_id, COALESCE(SUM(quantity), 0)
FROM %s`, r.levelsTable)

	var (
		rows *sql.Rows
		err  error
	)
	if len(itemIDs) == 0 {
		query += "\nGROUP BY item_id"
		rows, err = r.db.QueryContext(ctx, query)
	} else {
		query += "\nWHERE item_id = ANY($1)\nGROUP BY item_id"
		rows, err = r.db.QueryContext(ctx, query, itemIDs)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var (
			itemID string
			qty    float64
		)
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, err
		}
		result[itemID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
