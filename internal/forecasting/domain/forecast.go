package domain

import "time"

// Forecast is one persisted forecast row for an item.
//
// DaysToStockout and SuggestedOrderDate are nil when demand is
// effectively zero (infinite runway, no urgency).
type Forecast struct {
	ID                 string
	ItemID             string
	ComputedAt         time.Time
	HorizonDays        int
	AvgDailyDelta      float64
	DaysToStockout     *float64
	SuggestedReorderQty int
	SuggestedOrderDate *time.Time
	Confidence         float64
	// Features holds serialized policy intermediates for audit and UI.
	Features map[string]any
}
