package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"inventory-pulse/internal/events"
	"inventory-pulse/internal/forecasting/domain"
)

// ItemStore loads replenishment parameters and on-hand quantities.
// A nil or empty id list means every active item.
type ItemStore interface {
	LoadItems(ctx context.Context, itemIDs []string) ([]domain.ItemPolicy, error)
	LoadCurrentQuantities(ctx context.Context, itemIDs []string) (map[string]float64, error)
}

// MovementStore loads historical inventory movements for the feature
// window.
type MovementStore interface {
	LoadWindow(ctx context.Context, itemIDs []string, from, to time.Time) ([]events.NormalizedEvent, error)
}

// ForecastStore persists computed forecasts.
type ForecastStore interface {
	WriteForecasts(ctx context.Context, forecasts []domain.Forecast) error
}

// PipelineConfig carries the per-run knobs.
type PipelineConfig struct {
	Method       domain.Method
	Estimator    domain.EstimatorConfig
	Policy       domain.PolicyConfig
	HorizonDays  int
	LookbackDays int
	// Defaults applied to items with unset policy parameters.
	DefaultServiceLevel    float64
	DefaultLeadTimeDays    float64
	DefaultSafetyStockDays float64
}

// RunSummary reports what one pipeline run produced.
type RunSummary struct {
	Items      int
	Forecasts  int
	ZeroDemand int
	Elapsed    time.Duration
}

// Pipeline computes and persists forecasts for a set of items. One run
// is load -> features -> estimate -> policy -> write; a failed run
// writes nothing.
type Pipeline struct {
	items     ItemStore
	movements MovementStore
	forecasts ForecastStore
	cfg       PipelineConfig
	logger    *log.Logger
}

// NewPipeline constructs a pipeline. All three stores are required.
func NewPipeline(items ItemStore, movements MovementStore, forecasts ForecastStore, cfg PipelineConfig, logger *log.Logger) (*Pipeline, error) {
	if items == nil {
		return nil, errors.New("pipeline: item store is required")
	}
	if movements == nil {
		return nil, errors.New("pipeline: movement store is required")
	}
	if forecasts == nil {
		return nil, errors.New("pipeline: forecast store is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 2 * domain.WindowLong
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = domain.WindowLong
	}
	if cfg.Method == "" {
		cfg.Method = domain.MethodMA14
	}
	return &Pipeline{
		items:     items,
		movements: movements,
		forecasts: forecasts,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// RunAll recomputes forecasts for every active item.
func (p *Pipeline) RunAll(ctx context.Context, now time.Time) (RunSummary, error) {
	return p.RunForItems(ctx, nil, now)
}

// RunForItems recomputes forecasts for the given items. Items without a
// single movement in the lookback window get a zero-demand baseline
// forecast rather than being silently skipped.
func (p *Pipeline) RunForItems(ctx context.Context, itemIDs []string, now time.Time) (RunSummary, error) {
	started := time.Now()

	items, err := p.items.LoadItems(ctx, itemIDs)
	if err != nil {
		return RunSummary{}, fmt.Errorf("pipeline: load items: %w", err)
	}
	if len(items) == 0 {
		p.logger.Printf("pipeline: no items to forecast")
		return RunSummary{Elapsed: time.Since(started)}, nil
	}

	ids := make([]string, 0, len(items))
	for i := range items {
		p.applyDefaults(&items[i])
		ids = append(ids, items[i].ItemID)
	}

	quantities, err := p.items.LoadCurrentQuantities(ctx, ids)
	if err != nil {
		return RunSummary{}, fmt.Errorf("pipeline: load quantities: %w", err)
	}

	from := now.AddDate(0, 0, -p.cfg.LookbackDays)
	movements, err := p.movements.LoadWindow(ctx, ids, from, now)
	if err != nil {
		return RunSummary{}, fmt.Errorf("pipeline: load movements: %w", err)
	}

	usage, err := domain.BuildDailyUsage(movements)
	if err != nil {
		return RunSummary{}, fmt.Errorf("pipeline: build features: %w", err)
	}
	estimates, err := domain.EstimateDemand(usage, p.cfg.Method, p.cfg.Estimator)
	if err != nil {
		return RunSummary{}, fmt.Errorf("pipeline: estimate demand: %w", err)
	}
	byItem := make(map[string]domain.Estimate, len(estimates))
	for _, est := range estimates {
		byItem[est.ItemID] = est
	}

	summary := RunSummary{Items: len(items)}
	forecasts := make([]domain.Forecast, 0, len(items))
	for _, item := range items {
		est, ok := byItem[item.ItemID]
		if !ok {
			// No movements in the window: a quiet item, not an error.
			est = domain.Estimate{
				ItemID:    item.ItemID,
				MuHat:     p.cfg.Estimator.MuFloor,
				SigmaDHat: p.cfg.Estimator.SigmaFloor,
				Method:    p.cfg.Method,
			}
			summary.ZeroDemand++
		}
		result, err := domain.Evaluate(est, item, quantities[item.ItemID], now, p.cfg.Policy)
		if err != nil {
			return RunSummary{}, fmt.Errorf("pipeline: %w", err)
		}
		forecasts = append(forecasts, p.buildForecast(item, est, result, quantities[item.ItemID], now))
	}

	if err := p.forecasts.WriteForecasts(ctx, forecasts); err != nil {
		return RunSummary{}, fmt.Errorf("pipeline: write forecasts: %w", err)
	}

	summary.Forecasts = len(forecasts)
	summary.Elapsed = time.Since(started)
	p.logger.Printf("pipeline: wrote %d forecasts for %d items (%d zero-demand) in %s",
		summary.Forecasts, summary.Items, summary.ZeroDemand, summary.Elapsed.Round(time.Millisecond))
	return summary, nil
}

func (p *Pipeline) applyDefaults(item *domain.ItemPolicy) {
	if item.ServiceLevel <= 0 || item.ServiceLevel >= 1 {
		item.ServiceLevel = p.cfg.DefaultServiceLevel
	}
	if item.LeadTimeDays <= 0 {
		item.LeadTimeDays = p.cfg.DefaultLeadTimeDays
	}
	if item.SafetyStockDays < 0 {
		item.SafetyStockDays = p.cfg.DefaultSafetyStockDays
	}
}

func (p *Pipeline) buildForecast(item domain.ItemPolicy, est domain.Estimate, result domain.Result, currentQty float64, now time.Time) domain.Forecast {
	f := domain.Forecast{
		ID:                  uuid.NewString(),
		ItemID:              item.ItemID,
		ComputedAt:          now.UTC(),
		HorizonDays:         p.cfg.HorizonDays,
		AvgDailyDelta:       est.MuHat,
		SuggestedReorderQty: result.SuggestedQty,
		Confidence:          result.Confidence,
		Features: map[string]any{
			"method":         string(est.Method),
			"sigma_d_hat":    est.SigmaDHat,
			"lead_time_days": item.LeadTimeDays,
			"service_level":  item.ServiceLevel,
			"z":              result.Z,
			"safety_stock":   result.SafetyStock,
			"reorder_point":  result.ReorderPoint,
			"current_qty":    currentQty,
		},
	}
	if !math.IsInf(result.DaysToStockout, 1) {
		dso := result.DaysToStockout
		f.DaysToStockout = &dso
	}
	if result.HasOrderDate {
		d := result.OrderDate
		f.SuggestedOrderDate = &d
	}
	return f
}
