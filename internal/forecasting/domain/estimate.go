package domain

import (
	"fmt"
	"sort"
)

// Method selects the demand estimation strategy.
type Method string

const (
	MethodMA7       Method = "ma7"
	MethodMA14      Method = "ma14"
	MethodExpSmooth Method = "exp_smooth"
)

// EstimatorConfig carries the estimator knobs.
type EstimatorConfig struct {
	// MuFloor and SigmaFloor bound the estimates away from zero.
	MuFloor    float64
	SigmaFloor float64
	// Alpha is the exponential smoothing factor, 0 < Alpha <= 1.
	Alpha float64
}

// Estimate is the per-item demand summary: estimated mean and standard
// deviation of daily consumption.
type Estimate struct {
	ItemID    string
	MuHat     float64
	SigmaDHat float64
	Method    Method
}

// EstimateDemand reduces a usage grid to one Estimate per item.
//
// For the moving-average methods mu_hat is the trailing mean at the last
// observed day; exp_smooth runs a single smoothing pass over the whole
// chronological series. sigma_d_hat is always the trailing 14-day
// population std at the last day. Both are floored by the config.
func EstimateDemand(records []DailyUsage, method Method, cfg EstimatorConfig) ([]Estimate, error) {
	switch method {
	case MethodMA7, MethodMA14, MethodExpSmooth:
	default:
		return nil, fmt.Errorf("estimate demand: unknown method %q", method)
	}
	if method == MethodExpSmooth && (cfg.Alpha <= 0 || cfg.Alpha > 1) {
		return nil, fmt.Errorf("estimate demand: smoothing alpha %v out of (0,1]", cfg.Alpha)
	}

	grouped := make(map[string][]DailyUsage)
	order := make([]string, 0)
	for _, rec := range records {
		if rec.ItemID == "" {
			return nil, fmt.Errorf("estimate demand: record missing item id")
		}
		if rec.Date.IsZero() {
			return nil, fmt.Errorf("estimate demand: record for item %s missing date", rec.ItemID)
		}
		if _, seen := grouped[rec.ItemID]; !seen {
			order = append(order, rec.ItemID)
		}
		grouped[rec.ItemID] = append(grouped[rec.ItemID], rec)
	}

	out := make([]Estimate, 0, len(order))
	for _, itemID := range order {
		group := grouped[itemID]
		sort.Slice(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })
		last := group[len(group)-1]

		var mu float64
		switch method {
		case MethodMA7:
			mu = last.MA7
		case MethodMA14:
			mu = last.MA14
		case MethodExpSmooth:
			mu = expSmoothLast(group, cfg.Alpha)
		}
		if mu < cfg.MuFloor {
			mu = cfg.MuFloor
		}
		sigma := last.Std14
		if sigma < cfg.SigmaFloor {
			sigma = cfg.SigmaFloor
		}
		out = append(out, Estimate{ItemID: itemID, MuHat: mu, SigmaDHat: sigma, Method: method})
	}
	return out, nil
}

// expSmoothLast runs one exponential smoothing pass: the level starts at
// the first observation and each later day pulls it by alpha.
func expSmoothLast(group []DailyUsage, alpha float64) float64 {
	level := 0.0
	for i, rec := range group {
		if i == 0 {
			level = rec.Consumption
			continue
		}
		level = alpha*rec.Consumption + (1-alpha)*level
	}
	return level
}
