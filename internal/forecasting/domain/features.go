// Package domain holds the pure forecasting computations: daily usage
// features, demand estimation, and the replenishment policy.
package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"inventory-pulse/internal/events"
)

// Rolling window sizes for usage statistics.
const (
	WindowShort = 7
	WindowLong  = 14
)

// DailyUsage is one (item, calendar day) row of the dense usage grid.
type DailyUsage struct {
	ItemID      string
	Date        time.Time // UTC midnight
	Consumption float64
	MA7         float64
	MA14        float64
	Std14       float64
	DayOfWeek   int // Monday = 0
	IsWeekend   bool
}

// isSale reports whether an event counts toward demand: a sale reason
// with a negative quantity change.
func isSale(e events.NormalizedEvent) bool {
	reason := strings.TrimSpace(strings.ToLower(e.Reason))
	return (reason == "sale" || reason == "sales") && e.QuantityChange < 0
}

func floorDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// BuildDailyUsage converts a window of events into a dense per-item daily
// consumption grid with rolling statistics.
//
// Only sale events accrue consumption (contribution -quantity_change);
// everything else still widens the item set and date range. Every (item,
// day) pair in [min date, max date] is present, zero-filled where no
// sales occurred. An empty input yields an empty, non-nil result.
func BuildDailyUsage(evs []events.NormalizedEvent) ([]DailyUsage, error) {
	if len(evs) == 0 {
		return []DailyUsage{}, nil
	}

	var minDate, maxDate time.Time
	itemSet := make(map[string]struct{})
	consumption := make(map[string]map[time.Time]float64)

	for _, e := range evs {
		if e.At.IsZero() {
			return nil, fmt.Errorf("build daily usage: event %s has no timestamp", e.EventID)
		}
		day := floorDay(e.At)
		itemSet[e.ItemID] = struct{}{}
		if minDate.IsZero() || day.Before(minDate) {
			minDate = day
		}
		if maxDate.IsZero() || day.After(maxDate) {
			maxDate = day
		}
		if !isSale(e) {
			continue
		}
		byDay := consumption[e.ItemID]
		if byDay == nil {
			byDay = make(map[time.Time]float64)
			consumption[e.ItemID] = byDay
		}
		byDay[day] += float64(-e.QuantityChange)
	}

	items := make([]string, 0, len(itemSet))
	for id := range itemSet {
		items = append(items, id)
	}
	sort.Strings(items)

	days := int(maxDate.Sub(minDate).Hours()/24) + 1
	out := make([]DailyUsage, 0, len(items)*days)
	for _, itemID := range items {
		series := make([]float64, 0, days)
		for d := 0; d < days; d++ {
			series = append(series, consumption[itemID][minDate.AddDate(0, 0, d)])
		}
		rows := statsForSeries(itemID, minDate, series)
		out = append(out, rows...)
	}
	return out, nil
}

// statsForSeries computes trailing rolling statistics over one item's
// dense daily series, strictly in date order.
func statsForSeries(itemID string, start time.Time, series []float64) []DailyUsage {
	rows := make([]DailyUsage, 0, len(series))
	for i, value := range series {
		date := start.AddDate(0, 0, i)
		dow := (int(date.Weekday()) + 6) % 7
		rows = append(rows, DailyUsage{
			ItemID:      itemID,
			Date:        date,
			Consumption: value,
			MA7:         trailingMean(series, i, WindowShort),
			MA14:        trailingMean(series, i, WindowLong),
			Std14:       trailingStd(series, i, WindowLong),
			DayOfWeek:   dow,
			IsWeekend:   dow >= 5,
		})
	}
	return rows
}

// trailingMean averages the window ending at index i, using however many
// observations exist early in the series.
func trailingMean(series []float64, i, window int) float64 {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}
	sum := 0.0
	for _, v := range series[lo : i+1] {
		sum += v
	}
	return sum / float64(i+1-lo)
}

// trailingStd is the population standard deviation (divide by N) over the
// trailing window. A window of one observation yields exactly zero.
func trailingStd(series []float64, i, window int) float64 {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}
	n := float64(i + 1 - lo)
	mean := trailingMean(series, i, window)
	sumSq := 0.0
	for _, v := range series[lo : i+1] {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / n)
}
