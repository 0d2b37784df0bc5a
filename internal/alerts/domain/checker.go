// Package domain implements stock alert detection: stateless
// threshold-crossing checks evaluated once per inventory event.
package domain

import (
	"fmt"

	"inventory-pulse/internal/events"
)

// Kind classifies an alert.
type Kind string

const (
	KindLocationOutOfStock Kind = "LOCATION_OUT_OF_STOCK"
	KindLocationLowStock   Kind = "LOCATION_LOW_STOCK"
	KindTotalOutOfStock    Kind = "TOTAL_OUT_OF_STOCK"
	KindTotalLowStock      Kind = "TOTAL_LOW_STOCK"
)

// Severity ranks an alert for delivery.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Severity maps out-of-stock kinds to critical, low-stock to warning.
func (k Kind) Severity() Severity {
	switch k {
	case KindLocationOutOfStock, KindTotalOutOfStock:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// Alert is one detected threshold crossing. It is transient: built per
// event and handed to the notification layer, never persisted here.
type Alert struct {
	Kind         Kind
	ItemID       string
	SKU          string
	LocationCode string
	Previous     int
	Current      int
	Threshold    int
	Reason       string
}

// DedupeKey identifies a crossing independent of delivery attempts.
// Combined with the source event id it makes notification creation
// idempotent under redelivery.
func (a Alert) DedupeKey() string {
	if a.LocationCode != "" {
		return fmt.Sprintf("%s:%s:%s", a.Kind, a.ItemID, a.LocationCode)
	}
	return fmt.Sprintf("%s:%s", a.Kind, a.ItemID)
}

// Checker evaluates crossing rules against event snapshots.
type Checker struct {
	locationLowStockThreshold int
}

// NewChecker constructs a checker with the location low-stock threshold.
func NewChecker(locationLowStockThreshold int) *Checker {
	return &Checker{locationLowStockThreshold: locationLowStockThreshold}
}

// Check evaluates one event and returns zero, one, or two alerts: at
// most one location-scope and one total-scope result.
//
// Both scopes alert only on a crossing within the same event, using the
// event's embedded previous/current snapshot. Events without the
// quantities a scope needs simply skip that scope.
func (c *Checker) Check(event events.NormalizedEvent) []Alert {
	var alerts []Alert
	if a, ok := c.checkLocation(event); ok {
		alerts = append(alerts, a)
	}
	if a, ok := c.checkTotal(event); ok {
		alerts = append(alerts, a)
	}
	return alerts
}

func (c *Checker) checkLocation(event events.NormalizedEvent) (Alert, bool) {
	if event.ToLocationCode == "" || event.PreviousLocationQty == nil || event.CurrentLocationQty == nil {
		return Alert{}, false
	}
	prev, curr := *event.PreviousLocationQty, *event.CurrentLocationQty

	if prev > 0 && curr == 0 {
		return Alert{
			Kind:         KindLocationOutOfStock,
			ItemID:       event.ItemID,
			SKU:          event.SKU,
			LocationCode: event.ToLocationCode,
			Previous:     prev,
			Current:      curr,
			Threshold:    c.locationLowStockThreshold,
			Reason: fmt.Sprintf("item %s out of stock at %s (was %d)",
				itemLabel(event), event.ToLocationCode, prev),
		}, true
	}
	if t := c.locationLowStockThreshold; prev >= t && curr < t && curr > 0 {
		return Alert{
			Kind:         KindLocationLowStock,
			ItemID:       event.ItemID,
			SKU:          event.SKU,
			LocationCode: event.ToLocationCode,
			Previous:     prev,
			Current:      curr,
			Threshold:    t,
			Reason: fmt.Sprintf("item %s low at %s: %d left (threshold %d)",
				itemLabel(event), event.ToLocationCode, curr, t),
		}, true
	}
	return Alert{}, false
}

func (c *Checker) checkTotal(event events.NormalizedEvent) (Alert, bool) {
	if event.PreviousTotalQty == nil || event.CurrentTotalQty == nil || event.ReorderPoint == nil {
		return Alert{}, false
	}
	prev, curr, rop := *event.PreviousTotalQty, *event.CurrentTotalQty, *event.ReorderPoint

	if prev > 0 && curr == 0 {
		return Alert{
			Kind:      KindTotalOutOfStock,
			ItemID:    event.ItemID,
			SKU:       event.SKU,
			Previous:  prev,
			Current:   curr,
			Threshold: rop,
			Reason: fmt.Sprintf("item %s out of stock across all locations (was %d)",
				itemLabel(event), prev),
		}, true
	}
	if prev >= rop && curr < rop && curr > 0 {
		return Alert{
			Kind:      KindTotalLowStock,
			ItemID:    event.ItemID,
			SKU:       event.SKU,
			Previous:  prev,
			Current:   curr,
			Threshold: rop,
			Reason: fmt.Sprintf("item %s total stock %d below reorder point %d",
				itemLabel(event), curr, rop),
		}, true
	}
	return Alert{}, false
}

func itemLabel(event events.NormalizedEvent) string {
	if event.SKU != "" {
		return event.SKU
	}
	return event.ItemID
}
