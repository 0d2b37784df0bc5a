// Package application orchestrates the forecasting pipeline: event
// aggregation on the live path and the batch pipeline run itself.
package application

import (
	"sort"
	"time"

	"inventory-pulse/internal/events"
)

// Clock provides time for debounce and batch-window decisions. The
// returned values carry Go's monotonic reading, so wall-clock
// adjustments never affect triggering.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TriggerReason explains why a batch became ready.
type TriggerReason string

const (
	TriggerSize TriggerReason = "size"
	TriggerTime TriggerReason = "time"
)

// BatchStatus is the result of a readiness check.
type BatchStatus struct {
	Ready      bool
	Reason     TriggerReason
	ItemIDs    []string
	EventCount int
}

// Aggregator accumulates live events with per-item debouncing and
// decides when the burst should be processed as a batch.
//
// State machine: Idle (no events) -> Accumulating (batch timer running)
// -> Ready (caller flushes) -> Idle. Not safe for concurrent use; one
// consumer loop owns one aggregator.
type Aggregator struct {
	batchWindow time.Duration
	sizeTrigger int
	debounce    time.Duration
	clock       Clock

	accepted   []events.NormalizedEvent
	lastSeen   map[string]time.Time
	batchStart time.Time
	started    bool
}

// AggregatorConfig carries the batching knobs.
type AggregatorConfig struct {
	BatchWindow  time.Duration
	SizeTrigger  int
	ItemDebounce time.Duration
}

// AggregatorOption configures the aggregator.
type AggregatorOption func(*Aggregator)

// WithClock overrides the default clock.
func WithClock(clock Clock) AggregatorOption {
	return func(a *Aggregator) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// NewAggregator constructs an aggregator.
func NewAggregator(cfg AggregatorConfig, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		batchWindow: cfg.BatchWindow,
		sizeTrigger: cfg.SizeTrigger,
		debounce:    cfg.ItemDebounce,
		clock:       SystemClock{},
		lastSeen:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Add offers one event. It reports false when the event was debounced
// because the same item was accepted within the debounce interval.
func (a *Aggregator) Add(event events.NormalizedEvent) bool {
	now := a.clock.Now()

	if !a.started {
		a.batchStart = now
		a.started = true
	}

	if last, ok := a.lastSeen[event.ItemID]; ok && now.Sub(last) < a.debounce {
		return false
	}

	a.accepted = append(a.accepted, event)
	a.lastSeen[event.ItemID] = now
	return true
}

// AddAll offers a slice of events and returns how many were accepted.
func (a *Aggregator) AddAll(evs []events.NormalizedEvent) int {
	added := 0
	for _, e := range evs {
		if a.Add(e) {
			added++
		}
	}
	return added
}

// CheckReady evaluates the batch triggers. The size trigger takes
// precedence over the time trigger. With no accumulated events the
// aggregator always reports not-ready.
func (a *Aggregator) CheckReady() BatchStatus {
	if len(a.accepted) == 0 {
		return BatchStatus{}
	}

	status := BatchStatus{
		ItemIDs:    a.AffectedItems(),
		EventCount: len(a.accepted),
	}

	if a.sizeTrigger > 0 && len(a.accepted) >= a.sizeTrigger {
		status.Ready = true
		status.Reason = TriggerSize
		return status
	}
	if a.started && a.clock.Now().Sub(a.batchStart) >= a.batchWindow {
		status.Ready = true
		status.Reason = TriggerTime
		return status
	}
	return status
}

// Flush returns the accepted events in acceptance order and resets to
// Idle, clearing the debounce map and the batch timer.
func (a *Aggregator) Flush() []events.NormalizedEvent {
	out := a.accepted
	a.accepted = nil
	a.lastSeen = make(map[string]time.Time)
	a.batchStart = time.Time{}
	a.started = false
	return out
}

// Reset discards accumulated state without returning events. Used after
// a downstream failure so the same poisoned batch is not retried
// forever while new events can still accumulate.
func (a *Aggregator) Reset() {
	a.accepted = nil
	a.lastSeen = make(map[string]time.Time)
	a.batchStart = time.Time{}
	a.started = false
}

// AffectedItems returns the distinct item ids of accumulated events.
func (a *Aggregator) AffectedItems() []string {
	set := make(map[string]struct{}, len(a.accepted))
	for _, e := range a.accepted {
		set[e.ItemID] = struct{}{}
	}
	items := make([]string, 0, len(set))
	for id := range set {
		items = append(items, id)
	}
	sort.Strings(items)
	return items
}

// Len returns the number of accumulated events.
func (a *Aggregator) Len() int { return len(a.accepted) }

// Empty reports whether the aggregator holds no events.
func (a *Aggregator) Empty() bool { return len(a.accepted) == 0 }

// TimeUntilBatch returns the remaining time before the time trigger
// fires, and false when no batch is accumulating.
func (a *Aggregator) TimeUntilBatch() (time.Duration, bool) {
	if !a.started {
		return 0, false
	}
	remaining := a.batchWindow - a.clock.Now().Sub(a.batchStart)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
