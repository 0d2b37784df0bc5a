package application

import (
	"fmt"
	"testing"
	"time"

	"inventory-pulse/internal/events"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestAggregator(clock *fakeClock) *Aggregator {
	return NewAggregator(AggregatorConfig{
		BatchWindow:  30 * time.Second,
		SizeTrigger:  50,
		ItemDebounce: 5 * time.Second,
	}, WithClock(clock))
}

func liveEvent(id, item string) events.NormalizedEvent {
	return events.NormalizedEvent{
		EventID:        id,
		ItemID:         item,
		QuantityChange: -1,
		Reason:         "sale",
		At:             time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAggregatorDebounceWithinInterval(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)}
	agg := newTestAggregator(clock)

	if !agg.Add(liveEvent("e1", "item-a")) {
		t.Fatalf("first event must be accepted")
	}
	clock.advance(2 * time.Second)
	if agg.Add(liveEvent("e2", "item-a")) {
		t.Fatalf("repeat within debounce interval must be dropped")
	}
	// The debounced event must not refresh the item's last-seen time.
	clock.advance(3100 * time.Millisecond)
	if !agg.Add(liveEvent("e3", "item-a")) {
		t.Fatalf("event past the debounce interval must be accepted")
	}
	if agg.Len() != 2 {
		t.Fatalf("expected 2 accepted events, got %d", agg.Len())
	}
}

func TestAggregatorDebounceIsPerItem(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)}
	agg := newTestAggregator(clock)

	agg.Add(liveEvent("e1", "item-a"))
	if !agg.Add(liveEvent("e2", "item-b")) {
		t.Fatalf("a different item must not be debounced")
	}
}

func TestAggregatorSizeTriggerPrecedence(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)}
	agg := newTestAggregator(clock)

	for i := 0; i < 50; i++ {
		agg.Add(liveEvent(fmt.Sprintf("e%d", i), fmt.Sprintf("item-%d", i)))
	}
	// Push past the time window too: size must still win.
	clock.advance(31 * time.Second)

	status := agg.CheckReady()
	if !status.Ready {
		t.Fatalf("expected ready batch")
	}
	if status.Reason != TriggerSize {
		t.Fatalf("size trigger must take precedence, got %q", status.Reason)
	}
	if status.EventCount != 50 || len(status.ItemIDs) != 50 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestAggregatorTimeTrigger(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)}
	agg := newTestAggregator(clock)

	agg.Add(liveEvent("e1", "item-a"))
	clock.advance(29 * time.Second)
	if agg.CheckReady().Ready {
		t.Fatalf("batch must not be ready before the window elapses")
	}
	clock.advance(time.Second)
	status := agg.CheckReady()
	if !status.Ready || status.Reason != TriggerTime {
		t.Fatalf("expected time-triggered batch, got %+v", status)
	}
}

func TestAggregatorFlushRestartsWindowAndDebounce(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)}
	agg := newTestAggregator(clock)

	agg.Add(liveEvent("e1", "item-a"))
	flushed := agg.Flush()
	if len(flushed) != 1 {
		t.Fatalf("expected one flushed event, got %d", len(flushed))
	}

	// Flush clears the debounce map, so the same item is accepted again
	// immediately and restarts the window.
	if !agg.Add(liveEvent("e2", "item-a")) {
		t.Fatalf("flush must clear per-item debounce state")
	}
	if remaining, ok := agg.TimeUntilBatch(); !ok || remaining != 30*time.Second {
		t.Fatalf("expected fresh 30s window, got %v %v", remaining, ok)
	}
}

func TestAggregatorEmptyNeverReady(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)}
	agg := newTestAggregator(clock)

	clock.advance(time.Hour)
	if agg.CheckReady().Ready {
		t.Fatalf("empty aggregator must never be ready")
	}
	if !agg.Empty() {
		t.Fatalf("expected empty aggregator")
	}
	if _, ok := agg.TimeUntilBatch(); ok {
		t.Fatalf("idle aggregator has no pending window")
	}
}

func TestAggregatorFlushReturnsAcceptanceOrderAndResets(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)}
	agg := newTestAggregator(clock)

	agg.Add(liveEvent("e1", "item-b"))
	clock.advance(time.Second)
	agg.Add(liveEvent("e2", "item-a"))
	clock.advance(time.Second)
	agg.Add(liveEvent("e3", "item-c"))

	flushed := agg.Flush()
	if len(flushed) != 3 {
		t.Fatalf("expected 3 events, got %d", len(flushed))
	}
	for i, want := range []string{"e1", "e2", "e3"} {
		if flushed[i].EventID != want {
			t.Fatalf("expected acceptance order, got %v", flushed)
		}
	}
	if !agg.Empty() || agg.CheckReady().Ready {
		t.Fatalf("flush must reset the aggregator")
	}
}

func TestAggregatorResetDiscards(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)}
	agg := newTestAggregator(clock)

	agg.AddAll([]events.NormalizedEvent{liveEvent("e1", "item-a"), liveEvent("e2", "item-b")})
	agg.Reset()
	if !agg.Empty() {
		t.Fatalf("reset must discard accumulated events")
	}
	if !agg.Add(liveEvent("e3", "item-a")) {
		t.Fatalf("reset must clear per-item debounce state")
	}
}

func TestAggregatorAffectedItemsSortedDistinct(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)}
	agg := newTestAggregator(clock)

	agg.Add(liveEvent("e1", "zeta"))
	clock.advance(6 * time.Second)
	agg.Add(liveEvent("e2", "alpha"))
	clock.advance(6 * time.Second)
	agg.Add(liveEvent("e3", "zeta"))

	items := agg.AffectedItems()
	if len(items) != 2 || items[0] != "alpha" || items[1] != "zeta" {
		t.Fatalf("expected sorted distinct items, got %v", items)
	}
}
