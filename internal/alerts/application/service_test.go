package application

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	alerts "inventory-pulse/internal/alerts/domain"
	"inventory-pulse/internal/events"
	notifications "inventory-pulse/internal/notifications/domain"
)

type stubCreator struct {
	created []notifications.Notification
	seen    map[string]bool
	err     error
}

func (s *stubCreator) Create(_ context.Context, n notifications.Notification) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	key := n.SourceEventID + "|" + n.DedupeKey
	if s.seen[key] {
		return "", nil
	}
	s.seen[key] = true
	s.created = append(s.created, n)
	return "n-" + key, nil
}

func intp(v int) *int { return &v }

func crossingEvent(id string) events.NormalizedEvent {
	return events.NormalizedEvent{
		EventID:             id,
		ItemID:              "item-1",
		SKU:                 "SKU-1",
		QuantityChange:      -8,
		Reason:              "sale",
		At:                  time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC),
		ToLocationCode:      "WH-1",
		PreviousLocationQty: intp(8),
		CurrentLocationQty:  intp(0),
	}
}

func newTestService(t *testing.T, sink NotificationCreator) *Service {
	t.Helper()
	svc, err := NewService(alerts.NewChecker(5), sink, log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestServiceEnqueuesAlert(t *testing.T) {
	sink := &stubCreator{}
	svc := newTestService(t, sink)

	created, err := svc.HandleEvent(context.Background(), crossingEvent("ev-1"))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if created != 1 || len(sink.created) != 1 {
		t.Fatalf("expected one enqueued notification, got %d", created)
	}
	n := sink.created[0]
	if n.Type != "stock_alert" || n.Severity != "CRITICAL" {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if n.DedupeKey != "LOCATION_OUT_OF_STOCK:item-1:WH-1" {
		t.Fatalf("unexpected dedupe key %s", n.DedupeKey)
	}
	if n.SourceEventID != "ev-1" {
		t.Fatalf("unexpected source event %s", n.SourceEventID)
	}
	if n.Metadata["location_code"] != "WH-1" {
		t.Fatalf("metadata must carry the location, got %v", n.Metadata)
	}
}

func TestServiceDuplicateIsNoOp(t *testing.T) {
	sink := &stubCreator{}
	svc := newTestService(t, sink)

	// Redelivery of the same event: the second pass enqueues nothing.
	if _, err := svc.HandleEvent(context.Background(), crossingEvent("ev-1")); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	created, err := svc.HandleEvent(context.Background(), crossingEvent("ev-1"))
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if created != 0 || len(sink.created) != 1 {
		t.Fatalf("duplicate must not enqueue again: created=%d total=%d", created, len(sink.created))
	}
}

func TestServiceQuietEvent(t *testing.T) {
	sink := &stubCreator{}
	svc := newTestService(t, sink)

	ev := crossingEvent("ev-2")
	ev.PreviousLocationQty = intp(100)
	ev.CurrentLocationQty = intp(92)
	created, err := svc.HandleEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if created != 0 || len(sink.created) != 0 {
		t.Fatalf("no crossing must enqueue nothing")
	}
}

func TestServiceSinkFailureSurfaces(t *testing.T) {
	sink := &stubCreator{err: errors.New("db down")}
	svc := newTestService(t, sink)

	if _, err := svc.HandleEvent(context.Background(), crossingEvent("ev-3")); err == nil {
		t.Fatalf("expected sink failure to surface")
	}
}
