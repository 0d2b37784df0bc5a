// Package application wires alert detection to the notification queue.
package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	alerts "inventory-pulse/internal/alerts/domain"
	"inventory-pulse/internal/events"
	notifications "inventory-pulse/internal/notifications/domain"
	"inventory-pulse/internal/observability/metrics"
)

// NotificationCreator enqueues notifications. Create returns an empty
// id when the (source event, dedupe key) pair was already enqueued.
type NotificationCreator interface {
	Create(ctx context.Context, n notifications.Notification) (string, error)
}

// Service runs the crossing checks for each event and enqueues one
// notification per detected alert.
type Service struct {
	checker *alerts.Checker
	sink    NotificationCreator
	logger  *log.Logger
}

// NewService constructs the alert service.
func NewService(checker *alerts.Checker, sink NotificationCreator, logger *log.Logger) (*Service, error) {
	if checker == nil {
		return nil, errors.New("alert service: checker is required")
	}
	if sink == nil {
		return nil, errors.New("alert service: notification sink is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{checker: checker, sink: sink, logger: logger}, nil
}

// HandleEvent checks one event and enqueues the resulting alerts.
// It returns how many notifications were newly enqueued; duplicates
// count as handled, not as errors.
func (s *Service) HandleEvent(ctx context.Context, event events.NormalizedEvent) (int, error) {
	detected := s.checker.Check(event)
	created := 0
	for _, alert := range detected {
		id, err := s.sink.Create(ctx, buildNotification(event, alert))
		if err != nil {
			return created, fmt.Errorf("alert service: enqueue %s for item %s: %w", alert.Kind, alert.ItemID, err)
		}
		if id == "" {
			s.logger.Printf("alert service: duplicate %s for event %s, skipped", alert.DedupeKey(), event.EventID)
			continue
		}
		metrics.IncAlert(string(alert.Kind))
		created++
	}
	return created, nil
}

func buildNotification(event events.NormalizedEvent, alert alerts.Alert) notifications.Notification {
	metadata := map[string]any{
		"kind":         string(alert.Kind),
		"previous_qty": alert.Previous,
		"current_qty":  alert.Current,
		"threshold":    alert.Threshold,
	}
	if alert.SKU != "" {
		metadata["sku"] = alert.SKU
	}
	if alert.LocationCode != "" {
		metadata["location_code"] = alert.LocationCode
	}
	return notifications.Notification{
		Type:          "stock_alert",
		Severity:      string(alert.Kind.Severity()),
		Message:       alert.Reason,
		ItemID:        alert.ItemID,
		Metadata:      metadata,
		DedupeKey:     alert.DedupeKey(),
		SourceEventID: event.EventID,
	}
}
