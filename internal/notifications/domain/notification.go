// Package domain defines the notification records queued for delivery.
package domain

import "time"

// Status tracks a notification through the delivery queue.
type Status string

const (
	StatusPending   Status = "pending"
	StatusClaimed   Status = "claimed"
	StatusDelivered Status = "delivered"
)

// Notification is one queued outbound message. Creation is idempotent
// on (SourceEventID, DedupeKey): redelivered events never enqueue a
// second copy of the same alert.
type Notification struct {
	ID            string
	Type          string
	Severity      string
	Message       string
	ItemID        string
	Metadata      map[string]any
	DedupeKey     string
	SourceEventID string
	Status        Status
	CreatedAt     time.Time
	DeliveredAt   *time.Time
}
