// Package events defines the transport boundary for inventory change
// events: the wire envelope, the normalized record handed to the rest of
// the system, and the polling source contract.
//
// Envelopes are validated exactly once, here. Downstream code only ever
// sees NormalizedEvent and never re-parses payloads.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Envelope is the wire format published by the inventory service.
type Envelope struct {
	EventID    string    `json:"event_id"`
	Topic      string    `json:"topic"`
	EventType  string    `json:"event_type"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Payload    Payload   `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}

// Payload carries the inventory change details. Optional fields are
// pointers so that "absent" is distinguishable from zero.
type Payload struct {
	ItemID              string    `json:"item_id"`
	QuantityChange      int       `json:"quantity_change"`
	Reason              string    `json:"reason"`
	At                  time.Time `json:"at"`
	SKU                 string    `json:"sku,omitempty"`
	FromLocationCode    string    `json:"from_location_code,omitempty"`
	ToLocationCode      string    `json:"to_location_code,omitempty"`
	PreviousLocationQty *int      `json:"previous_location_qty,omitempty"`
	CurrentLocationQty  *int      `json:"current_location_qty,omitempty"`
	PreviousTotalQty    *int      `json:"previous_total_qty,omitempty"`
	CurrentTotalQty     *int      `json:"current_total_qty,omitempty"`
	ReorderPoint        *int      `json:"reorder_point,omitempty"`
	ActorID             string    `json:"actor_id,omitempty"`
	ReferenceID         string    `json:"reference_id,omitempty"`
}

// NormalizedEvent is the validated, immutable record used by the decision
// engine. It is a transient input and is never persisted by the core.
type NormalizedEvent struct {
	EventID        string
	ItemID         string
	QuantityChange int
	Reason         string
	At             time.Time

	SKU              string
	FromLocationCode string
	ToLocationCode   string

	PreviousLocationQty *int
	CurrentLocationQty  *int
	PreviousTotalQty    *int
	CurrentTotalQty     *int
	ReorderPoint        *int

	ActorID     string
	ReferenceID string
}

// ErrMalformedEvent marks events that failed envelope validation.
var ErrMalformedEvent = errors.New("events: malformed event")

// ParsePolicy selects how the caller wants malformed envelopes handled.
type ParsePolicy int

const (
	// ParseStrict fails the whole decode call on the first bad envelope.
	ParseStrict ParsePolicy = iota
	// ParseSkip drops bad envelopes and reports them via the skipped count.
	ParseSkip
)

// Decode parses and validates a single wire envelope.
func Decode(data []byte) (NormalizedEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return NormalizedEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return Normalize(env)
}

// Normalize converts a parsed envelope into a NormalizedEvent,
// enforcing the required fields.
func Normalize(env Envelope) (NormalizedEvent, error) {
	if env.EventID == "" {
		return NormalizedEvent{}, fmt.Errorf("%w: missing event_id", ErrMalformedEvent)
	}
	p := env.Payload
	if p.ItemID == "" {
		return NormalizedEvent{}, fmt.Errorf("%w: event %s missing item_id", ErrMalformedEvent, env.EventID)
	}
	if p.At.IsZero() {
		return NormalizedEvent{}, fmt.Errorf("%w: event %s missing timestamp", ErrMalformedEvent, env.EventID)
	}
	return NormalizedEvent{
		EventID:             env.EventID,
		ItemID:              p.ItemID,
		QuantityChange:      p.QuantityChange,
		Reason:              p.Reason,
		At:                  p.At.UTC(),
		SKU:                 p.SKU,
		FromLocationCode:    p.FromLocationCode,
		ToLocationCode:      p.ToLocationCode,
		PreviousLocationQty: p.PreviousLocationQty,
		CurrentLocationQty:  p.CurrentLocationQty,
		PreviousTotalQty:    p.PreviousTotalQty,
		CurrentTotalQty:     p.CurrentTotalQty,
		ReorderPoint:        p.ReorderPoint,
		ActorID:             p.ActorID,
		ReferenceID:         p.ReferenceID,
	}, nil
}

// DecodeAll decodes a batch of raw envelopes under the given policy.
// With ParseSkip the second return value counts dropped envelopes.
func DecodeAll(raw [][]byte, policy ParsePolicy) ([]NormalizedEvent, int, error) {
	out := make([]NormalizedEvent, 0, len(raw))
	skipped := 0
	for _, data := range raw {
		event, err := Decode(data)
		if err != nil {
			if policy == ParseStrict {
				return nil, 0, err
			}
			skipped++
			continue
		}
		out = append(out, event)
	}
	return out, skipped, nil
}
