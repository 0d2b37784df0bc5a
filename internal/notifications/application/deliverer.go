// Package application runs notification delivery: claim pending rows,
// send them out, and settle the claims.
package application

import (
	"context"
	"errors"
	"log"
	"time"

	"inventory-pulse/internal/alerts/notify"
	notifications "inventory-pulse/internal/notifications/domain"
	"inventory-pulse/internal/observability/metrics"
	"inventory-pulse/internal/retry"
)

// Queue is the claim side of the notification store.
type Queue interface {
	ClaimPending(ctx context.Context, limit int) ([]notifications.Notification, error)
	MarkDelivered(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

// DelivererConfig carries the delivery loop knobs.
type DelivererConfig struct {
	ClaimLimit   int
	PollInterval time.Duration
	Retry        retry.Policy
}

// Deliverer drains the notification queue into a channel. Claims are
// exclusive, so multiple deliverer processes can run side by side.
type Deliverer struct {
	queue   Queue
	channel notify.Channel
	cfg     DelivererConfig
	logger  *log.Logger
}

// NewDeliverer constructs a deliverer.
func NewDeliverer(queue Queue, channel notify.Channel, cfg DelivererConfig, logger *log.Logger) (*Deliverer, error) {
	if queue == nil {
		return nil, errors.New("deliverer: queue is required")
	}
	if channel == nil {
		return nil, errors.New("deliverer: channel is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.ClaimLimit <= 0 {
		cfg.ClaimLimit = 20
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy
	}
	return &Deliverer{queue: queue, channel: channel, cfg: cfg, logger: logger}, nil
}

// Start runs the delivery loop until the context is cancelled.
func (d *Deliverer) Start(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.logger.Printf("deliverer: started (claim limit %d, poll %s)", d.cfg.ClaimLimit, d.cfg.PollInterval)
	for {
		if _, err := d.DeliverOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Printf("deliverer: %v", err)
		}
		select {
		case <-ctx.Done():
			d.logger.Printf("deliverer: stopped")
			return
		case <-ticker.C:
		}
	}
}

// DeliverOnce claims one batch and attempts delivery for each record:
// mark delivered on success, release the claim on failure so a later
// pass can retry. Returns the number of delivered notifications.
func (d *Deliverer) DeliverOnce(ctx context.Context) (int, error) {
	claimed, err := d.queue.ClaimPending(ctx, d.cfg.ClaimLimit)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, n := range claimed {
		if err := ctx.Err(); err != nil {
			// Shutdown mid-batch: return the rest of the claims.
			d.release(n)
			continue
		}
		sendErr := retry.Do(ctx, d.cfg.Retry, func(ctx context.Context) error {
			return d.channel.Send(ctx, n)
		})
		if sendErr != nil {
			metrics.IncDelivery(metrics.ResultError)
			d.logger.Printf("deliverer: send %s failed: %v", n.ID, sendErr)
			d.release(n)
			continue
		}
		metrics.IncDelivery(metrics.ResultSuccess)
		if err := d.queue.MarkDelivered(ctx, n.ID); err != nil {
			// Sent but not settled: leave claimed rather than risk a resend.
			d.logger.Printf("deliverer: mark delivered %s failed: %v", n.ID, err)
			continue
		}
		delivered++
	}
	return delivered, ctx.Err()
}

func (d *Deliverer) release(n notifications.Notification) {
	// Use a fresh context so shutdown does not strand claimed rows.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.queue.Release(ctx, n.ID); err != nil {
		d.logger.Printf("deliverer: release %s failed: %v", n.ID, err)
	}
}
