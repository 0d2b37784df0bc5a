// Package worker runs the live consumption loop: poll inventory
// events, fan them into alerting and aggregation, and trigger the
// forecast pipeline when a batch is ready.
package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"inventory-pulse/internal/events"
	forecastapp "inventory-pulse/internal/forecasting/application"
	"inventory-pulse/internal/observability/metrics"
)

// PipelineRunner recomputes forecasts for a set of items.
type PipelineRunner interface {
	RunForItems(ctx context.Context, itemIDs []string, now time.Time) (forecastapp.RunSummary, error)
}

// AlertHandler checks one event for threshold crossings.
type AlertHandler interface {
	HandleEvent(ctx context.Context, event events.NormalizedEvent) (int, error)
}

// Config carries the worker loop knobs.
type Config struct {
	PollTimeout time.Duration
	// HeartbeatEvery is the number of poll cycles between heartbeat
	// log lines.
	HeartbeatEvery int
	// DrainTimeout bounds the final pipeline run during shutdown.
	DrainTimeout time.Duration
}

// Worker owns one event source and one aggregator.
//
// Offsets are committed only after a batch has been fully processed:
// the contract is at-least-once, and downstream idempotency (dedupe
// keys, forecast upserts) absorbs redelivery.
type Worker struct {
	source     events.Source
	aggregator *forecastapp.Aggregator
	pipeline   PipelineRunner
	alerts     AlertHandler
	cfg        Config
	logger     *log.Logger
}

// New constructs a worker.
func New(source events.Source, aggregator *forecastapp.Aggregator, pipeline PipelineRunner, alerts AlertHandler, cfg Config, logger *log.Logger) (*Worker, error) {
	if source == nil {
		return nil, errors.New("worker: event source is required")
	}
	if aggregator == nil {
		return nil, errors.New("worker: aggregator is required")
	}
	if pipeline == nil {
		return nil, errors.New("worker: pipeline is required")
	}
	if alerts == nil {
		return nil, errors.New("worker: alert handler is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = 30
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	return &Worker{
		source:     source,
		aggregator: aggregator,
		pipeline:   pipeline,
		alerts:     alerts,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Run polls until the context is cancelled, then drains any
// accumulated batch before returning.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Printf("worker: started (poll timeout %s)", w.cfg.PollTimeout)
	polls := 0
	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.logger.Printf("worker: stopped")
			return nil
		default:
		}

		if err := w.cycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Printf("worker: cycle failed: %v", err)
		}

		polls++
		if polls%w.cfg.HeartbeatEvery == 0 {
			w.logger.Printf("worker: heartbeat, %d events pending", w.aggregator.Len())
		}
	}
}

// cycle is one poll iteration. A pipeline failure leaves offsets
// uncommitted and resets the aggregator, so redelivered events start a
// fresh batch instead of replaying the poisoned one.
func (w *Worker) cycle(ctx context.Context) error {
	batch, err := w.source.Poll(ctx, w.cfg.PollTimeout)
	if err != nil {
		return err
	}
	metrics.AddEventsConsumed(len(batch.Events))
	metrics.AddEventsSkipped(batch.Skipped)

	for _, event := range batch.Events {
		if _, err := w.alerts.HandleEvent(ctx, event); err != nil {
			w.logger.Printf("worker: alert check for event %s: %v", event.EventID, err)
		}
	}

	accepted := w.aggregator.AddAll(batch.Events)
	metrics.AddEventsDebounced(len(batch.Events) - accepted)

	status := w.aggregator.CheckReady()
	if !status.Ready {
		return nil
	}
	metrics.IncBatch(string(status.Reason))
	w.logger.Printf("worker: batch ready (%s), %d events, %d items",
		status.Reason, status.EventCount, len(status.ItemIDs))

	return w.processBatch(ctx, status.ItemIDs)
}

func (w *Worker) processBatch(ctx context.Context, itemIDs []string) error {
	started := time.Now()
	summary, err := w.pipeline.RunForItems(ctx, itemIDs, time.Now().UTC())
	if err != nil {
		metrics.ObservePipeline(metrics.ResultError, time.Since(started))
		w.aggregator.Reset()
		return err
	}
	metrics.ObservePipeline(metrics.ResultSuccess, time.Since(started))
	metrics.AddForecastsWritten(summary.Forecasts)

	w.aggregator.Flush()
	if err := w.source.Commit(ctx); err != nil {
		// Processing succeeded but the offset did not stick; the batch
		// will be redelivered and absorbed by idempotent writes.
		return err
	}
	return nil
}

// drain processes whatever the aggregator still holds, with a bounded
// context so shutdown cannot hang on a slow pipeline.
func (w *Worker) drain() {
	if w.aggregator.Empty() {
		return
	}
	status := w.aggregator.CheckReady()
	itemIDs := status.ItemIDs
	w.logger.Printf("worker: draining %d events for %d items", status.EventCount, len(itemIDs))

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.DrainTimeout)
	defer cancel()
	if err := w.processBatch(ctx, itemIDs); err != nil {
		w.logger.Printf("worker: drain failed: %v", err)
	}
}
