package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"inventory-pulse/internal/events"
	forecastapp "inventory-pulse/internal/forecasting/application"
)

type scriptedSource struct {
	batches  []events.Batch
	pos      int
	commits  int
	onEmpty  func()
	closeErr error
}

func (s *scriptedSource) Poll(_ context.Context, _ time.Duration) (events.Batch, error) {
	if s.pos >= len(s.batches) {
		if s.onEmpty != nil {
			s.onEmpty()
		}
		return events.Batch{}, nil
	}
	batch := s.batches[s.pos]
	s.pos++
	return batch, nil
}

func (s *scriptedSource) Commit(context.Context) error {
	s.commits++
	return nil
}

func (s *scriptedSource) Close() error { return s.closeErr }

type stubPipeline struct {
	runs [][]string
	err  error
}

func (p *stubPipeline) RunForItems(_ context.Context, itemIDs []string, _ time.Time) (forecastapp.RunSummary, error) {
	if p.err != nil {
		return forecastapp.RunSummary{}, p.err
	}
	p.runs = append(p.runs, itemIDs)
	return forecastapp.RunSummary{Items: len(itemIDs), Forecasts: len(itemIDs)}, nil
}

type stubAlerts struct {
	handled []string
	err     error
}

func (a *stubAlerts) HandleEvent(_ context.Context, event events.NormalizedEvent) (int, error) {
	a.handled = append(a.handled, event.EventID)
	return 0, a.err
}

func saleEvents(n int) []events.NormalizedEvent {
	out := make([]events.NormalizedEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, events.NormalizedEvent{
			EventID:        fmt.Sprintf("ev-%d", i),
			ItemID:         fmt.Sprintf("item-%d", i),
			QuantityChange: -1,
			Reason:         "sale",
			At:             time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}

func newTestWorker(t *testing.T, source events.Source, pipeline PipelineRunner, alerts AlertHandler, agg *forecastapp.Aggregator) *Worker {
	t.Helper()
	w, err := New(source, agg, pipeline, alerts, Config{
		PollTimeout:    time.Millisecond,
		HeartbeatEvery: 30,
		DrainTimeout:   time.Second,
	}, log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	return w
}

func sizeTriggerAggregator(size int) *forecastapp.Aggregator {
	return forecastapp.NewAggregator(forecastapp.AggregatorConfig{
		BatchWindow:  time.Hour,
		SizeTrigger:  size,
		ItemDebounce: 0,
	})
}

func TestWorkerProcessesSizeTriggeredBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := &scriptedSource{
		batches: []events.Batch{{Events: saleEvents(3)}},
		onEmpty: cancel,
	}
	pipeline := &stubPipeline{}
	alerts := &stubAlerts{}
	agg := sizeTriggerAggregator(3)

	w := newTestWorker(t, source, pipeline, alerts, agg)
	if err := w.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(alerts.handled) != 3 {
		t.Fatalf("every event must pass through alerting, got %d", len(alerts.handled))
	}
	if len(pipeline.runs) != 1 || len(pipeline.runs[0]) != 3 {
		t.Fatalf("expected one pipeline run over 3 items, got %v", pipeline.runs)
	}
	if source.commits != 1 {
		t.Fatalf("offsets must be committed after a successful batch, got %d", source.commits)
	}
	if !agg.Empty() {
		t.Fatalf("aggregator must be flushed after success")
	}
}

func TestWorkerPipelineFailureNoCommitAndReset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := &scriptedSource{
		batches: []events.Batch{{Events: saleEvents(3)}},
		onEmpty: cancel,
	}
	pipeline := &stubPipeline{err: errors.New("db down")}
	alerts := &stubAlerts{}
	agg := sizeTriggerAggregator(3)

	w := newTestWorker(t, source, pipeline, alerts, agg)
	if err := w.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if source.commits != 0 {
		t.Fatalf("offsets must not be committed on pipeline failure")
	}
	if !agg.Empty() {
		t.Fatalf("aggregator must be reset after pipeline failure")
	}
}

func TestWorkerDrainsOnShutdown(t *testing.T) {
	// Two events: below the size trigger, so they sit in the aggregator
	// until shutdown drains them.
	ctx, cancel := context.WithCancel(context.Background())
	source := &scriptedSource{
		batches: []events.Batch{{Events: saleEvents(2)}},
		onEmpty: cancel,
	}
	pipeline := &stubPipeline{}
	alerts := &stubAlerts{}
	agg := sizeTriggerAggregator(50)

	w := newTestWorker(t, source, pipeline, alerts, agg)
	if err := w.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(pipeline.runs) != 1 || len(pipeline.runs[0]) != 2 {
		t.Fatalf("shutdown must drain the pending batch, got %v", pipeline.runs)
	}
	if source.commits != 1 {
		t.Fatalf("drained batch must be committed, got %d", source.commits)
	}
}

func TestWorkerAlertFailureDoesNotStopLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := &scriptedSource{
		batches: []events.Batch{{Events: saleEvents(3)}},
		onEmpty: cancel,
	}
	pipeline := &stubPipeline{}
	alerts := &stubAlerts{err: errors.New("sink down")}
	agg := sizeTriggerAggregator(3)

	w := newTestWorker(t, source, pipeline, alerts, agg)
	if err := w.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	// Alerting failures are logged; the forecast path still completes.
	if len(pipeline.runs) != 1 {
		t.Fatalf("pipeline must still run, got %v", pipeline.runs)
	}
}

func TestWorkerValidation(t *testing.T) {
	agg := sizeTriggerAggregator(1)
	if _, err := New(nil, agg, &stubPipeline{}, &stubAlerts{}, Config{}, nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
	if _, err := New(&scriptedSource{}, nil, &stubPipeline{}, &stubAlerts{}, Config{}, nil); err == nil {
		t.Fatalf("expected error for nil aggregator")
	}
	if _, err := New(&scriptedSource{}, agg, nil, &stubAlerts{}, Config{}, nil); err == nil {
		t.Fatalf("expected error for nil pipeline")
	}
	if _, err := New(&scriptedSource{}, agg, &stubPipeline{}, nil, Config{}, nil); err == nil {
		t.Fatalf("expected error for nil alert handler")
	}
}
