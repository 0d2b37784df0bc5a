package scheduler

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"
)

func TestShouldRun(t *testing.T) {
	at := time.Date(2026, 7, 1, 2, 0, 30, 0, time.UTC)
	if !shouldRun("02:00", at) {
		t.Fatalf("expected a match at 02:00")
	}
	if shouldRun("02:01", at) {
		t.Fatalf("expected no match at 02:01")
	}
	if shouldRun("not-a-time", at) {
		t.Fatalf("invalid schedule must never run")
	}
}

func TestTickRunsMatchingJobs(t *testing.T) {
	var ran []string
	s := New(log.New(os.Stderr, "", 0),
		Job{Name: "forecast", DailyAt: "02:00", Run: func(context.Context, time.Time) error {
			ran = append(ran, "forecast")
			return nil
		}},
		Job{Name: "reviews", DailyAt: "03:00", Run: func(context.Context, time.Time) error {
			ran = append(ran, "reviews")
			return nil
		}},
	)

	s.tick(context.Background(), time.Date(2026, 7, 1, 2, 0, 0, 0, time.UTC))
	if len(ran) != 1 || ran[0] != "forecast" {
		t.Fatalf("expected only the 02:00 job, got %v", ran)
	}
}

func TestTickJobFailureDoesNotStopOthers(t *testing.T) {
	var ran []string
	s := New(log.New(os.Stderr, "", 0),
		Job{Name: "bad", DailyAt: "02:00", Run: func(context.Context, time.Time) error {
			return errors.New("boom")
		}},
		Job{Name: "good", DailyAt: "02:00", Run: func(context.Context, time.Time) error {
			ran = append(ran, "good")
			return nil
		}},
	)

	s.tick(context.Background(), time.Date(2026, 7, 1, 2, 0, 0, 0, time.UTC))
	if len(ran) != 1 {
		t.Fatalf("a failing job must not block the rest, got %v", ran)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		New(log.New(os.Stderr, "", 0), Job{Name: "noop", DailyAt: "02:00", Run: func(context.Context, time.Time) error { return nil }}).Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("scheduler must stop on cancellation")
	}
}
