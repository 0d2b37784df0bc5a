// Package reviews collects daily product reviews through the scraping
// service and reports highlights through the notification queue.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	notifications "inventory-pulse/internal/notifications/domain"
	"inventory-pulse/internal/retry"
	"inventory-pulse/internal/reviews/scrape"
)

// ScrapeRunner runs a scrape job and returns the collected reviews.
type ScrapeRunner interface {
	RunSync(ctx context.Context, actorID string, input scrape.RunInput) ([]scrape.Review, error)
}

// NotificationCreator enqueues notifications. Create returns an empty
// id when the (source, dedupe key) pair was already enqueued.
type NotificationCreator interface {
	Create(ctx context.Context, n notifications.Notification) (string, error)
}

// FetcherConfig holds the scrape job parameters.
type FetcherConfig struct {
	ActorID     string
	ProductURLs []string
	MaxReviews  int
	Retry       retry.Policy
}

// Fetcher runs the daily review collection.
type Fetcher struct {
	runner ScrapeRunner
	sink   NotificationCreator
	cfg    FetcherConfig
	logger *log.Logger
}

// NewFetcher constructs a fetcher.
func NewFetcher(runner ScrapeRunner, sink NotificationCreator, cfg FetcherConfig, logger *log.Logger) (*Fetcher, error) {
	if runner == nil {
		return nil, errors.New("review fetcher: scrape runner is required")
	}
	if sink == nil {
		return nil, errors.New("review fetcher: notification sink is required")
	}
	if cfg.ActorID == "" {
		return nil, errors.New("review fetcher: actor id is required")
	}
	if cfg.MaxReviews <= 0 {
		cfg.MaxReviews = 100
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Fetcher{runner: runner, sink: sink, cfg: cfg, logger: logger}, nil
}

// FetchDaily scrapes the configured products and enqueues a summary of
// yesterday's five-star reviews. A scrape failure is itself reported
// through the queue so operators see the gap.
func (f *Fetcher) FetchDaily(ctx context.Context, now time.Time) error {
	day := now.UTC().AddDate(0, 0, -1).Format("2006-01-02")

	var reviews []scrape.Review
	err := retry.Do(ctx, f.cfg.Retry, func(ctx context.Context) error {
		var runErr error
		reviews, runErr = f.runner.RunSync(ctx, f.cfg.ActorID, scrape.RunInput{
			ProductURLs: f.cfg.ProductURLs,
			MaxReviews:  f.cfg.MaxReviews,
		})
		return runErr
	})
	if err != nil {
		f.logger.Printf("review fetch for %s failed: %v", day, err)
		if _, enqueueErr := f.sink.Create(ctx, failureNotification(day, err)); enqueueErr != nil {
			f.logger.Printf("review fetch: enqueue failure notice: %v", enqueueErr)
		}
		return fmt.Errorf("review fetch for %s: %w", day, err)
	}

	highlights := fiveStarOn(reviews, day)
	f.logger.Printf("review fetch for %s: %d scraped, %d five-star", day, len(reviews), len(highlights))

	for _, r := range highlights {
		if _, err := f.sink.Create(ctx, reviewNotification(day, r)); err != nil {
			return fmt.Errorf("review fetch for %s: enqueue review %q: %w", day, r.Title, err)
		}
	}
	if _, err := f.sink.Create(ctx, summaryNotification(day, len(reviews), highlights)); err != nil {
		return fmt.Errorf("review fetch for %s: enqueue summary: %w", day, err)
	}
	return nil
}

// fiveStarOn keeps reviews rated 5 whose date falls on the given day.
// Review dates come back in several formats, so a prefix match on the
// ISO day is used instead of parsing.
func fiveStarOn(reviews []scrape.Review, day string) []scrape.Review {
	var out []scrape.Review
	for _, r := range reviews {
		if r.Rating == 5 && strings.HasPrefix(r.Date, day) {
			out = append(out, r)
		}
	}
	return out
}

func summaryNotification(day string, total int, highlights []scrape.Review) notifications.Notification {
	titles := make([]string, 0, len(highlights))
	for _, r := range highlights {
		titles = append(titles, r.Title)
	}
	return notifications.Notification{
		Type:          "review_summary",
		Severity:      "INFO",
		Message:       fmt.Sprintf("Reviews for %s: %d scraped, %d five-star", day, total, len(highlights)),
		Metadata:      map[string]any{"day": day, "total": total, "five_star": len(highlights), "titles": titles},
		DedupeKey:     "REVIEW_SUMMARY:" + day,
		SourceEventID: "reviews-" + day,
	}
}

func reviewNotification(day string, r scrape.Review) notifications.Notification {
	// Review URL is the stable identifier; the title is a fallback for
	// scrapers that do not return one.
	key := r.URL
	if key == "" {
		key = r.Title
	}
	return notifications.Notification{
		Type:          "five_star_review",
		Severity:      "INFO",
		Message:       fmt.Sprintf("New five-star review: %s", r.Title),
		Metadata:      map[string]any{"day": day, "title": r.Title, "text": r.Text, "author": r.Author, "url": r.URL},
		DedupeKey:     "FIVE_STAR_REVIEW:" + day + ":" + key,
		SourceEventID: "reviews-" + day,
	}
}

func failureNotification(day string, cause error) notifications.Notification {
	return notifications.Notification{
		Type:          "review_fetch_failed",
		Severity:      "WARNING",
		Message:       fmt.Sprintf("Review fetch for %s failed: %v", day, cause),
		Metadata:      map[string]any{"day": day},
		DedupeKey:     "REVIEW_FETCH_FAILED:" + day,
		SourceEventID: "reviews-" + day,
	}
}
