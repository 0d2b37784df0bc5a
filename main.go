package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	alertapp "inventory-pulse/internal/alerts/application"
	alerts "inventory-pulse/internal/alerts/domain"
	alertnotify "inventory-pulse/internal/alerts/notify"
	"inventory-pulse/internal/auth"
	"inventory-pulse/internal/config"
	eventsrepo "inventory-pulse/internal/events/infrastructure/postgres"
	forecastapp "inventory-pulse/internal/forecasting/application"
	forecasting "inventory-pulse/internal/forecasting/domain"
	forecastrepo "inventory-pulse/internal/forecasting/infrastructure/postgres"
	forecasthttp "inventory-pulse/internal/forecasting/interfaces/http"
	notifapp "inventory-pulse/internal/notifications/application"
	notifications "inventory-pulse/internal/notifications/domain"
	notifrepo "inventory-pulse/internal/notifications/infrastructure/postgres"
	"inventory-pulse/internal/observability/metrics"
	"inventory-pulse/internal/retry"
	"inventory-pulse/internal/reviews"
	"inventory-pulse/internal/reviews/scrape"
	"inventory-pulse/internal/scheduler"
	"inventory-pulse/internal/worker"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	itemRepo := forecastrepo.NewItemRepository(db)
	movementRepo := forecastrepo.NewMovementRepository(db)
	forecastRepo := forecastrepo.NewForecastRepository(db)
	notifStore := notifrepo.NewNotificationStore(db)

	source, err := eventsrepo.NewLogSource(db, cfg.EventGroup, eventsrepo.WithPollLimit(cfg.EventPollLimit))
	if err != nil {
		logger.Fatalf("event source error: %v", err)
	}

	pipeline, err := forecastapp.NewPipeline(itemRepo, movementRepo, forecastRepo, forecastapp.PipelineConfig{
		Method: forecasting.Method(cfg.Estimator.Method),
		Estimator: forecasting.EstimatorConfig{
			MuFloor:    cfg.Estimator.MuFloor,
			SigmaFloor: cfg.Estimator.SigmaFloor,
			Alpha:      cfg.Estimator.Alpha,
		},
		Policy: forecasting.PolicyConfig{
			EpsilonMu:  cfg.Policy.EpsilonMu,
			TargetDays: cfg.Policy.TargetDays,
		},
		HorizonDays:            cfg.Policy.HorizonDays,
		DefaultServiceLevel:    cfg.Policy.ServiceLevelDefault,
		DefaultLeadTimeDays:    cfg.Policy.DefaultLeadTimeDays,
		DefaultSafetyStockDays: cfg.Policy.DefaultSafetyStockDays,
	}, logger)
	if err != nil {
		logger.Fatalf("pipeline error: %v", err)
	}

	checker := alerts.NewChecker(cfg.Alerts.LocationLowStockThreshold)
	alertService, err := alertapp.NewService(checker, notifStore, logger)
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}

	aggregator := forecastapp.NewAggregator(forecastapp.AggregatorConfig{
		BatchWindow:  cfg.BatchWindow(),
		SizeTrigger:  cfg.Batching.SizeTrigger,
		ItemDebounce: cfg.ItemDebounce(),
	})
	liveWorker, err := worker.New(source, aggregator, pipeline, alertService, worker.Config{}, logger)
	if err != nil {
		logger.Fatalf("worker error: %v", err)
	}

	var channel alertnotify.Channel
	if cfg.Alerts.WebhookEnabled && cfg.Alerts.WebhookURL != "" {
		channel = alertnotify.NewWebhookChannel(cfg.Alerts.WebhookURL)
	} else {
		channel = alertnotify.ChannelFunc(func(_ context.Context, n notifications.Notification) error {
			logger.Printf("notification [%s] %s: %s", n.Severity, n.Type, n.Message)
			return nil
		})
	}
	deliverer, err := notifapp.NewDeliverer(notifStore, channel, notifapp.DelivererConfig{
		ClaimLimit: cfg.Alerts.ClaimBatchLimit,
		Retry:      retry.DefaultPolicy,
	}, logger)
	if err != nil {
		logger.Fatalf("deliverer error: %v", err)
	}

	jobs := []scheduler.Job{{
		Name:    "forecast.daily",
		DailyAt: cfg.ForecastDailyAt,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := pipeline.RunAll(ctx, now)
			return err
		},
	}}
	if cfg.Reviews.ScrapeBaseURL != "" && cfg.Reviews.ScrapeToken != "" && cfg.Reviews.ActorID != "" {
		scrapeClient, err := scrape.NewClient(cfg.Reviews.ScrapeBaseURL, cfg.Reviews.ScrapeToken)
		if err != nil {
			logger.Fatalf("scrape client error: %v", err)
		}
		fetcher, err := reviews.NewFetcher(scrapeClient, notifStore, reviews.FetcherConfig{
			ActorID:     cfg.Reviews.ActorID,
			ProductURLs: []string{cfg.Reviews.ProductURL},
			MaxReviews:  cfg.Reviews.MaxReviews,
		}, logger)
		if err != nil {
			logger.Fatalf("review fetcher error: %v", err)
		}
		jobs = append(jobs, scheduler.Job{
			Name:    "reviews.daily",
			DailyAt: cfg.Reviews.DailyAt,
			Run:     fetcher.FetchDaily,
		})
	}
	jobScheduler := scheduler.New(logger, jobs...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := liveWorker.Run(ctx); err != nil {
			logger.Printf("worker exited: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		deliverer.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		jobScheduler.Start(ctx)
	}()

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/forecasts", forecasthttp.NewForecastsHandler(forecastRepo))
	mux.Handle("/api/v1/forecasts/run", forecasthttp.NewRunHandler(pipeline, logger))
	mux.Handle("/api/v1/reports/forecasts.xlsx", forecasthttp.NewReportHandler(forecastRepo, logger))
	mux.Handle("/api/v1/reports/forecasts.pdf", forecasthttp.NewReportHandler(forecastRepo, logger))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("http server error: %v", err)
	}
	wg.Wait()
	logger.Printf("shutdown complete")
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
