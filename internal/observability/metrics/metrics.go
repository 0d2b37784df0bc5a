package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "pulse_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	eventsConsumed  prometheus.Counter
	eventsSkipped   prometheus.Counter
	eventsDebounced prometheus.Counter

	batchesTotal *prometheus.CounterVec

	pipelineTotal   *prometheus.CounterVec
	pipelineLatency *prometheus.HistogramVec
	forecastsTotal  prometheus.Counter

	alertsTotal *prometheus.CounterVec

	deliveriesTotal *prometheus.CounterVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers the metrics and, when a db handle is given, pool
// gauges. Safe to call more than once.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		eventsConsumed = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_consumed_total",
				Help: "Total inventory events consumed from the log",
			},
		)
		eventsSkipped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_skipped_total",
				Help: "Total malformed events skipped during decoding",
			},
		)
		eventsDebounced = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_debounced_total",
				Help: "Total events dropped by per-item debouncing",
			},
		)

		batchesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batches_total",
				Help: "Total live batches by trigger reason",
			},
			[]string{"reason"},
		)

		pipelineTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pipeline_runs_total",
				Help: "Total forecast pipeline runs by result",
			},
			[]string{"result"},
		)
		pipelineLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pipeline_latency_seconds",
				Help:    "Forecast pipeline latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		forecastsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "forecasts_written_total",
				Help: "Total forecast rows written",
			},
		)

		alertsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Total detected stock alerts by kind",
			},
			[]string{"kind"},
		)

		deliveriesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notification_deliveries_total",
				Help: "Total notification delivery outcomes",
			},
			[]string{"result"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total forecast report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Forecast report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			eventsConsumed,
			eventsSkipped,
			eventsDebounced,
			batchesTotal,
			pipelineTotal,
			pipelineLatency,
			forecastsTotal,
			alertsTotal,
			deliveriesTotal,
			reportExportTotal,
			reportExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	collector := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_open_connections",
			Help: "Open connections in the database pool",
		},
		func() float64 { return float64(db.Stats().OpenConnections) },
	)
	if err := prometheus.Register(collector); err != nil && logger != nil {
		logger.Printf("metrics: register db gauge: %v", err)
	}
}

// AddEventsConsumed counts consumed events.
func AddEventsConsumed(count int) {
	if count > 0 && eventsConsumed != nil {
		eventsConsumed.Add(float64(count))
	}
}

// AddEventsSkipped counts skipped malformed events.
func AddEventsSkipped(count int) {
	if count > 0 && eventsSkipped != nil {
		eventsSkipped.Add(float64(count))
	}
}

// AddEventsDebounced counts debounced events.
func AddEventsDebounced(count int) {
	if count > 0 && eventsDebounced != nil {
		eventsDebounced.Add(float64(count))
	}
}

// IncBatch counts one live batch by trigger reason.
func IncBatch(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if batchesTotal != nil {
		batchesTotal.WithLabelValues(reason).Inc()
	}
}

// ObservePipeline records pipeline latency and result.
func ObservePipeline(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if pipelineTotal != nil {
		pipelineTotal.WithLabelValues(result).Inc()
	}
	if pipelineLatency != nil {
		pipelineLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddForecastsWritten counts written forecast rows.
func AddForecastsWritten(count int) {
	if count > 0 && forecastsTotal != nil {
		forecastsTotal.Add(float64(count))
	}
}

// IncAlert counts one detected alert by kind.
func IncAlert(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if alertsTotal != nil {
		alertsTotal.WithLabelValues(kind).Inc()
	}
}

// IncDelivery counts one delivery outcome.
func IncDelivery(result string) {
	if result == "" {
		result = "unknown"
	}
	if deliveriesTotal != nil {
		deliveriesTotal.WithLabelValues(result).Inc()
	}
}

// ObserveReportExport records export latency by format and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
