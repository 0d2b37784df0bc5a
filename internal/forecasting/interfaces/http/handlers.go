// Package forecasthttp serves the forecasting HTTP endpoints.
package forecasthttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	forecastapp "inventory-pulse/internal/forecasting/application"
	forecasting "inventory-pulse/internal/forecasting/domain"
	"inventory-pulse/internal/forecasting/interfaces"
	"inventory-pulse/internal/observability/metrics"
)

// ForecastReader loads the latest forecast per item.
type ForecastReader interface {
	Latest(ctx context.Context, limit int) ([]forecasting.Forecast, error)
}

// PipelineRunner triggers forecast recomputation.
type PipelineRunner interface {
	RunForItems(ctx context.Context, itemIDs []string, now time.Time) (forecastapp.RunSummary, error)
}

// ForecastsHandler serves GET /api/v1/forecasts.
type ForecastsHandler struct {
	reader ForecastReader
}

// NewForecastsHandler constructs a handler.
func NewForecastsHandler(reader ForecastReader) *ForecastsHandler {
	return &ForecastsHandler{reader: reader}
}

type forecastResponse struct {
	ItemID              string     `json:"item_id"`
	ComputedAt          time.Time  `json:"computed_at"`
	HorizonDays         int        `json:"horizon_days"`
	AvgDailyDelta       float64    `json:"avg_daily_delta"`
	DaysToStockout      *float64   `json:"days_to_stockout"`
	SuggestedReorderQty int        `json:"suggested_reorder_qty"`
	SuggestedOrderDate  *time.Time `json:"suggested_order_date"`
	Confidence          float64    `json:"confidence"`
}

func (h *ForecastsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.reader == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	forecasts, err := h.reader.Latest(r.Context(), 500)
	if err != nil {
		http.Error(w, "query forecasts error", http.StatusInternalServerError)
		return
	}
	out := make([]forecastResponse, 0, len(forecasts))
	for _, f := range forecasts {
		out = append(out, forecastResponse{
			ItemID:              f.ItemID,
			ComputedAt:          f.ComputedAt,
			HorizonDays:         f.HorizonDays,
			AvgDailyDelta:       f.AvgDailyDelta,
			DaysToStockout:      f.DaysToStockout,
			SuggestedReorderQty: f.SuggestedReorderQty,
			SuggestedOrderDate:  f.SuggestedOrderDate,
			Confidence:          f.Confidence,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// RunHandler serves POST /api/v1/forecasts/run.
type RunHandler struct {
	pipeline PipelineRunner
	logger   *log.Logger
}

// NewRunHandler constructs a handler.
func NewRunHandler(pipeline PipelineRunner, logger *log.Logger) *RunHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &RunHandler{pipeline: pipeline, logger: logger}
}

type runRequest struct {
	ItemIDs []string `json:"item_ids"`
}

type runResponse struct {
	Items      int    `json:"items"`
	Forecasts  int    `json:"forecasts"`
	ZeroDemand int    `json:"zero_demand"`
	ElapsedMS  int64  `json:"elapsed_ms"`
	RanAt      string `json:"ran_at"`
}

func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.pipeline == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var req runRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	now := time.Now().UTC()
	summary, err := h.pipeline.RunForItems(r.Context(), req.ItemIDs, now)
	if err != nil {
		h.logger.Printf("forecast run failed: %v", err)
		http.Error(w, "forecast run error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(runResponse{
		Items:      summary.Items,
		Forecasts:  summary.Forecasts,
		ZeroDemand: summary.ZeroDemand,
		ElapsedMS:  summary.Elapsed.Milliseconds(),
		RanAt:      now.Format(time.RFC3339),
	})
}

// ReportHandler serves GET /api/v1/reports/forecasts.{xlsx,pdf}.
type ReportHandler struct {
	reader ForecastReader
	logger *log.Logger
}

// NewReportHandler constructs a handler.
func NewReportHandler(reader ForecastReader, logger *log.Logger) *ReportHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &ReportHandler{reader: reader, logger: logger}
}

func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.reader == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	format := ""
	switch {
	case strings.HasSuffix(r.URL.Path, ".xlsx"):
		format = "xlsx"
	case strings.HasSuffix(r.URL.Path, ".pdf"):
		format = "pdf"
	default:
		http.Error(w, "unsupported format", http.StatusNotFound)
		return
	}

	started := time.Now()
	forecasts, err := h.reader.Latest(r.Context(), 500)
	if err != nil {
		metrics.ObserveReportExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, "query forecasts error", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	var (
		body        []byte
		contentType string
	)
	switch format {
	case "xlsx":
		body, err = interfaces.BuildForecastXLSX(forecasts, now)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		body, err = interfaces.BuildForecastPDF(forecasts, now)
		contentType = "application/pdf"
	}
	if err != nil {
		metrics.ObserveReportExport(format, metrics.ResultError, time.Since(started))
		h.logger.Printf("report export failed: %v", err)
		http.Error(w, "report export error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveReportExport(format, metrics.ResultSuccess, time.Since(started))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=forecasts."+format)
	_, _ = w.Write(body)
}
