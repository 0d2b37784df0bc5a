// Package config loads runtime configuration from the environment with
// an optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Estimator holds the demand estimation knobs.
type Estimator struct {
	Method     string  `yaml:"method"`
	MuFloor    float64 `yaml:"mu_floor"`
	SigmaFloor float64 `yaml:"sigma_floor"`
	Alpha      float64 `yaml:"alpha"`
}

// Policy holds the replenishment policy knobs.
type Policy struct {
	ServiceLevelDefault    float64 `yaml:"service_level_default"`
	EpsilonMu              float64 `yaml:"epsilon_mu"`
	TargetDays             float64 `yaml:"target_days"`
	DefaultLeadTimeDays    float64 `yaml:"default_lead_time_days"`
	DefaultSafetyStockDays float64 `yaml:"default_safety_stock_days"`
	HorizonDays            int     `yaml:"horizon_days"`
}

// Batching holds the live aggregation knobs.
type Batching struct {
	WindowSeconds       int     `yaml:"window_seconds"`
	SizeTrigger         int     `yaml:"size_trigger"`
	ItemDebounceSeconds float64 `yaml:"item_debounce_seconds"`
}

// Alerts holds the alerting knobs.
type Alerts struct {
	LocationLowStockThreshold int    `yaml:"location_low_stock_threshold"`
	WebhookURL                string `yaml:"webhook_url"`
	WebhookEnabled            bool   `yaml:"webhook_enabled"`
	ClaimBatchLimit           int    `yaml:"claim_batch_limit"`
}

// Reviews holds the daily review fetch knobs.
type Reviews struct {
	ScrapeBaseURL string `yaml:"scrape_base_url"`
	ScrapeToken   string `yaml:"scrape_token"`
	ActorID       string `yaml:"actor_id"`
	ProductURL    string `yaml:"product_url"`
	MaxReviews    int    `yaml:"max_reviews"`
	DailyAt       string `yaml:"daily_at"`
}

// Config is the full runtime configuration.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	HTTPAddr    string `yaml:"http_addr"`
	JWTSecret   string `yaml:"jwt_secret"`

	EventGroup     string `yaml:"event_group"`
	EventPollLimit int    `yaml:"event_poll_limit"`

	Estimator Estimator `yaml:"estimator"`
	Policy    Policy    `yaml:"policy"`
	Batching  Batching  `yaml:"batching"`
	Alerts    Alerts    `yaml:"alerts"`
	Reviews   Reviews   `yaml:"reviews"`

	ForecastDailyAt string `yaml:"forecast_daily_at"`
}

// BatchWindow returns the live batch window as a duration.
func (c Config) BatchWindow() time.Duration {
	return time.Duration(c.Batching.WindowSeconds) * time.Second
}

// ItemDebounce returns the per-item debounce as a duration.
func (c Config) ItemDebounce() time.Duration {
	return time.Duration(c.Batching.ItemDebounceSeconds * float64(time.Second))
}

// Load builds the configuration from environment variables, then
// applies the YAML file named by PULSE_CONFIG, if any, on top.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),

		EventGroup:     getenvDefault("EVENT_GROUP", "inventory-pulse"),
		EventPollLimit: getenvIntDefault("EVENT_POLL_LIMIT", 500),

		Estimator: Estimator{
			Method:     getenvDefault("ESTIMATOR_METHOD", "ma14"),
			MuFloor:    getenvFloatDefault("MU_FLOOR", 0.1),
			SigmaFloor: getenvFloatDefault("SIGMA_FLOOR", 0.01),
			Alpha:      getenvFloatDefault("ES_ALPHA", 0.3),
		},
		Policy: Policy{
			ServiceLevelDefault:    getenvFloatDefault("SERVICE_LEVEL_DEFAULT", 0.95),
			EpsilonMu:              getenvFloatDefault("EPSILON_MU", 0.1),
			TargetDays:             getenvFloatDefault("TARGET_DAYS", 21),
			DefaultLeadTimeDays:    getenvFloatDefault("DEFAULT_LEAD_TIME_DAYS", 7),
			DefaultSafetyStockDays: getenvFloatDefault("DEFAULT_SAFETY_STOCK_DAYS", 3),
			HorizonDays:            getenvIntDefault("HORIZON_DAYS", 14),
		},
		Batching: Batching{
			WindowSeconds:       getenvIntDefault("BATCH_WINDOW_SECONDS", 30),
			SizeTrigger:         getenvIntDefault("BATCH_SIZE_TRIGGER", 50),
			ItemDebounceSeconds: getenvFloatDefault("ITEM_DEBOUNCE_SECONDS", 5),
		},
		Alerts: Alerts{
			LocationLowStockThreshold: getenvIntDefault("LOCATION_LOW_STOCK_THRESHOLD", 5),
			WebhookURL:                os.Getenv("WEBHOOK_URL"),
			WebhookEnabled:            getenvBoolDefault("WEBHOOK_ENABLED", true),
			ClaimBatchLimit:           getenvIntDefault("CLAIM_BATCH_LIMIT", 20),
		},
		Reviews: Reviews{
			ScrapeBaseURL: os.Getenv("SCRAPE_BASE_URL"),
			ScrapeToken:   os.Getenv("SCRAPE_TOKEN"),
			ActorID:       os.Getenv("SCRAPE_ACTOR_ID"),
			ProductURL:    os.Getenv("REVIEW_PRODUCT_URL"),
			MaxReviews:    getenvIntDefault("REVIEW_MAX_REVIEWS", 100),
			DailyAt:       getenvDefault("REVIEW_DAILY_AT", "03:00"),
		},

		ForecastDailyAt: getenvDefault("FORECAST_DAILY_AT", "02:00"),
	}

	if path := os.Getenv("PULSE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if c.JWTSecret == "" {
		return errors.New("config: AUTH_JWT_SECRET is required")
	}
	if c.Batching.WindowSeconds <= 0 {
		return fmt.Errorf("config: batch window %d must be positive", c.Batching.WindowSeconds)
	}
	if c.Batching.SizeTrigger <= 0 {
		return fmt.Errorf("config: batch size trigger %d must be positive", c.Batching.SizeTrigger)
	}
	if sl := c.Policy.ServiceLevelDefault; sl <= 0 || sl >= 1 {
		return fmt.Errorf("config: service level %v out of (0,1)", sl)
	}
	if a := c.Estimator.Alpha; a <= 0 || a > 1 {
		return fmt.Errorf("config: smoothing alpha %v out of (0,1]", a)
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
