package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/pulse")
	t.Setenv("AUTH_JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr %s", cfg.HTTPAddr)
	}
	if cfg.Estimator.Method != "ma14" || cfg.Estimator.MuFloor != 0.1 || cfg.Estimator.SigmaFloor != 0.01 {
		t.Fatalf("unexpected estimator defaults: %+v", cfg.Estimator)
	}
	if cfg.Policy.ServiceLevelDefault != 0.95 || cfg.Policy.TargetDays != 21 {
		t.Fatalf("unexpected policy defaults: %+v", cfg.Policy)
	}
	if cfg.BatchWindow() != 30*time.Second {
		t.Fatalf("unexpected batch window %s", cfg.BatchWindow())
	}
	if cfg.ItemDebounce() != 5*time.Second {
		t.Fatalf("unexpected debounce %s", cfg.ItemDebounce())
	}
	if cfg.Batching.SizeTrigger != 50 {
		t.Fatalf("unexpected size trigger %d", cfg.Batching.SizeTrigger)
	}
	if cfg.EventPollLimit != 500 || cfg.EventGroup != "inventory-pulse" {
		t.Fatalf("unexpected event source defaults: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ESTIMATOR_METHOD", "exp_smooth")
	t.Setenv("ES_ALPHA", "0.5")
	t.Setenv("BATCH_SIZE_TRIGGER", "10")
	t.Setenv("ITEM_DEBOUNCE_SECONDS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Estimator.Method != "exp_smooth" || cfg.Estimator.Alpha != 0.5 {
		t.Fatalf("env overrides not applied: %+v", cfg.Estimator)
	}
	if cfg.Batching.SizeTrigger != 10 {
		t.Fatalf("unexpected size trigger %d", cfg.Batching.SizeTrigger)
	}
	if cfg.ItemDebounce() != 2500*time.Millisecond {
		t.Fatalf("unexpected debounce %s", cfg.ItemDebounce())
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	setRequired(t)

	path := filepath.Join(t.TempDir(), "pulse.yaml")
	overlay := `
estimator:
  method: ma7
  mu_floor: 0.2
batching:
  window_seconds: 60
alerts:
  location_low_stock_threshold: 3
`
	if err := os.WriteFile(path, []byte(overlay), 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("PULSE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Estimator.Method != "ma7" || cfg.Estimator.MuFloor != 0.2 {
		t.Fatalf("yaml overlay not applied: %+v", cfg.Estimator)
	}
	if cfg.BatchWindow() != time.Minute {
		t.Fatalf("unexpected window %s", cfg.BatchWindow())
	}
	if cfg.Alerts.LocationLowStockThreshold != 3 {
		t.Fatalf("unexpected threshold %d", cfg.Alerts.LocationLowStockThreshold)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without database url")
	}

	setRequired(t)
	t.Setenv("SERVICE_LEVEL_DEFAULT", "1.5")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for out-of-range service level")
	}
}
