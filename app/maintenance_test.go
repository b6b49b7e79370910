package app_test

import (
	"testing"
	"time"

	"github.com/texlify/texlify/app"
)

func TestMaintenanceConfig_Normalize(t *testing.T) {
	cfg := app.MaintenanceConfig{}.Normalize()
	if cfg.LimiterIdle != time.Hour {
		t.Fatalf("expected 1h limiter idle default, got %v", cfg.LimiterIdle)
	}
	if cfg.UsageRetention != 30*24*time.Hour {
		t.Fatalf("expected 30d usage retention default, got %v", cfg.UsageRetention)
	}
	if cfg.ConversionRetention != 0 {
		t.Fatalf("conversion pruning should default off, got %v", cfg.ConversionRetention)
	}

	custom := app.MaintenanceConfig{LimiterIdle: time.Minute}.Normalize()
	if custom.LimiterIdle != time.Minute {
		t.Fatalf("explicit value overridden: %v", custom.LimiterIdle)
	}
}
