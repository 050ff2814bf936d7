package main

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/djlord-it/easy-alarm/internal/config"
)

// captureLogOutput calls logConfigWarnings with the given config and returns
// the captured log output as a string.
func captureLogOutput(cfg *config.Config) string {
	var buf bytes.Buffer
	original := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(original)

	logConfigWarnings(cfg)
	return buf.String()
}

func TestLogConfigWarnings_BareConfig(t *testing.T) {
	cfg := &config.Config{}
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P0]: RECONCILE_ENABLED=false") {
		t.Error("expected reconciler P0 warning, got:", output)
	}
	if !strings.Contains(output, "WARNING [P1]: METRICS_ENABLED=false") {
		t.Error("expected metrics P1 warning, got:", output)
	}
	if !strings.Contains(output, "WARNING [P1]: WEBHOOK_SECRET not set") {
		t.Error("expected webhook secret warning, got:", output)
	}
	if !strings.Contains(output, "WARNING [P1]: CIRCUIT_BREAKER_THRESHOLD=0") {
		t.Error("expected breaker warning, got:", output)
	}
	if !strings.Contains(output, "INFO: LEADER_ENABLED=false") {
		t.Error("expected single-instance INFO, got:", output)
	}
}

func TestLogConfigWarnings_LoadedDefaults(t *testing.T) {
	for _, v := range []string{"RECONCILE_ENABLED", "METRICS_ENABLED", "WEBHOOK_SECRET", "CIRCUIT_BREAKER_THRESHOLD", "LEADER_ENABLED"} {
		t.Setenv(v, "")
	}

	// Same shape as the serve path: Load returns a value, warnings
	// take its address.
	cfg := config.Load()
	output := captureLogOutput(&cfg)

	if !strings.Contains(output, "WARNING [P0]: RECONCILE_ENABLED=false") {
		t.Error("expected reconciler P0 warning with default config, got:", output)
	}
	// Threshold defaults to 5, so the breaker warning must not fire.
	if strings.Contains(output, "CIRCUIT_BREAKER_THRESHOLD=0") {
		t.Error("did not expect breaker warning with default threshold, got:", output)
	}
}

func TestLogConfigWarnings_FullyEnabled(t *testing.T) {
	cfg := &config.Config{
		ReconcileEnabled:        true,
		MetricsEnabled:          true,
		WebhookSecret:           "s3cret",
		CircuitBreakerThreshold: 5,
		LeaderEnabled:           true,
	}
	output := captureLogOutput(cfg)

	if strings.Contains(output, "WARNING") {
		t.Error("did not expect any warnings, got:", output)
	}
	if strings.Contains(output, "INFO:") {
		t.Error("did not expect any INFO lines, got:", output)
	}
}

func TestLogConfigWarnings_ReconcilerOnlyGapsFlagged(t *testing.T) {
	cfg := &config.Config{
		ReconcileEnabled:        true,
		MetricsEnabled:          true,
		WebhookSecret:           "s3cret",
		CircuitBreakerThreshold: 3,
		LeaderEnabled:           false,
	}
	output := captureLogOutput(cfg)

	if strings.Contains(output, "WARNING") {
		t.Error("did not expect warnings, got:", output)
	}
	if !strings.Contains(output, "INFO: LEADER_ENABLED=false") {
		t.Error("expected single-instance INFO, got:", output)
	}
}
