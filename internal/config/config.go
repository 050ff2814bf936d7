package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Config holds all configuration for the easyalarm application.
// Values are loaded from environment variables.
type Config struct {
	RedisAddr string `json:"redis_addr"`
	HTTPAddr  string `json:"http_addr"`

	KeyPrefix string `json:"key_prefix"`
	Timezone  string `json:"timezone"`

	// GraceWindow extends the store TTL past the scheduled fire time so a
	// record survives long enough for a restarted instance to see it.
	GraceWindow    time.Duration `json:"-"`
	GraceWindowStr string        `json:"grace_window"`

	StoreOpTimeout    time.Duration `json:"-"`
	StoreOpTimeoutStr string        `json:"store_op_timeout"`
	ScanCount         int           `json:"scan_count"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`

	ReconcileEnabled     bool          `json:"reconcile_enabled"`
	ReconcileInterval    time.Duration `json:"-"`
	ReconcileIntervalStr string        `json:"reconcile_interval"`

	WebhookURL        string        `json:"webhook_url"`
	WebhookSecret     string        `json:"webhook_secret"`
	WebhookTimeout    time.Duration `json:"-"`
	WebhookTimeoutStr string        `json:"webhook_timeout"`

	AnalyticsEnabled      bool          `json:"analytics_enabled"`
	AnalyticsWindow       time.Duration `json:"-"`
	AnalyticsWindowStr    string        `json:"analytics_window"`
	AnalyticsRetention    time.Duration `json:"-"`
	AnalyticsRetentionStr string        `json:"analytics_retention"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	// LeaderEnabled gates the election loop; single-instance deployments
	// can run without it.
	LeaderEnabled bool `json:"leader_enabled"`

	// LeaderKey: all instances sharing the same Redis must use the same key.
	LeaderKey string `json:"leader_key"`

	LeaderLeaseTTL    time.Duration `json:"-"`
	LeaderLeaseTTLStr string        `json:"leader_lease_ttl"`

	// LeaderRetryInterval determines the maximum failover gap.
	LeaderRetryInterval    time.Duration `json:"-"`
	LeaderRetryIntervalStr string        `json:"leader_retry_interval"`

	// LeaderHeartbeatInterval renews the lease; must stay well under the TTL.
	LeaderHeartbeatInterval    time.Duration `json:"-"`
	LeaderHeartbeatIntervalStr string        `json:"leader_heartbeat_interval"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		RedisAddr:                  os.Getenv("REDIS_ADDR"),
		HTTPAddr:                   os.Getenv("HTTP_ADDR"),
		KeyPrefix:                  os.Getenv("KEY_PREFIX"),
		Timezone:                   os.Getenv("TIMEZONE"),
		GraceWindowStr:             os.Getenv("GRACE_WINDOW"),
		StoreOpTimeoutStr:          os.Getenv("STORE_OP_TIMEOUT"),
		HTTPShutdownTimeoutStr:     os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:             os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:                os.Getenv("METRICS_PATH"),
		ReconcileEnabled:           os.Getenv("RECONCILE_ENABLED") == "true",
		ReconcileIntervalStr:       os.Getenv("RECONCILE_INTERVAL"),
		WebhookURL:                 os.Getenv("WEBHOOK_URL"),
		WebhookSecret:              os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeoutStr:          os.Getenv("WEBHOOK_TIMEOUT"),
		AnalyticsEnabled:           os.Getenv("ANALYTICS_ENABLED") == "true",
		AnalyticsWindowStr:         os.Getenv("ANALYTICS_WINDOW"),
		AnalyticsRetentionStr:      os.Getenv("ANALYTICS_RETENTION"),
		CircuitBreakerCooldownStr:  os.Getenv("CIRCUIT_BREAKER_COOLDOWN"),
		LeaderEnabled:              os.Getenv("LEADER_ENABLED") == "true",
		LeaderKey:                  os.Getenv("LEADER_KEY"),
		LeaderLeaseTTLStr:          os.Getenv("LEADER_LEASE_TTL"),
		LeaderRetryIntervalStr:     os.Getenv("LEADER_RETRY_INTERVAL"),
		LeaderHeartbeatIntervalStr: os.Getenv("LEADER_HEARTBEAT_INTERVAL"),
	}

	if scanStr := os.Getenv("SCAN_COUNT"); scanStr != "" {
		if n, err := parseInt(scanStr); err == nil && n > 0 {
			cfg.ScanCount = n
		} else {
			log.Printf("config: invalid SCAN_COUNT %q (must be a positive integer), using default 100", scanStr)
		}
	}
	if cfg.ScanCount == 0 {
		cfg.ScanCount = 100
	}

	if cbThreshStr := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); cbThreshStr != "" {
		if n, err := parseInt(cbThreshStr); err == nil {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, using default 5", cbThreshStr)
		}
	}
	if cfg.CircuitBreakerThreshold == 0 && os.Getenv("CIRCUIT_BREAKER_THRESHOLD") == "" {
		cfg.CircuitBreakerThreshold = 5
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "alarm:clock:"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Shanghai"
	}
	if cfg.GraceWindowStr == "" {
		cfg.GraceWindowStr = "5m"
	}
	if cfg.StoreOpTimeoutStr == "" {
		cfg.StoreOpTimeoutStr = "5s"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.ReconcileIntervalStr == "" {
		cfg.ReconcileIntervalStr = "5m"
	}
	if cfg.WebhookTimeoutStr == "" {
		cfg.WebhookTimeoutStr = "30s"
	}
	if cfg.AnalyticsWindowStr == "" {
		cfg.AnalyticsWindowStr = "1m"
	}
	if cfg.AnalyticsRetentionStr == "" {
		cfg.AnalyticsRetentionStr = "24h"
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "2m"
	}
	if cfg.LeaderKey == "" {
		cfg.LeaderKey = "alarm:leader"
	}
	if cfg.LeaderLeaseTTLStr == "" {
		cfg.LeaderLeaseTTLStr = "15s"
	}
	if cfg.LeaderRetryIntervalStr == "" {
		cfg.LeaderRetryIntervalStr = "5s"
	}
	if cfg.LeaderHeartbeatIntervalStr == "" {
		cfg.LeaderHeartbeatIntervalStr = "2s"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.GraceWindowStr); err == nil {
		cfg.GraceWindow = d
	}
	if d, err := time.ParseDuration(cfg.StoreOpTimeoutStr); err == nil {
		cfg.StoreOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.ReconcileIntervalStr); err == nil {
		cfg.ReconcileInterval = d
	}
	if d, err := time.ParseDuration(cfg.WebhookTimeoutStr); err == nil {
		cfg.WebhookTimeout = d
	}
	if d, err := time.ParseDuration(cfg.AnalyticsWindowStr); err == nil {
		cfg.AnalyticsWindow = d
	}
	if d, err := time.ParseDuration(cfg.AnalyticsRetentionStr); err == nil {
		cfg.AnalyticsRetention = d
	}
	if d, err := time.ParseDuration(cfg.CircuitBreakerCooldownStr); err == nil {
		cfg.CircuitBreakerCooldown = d
	}
	if d, err := time.ParseDuration(cfg.LeaderLeaseTTLStr); err == nil {
		cfg.LeaderLeaseTTL = d
	}
	if d, err := time.ParseDuration(cfg.LeaderRetryIntervalStr); err == nil {
		cfg.LeaderRetryInterval = d
	}
	if d, err := time.ParseDuration(cfg.LeaderHeartbeatIntervalStr); err == nil {
		cfg.LeaderHeartbeatInterval = d
	}

	return cfg
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		RedisAddr               string `json:"redis_addr"`
		HTTPAddr                string `json:"http_addr"`
		KeyPrefix               string `json:"key_prefix"`
		Timezone                string `json:"timezone"`
		GraceWindow             string `json:"grace_window"`
		StoreOpTimeout          string `json:"store_op_timeout"`
		ScanCount               int    `json:"scan_count"`
		HTTPShutdownTimeout     string `json:"http_shutdown_timeout"`
		MetricsEnabled          bool   `json:"metrics_enabled"`
		MetricsPath             string `json:"metrics_path"`
		ReconcileEnabled        bool   `json:"reconcile_enabled"`
		ReconcileInterval       string `json:"reconcile_interval"`
		WebhookURL              string `json:"webhook_url"`
		WebhookSecret           string `json:"webhook_secret"`
		WebhookTimeout          string `json:"webhook_timeout"`
		AnalyticsEnabled        bool   `json:"analytics_enabled"`
		AnalyticsWindow         string `json:"analytics_window"`
		AnalyticsRetention      string `json:"analytics_retention"`
		CircuitBreakerThreshold int    `json:"circuit_breaker_threshold"`
		CircuitBreakerCooldown  string `json:"circuit_breaker_cooldown"`
		LeaderEnabled           bool   `json:"leader_enabled"`
		LeaderKey               string `json:"leader_key"`
		LeaderLeaseTTL          string `json:"leader_lease_ttl"`
		LeaderRetryInterval     string `json:"leader_retry_interval"`
		LeaderHeartbeatInterval string `json:"leader_heartbeat_interval"`
	}{
		RedisAddr:               c.RedisAddr,
		HTTPAddr:                c.HTTPAddr,
		KeyPrefix:               c.KeyPrefix,
		Timezone:                c.Timezone,
		GraceWindow:             c.GraceWindowStr,
		StoreOpTimeout:          c.StoreOpTimeoutStr,
		ScanCount:               c.ScanCount,
		HTTPShutdownTimeout:     c.HTTPShutdownTimeoutStr,
		MetricsEnabled:          c.MetricsEnabled,
		MetricsPath:             c.MetricsPath,
		ReconcileEnabled:        c.ReconcileEnabled,
		ReconcileInterval:       c.ReconcileIntervalStr,
		WebhookURL:              c.WebhookURL,
		WebhookSecret:           maskSecret(c.WebhookSecret),
		WebhookTimeout:          c.WebhookTimeoutStr,
		AnalyticsEnabled:        c.AnalyticsEnabled,
		AnalyticsWindow:         c.AnalyticsWindowStr,
		AnalyticsRetention:      c.AnalyticsRetentionStr,
		CircuitBreakerThreshold: c.CircuitBreakerThreshold,
		CircuitBreakerCooldown:  c.CircuitBreakerCooldownStr,
		LeaderEnabled:           c.LeaderEnabled,
		LeaderKey:               c.LeaderKey,
		LeaderLeaseTTL:          c.LeaderLeaseTTLStr,
		LeaderRetryInterval:     c.LeaderRetryIntervalStr,
		LeaderHeartbeatInterval: c.LeaderHeartbeatIntervalStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
