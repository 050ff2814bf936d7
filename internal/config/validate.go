package config

import (
	"fmt"
	"net/url"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// REDIS_ADDR is required
	if cfg.RedisAddr == "" {
		errs = append(errs, ValidationError{
			Field:   "REDIS_ADDR",
			Message: "required",
		})
	}

	// WEBHOOK_URL is required and must be http(s)
	if cfg.WebhookURL == "" {
		errs = append(errs, ValidationError{
			Field:   "WEBHOOK_URL",
			Message: "required",
		})
	} else if err := validateWebhookURL(cfg.WebhookURL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "WEBHOOK_URL",
			Message: err.Error(),
		})
	}

	// TIMEZONE must name a loadable location
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			errs = append(errs, ValidationError{
				Field:   "TIMEZONE",
				Message: fmt.Sprintf("unknown timezone: %v", err),
			})
		}
	}

	// GRACE_WINDOW must be a positive duration
	if cfg.GraceWindowStr != "" {
		d, err := time.ParseDuration(cfg.GraceWindowStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "GRACE_WINDOW",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "GRACE_WINDOW",
				Message: "must be positive",
			})
		}
	}

	// Heartbeat must stay under the lease TTL or the leader loses its own lease.
	if cfg.LeaderEnabled && cfg.LeaderLeaseTTL > 0 && cfg.LeaderHeartbeatInterval >= cfg.LeaderLeaseTTL {
		errs = append(errs, ValidationError{
			Field:   "LEADER_HEARTBEAT_INTERVAL",
			Message: fmt.Sprintf("must be shorter than LEADER_LEASE_TTL (%s)", cfg.LeaderLeaseTTLStr),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateWebhookURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
