package api

import (
	"fmt"
	"time"
)

func validateCreateAlarm(req CreateAlarmRequest) error {
	if req.SetterID == "" {
		return fmt.Errorf("setter_id is required")
	}

	if req.Content == "" {
		return fmt.Errorf("content is required")
	}

	if req.Phrase == "" && req.ScheduledAt == "" {
		return fmt.Errorf("one of phrase or scheduled_at is required")
	}
	if req.Phrase != "" && req.ScheduledAt != "" {
		return fmt.Errorf("phrase and scheduled_at are mutually exclusive")
	}

	if req.ScheduledAt != "" {
		if _, err := time.Parse(time.RFC3339, req.ScheduledAt); err != nil {
			return fmt.Errorf("invalid scheduled_at: %w", err)
		}
	}

	return nil
}
