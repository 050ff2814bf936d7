package api

import "time"

type CreateAlarmRequest struct {
	// Exactly one of Phrase or ScheduledAt must be set.
	Phrase      string `json:"phrase,omitempty"`
	ScheduledAt string `json:"scheduled_at,omitempty"` // RFC3339

	SetterID       string `json:"setter_id"`
	TargetID       string `json:"target_id,omitempty"` // defaults to setter_id
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content"`
}

type AlarmResponse struct {
	Key            string `json:"key"`
	SetterID       string `json:"setter_id"`
	TargetID       string `json:"target_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content"`
	ScheduledAt    string `json:"scheduled_at"`
	CreatedAt      string `json:"created_at"`
}

type ListAlarmsResponse struct {
	Alarms []AlarmResponse `json:"alarms"`
}

type ResolveRequest struct {
	Phrase string `json:"phrase"`
}

type ResolveResponse struct {
	ScheduledAt string `json:"scheduled_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
