package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/djlord-it/easy-alarm/internal/alarm"
	"github.com/djlord-it/easy-alarm/internal/domain"
	"github.com/djlord-it/easy-alarm/internal/resolve"
)

// AlarmService is the lifecycle surface the API exposes.
type AlarmService interface {
	Create(ctx context.Context, a domain.Alarm) error
	List(ctx context.Context, conversationID string) ([]domain.Alarm, error)
	Cancel(ctx context.Context, key, requesterID string, privileged bool) error
}

// PhraseResolver turns a natural-language phrase into an absolute time.
type PhraseResolver interface {
	Resolve(phrase string, now time.Time) (time.Time, error)
}

// HealthChecker provides store health status for the /health endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	service   AlarmService
	resolver  PhraseResolver
	keyPrefix string
	store     HealthChecker // optional, nil = simple health only
	clock     func() time.Time
}

func NewHandler(service AlarmService, resolver PhraseResolver, keyPrefix string) *Handler {
	return &Handler{
		service:   service,
		resolver:  resolver,
		keyPrefix: keyPrefix,
		clock:     time.Now,
	}
}

// WithHealthChecker sets the store health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(store HealthChecker) *Handler {
	h.store = store
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/alarms" && r.Method == http.MethodPost:
		h.createAlarm(w, r)

	case path == "/alarms" && r.Method == http.MethodGet:
		h.listAlarms(w, r)

	case strings.HasPrefix(path, "/alarms/") && r.Method == http.MethodDelete:
		h.cancelAlarm(w, r)

	case path == "/resolve" && r.Method == http.MethodPost:
		h.resolvePhrase(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.store == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["redis"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["redis"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) createAlarm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req CreateAlarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := validateCreateAlarm(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.clock()

	var scheduledAt time.Time
	if req.Phrase != "" {
		t, err := h.resolver.Resolve(req.Phrase, now)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "unparseable phrase")
			return
		}
		scheduledAt = t
	} else {
		// Already validated as RFC3339.
		scheduledAt, _ = time.Parse(time.RFC3339, req.ScheduledAt)
	}

	targetID := req.TargetID
	if targetID == "" {
		targetID = req.SetterID
	}

	a := domain.Alarm{
		Key:            domain.NewKey(h.keyPrefix, scheduledAt, req.SetterID),
		SetterID:       req.SetterID,
		TargetID:       targetID,
		ConversationID: req.ConversationID,
		Content:        req.Content,
		ScheduledAt:    scheduledAt,
		CreatedAt:      now,
	}

	if err := h.service.Create(r.Context(), a); err != nil {
		h.writeServiceError(w, "create alarm", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAlarmResponse(a))
}

func (h *Handler) listAlarms(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")

	alarms, err := h.service.List(r.Context(), conversationID)
	if err != nil {
		h.writeServiceError(w, "list alarms", err)
		return
	}

	resp := ListAlarmsResponse{Alarms: make([]AlarmResponse, len(alarms))}
	for i, a := range alarms {
		resp.Alarms[i] = toAlarmResponse(a)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) cancelAlarm(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/alarms/")
	if key == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	requesterID := r.URL.Query().Get("requester_id")
	if requesterID == "" {
		writeError(w, http.StatusBadRequest, "requester_id is required")
		return
	}
	privileged := r.URL.Query().Get("privileged") == "true"

	if err := h.service.Cancel(r.Context(), key, requesterID, privileged); err != nil {
		h.writeServiceError(w, "cancel alarm", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resolvePhrase(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Phrase == "" {
		writeError(w, http.StatusBadRequest, "phrase is required")
		return
	}

	t, err := h.resolver.Resolve(req.Phrase, h.clock())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "unparseable phrase")
		return
	}

	writeJSON(w, http.StatusOK, ResolveResponse{ScheduledAt: formatTime(t)})
}

// writeServiceError maps lifecycle errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, alarm.ErrPastTime):
		writeError(w, http.StatusUnprocessableEntity, "scheduled time is not in the future")
	case errors.Is(err, resolve.ErrUnparseable):
		writeError(w, http.StatusUnprocessableEntity, "unparseable phrase")
	case errors.Is(err, alarm.ErrNotFound):
		writeError(w, http.StatusNotFound, "alarm not found")
	case errors.Is(err, alarm.ErrForbidden):
		writeError(w, http.StatusForbidden, "not the setter of this alarm")
	case errors.Is(err, alarm.ErrNotRecovered):
		writeError(w, http.StatusServiceUnavailable, "service is still recovering")
	default:
		log.Printf("api: %s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

func toAlarmResponse(a domain.Alarm) AlarmResponse {
	return AlarmResponse{
		Key:            a.Key,
		SetterID:       a.SetterID,
		TargetID:       a.TargetID,
		ConversationID: a.ConversationID,
		Content:        a.Content,
		ScheduledAt:    formatTime(a.ScheduledAt),
		CreatedAt:      formatTime(a.CreatedAt),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
