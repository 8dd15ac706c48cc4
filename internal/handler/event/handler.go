package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/umayarajkumar17/portfolio/backend/internal/logger"
	"github.com/umayarajkumar17/portfolio/backend/internal/service/eventlog"
	"github.com/umayarajkumar17/portfolio/backend/pkg/utils"
)

const maxBodyBytes = 8 << 10

// Response texts shared with the serverless variant.
const (
	MissingFieldsText = "Missing required fields"
	LogFailedText     = "Failed to log event"
	InvalidBodyText   = "invalid request body"
)

// CORSHeaders are sent on every log-event response, preflight included.
var CORSHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type",
	"Access-Control-Allow-Methods": "POST, OPTIONS",
}

// Logger stores visitor events.
type Logger interface {
	Log(ctx context.Context, in eventlog.Input) (eventlog.Event, error)
}

// Handler serves the event-logging endpoint.
type Handler struct {
	events Logger
	limit  func(http.Handler) http.Handler
}

// New creates the handler. limit guards POST; nil disables it.
func New(events Logger, limit func(http.Handler) http.Handler) *Handler {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{events: events, limit: limit}
}

// RegisterRoutes mounts POST and OPTIONS /log-event.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(withCORS).Options("/log-event", h.handlePreflight)
	r.With(withCORS, h.limit).Post("/log-event", h.handleLogEvent)
}

// withCORS runs ahead of the rate limiter so rejections stay readable to the browser.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORS(w.Header())
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, InvalidBodyText)
		return
	}

	status, payload := Process(r.Context(), h.events, body)
	utils.RespondJSON(w, status, payload)
}

// Process validates and stores one event body. It returns the status code
// and the JSON payload to send back.
func Process(ctx context.Context, events Logger, body []byte) (int, any) {
	ctx = logger.WithFields(ctx, logger.Fields{Component: "eventlog"})

	var in eventlog.Input
	if err := json.Unmarshal(body, &in); err != nil {
		slog.DebugContext(ctx, "rejected malformed event body", "error", err)
		return http.StatusBadRequest, errorBody(InvalidBodyText)
	}

	if _, err := events.Log(ctx, in); err != nil {
		if errors.Is(err, eventlog.ErrMissingFields) {
			return http.StatusBadRequest, errorBody(MissingFieldsText)
		}
		return http.StatusInternalServerError, errorBody(LogFailedText)
	}
	return http.StatusOK, map[string]bool{"success": true}
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

func setCORS(h http.Header) {
	for k, v := range CORSHeaders {
		h.Set(k, v)
	}
}
