package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/umayarajkumar17/portfolio/backend/internal/model/chat"
	"github.com/umayarajkumar17/portfolio/backend/internal/richtext"
	aiService "github.com/umayarajkumar17/portfolio/backend/internal/service/ai"
	chatService "github.com/umayarajkumar17/portfolio/backend/internal/service/chat"
	"github.com/umayarajkumar17/portfolio/backend/pkg/utils"
)

const (
	maxBodyBytes   = 16 << 10
	maxHistorySize = 50
)

// Replier answers a single message without session state.
type Replier interface {
	Reply(ctx context.Context, text string, history []chat.Message) string
}

// StatusReporter describes the active reply provider.
type StatusReporter interface {
	Status() aiService.Status
}

// Handler serves the conversation endpoints.
type Handler struct {
	chatSvc *chatService.Service
	replier Replier
	status  StatusReporter
	limit   func(http.Handler) http.Handler
}

// New creates the chat handler. limit wraps the endpoints that trigger a
// reply; nil disables it.
func New(chatSvc *chatService.Service, replier Replier, status StatusReporter, limit func(http.Handler) http.Handler) *Handler {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		chatSvc: chatSvc,
		replier: replier,
		status:  status,
		limit:   limit,
	}
}

// RegisterRoutes mounts the chat routes under the given router. sessionRoutes
// add more endpoints below /session/{sessionID}.
func (h *Handler) RegisterRoutes(r chi.Router, sessionRoutes ...func(chi.Router)) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(s chi.Router) {
		s.Get("/", h.handleGetSession)
		s.Delete("/", h.handleDeleteSession)
		s.Post("/discard", h.handleDeleteSession)
		s.Post("/open", h.handleOpen)
		s.Post("/close", h.handleClose)
		s.Post("/clear", h.handleClear)
		s.Post("/expand", h.handleExpand)
		s.With(h.limit).Post("/messages", h.handleSend)
		s.With(h.limit).Post("/suggestions", h.handleSuggestion)
		for _, register := range sessionRoutes {
			register(s)
		}
	})
	r.With(h.limit).Post("/reply", h.handleReply)
	r.Get("/status", h.handleStatus)
}

// handleCreateSession mints a fresh session key.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	m, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, m.Snapshot())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.chatSvc.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snapshot)
}

// handleDeleteSession drops the session. It also serves sendBeacon on page
// unload, which can only POST.
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, http.StatusOK, (*chatService.Machine).Open)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, http.StatusOK, (*chatService.Machine).Close)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, http.StatusOK, (*chatService.Machine).Clear)
}

// handleExpand sets the size preset from {"expanded": bool} or toggles it
// when the body is empty.
func (h *Handler) handleExpand(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Expanded *bool `json:"expanded"`
	}
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(w, r, maxBodyBytes, &payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	h.apply(w, r, http.StatusOK, func(m *chatService.Machine) error {
		if payload.Expanded == nil {
			return m.ToggleExpanded()
		}
		return m.SetExpanded(*payload.Expanded)
	})
}

type textPayload struct {
	Text string `json:"text"`
}

// handleSend accepts a visitor message. The reply arrives asynchronously.
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload textPayload
	if err := utils.DecodeJSON(w, r, maxBodyBytes, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.apply(w, r, http.StatusAccepted, func(m *chatService.Machine) error {
		return m.Send(payload.Text)
	})
}

func (h *Handler) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	var payload textPayload
	if err := utils.DecodeJSON(w, r, maxBodyBytes, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.apply(w, r, http.StatusAccepted, func(m *chatService.Machine) error {
		return m.UseSuggestion(payload.Text)
	})
}

type historyEntry struct {
	Sender chat.Sender `json:"sender"`
	Text   string      `json:"text"`
}

// handleReply answers one message against caller-supplied history.
func (h *Handler) handleReply(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string         `json:"message"`
		History []historyEntry `json:"history"`
	}
	if err := utils.DecodeJSON(w, r, maxBodyBytes, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := strings.TrimSpace(payload.Message)
	if text == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	entries := payload.History
	if len(entries) > maxHistorySize {
		entries = entries[len(entries)-maxHistorySize:]
	}
	history := make([]chat.Message, 0, len(entries))
	for _, entry := range entries {
		if entry.Sender != chat.SenderUser && entry.Sender != chat.SenderBot {
			continue
		}
		history = append(history, chat.Message{Sender: entry.Sender, Text: entry.Text})
	}

	reply := h.replier.Reply(r.Context(), text, history)
	fragments := richtext.Parse(reply)
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"reply":     richtext.PlainText(fragments),
		"fragments": fragments,
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"sessions": h.chatSvc.Count(),
	}
	if h.status != nil {
		payload["provider"] = h.status.Status()
	}
	utils.RespondJSON(w, http.StatusOK, payload)
}

// apply runs op against the session and answers with its snapshot.
func (h *Handler) apply(w http.ResponseWriter, r *http.Request, status int, op func(*chatService.Machine) error) {
	m, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if err := op(m); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, status, m.Snapshot())
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrBlankMessage), errors.Is(err, chatService.ErrUnknownSuggestion):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chatService.ErrBusy), errors.Is(err, chatService.ErrClosed):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chatService.ErrTooManySessions):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
