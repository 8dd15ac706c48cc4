package stream

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/umayarajkumar17/portfolio/backend/internal/logger"
	chatService "github.com/umayarajkumar17/portfolio/backend/internal/service/chat"
	"github.com/umayarajkumar17/portfolio/backend/pkg/utils"
)

const eventBuffer = 128

// Handler streams conversation events over Server-Sent Events.
type Handler struct {
	chatSvc   *chatService.Service
	heartbeat time.Duration
}

// New creates a stream handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc, heartbeat: 15 * time.Second}
}

// RegisterSessionRoutes adds the event stream below a session route.
func (h *Handler) RegisterSessionRoutes(r chi.Router) {
	r.Get("/events", h.handleEvents)
}

// handleEvents sends a snapshot, then every machine event until the client
// leaves or the session is discarded. A subscriber that falls behind gets a
// fresh snapshot instead of the dropped events.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	m, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := logger.WithFields(r.Context(), logger.Fields{Component: "stream", SessionID: sessionID})
	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	events := make(chan chatService.Event, eventBuffer)
	var lagged atomic.Bool
	unsubscribe := m.Subscribe(func(e chatService.Event) {
		select {
		case events <- e:
		default:
			lagged.Store(true)
		}
	})
	defer unsubscribe()

	if err := utils.SendSSEEvent(w, flusher, "snapshot", m.Snapshot()); err != nil {
		return
	}
	slog.DebugContext(ctx, "event stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "event stream closed by client")
			return
		case <-m.Done():
			_ = utils.SendSSEEvent(w, flusher, "discarded", map[string]string{"sessionId": sessionID})
			return
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		case e := <-events:
			if err := utils.SendSSEEvent(w, flusher, string(e.Type), e); err != nil {
				return
			}
			if lagged.CompareAndSwap(true, false) {
				slog.WarnContext(ctx, "event stream lagged, resyncing")
				if err := utils.SendSSEEvent(w, flusher, "snapshot", m.Snapshot()); err != nil {
					return
				}
			}
		}
	}
}
