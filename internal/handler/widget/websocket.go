package widget

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/umayarajkumar17/portfolio/backend/internal/logger"
	"github.com/umayarajkumar17/portfolio/backend/internal/model/chat"
	chatService "github.com/umayarajkumar17/portfolio/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
	outboxSize   = 128
	maxFrameSize = 16 << 10
)

var errUnknownType = errors.New("unknown message type")

// WebSocketHandler drives a conversation over a WebSocket.
type WebSocketHandler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the handler. checkOrigin nil accepts any origin.
func NewWebSocketHandler(chatSvc *chatService.Service, checkOrigin func(*http.Request) bool) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes mounts the socket endpoint.
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Expanded *bool  `json:"expanded,omitempty"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	m, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(logger.WithFields(context.Background(), logger.Fields{Component: "websocket", SessionID: sessionID}))
	defer cancel()
	slog.DebugContext(ctx, "websocket connected")

	relay := newEventRelay(sessionID, outboxSize)
	unsubscribe := m.Subscribe(relay.push)
	defer unsubscribe()

	relay.out <- newOutgoing("snapshot", sessionID, m.Snapshot())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, conn, relay, m)
		cancel()
		// Unblocks the read loop below.
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for ctx.Err() == nil {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.DebugContext(ctx, "websocket read error", "error", err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		if err := dispatch(m, msg); err != nil {
			select {
			case relay.out <- newOutgoing("error", sessionID, map[string]string{"message": err.Error(), "request": msg.Type}):
			case <-ctx.Done():
			}
		}
	}

	cancel()
	<-writerDone
	slog.DebugContext(ctx, "websocket closed")
}

// dispatch applies one client command to the machine.
func dispatch(m *chatService.Machine, msg inboundMessage) error {
	switch msg.Type {
	case "open":
		return m.Open()
	case "close":
		return m.Close()
	case "send":
		return m.Send(msg.Text)
	case "suggestion":
		return m.UseSuggestion(msg.Text)
	case "clear":
		return m.Clear()
	case "expand":
		if msg.Expanded == nil {
			return m.ToggleExpanded()
		}
		return m.SetExpanded(*msg.Expanded)
	default:
		return errUnknownType
	}
}

// writeLoop is the only goroutine writing to conn.
func (h *WebSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, relay *eventRelay, m *chatService.Machine) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = conn.WriteJSON(newOutgoing("discarded", "", nil))
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session discarded"),
				time.Now().Add(writeTimeout))
			return
		case msg := <-relay.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				slog.DebugContext(ctx, "websocket write failed", "error", err)
				return
			}
			if snapshot, ok := relay.resync(m.Snapshot); ok {
				slog.WarnContext(ctx, "websocket lagged, resyncing")
				if err := conn.WriteJSON(snapshot); err != nil {
					return
				}
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// eventRelay buffers machine events for the writer. Events that do not fit
// are dropped and the next write is followed by a fresh snapshot.
type eventRelay struct {
	sessionID string
	out       chan outgoingMessage
	lagged    atomic.Bool
}

func newEventRelay(sessionID string, size int) *eventRelay {
	return &eventRelay{sessionID: sessionID, out: make(chan outgoingMessage, size)}
}

func (r *eventRelay) push(e chatService.Event) {
	select {
	case r.out <- newOutgoing(string(e.Type), r.sessionID, e):
	default:
		r.lagged.Store(true)
	}
}

// resync returns a snapshot frame once after events were dropped.
func (r *eventRelay) resync(snapshot func() chat.Session) (outgoingMessage, bool) {
	if !r.lagged.CompareAndSwap(true, false) {
		return outgoingMessage{}, false
	}
	return newOutgoing("snapshot", r.sessionID, snapshot()), true
}

func newOutgoing(kind, sessionID string, data any) outgoingMessage {
	return outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}
