package chat

import "github.com/umayarajkumar17/portfolio/backend/internal/model/chat"

// EventType names a change published by a Machine.
type EventType string

const (
	EventState   EventType = "state"
	EventMessage EventType = "message"
	EventReveal  EventType = "reveal"
	EventReady   EventType = "ready"
	EventCleared EventType = "cleared"
	EventClosed  EventType = "closed"
)

// Event is delivered to subscribers after the change it describes has been
// applied. Message is a copy and may be retained.
type Event struct {
	Type        EventType     `json:"type"`
	SessionID   string        `json:"sessionId"`
	Phase       chat.Phase    `json:"phase"`
	Open        bool          `json:"isOpen"`
	Expanded    bool          `json:"isExpanded"`
	Message     *chat.Message `json:"message,omitempty"`
	Revealed    int           `json:"revealed,omitempty"`
	Total       int           `json:"total,omitempty"`
	Suggestions []string      `json:"suggestions,omitempty"`
}

// Listener receives machine events. It runs on the goroutine that caused the
// change and must not call back into the Machine.
type Listener func(Event)
