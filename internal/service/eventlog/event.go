package eventlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrMissingFields is returned when sessionId or eventType is blank.
var ErrMissingFields = errors.New("missing required fields")

// Event types sent by the portfolio site. Other values are stored as-is.
const (
	TypeChatOpen       = "chat_open"
	TypeChatClose      = "chat_close"
	TypeChatSend       = "chat_send"
	TypeChatSuggestion = "chat_suggestion"
	TypeChatClear      = "chat_clear"
	TypePageView       = "page_view"
	TypeCVDownload     = "cv_download"
	TypeProjectClick   = "project_click"
	TypeContactClick   = "contact_click"
)

// Input is the body accepted by the logging endpoint.
type Input struct {
	SessionID string          `json:"sessionId"`
	EventType string          `json:"eventType"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	UserAgent string          `json:"userAgent"`
	Referrer  string          `json:"referrer"`
}

// Validate reports ErrMissingFields when the input cannot be stored.
func (in Input) Validate() error {
	if strings.TrimSpace(in.SessionID) == "" || strings.TrimSpace(in.EventType) == "" {
		return ErrMissingFields
	}
	return nil
}

// Event is a stored visitor interaction. Timestamp is the client clock as
// sent; CreatedAt is the server clock.
type Event struct {
	ID        int64     `json:"id,string"`
	SessionID string    `json:"sessionId"`
	EventType string    `json:"eventType"`
	Timestamp string    `json:"timestamp,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// clientTimestamp keeps whatever the client sent: JSON strings are unquoted,
// numbers are kept in their textual form, null becomes empty.
func clientTimestamp(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// inRange reports whether t lies in [since, until). Zero bounds are open.
func inRange(t, since, until time.Time) bool {
	if !since.IsZero() && t.Before(since) {
		return false
	}
	if !until.IsZero() && !t.Before(until) {
		return false
	}
	return true
}
