package chat

import (
	"time"

	"github.com/umayarajkumar17/portfolio/backend/internal/richtext"
)

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one entry of a conversation log. Only IsStreaming ever changes
// after the message is appended, and only from true to false.
type Message struct {
	ID          string              `json:"id"`
	Sender      Sender              `json:"sender"`
	Text        string              `json:"text"`
	Fragments   []richtext.Fragment `json:"fragments"`
	Timestamp   time.Time           `json:"timestamp"`
	IsStreaming bool                `json:"isStreaming"`
}

// Clone returns a deep copy.
func (m Message) Clone() Message {
	m.Fragments = append([]richtext.Fragment(nil), m.Fragments...)
	return m
}
