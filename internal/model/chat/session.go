package chat

import "time"

// Phase is the conversational state of an open or closed widget.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseThinking  Phase = "thinking"
	PhaseStreaming Phase = "streaming"
)

// Session is a point-in-time view of a conversation.
type Session struct {
	ID                 string    `json:"id"`
	CreatedAt          time.Time `json:"createdAt"`
	Messages           []Message `json:"messages"`
	UsedSuggestions    []string  `json:"usedSuggestions"`
	Suggestions        []string  `json:"suggestions"`
	IsOpen             bool      `json:"isOpen"`
	IsExpanded         bool      `json:"isExpanded"`
	Phase              Phase     `json:"phase"`
	PendingStreamIndex *int      `json:"pendingStreamIndex,omitempty"`
	Revealed           int       `json:"revealed,omitempty"`
}

// WelcomeText opens every fresh conversation.
const WelcomeText = "✨ Hey there! I'm Umayaraj's AI assistant - with all the brains of AI and none of the coffee breaks! " +
	"How can I help you discover Umayaraj's awesome skills today? (I promise I'm more reliable than his alarm clock! 😄)"

// ApologyText replaces a reply when the reply pipeline fails outright.
const ApologyText = "Oops! Something went wrong on my side. Please try again in a moment."

// MaxVisibleSuggestions caps the chips shown at once.
const MaxVisibleSuggestions = 3

// DefaultSuggestions is the chip catalog.
func DefaultSuggestions() []string {
	return []string{
		"Tell me about your projects",
		"What skills do you have?",
		"How can I contact you?",
		"What's your experience?",
	}
}
