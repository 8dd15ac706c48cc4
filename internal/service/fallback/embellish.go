package fallback

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

var defaultEmojis = []string{"✨", "🚀", "🤖", "💡", "😄", "🎯", "🔥", "🧠"}

// Embellisher appends a random emoji to replies that do not carry one yet.
type Embellisher struct {
	emojis []string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewEmbellisher returns an Embellisher drawing from src; nil seeds from the clock.
func NewEmbellisher(src rand.Source, emojis ...string) *Embellisher {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), 0x2545f4914f6cdd1d)
	}
	if len(emojis) == 0 {
		emojis = defaultEmojis
	}
	return &Embellisher{
		emojis: append([]string(nil), emojis...),
		rnd:    rand.New(src),
	}
}

// Embellish returns text with one emoji appended. Blank text and text that
// already contains one of the emojis are returned unchanged.
func (e *Embellisher) Embellish(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	for _, emoji := range e.emojis {
		if strings.Contains(text, emoji) {
			return text
		}
	}

	e.mu.Lock()
	emoji := e.emojis[e.rnd.IntN(len(e.emojis))]
	e.mu.Unlock()

	return strings.TrimRight(text, " \n") + " " + emoji
}
