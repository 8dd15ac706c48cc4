package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/umayarajkumar17/portfolio/backend/internal/config"
	"github.com/umayarajkumar17/portfolio/backend/internal/logger"
	"github.com/umayarajkumar17/portfolio/backend/internal/model/chat"
	"github.com/umayarajkumar17/portfolio/backend/internal/richtext"
)

var (
	ErrBlankMessage      = errors.New("message is blank")
	ErrClosed            = errors.New("chat is closed")
	ErrBusy              = errors.New("a reply is still in progress")
	ErrUnknownSuggestion = errors.New("suggestion is not in the catalog")
)

const (
	minRunesPerFrame = 3
	maxRevealFrames  = 60
)

// Responder produces the bot reply for a visitor message. history holds the
// conversation before text was sent.
type Responder interface {
	Reply(ctx context.Context, text string, history []chat.Message) string
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, text string, history []chat.Message) string

// Reply calls f.
func (f ResponderFunc) Reply(ctx context.Context, text string, history []chat.Message) string {
	return f(ctx, text, history)
}

// Enricher decorates a reply before it is shown.
type Enricher interface {
	Embellish(text string) string
}

// Timing controls the artificial pacing of a conversation.
type Timing struct {
	WelcomeDelay  time.Duration
	ThinkingMin   time.Duration
	ThinkingMax   time.Duration
	RevealBase    time.Duration
	RevealPerRune time.Duration
	RevealMax     time.Duration
}

// TimingFromConfig copies the pacing settings.
func TimingFromConfig(cfg config.ChatConfig) Timing {
	return Timing{
		WelcomeDelay:  cfg.WelcomeDelay,
		ThinkingMin:   cfg.ThinkingMin,
		ThinkingMax:   cfg.ThinkingMax,
		RevealBase:    cfg.RevealBase,
		RevealPerRune: cfg.RevealPerRune,
		RevealMax:     cfg.RevealMax,
	}
}

// DefaultTiming mirrors the configuration defaults.
func DefaultTiming() Timing {
	return Timing{
		WelcomeDelay:  600 * time.Millisecond,
		ThinkingMin:   500 * time.Millisecond,
		ThinkingMax:   1500 * time.Millisecond,
		RevealBase:    300 * time.Millisecond,
		RevealPerRune: 4 * time.Millisecond,
		RevealMax:     3 * time.Second,
	}
}

// RevealDuration is how long the reveal of a text of n runes takes.
func (t Timing) RevealDuration(n int) time.Duration {
	d := t.RevealBase + time.Duration(n)*t.RevealPerRune
	if t.RevealMax > 0 && d > t.RevealMax {
		d = t.RevealMax
	}
	return d
}

// RevealPlan splits a reveal of n runes into frames of step runes.
func RevealPlan(n int) (step, frames int) {
	if n <= 0 {
		return 0, 1
	}
	step = (n + maxRevealFrames - 1) / maxRevealFrames
	if step < minRunesPerFrame {
		step = minRunesPerFrame
	}
	frames = (n + step - 1) / step
	return step, frames
}

// Option customizes a Machine or every Machine of a Service.
type Option func(*options)

type options struct {
	clock       Clock
	timing      Timing
	enricher    Enricher
	suggestions []string
	newSource   func() rand.Source
	maxSessions int
}

func defaultOptions() options {
	return options{
		clock:       RealClock(),
		timing:      DefaultTiming(),
		suggestions: chat.DefaultSuggestions(),
		newSource: func() rand.Source {
			return rand.NewPCG(rand.Uint64(), rand.Uint64())
		},
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithTiming sets the pacing.
func WithTiming(t Timing) Option {
	return func(o *options) { o.timing = t }
}

// WithEnricher decorates every responder reply.
func WithEnricher(e Enricher) Option {
	return func(o *options) { o.enricher = e }
}

// WithSuggestions replaces the suggestion catalog.
func WithSuggestions(list ...string) Option {
	return func(o *options) { o.suggestions = append([]string(nil), list...) }
}

// WithRandFactory supplies the random source of each Machine. The factory is
// called once per Machine.
func WithRandFactory(f func() rand.Source) Option {
	return func(o *options) { o.newSource = f }
}

// WithMaxSessions caps the number of live sessions of a Service.
func WithMaxSessions(n int) Option {
	return func(o *options) { o.maxSessions = n }
}

// Machine is the conversation of one widget instance.
type Machine struct {
	id        string
	createdAt time.Time
	responder Responder
	enricher  Enricher
	timing    Timing
	clock     Clock
	catalog   []string
	done      chan struct{}

	// emitMu keeps event delivery in the order changes were applied.
	emitMu sync.Mutex

	mu              sync.Mutex
	rnd             *rand.Rand
	messages        []chat.Message
	used            map[string]struct{}
	usedOrder       []string
	open            bool
	expanded        bool
	phase           chat.Phase
	pending         int
	revealed        int
	showSuggestions bool
	generation      uint64
	timer           Timer
	cancelTurn      context.CancelFunc
	discarded       bool
	lastActive      time.Time
	listeners       map[int]Listener
	nextListener    int
}

// NewMachine creates a closed, empty conversation.
func NewMachine(id string, responder Responder, opts ...Option) *Machine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newMachine(id, responder, o)
}

func newMachine(id string, responder Responder, o options) *Machine {
	now := o.clock.Now()
	return &Machine{
		id:              id,
		createdAt:       now,
		responder:       responder,
		enricher:        o.enricher,
		timing:          o.timing,
		clock:           o.clock,
		catalog:         o.suggestions,
		done:            make(chan struct{}),
		rnd:             rand.New(o.newSource()),
		used:            make(map[string]struct{}),
		phase:           chat.PhaseIdle,
		pending:         -1,
		showSuggestions: true,
		lastActive:      now,
		listeners:       make(map[int]Listener),
	}
}

// ID returns the session key.
func (m *Machine) ID() string { return m.id }

// Done is closed once the machine is discarded.
func (m *Machine) Done() <-chan struct{} { return m.done }

// LastActive reports the last visitor interaction.
func (m *Machine) LastActive() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActive
}

// Subscribe registers l and returns a function removing it.
func (m *Machine) Subscribe(l Listener) func() {
	m.mu.Lock()
	key := m.nextListener
	m.nextListener++
	m.listeners[key] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, key)
		m.mu.Unlock()
	}
}

// Open shows the widget. A conversation without messages starts with the
// welcome sequence.
func (m *Machine) Open() error {
	m.mu.Lock()
	if m.discarded {
		m.mu.Unlock()
		return ErrClosed
	}
	m.touch()

	var events []Event
	if !m.open {
		m.open = true
		if len(m.messages) == 0 && m.phase == chat.PhaseIdle {
			m.startWelcome()
		}
		events = append(events, m.event(EventState))
	}
	m.unlockAndEmit(events)
	return nil
}

// Close hides the widget. The conversation and any pending turn are kept.
func (m *Machine) Close() error {
	m.mu.Lock()
	if m.discarded {
		m.mu.Unlock()
		return ErrClosed
	}
	m.touch()

	var events []Event
	if m.open {
		m.open = false
		events = append(events, m.event(EventClosed))
	}
	m.unlockAndEmit(events)
	return nil
}

// SetExpanded changes the size preset. It never affects the conversation.
func (m *Machine) SetExpanded(expanded bool) error {
	return m.updateExpanded(func(bool) bool { return expanded })
}

// ToggleExpanded flips the size preset.
func (m *Machine) ToggleExpanded() error {
	return m.updateExpanded(func(cur bool) bool { return !cur })
}

func (m *Machine) updateExpanded(next func(bool) bool) error {
	m.mu.Lock()
	if m.discarded {
		m.mu.Unlock()
		return ErrClosed
	}
	m.touch()

	var events []Event
	if v := next(m.expanded); v != m.expanded {
		m.expanded = v
		events = append(events, m.event(EventState))
	}
	m.unlockAndEmit(events)
	return nil
}

// Send appends a visitor message and starts a turn. Rejected sends change
// nothing.
func (m *Machine) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrBlankMessage
	}

	m.mu.Lock()
	if err := m.canSend(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.touch()

	history := m.copyMessages()
	msg := chat.Message{
		ID:        uuid.NewString(),
		Sender:    chat.SenderUser,
		Text:      text,
		Fragments: richtext.FromPlain(text),
		Timestamp: m.clock.Now(),
	}
	m.messages = append(m.messages, msg)
	if m.inCatalog(text) {
		m.markUsed(text)
	}
	m.showSuggestions = false
	m.phase = chat.PhaseThinking

	gen := m.generation
	turnCtx, cancel := context.WithCancel(context.Background())
	m.cancelTurn = cancel
	m.timer = m.clock.AfterFunc(m.thinkingDelay(), func() {
		m.respond(turnCtx, gen, text, history)
	})

	copied := msg.Clone()
	events := []Event{m.messageEvent(&copied), m.event(EventState)}
	m.unlockAndEmit(events)
	return nil
}

// UseSuggestion sends a catalog prompt as if the visitor typed it.
func (m *Machine) UseSuggestion(text string) error {
	m.mu.Lock()
	known := m.inCatalog(strings.TrimSpace(text))
	m.mu.Unlock()
	if !known {
		return ErrUnknownSuggestion
	}
	return m.Send(text)
}

// Clear empties the conversation and replays the welcome sequence.
func (m *Machine) Clear() error {
	m.mu.Lock()
	if m.discarded || !m.open {
		m.mu.Unlock()
		return ErrClosed
	}
	m.touch()

	m.abandonTurn()
	m.messages = nil
	m.used = make(map[string]struct{})
	m.usedOrder = nil
	m.pending = -1
	m.revealed = 0
	m.phase = chat.PhaseIdle
	m.startWelcome()

	events := []Event{m.event(EventCleared), m.event(EventState)}
	m.unlockAndEmit(events)
	return nil
}

// Discard tears the machine down. Pending timers and in-flight replies are
// dropped and listeners are released.
func (m *Machine) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.discarded {
		return
	}
	m.discarded = true
	m.open = false
	m.abandonTurn()
	m.listeners = make(map[int]Listener)
	close(m.done)
}

// Snapshot returns a copy of the conversation.
func (m *Machine) Snapshot() chat.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := chat.Session{
		ID:              m.id,
		CreatedAt:       m.createdAt,
		Messages:        m.copyMessages(),
		UsedSuggestions: append([]string{}, m.usedOrder...),
		Suggestions:     m.visibleSuggestions(),
		IsOpen:          m.open,
		IsExpanded:      m.expanded,
		Phase:           m.phase,
	}
	if m.pending >= 0 {
		idx := m.pending
		s.PendingStreamIndex = &idx
		s.Revealed = m.revealed
	}
	return s
}

// respond runs once the thinking delay has elapsed.
func (m *Machine) respond(ctx context.Context, gen uint64, text string, history []chat.Message) {
	m.mu.Lock()
	stale := m.generation != gen
	m.mu.Unlock()
	if stale {
		return
	}

	reply := m.safeReply(ctx, text, history)

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return
	}
	if m.cancelTurn != nil {
		m.cancelTurn()
		m.cancelTurn = nil
	}
	events := m.pushBotMessage(reply)
	m.unlockAndEmit(events)
}

func (m *Machine) safeReply(ctx context.Context, text string, history []chat.Message) (reply string) {
	ctx = logger.WithFields(ctx, logger.Fields{Component: "chat", SessionID: m.id})
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "reply pipeline panicked", "panic", fmt.Sprint(r))
			reply = chat.ApologyText
		}
	}()

	reply = m.responder.Reply(ctx, text, history)
	if m.enricher != nil {
		reply = m.enricher.Embellish(reply)
	}
	if strings.TrimSpace(reply) == "" {
		slog.WarnContext(ctx, "reply pipeline returned blank text")
		reply = chat.ApologyText
	}
	return reply
}

// pushBotMessage appends a streaming bot message and schedules its reveal.
// Callers hold mu.
func (m *Machine) pushBotMessage(markup string) []Event {
	frags := richtext.Parse(markup)
	text := richtext.PlainText(frags)
	if text == "" {
		frags = richtext.FromPlain(markup)
		text = markup
	}

	msg := chat.Message{
		ID:          uuid.NewString(),
		Sender:      chat.SenderBot,
		Text:        text,
		Fragments:   frags,
		Timestamp:   m.clock.Now(),
		IsStreaming: true,
	}
	m.messages = append(m.messages, msg)
	m.pending = len(m.messages) - 1
	m.revealed = 0
	m.phase = chat.PhaseStreaming

	total := utf8.RuneCountInString(text)
	step, frames := RevealPlan(total)
	interval := m.timing.RevealDuration(total) / time.Duration(frames)
	m.scheduleReveal(m.generation, step, total, interval)

	copied := msg.Clone()
	return []Event{m.messageEvent(&copied), m.event(EventState)}
}

func (m *Machine) scheduleReveal(gen uint64, step, total int, interval time.Duration) {
	m.timer = m.clock.AfterFunc(interval, func() {
		m.revealTick(gen, step, total, interval)
	})
}

func (m *Machine) revealTick(gen uint64, step, total int, interval time.Duration) {
	m.mu.Lock()
	if m.generation != gen || m.pending < 0 {
		m.mu.Unlock()
		return
	}

	m.revealed += step
	if m.revealed > total {
		m.revealed = total
	}

	reveal := m.event(EventReveal)
	reveal.Revealed = m.revealed
	reveal.Total = total
	events := []Event{reveal}

	if m.revealed < total {
		m.scheduleReveal(gen, step, total, interval)
		m.unlockAndEmit(events)
		return
	}

	idx := m.pending
	m.messages[idx].IsStreaming = false
	m.pending = -1
	m.revealed = 0
	m.phase = chat.PhaseIdle
	m.showSuggestions = true
	m.timer = nil

	done := m.messages[idx].Clone()
	ready := m.messageEvent(&done)
	ready.Type = EventReady
	ready.Suggestions = m.visibleSuggestions()
	events = append(events, ready)
	m.unlockAndEmit(events)
}

// startWelcome enters thinking and schedules the welcome message. Callers
// hold mu.
func (m *Machine) startWelcome() {
	m.phase = chat.PhaseThinking
	m.showSuggestions = false

	gen := m.generation
	m.timer = m.clock.AfterFunc(m.timing.WelcomeDelay, func() {
		m.mu.Lock()
		if m.generation != gen {
			m.mu.Unlock()
			return
		}
		events := m.pushBotMessage(chat.WelcomeText)
		m.unlockAndEmit(events)
	})
}

// abandonTurn invalidates every pending callback. Callers hold mu.
func (m *Machine) abandonTurn() {
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancelTurn != nil {
		m.cancelTurn()
		m.cancelTurn = nil
	}
}

func (m *Machine) canSend() error {
	switch {
	case m.discarded || !m.open:
		return ErrClosed
	case m.phase != chat.PhaseIdle:
		return ErrBusy
	}
	return nil
}

func (m *Machine) thinkingDelay() time.Duration {
	lo, hi := m.timing.ThinkingMin, m.timing.ThinkingMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(m.rnd.Int64N(int64(hi-lo)))
}

func (m *Machine) inCatalog(text string) bool {
	for _, s := range m.catalog {
		if s == text {
			return true
		}
	}
	return false
}

func (m *Machine) markUsed(text string) {
	if _, ok := m.used[text]; ok {
		return
	}
	m.used[text] = struct{}{}
	m.usedOrder = append(m.usedOrder, text)
}

func (m *Machine) visibleSuggestions() []string {
	if !m.showSuggestions || m.phase != chat.PhaseIdle {
		return []string{}
	}
	visible := make([]string, 0, chat.MaxVisibleSuggestions)
	for _, s := range m.catalog {
		if _, ok := m.used[s]; ok {
			continue
		}
		visible = append(visible, s)
		if len(visible) == chat.MaxVisibleSuggestions {
			break
		}
	}
	return visible
}

func (m *Machine) copyMessages() []chat.Message {
	out := make([]chat.Message, len(m.messages))
	for i, msg := range m.messages {
		out[i] = msg.Clone()
	}
	return out
}

func (m *Machine) touch() {
	m.lastActive = m.clock.Now()
}

func (m *Machine) event(t EventType) Event {
	return Event{
		Type:        t,
		SessionID:   m.id,
		Phase:       m.phase,
		Open:        m.open,
		Expanded:    m.expanded,
		Suggestions: m.visibleSuggestions(),
	}
}

func (m *Machine) messageEvent(msg *chat.Message) Event {
	e := m.event(EventMessage)
	e.Message = msg
	return e
}

// unlockAndEmit releases mu and delivers events outside it. emitMu is taken
// before mu is released so deliveries never overtake each other.
func (m *Machine) unlockAndEmit(events []Event) {
	if len(events) == 0 || len(m.listeners) == 0 {
		m.mu.Unlock()
		return
	}

	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}

	m.emitMu.Lock()
	m.mu.Unlock()
	defer m.emitMu.Unlock()

	for _, e := range events {
		for _, l := range listeners {
			l(e)
		}
	}
}
