package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/umayarajkumar17/portfolio/backend/internal/config"
	"github.com/umayarajkumar17/portfolio/backend/internal/logger"
	"github.com/umayarajkumar17/portfolio/backend/internal/model/chat"
	"github.com/umayarajkumar17/portfolio/backend/internal/model/profile"
)

// Replies shown when the provider fails and the local responder is not used.
const (
	EmptyReplyText        = "I apologize, but I couldn't generate a response at this time."
	ConnectionTroubleText = "I'm having a little connection trouble with my AI brain right now. Please try again in a moment!"
	TransportTroubleText  = "Sorry, I'm having trouble connecting right now. Please check your connection and try again."
)

// Generator is the part of an eino chat model the service needs.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// FallbackResponder produces replies without the network.
type FallbackResponder interface {
	Respond(text string) string
}

// Service turns a visitor message plus recent history into a reply. It never
// fails: every error path ends in a displayable string.
type Service struct {
	generator Generator
	template  prompt.ChatTemplate
	fallback  FallbackResponder
	cfg       config.AIConfig
	system    string
	tracer    trace.Tracer
}

// Option customizes a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	generator  Generator
	httpClient *http.Client
}

// WithGenerator replaces the provider model. It is ignored when the
// configuration has no usable credentials.
func WithGenerator(g Generator) Option {
	return func(o *serviceOptions) { o.generator = g }
}

// WithHTTPClient sets the client used for the OpenAI-compatible provider.
func WithHTTPClient(c *http.Client) Option {
	return func(o *serviceOptions) { o.httpClient = c }
}

// NewService wires the reply pipeline. Without usable credentials the service
// runs in fallback-only mode and never touches the network.
func NewService(ctx context.Context, cfg config.AIConfig, p profile.Profile, fallback FallbackResponder, opts ...Option) (*Service, error) {
	if fallback == nil {
		return nil, errors.New("fallback responder is required")
	}

	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	svc := &Service{
		template: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{query}"),
		),
		fallback: fallback,
		cfg:      cfg,
		system:   BuildSystemPrompt(p),
		tracer:   otel.Tracer("portfolio/ai"),
	}

	switch {
	case !cfg.Enabled():
		slog.DebugContext(ctx, "llm credentials absent, replies use the local responder")
	case o.generator != nil:
		svc.generator = o.generator
	case cfg.Provider == config.ProviderArk:
		arkModel, err := cfg.NewArkChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create ark chat model: %w", err)
		}
		svc.generator = arkModel
	default:
		httpClient := o.httpClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: cfg.Timeout}
		}
		svc.generator = NewCompletionModel(CompletionConfig{
			BaseURL:     cfg.BaseURL(),
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			HTTPClient:  httpClient,
		})
	}

	return svc, nil
}

// Status describes the active provider without exposing credentials.
type Status struct {
	Provider        string `json:"provider"`
	Model           string `json:"model,omitempty"`
	AIEnabled       bool   `json:"aiEnabled"`
	FallbackOnError bool   `json:"fallbackOnError"`
	HistoryLimit    int    `json:"historyLimit"`
}

// Status reports how replies are currently produced.
func (s *Service) Status() Status {
	st := Status{
		Provider:        "fallback",
		AIEnabled:       s.generator != nil,
		FallbackOnError: s.cfg.FallbackOnError,
		HistoryLimit:    s.cfg.HistoryLimit,
	}
	if st.AIEnabled {
		st.Provider = s.cfg.Provider
		st.Model = s.cfg.Model
	}
	return st
}

// Reply answers userText given the conversation so far. history must not
// include userText itself.
func (s *Service) Reply(ctx context.Context, userText string, history []chat.Message) (reply string) {
	if s.generator == nil {
		return s.fallback.Respond(userText)
	}

	ctx = logger.WithFields(ctx, logger.Fields{Component: "ai"})
	ctx, span := s.tracer.Start(ctx, "ai.reply", trace.WithAttributes(
		attribute.String("llm.provider", s.cfg.Provider),
		attribute.String("llm.model", s.cfg.Model),
		attribute.Int("llm.history", len(history)),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "llm generator panicked", "panic", fmt.Sprint(r))
			span.SetStatus(codes.Error, "panic")
			reply = s.degrade(userText, TransportTroubleText)
		}
	}()

	input, err := s.template.Format(ctx, map[string]any{
		"system":  s.system,
		"history": buildHistoryMessages(history, s.cfg.HistoryLimit),
		"query":   userText,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to format prompt", "error", err)
		span.RecordError(err)
		return s.degrade(userText, TransportTroubleText)
	}

	callCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	resp, err := s.generator.Generate(callCtx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")

		var statusErr *StatusError
		switch {
		case errors.Is(err, ErrEmptyCompletion):
			slog.WarnContext(ctx, "llm returned empty content")
			return EmptyReplyText
		case errors.As(err, &statusErr):
			slog.WarnContext(ctx, "llm returned error status", "status", statusErr.StatusCode, "error", err)
			return s.degrade(userText, ConnectionTroubleText)
		default:
			slog.WarnContext(ctx, "llm request failed", "error", err)
			return s.degrade(userText, TransportTroubleText)
		}
	}

	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		slog.WarnContext(ctx, "llm returned empty content")
		return EmptyReplyText
	}

	slog.DebugContext(ctx, "llm reply generated", "length", len(resp.Content))
	return resp.Content
}

func (s *Service) degrade(userText, fixed string) string {
	if s.cfg.FallbackOnError {
		return s.fallback.Respond(userText)
	}
	return fixed
}

// buildHistoryMessages keeps the last limit messages; older context is dropped.
func buildHistoryMessages(messages []chat.Message, limit int) []*schema.Message {
	if len(messages) == 0 || limit <= 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > limit {
		startIdx = len(messages) - limit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Text))
		case chat.SenderBot:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return history
}
