package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion is returned when the provider answers 2xx without content.
var ErrEmptyCompletion = errors.New("empty completion")

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// CompletionConfig configures a CompletionModel.
type CompletionConfig struct {
	// BaseURL is the API root; "/chat/completions" is appended per request.
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	HTTPClient  *http.Client
}

// CompletionModel is an eino chat model over any OpenAI-compatible
// chat-completions endpoint (Groq by default).
type CompletionModel struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewCompletionModel creates the model. No request is made until Generate.
func NewCompletionModel(cfg CompletionConfig) *CompletionModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &CompletionModel{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Generate sends one chat-completions request.
func (m *CompletionModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	temperature, maxTokens, modelName := m.temperature, m.maxTokens, m.model
	options := model.GetCommonOptions(&model.Options{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Model:       &modelName,
	}, opts...)

	req := openai.ChatCompletionRequest{
		Model:       *options.Model,
		Messages:    toOpenAIMessages(input),
		Temperature: *options.Temperature,
		MaxTokens:   *options.MaxTokens,
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyCompletion
	}
	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

// Stream yields the whole completion as a single chunk; replies are revealed
// client side, so token streaming buys nothing here.
func (m *CompletionModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools is not supported.
func (m *CompletionModel) BindTools(_ []*schema.ToolInfo) error {
	return errors.New("completion model does not support tools")
}

func toOpenAIMessages(input []*schema.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}

		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case schema.System:
			role = openai.ChatMessageRoleSystem
		case schema.Assistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}
