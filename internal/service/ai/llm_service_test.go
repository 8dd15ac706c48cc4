package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umayarajkumar17/portfolio/backend/internal/config"
	"github.com/umayarajkumar17/portfolio/backend/internal/model/chat"
	"github.com/umayarajkumar17/portfolio/backend/internal/model/profile"
	"github.com/umayarajkumar17/portfolio/backend/internal/service/fallback"
)

const testKey = "gsk_test_0123456789abcdefghijklmnop"

type capturedRequest struct {
	Path          string
	Authorization string
	Body          struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
}

type fakeProvider struct {
	server *httptest.Server
	hits   atomic.Int32
	last   capturedRequest
}

func newFakeProvider(t *testing.T, status int, body string) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{}
	fp.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp.hits.Add(1)
		fp.last.Path = r.URL.Path
		fp.last.Authorization = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&fp.last.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) endpoint() string {
	return fp.server.URL + "/openai/v1/chat/completions"
}

func aiConfig(endpoint, key string, fallbackOnError bool) config.AIConfig {
	return config.AIConfig{
		Provider:        config.ProviderOpenAI,
		Endpoint:        endpoint,
		APIKey:          key,
		Model:           "llama3-8b-8192",
		Temperature:     0.5,
		MaxTokens:       500,
		HistoryLimit:    5,
		Timeout:         5 * time.Second,
		FallbackOnError: fallbackOnError,
	}
}

func newFallback() *fallback.Responder {
	return fallback.New(profile.Default(), rand.NewPCG(1, 1))
}

func newTestService(t *testing.T, cfg config.AIConfig) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), cfg, profile.Default(), newFallback())
	require.NoError(t, err)
	return svc
}

func completionBody(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": content},
		}},
	})
	return string(payload)
}

func conversation(n int) []chat.Message {
	msgs := make([]chat.Message, 0, n)
	for i := 0; i < n; i++ {
		sender := chat.SenderUser
		if i%2 == 1 {
			sender = chat.SenderBot
		}
		msgs = append(msgs, chat.Message{ID: fmt.Sprint(i), Sender: sender, Text: fmt.Sprintf("turn %d", i)})
	}
	return msgs
}

func TestReplyWithoutKeyNeverCallsNetwork(t *testing.T) {
	fp := newFakeProvider(t, http.StatusOK, completionBody("should not be used"))

	for _, key := range []string{"", "short", "YOUR_GROQ_API_KEY_PLEASE_REPLACE"} {
		svc := newTestService(t, aiConfig(fp.endpoint(), key, true))
		reply := svc.Reply(context.Background(), "Tell me about your projects", nil)

		assert.Contains(t, reply, "github.com", "key %q", key)
		assert.Equal(t, newFallback().Respond("Tell me about your projects"), reply)
		assert.False(t, svc.Status().AIEnabled)
	}
	assert.Zero(t, fp.hits.Load())
}

func TestReplySuccessBuildsRequest(t *testing.T) {
	fp := newFakeProvider(t, http.StatusOK, completionBody("Hello from the model <a href='https://github.com/UmayarajKumar17'>gh</a>"))
	svc := newTestService(t, aiConfig(fp.endpoint(), testKey, true))

	reply := svc.Reply(context.Background(), "What do you build?", conversation(8))

	assert.Equal(t, "Hello from the model <a href='https://github.com/UmayarajKumar17'>gh</a>", reply)
	require.EqualValues(t, 1, fp.hits.Load())

	req := fp.last
	assert.Equal(t, "/openai/v1/chat/completions", req.Path)
	assert.Equal(t, "Bearer "+testKey, req.Authorization)
	assert.Equal(t, "llama3-8b-8192", req.Body.Model)
	assert.InDelta(t, 0.5, req.Body.Temperature, 0.0001)
	assert.Equal(t, 500, req.Body.MaxTokens)

	require.Len(t, req.Body.Messages, 7)
	assert.Equal(t, "system", req.Body.Messages[0].Role)
	assert.Contains(t, req.Body.Messages[0].Content, "Umayaraj Kumar")
	assert.Contains(t, req.Body.Messages[0].Content, "https://github.com/UmayarajKumar17")
	assert.Equal(t, "assistant", req.Body.Messages[1].Role)
	assert.Equal(t, "turn 3", req.Body.Messages[1].Content)
	assert.Equal(t, "assistant", req.Body.Messages[5].Role)
	assert.Equal(t, "turn 7", req.Body.Messages[5].Content)
	assert.Equal(t, "user", req.Body.Messages[6].Role)
	assert.Equal(t, "What do you build?", req.Body.Messages[6].Content)
}

func TestReplyServerErrorResolvesToFixedText(t *testing.T) {
	fp := newFakeProvider(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`)
	svc := newTestService(t, aiConfig(fp.endpoint(), testKey, false))

	reply := svc.Reply(context.Background(), "hello", nil)
	assert.Equal(t, ConnectionTroubleText, reply)
	assert.EqualValues(t, 1, fp.hits.Load())
}

func TestReplyServerErrorWithNonJSONBody(t *testing.T) {
	fp := newFakeProvider(t, http.StatusBadGateway, "upstream exploded")
	svc := newTestService(t, aiConfig(fp.endpoint(), testKey, false))

	assert.Equal(t, ConnectionTroubleText, svc.Reply(context.Background(), "hello", nil))
}

func TestReplyServerErrorFallsBackWhenConfigured(t *testing.T) {
	fp := newFakeProvider(t, http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`)
	svc := newTestService(t, aiConfig(fp.endpoint(), testKey, true))

	reply := svc.Reply(context.Background(), "Tell me about your projects", nil)
	assert.Equal(t, newFallback().Respond("Tell me about your projects"), reply)
}

func TestReplyEmptyContent(t *testing.T) {
	for _, body := range []string{completionBody(""), completionBody("   "), `{"choices":[]}`} {
		fp := newFakeProvider(t, http.StatusOK, body)
		svc := newTestService(t, aiConfig(fp.endpoint(), testKey, true))
		assert.Equal(t, EmptyReplyText, svc.Reply(context.Background(), "hello", nil), "body %s", body)
	}
}

func TestReplyTransportFailure(t *testing.T) {
	fp := newFakeProvider(t, http.StatusOK, completionBody("unused"))
	endpoint := fp.endpoint()
	fp.server.Close()

	svc := newTestService(t, aiConfig(endpoint, testKey, false))
	assert.Equal(t, TransportTroubleText, svc.Reply(context.Background(), "hello", nil))

	withFallback := newTestService(t, aiConfig(endpoint, testKey, true))
	assert.Equal(t, newFallback().Respond("hello"), withFallback.Reply(context.Background(), "hello", nil))
}

type generatorFunc func(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)

func (f generatorFunc) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return f(ctx, input, opts...)
}

func TestReplyRecoversFromPanickingGenerator(t *testing.T) {
	gen := generatorFunc(func(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
		panic("kaboom")
	})
	svc, err := NewService(context.Background(), aiConfig("", testKey, false), profile.Default(), newFallback(), WithGenerator(gen))
	require.NoError(t, err)

	assert.Equal(t, TransportTroubleText, svc.Reply(context.Background(), "hello", nil))
}

func TestInjectedGeneratorNeedsUsableKey(t *testing.T) {
	for _, key := range []string{"", "YOUR_GROQ_API_KEY_GOES_HERE"} {
		var calls atomic.Int32
		gen := generatorFunc(func(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
			calls.Add(1)
			return schema.AssistantMessage("from network", nil), nil
		})
		svc, err := NewService(context.Background(), aiConfig("", key, true), profile.Default(), newFallback(), WithGenerator(gen))
		require.NoError(t, err)

		reply := svc.Reply(context.Background(), "Tell me about your projects", nil)
		assert.Equal(t, int32(0), calls.Load(), "key %q", key)
		assert.Equal(t, newFallback().Respond("Tell me about your projects"), reply)
		assert.Contains(t, reply, "github.com")
		assert.False(t, svc.Status().AIEnabled)
	}
}

func TestReplyHistoryLimitZeroSendsNoHistory(t *testing.T) {
	var got []*schema.Message
	gen := generatorFunc(func(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
		got = input
		return schema.AssistantMessage("ok", nil), nil
	})
	cfg := aiConfig("", testKey, true)
	cfg.HistoryLimit = 0
	svc, err := NewService(context.Background(), cfg, profile.Default(), newFallback(), WithGenerator(gen))
	require.NoError(t, err)

	assert.Equal(t, "ok", svc.Reply(context.Background(), "hi", conversation(4)))
	require.Len(t, got, 2)
	assert.Equal(t, schema.System, got[0].Role)
	assert.Equal(t, schema.User, got[1].Role)
}

func TestNewServiceRequiresFallback(t *testing.T) {
	_, err := NewService(context.Background(), aiConfig("", "", true), profile.Default(), nil)
	assert.Error(t, err)
}

func TestBuildSystemPromptEmbedsProfile(t *testing.T) {
	p := profile.Default()
	prompt := BuildSystemPrompt(p)

	assert.Contains(t, prompt, p.Email)
	assert.Contains(t, prompt, p.GitHubURL)
	for _, project := range p.Projects {
		assert.Contains(t, prompt, project.Name)
	}
	assert.True(t, strings.Contains(prompt, "Under Development"))
}
