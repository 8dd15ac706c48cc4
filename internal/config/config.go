package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting of the service. It is read once at startup
// and passed down by value; nothing mutates it afterwards.
type Config struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	Server    ServerConfig
	AI        AIConfig
	Chat      ChatConfig
	Events    EventsConfig
	Profile   ProfileConfig
	Telemetry TelemetryConfig
	Scheduler SchedulerConfig
}

// Load parses the process environment.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFromMap parses the given variables instead of the process environment.
func LoadFromMap(vars map[string]string) (*Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	cfg.AI.APIKey = strings.TrimSpace(cfg.AI.APIKey)
	cfg.Events.Driver = strings.ToLower(strings.TrimSpace(cfg.Events.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate rejects values the service cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.AI.Provider {
	case ProviderOpenAI, ProviderArk:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.AI.Provider))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs = append(errs, fmt.Errorf("LLM_TEMPERATURE must be within [0,2], got %v", c.AI.Temperature))
	}
	if c.AI.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("LLM_MAX_TOKENS must be positive, got %d", c.AI.MaxTokens))
	}
	if c.AI.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("LLM_HISTORY_LIMIT must not be negative, got %d", c.AI.HistoryLimit))
	}
	if c.Chat.ThinkingMin < 0 || c.Chat.ThinkingMax < c.Chat.ThinkingMin {
		errs = append(errs, fmt.Errorf("invalid thinking delay range [%s,%s]", c.Chat.ThinkingMin, c.Chat.ThinkingMax))
	}
	if c.Chat.RevealMax < c.Chat.RevealBase {
		errs = append(errs, fmt.Errorf("CHAT_REVEAL_MAX (%s) is below CHAT_REVEAL_BASE (%s)", c.Chat.RevealMax, c.Chat.RevealBase))
	}

	switch c.Events.Driver {
	case DriverMemory, DriverFile, DriverSQLite:
	case DriverPostgres:
		if c.Events.DatabaseURL == "" {
			errs = append(errs, errors.New("EVENTS_DRIVER=postgres requires DATABASE_URL"))
		}
	case DriverRedis:
		if c.Events.RedisURL == "" {
			errs = append(errs, errors.New("EVENTS_DRIVER=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_DRIVER %q", c.Events.Driver))
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be within [0,1], got %v", c.Telemetry.SampleRatio))
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limit values must not be negative"))
	}

	return errors.Join(errs...)
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"1"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"5"`

	// Addr is derived from Port.
	Addr string
}

// normalizeAddr accepts "8080", ":8080" or "127.0.0.1:8080".
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	return ":" + port, nil
}

const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"

	// MinAPIKeyLength is the shortest key treated as real. Anything shorter is
	// a leftover or a typo and routes replies to the local responder.
	MinAPIKeyLength = 20
)

var apiKeyPlaceholders = []string{"YOUR_GROQ_API_KEY", "YOUR_API_KEY", "<YOUR"}

// AIConfig describes the chat-completion provider.
type AIConfig struct {
	Provider        string        `env:"LLM_PROVIDER" envDefault:"openai"`
	Endpoint        string        `env:"LLM_API_URL" envDefault:"https://api.groq.com/openai/v1/chat/completions"`
	APIKey          string        `env:"LLM_API_KEY"`
	Model           string        `env:"LLM_MODEL" envDefault:"llama3-8b-8192"`
	Temperature     float32       `env:"LLM_TEMPERATURE" envDefault:"0.5"`
	MaxTokens       int           `env:"LLM_MAX_TOKENS" envDefault:"500"`
	HistoryLimit    int           `env:"LLM_HISTORY_LIMIT" envDefault:"5"`
	Timeout         time.Duration `env:"LLM_TIMEOUT" envDefault:"20s"`
	FallbackOnError bool          `env:"LLM_FALLBACK_ON_ERROR" envDefault:"true"`
	EmojiEnrichment bool          `env:"CHAT_EMOJI_ENRICHMENT" envDefault:"false"`

	ArkBaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	ArkRegion    string `env:"ARK_REGION" envDefault:"cn-beijing"`
	ArkAccessKey string `env:"ARK_ACCESS_KEY"`
	ArkSecretKey string `env:"ARK_SECRET_KEY"`
}

// KeyUsable reports whether the configured credentials look real. An empty
// key, a short key or a copied placeholder all mean "no provider".
func (c AIConfig) KeyUsable() bool {
	if c.Provider == ProviderArk && c.ArkAccessKey != "" && c.ArkSecretKey != "" {
		return true
	}

	key := strings.TrimSpace(c.APIKey)
	if len(key) < MinAPIKeyLength {
		return false
	}

	upper := strings.ToUpper(key)
	for _, marker := range apiKeyPlaceholders {
		if strings.Contains(upper, marker) {
			return false
		}
	}
	return true
}

// Enabled reports whether replies should go to the remote model at all.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && c.KeyUsable()
}

// BaseURL strips the chat-completions suffix from Endpoint so clients that
// append their own path can use it.
func (c AIConfig) BaseURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	return strings.TrimSuffix(base, "/chat/completions")
}

// NewArkChatModel builds a Volcengine Ark model from the configuration.
func (c AIConfig) NewArkChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("ark credentials or model missing: set LLM_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY and LLM_MODEL")
	}

	temperature := c.Temperature
	maxTokens := c.MaxTokens

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.ArkBaseURL,
		Region:      c.ArkRegion,
		APIKey:      c.APIKey,
		AccessKey:   c.ArkAccessKey,
		SecretKey:   c.ArkSecretKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
}

// ChatConfig holds the pacing of the conversation state machine.
type ChatConfig struct {
	WelcomeDelay  time.Duration `env:"CHAT_WELCOME_DELAY" envDefault:"600ms"`
	ThinkingMin   time.Duration `env:"CHAT_THINKING_MIN" envDefault:"500ms"`
	ThinkingMax   time.Duration `env:"CHAT_THINKING_MAX" envDefault:"1500ms"`
	RevealBase    time.Duration `env:"CHAT_REVEAL_BASE" envDefault:"300ms"`
	RevealPerRune time.Duration `env:"CHAT_REVEAL_PER_RUNE" envDefault:"4ms"`
	RevealMax     time.Duration `env:"CHAT_REVEAL_MAX" envDefault:"3s"`
	IdleTTL       time.Duration `env:"CHAT_SESSION_IDLE_TTL" envDefault:"30m"`
	MaxSessions   int           `env:"CHAT_MAX_SESSIONS" envDefault:"10000"`
}

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// EventsConfig selects where visitor events are written.
type EventsConfig struct {
	Driver         string `env:"EVENTS_DRIVER" envDefault:"memory"`
	MemoryCapacity int    `env:"EVENTS_MEMORY_CAPACITY" envDefault:"10000"`
	FilePath       string `env:"EVENTS_FILE" envDefault:"data/portfolio_events.jsonl"`
	SQLitePath     string `env:"EVENTS_SQLITE_PATH" envDefault:"data/portfolio_events.db"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RedisURL       string `env:"REDIS_URL"`
	Stream         string `env:"EVENTS_STREAM" envDefault:"portfolio_events"`
	NodeID         int64  `env:"EVENTS_NODE_ID" envDefault:"1"`
}

// ProfileConfig points at an optional profile document overriding the embedded one.
type ProfileConfig struct {
	Path string `env:"PROFILE_PATH"`
}

// TelemetryConfig configures logging and OTLP export.
type TelemetryConfig struct {
	Endpoint       string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Headers        string  `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName    string  `env:"OTEL_SERVICE_NAME" envDefault:"portfolio-chat"`
	ServiceVersion string  `env:"SERVICE_VERSION" envDefault:"dev"`
	Environment    string  `env:"APP_ENV" envDefault:"development"`
	SampleRatio    float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1"`
	LogLevel       string  `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string  `env:"LOG_FORMAT" envDefault:"text"`
}

// Enabled reports whether an OTLP collector is configured.
func (c TelemetryConfig) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// SchedulerConfig configures background jobs.
type SchedulerConfig struct {
	Enabled       bool          `env:"SCHEDULER_ENABLED" envDefault:"true"`
	SweepInterval time.Duration `env:"CHAT_SWEEP_INTERVAL" envDefault:"1m"`
	DigestSpec    string        `env:"EVENTS_DIGEST_CRON" envDefault:"5 0 * * *"`
}
