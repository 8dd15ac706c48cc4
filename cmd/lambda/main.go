package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/umayarajkumar17/portfolio/backend/internal/config"
	eventHandler "github.com/umayarajkumar17/portfolio/backend/internal/handler/event"
	"github.com/umayarajkumar17/portfolio/backend/internal/logger"
	"github.com/umayarajkumar17/portfolio/backend/internal/service/eventlog"
)

// app is built once per cold start and reused across invocations.
type app struct {
	events eventHandler.Logger
}

var (
	initMu  sync.Mutex
	current *app
	// build is swapped in tests.
	build = newApp
)

// initialize keeps the first successful app. A failed build is not cached,
// so the next invocation tries again.
func initialize(ctx context.Context) (*app, error) {
	initMu.Lock()
	defer initMu.Unlock()

	if current != nil {
		return current, nil
	}
	a, err := build(ctx)
	if err != nil {
		return nil, err
	}
	current = a
	return current, nil
}

func newApp(ctx context.Context) (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg.Telemetry)

	store, err := eventlog.OpenStore(ctx, cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("opening %s event store: %w", cfg.Events.Driver, err)
	}
	svc, err := eventlog.NewService(store, cfg.Events.NodeID)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	slog.InfoContext(ctx, "lambda initialized", "driver", cfg.Events.Driver)
	return &app{events: svc}, nil
}

func handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod == http.MethodOptions {
		return respond(http.StatusNoContent, nil), nil
	}
	a, err := initialize(context.Background())
	if err != nil {
		slog.ErrorContext(ctx, "lambda init failed", "error", err)
		return respond(http.StatusInternalServerError, map[string]string{"error": eventHandler.LogFailedText}), nil
	}
	return a.handle(ctx, req)
}

func main() {
	lambda.Start(handler)
}

func (a *app) handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch req.HTTPMethod {
	case http.MethodOptions:
		return respond(http.StatusNoContent, nil), nil
	case http.MethodPost:
	default:
		return respond(http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"}), nil
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return respond(http.StatusBadRequest, map[string]string{"error": eventHandler.InvalidBodyText}), nil
		}
		body = decoded
	}

	status, payload := eventHandler.Process(ctx, a.events, body)
	return respond(status, payload), nil
}

func respond(status int, payload any) events.APIGatewayProxyResponse {
	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range eventHandler.CORSHeaders {
		headers[k] = v
	}

	resp := events.APIGatewayProxyResponse{StatusCode: status, Headers: headers}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			resp.StatusCode = http.StatusInternalServerError
			data = []byte(`{"error":"` + eventHandler.LogFailedText + `"}`)
		}
		resp.Body = string(data)
	}
	return resp
}
