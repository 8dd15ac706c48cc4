package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/umayarajkumar17/portfolio/backend/internal/handler/chat"
	"github.com/umayarajkumar17/portfolio/backend/internal/handler/event"
	profileHandler "github.com/umayarajkumar17/portfolio/backend/internal/handler/profile"
	"github.com/umayarajkumar17/portfolio/backend/internal/handler/stream"
	"github.com/umayarajkumar17/portfolio/backend/internal/handler/widget"
	middlewarePkg "github.com/umayarajkumar17/portfolio/backend/internal/middleware"
	"github.com/umayarajkumar17/portfolio/backend/internal/model/profile"
	chatService "github.com/umayarajkumar17/portfolio/backend/internal/service/chat"
	"github.com/umayarajkumar17/portfolio/backend/pkg/utils"
)

const logEventPath = "/api/log-event"

// Replier answers stateless replies and reports the provider in use.
type Replier interface {
	chat.Replier
	chat.StatusReporter
}

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Profiles       profile.Store
	Chat           *chatService.Service
	Replier        Replier
	Events         event.Logger
	Limiter        *middlewarePkg.RateLimiter
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// The log-event endpoint answers its own preflight with fixed headers.
	r.Use(middleware.Maybe(middlewarePkg.CORS(deps.AllowedOrigins), func(r *http.Request) bool {
		return r.URL.Path != logEventPath
	}))

	var limit func(http.Handler) http.Handler
	if deps.Limiter != nil {
		limit = deps.Limiter.Middleware
	}

	chatHandler := chat.New(deps.Chat, deps.Replier, deps.Replier, limit)
	streamHandler := stream.New(deps.Chat)
	wsHandler := widget.NewWebSocketHandler(deps.Chat, middlewarePkg.CheckOrigin(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": deps.Chat.Count(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		if deps.Events != nil {
			event.New(deps.Events, limit).RegisterRoutes(api)
		}
		if deps.Profiles != nil {
			profileHandler.New(deps.Profiles).RegisterRoutes(api)
		}

		api.Route("/chat", func(c chi.Router) {
			chatHandler.RegisterRoutes(c, streamHandler.RegisterSessionRoutes)
			wsHandler.RegisterWebSocketRoutes(c)
		})
	})

	return r
}
