package middleware

import (
	"net/http"
	"strings"
)

type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(allowedOrigins []string) originPolicy {
	p := originPolicy{
		allowAll: len(allowedOrigins) == 0,
		allowed:  make(map[string]struct{}, len(allowedOrigins)),
	}
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			p.allowAll = true
		}
		p.allowed[origin] = struct{}{}
	}
	return p
}

func (p originPolicy) permits(origin string) bool {
	if p.allowAll {
		return true
	}
	_, ok := p.allowed[origin]
	return ok
}

// CORS answers preflight requests and adds CORS headers for the allowed
// origins. "*" allows any origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			switch {
			case policy.allowAll:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && policy.permits(origin):
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckOrigin returns a WebSocket origin check using the same allow list as
// CORS. Requests without an Origin header are accepted.
func CheckOrigin(allowedOrigins []string) func(*http.Request) bool {
	policy := newOriginPolicy(allowedOrigins)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || policy.permits(origin)
	}
}
