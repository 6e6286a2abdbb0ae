// Package httpapi exposes the chat pipeline over plain HTTP for frontends
// that do not speak MCP.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lucasmend/askdb/internal/core/service"
)

// NewRouter creates a chi router with the chat endpoints. An empty bearerToken
// leaves the API unauthenticated, for localhost-only deployments.
func NewRouter(chat *service.ChatService, bearerToken string, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health check is unauthenticated, used by probes.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	h := newChatHandler(chat, logger)
	r.Route("/v1", func(r chi.Router) {
		if bearerToken != "" {
			r.Use(bearerAuth(bearerToken))
		}
		r.Post("/chat", h.chat)
	})

	return r
}

// bearerAuth rejects requests whose Authorization header does not carry the
// configured token.
func bearerAuth(token string) func(http.Handler) http.Handler {
	expect := "Bearer " + token
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != expect {
				writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
