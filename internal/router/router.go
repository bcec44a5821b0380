package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-agent-chat/internal/config"
	"go-agent-chat/internal/handler"
	"go-agent-chat/internal/middleware"
)

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	chatHandler *handler.ChatHandler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	unary := middleware.Timeout(cfg.RequestTimeout)

	r.With(unary).Post("/register", authHandler.Register)
	r.With(unary).Post("/token", authHandler.Token)
	r.With(unary).Post("/refresh-token", authHandler.Refresh)

	// The stream route gets the flush-preserving timeout; the buffering
	// unary timeout would break NDJSON delivery.
	r.With(
		authMiddleware.RequireAuth,
		middleware.StreamingTimeout(cfg.StreamMaxDuration, cfg.StreamIdleTimeout),
	).Post("/stream_response", chatHandler.Stream)

	r.With(authMiddleware.RequireAuth, unary).Get("/sessions", chatHandler.Sessions)

	return r
}
