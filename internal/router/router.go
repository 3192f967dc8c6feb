package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"tutor-backend/internal/handlers"
	"tutor-backend/internal/middleware"
	"tutor-backend/internal/realtime"
	"tutor-backend/web"
)

func New(
	sessionAuth *middleware.SessionAuth,
	chatLimiter *middleware.RateLimiter,
	chatHandler *handlers.ChatHandler,
	documentHandler *handlers.DocumentHandler,
	wsHub *realtime.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Session creation limiter (30 req/min per IP)
	sessionLimiter := middleware.NewRateLimiter(30, time.Minute, middleware.ByRemoteAddr)

	// Single-page chat
	r.Get("/", web.ServeIndex)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		r.Get("/document", documentHandler.Status)

		// ──── Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.With(sessionLimiter.Middleware).Post("/", chatHandler.CreateSession)

			r.Group(func(r chi.Router) {
				r.Use(sessionAuth.Middleware)
				r.Delete("/{id}", chatHandler.EndSession)
				r.Get("/{id}/messages", chatHandler.History)
				r.With(chatLimiter.Middleware).Post("/{id}/messages", chatHandler.AskQuestion)
				r.Delete("/{id}/messages", chatHandler.ResetHistory)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
