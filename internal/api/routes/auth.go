package routes

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/KyleWhite22/GameGeniusAI/internal/api/handlers/auth"
	"github.com/KyleWhite22/GameGeniusAI/internal/api/middleware"
	"github.com/KyleWhite22/GameGeniusAI/internal/core/session"
)

// RegisterAuthRoutes registers the login flow under /auth with dedicated rate limiting.
// The returned func stops the limiters' cleanup goroutines.
func RegisterAuthRoutes(r chi.Router, handler *auth.AuthHandler, sessions *session.Manager, recorder middleware.RateLimitRecorder) func() {
	// Login and callback share a limiter: 10 req/min per IP
	loginLimiter := middleware.NewRateLimiter("login", 10, 1*time.Minute, recorder)

	// Logout: 10 req/min per IP
	logoutLimiter := middleware.NewRateLimiter("logout", 10, 1*time.Minute, recorder)

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.Sessions(sessions))

		r.Get("/user", handler.HandleUser)
		r.With(logoutLimiter.Middleware).Post("/logout", handler.HandleLogout)

		r.With(loginLimiter.Middleware).Get("/{provider}", handler.HandleLogin)
		r.With(loginLimiter.Middleware).Get("/{provider}/return", handler.HandleCallback)
	})

	return func() {
		loginLimiter.Close()
		logoutLimiter.Close()
	}
}
