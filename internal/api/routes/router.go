// Package routes assembles the HTTP surface.
package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KyleWhite22/GameGeniusAI/internal/api/handlers"
	"github.com/KyleWhite22/GameGeniusAI/internal/api/handlers/auth"
	"github.com/KyleWhite22/GameGeniusAI/internal/api/handlers/health"
	"github.com/KyleWhite22/GameGeniusAI/internal/api/middleware"
	"github.com/KyleWhite22/GameGeniusAI/internal/core/identity"
	"github.com/KyleWhite22/GameGeniusAI/internal/core/session"
	"github.com/KyleWhite22/GameGeniusAI/internal/metrics"
)

// Deps is everything the router needs, built once at startup
type Deps struct {
	Started      time.Time
	Providers    *identity.Registry
	Sessions     *session.Manager
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Auth         auth.Config
	Allowlist    []string
	DeployedMode bool
}

// NewRouter builds the gateway router. The returned func releases background resources.
func NewRouter(deps Deps) (http.Handler, func()) {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if deps.DeployedMode {
		// only trust forwarding headers behind the deployment proxy
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.AccessLog)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(deps.Allowlist, deps.Metrics))

	authHandler := auth.NewAuthHandler(deps.Providers, deps.Sessions, deps.Metrics, deps.Auth)
	closeLimiters := RegisterAuthRoutes(r, authHandler, deps.Sessions, deps.Metrics)

	healthHandler := health.NewHealthHandler(deps.Started)
	r.Get("/health", healthHandler.HandleHealth)

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.NotFound(handlers.NotFound)

	return r, closeLimiters
}
