// Package httpapi exposes the risk engine's four public endpoints over
// chi's router, reusing the observability, rate limiting, and CORS
// middleware built out for the broader service mesh this engine sits in.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"riskengine/internal/actorpool"
	"riskengine/internal/httpapi/middleware"
	"riskengine/internal/pipeline"
	"riskengine/internal/policy"
)

// Server bundles the dependencies the HTTP handlers need.
type Server struct {
	Engine      *pipeline.Engine
	Pool        *actorpool.Pool
	Rules       *policy.Channel
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter
	StartedAt   time.Time
	Version     string
}

// NewRouter builds the chi router for all four endpoints plus the debug
// actor-pool inspection route.
func NewRouter(s *Server, obs *middleware.Observability, cors func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(cors)
	r.Use(obs.Middleware("/v1/decision/check"))

	r.Post("/v1/decision/check", s.handleDecisionCheck)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", obs.MetricsHandler())
	r.Get("/debug/actorpool", s.handleDebugActorPool)
	return r
}
