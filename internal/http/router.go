package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brewpass/brewpass/internal/http/controllers/admin"
	"github.com/brewpass/brewpass/internal/http/controllers/health"
	"github.com/brewpass/brewpass/internal/http/controllers/wallet"
	"github.com/brewpass/brewpass/internal/metrics"
	"github.com/brewpass/brewpass/internal/rate"
)

// RouterDeps bundles every controller mounted on the public listener.
type RouterDeps struct {
	Loyalty  *wallet.Controller
	GiftCard *wallet.Controller
	Admin    *admin.Controller
	Health   *health.Controller

	Metrics http.Handler

	AdminAPIKey        string
	CORSAllowedOrigins []string
	RateLimiter        rate.Limiter
}

// NewRouter builds the full handler chain. Outermost to innermost:
// request id, recover, logging, metrics, security headers, rate limit.
// CORS wraps the admin surface only; the provider endpoints are never
// browser-facing.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", deps.Health.Live)
	r.Get("/readyz", deps.Health.Ready)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// Provider-facing protocol surfaces, one per pass kind.
	r.Route("/pass", func(r chi.Router) {
		deps.Loyalty.Routes(r)
		r.Route("/giftcard", func(r chi.Router) {
			deps.GiftCard.Routes(r)
		})
	})

	// Operator surface.
	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return WithCORS(WithAdminKey(next, deps.AdminAPIKey), deps.CORSAllowedOrigins)
		})
		deps.Admin.Routes(r)
	})

	var h http.Handler = r
	h = WithRateLimit(h, deps.RateLimiter)
	h = WithSecurityHeaders(h)
	h = metrics.WithMetrics(h)
	h = WithLogging(h)
	h = WithRecover(h)
	h = WithRequestID(h)
	return h
}
