package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "trustscore/internal/audit/handler"
	"trustscore/internal/platform/metrics"
	scoringhandler "trustscore/internal/scoring/handler"
	"trustscore/pkg/platform/httputil"
	authmw "trustscore/pkg/platform/middleware/auth"
	"trustscore/pkg/platform/middleware/request"
)

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// Deps are the pieces the router mounts.
type Deps struct {
	Logger      *slog.Logger
	Scoring     *scoringhandler.Handler
	Audit       *audithandler.Handler
	Tokens      authmw.JWTValidator
	HTTPMetrics *metrics.HTTP
	Gatherer    prometheus.Gatherer
	Health      map[string]HealthCheck
}

// NewRouter builds the HTTP surface. Reads are public; everything under
// /admin requires a bearer token with the admin or moderator role.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Time)
	r.Use(request.Client)
	r.Use(request.Logger(d.Logger))
	r.Use(chimw.Recoverer)
	if d.HTTPMetrics != nil {
		r.Use(d.HTTPMetrics.Middleware)
	}

	r.Get("/health", healthHandler(d.Health))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	d.Scoring.Register(r)

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(authmw.RequireAuth(d.Tokens, d.Logger))
		admin.Use(authmw.RequireRole(d.Logger, authmw.RoleAdmin, authmw.RoleModerator))
		d.Scoring.RegisterAdmin(admin)
		d.Audit.Register(admin)
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
