package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ugobe007/pythh-sub021/internal/guard"
	"github.com/ugobe007/pythh-sub021/internal/hermes"
	"github.com/ugobe007/pythh-sub021/internal/redact"
	"github.com/ugobe007/pythh-sub021/internal/rescore"
	"github.com/ugobe007/pythh-sub021/internal/store"
	"github.com/ugobe007/pythh-sub021/internal/versions"
)

type Deps struct {
	Store    store.Store
	Versions *versions.Service
	Rescore  *rescore.Service
	Guard    *guard.Guard
	Tripwire *redact.Tripwire
	Emitter  *hermes.Emitter

	AdminToken         string
	RateLimitPerMinute int
	Logger             *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(d.Logger))
	r.Use(MetricsMiddleware)

	public := NewPublicHandler(d.Store, d.Versions, d.Guard, d.Logger)
	admin := NewAdminHandler(d.Store, d.Versions, d.Rescore, d.Guard, d.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Everything outside admin is public and goes through the tripwire.
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(d.RateLimitPerMinute))
			r.Use(redact.Middleware(d.Tripwire, d.Emitter, d.Logger))

			r.Get("/matches/public", public.Matches)
			r.Get("/weights/active", public.ActiveWeights)
			r.Get("/scoring/explain/{startup_id}", public.Explain)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(d.AdminToken))

			r.Get("/weights", admin.ListWeights)
			r.Post("/weights/supersede", admin.Supersede)
			r.Post("/weights/rollback", admin.Rollback)

			r.Post("/startups", admin.CreateStartup)
			r.Post("/startups/{id}/score", admin.Score)
			r.Put("/startups/{id}/signals", admin.Signals)
			r.Post("/investors", admin.CreateInvestor)
			r.Post("/matches", admin.CreateMatch)

			r.Get("/kanon/report", admin.KAnonReport)
			r.Post("/kanon/run", admin.RunGuard)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
