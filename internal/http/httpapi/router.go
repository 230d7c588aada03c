package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"monetiq/internal/http/handlers"
	"monetiq/internal/infra"
	"monetiq/internal/middleware"
)

// NewRouter wires the public API surface. Everything under /v1 except the
// health probe requires a bearer token.
func NewRouter(app *handlers.App, cfg *infra.Config, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.CORS(cfg.CORSOrigins),
		middleware.Logger(app.Logger),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
		middleware.I18N(cfg.DefaultLocale, lookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))

		r.Route("/v1/audio", func(r chi.Router) {
			r.Post("/jobs", app.CreateAudioJob)
			r.Get("/jobs/{job_id}", app.GetAudioJob)
			r.Get("/jobs/{job_id}/output", app.GetAudioJobOutput)
			r.Post("/worker/claim", app.ClaimJob)
		})

		r.Route("/v1/packs/{pack_id}", func(r chi.Router) {
			r.Post("/generate-shots", app.GenerateShots)
			r.Get("/variants", app.ListVariants)
			r.Get("/export", app.ExportPack)
		})

		r.Get("/v1/quota", app.GetQuota)
	})

	return r
}
