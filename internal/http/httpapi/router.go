package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"promptmaster/internal/http/handlers"
	"promptmaster/internal/middleware"
)

type Options struct {
	AllowedOrigins  []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
	// MediaDir is served under /media when set.
	MediaDir string
	Logger   zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	// One limiter for every POST route.
	limit := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/catalog", app.CatalogList)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/docs", app.OpenAPIDocs)

	r.With(limit).Post("/v1/sessions", app.CreateSession)
	r.Route("/v1/sessions/{id}", func(r chi.Router) {
		limited := r.With(limit)
		r.Get("/", app.GetSession)
		r.Patch("/settings", app.PatchSettings)
		r.Delete("/error", app.DismissError)
		limited.Post("/refine", app.Refine)
		limited.Post("/previews", app.StartPreview)
		r.Delete("/previews", app.AbandonPreview)
		r.Get("/events", app.Events)
	})
	r.Get("/v1/previews/{jobId}", app.GetPreviewJob)

	if opts.MediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(opts.MediaDir))))
	}

	return r
}
