package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"studio/internal/http/handlers"
	"studio/internal/middleware"
)

type Options struct {
	CORSOrigins []string
	// RateLimitPerMinute caps generation requests per client; zero disables it.
	RateLimitPerMinute int
	CountryLookup      middleware.CountryLookup
	// TokenSecret verifies the bearer tokens issued at sign-in.
	TokenSecret string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N("es", opts.CountryLookup),
		middleware.AuthJWT(opts.TokenSecret),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/catalog", app.CatalogPresets)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/register", app.Register)
		r.Post("/login", app.Login)
		r.Post("/logout", app.Logout)
	})
	r.Get("/v1/me", app.Me)
	r.Get("/v1/payment-link", app.PaymentLink)

	r.Group(func(r chi.Router) {
		r.Use(app.RequireUser)
		limited := r.With(middleware.RateLimit(opts.RateLimitPerMinute, time.Minute))

		r.Get("/v1/status", app.Status)
		r.Get("/v1/media/{ref}", app.ServeMedia)
		limited.Post("/v1/research", app.Research)
		limited.Post("/v1/campaigns", app.CreateCampaign)
		r.Get("/v1/projects", app.Projects)
		r.Get("/v1/projects/{id}", app.Project)
		limited.Post("/v1/projects/{id}/assets/{asset_id}/edit", app.EditAsset)
		limited.Post("/v1/projects/{id}/social", app.SocialCopy)
		r.Get("/v1/projects/{id}/social.txt", app.SocialText)
		r.Get("/v1/projects/{id}/archive", app.Archive)
		r.Post("/v1/projects/{id}/export", app.Export)
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(app.RequireAdmin)
		r.Get("/users", app.AdminUsers)
		r.Post("/users/{id}/credits", app.AdminAddCredits)
		r.Get("/config", app.AdminGetConfig)
		r.Put("/config", app.AdminPutConfig)
	})

	return r
}
