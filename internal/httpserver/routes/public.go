package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/qrlink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/qrlink/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/qrlink/internal/httpserver/mw"
)

func init() { Register("public", registerPublic) }

func registerPublic(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateLimitBurst,
		RefillPerIPPerMin: d.RateLimitPerMin,
		MaxEntries:        100_000,
		TrustProxy:        d.TrustProxy,
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))

		r.With(limit).Get("/redirect", handlers.Redirect(d))

		r.Route("/api/qr", func(r chi.Router) {
			r.With(limit).Get("/redirect", handlers.Redirect(d))
			r.Get("/info", handlers.Info(d))
			r.With(limit).Post("/generate", handlers.Generate(d))
			r.With(limit).Get("/{qrId}/image", handlers.Image(d))
			r.With(limit).Get("/{qrId}/download", handlers.Download(d))
			r.Delete("/{qrId}", handlers.DeactivateQr(d))
		})
	})
}
