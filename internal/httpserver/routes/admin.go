package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/qrlink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/qrlink/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/qrlink/internal/httpserver/mw"
)

func init() { Register("admin", registerAdmin) }

func registerAdmin(r chi.Router, d deps.Deps) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(mw.AllowOnlyCIDRS(d.AdminCIDRS, d.TrustProxy, d.Logger))

		r.Post("/cache/warm", handlers.AdminWarmCache(d))

		r.Route("/qr-codes", func(r chi.Router) {
			r.Get("/", handlers.AdminList(d))
			r.Get("/search", handlers.AdminSearch(d))
			r.Get("/recent", handlers.AdminRecent(d))
			r.Get("/stats", handlers.AdminStats(d))
			r.Get("/top", handlers.AdminTop(d))
			r.Get("/qr-id/{qrId}", handlers.AdminGetByQrID(d))
			r.Get("/qr-id/{qrId}/events", handlers.AdminEvents(d))
			r.Get("/{id}", handlers.AdminGet(d))
			r.Put("/{id}", handlers.AdminUpdate(d))
			r.Delete("/{id}", handlers.AdminDelete(d))
			r.Post("/{id}/reactivate", handlers.AdminReactivate(d))
		})
	})
}
