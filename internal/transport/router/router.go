package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/daniarmadeit/idi-motors-bot/internal/transport/handler"
)

func NewRouter(h *handler.Handler) chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.SubmitListing)
			r.Post("/direct", h.SubmitDirect)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Status)
				r.Get("/archive", h.Archive)
				r.Get("/previews/{index}", h.Preview)
				r.Post("/description", h.Description)
			})
		})
	})

	return r
}
