package journals

import "github.com/go-chi/chi/v5"

// MountRoutes serves the journal lifecycle under /accounting/journals.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/post", h.Post)
		r.Post("/reverse", h.Reverse)
	})
}
