// internal/app/features/alerts/routes.go
package alerts

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)
	r.Get("/{id}", h.HandleGet)
	r.Put("/{id}", h.HandleUpdate)
	r.Post("/{id}/resolve", h.HandleResolve)
	r.Post("/{id}/cancel", h.HandleCancel)
	r.Post("/{id}/false", h.HandleMarkFalse)
	r.Delete("/{id}", h.HandleDelete)
	return r
}
