// internal/app/features/users/routes.go
package users

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)
	r.Get("/me", h.HandleGetMe)
	r.Patch("/me", h.HandleUpdateMe)
	r.Put("/me/password", h.HandleChangePassword)
	r.Get("/{id}", h.HandleGet)
	r.Patch("/{id}", h.HandleUpdate)
	r.Put("/{id}/role", h.HandleSetRole)
	r.Put("/{id}/active", h.HandleSetActive)
	r.Delete("/{id}", h.HandleDelete)
	return r
}
