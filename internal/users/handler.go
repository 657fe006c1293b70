package users

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tvm/pkg/middleware"
	"tvm/pkg/problems"
)

// RegisterHTTP mounts user management routes. Mutations require the
// tenant-admin role.
func RegisterHTTP(r chi.Router, svc *Service) {
	r.Get("/users", func(w http.ResponseWriter, req *http.Request) {
		id, ok := middleware.IdentityFrom(req.Context())
		if !ok {
			problems.Write(w, http.StatusUnauthorized, "no-identity", "Unauthorized", "no tenant identity")
			return
		}
		list, err := svc.List(req.Context(), id)
		if err != nil {
			problems.Write(w, http.StatusInternalServerError, "users-list", "User lookup failed", middleware.RequestIDFrom(req.Context()))
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)

		r.Post("/users", func(w http.ResponseWriter, req *http.Request) {
			id, _ := middleware.IdentityFrom(req.Context())
			var body struct {
				UserName  string `json:"userName"`
				UserEmail string `json:"userEmail"`
				UserRole  string `json:"userRole"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.UserName == "" || body.UserEmail == "" {
				problems.Write(w, http.StatusBadRequest, "bad-user", "Invalid user", "userName and userEmail are required")
				return
			}
			if body.UserRole == "" {
				body.UserRole = "TenantUser"
			}
			if err := svc.Create(req.Context(), id, body.UserName, body.UserEmail, body.UserRole); err != nil {
				problems.Write(w, http.StatusInternalServerError, "users-create", "User create failed", middleware.RequestIDFrom(req.Context()))
				return
			}
			w.WriteHeader(http.StatusCreated)
		})

		r.Put("/users/{username}", func(w http.ResponseWriter, req *http.Request) {
			id, _ := middleware.IdentityFrom(req.Context())
			var body struct {
				UserEmail string `json:"userEmail"`
				UserRole  string `json:"userRole"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				problems.Write(w, http.StatusBadRequest, "bad-user", "Invalid user", "")
				return
			}
			if err := svc.Update(req.Context(), id, chi.URLParam(req, "username"), body.UserEmail, body.UserRole); err != nil {
				problems.Write(w, http.StatusInternalServerError, "users-update", "User update failed", middleware.RequestIDFrom(req.Context()))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Delete("/users/{username}", func(w http.ResponseWriter, req *http.Request) {
			id, _ := middleware.IdentityFrom(req.Context())
			if err := svc.Disable(req.Context(), id, chi.URLParam(req, "username")); err != nil {
				problems.Write(w, http.StatusInternalServerError, "users-disable", "User disable failed", middleware.RequestIDFrom(req.Context()))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
