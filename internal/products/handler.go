package products

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tvm/pkg/middleware"
	"tvm/pkg/problems"
)

// RegisterHTTP mounts product CRUD routes over the given repository.
func RegisterHTTP(r chi.Router, repo Repository) {
	r.Get("/products", func(w http.ResponseWriter, req *http.Request) {
		id, ok := middleware.IdentityFrom(req.Context())
		if !ok {
			problems.Write(w, http.StatusUnauthorized, "no-identity", "Unauthorized", "no tenant identity")
			return
		}
		list, err := repo.List(req.Context(), id)
		if err != nil {
			problems.Write(w, http.StatusInternalServerError, "products-list", "Product lookup failed", middleware.RequestIDFrom(req.Context()))
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	r.Post("/products", func(w http.ResponseWriter, req *http.Request) {
		id, ok := middleware.IdentityFrom(req.Context())
		if !ok {
			problems.Write(w, http.StatusUnauthorized, "no-identity", "Unauthorized", "no tenant identity")
			return
		}
		var p Product
		if err := json.NewDecoder(req.Body).Decode(&p); err != nil || p.Name == "" {
			problems.Write(w, http.StatusBadRequest, "bad-product", "Invalid product", "name is required")
			return
		}
		p.ProductID = uuid.NewString()
		if err := repo.Put(req.Context(), id, p); err != nil {
			problems.Write(w, http.StatusInternalServerError, "products-create", "Product create failed", middleware.RequestIDFrom(req.Context()))
			return
		}
		p.TenantID = id.TenantID
		writeJSON(w, http.StatusCreated, p)
	})

	r.Get("/products/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, ok := middleware.IdentityFrom(req.Context())
		if !ok {
			problems.Write(w, http.StatusUnauthorized, "no-identity", "Unauthorized", "no tenant identity")
			return
		}
		p, err := repo.Get(req.Context(), id, chi.URLParam(req, "id"))
		if err != nil {
			problems.Write(w, http.StatusInternalServerError, "products-get", "Product lookup failed", middleware.RequestIDFrom(req.Context()))
			return
		}
		if p == nil {
			problems.Write(w, http.StatusNotFound, "product-not-found", "Product not found", "")
			return
		}
		writeJSON(w, http.StatusOK, p)
	})

	r.Put("/products/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, ok := middleware.IdentityFrom(req.Context())
		if !ok {
			problems.Write(w, http.StatusUnauthorized, "no-identity", "Unauthorized", "no tenant identity")
			return
		}
		var p Product
		if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
			problems.Write(w, http.StatusBadRequest, "bad-product", "Invalid product", "")
			return
		}
		p.ProductID = chi.URLParam(req, "id")
		if err := repo.Put(req.Context(), id, p); err != nil {
			problems.Write(w, http.StatusInternalServerError, "products-update", "Product update failed", middleware.RequestIDFrom(req.Context()))
			return
		}
		p.TenantID = id.TenantID
		writeJSON(w, http.StatusOK, p)
	})

	r.Delete("/products/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, ok := middleware.IdentityFrom(req.Context())
		if !ok {
			problems.Write(w, http.StatusUnauthorized, "no-identity", "Unauthorized", "no tenant identity")
			return
		}
		if err := repo.Delete(req.Context(), id, chi.URLParam(req, "id")); err != nil {
			problems.Write(w, http.StatusInternalServerError, "products-delete", "Product delete failed", middleware.RequestIDFrom(req.Context()))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
