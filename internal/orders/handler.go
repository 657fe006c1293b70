package orders

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tvm/pkg/middleware"
	"tvm/pkg/problems"
)

// RegisterHTTP mounts the order CRUD routes.
// GET    /orders            list the tenant's orders
// POST   /orders            create an order
// GET    /orders/{id}       fetch one order
// PUT    /orders/{id}       replace an order
// DELETE /orders/{id}       delete an order
func RegisterHTTP(r chi.Router, svc *Service) {
	r.Get("/orders", func(w http.ResponseWriter, req *http.Request) {
		id, ok := middleware.IdentityFrom(req.Context())
		if !ok {
			problems.Write(w, http.StatusUnauthorized, "no-identity", "Unauthorized", "no tenant identity")
			return
		}
		list, err := svc.List(req.Context(), id)
		if err != nil {
			problems.Write(w, http.StatusInternalServerError, "orders-list", "Order lookup failed", middleware.RequestIDFrom(req.Context()))
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	r.Post("/orders", func(w http.ResponseWriter, req *http.Request) {
		id, ok := middleware.IdentityFrom(req.Context())
		if !ok {
			problems.Write(w, http.StatusUnauthorized, "no-identity", "Unauthorized", "no tenant identity")
			return
		}
		var body struct {
			OrderName     string         `json:"orderName"`
			OrderProducts []OrderProduct `json:"orderProducts"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.OrderName == "" {
			problems.Write(w, http.StatusBadRequest, "bad-order", "Invalid order", "orderName is required")
			return
		}
		order, err := svc.Create(req.Context(), id, body.OrderName, body.OrderProducts)
		if err != nil {
			problems.Write(w, http.StatusInternalServerError, "orders-create", "Order create failed", middleware.RequestIDFrom(req.Context()))
			return
		}
		writeJSON(w, http.StatusCreated, order)
	})

	r.Get("/orders/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, ok := middleware.IdentityFrom(req.Context())
		if !ok {
			problems.Write(w, http.StatusUnauthorized, "no-identity", "Unauthorized", "no tenant identity")
			return
		}
		order, err := svc.Get(req.Context(), id, chi.URLParam(req, "id"))
		if err != nil {
			problems.Write(w, http.StatusInternalServerError, "orders-get", "Order lookup failed", middleware.RequestIDFrom(req.Context()))
			return
		}
		if order == nil {
			problems.Write(w, http.StatusNotFound, "order-not-found", "Order not found", "")
			return
		}
		writeJSON(w, http.StatusOK, order)
	})

	r.Put("/orders/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, ok := middleware.IdentityFrom(req.Context())
		if !ok {
			problems.Write(w, http.StatusUnauthorized, "no-identity", "Unauthorized", "no tenant identity")
			return
		}
		var order Order
		if err := json.NewDecoder(req.Body).Decode(&order); err != nil {
			problems.Write(w, http.StatusBadRequest, "bad-order", "Invalid order", "")
			return
		}
		order.OrderID = chi.URLParam(req, "id")
		if err := svc.Update(req.Context(), id, order); err != nil {
			problems.Write(w, http.StatusInternalServerError, "orders-update", "Order update failed", middleware.RequestIDFrom(req.Context()))
			return
		}
		writeJSON(w, http.StatusOK, order)
	})

	r.Delete("/orders/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, ok := middleware.IdentityFrom(req.Context())
		if !ok {
			problems.Write(w, http.StatusUnauthorized, "no-identity", "Unauthorized", "no tenant identity")
			return
		}
		if err := svc.Delete(req.Context(), id, chi.URLParam(req, "id")); err != nil {
			problems.Write(w, http.StatusInternalServerError, "orders-delete", "Order delete failed", middleware.RequestIDFrom(req.Context()))
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
