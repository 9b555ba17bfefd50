package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mmeshcher/marketplace-gateway/internal/model"
	"github.com/mmeshcher/marketplace-gateway/internal/service"
)

// orderRequest описывает тело создания заказа. Поле user_id, если передано, игнорируется.
type orderRequest struct {
	Products   []model.LineItem `json:"products"`
	TotalPrice float64          `json:"total_price"`
	Status     string           `json:"status"`
}

// CreateOrder создаёт заказ текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "Invalid request body")
		return
	}

	o, err := h.service.CreateOrder(r.Context(), u, service.OrderInput{
		Products:   req.Products,
		TotalPrice: req.TotalPrice,
		Status:     model.OrderStatus(req.Status),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, o)
}

// ListOrders возвращает заказы, видимые текущему пользователю.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	u, ok := h.caller(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), u)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	h.respond(w, r, orders)
}

// GetOrder возвращает заказ, если текущему пользователю разрешено его видеть.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := h.caller(w, r)
	if !ok {
		return
	}

	o, err := h.service.GetOrder(r.Context(), u, urlID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, o)
}
