package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atelierboard/atelierboard/internal/server/cache"
	"github.com/atelierboard/atelierboard/internal/server/response"
	"github.com/atelierboard/atelierboard/pkg/models"
)

// statsTTL bounds how stale the dashboard header counters can be. The
// header polls aggressively; the aggregate query scans every order row.
const statsTTL = 30 * time.Second

type ingestOrderItem struct {
	Name     string  `json:"name"`
	SKU      string  `json:"sku"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// ingestOrderRequest is the webhook payload from the online studio.
// Paid carries the raw "OUI"/"NON" answer from the payment form.
type ingestOrderRequest struct {
	OrderNumber   string            `json:"orderNumber"`
	CustomerName  string            `json:"customerName"`
	CustomerEmail string            `json:"customerEmail"`
	CustomerPhone string            `json:"customerPhone"`
	Paid          string            `json:"paid"`
	Total         float64           `json:"total"`
	Subtotal      float64           `json:"subtotal"`
	Shipping      float64           `json:"shipping"`
	Tax           float64           `json:"tax"`
	Currency      string            `json:"currency"`
	Notes         string            `json:"notes"`
	Category      string            `json:"category"`
	Deadline      *time.Time        `json:"deadline"`
	Items         []ingestOrderItem `json:"items"`
}

// HandleIngestOrder handles POST /orders, the studio webhook. The
// order is persisted and a new-order event is broadcast so open
// dashboards pop a notification without reloading.
func (h *Handlers) HandleIngestOrder(w http.ResponseWriter, r *http.Request) {
	var req ingestOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", err.Error())
		return
	}

	order := models.Order{
		OrderNumber:   req.OrderNumber,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		PaymentStatus: paymentStatusFromAnswer(req.Paid),
		Total:         req.Total,
		Subtotal:      req.Subtotal,
		Shipping:      req.Shipping,
		Tax:           req.Tax,
		Currency:      req.Currency,
		Notes:         req.Notes,
		Category:      req.Category,
		Deadline:      req.Deadline,
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			Name:     item.Name,
			SKU:      item.SKU,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}

	created, err := h.store.CreateOrder(r.Context(), order)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.cache.Delete(cache.KeyOrderStats)
	h.broadcast.OrderCreated(created)
	response.Created(w, created)
}

// paymentStatusFromAnswer maps the studio's yes/no payment answer to a
// payment status. Unknown answers count as pending.
func paymentStatusFromAnswer(answer string) models.PaymentStatus {
	if strings.EqualFold(strings.TrimSpace(answer), "OUI") {
		return models.PaymentPaid
	}
	return models.PaymentPending
}

// HandleTestOrder handles POST /orders/test.
// Injects a synthetic order so the notification pipeline can be
// exercised without the studio.
func (h *Handlers) HandleTestOrder(w http.ResponseWriter, r *http.Request) {
	order := models.Order{
		OrderNumber:   fmt.Sprintf("TEST-%d", time.Now().UnixMilli()),
		CustomerName:  "Client Test",
		CustomerEmail: "test@example.com",
		PaymentStatus: models.PaymentPaid,
		Total:         42.00,
		Subtotal:      35.00,
		Shipping:      7.00,
		Items: []models.OrderItem{
			{Name: "T-shirt test", Quantity: 2, Price: 17.50},
		},
	}

	created, err := h.store.CreateOrder(r.Context(), order)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.cache.Delete(cache.KeyOrderStats)
	h.broadcast.OrderCreated(created)
	response.Created(w, created)
}

// HandleGetOrder handles GET /orders/{id}.
func (h *Handlers) HandleGetOrder(w http.ResponseWriter, r *http.Request, id string) {
	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, order)
}

// HandleListOrders handles GET /orders, newest first.
func (h *Handlers) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrders(r.Context(), 100)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, orders)
}

// HandleOrderStats handles GET /orders/stats, served from cache when
// fresh.
func (h *Handlers) HandleOrderStats(w http.ResponseWriter, r *http.Request) {
	if cached, found := h.cache.Get(cache.KeyOrderStats); found {
		if stats, ok := cached.(models.OrderStats); ok {
			response.OK(w, stats)
			return
		}
	}

	stats, err := h.store.OrderStats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.cache.SetWithTTL(cache.KeyOrderStats, stats, statsTTL)
	response.OK(w, stats)
}
