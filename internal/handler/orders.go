package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kiosk-pos/api/internal/database"
	"github.com/kiosk-pos/api/internal/enum"
	"github.com/kiosk-pos/api/internal/service"
	"github.com/kiosk-pos/api/internal/ws"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateFromCart(ctx context.Context, req service.CartRequest) (*service.CreateOrderResult, error)
	GetFull(ctx context.Context, orderID int64) (*service.FullOrder, error)
	List(ctx context.Context, status string, limit, offset int) ([]database.Order, error)
	SetPaymentType(ctx context.Context, orderID int64, paymentType string) (*service.TransitionResult, error)
	MarkPaid(ctx context.Context, orderID int64) (*service.TransitionResult, error)
	MarkPrinted(ctx context.Context, orderID int64) (*service.TransitionResult, error)
	Cancel(ctx context.Context, orderID int64) (*service.TransitionResult, error)
}

// Publisher pushes order events to the counter board.
// Satisfied by *ws.Hub.
type Publisher interface {
	Publish(event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
	pub Publisher
}

// NewOrderHandler creates a new OrderHandler. pub may be nil.
func NewOrderHandler(svc OrderServicer, pub Publisher) *OrderHandler {
	return &OrderHandler{svc: svc, pub: pub}
}

// RegisterRoutes registers the kiosk-facing order endpoints.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Get("/orders/{id}", h.Get)
	r.Put("/orders/{id}/payment-type", h.SetPaymentType)
	r.Post("/orders/{id}/printed", h.MarkPrinted)
}

// RegisterStaffRoutes registers the counter-only endpoints. Expected to be
// mounted behind Authenticate and RequireStaff.
func (h *OrderHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Post("/orders/{id}/paid", h.MarkPaid)
	r.Post("/orders/{id}/cancel", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	SessionKey  string                   `json:"session_key"`
	ServiceType string                   `json:"service_type"`
	Items       []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID       flexInt   `json:"product_id"`
	Qty             flexInt   `json:"qty"`
	VariantValueIDs []flexInt `json:"variant_value_ids"`
}

type paymentTypeRequest struct {
	PaymentType string `json:"payment_type"`
}

type orderListResponse struct {
	Orders []database.Order `json:"orders"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// orderEventPayload is the body of every order.* websocket event.
type orderEventPayload struct {
	OrderID     int64                    `json:"order_id"`
	OrderNo     string                   `json:"order_no"`
	Status      database.OrderStatus     `json:"status"`
	ServiceType database.ServiceType     `json:"service_type,omitempty"`
	PaymentType database.NullPaymentType `json:"payment_type"`
	TotalAmount json.Number              `json:"total_amount,omitempty"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items := make([]service.CartItem, len(req.Items))
	for i, item := range req.Items {
		ids := make([]int64, len(item.VariantValueIDs))
		for j, id := range item.VariantValueIDs {
			ids[j] = int64(id)
		}
		items[i] = service.CartItem{
			ProductID:       int64(item.ProductID),
			Qty:             int(item.Qty),
			VariantValueIDs: ids,
		}
	}

	result, err := h.svc.CreateFromCart(r.Context(), service.CartRequest{
		SessionKey:  req.SessionKey,
		ServiceType: req.ServiceType,
		Items:       items,
	})
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}

	h.publish(enum.EventOrderCreated, orderEventPayload{
		OrderID:     result.OrderID,
		OrderNo:     result.OrderNo,
		Status:      result.Status,
		ServiceType: result.ServiceType,
		TotalAmount: json.Number(result.TotalAmount.StringFixed(2)),
	})
	writeJSON(w, http.StatusCreated, result)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.svc.GetFull(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	orders, err := h.svc.List(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		writeServiceError(w, "list orders", err)
		return
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: orders,
		Limit:  limit,
		Offset: offset,
	})
}

// SetPaymentType handles PUT /orders/{id}/payment-type.
func (h *OrderHandler) SetPaymentType(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req paymentTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := h.svc.SetPaymentType(r.Context(), orderID, req.PaymentType)
	h.writeTransition(w, "set payment type", enum.EventOrderPaymentType, res, err)
}

// MarkPaid handles POST /orders/{id}/paid.
func (h *OrderHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.MarkPaid(r.Context(), orderID)
	h.writeTransition(w, "mark paid", enum.EventOrderPaid, res, err)
}

// MarkPrinted handles POST /orders/{id}/printed.
func (h *OrderHandler) MarkPrinted(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.MarkPrinted(r.Context(), orderID)
	h.writeTransition(w, "mark printed", enum.EventOrderPrinted, res, err)
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Cancel(r.Context(), orderID)
	h.writeTransition(w, "cancel order", enum.EventOrderCancelled, res, err)
}

// --- Helpers ---

func (h *OrderHandler) writeTransition(w http.ResponseWriter, op, eventType string, res *service.TransitionResult, err error) {
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if res.Changed {
		h.publish(eventType, orderEventPayload{
			OrderID:     res.Order.ID,
			OrderNo:     res.Order.OrderNo,
			Status:      res.Order.Status,
			PaymentType: res.Order.PaymentType,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) publish(eventType string, payload orderEventPayload) {
	if h.pub == nil {
		return
	}
	event, err := ws.NewEvent(eventType, payload)
	if err != nil {
		log.Printf("ERROR: build %s event: %v", eventType, err)
		return
	}
	h.pub.Publish(event)
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return 0, false
	}
	return id, true
}
