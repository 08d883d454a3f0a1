package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-engine.git/internal/cart"
	"github.com/ariefcatur/go-order-engine.git/internal/checkout"
	"github.com/ariefcatur/go-order-engine.git/internal/lifecycle"
	"github.com/ariefcatur/go-order-engine.git/internal/orders"
	"github.com/ariefcatur/go-order-engine.git/internal/redisx"
	"github.com/ariefcatur/go-order-engine.git/internal/returns"
	"github.com/ariefcatur/go-order-engine.git/internal/stock"
)

type CheckoutService interface {
	Checkout(ctx context.Context, userID, cartID string) (*orders.Order, error)
}

type ReturnService interface {
	Request(ctx context.Context, orderID string, items []orders.ItemQty, reason string) (*orders.ReturnRequest, error)
	Approve(ctx context.Context, requestID string) (*orders.ReturnRequest, error)
	Reject(ctx context.Context, requestID string) (*orders.ReturnRequest, error)
}

type Transitioner interface {
	Apply(ctx context.Context, orderID string, to orders.Status, trig lifecycle.Trigger) error
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	ListHistory(ctx context.Context, orderID string) ([]orders.StatusHistoryEntry, error)
}

type StockLister interface {
	List(ctx context.Context) ([]orders.StockRecord, error)
}

type Handler struct {
	Checkout CheckoutService
	Returns  ReturnService
	Machine  Transitioner
	Orders   OrderReader
	Stock    StockLister
	Redis    *redis.Client
	Log      *zap.Logger
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/checkout", h.doCheckout)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/history", h.getHistory)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Post("/webhooks/payment", h.paymentWebhook)
	r.Post("/webhooks/carrier", h.carrierWebhook)
	r.Post("/returns", h.createReturn)
	r.Post("/returns/{id}/decision", h.decideReturn)
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr: satu tempat mapping taxonomy error -> HTTP.
func writeErr(w http.ResponseWriter, err error) {
	var insuf *stock.InsufficientStockError
	if errors.As(err, &insuf) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   "insufficient stock",
			"details": insuf.Details,
		})
		return
	}
	var te *orders.TransitionError
	if errors.As(err, &te) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": te.Error()})
		return
	}
	switch {
	case errors.Is(err, orders.ErrUnknownOrder),
		errors.Is(err, orders.ErrUnknownReturn),
		errors.Is(err, cart.ErrCartNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, returns.ErrNotEligible):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, returns.ErrAlreadyDecided):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, checkout.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *Handler) cacheStatus(ctx context.Context, orderID string, s orders.Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = h.Redis.Set(ctx, key, fmt.Sprintf(`{"status":%q}`, s), redisx.TTLStatusCache).Err()
}

type CheckoutReq struct {
	UserID string `json:"user_id"`
	CartID string `json:"cart_id"`
}

type CheckoutResp struct {
	OrderID    string        `json:"order_id"`
	Number     string        `json:"number"`
	Status     orders.Status `json:"status"`
	TotalCents int           `json:"total_cents"`
	Idempotent bool          `json:"idempotent"`
}

func (h *Handler) doCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.CartID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// fast-path idempotency: cart yang sama tidak boleh jadi dua order
	idemKey := fmt.Sprintf(redisx.KeyIdemCheckout, req.CartID)
	if prev, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && prev != "" {
		o, err := h.Orders.GetOrder(ctx, prev)
		if err == nil {
			writeJSON(w, http.StatusOK, CheckoutResp{
				OrderID: o.ID, Number: o.Number, Status: o.Status,
				TotalCents: o.TotalCents, Idempotent: true,
			})
			return
		}
	}

	o, err := h.Checkout.Checkout(ctx, req.UserID, req.CartID)
	if err != nil {
		writeErr(w, err)
		return
	}

	_ = h.Redis.Set(ctx, idemKey, o.ID, redisx.TTLIdempotency).Err()
	h.cacheStatus(ctx, o.ID, o.Status)

	writeJSON(w, http.StatusCreated, CheckoutResp{
		OrderID: o.ID, Number: o.Number, Status: o.Status, TotalCents: o.TotalCents,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache status
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	// 2) fallback DB
	o, err := h.Orders.GetOrder(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, o.ID, o.Status)
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	entries, err := h.Orders.ListHistory(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type CancelReq struct {
	Actor  orders.Actor `json:"actor"` // customer (default) atau admin
	Reason string       `json:"reason"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req CancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Actor == "" {
		req.Actor = orders.ActorCustomer
	}
	if req.Actor != orders.ActorCustomer && req.Actor != orders.ActorAdmin {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid actor"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := h.Machine.Apply(ctx, orderID, orders.StatusCancelled, lifecycle.Trigger{
		Actor:  req.Actor,
		Reason: req.Reason,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, orderID, orders.StatusCancelled)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(orders.StatusCancelled)})
}

type PaymentWebhookReq struct {
	OrderID   string `json:"order_id"`
	Outcome   string `json:"outcome"` // confirmed | failed | timed_out
	Reference string `json:"reference"`
}

func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req PaymentWebhookReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// dedup delivery ulang dari gateway
	dkey := fmt.Sprintf(redisx.KeyDedup, "payment", req.OrderID+":"+req.Outcome)
	if ok, _ := redisx.Exists(ctx, h.Redis, dkey); ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	var err error
	var final orders.Status
	switch req.Outcome {
	case "confirmed":
		final = orders.StatusPaid
		err = h.Machine.Apply(ctx, req.OrderID, final, lifecycle.Trigger{
			Actor:      orders.ActorPaymentWebhook,
			Reason:     "payment confirmed",
			PaymentRef: req.Reference,
		})
	case "failed", "timed_out":
		final = orders.StatusCancelled
		err = h.Machine.Apply(ctx, req.OrderID, final, lifecycle.Trigger{
			Actor:  orders.ActorSystem,
			Reason: "payment " + req.Outcome,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown outcome"})
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	_ = h.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	h.cacheStatus(ctx, req.OrderID, final)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(final)})
}

type CarrierWebhookReq struct {
	OrderID   string    `json:"order_id"`
	Event     string    `json:"event"` // picked_up | delivered
	Reference string    `json:"reference"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) carrierWebhook(w http.ResponseWriter, r *http.Request) {
	var req CarrierWebhookReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dkey := fmt.Sprintf(redisx.KeyDedup, "carrier", req.OrderID+":"+req.Event)
	if ok, _ := redisx.Exists(ctx, h.Redis, dkey); ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	var err error
	var final orders.Status
	switch req.Event {
	case "picked_up":
		final = orders.StatusShipped
		err = h.Machine.Apply(ctx, req.OrderID, final, lifecycle.Trigger{
			Actor:       orders.ActorCarrierWebhook,
			Reason:      "carrier pickup",
			ShippingRef: req.Reference,
		})
	case "delivered":
		final = orders.StatusDelivered
		err = h.Machine.Apply(ctx, req.OrderID, final, lifecycle.Trigger{
			Actor:  orders.ActorCarrierWebhook,
			Reason: "carrier delivery confirmation",
			At:     req.Timestamp,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown event"})
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	_ = h.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	h.cacheStatus(ctx, req.OrderID, final)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(final)})
}

type ReturnReq struct {
	OrderID string           `json:"order_id"`
	Items   []orders.ItemQty `json:"items"`
	Reason  string           `json:"reason"`
}

func (h *Handler) createReturn(w http.ResponseWriter, r *http.Request) {
	var req ReturnReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rr, err := h.Returns.Request(ctx, req.OrderID, req.Items, req.Reason)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, req.OrderID, orders.StatusReturnRequested)
	writeJSON(w, http.StatusCreated, rr)
}

type DecisionReq struct {
	Decision string `json:"decision"` // approve | reject
}

func (h *Handler) decideReturn(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")
	var req DecisionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var rr *orders.ReturnRequest
	var err error
	switch req.Decision {
	case "approve":
		rr, err = h.Returns.Approve(ctx, requestID)
	case "reject":
		rr, err = h.Returns.Reject(ctx, requestID)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown decision"})
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, rr.OrderID, statusAfterDecision(req.Decision))
	writeJSON(w, http.StatusOK, rr)
}

func statusAfterDecision(decision string) orders.Status {
	if decision == "approve" {
		return orders.StatusReturned
	}
	return orders.StatusDelivered
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	recs, err := h.Stock.List(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	type productView struct {
		orders.StockRecord
		Available int `json:"available"`
	}
	out := make([]productView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, productView{StockRecord: rec, Available: rec.Available()})
	}
	writeJSON(w, http.StatusOK, out)
}
