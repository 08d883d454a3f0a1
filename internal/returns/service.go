// Package returns memvalidasi permintaan retur terhadap order DELIVERED dan
// window eligibility, lalu mendorong transisinya lewat lifecycle machine.
package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-engine.git/internal/lifecycle"
	"github.com/ariefcatur/go-order-engine.git/internal/orders"
)

var (
	ErrNotEligible    = errors.New("return not eligible")
	ErrAlreadyDecided = errors.New("return already decided")
)

type OrderGetter interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
}

type RequestStore interface {
	Create(ctx context.Context, rr *orders.ReturnRequest) error
	Get(ctx context.Context, id string) (*orders.ReturnRequest, error)
	SetState(ctx context.Context, id string, from, to orders.ReturnState, processed bool) (bool, error)
}

type Applier interface {
	Apply(ctx context.Context, orderID string, to orders.Status, trig lifecycle.Trigger) error
}

type Service struct {
	Orders   OrderGetter
	Requests RequestStore
	Machine  Applier
	Window   time.Duration // eligibility diukur dari delivered_at
	Log      *zap.Logger
}

// Request: hanya order DELIVERED, dalam window, dan item subset dari order.
func (s *Service) Request(ctx context.Context, orderID string, items []orders.ItemQty, reason string) (*orders.ReturnRequest, error) {
	o, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != orders.StatusDelivered {
		return nil, fmt.Errorf("%w: order is %s", ErrNotEligible, o.Status)
	}
	if o.DeliveredAt == nil || time.Since(*o.DeliveredAt) > s.Window {
		return nil, fmt.Errorf("%w: outside return window", ErrNotEligible)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrNotEligible)
	}
	ordered := map[string]int{}
	for _, it := range o.Items {
		ordered[it.ProductID] = it.Qty
	}
	// merge baris duplikat dulu; subset dicek per total qty per produk
	merged := make([]orders.ItemQty, 0, len(items))
	idx := map[string]int{}
	for _, it := range items {
		if it.Qty <= 0 {
			return nil, fmt.Errorf("%w: item %s qty %d not in order", ErrNotEligible, it.ProductID, it.Qty)
		}
		if i, ok := idx[it.ProductID]; ok {
			merged[i].Qty += it.Qty
		} else {
			idx[it.ProductID] = len(merged)
			merged = append(merged, it)
		}
	}
	for _, it := range merged {
		if it.Qty > ordered[it.ProductID] {
			return nil, fmt.Errorf("%w: item %s qty %d not in order", ErrNotEligible, it.ProductID, it.Qty)
		}
	}
	items = merged

	if err := s.Machine.Apply(ctx, orderID, orders.StatusReturnRequested, lifecycle.Trigger{
		Actor:  orders.ActorCustomer,
		Reason: reason,
	}); err != nil {
		return nil, err
	}

	rr := &orders.ReturnRequest{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		Items:       items,
		Reason:      reason,
		State:       orders.ReturnRequested,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.Requests.Create(ctx, rr); err != nil {
		// intake gagal: kembalikan order ke DELIVERED biar tidak nyangkut
		if rerr := s.Machine.Apply(ctx, orderID, orders.StatusDelivered, lifecycle.Trigger{
			Actor:  orders.ActorSystem,
			Reason: "return intake failed",
		}); rerr != nil {
			s.Log.Error("revert return request", zap.String("order_id", orderID), zap.Error(rerr))
		}
		return nil, err
	}
	return rr, nil
}

// Approve idempotent terhadap signal approval yang datang berulang.
func (s *Service) Approve(ctx context.Context, requestID string) (*orders.ReturnRequest, error) {
	rr, err := s.Requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch rr.State {
	case orders.ReturnCompleted:
		return rr, nil // sudah beres, no-op
	case orders.ReturnRejected:
		return nil, ErrAlreadyDecided
	case orders.ReturnRequested:
		if _, err := s.Requests.SetState(ctx, rr.ID, orders.ReturnRequested, orders.ReturnApproved, false); err != nil {
			return nil, err
		}
	case orders.ReturnApproved:
		// approval sebelumnya kepotong; lanjutkan dari sini
	}

	err = s.Machine.Apply(ctx, rr.OrderID, orders.StatusReturned, lifecycle.Trigger{
		Actor:  orders.ActorSystem,
		Reason: "return approved",
		Items:  rr.Items, // release hanya qty yang diretur
	})
	if err != nil && !alreadyAt(ctx, s.Orders, rr.OrderID, orders.StatusReturned) {
		return nil, err
	}

	if _, err := s.Requests.SetState(ctx, rr.ID, orders.ReturnApproved, orders.ReturnCompleted, true); err != nil {
		return nil, err
	}
	return s.Requests.Get(ctx, requestID)
}

func (s *Service) Reject(ctx context.Context, requestID string) (*orders.ReturnRequest, error) {
	rr, err := s.Requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch rr.State {
	case orders.ReturnRejected:
		return rr, nil
	case orders.ReturnCompleted, orders.ReturnApproved:
		return nil, ErrAlreadyDecided
	}

	err = s.Machine.Apply(ctx, rr.OrderID, orders.StatusDelivered, lifecycle.Trigger{
		Actor:  orders.ActorSystem,
		Reason: "return rejected",
	})
	if err != nil && !alreadyAt(ctx, s.Orders, rr.OrderID, orders.StatusDelivered) {
		return nil, err
	}

	if _, err := s.Requests.SetState(ctx, rr.ID, orders.ReturnRequested, orders.ReturnRejected, true); err != nil {
		return nil, err
	}
	return s.Requests.Get(ctx, requestID)
}

// alreadyAt: transisi gagal tapi order memang sudah di target (retry path).
func alreadyAt(ctx context.Context, g OrderGetter, orderID string, want orders.Status) bool {
	o, err := g.GetOrder(ctx, orderID)
	return err == nil && o.Status == want
}
