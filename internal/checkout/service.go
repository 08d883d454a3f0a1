// Package checkout mengubah cart final jadi order PLACED dengan stok
// ter-reserve, atau gagal total tanpa jejak (compensating release).
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-engine.git/internal/cart"
	"github.com/ariefcatur/go-order-engine.git/internal/orders"
	"github.com/ariefcatur/go-order-engine.git/internal/stock"
)

var ErrEmptyCart = errors.New("cart is empty")

type OrderStore interface {
	CreateOrder(ctx context.Context, o *orders.Order, by orders.Actor) error
}

type Notifier interface {
	NotifyPlaced(o *orders.Order)
}

type Service struct {
	Carts  cart.Client
	Ledger stock.Ledger
	Orders OrderStore
	Notify Notifier
	Log    *zap.Logger
}

// Checkout: reserve dulu (all-or-nothing), baru buat order, baru clear cart.
// Order id dibuat di depan supaya reservasi sudah punya pemilik.
func (s *Service) Checkout(ctx context.Context, userID, cartID string) (*orders.Order, error) {
	lines, err := s.Carts.Finalize(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	for _, ln := range lines {
		if ln.Qty <= 0 {
			return nil, fmt.Errorf("invalid qty for product %s", ln.ProductID)
		}
	}

	orderID := uuid.NewString()
	items := make([]orders.ItemQty, 0, len(lines))
	for _, ln := range lines {
		items = append(items, orders.ItemQty{ProductID: ln.ProductID, Qty: ln.Qty})
	}

	if err := s.Ledger.Reserve(ctx, orderID, items); err != nil {
		return nil, err // *stock.InsufficientStockError bawa detail per produk
	}

	now := time.Now().UTC()
	o := &orders.Order{
		ID:        orderID,
		Number:    orders.NewOrderNumber(now),
		UserID:    userID,
		Status:    orders.StatusPlaced,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, ln := range lines {
		o.Items = append(o.Items, orders.LineItem{
			OrderID:    orderID,
			ProductID:  ln.ProductID,
			Qty:        ln.Qty,
			PriceCents: ln.PriceCents, // snapshot, tidak dibaca ulang
		})
		o.TotalCents += ln.PriceCents * ln.Qty
	}

	if err := s.Orders.CreateOrder(ctx, o, orders.ActorCustomer); err != nil {
		// reservasi jangan sampai hidup tanpa order
		if rerr := s.Ledger.Release(ctx, orderID); rerr != nil {
			s.Log.Error("compensating release failed",
				zap.String("order_id", orderID), zap.Error(rerr))
		}
		return nil, err
	}

	// cart eksternal; gagal clear bukan alasan gagalin order yang sudah jadi
	if err := s.Carts.Clear(ctx, cartID); err != nil {
		s.Log.Warn("clear cart", zap.String("cart_id", cartID), zap.Error(err))
	}

	s.Notify.NotifyPlaced(o)
	return o, nil
}
