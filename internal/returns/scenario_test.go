package returns

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-engine.git/internal/checkout"
	"github.com/ariefcatur/go-order-engine.git/internal/lifecycle"
	"github.com/ariefcatur/go-order-engine.git/internal/orders"
	"github.com/ariefcatur/go-order-engine.git/internal/stock"
)

func (s *memStore) CreateOrder(_ context.Context, o *orders.Order, _ orders.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

type staticCarts struct{ lines []orders.ItemPrice }

func (c *staticCarts) Finalize(context.Context, string) ([]orders.ItemPrice, error) {
	return c.lines, nil
}
func (c *staticCarts) Clear(context.Context, string) error { return nil }

// Jalur lengkap satu order: checkout -> paid -> fulfilled -> shipped ->
// delivered -> retur 1 dari 2 -> approved. Cek stok di tiap tahap.
func TestOrderLifecycleEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := &memStore{orders: map[string]*orders.Order{}}
	ledger := stock.NewMemLedger()
	ledger.Seed(orders.StockRecord{ProductID: "sku-a", SKU: "SKU-A", TotalQty: 5, PriceCents: 1000})
	machine := lifecycle.NewMachine(store, ledger, noopNotifier{}, zap.NewNop())

	checkoutSvc := &checkout.Service{
		Carts:  &staticCarts{lines: []orders.ItemPrice{{ProductID: "sku-a", Qty: 2, PriceCents: 1000}}},
		Ledger: ledger,
		Orders: store,
		Notify: noopPlaced{},
		Log:    zap.NewNop(),
	}
	returnSvc := &Service{
		Orders:   store,
		Requests: &memRequests{},
		Machine:  machine,
		Window:   30 * 24 * time.Hour,
		Log:      zap.NewNop(),
	}

	o, err := checkoutSvc.Checkout(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Equal(t, orders.StatusPlaced, o.Status)
	rec, _ := ledger.Record("sku-a")
	require.Equal(t, 3, rec.Available())
	require.Equal(t, 2, rec.ReservedQty)

	require.NoError(t, machine.Apply(ctx, o.ID, orders.StatusPaid, lifecycle.Trigger{
		Actor: orders.ActorPaymentWebhook, PaymentRef: "pay-1",
	}))
	rec, _ = ledger.Record("sku-a")
	require.Equal(t, 2, rec.ReservedQty) // payment tidak menyentuh stok

	require.NoError(t, machine.Apply(ctx, o.ID, orders.StatusFulfilled, lifecycle.Trigger{Actor: orders.ActorSystem}))
	rec, _ = ledger.Record("sku-a")
	require.Equal(t, 3, rec.TotalQty)
	require.Equal(t, 0, rec.ReservedQty)

	require.NoError(t, machine.Apply(ctx, o.ID, orders.StatusShipped, lifecycle.Trigger{
		Actor: orders.ActorCarrierWebhook, ShippingRef: "track-1",
	}))
	require.NoError(t, machine.Apply(ctx, o.ID, orders.StatusDelivered, lifecycle.Trigger{
		Actor: orders.ActorCarrierWebhook,
	}))

	got, _ := store.GetOrder(ctx, o.ID)
	require.Equal(t, orders.StatusDelivered, got.Status)
	require.NotNil(t, got.DeliveredAt)

	rr, err := returnSvc.Request(ctx, o.ID, []orders.ItemQty{{ProductID: "sku-a", Qty: 1}}, "defective")
	require.NoError(t, err)

	decided, err := returnSvc.Approve(ctx, rr.ID)
	require.NoError(t, err)
	require.Equal(t, orders.ReturnCompleted, decided.State)

	got, _ = store.GetOrder(ctx, o.ID)
	require.Equal(t, orders.StatusReturned, got.Status)
	rec, _ = ledger.Record("sku-a")
	require.Equal(t, 4, rec.Available()) // retur 1 dari 2 balik ke stok
}

type noopPlaced struct{}

func (noopPlaced) NotifyPlaced(*orders.Order) {}
