package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-engine.git/internal/orders"
	"github.com/ariefcatur/go-order-engine.git/internal/stock"
)

type fakeCarts struct {
	mu      sync.Mutex
	carts   map[string][]orders.ItemPrice
	cleared []string
}

func (c *fakeCarts) Finalize(_ context.Context, cartID string) ([]orders.ItemPrice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines, ok := c.carts[cartID]
	if !ok {
		return nil, errors.New("cart not found")
	}
	return lines, nil
}

func (c *fakeCarts) Clear(_ context.Context, cartID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared = append(c.cleared, cartID)
	return nil
}

type fakeOrderStore struct {
	mu      sync.Mutex
	created []*orders.Order
	fail    error
}

func (s *fakeOrderStore) CreateOrder(_ context.Context, o *orders.Order, _ orders.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.created = append(s.created, o)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyPlaced(*orders.Order) {}

func newService(carts *fakeCarts, ledger stock.Ledger, store *fakeOrderStore) *Service {
	return &Service{
		Carts:  carts,
		Ledger: ledger,
		Orders: store,
		Notify: noopNotifier{},
		Log:    zap.NewNop(),
	}
}

func TestCheckoutHappyPath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger := stock.NewMemLedger()
	ledger.Seed(orders.StockRecord{ProductID: "p1", SKU: "SKU-A", TotalQty: 5, PriceCents: 1000})
	carts := &fakeCarts{carts: map[string][]orders.ItemPrice{
		"c1": {{ProductID: "p1", Qty: 2, PriceCents: 1000}},
	}}
	store := &fakeOrderStore{}
	svc := newService(carts, ledger, store)

	o, err := svc.Checkout(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Equal(t, orders.StatusPlaced, o.Status)
	require.Equal(t, 2000, o.TotalCents)
	require.Len(t, o.Items, 1)
	require.Equal(t, 1000, o.Items[0].PriceCents) // snapshot harga
	require.NotEmpty(t, o.Number)

	rec, _ := ledger.Record("p1")
	require.Equal(t, 2, rec.ReservedQty)
	require.Equal(t, 3, rec.Available())
	require.Equal(t, []string{"c1"}, carts.cleared)
	require.Len(t, store.created, 1)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger := stock.NewMemLedger()
	ledger.Seed(orders.StockRecord{ProductID: "p1", SKU: "SKU-A", TotalQty: 1})
	carts := &fakeCarts{carts: map[string][]orders.ItemPrice{
		"c1": {{ProductID: "p1", Qty: 3, PriceCents: 500}},
	}}
	store := &fakeOrderStore{}
	svc := newService(carts, ledger, store)

	_, err := svc.Checkout(ctx, "u1", "c1")
	var insuf *stock.InsufficientStockError
	require.ErrorAs(t, err, &insuf)
	require.Equal(t, "p1", insuf.Details[0].ProductID)

	// tidak ada order, tidak ada reservasi, cart tidak di-clear
	require.Empty(t, store.created)
	rec, _ := ledger.Record("p1")
	require.Equal(t, 0, rec.ReservedQty)
	require.Empty(t, carts.cleared)
}

func TestCheckoutCompensatesOnCreateFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger := stock.NewMemLedger()
	ledger.Seed(orders.StockRecord{ProductID: "p1", SKU: "SKU-A", TotalQty: 5})
	carts := &fakeCarts{carts: map[string][]orders.ItemPrice{
		"c1": {{ProductID: "p1", Qty: 2, PriceCents: 500}},
	}}
	store := &fakeOrderStore{fail: errors.New("insert failed")}
	svc := newService(carts, ledger, store)

	_, err := svc.Checkout(ctx, "u1", "c1")
	require.Error(t, err)

	// reservasi tidak boleh hidup tanpa order
	rec, _ := ledger.Record("p1")
	require.Equal(t, 0, rec.ReservedQty)
	require.Equal(t, 5, rec.Available())
	require.Empty(t, carts.cleared)
}

func TestCheckoutEmptyCart(t *testing.T) {
	t.Parallel()

	carts := &fakeCarts{carts: map[string][]orders.ItemPrice{"c1": {}}}
	svc := newService(carts, stock.NewMemLedger(), &fakeOrderStore{})

	_, err := svc.Checkout(context.Background(), "u1", "c1")
	require.ErrorIs(t, err, ErrEmptyCart)
}

// Rebutan unit terakhir: tepat satu order jadi, satu InsufficientStock.
func TestCheckoutConcurrentLastUnit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger := stock.NewMemLedger()
	ledger.Seed(orders.StockRecord{ProductID: "p1", SKU: "SKU-B", TotalQty: 1, PriceCents: 900})
	carts := &fakeCarts{carts: map[string][]orders.ItemPrice{
		"c1": {{ProductID: "p1", Qty: 1, PriceCents: 900}},
		"c2": {{ProductID: "p1", Qty: 1, PriceCents: 900}},
	}}
	store := &fakeOrderStore{}
	svc := newService(carts, ledger, store)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, cartID := range []string{"c1", "c2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Checkout(ctx, "u1", id)
			results <- err
		}(cartID)
	}
	wg.Wait()
	close(results)

	var okCount, insufCount int
	for err := range results {
		if err == nil {
			okCount++
			continue
		}
		var insuf *stock.InsufficientStockError
		require.ErrorAs(t, err, &insuf)
		insufCount++
	}
	require.Equal(t, 1, okCount)
	require.Equal(t, 1, insufCount)
	require.Len(t, store.created, 1)

	rec, _ := ledger.Record("p1")
	require.Equal(t, 1, rec.ReservedQty)
	require.Equal(t, 0, rec.Available())
}

func TestCheckoutInvalidQty(t *testing.T) {
	t.Parallel()

	carts := &fakeCarts{carts: map[string][]orders.ItemPrice{
		"c1": {{ProductID: "p1", Qty: 0, PriceCents: 100}},
	}}
	svc := newService(carts, stock.NewMemLedger(), &fakeOrderStore{})

	_, err := svc.Checkout(context.Background(), "u1", "c1")
	require.Error(t, err)
}
