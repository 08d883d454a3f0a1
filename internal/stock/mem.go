package stock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ariefcatur/go-order-engine.git/internal/orders"
)

type resStatus int

const (
	resReserved resStatus = iota
	resCommitted
	resReleased
)

type memProduct struct {
	mu  sync.Mutex
	rec orders.StockRecord
}

type memRes struct {
	qty    int
	status resStatus
}

// MemLedger: implementasi in-process dengan mutex per produk (lihat PGLedger
// untuk versi row-lock). Dipakai tes paket lain dan dev lokal tanpa Postgres.
type MemLedger struct {
	mu       sync.Mutex // jaga map-nya saja; counter dijaga mutex per produk
	products map[string]*memProduct
	res      map[string]map[string]*memRes // order -> product -> reservasi
}

func NewMemLedger() *MemLedger {
	return &MemLedger{
		products: make(map[string]*memProduct),
		res:      make(map[string]map[string]*memRes),
	}
}

func (l *MemLedger) Seed(rec orders.StockRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.products[rec.ProductID] = &memProduct{rec: rec}
}

func (l *MemLedger) Record(productID string) (orders.StockRecord, bool) {
	l.mu.Lock()
	p, ok := l.products[productID]
	l.mu.Unlock()
	if !ok {
		return orders.StockRecord{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rec, true
}

// lockProducts: ambil pointer produk + lock terurut (hindari deadlock).
func (l *MemLedger) lockProducts(ids []string) ([]*memProduct, func(), error) {
	uniq := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Strings(uniq)

	l.mu.Lock()
	ps := make([]*memProduct, 0, len(uniq))
	for _, id := range uniq {
		p, ok := l.products[id]
		if !ok {
			l.mu.Unlock()
			return nil, nil, fmt.Errorf("product not found: %s", id)
		}
		ps = append(ps, p)
	}
	l.mu.Unlock()

	for _, p := range ps {
		p.mu.Lock()
	}
	unlock := func() {
		for i := len(ps) - 1; i >= 0; i-- {
			ps[i].mu.Unlock()
		}
	}
	return ps, unlock, nil
}

func (l *MemLedger) Reserve(_ context.Context, orderID string, items []orders.ItemQty) error {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	ps, unlock, err := l.lockProducts(ids)
	if err != nil {
		return err
	}
	defer unlock()

	byID := make(map[string]*memProduct, len(ps))
	for _, p := range ps {
		byID[p.rec.ProductID] = p
	}

	l.mu.Lock()
	held := l.res[orderID]
	l.mu.Unlock()

	var rejects []InsufficientDetail
	for _, it := range items {
		if held != nil && held[it.ProductID] != nil {
			continue // sudah pernah reserve utk order ini
		}
		p := byID[it.ProductID]
		if avail := p.rec.Available(); avail < it.Qty {
			rejects = append(rejects, InsufficientDetail{
				ProductID: it.ProductID, Required: it.Qty, Available: avail,
			})
		}
	}
	if len(rejects) > 0 {
		return &InsufficientStockError{Details: rejects}
	}

	l.mu.Lock()
	if l.res[orderID] == nil {
		l.res[orderID] = make(map[string]*memRes)
	}
	for _, it := range items {
		if l.res[orderID][it.ProductID] != nil {
			continue
		}
		byID[it.ProductID].rec.ReservedQty += it.Qty
		l.res[orderID][it.ProductID] = &memRes{qty: it.Qty, status: resReserved}
	}
	l.mu.Unlock()
	return nil
}

func (l *MemLedger) Commit(ctx context.Context, orderID string) error {
	return l.settle(ctx, orderID, resCommitted, true)
}

func (l *MemLedger) Release(ctx context.Context, orderID string) error {
	return l.settle(ctx, orderID, resReleased, false)
}

func (l *MemLedger) settle(_ context.Context, orderID string, to resStatus, consume bool) error {
	l.mu.Lock()
	held := l.res[orderID]
	ids := make([]string, 0, len(held))
	for pid, r := range held {
		if r.status == resReserved {
			ids = append(ids, pid)
		}
	}
	l.mu.Unlock()
	if len(ids) == 0 {
		return nil // idempotent no-op
	}

	ps, unlock, err := l.lockProducts(ids)
	if err != nil {
		return err
	}
	defer unlock()

	byID := make(map[string]*memProduct, len(ps))
	for _, p := range ps {
		byID[p.rec.ProductID] = p
	}

	l.mu.Lock()
	for _, pid := range ids {
		r := l.res[orderID][pid]
		if r.status != resReserved {
			continue
		}
		p := byID[pid]
		p.rec.ReservedQty -= r.qty
		if consume {
			p.rec.TotalQty -= r.qty
		}
		r.status = to
	}
	l.mu.Unlock()
	return nil
}

func (l *MemLedger) Restock(_ context.Context, _ string, items []orders.ItemQty) error {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	ps, unlock, err := l.lockProducts(ids)
	if err != nil {
		return err
	}
	defer unlock()

	byID := make(map[string]*memProduct, len(ps))
	for _, p := range ps {
		byID[p.rec.ProductID] = p
	}
	for _, it := range items {
		byID[it.ProductID].rec.TotalQty += it.Qty
	}
	return nil
}

func (l *MemLedger) List(_ context.Context) ([]orders.StockRecord, error) {
	l.mu.Lock()
	ps := make([]*memProduct, 0, len(l.products))
	for _, p := range l.products {
		ps = append(ps, p)
	}
	l.mu.Unlock()

	out := make([]orders.StockRecord, 0, len(ps))
	for _, p := range ps {
		p.mu.Lock()
		out = append(out, p.rec)
		p.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}
