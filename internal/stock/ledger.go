// Package stock adalah satu-satunya penulis counter stok produk.
// available = total - reserved; komponen lain tidak boleh mutasi langsung.
package stock

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-order-engine.git/internal/orders"
)

type InsufficientDetail struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

// InsufficientStockError: satu atau lebih item tidak cukup stok; reservasi
// tidak ada yang di-commit (all-or-nothing).
type InsufficientStockError struct {
	Details []InsufficientDetail
}

func (e *InsufficientStockError) Error() string {
	ids := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		ids = append(ids, d.ProductID)
	}
	return fmt.Sprintf("insufficient stock: %s", strings.Join(ids, ", "))
}

type Ledger interface {
	// Reserve: pindahkan qty dari available ke reserved, atomik utk seluruh
	// item. Gagal dengan *InsufficientStockError tanpa perubahan apapun.
	Reserve(ctx context.Context, orderID string, items []orders.ItemQty) error
	// Commit: reservasi jadi konsumsi permanen (total & reserved turun). Idempotent.
	Commit(ctx context.Context, orderID string) error
	// Release: reservasi balik ke available, total tidak disentuh. Idempotent.
	Release(ctx context.Context, orderID string) error
	// Restock: qty retur (sudah ter-commit) ditambahkan balik ke total.
	Restock(ctx context.Context, orderID string, items []orders.ItemQty) error
}
