// Package cart adalah boundary ke kolaborator keranjang: checkout hanya butuh
// finalize (lines dengan harga sudah resolved) dan clear.
package cart

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-order-engine.git/internal/orders"
)

var ErrCartNotFound = errors.New("cart not found")

type Client interface {
	// Finalize: isi cart dengan unit price snapshot, siap jadi order.
	Finalize(ctx context.Context, cartID string) ([]orders.ItemPrice, error)
	// Clear: invalidasi cart setelah order dibuat.
	Clear(ctx context.Context, cartID string) error
}
