package stock

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-order-engine.git/internal/orders"
)

// PGLedger: serialisasi per-produk lewat row lock (FOR UPDATE).
type PGLedger struct{ DB *pgxpool.Pool }

// Reserve: lock stok per product -> cek available -> naikkan reserved ->
// catat reservation (idempotent via ON CONFLICT). Kalau ada yang kurang,
// tidak ada perubahan yang di-commit (rollback).
func (l *PGLedger) Reserve(ctx context.Context, orderID string, items []orders.ItemQty) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// urutkan biar lock order konsisten antar tx (hindari deadlock)
	sorted := make([]orders.ItemQty, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	var rejects []InsufficientDetail
	for _, it := range sorted {
		var total, reserved int
		if err := tx.QueryRow(ctx,
			`SELECT total_qty, reserved_qty FROM products WHERE id=$1 FOR UPDATE`,
			it.ProductID).Scan(&total, &reserved); err != nil {
			return err
		}

		// order ini sudah punya reservasi utk produk ini: jangan double-count
		var have bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM reservations WHERE order_id=$1 AND product_id=$2)`,
			orderID, it.ProductID).Scan(&have); err != nil {
			return err
		}
		if have {
			continue
		}

		avail := total - reserved
		if avail < it.Qty {
			rejects = append(rejects, InsufficientDetail{
				ProductID: it.ProductID, Required: it.Qty, Available: avail,
			})
			continue
		}

		if _, err := tx.Exec(ctx,
			`UPDATE products SET reserved_qty = reserved_qty + $2, updated_at = now() WHERE id=$1`,
			it.ProductID, it.Qty); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO reservations(order_id, product_id, qty, status)
			VALUES ($1,$2,$3,'RESERVED')
			ON CONFLICT (order_id, product_id) DO NOTHING
		`, orderID, it.ProductID, it.Qty); err != nil {
			return err
		}
	}

	if len(rejects) > 0 {
		return &InsufficientStockError{Details: rejects} // rollback via defer
	}
	return tx.Commit(ctx)
}

// Commit: seluruh reservasi RESERVED milik order jadi konsumsi permanen.
// Tidak ada row RESERVED = no-op (sudah pernah di-commit).
func (l *PGLedger) Commit(ctx context.Context, orderID string) error {
	return l.settle(ctx, orderID, "COMMITTED", true)
}

// Release: reservasi balik ke available. Idempotent dengan cara yang sama.
func (l *PGLedger) Release(ctx context.Context, orderID string) error {
	return l.settle(ctx, orderID, "RELEASED", false)
}

func (l *PGLedger) settle(ctx context.Context, orderID, toStatus string, consume bool) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT product_id, qty FROM reservations
		WHERE order_id=$1 AND status='RESERVED'
		ORDER BY product_id FOR UPDATE`, orderID)
	if err != nil {
		return err
	}
	type rec struct {
		pid string
		qty int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.pid, &x.qty); err != nil {
			rows.Close()
			return err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(recs) == 0 {
		return tx.Commit(ctx) // idempotent no-op
	}

	for _, x := range recs {
		if consume {
			if _, err := tx.Exec(ctx,
				`UPDATE products SET total_qty = total_qty - $2, reserved_qty = reserved_qty - $2, updated_at = now() WHERE id=$1`,
				x.pid, x.qty); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(ctx,
				`UPDATE products SET reserved_qty = reserved_qty - $2, updated_at = now() WHERE id=$1`,
				x.pid, x.qty); err != nil {
				return err
			}
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE reservations SET status=$2 WHERE order_id=$1 AND status='RESERVED'`,
		orderID, toStatus); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Restock: qty retur balik ke total (stok sudah ter-commit saat FULFILLED).
// Idempotency dijaga di level return request (state CAS), bukan di sini.
func (l *PGLedger) Restock(ctx context.Context, orderID string, items []orders.ItemQty) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range items {
		if _, err := tx.Exec(ctx,
			`UPDATE products SET total_qty = total_qty + $2, updated_at = now() WHERE id=$1`,
			it.ProductID, it.Qty); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// List: snapshot counter semua produk (buat endpoint availability).
func (l *PGLedger) List(ctx context.Context) ([]orders.StockRecord, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT id, sku, name, total_qty, reserved_qty, price_cents
		FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.StockRecord
	for rows.Next() {
		var r orders.StockRecord
		if err := rows.Scan(&r.ProductID, &r.SKU, &r.Name, &r.TotalQty, &r.ReservedQty, &r.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
