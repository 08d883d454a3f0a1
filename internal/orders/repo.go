package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// Patch: field opsional yang ikut di-set saat transisi (dalam tx yang sama).
type Patch struct {
	PaymentRef  string
	ShippingRef string
	DeliveredAt *time.Time
}

// CreateOrder: insert order + items + history entry awal dalam satu tx.
// Nomor order di-retry kalau kebentur unique (harusnya jarang).
func (r *Repo) CreateOrder(ctx context.Context, o *Order, by Actor) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for attempt := 0; ; attempt++ {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE number=$1)`, o.Number).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			break
		}
		if attempt >= 5 {
			return fmt.Errorf("order number clash: %s", o.Number)
		}
		o.Number = NewOrderNumber(time.Now())
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, number, user_id, status, total_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`, o.ID, o.Number, o.UserID, o.Status, o.TotalCents)
	if err != nil {
		return err
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, qty, price_cents)
			VALUES ($1, $2, $3, $4)`,
			o.ID, it.ProductID, it.Qty, it.PriceCents,
		); err != nil {
			return err
		}
	}

	// history awal: from kosong -> PLACED
	if _, err := tx.Exec(ctx, `
		INSERT INTO status_history(order_id, from_status, to_status, actor, reason, at)
		VALUES ($1, '', $2, $3, 'order placed', now())`,
		o.ID, o.Status, by,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, number, user_id, status, total_cents,
		       COALESCE(payment_ref,''), COALESCE(shipping_ref,''),
		       created_at, updated_at, delivered_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.Number, &o.UserID, &o.Status, &o.TotalCents,
			&o.PaymentRef, &o.ShippingRef, &o.CreatedAt, &o.UpdatedAt, &o.DeliveredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownOrder
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, qty, price_cents
		FROM order_items WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

// Transition: CAS status + append history dalam satu tx.
// RowsAffected 0 berarti order hilang atau status sudah bergeser -> TransitionError.
func (r *Repo) Transition(ctx context.Context, orderID string, from, to Status, by Actor, reason string, p Patch) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET
			status       = $3,
			payment_ref  = CASE WHEN $4 <> '' THEN $4 ELSE payment_ref END,
			shipping_ref = CASE WHEN $5 <> '' THEN $5 ELSE shipping_ref END,
			delivered_at = COALESCE($6, delivered_at),
			updated_at   = now()
		WHERE id = $1 AND status = $2
	`, orderID, from, to, p.PaymentRef, p.ShippingRef, p.DeliveredAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var cur Status
		err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&cur)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUnknownOrder
		}
		if err != nil {
			return err
		}
		return &TransitionError{From: cur, To: to, By: by}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO status_history(order_id, from_status, to_status, actor, reason, at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		orderID, from, to, by, reason,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListExpiredPlaced: order PLACED yang melewati payment timeout (untuk watcher).
func (r *Repo) ListExpiredPlaced(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at LIMIT $3`, StatusPlaced, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
