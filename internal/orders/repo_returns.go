package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReturnRepo struct{ DB *pgxpool.Pool }

func (r *ReturnRepo) Create(ctx context.Context, rr *ReturnRequest) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO return_requests(id, order_id, reason, state, requested_at)
		VALUES ($1, $2, $3, $4, now())`,
		rr.ID, rr.OrderID, rr.Reason, rr.State,
	); err != nil {
		return err
	}
	for _, it := range rr.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO return_items(return_id, product_id, qty)
			VALUES ($1, $2, $3)`, rr.ID, it.ProductID, it.Qty,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ReturnRepo) Get(ctx context.Context, id string) (*ReturnRequest, error) {
	var rr ReturnRequest
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, reason, state, requested_at, processed_at
		FROM return_requests WHERE id=$1`, id).
		Scan(&rr.ID, &rr.OrderID, &rr.Reason, &rr.State, &rr.RequestedAt, &rr.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownReturn
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT product_id, qty FROM return_items WHERE return_id=$1 ORDER BY product_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it ItemQty
		if err := rows.Scan(&it.ProductID, &it.Qty); err != nil {
			return nil, err
		}
		rr.Items = append(rr.Items, it)
	}
	return &rr, rows.Err()
}

// SetState: CAS state request; false kalau state sudah bergeser (idempotency guard).
func (r *ReturnRepo) SetState(ctx context.Context, id string, from, to ReturnState, processed bool) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE return_requests SET
			state        = $3,
			processed_at = CASE WHEN $4 THEN now() ELSE processed_at END
		WHERE id = $1 AND state = $2`, id, from, to, processed)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
