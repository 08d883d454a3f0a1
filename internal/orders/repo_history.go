package orders

import (
	"context"
)

// ListHistory: urutan transisi per order, append order (id serial).
func (r *Repo) ListHistory(ctx context.Context, orderID string) ([]StatusHistoryEntry, error) {
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, orderID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUnknownOrder
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, from_status, to_status, actor, COALESCE(reason,''), at
		FROM status_history WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusHistoryEntry
	for rows.Next() {
		var e StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.From, &e.To, &e.Actor, &e.Reason, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
