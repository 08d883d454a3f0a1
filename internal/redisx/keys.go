package redisx

import "time"

const (
	// Idempotency checkout: idem:checkout:{cart_id} -> order_id
	KeyIdemCheckout = "idem:checkout:%s"

	// Cache status order: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event/webhook processing: dedup:{service}:{id}
	KeyDedup = "dedup:%s:%s"

	// Cart final dari cart service: cart:{cart_id} -> JSON lines
	KeyCart = "cart:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
