package orders

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var (
	ErrUnknownOrder  = errors.New("order not found")
	ErrUnknownReturn = errors.New("return request not found")
)

// StockRecord: counter stok per produk. available = total - reserved.
type StockRecord struct {
	ProductID   string `json:"product_id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	TotalQty    int    `json:"total_qty"`
	ReservedQty int    `json:"reserved_qty"`
	PriceCents  int    `json:"price_cents"`
}

func (r StockRecord) Available() int { return r.TotalQty - r.ReservedQty }

type Order struct {
	ID          string     `json:"id"`
	Number      string     `json:"number"` // human-facing, ORD-YYYYMMDD-NNNNN
	UserID      string     `json:"user_id"`
	Status      Status     `json:"status"`
	TotalCents  int        `json:"total_cents"`
	PaymentRef  string     `json:"payment_ref,omitempty"`
	ShippingRef string     `json:"shipping_ref,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	Items       []LineItem `json:"items,omitempty"`
}

// LineItem: snapshot harga saat checkout, tidak pernah dibaca ulang.
type LineItem struct {
	OrderID    string `json:"-"`
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

// StatusHistoryEntry append-only; From kosong untuk entry pembuatan order.
type StatusHistoryEntry struct {
	ID      int64     `json:"id"`
	OrderID string    `json:"order_id"`
	From    Status    `json:"from,omitempty"`
	To      Status    `json:"to"`
	Actor   Actor     `json:"actor"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

type ReturnState string

const (
	ReturnRequested ReturnState = "REQUESTED"
	ReturnApproved  ReturnState = "APPROVED"
	ReturnRejected  ReturnState = "REJECTED"
	ReturnCompleted ReturnState = "COMPLETED"
)

type ReturnRequest struct {
	ID          string      `json:"id"`
	OrderID     string      `json:"order_id"`
	Items       []ItemQty   `json:"items"`
	Reason      string      `json:"reason"`
	State       ReturnState `json:"state"`
	RequestedAt time.Time   `json:"requested_at"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty"`
}

// NewOrderNumber format ORD-YYYYMMDD-NNNNN; unik dijamin di repo (retry on clash).
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%05d", now.UTC().Format("20060102"), rand.Intn(100000))
}
