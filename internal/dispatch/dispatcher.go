// Package dispatch meneruskan transisi yang sudah commit ke kolaborator
// eksternal. Fire-and-forget: tidak pernah nge-block atau gagalin transisi.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-engine.git/internal/orders"
)

type Event struct {
	OrderID string
	From    orders.Status
	To      orders.Status
	At      time.Time

	// Order != nil berarti event pembuatan (order.placed), bukan transisi.
	Order *orders.Order
}

// Notifier = target delivery (kafka, HTTP, dsb). Error memicu retry.
type Notifier interface {
	Send(ctx context.Context, ev Event) error
}

type Dispatcher struct {
	n       Notifier
	inbox   chan Event
	closeCh chan struct{}
	log     *zap.Logger

	maxRetries int
	backoff    time.Duration // base utk exponential backoff
}

func New(n Notifier, buf, maxRetries int, backoff time.Duration, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		n:          n,
		inbox:      make(chan Event, buf),
		closeCh:    make(chan struct{}),
		log:        log,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.closeCh)
		for {
			select {
			case <-ctx.Done():
				// drain sisa event sekali jalan, tanpa retry panjang
				for {
					select {
					case ev := <-d.inbox:
						_ = d.n.Send(context.Background(), ev)
					default:
						return
					}
				}
			case ev := <-d.inbox:
				d.deliver(ctx, ev)
			}
		}
	}()
}

// Notify: enqueue non-blocking. Queue penuh -> drop + log, transisi jalan terus.
func (d *Dispatcher) Notify(orderID string, from, to orders.Status) {
	d.enqueue(Event{OrderID: orderID, From: from, To: to, At: time.Now().UTC()})
}

// NotifyPlaced: event pembuatan order, payload lebih kaya dari transisi biasa.
func (d *Dispatcher) NotifyPlaced(o *orders.Order) {
	d.enqueue(Event{OrderID: o.ID, To: orders.StatusPlaced, At: time.Now().UTC(), Order: o})
}

func (d *Dispatcher) enqueue(ev Event) {
	select {
	case d.inbox <- ev:
	default:
		d.log.Error("dispatch queue full, dropping notification",
			zap.String("order_id", ev.OrderID),
			zap.String("from", string(ev.From)),
			zap.String("to", string(ev.To)),
		)
	}
}

// deliver: bounded exponential backoff, setelah ceiling event di-drop + log.
func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(d.backoff << (attempt - 1)):
			case <-ctx.Done():
				return
			}
		}
		if lastErr = d.n.Send(ctx, ev); lastErr == nil {
			return
		}
	}
	d.log.Error("notification dropped after retries",
		zap.String("order_id", ev.OrderID),
		zap.String("from", string(ev.From)),
		zap.String("to", string(ev.To)),
		zap.Int("attempts", d.maxRetries+1),
		zap.Error(lastErr),
	)
}

func (d *Dispatcher) WaitClosed() { <-d.closeCh }
