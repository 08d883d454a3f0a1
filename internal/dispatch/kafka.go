package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-order-engine.git/internal/kafka"
	"github.com/ariefcatur/go-order-engine.git/internal/orders"
)

// KafkaNotifier publish envelope OrderPlaced / OrderStatusChanged; downstream
// (notifier, analytics) konsumsi dari topic, bukan dipanggil langsung.
type KafkaNotifier struct {
	Status  *kafkax.Producer // topic order.status.changed
	Placed  *kafkax.Producer // topic order.placed
	Service string
}

func (k *KafkaNotifier) Send(_ context.Context, ev Event) error {
	if ev.Order != nil {
		return k.publish(k.Placed, ev.OrderID, orders.EventOrderPlaced, orders.OrderPlacedPayload{
			OrderID:     ev.Order.ID,
			OrderNumber: ev.Order.Number,
			UserID:      ev.Order.UserID,
			Items:       itemPrices(ev.Order),
			TotalCents:  ev.Order.TotalCents,
		})
	}
	return k.publish(k.Status, ev.OrderID, orders.EventOrderStatusChanged, orders.StatusChangedPayload{
		OrderID: ev.OrderID,
		From:    ev.From,
		To:      ev.To,
		At:      ev.At,
	})
}

func (k *KafkaNotifier) publish(p *kafkax.Producer, orderID, eventType string, payload any) error {
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      k.Service,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	return p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func itemPrices(o *orders.Order) []orders.ItemPrice {
	out := make([]orders.ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, orders.ItemPrice{ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents})
	}
	return out
}
