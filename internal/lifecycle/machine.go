// Package lifecycle memiliki state order dan satu-satunya jalur transisi.
// Semua side effect (ledger, history, notifikasi) lewat Apply.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-engine.git/internal/orders"
)

type Store interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	Transition(ctx context.Context, orderID string, from, to orders.Status, by orders.Actor, reason string, p orders.Patch) error
}

type Ledger interface {
	Commit(ctx context.Context, orderID string) error
	Release(ctx context.Context, orderID string) error
	Restock(ctx context.Context, orderID string, items []orders.ItemQty) error
}

type Notifier interface {
	Notify(orderID string, from, to orders.Status)
}

// Trigger: siapa/kenapa transisi terjadi + data ikutan.
type Trigger struct {
	Actor  orders.Actor
	Reason string

	PaymentRef  string           // diisi saat -> PAID
	ShippingRef string           // diisi saat -> SHIPPED
	At          time.Time        // waktu event eksternal (carrier), zero = now
	Items       []orders.ItemQty // qty retur utk -> RETURNED
}

type Machine struct {
	store  Store
	ledger Ledger
	notify Notifier
	log    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // serialisasi per order
}

func NewMachine(store Store, ledger Ledger, notify Notifier, log *zap.Logger) *Machine {
	return &Machine{
		store:  store,
		ledger: ledger,
		notify: notify,
		log:    log,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (m *Machine) orderLock(orderID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[orderID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[orderID] = l
	}
	return l
}

// Apply: unit atomik transisi. Urutan: validasi tabel -> side effect ledger ->
// CAS status + history (satu tx) -> notify (di luar lock, fire-and-forget).
// Kalau ledger gagal, order tetap di status lama.
func (m *Machine) Apply(ctx context.Context, orderID string, to orders.Status, trig Trigger) error {
	from, err := m.apply(ctx, orderID, to, trig)
	if err != nil {
		return err
	}
	// notify tanpa pegang lock per-order
	m.notify.Notify(orderID, from, to)
	return nil
}

func (m *Machine) apply(ctx context.Context, orderID string, to orders.Status, trig Trigger) (orders.Status, error) {
	lock := m.orderLock(orderID)
	lock.Lock()
	defer lock.Unlock()

	o, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	from := o.Status

	if err := orders.CanTransition(from, to, trig.Actor); err != nil {
		return "", err
	}

	switch orders.Effect(from, to) {
	case orders.EffectCommit:
		err = m.ledger.Commit(ctx, orderID)
	case orders.EffectRelease:
		err = m.ledger.Release(ctx, orderID)
	case orders.EffectRestock:
		if len(trig.Items) == 0 {
			return "", fmt.Errorf("restock transition needs items: order %s", orderID)
		}
		err = m.ledger.Restock(ctx, orderID, trig.Items)
	}
	if err != nil {
		return "", fmt.Errorf("ledger side effect %s -> %s: %w", from, to, err)
	}

	p := orders.Patch{PaymentRef: trig.PaymentRef, ShippingRef: trig.ShippingRef}
	if to == orders.StatusDelivered && from == orders.StatusShipped {
		at := trig.At
		if at.IsZero() {
			at = time.Now().UTC()
		}
		p.DeliveredAt = &at
	}

	if err := m.store.Transition(ctx, orderID, from, to, trig.Actor, trig.Reason, p); err != nil {
		// side effect ledger idempotent, jadi aman di-retry dari trigger yang sama
		return "", err
	}

	m.log.Info("order transition",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", string(trig.Actor)),
	)
	return from, nil
}
