package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-engine.git/internal/orders"
)

type fakeExpired struct {
	ids  []string
	fail error
}

func (f *fakeExpired) ListExpiredPlaced(context.Context, time.Time, int) ([]string, error) {
	return f.ids, f.fail
}

func TestSweepCancelsExpiredPlaced(t *testing.T) {
	t.Parallel()

	store := newFakeStore(placed("o1"))
	ledger := &fakeLedger{}
	notify := &fakeNotifier{}
	m := NewMachine(store, ledger, notify, zap.NewNop())

	w := &TimeoutWatcher{
		Store:    &fakeExpired{ids: []string{"o1"}},
		Machine:  m,
		Timeout:  30 * time.Minute,
		Interval: time.Minute,
		Log:      zap.NewNop(),
	}
	w.sweep(context.Background())

	o, _ := store.GetOrder(context.Background(), "o1")
	require.Equal(t, orders.StatusCancelled, o.Status)
	require.Equal(t, []string{"o1"}, ledger.releases) // reservasi ikut balik
	require.Equal(t, 1, notify.count())

	// history mencatat actor system + alasan timeout
	require.Equal(t, orders.ActorSystem, store.history[0].Actor)
	require.Equal(t, "payment timeout", store.history[0].Reason)
}

func TestSweepSkipsOrderThatGotPaid(t *testing.T) {
	t.Parallel()

	// scan sempat lihat o1 sebagai PLACED, tapi payment masuk duluan
	o := placed("o1")
	o.Status = orders.StatusPaid
	store := newFakeStore(o)
	ledger := &fakeLedger{}
	m := NewMachine(store, ledger, &fakeNotifier{}, zap.NewNop())

	w := &TimeoutWatcher{
		Store:   &fakeExpired{ids: []string{"o1"}},
		Machine: m,
		Timeout: 30 * time.Minute,
		Log:     zap.NewNop(),
	}
	w.sweep(context.Background())

	got, _ := store.GetOrder(context.Background(), "o1")
	require.Equal(t, orders.StatusPaid, got.Status)
	require.Empty(t, ledger.releases)
	require.Zero(t, store.historyLen())
}

func TestSweepListFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore(placed("o1"))
	m := NewMachine(store, &fakeLedger{}, &fakeNotifier{}, zap.NewNop())

	w := &TimeoutWatcher{
		Store:   &fakeExpired{fail: errors.New("pg down")},
		Machine: m,
		Timeout: 30 * time.Minute,
		Log:     zap.NewNop(),
	}
	w.sweep(context.Background()) // cuma log, tidak panic

	o, _ := store.GetOrder(context.Background(), "o1")
	require.Equal(t, orders.StatusPlaced, o.Status)
}
