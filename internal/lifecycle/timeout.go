package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-engine.git/internal/orders"
)

type expiredLister interface {
	ListExpiredPlaced(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// TimeoutWatcher: order PLACED yang tidak dibayar dalam window -> CANCELLED
// (actor system), lewat jalur transisi normal supaya reservasi ikut release.
type TimeoutWatcher struct {
	Store    expiredLister
	Machine  *Machine
	Timeout  time.Duration // payment window
	Interval time.Duration // periode scan
	Log      *zap.Logger
}

func (w *TimeoutWatcher) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(w.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				w.sweep(ctx)
			}
		}
	}()
}

func (w *TimeoutWatcher) sweep(ctx context.Context) {
	ids, err := w.Store.ListExpiredPlaced(ctx, time.Now().Add(-w.Timeout), 100)
	if err != nil {
		w.Log.Error("timeout sweep", zap.Error(err))
		return
	}
	for _, id := range ids {
		err := w.Machine.Apply(ctx, id, orders.StatusCancelled, Trigger{
			Actor:  orders.ActorSystem,
			Reason: "payment timeout",
		})
		var te *orders.TransitionError
		if errors.As(err, &te) {
			continue // keburu dibayar/di-cancel, bukan masalah
		}
		if err != nil {
			w.Log.Error("timeout cancel", zap.String("order_id", id), zap.Error(err))
		}
	}
}
