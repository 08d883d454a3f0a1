// Package notifier meneruskan event order.status.changed ke notification
// service eksternal (fan-out sisi konsumen; lihat dispatch utk sisi produsen).
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-order-engine.git/internal/kafka"
	"github.com/ariefcatur/go-order-engine.git/internal/orders"
	"github.com/ariefcatur/go-order-engine.git/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	Client      *http.Client
	TargetURL   string
	ServiceName string
	Log         *zap.Logger
}

// HandleStatusChanged: dipasang sebagai handler consumer. Return nil hanya
// kalau event terproses (atau duplikat) supaya offset boleh commit.
func (s *Service) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderStatusChanged {
		return nil // ignore
	}

	// dedup via redis (pakai event_id)
	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.StatusChangedPayload](env.Payload)
	if err != nil {
		return err
	}

	body := kafkax.MustMarshal(map[string]any{
		"order_id": p.OrderID,
		"from":     p.From,
		"to":       p.To,
		"at":       p.At,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.TargetURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification target %s: status %d", s.TargetURL, resp.StatusCode)
	}

	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	s.Log.Info("notification forwarded",
		zap.String("order_id", p.OrderID),
		zap.String("to", string(p.To)),
	)
	return nil
}
