package alerts

import (
	"context"
	"fmt"

	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Notifier consumes LowStockDetected events and reports each one once.
type Notifier struct {
	Redis       *redis.Client
	Logger      *log.Entry
	ServiceName string
	// Notify receives every deduplicated event; nil only logs.
	Notify func(ctx context.Context, e Event) error
}

// HandleLowStock is installed as the consumer handler.
func (n *Notifier) HandleLowStock(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		return err
	}
	if env.EventType != EventLowStockDetected {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, n.ServiceName, env.EventID)
	first, err := redisx.MarkOnce(ctx, n.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	ev, err := kafkax.UnwrapPayload[Event](env.Payload)
	if err != nil {
		return err
	}

	n.Logger.WithFields(log.Fields{
		"event_id":  env.EventID,
		"producer":  env.Producer,
		"sku":       ev.SKU,
		"available": ev.Available,
		"threshold": ev.Threshold,
	}).Warn("restock needed")

	if n.Notify != nil {
		if err := n.Notify(ctx, ev); err != nil {
			// let the message be redelivered
			_ = n.Redis.Del(ctx, dkey).Err()
			return err
		}
	}
	return nil
}
