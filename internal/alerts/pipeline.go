package alerts

import (
	"context"
	"time"

	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Pipeline runs when a mutation leaves an item at or below its threshold.
type Pipeline struct {
	Store       Store
	Log         EventLog
	Publisher   kafkax.Publisher // optional
	Metrics     *metrics.Metrics
	Logger      *log.Entry
	ServiceName string
	Now         func() time.Time
}

// Trigger persists the alert first and then appends to the event log; both
// happen on every call.
func (p *Pipeline) Trigger(ctx context.Context, sku string, available, threshold int) error {
	now := time.Now().UTC()
	if p.Now != nil {
		now = p.Now()
	}

	a := &Alert{SKU: sku, Available: available, Threshold: threshold, Timestamp: now}
	if err := p.Store.Append(ctx, a); err != nil {
		return errors.Wrapf(err, "store low-stock alert for %s", sku)
	}

	ev := Event{SKU: sku, Available: available, Threshold: threshold, Timestamp: now}
	p.Log.Append(ev)

	if p.Logger != nil {
		p.Logger.WithFields(log.Fields{
			"sku":       sku,
			"available": available,
			"threshold": threshold,
			"timestamp": now,
		}).Warn("low stock alert")
	}
	p.Metrics.LowStockAlert()

	if p.Publisher != nil {
		kafkax.PublishEnvelope(p.Publisher, kafkax.NewEnvelope(EventLowStockDetected, p.ServiceName, sku, "", ev))
	}
	return nil
}
