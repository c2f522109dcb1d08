package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Engine evaluates a payment synchronously and records it. It never leaves a
// payment PENDING.
type Engine struct {
	Store  Store
	Logger *log.Entry
	Now    func() time.Time
}

// Process records a new payment on every call, even for an order that was
// already charged.
func (e *Engine) Process(ctx context.Context, orderID string, amount decimal.Decimal, method string) (*Payment, error) {
	if amount.IsNegative() {
		return nil, errors.Wrapf(ErrInvalidAmount, "%s", amount)
	}

	now := e.now()
	p := &Payment{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Amount:    amount,
		Method:    method,
		Status:    Decide(amount),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.Store.Create(ctx, p); err != nil {
		return nil, err
	}
	if e.Logger != nil {
		e.Logger.WithFields(log.Fields{
			"payment_id": p.ID,
			"order_id":   orderID,
			"amount":     amount.StringFixed(2),
			"status":     p.Status,
		}).Info("payment processed")
	}
	return p, nil
}

func (e *Engine) Get(ctx context.Context, id string) (*Payment, error) {
	return e.Store.Get(ctx, id)
}

func (e *Engine) ByOrder(ctx context.Context, orderID string) (*Payment, error) {
	return e.Store.LatestByOrder(ctx, orderID)
}

func (e *Engine) List(ctx context.Context) ([]Payment, error) {
	return e.Store.List(ctx)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}
