package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Alerter is notified after any mutation that leaves an item low on stock.
type Alerter interface {
	Trigger(ctx context.Context, sku string, available, threshold int) error
}

type Ledger struct {
	Store  Store
	Alerts Alerter
	Now    func() time.Time
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Available *int `json:"available"`
	Threshold *int `json:"threshold"`
}

func (l *Ledger) Get(ctx context.Context, sku string) (*Item, error) {
	return l.Store.Get(ctx, sku)
}

func (l *Ledger) Create(ctx context.Context, sku string, available, threshold int) (*Item, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, errors.Wrap(ErrInvalidInput, "sku is required")
	}
	if available < 0 || threshold < 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "sku %s", sku)
	}

	it := &Item{SKU: sku, Available: available, Threshold: threshold, UpdatedAt: l.now()}
	if err := l.Store.Create(ctx, it); err != nil {
		return nil, err
	}
	return it, l.afterMutation(ctx, it)
}

func (l *Ledger) Update(ctx context.Context, sku string, in UpdateInput) (*Item, error) {
	if (in.Available != nil && *in.Available < 0) || (in.Threshold != nil && *in.Threshold < 0) {
		return nil, errors.Wrapf(ErrInvalidInput, "sku %s", sku)
	}
	it, err := l.Store.Patch(ctx, sku, in.Available, in.Threshold, l.now())
	if err != nil {
		return nil, err
	}
	return it, l.afterMutation(ctx, it)
}

// Deduct subtracts qty from the available stock. Asking for exactly the
// available quantity succeeds and leaves zero; asking for more fails with
// ErrInsufficientStock and leaves the item untouched.
func (l *Ledger) Deduct(ctx context.Context, sku string, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "deduct %d from %s", qty, sku)
	}
	it, err := l.Store.Deduct(ctx, sku, qty, l.now())
	if err != nil {
		return nil, err
	}
	return it, l.afterMutation(ctx, it)
}

func (l *Ledger) ListLowStock(ctx context.Context) ([]Item, error) {
	return l.Store.ListLowStock(ctx)
}

// afterMutation alerts on every mutation that leaves the item low, not only
// on the crossing edge. A failed alert does not undo the mutation.
func (l *Ledger) afterMutation(ctx context.Context, it *Item) error {
	if l.Alerts == nil || !it.IsLowStock() {
		return nil
	}
	return l.Alerts.Trigger(ctx, it.SKU, it.Available, it.Threshold)
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}
