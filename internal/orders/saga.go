package orders

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/catalog"
	"github.com/ariefcatur/go-order-saga/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/metrics"
	"github.com/ariefcatur/go-order-saga/internal/payment"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type ProductCatalog interface {
	GetBySKU(ctx context.Context, sku string) (*catalog.Product, error)
}

// PaymentGateway is satisfied by the in-process payment.Engine and by the
// HTTP payment client alike.
type PaymentGateway interface {
	Process(ctx context.Context, orderID string, amount decimal.Decimal, method string) (*payment.Payment, error)
}

type StockLedger interface {
	Deduct(ctx context.Context, sku string, qty int) (*inventory.Item, error)
}

// Service owns the order lifecycle: create, then pay, then settle into one
// resolved state. It keeps no per-order state in memory; the stored status is
// the only guard between requests.
type Service struct {
	Store       Store
	Catalog     ProductCatalog
	Payments    PaymentGateway
	Inventory   StockLedger
	Publisher   kafkax.Publisher // optional, receives OrderFinalized
	Metrics     *metrics.Metrics
	Logger      *log.Entry
	ServiceName string
	Now         func() time.Time
}

// CreateOrder prices every line against the catalog and stores the order as
// CREATED. Stock is not checked here.
func (s *Service) CreateOrder(ctx context.Context, reqs []ItemRequest) (*Order, error) {
	if len(reqs) == 0 {
		return nil, errors.Wrap(ErrInvalidOrder, "no items")
	}

	items := make([]Item, 0, len(reqs))
	for _, r := range reqs {
		sku := strings.TrimSpace(r.SKU)
		if sku == "" {
			return nil, errors.Wrap(ErrInvalidOrder, "missing sku")
		}
		if r.Quantity < 1 {
			return nil, errors.Wrapf(ErrInvalidOrder, "quantity for %s must be at least 1", sku)
		}

		p, err := s.Catalog.GetBySKU(ctx, sku)
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, errors.Wrapf(ErrProductNotFound, "sku %s", sku)
		}
		if err != nil {
			return nil, &OrchestrationError{Op: "lookup product " + sku, Err: err}
		}

		price := p.Price
		if r.Price != nil {
			price = *r.Price
		}
		if price.IsNegative() {
			return nil, errors.Wrapf(ErrInvalidOrder, "negative price for %s", sku)
		}
		items = append(items, Item{SKU: sku, Quantity: r.Quantity, Price: price})
	}

	now := s.now()
	o := &Order{
		ID:        uuid.NewString(),
		Items:     items,
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "store order")
	}

	s.logger().WithFields(log.Fields{
		"order_id": o.ID,
		"items":    len(items),
		"total":    o.Total().StringFixed(2),
	}).Info("order created")
	return o, nil
}

// PayOrder charges the order total and, when the charge succeeds, deducts
// every line from inventory. The resolved state is written once at the end:
//
//   - payment FAILED: stays CREATED with ReasonPaymentFailed, inventory untouched
//   - all deductions succeed: PAID
//   - any line lacks stock or is unknown: CANCELLED with ReasonInsufficientInventory
//
// Lines deducted before a failing line are not restored. Any other
// collaborator failure returns an *OrchestrationError and writes nothing.
//
// Each call creates a new payment record. Two concurrent calls on the same
// CREATED order can both pass the status check and both charge.
func (s *Service) PayOrder(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusCreated {
		return nil, errors.Wrapf(ErrInvalidState, "order %s is %s", orderID, o.Status)
	}

	l := s.logger().WithField("order_id", o.ID)

	p, err := s.Payments.Process(ctx, o.ID, o.Total(), PaymentMethod)
	if err != nil {
		return nil, s.orchestrationFailure(l, "charge payment", o.ID, err)
	}
	o.PaymentID = p.ID

	next, reason := StatusCreated, ReasonPaymentFailed
	if p.Status == payment.StatusSuccess {
		switch err := s.deductAll(ctx, o); {
		case err == nil:
			next, reason = StatusPaid, ""
		case isStockOutcome(err):
			l.WithError(err).Warn("inventory deduction failed, cancelling order")
			next, reason = StatusCancelled, ReasonInsufficientInventory
		default:
			return nil, s.orchestrationFailure(l, "deduct inventory", o.ID, err)
		}
	}

	if !CanTransition(o.Status, next) {
		return nil, errors.Wrapf(ErrInvalidState, "order %s: %s -> %s", o.ID, o.Status, next)
	}
	o.Status = next
	o.CancellationReason = reason
	o.UpdatedAt = s.now()

	if err := s.Store.Save(ctx, o); err != nil {
		return nil, errors.Wrap(err, "save order")
	}

	l.WithFields(log.Fields{
		"payment_id":     p.ID,
		"payment_status": p.Status,
		"status":         o.Status,
		"reason":         o.CancellationReason,
	}).Info("order settled")
	s.Metrics.SagaOutcome(outcomeLabel(o, p))
	s.publishFinalized(o)
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.Store.Get(ctx, orderID)
}

func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	return s.Store.List(ctx)
}

// deductAll walks the lines in order and stops at the first failure. A
// ledger that returns the item along with an error has applied the deduction
// and only failed to alert; that line counts as deducted.
func (s *Service) deductAll(ctx context.Context, o *Order) error {
	for _, line := range o.Items {
		it, err := s.Inventory.Deduct(ctx, line.SKU, line.Quantity)
		if err != nil && it != nil {
			s.logger().WithError(err).WithField("sku", line.SKU).Warn("deducted but low-stock alert failed")
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "deduct %d of %s", line.Quantity, line.SKU)
		}
	}
	return nil
}

func isStockOutcome(err error) bool {
	return errors.Is(err, inventory.ErrInsufficientStock) || errors.Is(err, inventory.ErrSkuNotFound)
}

func (s *Service) orchestrationFailure(l *log.Entry, op, orderID string, err error) error {
	l.WithError(err).WithField("op", op).Error("order orchestration failed")
	s.Metrics.SagaOutcome("ERROR")
	return &OrchestrationError{Op: op, OrderID: orderID, Err: err}
}

func outcomeLabel(o *Order, p *payment.Payment) string {
	if p.Status == payment.StatusFailed {
		return "PAYMENT_FAILED"
	}
	return string(o.Status)
}

func (s *Service) publishFinalized(o *Order) {
	if s.Publisher == nil {
		return
	}
	kafkax.PublishEnvelope(s.Publisher, kafkax.NewEnvelope(EventOrderFinalized, s.ServiceName, o.ID, "", OrderFinalizedPayload{
		OrderID:     o.ID,
		FinalStatus: o.Status,
		PaymentID:   o.PaymentID,
		Reason:      o.CancellationReason,
		TotalAmount: o.Total().StringFixed(2),
	}))
}

func (s *Service) logger() *log.Entry {
	if s.Logger != nil {
		return s.Logger
	}
	return log.NewEntry(log.StandardLogger())
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
