package orders

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// Save writes status, payment reference, reason and updated_at.
	Save(ctx context.Context, o *Order) error
	List(ctx context.Context) ([]Order, error)
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders(id, status, payment_id, cancellation_reason, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6)`,
		o.ID, string(o.Status), o.PaymentID, o.CancellationReason, o.CreatedAt, o.UpdatedAt); err != nil {
		return errors.Wrap(err, "insert order")
	}
	for i, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, position, sku, qty, price)
			VALUES ($1, $2, $3, $4, $5::numeric)`,
			o.ID, i, it.SKU, it.Quantity, it.Price.String()); err != nil {
			return errors.Wrap(err, "insert order item")
		}
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	var o Order
	var status string
	err := r.DB.QueryRow(ctx, `
		SELECT id::text, status, COALESCE(payment_id, ''), COALESCE(cancellation_reason, ''), created_at, updated_at
		FROM orders WHERE id::text=$1`, id).
		Scan(&o.ID, &status, &o.PaymentID, &o.CancellationReason, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrOrderNotFound, "%s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	o.Status = Status(status)

	items, err := r.items(ctx, `WHERE order_id=$1`, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

func (r *Repo) Save(ctx context.Context, o *Order) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET status=$2, payment_id=NULLIF($3, ''), cancellation_reason=NULLIF($4, ''), updated_at=$5
		WHERE id=$1`,
		o.ID, string(o.Status), o.PaymentID, o.CancellationReason, o.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "update order")
	}
	if ct.RowsAffected() != 1 {
		return errors.Wrapf(ErrOrderNotFound, "%s", o.ID)
	}
	return nil
}

func (r *Repo) List(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id::text, status, COALESCE(payment_id, ''), COALESCE(cancellation_reason, ''), created_at, updated_at
		FROM orders ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		var o Order
		var status string
		if err := rows.Scan(&o.ID, &status, &o.PaymentID, &o.CancellationReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		o.Status = Status(status)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := r.items(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

// items loads line items grouped by order id, in line order.
func (r *Repo) items(ctx context.Context, where string, args ...any) (map[string][]Item, error) {
	rows, err := r.DB.Query(ctx, `SELECT order_id::text, sku, qty, price::text FROM order_items `+where+` ORDER BY order_id, position`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	defer rows.Close()

	out := map[string][]Item{}
	for rows.Next() {
		var (
			orderID, price string
			it             Item
		)
		if err := rows.Scan(&orderID, &it.SKU, &it.Quantity, &price); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrap(err, "parse price")
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*Order)}
}

func (s *MemoryStore) Create(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return errors.Errorf("order %s already exists", o.ID)
	}
	s.orders[o.ID] = o.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, errors.Wrapf(ErrOrderNotFound, "%s", id)
	}
	return o.clone(), nil
}

// Save is last-writer-wins, like a plain row update.
func (s *MemoryStore) Save(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		return errors.Wrapf(ErrOrderNotFound, "%s", o.ID)
	}
	s.orders[o.ID] = o.clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o.clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
