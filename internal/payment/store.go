package payment

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
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	// LatestByOrder returns the most recent payment recorded for orderID.
	LatestByOrder(ctx context.Context, orderID string) (*Payment, error)
	List(ctx context.Context) ([]Payment, error)
}

type Repo struct{ DB *pgxpool.Pool }

const selectPayment = `SELECT id::text, order_id, amount::text, method, status, created_at, updated_at FROM payments`

func (r *Repo) Create(ctx context.Context, p *Payment) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO payments(id, order_id, amount, method, status, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)`,
		p.ID, p.OrderID, p.Amount.String(), p.Method, string(p.Status), p.CreatedAt, p.UpdatedAt)
	return errors.Wrap(err, "insert payment")
}

func (r *Repo) Get(ctx context.Context, id string) (*Payment, error) {
	return r.one(ctx, selectPayment+` WHERE id::text=$1`, id)
}

func (r *Repo) LatestByOrder(ctx context.Context, orderID string) (*Payment, error) {
	return r.one(ctx, selectPayment+` WHERE order_id=$1 ORDER BY created_at DESC LIMIT 1`, orderID)
}

func (r *Repo) List(ctx context.Context) ([]Payment, error) {
	rows, err := r.DB.Query(ctx, selectPayment+` ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "query payments")
	}
	defer rows.Close()

	out := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repo) one(ctx context.Context, sql string, arg string) (*Payment, error) {
	p, err := scanPayment(r.DB.QueryRow(ctx, sql, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrPaymentNotFound, "%s", arg)
	}
	return p, err
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p      Payment
		amount string
		status string
	)
	if err := row.Scan(&p.ID, &p.OrderID, &amount, &p.Method, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scan payment")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, errors.Wrap(err, "parse amount")
	}
	p.Amount = d
	p.Status = Status(status)
	return &p, nil
}

type MemoryStore struct {
	mu       sync.RWMutex
	payments map[string]*Payment
	order    []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payments: make(map[string]*Payment)}
}

func (s *MemoryStore) Create(_ context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.payments[p.ID] = &cp
	s.order = append(s.order, p.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, errors.Wrapf(ErrPaymentNotFound, "%s", id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) LatestByOrder(_ context.Context, orderID string) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		if p := s.payments[s.order[i]]; p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errors.Wrapf(ErrPaymentNotFound, "order %s", orderID)
}

func (s *MemoryStore) List(_ context.Context) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Payment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.payments[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
