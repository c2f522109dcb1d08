package alerts

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type Store interface {
	// Append assigns the alert id.
	Append(ctx context.Context, a *Alert) error
	// ListAll returns alerts newest first.
	ListAll(ctx context.Context) ([]Alert, error)
	// ListBySKU returns the alerts of one sku in insertion order.
	ListBySKU(ctx context.Context, sku string) ([]Alert, error)
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Append(ctx context.Context, a *Alert) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO low_stock_alerts(sku, available, threshold, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, a.SKU, a.Available, a.Threshold, a.Timestamp).Scan(&a.ID)
	return errors.Wrap(err, "insert alert")
}

func (r *Repo) ListAll(ctx context.Context) ([]Alert, error) {
	return r.query(ctx, `SELECT id, sku, available, threshold, created_at
	                     FROM low_stock_alerts ORDER BY created_at DESC, id DESC`)
}

func (r *Repo) ListBySKU(ctx context.Context, sku string) ([]Alert, error) {
	return r.query(ctx, `SELECT id, sku, available, threshold, created_at
	                     FROM low_stock_alerts WHERE sku=$1 ORDER BY id`, sku)
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM low_stock_alerts`).Scan(&n)
	return n, errors.Wrap(err, "count alerts")
}

func (r *Repo) DeleteAll(ctx context.Context) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM low_stock_alerts`)
	return errors.Wrap(err, "delete alerts")
}

func (r *Repo) query(ctx context.Context, sql string, args ...any) ([]Alert, error) {
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query alerts")
	}
	defer rows.Close()

	out := []Alert{}
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.SKU, &a.Available, &a.Threshold, &a.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan alert")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type MemoryStore struct {
	mu     sync.RWMutex
	alerts []Alert
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, a *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	s.alerts = append(s.alerts, *a)
	return nil
}

// ListAll relies on insertion order matching timestamp order.
func (s *MemoryStore) ListAll(_ context.Context) ([]Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Alert, 0, len(s.alerts))
	for i := len(s.alerts) - 1; i >= 0; i-- {
		out = append(out, s.alerts[i])
	}
	return out, nil
}

func (s *MemoryStore) ListBySKU(_ context.Context, sku string) ([]Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Alert{}
	for _, a := range s.alerts {
		if a.SKU == sku {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.alerts)), nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = nil
	return nil
}
