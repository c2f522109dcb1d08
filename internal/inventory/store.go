package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type Store interface {
	Get(ctx context.Context, sku string) (*Item, error)
	Create(ctx context.Context, it *Item) error
	// Patch changes only the non-nil fields.
	Patch(ctx context.Context, sku string, available, threshold *int, now time.Time) (*Item, error)
	// Deduct checks and subtracts in one step; it never leaves available
	// below zero.
	Deduct(ctx context.Context, sku string, qty int, now time.Time) (*Item, error)
	ListLowStock(ctx context.Context) ([]Item, error)
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Get(ctx context.Context, sku string) (*Item, error) {
	var it Item
	err := r.DB.QueryRow(ctx, `SELECT sku, available, threshold, updated_at
	                           FROM inventory_items WHERE sku=$1`, sku).
		Scan(&it.SKU, &it.Available, &it.Threshold, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrSkuNotFound, "sku %s", sku)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select inventory item")
	}
	return &it, nil
}

func (r *Repo) Create(ctx context.Context, it *Item) error {
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO inventory_items(sku, available, threshold, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sku) DO NOTHING`, it.SKU, it.Available, it.Threshold, it.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert inventory item")
	}
	if ct.RowsAffected() == 0 {
		return errors.Wrapf(ErrDuplicateSku, "sku %s", it.SKU)
	}
	return nil
}

func (r *Repo) Patch(ctx context.Context, sku string, available, threshold *int, now time.Time) (*Item, error) {
	var it Item
	err := r.DB.QueryRow(ctx, `
		UPDATE inventory_items
		SET available = COALESCE($2, available),
		    threshold = COALESCE($3, threshold),
		    updated_at = $4
		WHERE sku = $1
		RETURNING sku, available, threshold, updated_at`, sku, available, threshold, now).
		Scan(&it.SKU, &it.Available, &it.Threshold, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrSkuNotFound, "sku %s", sku)
	}
	if err != nil {
		return nil, errors.Wrap(err, "update inventory item")
	}
	return &it, nil
}

// Deduct uses a conditional update so concurrent deductions of the same sku
// cannot oversell.
func (r *Repo) Deduct(ctx context.Context, sku string, qty int, now time.Time) (*Item, error) {
	var it Item
	err := r.DB.QueryRow(ctx, `
		UPDATE inventory_items
		SET available = available - $2, updated_at = $3
		WHERE sku = $1 AND available >= $2
		RETURNING sku, available, threshold, updated_at`, sku, qty, now).
		Scan(&it.SKU, &it.Available, &it.Threshold, &it.UpdatedAt)
	if err == nil {
		return &it, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(err, "deduct inventory")
	}

	cur, err := r.Get(ctx, sku)
	if err != nil {
		return nil, err
	}
	return nil, errors.Wrapf(ErrInsufficientStock, "sku %s: available %d, requested %d", sku, cur.Available, qty)
}

func (r *Repo) ListLowStock(ctx context.Context) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `SELECT sku, available, threshold, updated_at
	                              FROM inventory_items WHERE available <= threshold`)
	if err != nil {
		return nil, errors.Wrap(err, "query low stock")
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.SKU, &it.Available, &it.Threshold, &it.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan inventory item")
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Item)}
}

func (s *MemoryStore) Get(_ context.Context, sku string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[sku]
	if !ok {
		return nil, errors.Wrapf(ErrSkuNotFound, "sku %s", sku)
	}
	cp := *it
	return &cp, nil
}

func (s *MemoryStore) Create(_ context.Context, it *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[it.SKU]; ok {
		return errors.Wrapf(ErrDuplicateSku, "sku %s", it.SKU)
	}
	cp := *it
	s.items[it.SKU] = &cp
	return nil
}

func (s *MemoryStore) Patch(_ context.Context, sku string, available, threshold *int, now time.Time) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[sku]
	if !ok {
		return nil, errors.Wrapf(ErrSkuNotFound, "sku %s", sku)
	}
	if available != nil {
		it.Available = *available
	}
	if threshold != nil {
		it.Threshold = *threshold
	}
	it.UpdatedAt = now
	cp := *it
	return &cp, nil
}

func (s *MemoryStore) Deduct(_ context.Context, sku string, qty int, now time.Time) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[sku]
	if !ok {
		return nil, errors.Wrapf(ErrSkuNotFound, "sku %s", sku)
	}
	if it.Available < qty {
		return nil, errors.Wrapf(ErrInsufficientStock, "sku %s: available %d, requested %d", sku, it.Available, qty)
	}
	it.Available -= qty
	it.UpdatedAt = now
	cp := *it
	return &cp, nil
}

func (s *MemoryStore) ListLowStock(_ context.Context) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Item{}
	for _, it := range s.items {
		if it.IsLowStock() {
			out = append(out, *it)
		}
	}
	return out, nil
}
