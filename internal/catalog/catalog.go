// Package catalog is the read-only product lookup used when orders are created.
package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	SKU   string          `json:"sku"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	var (
		p     Product
		price string
	)
	err := r.DB.QueryRow(ctx, `SELECT sku, name, price::text FROM products WHERE sku=$1`, sku).
		Scan(&p.SKU, &p.Name, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrProductNotFound, "sku %s", sku)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select product")
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, errors.Wrap(err, "parse price")
	}
	return &p, nil
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT sku, name, price::text FROM products ORDER BY sku`)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var (
			p     Product
			price string
		)
		if err := rows.Scan(&p.SKU, &p.Name, &price); err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrap(err, "parse price")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Memory is an in-process catalog for tests and embedded runs.
type Memory struct {
	mu       sync.RWMutex
	products map[string]Product
}

func NewMemory(products ...Product) *Memory {
	m := &Memory{products: make(map[string]Product)}
	for _, p := range products {
		m.products[p.SKU] = p
	}
	return m
}

func (m *Memory) Put(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.SKU] = p
}

func (m *Memory) GetBySKU(_ context.Context, sku string) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[sku]
	if !ok {
		return nil, errors.Wrapf(ErrProductNotFound, "sku %s", sku)
	}
	return &p, nil
}

func (m *Memory) List(_ context.Context) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}
