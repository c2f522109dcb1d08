package catalog

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory(
		Product{SKU: "SKU-B", Name: "Bolt", Price: decimal.RequireFromString("0.25")},
		Product{SKU: "SKU-A", Name: "Anvil", Price: decimal.RequireFromString("10.00")},
	)
	ctx := context.Background()

	p, err := m.GetBySKU(ctx, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, "Anvil", p.Name)

	_, err = m.GetBySKU(ctx, "SKU-Z")
	assert.True(t, errors.Is(err, ErrProductNotFound))

	m.Put(Product{SKU: "SKU-C", Name: "Cable", Price: decimal.NewFromInt(3)})
	all, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"SKU-A", "SKU-B", "SKU-C"}, []string{all[0].SKU, all[1].SKU, all[2].SKU})
}
