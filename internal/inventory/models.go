package inventory

import (
	"time"

	"github.com/pkg/errors"
)

var (
	ErrSkuNotFound       = errors.New("inventory item not found")
	ErrDuplicateSku      = errors.New("inventory item already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid inventory input")
)

type Item struct {
	SKU       string    `json:"sku"`
	Available int       `json:"available"`
	Threshold int       `json:"threshold"`
	UpdatedAt time.Time `json:"last_updated"`
}

// IsLowStock is inclusive: an item sitting exactly on its threshold is low.
func (i Item) IsLowStock() bool {
	return i.Available <= i.Threshold
}
