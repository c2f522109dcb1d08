package payment

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrInvalidAmount   = errors.New("amount must not be negative")
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

type Payment struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

var hundred = decimal.NewFromInt(100)

// Decide is the deterministic stand-in for a payment network: the amount in
// cents, truncated toward zero, succeeds when even and fails when odd.
func Decide(amount decimal.Decimal) Status {
	cents := amount.Mul(hundred).IntPart()
	if cents%2 == 0 {
		return StatusSuccess
	}
	return StatusFailed
}
