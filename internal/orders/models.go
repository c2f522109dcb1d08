package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// PaymentMethod is the method every saga charge is made with.
	PaymentMethod = "CREDIT_CARD"

	ReasonPaymentFailed         = "Payment failed"
	ReasonInsufficientInventory = "Insufficient inventory to fulfill order"
)

type Item struct {
	SKU      string          `json:"sku"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemRequest is one requested line; a nil Price means "use the catalog price".
type ItemRequest struct {
	SKU      string           `json:"sku"`
	Quantity int              `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

type Order struct {
	ID                 string
	Items              []Item
	Status             Status
	PaymentID          string // empty until a payment was attempted
	CancellationReason string // set with CANCELLED, or with CREATED after a failed payment
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Total is always derived from the line items and never stored.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

func (o *Order) clone() *Order {
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	return &cp
}

type orderJSON struct {
	ID                 string    `json:"id"`
	Items              []Item    `json:"items"`
	Status             Status    `json:"status"`
	TotalAmount        string    `json:"total_amount"`
	PaymentID          *string   `json:"payment_id"`
	CancellationReason *string   `json:"cancellation_reason"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	out := orderJSON{
		ID:          o.ID,
		Items:       o.Items,
		Status:      o.Status,
		TotalAmount: o.Total().StringFixed(2),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if out.Items == nil {
		out.Items = []Item{}
	}
	if o.PaymentID != "" {
		out.PaymentID = &o.PaymentID
	}
	if o.CancellationReason != "" {
		out.CancellationReason = &o.CancellationReason
	}
	return json.Marshal(out)
}
