package clients

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-order-saga/internal/payment"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PaymentClient calls POST /payments/process on the payment service.
type PaymentClient struct{ caller }

func NewPaymentClient(baseURL string, opts Options) *PaymentClient {
	return &PaymentClient{newCaller("payment", baseURL, opts)}
}

type ProcessRequest struct {
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Method  string          `json:"method"`
}

func (c *PaymentClient) Process(ctx context.Context, orderID string, amount decimal.Decimal, method string) (*payment.Payment, error) {
	var p payment.Payment
	err := c.post(ctx, "/payments/process", ProcessRequest{OrderID: orderID, Amount: amount, Method: method}, &p)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusBadRequest {
		return nil, errors.Wrap(payment.ErrInvalidAmount, se.Message)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
