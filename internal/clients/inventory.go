package clients

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ariefcatur/go-order-saga/internal/inventory"
	"github.com/pkg/errors"
)

// InventoryClient calls POST /inventory/{sku}/deduct on the inventory service.
type InventoryClient struct{ caller }

func NewInventoryClient(baseURL string, opts Options) *InventoryClient {
	return &InventoryClient{newCaller("inventory", baseURL, opts)}
}

type DeductRequest struct {
	Quantity int `json:"quantity"`
}

// Deduct maps 404 and 409 back to the ledger's sentinel errors so the saga
// can tell missing stock from an unreachable service.
func (c *InventoryClient) Deduct(ctx context.Context, sku string, qty int) (*inventory.Item, error) {
	var it inventory.Item
	err := c.post(ctx, "/inventory/"+url.PathEscape(sku)+"/deduct", DeductRequest{Quantity: qty}, &it)

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusNotFound:
			return nil, errors.Wrap(inventory.ErrSkuNotFound, se.Message)
		case http.StatusConflict:
			return nil, errors.Wrap(inventory.ErrInsufficientStock, se.Message)
		case http.StatusBadRequest:
			return nil, errors.Wrap(inventory.ErrInvalidInput, se.Message)
		}
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}
