// Package alerts records low-stock conditions raised by inventory mutations.
//
// Every qualifying mutation produces a new alert, including mutations that
// leave an item that was already low still low. There is no debounce.
package alerts

import "time"

const (
	TopicLowStock         = "inventory.low_stock"
	EventLowStockDetected = "LowStockDetected"
)

// Alert is the durable, append-only record.
type Alert struct {
	ID        int64     `json:"id"`
	SKU       string    `json:"sku"`
	Available int       `json:"available_quantity"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is the entry appended to the observable event log and the payload of
// the published LowStockDetected message.
type Event struct {
	SKU       string    `json:"sku"`
	Available int       `json:"available_quantity"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}
