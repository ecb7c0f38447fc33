// Package storage defines the processed-order ledger used to keep
// marketplace orders from being purchased twice.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyProcessed is returned when an order id is already present in the
// ledger.
var ErrAlreadyProcessed = errors.New("order already processed")

// ProcessedOrder is one ledger record. Records expire via the table's TTL
// attribute so the ledger does not grow without bound.
type ProcessedOrder struct {
	OrderID     string    `json:"order_id" dynamodbav:"order_id"`
	Buyer       string    `json:"buyer" dynamodbav:"buyer"`
	Quantity    int       `json:"quantity" dynamodbav:"quantity"`
	Status      string    `json:"status" dynamodbav:"status"`
	ProcessedAt time.Time `json:"processed_at" dynamodbav:"processed_at"`
	TTL         int64     `json:"ttl,omitempty" dynamodbav:"ttl"`
}

// OrderStore is the ledger of marketplace orders that have already been
// handled. MarkProcessed must be first-writer-wins: a second mark for the
// same order id fails with ErrAlreadyProcessed.
type OrderStore interface {
	IsProcessed(ctx context.Context, orderID string) (bool, error)
	MarkProcessed(ctx context.Context, order *ProcessedOrder) error
}
