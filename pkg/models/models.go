package models

import (
	"encoding/json"
	"strconv"
)

// PurchaseStatus defines the possible terminal states of a purchase.
// The values match what the settlement-event feed reports.
type PurchaseStatus string

const (
	SETTLED PurchaseStatus = "ok"
	FAILED  PurchaseStatus = "failed"
	UNKNOWN PurchaseStatus = "unknown"
)

// TransferAttempt is the record of one on-chain payment attempt.
// It is created per required payment and mutated only by the wallet
// settlement client while it retries.
type TransferAttempt struct {
	Destination string `json:"address"`
	AmountNano  int64  `json:"amount"`
	Memo        string `json:"memo,omitempty"`
	Succeeded   bool   `json:"success"`
	TxHash      string `json:"tx_hash,omitempty"`
	Error       string `json:"error,omitempty"`
	Attempts    int    `json:"attempts"`
}

// RequiredPayment is one payment obligation extracted from a checkout's
// transaction descriptor.
type RequiredPayment struct {
	Destination string `json:"address"`
	AmountNano  int64  `json:"amount"`
	Payload     string `json:"payload,omitempty"`
}

// TraceEntry records the sanitized response of one checkout step.
type TraceEntry struct {
	Step     string         `json:"step"`
	Response map[string]any `json:"response"`
}

// CheckoutResult is the outcome of one checkout attempt: the ordered step
// trace, the payments it obligates, and the purchase-request identifier.
// It is discarded once its payments are settled.
type CheckoutResult struct {
	Trace     []TraceEntry      `json:"trace"`
	Payments  []RequiredPayment `json:"payments,omitempty"`
	RequestID string            `json:"req_id,omitempty"`
}

// BatchInfo locates a sub-outcome within a batched purchase.
type BatchInfo struct {
	Number   int `json:"batch_number"`
	Total    int `json:"total_batches"`
	Quantity int `json:"batch_quantity"`
}

// PurchaseOutcome is the durable record of what happened to a purchase
// attempt. It is always returned to the caller, success or failure.
type PurchaseOutcome struct {
	Status          PurchaseStatus     `json:"status"`
	Transfers       []*TransferAttempt `json:"transfers"`
	TotalNano       int64              `json:"total_nano"`
	TotalTon        string             `json:"total_ton"`
	TxHash          string             `json:"tx_hash,omitempty"`
	Checkouts       []*CheckoutResult  `json:"checkouts,omitempty"`
	Batches         []*PurchaseOutcome `json:"batches,omitempty"`
	BatchInfo       *BatchInfo         `json:"batch_info,omitempty"`
	TotalQuantity   int                `json:"total_quantity,omitempty"`
	SettlementEvent json.RawMessage    `json:"transaction_status,omitempty"`
}

// PurchaseJob is a queued request to buy stars on behalf of a marketplace
// buyer. ChatID may be empty when the buyer's chat could not be resolved.
type PurchaseJob struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	ChatID     string `json:"chat_id,omitempty"`
	Buyer      string `json:"buyer"`
	Quantity   int    `json:"quantity"`
	HideSender int    `json:"hide_sender"`
}

// FormatTON renders a nanoton amount in whole TON, trimming trailing zeros.
func FormatTON(nano int64) string {
	return strconv.FormatFloat(float64(nano)/1e9, 'f', -1, 64)
}
