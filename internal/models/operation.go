package models

import (
	"encoding/json"
	"time"
)

// QueuedOperation is one durable pending write. The ID is generated on the
// client and doubles as the idempotency key for composite replays, so an
// operation is applied effectively at-most-once across crash/retry cycles.
type QueuedOperation struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Resource   string    `json:"resource"`
	Payload    string    `json:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	RetryCount int       `json:"retry_count"`
	LastError  *string   `json:"last_error"`
}

// CrudPayload carries a plain table write. Update and delete require ID.
type CrudPayload struct {
	ID     int64                  `json:"id,omitempty"`
	Values map[string]interface{} `json:"values,omitempty"`
}

// RPCPayload carries arguments for a named backend function call.
type RPCPayload struct {
	Args map[string]interface{} `json:"args"`
}

// CartLine is one ordered sale line with the price and stock snapshot taken
// at the moment of sale, not at sync time.
type CartLine struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	StockAtSale int     `json:"stock_at_sale"`
}

// SalePayload is the composite sale operation payload. SoldAt is the client
// timestamp at the moment the cashier completed the sale; it stays the
// authoritative sale time regardless of when the queue drains.
type SalePayload struct {
	Lines         []CartLine `json:"lines"`
	PaymentMethod string     `json:"payment_method"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	Total         float64    `json:"total"`
	SoldAt        time.Time  `json:"sold_at"`
	StoreID       int64      `json:"store_id"`
	EmployeeID    int64      `json:"employee_id"`
}

// EncodePayload serializes any payload for queue storage.
func EncodePayload(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeSalePayload parses a SALE_TRANSACTION payload.
func DecodeSalePayload(raw string) (*SalePayload, error) {
	var p SalePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeCrudPayload parses an INSERT/UPDATE/DELETE payload.
func DecodeCrudPayload(raw string) (*CrudPayload, error) {
	var p CrudPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeRPCPayload parses an RPC payload.
func DecodeRPCPayload(raw string) (*RPCPayload, error) {
	var p RPCPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
