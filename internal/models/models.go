package models

import "time"

// Product is the locally cached view of a product row.
type Product struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Stock  int     `json:"stock"`
	Price  float64 `json:"price"`
	Cost   float64 `json:"cost"`
	Status string  `json:"status"`
}

// Customer mirrors the remote customers row including loyalty aggregates.
type Customer struct {
	ID         int64     `json:"id"`
	Phone      string    `json:"phone"`
	Name       string    `json:"name"`
	Points     int       `json:"points"`
	TotalSpent float64   `json:"total_spent"`
	LastVisit  time.Time `json:"last_visit"`
}

// LedgerEntry is one append-only loyalty point delta. The customer's
// aggregate balance is derivable by summing deltas.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	CustomerID  int64     `json:"customer_id"`
	Delta       int       `json:"delta"`
	Reason      string    `json:"reason"`
	Description string    `json:"description"`
	SaleRef     string    `json:"sale_ref"`
	CreatedAt   time.Time `json:"created_at"`
}

// SyncStatus is the aggregate state the UI subscribes to. It is mutated
// only by the network monitor and the sync engine.
type SyncStatus struct {
	Online      bool `json:"is_online"`
	Syncing     bool `json:"is_syncing"`
	QueueLength int  `json:"queue_length"`
}
