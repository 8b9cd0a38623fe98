// Package store defines the music store data access surface used by the
// tool layer: catalog lookups, read-only reporting queries and order
// creation. Implementations live in sub-packages (sqlite) or wrap another
// MusicStore (CachedCatalog).
package store

import (
	"context"
	"errors"
)

// Track is a single catalog row.
type Track struct {
	ID   int    `json:"track_id"`
	Name string `json:"name"`
}

// LineItem is one cart entry handed to CreateOrder.
type LineItem struct {
	TrackID   int     `json:"track_id"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// Order is the persisted outcome of a successful CreateOrder call.
type Order struct {
	InvoiceID  int64      `json:"invoice_id"`
	CustomerID int        `json:"customer_id"`
	Total      float64    `json:"total"`
	Lines      []LineItem `json:"lines"`
}

// ResultSet carries the rows produced by a read-only query in column order.
// Values are JSON-friendly (string, int64, float64, bool, nil).
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Validation sentinels returned by CreateOrder. Callers match with errors.Is.
var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrInvalidUnitPrice = errors.New("unit price must not be negative")
)

// MusicStore is the read/write surface the tools depend on.
//
// Contract:
//   - TracksByGenre is idempotent and returns an empty slice (not an error)
//     for unknown genres; results are ordered by track ID and capped.
//   - Query executes exactly the statement it is given; callers are
//     responsible for restricting it to read-only SQL.
//   - CreateOrder validates its inputs, computes the total as the sum of
//     unit price times quantity, and persists the invoice plus its line
//     items atomically: either all rows land or none do.
type MusicStore interface {
	TracksByGenre(ctx context.Context, genre string) ([]Track, error)
	Query(ctx context.Context, statement string) (*ResultSet, error)
	CreateOrder(ctx context.Context, customerID int, cart []LineItem) (*Order, error)
}

// ValidateCart checks cart entries against the CreateOrder preconditions
// without touching the database.
func ValidateCart(cart []LineItem) error {
	if len(cart) == 0 {
		return ErrEmptyCart
	}

	for _, line := range cart {
		if line.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if line.UnitPrice < 0 {
			return ErrInvalidUnitPrice
		}
	}

	return nil
}

// CartTotal returns the order total for the given cart.
func CartTotal(cart []LineItem) float64 {
	total := 0.0
	for _, line := range cart {
		total += line.UnitPrice * float64(line.Quantity)
	}
	return total
}
