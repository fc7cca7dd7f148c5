// Package store holds checkout and sale records for the ledger.
//
// Two backends implement Store:
//   - Memory: plain maps guarded by a mutex. The default; state lives only as
//     long as the process.
//   - Bolt: a BoltDB file with one bucket per record kind. Useful when the
//     operator wants to inspect state with bolt tooling, but no durability
//     contract is attached to it.
//
// Store implementations do not enforce the checkout lifecycle. That is the
// ledger's job; the store only guarantees that each call is atomic.
package store

import (
	"errors"

	"github.com/arkantrust/vending-checkout/models"
)

// ErrNotFound is returned when a requested checkout does not exist.
var ErrNotFound = errors.New("checkout not found")

// Store persists checkouts and the append-only sales log.
type Store interface {
	// GetCheckout returns ErrNotFound when the id is unknown.
	GetCheckout(id string) (*models.Checkout, error)

	// PutCheckout inserts or replaces a checkout.
	PutCheckout(c *models.Checkout) error

	// ListCheckouts returns every checkout in no particular order.
	ListCheckouts() ([]models.Checkout, error)

	// CommitConsumption writes the updated checkout and appends the sale as
	// one atomic step. Either both land or neither does.
	CommitConsumption(c *models.Checkout, s *models.Sale) error

	// ListSales returns the sales log in append order.
	ListSales() ([]models.Sale, error)

	Close() error
}
