// Package store defines the persistence boundary of the invoicing
// engine. The engine depends only on these interfaces; the concrete
// storage format lives in the driver subpackages (memory, sqlite).
//
// Every implementation must preserve three facts regardless of format:
// uniqueness of invoice numbers, uniqueness of the customer match key,
// and the insertion order of line items within an invoice.
package store

import (
	"context"
	"errors"
	"fmt"

	"fakturnik/pkg/models"
)

// Common persistence errors.
var (
	// ErrNotFound is returned when a lookup misses. Search operations
	// return empty results instead.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a create would violate the
	// uniqueness of a customer identity key.
	ErrDuplicate = errors.New("duplicate record")

	// ErrConflict is returned when a write collides with existing
	// state: re-saving an invoice number with different content, or
	// losing a compare-and-swap race on the number sequence.
	ErrConflict = errors.New("conflicting write")

	// ErrReferentialIntegrity is returned when deleting a customer
	// that is still referenced by at least one saved invoice.
	ErrReferentialIntegrity = errors.New("record is referenced by existing invoices")

	// ErrTimeout is returned when the caller-supplied deadline expired
	// before the operation completed. The store guarantees no partial
	// write became visible.
	ErrTimeout = errors.New("repository operation timed out")
)

// TranslateContextError maps a context deadline into the typed timeout
// error callers are expected to handle. Other errors pass through.
func TranslateContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// CustomerStore persists customer records. Identity assignment and
// validation are the directory's job; the store only enforces raw
// uniqueness and referential integrity.
type CustomerStore interface {
	InsertCustomer(ctx context.Context, customer *models.Customer) error
	UpdateCustomer(ctx context.Context, customer *models.Customer) error

	// DeleteCustomer fails with ErrReferentialIntegrity while any
	// saved invoice references the customer.
	DeleteCustomer(ctx context.Context, id string) error

	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
}

// InvoiceStore persists finalized invoices and serves the search index.
type InvoiceStore interface {
	// SaveInvoice is atomic and idempotent on the invoice number:
	// saving identical content again is a no-op, saving different
	// content under an existing number fails with ErrConflict.
	SaveInvoice(ctx context.Context, invoice *models.Invoice) error

	GetInvoice(ctx context.Context, number string) (*models.Invoice, error)

	// SearchInvoices returns summaries ordered by invoice date
	// descending. An empty result is not an error.
	SearchInvoices(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceSummary, error)

	// DeleteInvoice removes the record. The sequencer is never told,
	// so the number stays retired.
	DeleteInvoice(ctx context.Context, number string) error

	CountInvoicesForCustomer(ctx context.Context, customerID string) (int, error)
}

// SequenceStore holds the durable "last issued value" per sequence
// scope (one scope per calendar year when year-scoped numbering is
// configured, a single scope otherwise).
type SequenceStore interface {
	// LastValue returns the last committed value for the scope, zero
	// if the scope has never issued a number.
	LastValue(ctx context.Context, scope string) (int64, error)

	// CompareAndSwap commits next as the scope's last value only if
	// the current value still equals old, failing with ErrConflict
	// otherwise. This is the primitive that keeps concurrent
	// reservations from ever observing and incrementing the same
	// prior value.
	CompareAndSwap(ctx context.Context, scope string, old, next int64) error
}

// CompanyStore holds the single company profile.
type CompanyStore interface {
	GetCompany(ctx context.Context) (*models.Company, error)
	PutCompany(ctx context.Context, company *models.Company) error
}

// Store is the full persistence surface the engine is wired against.
type Store interface {
	CustomerStore
	InvoiceStore
	SequenceStore
	CompanyStore

	Close() error
}
