// Package memory provides an in-memory Store. It is the reference
// semantics for the persistence contract and the backend used by
// tests; nothing survives the process.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"fakturnik/internal/store"
	"fakturnik/pkg/models"
)

// Store keeps all records in process memory behind a single mutex.
// Reads copy records on the way out so callers can never mutate
// repository-owned state.
type Store struct {
	mu        sync.RWMutex
	customers map[string]models.Customer
	invoices  map[string]models.Invoice
	sequences map[string]int64
	company   *models.Company
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		customers: make(map[string]models.Customer),
		invoices:  make(map[string]models.Invoice),
		sequences: make(map[string]int64),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

func (s *Store) InsertCustomer(ctx context.Context, customer *models.Customer) error {
	if err := ctx.Err(); err != nil {
		return store.TranslateContextError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[customer.ID]; ok {
		return store.ErrDuplicate
	}
	s.customers[customer.ID] = cloneCustomer(*customer)
	return nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	if err := ctx.Err(); err != nil {
		return store.TranslateContextError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[customer.ID]; !ok {
		return store.ErrNotFound
	}
	s.customers[customer.ID] = cloneCustomer(*customer)
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return store.TranslateContextError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	for _, inv := range s.invoices {
		if inv.Customer.ID == id {
			return store.ErrReferentialIntegrity
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.TranslateContextError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneCustomer(c)
	return &out, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.TranslateContextError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, cloneCustomer(c))
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Store) SaveInvoice(ctx context.Context, invoice *models.Invoice) error {
	if err := ctx.Err(); err != nil {
		return store.TranslateContextError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.invoices[invoice.Number]; ok {
		if existing.Equal(invoice) {
			return nil // idempotent re-save
		}
		return store.ErrConflict
	}
	s.invoices[invoice.Number] = cloneInvoice(*invoice)
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, number string) (*models.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.TranslateContextError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[number]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneInvoice(inv)
	return &out, nil
}

func (s *Store) SearchInvoices(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.TranslateContextError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	name := strings.ToLower(filter.CustomerName)
	out := make([]models.InvoiceSummary, 0)
	for _, inv := range s.invoices {
		if filter.Number != "" && inv.Number != filter.Number {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(inv.Customer.Name), name) {
			continue
		}
		if filter.From != nil && inv.InvoiceDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && inv.InvoiceDate.After(*filter.To) {
			continue
		}
		out = append(out, models.InvoiceSummary{
			Number:       inv.Number,
			CustomerName: inv.Customer.Name,
			InvoiceDate:  inv.InvoiceDate,
			GrandTotal:   inv.Totals.Grand,
			Currency:     inv.Currency,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].InvoiceDate.Equal(out[j].InvoiceDate) {
			return out[i].InvoiceDate.After(out[j].InvoiceDate)
		}
		return out[i].Number > out[j].Number
	})
	return out, nil
}

func (s *Store) DeleteInvoice(ctx context.Context, number string) error {
	if err := ctx.Err(); err != nil {
		return store.TranslateContextError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[number]; !ok {
		return store.ErrNotFound
	}
	delete(s.invoices, number)
	return nil
}

func (s *Store) CountInvoicesForCustomer(ctx context.Context, customerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, store.TranslateContextError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, inv := range s.invoices {
		if inv.Customer.ID == customerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) LastValue(ctx context.Context, scope string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, store.TranslateContextError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sequences[scope], nil
}

func (s *Store) CompareAndSwap(ctx context.Context, scope string, old, next int64) error {
	if err := ctx.Err(); err != nil {
		return store.TranslateContextError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sequences[scope] != old {
		return store.ErrConflict
	}
	s.sequences[scope] = next
	return nil
}

func (s *Store) GetCompany(ctx context.Context) (*models.Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.TranslateContextError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.company == nil {
		return nil, store.ErrNotFound
	}
	out := *s.company
	return &out, nil
}

func (s *Store) PutCompany(ctx context.Context, company *models.Company) error {
	if err := ctx.Err(); err != nil {
		return store.TranslateContextError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *company
	s.company = &c
	return nil
}

func cloneCustomer(c models.Customer) models.Customer {
	return c
}

func cloneInvoice(inv models.Invoice) models.Invoice {
	items := make([]models.LineItem, len(inv.Items))
	copy(items, inv.Items)
	inv.Items = items
	return inv
}

var _ store.Store = (*Store)(nil)
