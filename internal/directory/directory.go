// Package directory owns customer identity: it resolves "is this
// customer already known" queries and performs create/update/delete
// with validation and duplicate detection.
package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"fakturnik/internal/config"
	"fakturnik/internal/logger"
	"fakturnik/internal/store"
	"fakturnik/pkg/models"
)

// Options configures identity rules. Which attribute de-duplicates
// customers is jurisdiction-dependent, so it comes from configuration.
type Options struct {
	// MatchKey is one of config.MatchByNationalID, MatchByTaxID,
	// MatchByName.
	MatchKey string

	// TaxIDLength is the required digit count of a tax id (PIB).
	TaxIDLength int

	// NationalIDLength is the required digit count of a national
	// registration number (matični broj).
	NationalIDLength int
}

// DefaultOptions matches Serbian identifiers: 9-digit PIB, 8-digit
// matični broj, de-duplication on the national id.
func DefaultOptions() Options {
	return Options{
		MatchKey:         config.MatchByNationalID,
		TaxIDLength:      9,
		NationalIDLength: 8,
	}
}

// DuplicateError reports a create/update that collided with an
// existing customer on the configured match key. The conflicting
// record is attached so the operator can be shown it.
type DuplicateError struct {
	Existing models.Customer
	Key      string
	Value    string
}

// Error implements the error interface.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("customer with %s %q already exists: %s (%s)", e.Key, e.Value, e.Existing.Name, e.Existing.ID)
}

// Unwrap lets errors.Is match store.ErrDuplicate.
func (e *DuplicateError) Unwrap() error { return store.ErrDuplicate }

// Directory is the customer directory service.
type Directory struct {
	store store.CustomerStore
	opts  Options
	log   zerolog.Logger
}

// New creates a directory over the given customer store.
func New(st store.CustomerStore, opts Options) *Directory {
	return &Directory{
		store: st,
		opts:  opts,
		log:   logger.WithComponent("directory"),
	}
}

// Find returns customers whose name, national id or tax id contains
// the query, case-insensitively. Exact matches on any of those fields
// sort first, the rest follow in name order.
func (d *Directory) Find(ctx context.Context, query string) ([]models.Customer, error) {
	customers, err := d.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return customers, nil
	}

	matched := lo.Filter(customers, func(c models.Customer, _ int) bool {
		return strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.NationalID), q) ||
			strings.Contains(strings.ToLower(c.TaxID), q)
	})

	exact := func(c models.Customer) bool {
		return strings.EqualFold(c.Name, query) ||
			c.NationalID == query ||
			c.TaxID == query
	}
	sort.SliceStable(matched, func(i, j int) bool {
		ei, ej := exact(matched[i]), exact(matched[j])
		if ei != ej {
			return ei
		}
		return strings.ToLower(matched[i].Name) < strings.ToLower(matched[j].Name)
	})

	return matched, nil
}

// Exists answers "is this customer already in the directory". The
// identity attribute compared depends on the configured match key;
// for id-based keys the id argument is compared, for name matching
// the name argument.
func (d *Directory) Exists(ctx context.Context, name, id string) (bool, error) {
	existing, err := d.findByMatchKey(ctx, name, id, "")
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

// Create validates and stores a new customer, returning its assigned
// id. Fails with a ValidationError on broken invariants and with a
// DuplicateError when the match key collides with an existing record.
func (d *Directory) Create(ctx context.Context, customer models.Customer) (string, error) {
	if customer.Kind == "" {
		customer.Kind = models.KindIndividual
	}
	if err := validateCustomer(&customer, d.opts); err != nil {
		return "", err
	}

	name, id := customer.Name, d.matchID(customer)
	existing, err := d.findByMatchKey(ctx, name, id, "")
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", &DuplicateError{Existing: *existing, Key: d.opts.MatchKey, Value: d.matchValue(customer)}
	}

	now := time.Now()
	customer.ID = uuid.NewString()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	if err := d.store.InsertCustomer(ctx, &customer); err != nil {
		return "", err
	}

	d.log.Info().
		Str("customer_id", customer.ID).
		Str("name", customer.Name).
		Str("kind", string(customer.Kind)).
		Msg("Customer created")
	return customer.ID, nil
}

// Update applies a partial update to an existing customer. The same
// validation and duplicate rules as Create apply to the result.
func (d *Directory) Update(ctx context.Context, id string, update models.CustomerUpdate) error {
	customer, err := d.store.GetCustomer(ctx, id)
	if err != nil {
		return err
	}

	applyUpdate(customer, update)
	if err := validateCustomer(customer, d.opts); err != nil {
		return err
	}

	existing, err := d.findByMatchKey(ctx, customer.Name, d.matchID(*customer), id)
	if err != nil {
		return err
	}
	if existing != nil {
		return &DuplicateError{Existing: *existing, Key: d.opts.MatchKey, Value: d.matchValue(*customer)}
	}

	customer.UpdatedAt = time.Now()
	if err := d.store.UpdateCustomer(ctx, customer); err != nil {
		return err
	}

	d.log.Info().Str("customer_id", id).Msg("Customer updated")
	return nil
}

// Delete removes a customer. The store refuses with
// store.ErrReferentialIntegrity while any invoice references it.
func (d *Directory) Delete(ctx context.Context, id string) error {
	if err := d.store.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	d.log.Info().Str("customer_id", id).Msg("Customer deleted")
	return nil
}

// Get returns a single customer by id.
func (d *Directory) Get(ctx context.Context, id string) (*models.Customer, error) {
	return d.store.GetCustomer(ctx, id)
}

// findByMatchKey looks up a customer equal on the configured match
// key, ignoring the record with excludeID (used on update so a
// customer does not collide with itself). Records with an empty match
// value never match anything.
func (d *Directory) findByMatchKey(ctx context.Context, name, id, excludeID string) (*models.Customer, error) {
	customers, err := d.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range customers {
		c := &customers[i]
		if c.ID == excludeID {
			continue
		}
		switch d.opts.MatchKey {
		case config.MatchByName:
			if name != "" && strings.EqualFold(c.Name, name) {
				return c, nil
			}
		case config.MatchByTaxID:
			if id != "" && c.TaxID == id {
				return c, nil
			}
		default: // national id
			if id != "" && c.NationalID == id {
				return c, nil
			}
		}
	}
	return nil, nil
}

func (d *Directory) matchID(c models.Customer) string {
	if d.opts.MatchKey == config.MatchByTaxID {
		return c.TaxID
	}
	return c.NationalID
}

func (d *Directory) matchValue(c models.Customer) string {
	if d.opts.MatchKey == config.MatchByName {
		return c.Name
	}
	return d.matchID(c)
}

func applyUpdate(c *models.Customer, u models.CustomerUpdate) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Address != nil {
		c.Address = *u.Address
	}
	if u.City != nil {
		c.City = *u.City
	}
	if u.TaxID != nil {
		c.TaxID = *u.TaxID
	}
	if u.NationalID != nil {
		c.NationalID = *u.NationalID
	}
	if u.Email != nil {
		c.Email = *u.Email
	}
	if u.Kind != nil {
		c.Kind = *u.Kind
	}
}
