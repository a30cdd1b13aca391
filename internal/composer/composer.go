// Package composer orchestrates invoice composition: it builds a
// draft from directory and ledger input, validates it, and finalizes
// it into an immutable, numbered, persisted invoice.
package composer

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fakturnik/internal/directory"
	"fakturnik/internal/ledger"
	"fakturnik/internal/logger"
	"fakturnik/internal/sequence"
	"fakturnik/internal/store"
	"fakturnik/pkg/models"
)

// State is a draft's position in the Editing -> Validated -> Finalized
// machine.
type State string

const (
	StateEditing   State = "EDITING"
	StateValidated State = "VALIDATED"
	StateFinalized State = "FINALIZED"
)

var (
	// ErrDraftFinalized is returned when any mutation or transition is
	// attempted on a finalized draft. Finalized is terminal; a
	// correction is always a brand-new, separately numbered document
	// (see CopyToDraft).
	ErrDraftFinalized = errors.New("draft is already finalized")

	// ErrNotValidated is returned by Finalize when the draft has not
	// passed an explicit validation since its last edit.
	ErrNotValidated = errors.New("draft has not been validated")
)

// dateLayouts are the formats operator-entered dates are accepted in.
var dateLayouts = []string{"2006-01-02", "02.01.2006", "2.1.2006"}

// Draft is one invoice under composition. Drafts are explicit values:
// the composer holds no notion of a "current" draft, so multiple
// drafts can be edited side by side.
type Draft struct {
	data  models.InvoiceDraft
	state State
}

// State returns the draft's current lifecycle state.
func (d *Draft) State() State { return d.state }

// Customer returns the resolved customer snapshot, nil if unresolved.
func (d *Draft) Customer() *models.Customer { return d.data.Customer }

// Items returns a copy of the draft's line items in print order.
func (d *Draft) Items() []models.LineItem {
	items := make([]models.LineItem, len(d.data.Items))
	copy(items, d.data.Items)
	return items
}

// HeaderInput is the raw header portion of the invoice form. Dates
// arrive as strings; the engine does all parsing.
type HeaderInput struct {
	InvoiceDate   string `json:"invoice_date"`
	SupplyDate    string `json:"supply_date"`
	PlaceOfSupply string `json:"place_of_supply"`
	Description   string `json:"description"`
}

// Composer ties the directory, ledger, sequencer and repository
// together.
type Composer struct {
	directory *directory.Directory
	ledger    *ledger.Ledger
	sequencer *sequence.Sequencer
	invoices  store.InvoiceStore
	company   store.CompanyStore
	currency  string
	now       func() time.Time
	log       zerolog.Logger
}

// New creates a composer. The company store may be nil when no company
// profile exists; the VAT registration rule is then not enforced.
func New(dir *directory.Directory, led *ledger.Ledger, seq *sequence.Sequencer,
	invoices store.InvoiceStore, company store.CompanyStore, currency string) *Composer {
	return &Composer{
		directory: dir,
		ledger:    led,
		sequencer: seq,
		invoices:  invoices,
		company:   company,
		currency:  currency,
		now:       time.Now,
		log:       logger.WithComponent("composer"),
	}
}

// NewDraft starts an empty draft in the Editing state.
func (c *Composer) NewDraft() *Draft {
	return &Draft{state: StateEditing}
}

// SetCustomer resolves an existing customer by id and attaches a
// snapshot of it to the draft.
func (c *Composer) SetCustomer(ctx context.Context, d *Draft, customerID string) error {
	if err := c.edit(d); err != nil {
		return err
	}
	customer, err := c.directory.Get(ctx, customerID)
	if err != nil {
		return err
	}
	d.data.Customer = customer
	return nil
}

// AttachNewCustomer creates the given customer in the directory and
// attaches it to the draft, for the "customer not yet in the database"
// path of the invoice form.
func (c *Composer) AttachNewCustomer(ctx context.Context, d *Draft, customer models.Customer) error {
	if err := c.edit(d); err != nil {
		return err
	}
	id, err := c.directory.Create(ctx, customer)
	if err != nil {
		return err
	}
	return c.SetCustomer(ctx, d, id)
}

// SetHeader parses and applies the header fields. A field that fails
// to parse is reported; empty dates are allowed here and only become
// violations at validation time.
func (c *Composer) SetHeader(d *Draft, input HeaderInput) error {
	if err := c.edit(d); err != nil {
		return err
	}

	var verr models.ValidationError

	if raw := strings.TrimSpace(input.InvoiceDate); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			verr.Add("invoice_date", raw, "invoice date is not a valid date")
		} else {
			d.data.InvoiceDate = t
		}
	} else {
		d.data.InvoiceDate = time.Time{}
	}

	if raw := strings.TrimSpace(input.SupplyDate); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			verr.Add("supply_date", raw, "date of supply is not a valid date")
		} else {
			d.data.SupplyDate = t
		}
	} else {
		d.data.SupplyDate = time.Time{}
	}

	d.data.PlaceOfSupply = strings.TrimSpace(input.PlaceOfSupply)
	d.data.Description = strings.TrimSpace(input.Description)

	return verr.Err()
}

// AddItem delegates to the ledger and keeps the draft editable.
func (c *Composer) AddItem(d *Draft, input ledger.ItemInput) (models.LineItem, error) {
	if err := c.edit(d); err != nil {
		return models.LineItem{}, err
	}
	return c.ledger.AddItem(&d.data, input)
}

// RemoveItem delegates to the ledger and keeps the draft editable.
func (c *Composer) RemoveItem(d *Draft, index int) error {
	if err := c.edit(d); err != nil {
		return err
	}
	return c.ledger.RemoveItem(&d.data, index)
}

// Totals computes the draft's current totals without changing state.
func (c *Composer) Totals(d *Draft) models.Totals {
	return c.ledger.ComputeTotals(&d.data)
}

// Validate moves an editing draft to Validated. Every violated field
// is reported at once; nothing short-circuits, because the operator
// must see all problems in one pass.
func (c *Composer) Validate(ctx context.Context, d *Draft) error {
	if d.state == StateFinalized {
		return ErrDraftFinalized
	}

	var verr models.ValidationError
	if d.data.Customer == nil {
		verr.Add("customer", nil, "an invoice needs a resolved customer")
	}
	if len(d.data.Items) == 0 {
		verr.Add("items", nil, "an invoice needs at least one line item")
	}
	if d.data.InvoiceDate.IsZero() {
		verr.Add("invoice_date", "", "invoice date must not be empty")
	}

	if err := c.checkVATRegistration(ctx, d, &verr); err != nil {
		return err
	}

	if err := verr.Err(); err != nil {
		d.state = StateEditing
		return err
	}

	if d.data.SupplyDate.IsZero() {
		d.data.SupplyDate = d.data.InvoiceDate
	}
	d.state = StateValidated
	return nil
}

// Finalize reserves a number, snapshots the validated draft into an
// immutable invoice and saves it. If the save fails, the reserved
// number stays retired and the draft stays Validated: the operator
// retries with a fresh Finalize, which reserves a new number. Gaps in
// continuity are acceptable; duplicate numbers are not.
func (c *Composer) Finalize(ctx context.Context, d *Draft) (*models.Invoice, error) {
	switch d.state {
	case StateFinalized:
		return nil, ErrDraftFinalized
	case StateEditing:
		return nil, ErrNotValidated
	}

	number, err := c.sequencer.Reserve(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]models.LineItem, len(d.data.Items))
	copy(items, d.data.Items)
	invoice := &models.Invoice{
		Number:        number,
		Customer:      *d.data.Customer,
		InvoiceDate:   d.data.InvoiceDate,
		SupplyDate:    d.data.SupplyDate,
		PlaceOfSupply: d.data.PlaceOfSupply,
		Description:   d.data.Description,
		Items:         items,
		Totals:        models.ComputeTotals(items),
		Currency:      c.currency,
		CreatedAt:     c.now(),
	}

	if err := c.invoices.SaveInvoice(ctx, invoice); err != nil {
		c.log.Error().
			Err(err).
			Str("number", number).
			Msg("Saving finalized invoice failed; number stays retired")
		return nil, err
	}

	d.state = StateFinalized
	c.log.Info().
		Str("number", invoice.Number).
		Str("customer", invoice.Customer.Name).
		Str("grand_total", invoice.Totals.Grand.String()).
		Msg("Invoice finalized")
	return invoice, nil
}

// CopyToDraft copies a finalized invoice into a brand-new Editing
// draft. This is the only correction path; the original invoice stays
// untouched and the copy will get its own number when finalized.
func (c *Composer) CopyToDraft(invoice *models.Invoice) *Draft {
	customer := invoice.Customer
	items := make([]models.LineItem, len(invoice.Items))
	copy(items, invoice.Items)
	return &Draft{
		state: StateEditing,
		data: models.InvoiceDraft{
			Customer:      &customer,
			InvoiceDate:   invoice.InvoiceDate,
			SupplyDate:    invoice.SupplyDate,
			PlaceOfSupply: invoice.PlaceOfSupply,
			Description:   invoice.Description,
			Items:         items,
		},
	}
}

// edit gates mutations: finalized drafts are immutable, and any edit
// to a validated draft drops it back to Editing so it must be
// re-validated before finalizing.
func (c *Composer) edit(d *Draft) error {
	if d.state == StateFinalized {
		return ErrDraftFinalized
	}
	d.state = StateEditing
	return nil
}

// checkVATRegistration enforces the company profile rule: a company
// outside the VAT system may only invoice at a zero tax rate.
func (c *Composer) checkVATRegistration(ctx context.Context, d *Draft, verr *models.ValidationError) error {
	if c.company == nil {
		return nil
	}
	company, err := c.company.GetCompany(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if company.VATRegistered {
		return nil
	}
	for i, item := range d.data.Items {
		if !item.TaxRate.IsZero() {
			verr.Add("tax_rate", item.TaxRate.String(),
				"company is not in the VAT system; line "+strconv.Itoa(i+1)+" must use a zero rate")
		}
	}
	return nil
}

func parseDate(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
