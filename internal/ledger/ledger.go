// Package ledger validates and accumulates billable line items within
// one invoice draft. The presentation layer hands over raw strings and
// performs no parsing of its own; everything is parsed and checked
// here.
package ledger

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fakturnik/internal/logger"
	"fakturnik/pkg/models"
)

// ErrIndexOutOfRange is returned when removing a line item at a
// position the draft does not have.
var ErrIndexOutOfRange = errors.New("line item index out of range")

// ItemInput is one line of raw operator input.
type ItemInput struct {
	Description string `json:"description"`
	Unit        string `json:"unit"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TaxRate     string `json:"tax_rate"`
}

// Ledger turns raw item input into validated line items and computes
// draft totals against a configured set of allowed tax rates.
type Ledger struct {
	rates []decimal.Decimal
	log   zerolog.Logger
}

// New creates a ledger allowing the given tax rates (percentages).
func New(rates []decimal.Decimal) *Ledger {
	return &Ledger{
		rates: rates,
		log:   logger.WithComponent("ledger"),
	}
}

// AddItem parses and validates the input and appends the resulting
// line item to the draft. Insertion order is preserved and is the
// print order. All violations are reported together.
func (l *Ledger) AddItem(draft *models.InvoiceDraft, input ItemInput) (models.LineItem, error) {
	var verr models.ValidationError
	item := models.LineItem{
		Description: strings.TrimSpace(input.Description),
		Unit:        strings.TrimSpace(input.Unit),
	}

	if item.Description == "" {
		verr.Add("description", input.Description, "service description must not be empty")
	}

	qty, err := decimal.NewFromString(strings.TrimSpace(input.Quantity))
	switch {
	case err != nil:
		verr.Add("quantity", input.Quantity, "quantity is not a number")
	case !qty.IsPositive():
		verr.Add("quantity", input.Quantity, "quantity must be greater than zero")
	default:
		item.Quantity = qty
	}

	price, err := decimal.NewFromString(strings.TrimSpace(input.UnitPrice))
	switch {
	case err != nil:
		verr.Add("unit_price", input.UnitPrice, "unit price is not a number")
	case price.IsNegative():
		verr.Add("unit_price", input.UnitPrice, "unit price must not be negative")
	case price.Exponent() < -models.CurrencyScale:
		verr.Add("unit_price", input.UnitPrice, "unit price has more decimal places than the currency allows")
	default:
		item.UnitPrice = price
	}

	rate, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(input.TaxRate, "%")))
	switch {
	case err != nil:
		verr.Add("tax_rate", input.TaxRate, "tax rate is not a number")
	case !l.allowedRate(rate):
		verr.Add("tax_rate", input.TaxRate, "tax rate is not one of the configured rates")
	default:
		item.TaxRate = rate
	}

	if err := verr.Err(); err != nil {
		return models.LineItem{}, err
	}

	draft.Items = append(draft.Items, item)
	l.log.Debug().
		Str("description", item.Description).
		Str("quantity", item.Quantity.String()).
		Str("unit_price", item.UnitPrice.String()).
		Str("tax_rate", item.TaxRate.String()).
		Int("position", len(draft.Items)-1).
		Msg("Line item added")
	return item, nil
}

// RemoveItem deletes the line item at index, shifting later items up.
func (l *Ledger) RemoveItem(draft *models.InvoiceDraft, index int) error {
	if index < 0 || index >= len(draft.Items) {
		return ErrIndexOutOfRange
	}
	draft.Items = append(draft.Items[:index], draft.Items[index+1:]...)
	return nil
}

// ComputeTotals is a pure function over the draft's current items.
func (l *Ledger) ComputeTotals(draft *models.InvoiceDraft) models.Totals {
	return models.ComputeTotals(draft.Items)
}

func (l *Ledger) allowedRate(rate decimal.Decimal) bool {
	for _, r := range l.rates {
		if r.Equal(rate) {
			return true
		}
	}
	return false
}
