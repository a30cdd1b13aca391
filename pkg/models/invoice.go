package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyScale is the number of decimal places monetary amounts are
// rounded to. Rounding is half-up via decimal.Round.
const CurrencyScale = 2

// LineItem is one billable row within an invoice. Derived amounts are
// always recomputed from quantity, unit price and tax rate so they can
// never drift from their inputs.
type LineItem struct {
	Description string          `json:"description"`    // service description
	Unit        string          `json:"unit,omitempty"` // unit of measure (piece, hour, ...)
	Quantity    decimal.Decimal `json:"quantity"`       // > 0
	UnitPrice   decimal.Decimal `json:"unit_price"`     // excluding tax, >= 0, currency scale
	TaxRate     decimal.Decimal `json:"tax_rate"`       // percentage, from the configured rate set
}

// NetAmount is quantity x unit price at currency scale.
func (li LineItem) NetAmount() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice).Round(CurrencyScale)
}

// TaxAmount is the net amount times the tax rate, at currency scale.
func (li LineItem) TaxAmount() decimal.Decimal {
	return li.taxExact().Round(CurrencyScale)
}

// Total is net plus tax for this line.
func (li LineItem) Total() decimal.Decimal {
	return li.NetAmount().Add(li.TaxAmount())
}

// netExact keeps full precision for aggregation; only amounts shown to
// the operator are rounded.
func (li LineItem) netExact() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

func (li LineItem) taxExact() decimal.Decimal {
	return li.netExact().Mul(li.TaxRate).Div(decimal.NewFromInt(100))
}

// Totals is the aggregate over a draft's or invoice's line items.
type Totals struct {
	Net   decimal.Decimal `json:"net_total"`
	Tax   decimal.Decimal `json:"tax_total"`
	Grand decimal.Decimal `json:"grand_total"`
}

// ComputeTotals sums the given items at full precision and rounds each
// aggregate exactly once at the end, so per-line rounding can never
// accumulate into a drifting grand total.
func ComputeTotals(items []LineItem) Totals {
	var net, tax decimal.Decimal
	for _, li := range items {
		net = net.Add(li.netExact())
		tax = tax.Add(li.taxExact())
	}
	return Totals{
		Net:   net.Round(CurrencyScale),
		Tax:   tax.Round(CurrencyScale),
		Grand: net.Add(tax).Round(CurrencyScale),
	}
}

// InvoiceDraft is a mutable, unnumbered invoice under composition. It
// is an explicit value owned by its composer; nothing in the engine
// holds a process-wide "current draft".
type InvoiceDraft struct {
	// Customer is the resolved customer snapshot, nil until the draft
	// has a customer attached.
	Customer *Customer

	InvoiceDate   time.Time
	SupplyDate    time.Time // datum prometa
	PlaceOfSupply string    // mesto prometa
	Description   string

	// Items in insertion order, which is also print order.
	Items []LineItem
}

// Invoice is an immutable, numbered, persisted invoice. Once created
// its number is retired forever, even if the record is later deleted.
type Invoice struct {
	Number        string    `json:"number"`
	Customer      Customer  `json:"customer"` // snapshot at finalization
	InvoiceDate   time.Time `json:"invoice_date"`
	SupplyDate    time.Time `json:"supply_date"`
	PlaceOfSupply string    `json:"place_of_supply"`
	Description   string    `json:"description,omitempty"`

	Items    []LineItem `json:"items"`
	Totals   Totals     `json:"totals"`
	Currency string     `json:"currency"`

	CreatedAt time.Time `json:"created_at"`
}

// Equal reports whether two invoices carry identical content. The
// repository uses it to make Save idempotent: re-saving the same
// invoice is a no-op, re-saving different content under the same
// number is a conflict.
func (inv *Invoice) Equal(other *Invoice) bool {
	if inv.Number != other.Number ||
		inv.Customer.ID != other.Customer.ID ||
		inv.Customer.Name != other.Customer.Name ||
		!inv.InvoiceDate.Equal(other.InvoiceDate) ||
		!inv.SupplyDate.Equal(other.SupplyDate) ||
		inv.PlaceOfSupply != other.PlaceOfSupply ||
		inv.Description != other.Description ||
		inv.Currency != other.Currency ||
		len(inv.Items) != len(other.Items) {
		return false
	}
	for i, li := range inv.Items {
		o := other.Items[i]
		if li.Description != o.Description ||
			li.Unit != o.Unit ||
			!li.Quantity.Equal(o.Quantity) ||
			!li.UnitPrice.Equal(o.UnitPrice) ||
			!li.TaxRate.Equal(o.TaxRate) {
			return false
		}
	}
	return true
}

// InvoiceSummary is the row shape served to listing surfaces (the
// review table of the original application).
type InvoiceSummary struct {
	Number       string          `json:"number"`
	CustomerName string          `json:"customer_name"`
	InvoiceDate  time.Time       `json:"invoice_date"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	Currency     string          `json:"currency"`
}

// InvoiceFilter narrows an invoice search. Zero-valued fields do not
// filter. A range with no matches yields an empty result, not an error.
type InvoiceFilter struct {
	CustomerName string     // case-insensitive substring
	Number       string     // exact
	From         *time.Time // inclusive invoice date lower bound
	To           *time.Time // inclusive invoice date upper bound
}
