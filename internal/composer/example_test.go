package composer_test

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fakturnik/internal/composer"
	"fakturnik/internal/directory"
	"fakturnik/internal/ledger"
	"fakturnik/internal/sequence"
	"fakturnik/internal/store/memory"
	"fakturnik/pkg/models"
)

// Example walks an invoice from an empty draft to a finalized,
// numbered document.
func Example() {
	ctx := context.Background()
	st := memory.New()

	dir := directory.New(st, directory.DefaultOptions())
	led := ledger.New([]decimal.Decimal{decimal.Zero, decimal.NewFromInt(10), decimal.NewFromInt(20)})
	seq := sequence.New(st, sequence.Options{CounterWidth: 6})
	c := composer.New(dir, led, seq, st, st, "RSD")

	draft := c.NewDraft()
	if err := c.AttachNewCustomer(ctx, draft, models.Customer{
		Name:       "ACME d.o.o.",
		Kind:       models.KindLegalEntity,
		TaxID:      "123456789",
		NationalID: "12345678",
	}); err != nil {
		fmt.Println("attach:", err)
		return
	}

	if err := c.SetHeader(draft, composer.HeaderInput{
		InvoiceDate:   "2026-03-05",
		PlaceOfSupply: "Beograd",
	}); err != nil {
		fmt.Println("header:", err)
		return
	}

	if _, err := c.AddItem(draft, ledger.ItemInput{
		Description: "Consulting",
		Unit:        "h",
		Quantity:    "2",
		UnitPrice:   "100.00",
		TaxRate:     "20",
	}); err != nil {
		fmt.Println("item:", err)
		return
	}

	if err := c.Validate(ctx, draft); err != nil {
		fmt.Println("validate:", err)
		return
	}

	invoice, err := c.Finalize(ctx, draft)
	if err != nil {
		fmt.Println("finalize:", err)
		return
	}

	fmt.Println("number:", invoice.Number)
	fmt.Println("net:", invoice.Totals.Net.StringFixed(2))
	fmt.Println("tax:", invoice.Totals.Tax.StringFixed(2))
	fmt.Println("grand:", invoice.Totals.Grand.StringFixed(2))
	// Output:
	// number: 1
	// net: 200.00
	// tax: 40.00
	// grand: 240.00
}
