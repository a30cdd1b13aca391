package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fakturnik/pkg/models"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return New([]decimal.Decimal{
		decimal.Zero,
		decimal.NewFromInt(10),
		decimal.NewFromInt(20),
	})
}

func TestAddItem(t *testing.T) {
	tests := []struct {
		name       string
		input      ItemInput
		wantFields []string
	}{
		{
			name:  "valid item",
			input: ItemInput{Description: "Consulting", Unit: "h", Quantity: "2", UnitPrice: "100.00", TaxRate: "20"},
		},
		{
			name:  "tax rate with percent sign",
			input: ItemInput{Description: "Consulting", Quantity: "1", UnitPrice: "50.00", TaxRate: "10%"},
		},
		{
			name:       "zero quantity",
			input:      ItemInput{Description: "Consulting", Quantity: "0", UnitPrice: "100.00", TaxRate: "20"},
			wantFields: []string{"quantity"},
		},
		{
			name:       "negative price",
			input:      ItemInput{Description: "Consulting", Quantity: "1", UnitPrice: "-5.00", TaxRate: "20"},
			wantFields: []string{"unit_price"},
		},
		{
			name:       "price below currency scale",
			input:      ItemInput{Description: "Consulting", Quantity: "1", UnitPrice: "9.999", TaxRate: "20"},
			wantFields: []string{"unit_price"},
		},
		{
			name:       "unknown tax rate",
			input:      ItemInput{Description: "Consulting", Quantity: "1", UnitPrice: "100.00", TaxRate: "19"},
			wantFields: []string{"tax_rate"},
		},
		{
			name:       "unparseable numbers are reported together",
			input:      ItemInput{Description: "", Quantity: "two", UnitPrice: "much", TaxRate: "x"},
			wantFields: []string{"description", "quantity", "unit_price", "tax_rate"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			led := newTestLedger(t)
			draft := &models.InvoiceDraft{}

			item, err := led.AddItem(draft, tt.input)
			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				assert.Len(t, draft.Items, 1)
				assert.Equal(t, tt.input.Description, item.Description)
				return
			}

			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Empty(t, draft.Items, "invalid input must not reach the draft")

			fields := make([]string, 0, len(verr.Errors))
			for _, fe := range verr.Errors {
				fields = append(fields, fe.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestAddItemPreservesInsertionOrder(t *testing.T) {
	led := newTestLedger(t)
	draft := &models.InvoiceDraft{}

	for _, desc := range []string{"first", "second", "third"} {
		_, err := led.AddItem(draft, ItemInput{Description: desc, Quantity: "1", UnitPrice: "1.00", TaxRate: "0"})
		require.NoError(t, err)
	}

	require.Len(t, draft.Items, 3)
	assert.Equal(t, "first", draft.Items[0].Description)
	assert.Equal(t, "second", draft.Items[1].Description)
	assert.Equal(t, "third", draft.Items[2].Description)
}

func TestRemoveItem(t *testing.T) {
	led := newTestLedger(t)
	draft := &models.InvoiceDraft{}
	for _, desc := range []string{"a", "b", "c"} {
		_, err := led.AddItem(draft, ItemInput{Description: desc, Quantity: "1", UnitPrice: "1.00", TaxRate: "0"})
		require.NoError(t, err)
	}

	require.NoError(t, led.RemoveItem(draft, 1))
	require.Len(t, draft.Items, 2)
	assert.Equal(t, "a", draft.Items[0].Description)
	assert.Equal(t, "c", draft.Items[1].Description)

	assert.True(t, errors.Is(led.RemoveItem(draft, 2), ErrIndexOutOfRange))
	assert.True(t, errors.Is(led.RemoveItem(draft, -1), ErrIndexOutOfRange))
}

func TestComputeTotals(t *testing.T) {
	led := newTestLedger(t)
	draft := &models.InvoiceDraft{}

	// 2 x 100.00 at 20% plus 1 x 50.00 at 10%
	_, err := led.AddItem(draft, ItemInput{Description: "Consulting", Quantity: "2", UnitPrice: "100.00", TaxRate: "20"})
	require.NoError(t, err)
	_, err = led.AddItem(draft, ItemInput{Description: "Hosting", Quantity: "1", UnitPrice: "50.00", TaxRate: "10"})
	require.NoError(t, err)

	totals := led.ComputeTotals(draft)
	assert.True(t, totals.Net.Equal(decimal.RequireFromString("250.00")), "net = %s", totals.Net)
	assert.True(t, totals.Tax.Equal(decimal.RequireFromString("45.00")), "tax = %s", totals.Tax)
	assert.True(t, totals.Grand.Equal(decimal.RequireFromString("295.00")), "grand = %s", totals.Grand)
}

func TestComputeTotalsRoundsOnceAtAggregation(t *testing.T) {
	led := New([]decimal.Decimal{decimal.NewFromInt(20)})
	draft := &models.InvoiceDraft{}

	// Each line's exact tax is 0.066; per-line rounding would give
	// 0.07 x 3 = 0.21, aggregate-then-round gives 0.20.
	for i := 0; i < 3; i++ {
		_, err := led.AddItem(draft, ItemInput{Description: "Unit", Quantity: "0.33", UnitPrice: "1.00", TaxRate: "20"})
		require.NoError(t, err)
	}

	totals := led.ComputeTotals(draft)
	assert.True(t, totals.Tax.Equal(decimal.RequireFromString("0.20")), "tax = %s", totals.Tax)
	assert.True(t, totals.Grand.Equal(decimal.RequireFromString("1.19")), "grand = %s", totals.Grand)
}

func TestComputeTotalsEmptyDraft(t *testing.T) {
	led := newTestLedger(t)
	totals := led.ComputeTotals(&models.InvoiceDraft{})
	assert.True(t, totals.Grand.IsZero())
}
