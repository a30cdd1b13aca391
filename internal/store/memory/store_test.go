package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fakturnik/internal/store"
	"fakturnik/pkg/models"
)

func testInvoice(number string, date time.Time) models.Invoice {
	return models.Invoice{
		Number: number,
		Customer: models.Customer{
			ID:   "c-1",
			Name: "ACME d.o.o.",
			Kind: models.KindLegalEntity,
		},
		InvoiceDate:   date,
		SupplyDate:    date,
		PlaceOfSupply: "Beograd",
		Items: []models.LineItem{
			{
				Description: "Consulting",
				Unit:        "h",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.RequireFromString("100.00"),
				TaxRate:     decimal.NewFromInt(20),
			},
		},
		Totals: models.Totals{
			Net:   decimal.RequireFromString("200.00"),
			Tax:   decimal.RequireFromString("40.00"),
			Grand: decimal.RequireFromString("240.00"),
		},
		Currency:  "RSD",
		CreatedAt: date,
	}
}

func TestCustomerRoundtrip(t *testing.T) {
	st := New()
	ctx := context.Background()

	c := models.Customer{ID: "c-1", Name: "ACME d.o.o.", Kind: models.KindLegalEntity}
	require.NoError(t, st.InsertCustomer(ctx, &c))

	assert.ErrorIs(t, st.InsertCustomer(ctx, &c), store.ErrDuplicate)

	got, err := st.GetCustomer(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "ACME d.o.o.", got.Name)

	got.Name = "changed"
	again, err := st.GetCustomer(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "ACME d.o.o.", again.Name, "reads hand out copies")

	_, err = st.GetCustomer(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateCustomerNotFound(t *testing.T) {
	st := New()
	c := models.Customer{ID: "ghost", Name: "Ghost"}
	assert.ErrorIs(t, st.UpdateCustomer(context.Background(), &c), store.ErrNotFound)
}

func TestListCustomersSortedByName(t *testing.T) {
	st := New()
	ctx := context.Background()

	for _, c := range []models.Customer{
		{ID: "1", Name: "zeta"},
		{ID: "2", Name: "Alpha"},
		{ID: "3", Name: "miDDle"},
	} {
		require.NoError(t, st.InsertCustomer(ctx, &c))
	}

	got, err := st.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Alpha", got[0].Name)
	assert.Equal(t, "miDDle", got[1].Name)
	assert.Equal(t, "zeta", got[2].Name)
}

func TestDeleteCustomerReferentialIntegrity(t *testing.T) {
	st := New()
	ctx := context.Background()

	c := models.Customer{ID: "c-1", Name: "ACME d.o.o."}
	require.NoError(t, st.InsertCustomer(ctx, &c))

	inv := testInvoice("2026-000001", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, st.SaveInvoice(ctx, &inv))

	assert.ErrorIs(t, st.DeleteCustomer(ctx, "c-1"), store.ErrReferentialIntegrity)

	require.NoError(t, st.DeleteInvoice(ctx, inv.Number))
	assert.NoError(t, st.DeleteCustomer(ctx, "c-1"))
}

func TestSaveInvoiceIdempotent(t *testing.T) {
	st := New()
	ctx := context.Background()
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	inv := testInvoice("2026-000001", date)
	require.NoError(t, st.SaveInvoice(ctx, &inv))

	// Same content, same number: a no-op, not an error.
	same := testInvoice("2026-000001", date)
	assert.NoError(t, st.SaveInvoice(ctx, &same))

	// Different content under the same number is a conflict.
	changed := testInvoice("2026-000001", date)
	changed.Items[0].Quantity = decimal.NewFromInt(3)
	assert.ErrorIs(t, st.SaveInvoice(ctx, &changed), store.ErrConflict)
}

func TestGetInvoice(t *testing.T) {
	st := New()
	ctx := context.Background()

	inv := testInvoice("2026-000001", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, st.SaveInvoice(ctx, &inv))

	got, err := st.GetInvoice(ctx, "2026-000001")
	require.NoError(t, err)
	assert.Equal(t, "ACME d.o.o.", got.Customer.Name)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Totals.Grand.Equal(decimal.RequireFromString("240.00")))

	got.Items[0].Description = "tampered"
	again, err := st.GetInvoice(ctx, "2026-000001")
	require.NoError(t, err)
	assert.Equal(t, "Consulting", again.Items[0].Description, "reads hand out copies")

	_, err = st.GetInvoice(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSearchInvoices(t *testing.T) {
	st := New()
	ctx := context.Background()

	jan := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)

	a := testInvoice("2026-000001", jan)
	b := testInvoice("2026-000002", mar)
	c := testInvoice("2026-000003", jun)
	c.Customer.ID = "c-2"
	c.Customer.Name = "Beta d.o.o."
	for _, inv := range []*models.Invoice{&a, &b, &c} {
		require.NoError(t, st.SaveInvoice(ctx, inv))
	}

	t.Run("ordered newest first", func(t *testing.T) {
		got, err := st.SearchInvoices(ctx, models.InvoiceFilter{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "2026-000003", got[0].Number)
		assert.Equal(t, "2026-000002", got[1].Number)
		assert.Equal(t, "2026-000001", got[2].Number)
	})

	t.Run("by customer name substring", func(t *testing.T) {
		got, err := st.SearchInvoices(ctx, models.InvoiceFilter{CustomerName: "acme"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by exact number", func(t *testing.T) {
		got, err := st.SearchInvoices(ctx, models.InvoiceFilter{Number: "2026-000002"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "2026-000002", got[0].Number)
	})

	t.Run("by date range", func(t *testing.T) {
		from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		got, err := st.SearchInvoices(ctx, models.InvoiceFilter{From: &from, To: &to})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "2026-000002", got[0].Number)
	})

	t.Run("empty range is empty result, not an error", func(t *testing.T) {
		from := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		got, err := st.SearchInvoices(ctx, models.InvoiceFilter{From: &from})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("same-date ties break on number descending", func(t *testing.T) {
		d := testInvoice("2026-000004", jun)
		require.NoError(t, st.SaveInvoice(ctx, &d))
		got, err := st.SearchInvoices(ctx, models.InvoiceFilter{})
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(got), 2)
		assert.Equal(t, "2026-000004", got[0].Number)
		assert.Equal(t, "2026-000003", got[1].Number)
	})
}

func TestDeleteInvoice(t *testing.T) {
	st := New()
	ctx := context.Background()

	inv := testInvoice("2026-000001", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, st.SaveInvoice(ctx, &inv))

	require.NoError(t, st.DeleteInvoice(ctx, "2026-000001"))
	_, err := st.GetInvoice(ctx, "2026-000001")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, st.DeleteInvoice(ctx, "2026-000001"), store.ErrNotFound)
}

func TestCountInvoicesForCustomer(t *testing.T) {
	st := New()
	ctx := context.Background()

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := testInvoice("2026-000001", date)
	b := testInvoice("2026-000002", date)
	require.NoError(t, st.SaveInvoice(ctx, &a))
	require.NoError(t, st.SaveInvoice(ctx, &b))

	n, err := st.CountInvoicesForCustomer(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = st.CountInvoicesForCustomer(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCompareAndSwap(t *testing.T) {
	st := New()
	ctx := context.Background()

	v, err := st.LastValue(ctx, "2026")
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, st.CompareAndSwap(ctx, "2026", 0, 1))
	assert.ErrorIs(t, st.CompareAndSwap(ctx, "2026", 0, 1), store.ErrConflict)
	require.NoError(t, st.CompareAndSwap(ctx, "2026", 1, 2))

	// Scopes are independent counters.
	require.NoError(t, st.CompareAndSwap(ctx, "2027", 0, 1))

	v, err = st.LastValue(ctx, "2026")
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}

func TestCompany(t *testing.T) {
	st := New()
	ctx := context.Background()

	_, err := st.GetCompany(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	company := models.Company{Name: "Moja Firma d.o.o.", TaxID: "123456789", VATRegistered: true}
	require.NoError(t, st.PutCompany(ctx, &company))

	got, err := st.GetCompany(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Moja Firma d.o.o.", got.Name)
	assert.True(t, got.VATRegistered)
}

func TestContextCancellation(t *testing.T) {
	st := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.ListCustomers(ctx)
	assert.Error(t, err)

	deadlineCtx, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	_, err = st.ListCustomers(deadlineCtx)
	assert.ErrorIs(t, err, store.ErrTimeout)
}
