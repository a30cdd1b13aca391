package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fakturnik/internal/store"
	"fakturnik/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testCustomer() models.Customer {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return models.Customer{
		ID:         "c-1",
		Name:       "ACME d.o.o.",
		Address:    "Bulevar 1",
		City:       "Beograd",
		TaxID:      "123456789",
		NationalID: "12345678",
		Email:      "office@acme.rs",
		Kind:       models.KindLegalEntity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func testInvoice(number string, date time.Time) models.Invoice {
	return models.Invoice{
		Number:        number,
		Customer:      testCustomer(),
		InvoiceDate:   date,
		SupplyDate:    date,
		PlaceOfSupply: "Beograd",
		Description:   "March services",
		Items: []models.LineItem{
			{
				Description: "Consulting",
				Unit:        "h",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.RequireFromString("100.00"),
				TaxRate:     decimal.NewFromInt(20),
			},
			{
				Description: "Hosting",
				Unit:        "month",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.RequireFromString("50.00"),
				TaxRate:     decimal.NewFromInt(10),
			},
		},
		Totals: models.Totals{
			Net:   decimal.RequireFromString("250.00"),
			Tax:   decimal.RequireFromString("45.00"),
			Grand: decimal.RequireFromString("295.00"),
		},
		Currency:  "RSD",
		CreatedAt: date,
	}
}

func TestCustomerRoundtrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	c := testCustomer()
	require.NoError(t, st.InsertCustomer(ctx, &c))

	assert.ErrorIs(t, st.InsertCustomer(ctx, &c), store.ErrDuplicate)

	got, err := st.GetCustomer(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Kind, got.Kind)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))

	got.City = "Novi Sad"
	got.UpdatedAt = time.Now().UTC()
	require.NoError(t, st.UpdateCustomer(ctx, got))

	again, err := st.GetCustomer(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Novi Sad", again.City)

	_, err = st.GetCustomer(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	ghost := testCustomer()
	ghost.ID = "ghost"
	assert.ErrorIs(t, st.UpdateCustomer(ctx, &ghost), store.ErrNotFound)
}

func TestListCustomersOrdering(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for i, name := range []string{"zeta", "Alpha", "miDDle"} {
		c := testCustomer()
		c.ID = string(rune('a' + i))
		c.Name = name
		c.NationalID = ""
		c.TaxID = ""
		require.NoError(t, st.InsertCustomer(ctx, &c))
	}

	got, err := st.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Alpha", got[0].Name)
	assert.Equal(t, "miDDle", got[1].Name)
	assert.Equal(t, "zeta", got[2].Name)
}

func TestInvoiceRoundtrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	inv := testInvoice("2026-000001", date)
	require.NoError(t, st.SaveInvoice(ctx, &inv))

	got, err := st.GetInvoice(ctx, "2026-000001")
	require.NoError(t, err)
	assert.True(t, inv.Equal(got), "the stored invoice reads back identically")
	assert.Equal(t, "ACME d.o.o.", got.Customer.Name)
	assert.Equal(t, "office@acme.rs", got.Customer.Email, "the full customer snapshot survives")
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Consulting", got.Items[0].Description)
	assert.Equal(t, "Hosting", got.Items[1].Description)
	assert.True(t, got.Totals.Grand.Equal(decimal.RequireFromString("295.00")))
}

func TestSaveInvoiceIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	inv := testInvoice("2026-000001", date)
	require.NoError(t, st.SaveInvoice(ctx, &inv))

	same := testInvoice("2026-000001", date)
	assert.NoError(t, st.SaveInvoice(ctx, &same), "re-saving identical content is a no-op")

	changed := testInvoice("2026-000001", date)
	changed.Items[0].UnitPrice = decimal.RequireFromString("120.00")
	assert.ErrorIs(t, st.SaveInvoice(ctx, &changed), store.ErrConflict)
}

func TestDeleteInvoiceCascadesItems(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	inv := testInvoice("2026-000001", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, st.SaveInvoice(ctx, &inv))
	require.NoError(t, st.DeleteInvoice(ctx, "2026-000001"))

	_, err := st.GetInvoice(ctx, "2026-000001")
	assert.ErrorIs(t, err, store.ErrNotFound)

	var leftover int
	require.NoError(t, st.db.Get(&leftover, `SELECT COUNT(*) FROM invoice_items WHERE invoice_number = ?`, "2026-000001"))
	assert.Zero(t, leftover, "items go with the invoice")

	assert.ErrorIs(t, st.DeleteInvoice(ctx, "2026-000001"), store.ErrNotFound)
}

func TestSearchInvoices(t *testing.T) {
	st := openTestStore(t)
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
		assert.Equal(t, "2026-000001", got[2].Number)
	})

	t.Run("customer name is a case-insensitive substring", func(t *testing.T) {
		got, err := st.SearchInvoices(ctx, models.InvoiceFilter{CustomerName: "acme"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("date range bounds are inclusive", func(t *testing.T) {
		got, err := st.SearchInvoices(ctx, models.InvoiceFilter{From: &mar, To: &mar})
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
}

func TestCountInvoicesForCustomer(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	a := testInvoice("2026-000001", date)
	b := testInvoice("2026-000002", date)
	require.NoError(t, st.SaveInvoice(ctx, &a))
	require.NoError(t, st.SaveInvoice(ctx, &b))

	n, err := st.CountInvoicesForCustomer(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDeleteCustomerReferentialIntegrity(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	c := testCustomer()
	require.NoError(t, st.InsertCustomer(ctx, &c))

	inv := testInvoice("2026-000001", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, st.SaveInvoice(ctx, &inv))

	assert.ErrorIs(t, st.DeleteCustomer(ctx, "c-1"), store.ErrReferentialIntegrity)

	require.NoError(t, st.DeleteInvoice(ctx, "2026-000001"))
	assert.NoError(t, st.DeleteCustomer(ctx, "c-1"))
	assert.ErrorIs(t, st.DeleteCustomer(ctx, "c-1"), store.ErrNotFound)
}

func TestCompareAndSwap(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	v, err := st.LastValue(ctx, "2026")
	require.NoError(t, err)
	assert.Zero(t, v, "an unseen scope starts at zero")

	require.NoError(t, st.CompareAndSwap(ctx, "2026", 0, 1))
	assert.ErrorIs(t, st.CompareAndSwap(ctx, "2026", 0, 1), store.ErrConflict)
	require.NoError(t, st.CompareAndSwap(ctx, "2026", 1, 2))

	require.NoError(t, st.CompareAndSwap(ctx, "2027", 0, 1))

	v, err = st.LastValue(ctx, "2026")
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}

func TestCompanyUpsert(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.GetCompany(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	company := models.Company{
		Name:           "Moja Firma d.o.o.",
		TaxID:          "123456789",
		NationalID:     "12345678",
		VATRegistered:  true,
		BankName:       "Banka Intesa",
		BankAccountRSD: "160-0000000000000-00",
		UpdatedAt:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.PutCompany(ctx, &company))

	got, err := st.GetCompany(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Moja Firma d.o.o.", got.Name)
	assert.True(t, got.VATRegistered)

	company.Name = "Moja Firma Plus d.o.o."
	company.VATRegistered = false
	require.NoError(t, st.PutCompany(ctx, &company))

	got, err = st.GetCompany(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Moja Firma Plus d.o.o.", got.Name)
	assert.False(t, got.VATRegistered, "there is always exactly one profile row")
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fakturnik.db")
	ctx := context.Background()
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	st, err := Open(path)
	require.NoError(t, err)
	inv := testInvoice("2026-000001", date)
	require.NoError(t, st.SaveInvoice(ctx, &inv))
	require.NoError(t, st.CompareAndSwap(ctx, "2026", 0, 1))
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()

	got, err := st.GetInvoice(ctx, "2026-000001")
	require.NoError(t, err)
	assert.True(t, inv.Equal(got))

	v, err := st.LastValue(ctx, "2026")
	require.NoError(t, err)
	assert.EqualValues(t, 1, v, "the counter survives a restart")
}
