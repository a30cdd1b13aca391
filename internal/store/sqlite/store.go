// Package sqlite provides the bundled durable Store on a single sqlite
// database file. It uses the CGO-free modernc driver behind sqlx.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"fakturnik/internal/store"
	"fakturnik/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL DEFAULT '',
	tax_id      TEXT NOT NULL DEFAULT '',
	national_id TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS invoices (
	number          TEXT PRIMARY KEY,
	customer_id     TEXT NOT NULL,
	customer_json   TEXT NOT NULL,
	customer_name   TEXT NOT NULL,
	invoice_date    TEXT NOT NULL,
	supply_date     TEXT NOT NULL,
	place_of_supply TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	net_total       TEXT NOT NULL,
	tax_total       TEXT NOT NULL,
	grand_total     TEXT NOT NULL,
	currency        TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invoices_date ON invoices(invoice_date);
CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices(customer_id);

CREATE TABLE IF NOT EXISTS invoice_items (
	invoice_number TEXT NOT NULL REFERENCES invoices(number) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	description    TEXT NOT NULL,
	unit           TEXT NOT NULL DEFAULT '',
	quantity       TEXT NOT NULL,
	unit_price     TEXT NOT NULL,
	tax_rate       TEXT NOT NULL,
	PRIMARY KEY (invoice_number, position)
);

CREATE TABLE IF NOT EXISTS sequences (
	scope      TEXT PRIMARY KEY,
	last_value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS company (
	id               INTEGER PRIMARY KEY CHECK (id = 1),
	name             TEXT NOT NULL,
	address          TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	email            TEXT NOT NULL DEFAULT '',
	national_id      TEXT NOT NULL DEFAULT '',
	tax_id           TEXT NOT NULL DEFAULT '',
	vat_registered   INTEGER NOT NULL DEFAULT 0,
	bank_name        TEXT NOT NULL DEFAULT '',
	bank_account_rsd TEXT NOT NULL DEFAULT '',
	bank_account_eur TEXT NOT NULL DEFAULT '',
	logo_path        TEXT NOT NULL DEFAULT '',
	updated_at       TEXT NOT NULL
);
`

// timeLayout keeps timestamps lexically comparable so date-range
// filters can run as plain string comparisons in SQL.
const timeLayout = time.RFC3339Nano

// Store is a sqlite-backed store.Store.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single writer keeps the database simple and is enough for a
	// single-operator tool; busy_timeout covers short overlaps.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

type customerRow struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	Address    string `db:"address"`
	City       string `db:"city"`
	TaxID      string `db:"tax_id"`
	NationalID string `db:"national_id"`
	Email      string `db:"email"`
	Kind       string `db:"kind"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
}

func (r customerRow) model() models.Customer {
	created, _ := time.Parse(timeLayout, r.CreatedAt)
	updated, _ := time.Parse(timeLayout, r.UpdatedAt)
	return models.Customer{
		ID:         r.ID,
		Name:       r.Name,
		Address:    r.Address,
		City:       r.City,
		TaxID:      r.TaxID,
		NationalID: r.NationalID,
		Email:      r.Email,
		Kind:       models.CustomerKind(r.Kind),
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
}

func (s *Store) InsertCustomer(ctx context.Context, customer *models.Customer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, address, city, tax_id, national_id, email, kind, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.ID, customer.Name, customer.Address, customer.City,
		customer.TaxID, customer.NationalID, customer.Email, string(customer.Kind),
		customer.CreatedAt.Format(timeLayout), customer.UpdatedAt.Format(timeLayout))
	return translate(err)
}

func (s *Store) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = ?, address = ?, city = ?, tax_id = ?, national_id = ?, email = ?, kind = ?, updated_at = ?
		WHERE id = ?`,
		customer.Name, customer.Address, customer.City, customer.TaxID,
		customer.NationalID, customer.Email, string(customer.Kind),
		customer.UpdatedAt.Format(timeLayout), customer.ID)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	defer tx.Rollback()

	var refs int
	if err := tx.GetContext(ctx, &refs, `SELECT COUNT(*) FROM invoices WHERE customer_id = ?`, id); err != nil {
		return translate(err)
	}
	if refs > 0 {
		return store.ErrReferentialIntegrity
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return translate(tx.Commit())
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var row customerRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM customers WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, translate(err)
	}
	c := row.model()
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var rows []customerRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM customers ORDER BY name COLLATE NOCASE`); err != nil {
		return nil, translate(err)
	}
	out := make([]models.Customer, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *Store) SaveInvoice(ctx context.Context, invoice *models.Invoice) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	defer tx.Rollback()

	existing, err := loadInvoice(ctx, tx, invoice.Number)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return translate(err)
	}
	if existing != nil {
		if existing.Equal(invoice) {
			return nil // idempotent re-save
		}
		return store.ErrConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (number, customer_id, customer_json, customer_name, invoice_date, supply_date,
			place_of_supply, description, net_total, tax_total, grand_total, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.Number, invoice.Customer.ID, marshalCustomer(invoice.Customer), invoice.Customer.Name,
		invoice.InvoiceDate.Format(timeLayout), invoice.SupplyDate.Format(timeLayout),
		invoice.PlaceOfSupply, invoice.Description,
		invoice.Totals.Net.String(), invoice.Totals.Tax.String(), invoice.Totals.Grand.String(),
		invoice.Currency, invoice.CreatedAt.Format(timeLayout))
	if err != nil {
		return translate(err)
	}

	for i, li := range invoice.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO invoice_items (invoice_number, position, description, unit, quantity, unit_price, tax_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			invoice.Number, i, li.Description, li.Unit,
			li.Quantity.String(), li.UnitPrice.String(), li.TaxRate.String())
		if err != nil {
			return translate(err)
		}
	}

	return translate(tx.Commit())
}

func (s *Store) GetInvoice(ctx context.Context, number string) (*models.Invoice, error) {
	inv, err := loadInvoice(ctx, s.db, number)
	if err != nil {
		return nil, translate(err)
	}
	return inv, nil
}

func (s *Store) SearchInvoices(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceSummary, error) {
	query := `SELECT number, customer_name, invoice_date, grand_total, currency FROM invoices WHERE 1=1`
	args := []interface{}{}
	if filter.Number != "" {
		query += ` AND number = ?`
		args = append(args, filter.Number)
	}
	if filter.CustomerName != "" {
		query += ` AND customer_name LIKE ? COLLATE NOCASE`
		args = append(args, "%"+filter.CustomerName+"%")
	}
	if filter.From != nil {
		query += ` AND invoice_date >= ?`
		args = append(args, filter.From.Format(timeLayout))
	}
	if filter.To != nil {
		query += ` AND invoice_date <= ?`
		args = append(args, filter.To.Format(timeLayout))
	}
	query += ` ORDER BY invoice_date DESC, number DESC`

	type summaryRow struct {
		Number       string `db:"number"`
		CustomerName string `db:"customer_name"`
		InvoiceDate  string `db:"invoice_date"`
		GrandTotal   string `db:"grand_total"`
		Currency     string `db:"currency"`
	}
	var rows []summaryRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, translate(err)
	}

	out := make([]models.InvoiceSummary, len(rows))
	for i, r := range rows {
		date, _ := time.Parse(timeLayout, r.InvoiceDate)
		grand, _ := decimal.NewFromString(r.GrandTotal)
		out[i] = models.InvoiceSummary{
			Number:       r.Number,
			CustomerName: r.CustomerName,
			InvoiceDate:  date,
			GrandTotal:   grand,
			Currency:     r.Currency,
		}
	}
	return out, nil
}

func (s *Store) DeleteInvoice(ctx context.Context, number string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE number = ?`, number)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	// items go with the invoice via ON DELETE CASCADE
	return nil
}

func (s *Store) CountInvoicesForCustomer(ctx context.Context, customerID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM invoices WHERE customer_id = ?`, customerID); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (s *Store) LastValue(ctx context.Context, scope string) (int64, error) {
	var v int64
	err := s.db.GetContext(ctx, &v, `SELECT last_value FROM sequences WHERE scope = ?`, scope)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, translate(err)
	}
	return v, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, scope string, old, next int64) error {
	if old == 0 {
		// Seed the scope so the guarded update below has a row to hit.
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO sequences (scope, last_value) VALUES (?, 0) ON CONFLICT(scope) DO NOTHING`,
			scope); err != nil {
			return translate(err)
		}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sequences SET last_value = ? WHERE scope = ? AND last_value = ?`,
		next, scope, old)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err)
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) GetCompany(ctx context.Context) (*models.Company, error) {
	type companyRow struct {
		ID             int    `db:"id"`
		Name           string `db:"name"`
		Address        string `db:"address"`
		City           string `db:"city"`
		Email          string `db:"email"`
		NationalID     string `db:"national_id"`
		TaxID          string `db:"tax_id"`
		VATRegistered  bool   `db:"vat_registered"`
		BankName       string `db:"bank_name"`
		BankAccountRSD string `db:"bank_account_rsd"`
		BankAccountEUR string `db:"bank_account_eur"`
		LogoPath       string `db:"logo_path"`
		UpdatedAt      string `db:"updated_at"`
	}
	var row companyRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM company WHERE id = 1`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, translate(err)
	}
	updated, _ := time.Parse(timeLayout, row.UpdatedAt)
	return &models.Company{
		Name:           row.Name,
		Address:        row.Address,
		City:           row.City,
		Email:          row.Email,
		NationalID:     row.NationalID,
		TaxID:          row.TaxID,
		VATRegistered:  row.VATRegistered,
		BankName:       row.BankName,
		BankAccountRSD: row.BankAccountRSD,
		BankAccountEUR: row.BankAccountEUR,
		LogoPath:       row.LogoPath,
		UpdatedAt:      updated,
	}, nil
}

func (s *Store) PutCompany(ctx context.Context, company *models.Company) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO company (id, name, address, city, email, national_id, tax_id, vat_registered,
			bank_name, bank_account_rsd, bank_account_eur, logo_path, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, address = excluded.address, city = excluded.city,
			email = excluded.email, national_id = excluded.national_id, tax_id = excluded.tax_id,
			vat_registered = excluded.vat_registered, bank_name = excluded.bank_name,
			bank_account_rsd = excluded.bank_account_rsd, bank_account_eur = excluded.bank_account_eur,
			logo_path = excluded.logo_path, updated_at = excluded.updated_at`,
		company.Name, company.Address, company.City, company.Email,
		company.NationalID, company.TaxID, company.VATRegistered,
		company.BankName, company.BankAccountRSD, company.BankAccountEUR,
		company.LogoPath, company.UpdatedAt.Format(timeLayout))
	return translate(err)
}

type queryer interface {
	sqlx.QueryerContext
}

func loadInvoice(ctx context.Context, q queryer, number string) (*models.Invoice, error) {
	type invoiceRow struct {
		Number        string `db:"number"`
		CustomerID    string `db:"customer_id"`
		CustomerJSON  string `db:"customer_json"`
		CustomerName  string `db:"customer_name"`
		InvoiceDate   string `db:"invoice_date"`
		SupplyDate    string `db:"supply_date"`
		PlaceOfSupply string `db:"place_of_supply"`
		Description   string `db:"description"`
		NetTotal      string `db:"net_total"`
		TaxTotal      string `db:"tax_total"`
		GrandTotal    string `db:"grand_total"`
		Currency      string `db:"currency"`
		CreatedAt     string `db:"created_at"`
	}
	var row invoiceRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT * FROM invoices WHERE number = ?`, number); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	type itemRow struct {
		Position    int    `db:"position"`
		Description string `db:"description"`
		Unit        string `db:"unit"`
		Quantity    string `db:"quantity"`
		UnitPrice   string `db:"unit_price"`
		TaxRate     string `db:"tax_rate"`
	}
	var itemRows []itemRow
	if err := sqlx.SelectContext(ctx, q, &itemRows,
		`SELECT position, description, unit, quantity, unit_price, tax_rate
		 FROM invoice_items WHERE invoice_number = ? ORDER BY position`, number); err != nil {
		return nil, err
	}

	items := make([]models.LineItem, len(itemRows))
	for i, r := range itemRows {
		qty, _ := decimal.NewFromString(r.Quantity)
		price, _ := decimal.NewFromString(r.UnitPrice)
		rate, _ := decimal.NewFromString(r.TaxRate)
		items[i] = models.LineItem{
			Description: r.Description,
			Unit:        r.Unit,
			Quantity:    qty,
			UnitPrice:   price,
			TaxRate:     rate,
		}
	}

	invoiceDate, _ := time.Parse(timeLayout, row.InvoiceDate)
	supplyDate, _ := time.Parse(timeLayout, row.SupplyDate)
	createdAt, _ := time.Parse(timeLayout, row.CreatedAt)
	net, _ := decimal.NewFromString(row.NetTotal)
	tax, _ := decimal.NewFromString(row.TaxTotal)
	grand, _ := decimal.NewFromString(row.GrandTotal)

	return &models.Invoice{
		Number:        row.Number,
		Customer:      unmarshalCustomer(row.CustomerJSON, row.CustomerID, row.CustomerName),
		InvoiceDate:   invoiceDate,
		SupplyDate:    supplyDate,
		PlaceOfSupply: row.PlaceOfSupply,
		Description:   row.Description,
		Items:         items,
		Totals:        models.Totals{Net: net, Tax: tax, Grand: grand},
		Currency:      row.Currency,
		CreatedAt:     createdAt,
	}, nil
}

// The customer snapshot travels as a JSON column; the id and name are
// duplicated into their own columns for referential checks and search.
func marshalCustomer(c models.Customer) string {
	b, _ := json.Marshal(c)
	return string(b)
}

func unmarshalCustomer(raw, id, name string) models.Customer {
	var c models.Customer
	if err := json.Unmarshal([]byte(raw), &c); err != nil || c.ID == "" {
		return models.Customer{ID: id, Name: name}
	}
	return c
}

// translate maps driver-level failures onto the store's typed errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrDuplicate
	}
	return store.TranslateContextError(err)
}

var _ store.Store = (*Store)(nil)
