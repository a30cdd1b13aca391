package models

import "time"

// Company is the operator's own firm, printed as the issuer on every
// invoice. There is exactly one company profile per installation.
type Company struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Email      string `json:"email,omitempty"`
	NationalID string `json:"national_id"` // matični broj
	TaxID      string `json:"tax_id"`      // PIB

	// VATRegistered reports whether the company is in the VAT system.
	// Companies outside it must invoice at a zero tax rate.
	VATRegistered bool `json:"vat_registered"`

	BankName       string `json:"bank_name,omitempty"`
	BankAccountRSD string `json:"bank_account_rsd,omitempty"`
	BankAccountEUR string `json:"bank_account_eur,omitempty"`
	LogoPath       string `json:"logo_path,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}
