package models

import "time"

// CustomerKind distinguishes natural persons from registered companies.
// Legal entities are subject to stricter identification rules (a tax id
// is mandatory and must be syntactically valid).
type CustomerKind string

const (
	// KindIndividual is a natural person.
	KindIndividual CustomerKind = "INDIVIDUAL"

	// KindLegalEntity is a registered company.
	KindLegalEntity CustomerKind = "LEGAL_ENTITY"
)

// Valid reports whether the kind is one of the known values.
func (k CustomerKind) Valid() bool {
	return k == KindIndividual || k == KindLegalEntity
}

// Customer is a party an invoice can be issued to.
type Customer struct {
	// ID is assigned by the directory on create and never changes.
	ID string `json:"id"`

	Name       string       `json:"name"` // legal or person name
	Address    string       `json:"address,omitempty"`
	City       string       `json:"city,omitempty"`
	TaxID      string       `json:"tax_id,omitempty"`      // PIB; mandatory for legal entities
	NationalID string       `json:"national_id,omitempty"` // matični broj / registration number
	Email      string       `json:"email,omitempty"`
	Kind       CustomerKind `json:"kind"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CustomerUpdate carries a partial update for a customer. Nil fields
// are left unchanged.
type CustomerUpdate struct {
	Name       *string
	Address    *string
	City       *string
	TaxID      *string
	NationalID *string
	Email      *string
	Kind       *CustomerKind
}
