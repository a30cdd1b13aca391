package directory

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"fakturnik/pkg/models"
)

// emailPattern is deliberately loose: it only rejects strings that
// cannot possibly be an address. Deliverability is not our problem.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// validateCustomer checks every invariant and reports all violations
// at once, so the operator can fix the whole form in one pass.
func validateCustomer(c *models.Customer, opts Options) error {
	var verr models.ValidationError

	if strings.TrimSpace(c.Name) == "" {
		verr.Add("name", c.Name, "name must not be empty")
	}

	if !c.Kind.Valid() {
		verr.Add("kind", string(c.Kind), "kind must be INDIVIDUAL or LEGAL_ENTITY")
	}

	if c.Kind == models.KindLegalEntity && c.TaxID == "" {
		verr.Add("tax_id", c.TaxID, "tax id is required for legal entities")
	}
	if c.TaxID != "" {
		if !digitsOnly(c.TaxID) {
			verr.Add("tax_id", c.TaxID, "tax id must contain digits only")
		} else if len(c.TaxID) != opts.TaxIDLength {
			verr.Add("tax_id", c.TaxID, fmt.Sprintf("tax id must be %d digits", opts.TaxIDLength))
		}
	}

	if c.NationalID != "" {
		if !digitsOnly(c.NationalID) {
			verr.Add("national_id", c.NationalID, "national id must contain digits only")
		} else if len(c.NationalID) != opts.NationalIDLength {
			verr.Add("national_id", c.NationalID, fmt.Sprintf("national id must be %d digits", opts.NationalIDLength))
		}
	}

	if c.Email != "" && !emailPattern.MatchString(c.Email) {
		verr.Add("email", c.Email, "email address is not valid")
	}

	return verr.Err()
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
