package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fakturnik/internal/composer"
	"fakturnik/internal/directory"
	"fakturnik/internal/ledger"
	"fakturnik/internal/logger"
	"fakturnik/pkg/models"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Compose and finalize invoices",
}

var invoiceCreateCmd = &cobra.Command{
	Use:   "create <draft.json>",
	Short: "Compose an invoice from a draft file and finalize it",
	Long: `Reads a draft file, resolves the customer, validates every field and
finalizes the draft into an immutable, numbered invoice. All values in
the draft file are plain strings; parsing and validation happen in the
engine, and every violated field is reported at once.

The draft file looks like:

  {
    "customer_id": "…",            // or an inline "customer" object
    "invoice_date": "2026-08-31",
    "supply_date": "2026-08-31",
    "place_of_supply": "Beograd",
    "description": "…",
    "items": [
      {"description": "Consulting", "unit": "h",
       "quantity": "2", "unit_price": "100.00", "tax_rate": "20"}
    ]
  }

If the inline customer already exists in the directory (by the
configured match key), the existing record is used instead of
creating a duplicate.`,
	Example: `  # Finalize a draft, print the numbered invoice as JSON
  fakturnik invoice create draft.json

  # Validate and show totals plus the number that would be assigned
  fakturnik invoice create draft.json --dry-run

  # Save the finalized invoice to a file for the PDF renderer
  fakturnik invoice create draft.json -o invoice.json`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoiceCreate,
}

var invoiceNumberCmd = &cobra.Command{
	Use:   "number",
	Short: "Show the last issued and the next invoice number",
	Args:  cobra.NoArgs,
	RunE:  runInvoiceNumber,
}

// draftFile is the on-disk draft shape. Everything is a string; the
// engine does the parsing.
type draftFile struct {
	CustomerID string           `json:"customer_id,omitempty"`
	Customer   *customerPayload `json:"customer,omitempty"`

	InvoiceDate   string `json:"invoice_date"`
	SupplyDate    string `json:"supply_date,omitempty"`
	PlaceOfSupply string `json:"place_of_supply,omitempty"`
	Description   string `json:"description,omitempty"`

	Items []ledger.ItemInput `json:"items"`
}

type customerPayload struct {
	Name       string `json:"name"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	TaxID      string `json:"tax_id,omitempty"`
	NationalID string `json:"national_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	invoiceCmd.AddCommand(invoiceCreateCmd, invoiceNumberCmd)

	invoiceCreateCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	invoiceCreateCmd.Flags().Bool("dry-run", false, "Validate and show totals without finalizing")
	invoiceCmd.PersistentFlags().Int("timeout", 30, "Operation timeout in seconds")
}

func runInvoiceCreate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice")

	outputPath, _ := cmd.Flags().GetString("output")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read draft file: %w", err)
	}
	var file draftFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("draft file is not valid JSON: %w", err)
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	draft := eng.composer.NewDraft()

	if err := eng.composer.SetHeader(draft, composer.HeaderInput{
		InvoiceDate:   file.InvoiceDate,
		SupplyDate:    file.SupplyDate,
		PlaceOfSupply: file.PlaceOfSupply,
		Description:   file.Description,
	}); err != nil {
		return err
	}

	if err := attachCustomer(ctx, eng, draft, &file, log); err != nil {
		return translateEngineError(err)
	}

	for i, item := range file.Items {
		if _, err := eng.composer.AddItem(draft, item); err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
	}

	if err := eng.composer.Validate(ctx, draft); err != nil {
		return translateEngineError(err)
	}

	if dryRun {
		next, err := eng.sequencer.PeekNext(ctx)
		if err != nil {
			return translateEngineError(err)
		}
		return outputJSON(struct {
			NextNumber string        `json:"next_number"`
			Totals     models.Totals `json:"totals"`
			Currency   string        `json:"currency"`
		}{next, eng.composer.Totals(draft), eng.cfg.Currency}, outputPath)
	}

	invoice, err := eng.composer.Finalize(ctx, draft)
	if err != nil {
		return translateEngineError(err)
	}

	log.Info().
		Str("number", invoice.Number).
		Str("customer", invoice.Customer.Name).
		Str("grand_total", invoice.Totals.Grand.String()).
		Msg("Invoice created")
	return outputJSON(invoice, outputPath)
}

// attachCustomer resolves the draft's customer: by id when given,
// otherwise from the inline payload, reusing an existing directory
// record when the configured match key already knows this customer.
func attachCustomer(ctx context.Context, eng *engine, draft *composer.Draft, file *draftFile, log zerolog.Logger) error {
	switch {
	case file.CustomerID != "":
		return eng.composer.SetCustomer(ctx, draft, file.CustomerID)
	case file.Customer != nil:
		err := eng.composer.AttachNewCustomer(ctx, draft, customerFromPayload(file.Customer))
		var dup *directory.DuplicateError
		if errors.As(err, &dup) {
			log.Info().
				Str("customer_id", dup.Existing.ID).
				Str("name", dup.Existing.Name).
				Msg("Customer already in directory, using existing record")
			return eng.composer.SetCustomer(ctx, draft, dup.Existing.ID)
		}
		return err
	default:
		return fmt.Errorf("draft file needs a customer_id or an inline customer")
	}
}

func runInvoiceNumber(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	last, err := eng.sequencer.Last(ctx)
	if err != nil {
		return translateEngineError(err)
	}
	next, err := eng.sequencer.PeekNext(ctx)
	if err != nil {
		return translateEngineError(err)
	}

	return outputJSON(struct {
		LastNumber string `json:"last_number,omitempty"`
		NextNumber string `json:"next_number"`
	}{last, next}, "")
}

func customerFromPayload(p *customerPayload) models.Customer {
	return models.Customer{
		Name:       p.Name,
		Address:    p.Address,
		City:       p.City,
		TaxID:      p.TaxID,
		NationalID: p.NationalID,
		Email:      p.Email,
		Kind:       parseKind(p.Kind),
	}
}
