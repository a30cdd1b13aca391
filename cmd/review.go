package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fakturnik/internal/ledger"
	"fakturnik/internal/logger"
	"fakturnik/pkg/models"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Search and review past invoices",
	Long: `Lists invoice summaries ordered by invoice date, newest first. All
filters are optional; a date range that contains no invoices yields an
empty list, not an error.`,
	Example: `  # Everything, newest first
  fakturnik review

  # By customer name and date range
  fakturnik review --customer acme --from 2026-01-01 --to 2026-12-31

  # One specific invoice
  fakturnik review --number 2026-000042`,
	RunE: runReview,
}

var reviewShowCmd = &cobra.Command{
	Use:   "show <invoice-number>",
	Short: "Print a full invoice (for reprint or export)",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewShow,
}

var reviewDeleteCmd = &cobra.Command{
	Use:   "delete <invoice-number>",
	Short: "Delete an invoice; its number stays retired forever",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewDelete,
}

var reviewCopyCmd = &cobra.Command{
	Use:   "copy <invoice-number>",
	Short: "Copy an invoice into a fresh draft file for correction",
	Long: `Finalized invoices are immutable. To correct one, copy it into a new
draft file, edit the file, and finalize it as a new, separately
numbered document with 'fakturnik invoice create'.`,
	Args: cobra.ExactArgs(1),
	RunE: runReviewCopy,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewShowCmd, reviewDeleteCmd, reviewCopyCmd)

	reviewCmd.Flags().String("customer", "", "Customer name substring")
	reviewCmd.Flags().String("number", "", "Exact invoice number")
	reviewCmd.Flags().String("from", "", "Invoice date lower bound (YYYY-MM-DD)")
	reviewCmd.Flags().String("to", "", "Invoice date upper bound (YYYY-MM-DD)")
	reviewCmd.PersistentFlags().Int("timeout", 30, "Operation timeout in seconds")
	reviewShowCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	reviewCopyCmd.Flags().StringP("output", "o", "", "Draft file path (default: stdout)")
}

func runReview(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("review")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	filter := models.InvoiceFilter{}
	filter.CustomerName, _ = cmd.Flags().GetString("customer")
	filter.Number, _ = cmd.Flags().GetString("number")

	if raw, _ := cmd.Flags().GetString("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("--from is not a valid date (want YYYY-MM-DD): %q", raw)
		}
		filter.From = &t
	}
	if raw, _ := cmd.Flags().GetString("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("--to is not a valid date (want YYYY-MM-DD): %q", raw)
		}
		// Make the upper bound inclusive for the whole day.
		t = t.Add(24*time.Hour - time.Nanosecond)
		filter.To = &t
	}

	summaries, err := eng.store.SearchInvoices(ctx, filter)
	if err != nil {
		return translateEngineError(err)
	}
	return outputJSON(summaries, "")
}

func runReviewShow(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("review")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	invoice, err := eng.store.GetInvoice(ctx, args[0])
	if err != nil {
		return translateEngineError(err)
	}

	outputPath, _ := cmd.Flags().GetString("output")
	return outputJSON(invoice, outputPath)
}

func runReviewDelete(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("review")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	if err := eng.store.DeleteInvoice(ctx, args[0]); err != nil {
		return translateEngineError(err)
	}

	log.Info().Str("number", args[0]).Msg("Invoice deleted; number stays retired")
	fmt.Println("invoice deleted")
	return nil
}

func runReviewCopy(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("review")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	invoice, err := eng.store.GetInvoice(ctx, args[0])
	if err != nil {
		return translateEngineError(err)
	}

	draft := eng.composer.CopyToDraft(invoice)

	items := make([]ledger.ItemInput, 0, len(draft.Items()))
	for _, li := range draft.Items() {
		items = append(items, ledger.ItemInput{
			Description: li.Description,
			Unit:        li.Unit,
			Quantity:    li.Quantity.String(),
			UnitPrice:   li.UnitPrice.String(),
			TaxRate:     li.TaxRate.String(),
		})
	}
	file := draftFile{
		CustomerID:    invoice.Customer.ID,
		InvoiceDate:   invoice.InvoiceDate.Format("2006-01-02"),
		SupplyDate:    invoice.SupplyDate.Format("2006-01-02"),
		PlaceOfSupply: invoice.PlaceOfSupply,
		Description:   invoice.Description,
		Items:         items,
	}

	outputPath, _ := cmd.Flags().GetString("output")
	return outputJSON(file, outputPath)
}
