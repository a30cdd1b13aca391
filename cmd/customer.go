package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"fakturnik/internal/logger"
	"fakturnik/pkg/models"
)

var customerCmd = &cobra.Command{
	Use:   "customer",
	Short: "Manage the customer directory (komitenti)",
}

var customerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a customer",
	Example: `  fakturnik customer add --name "ACME d.o.o." --kind legal --tax-id 123456789 --national-id 12345678
  fakturnik customer add --name "Petar Petrović" --email petar@example.com`,
	RunE: runCustomerAdd,
}

var customerFindCmd = &cobra.Command{
	Use:   "find [query]",
	Short: "Search customers by name, national id or tax id",
	Long: `Case-insensitive substring search over name, national id (MB) and
tax id (PIB). Exact matches sort first. Without a query, every
customer is listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCustomerFind,
}

var customerUpdateCmd = &cobra.Command{
	Use:   "update <customer-id>",
	Short: "Update customer fields (unset flags keep their value)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomerUpdate,
}

var customerDeleteCmd = &cobra.Command{
	Use:   "delete <customer-id>",
	Short: "Delete a customer not referenced by any invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomerDelete,
}

func init() {
	rootCmd.AddCommand(customerCmd)
	customerCmd.AddCommand(customerAddCmd, customerFindCmd, customerUpdateCmd, customerDeleteCmd)

	for _, c := range []*cobra.Command{customerAddCmd, customerUpdateCmd} {
		c.Flags().String("name", "", "Legal or person name")
		c.Flags().String("address", "", "Street address")
		c.Flags().String("city", "", "City")
		c.Flags().String("tax-id", "", "Tax id (PIB)")
		c.Flags().String("national-id", "", "National registration number (MB)")
		c.Flags().String("email", "", "E-mail address")
		c.Flags().String("kind", "", "Customer kind: individual or legal")
	}
	customerCmd.PersistentFlags().Int("timeout", 30, "Operation timeout in seconds")
}

func runCustomerAdd(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("customer")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	customer := models.Customer{}
	customer.Name, _ = cmd.Flags().GetString("name")
	customer.Address, _ = cmd.Flags().GetString("address")
	customer.City, _ = cmd.Flags().GetString("city")
	customer.TaxID, _ = cmd.Flags().GetString("tax-id")
	customer.NationalID, _ = cmd.Flags().GetString("national-id")
	customer.Email, _ = cmd.Flags().GetString("email")
	kind, _ := cmd.Flags().GetString("kind")
	customer.Kind = parseKind(kind)

	id, err := eng.directory.Create(ctx, customer)
	if err != nil {
		return translateEngineError(err)
	}

	created, err := eng.directory.Get(ctx, id)
	if err != nil {
		return translateEngineError(err)
	}
	return outputJSON(created, "")
}

func runCustomerFind(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("customer")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	query := ""
	if len(args) == 1 {
		query = args[0]
	}

	customers, err := eng.directory.Find(ctx, query)
	if err != nil {
		return translateEngineError(err)
	}
	return outputJSON(customers, "")
}

func runCustomerUpdate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("customer")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	update := models.CustomerUpdate{}
	if cmd.Flags().Changed("name") {
		v, _ := cmd.Flags().GetString("name")
		update.Name = &v
	}
	if cmd.Flags().Changed("address") {
		v, _ := cmd.Flags().GetString("address")
		update.Address = &v
	}
	if cmd.Flags().Changed("city") {
		v, _ := cmd.Flags().GetString("city")
		update.City = &v
	}
	if cmd.Flags().Changed("tax-id") {
		v, _ := cmd.Flags().GetString("tax-id")
		update.TaxID = &v
	}
	if cmd.Flags().Changed("national-id") {
		v, _ := cmd.Flags().GetString("national-id")
		update.NationalID = &v
	}
	if cmd.Flags().Changed("email") {
		v, _ := cmd.Flags().GetString("email")
		update.Email = &v
	}
	if cmd.Flags().Changed("kind") {
		v, _ := cmd.Flags().GetString("kind")
		kind := parseKind(v)
		update.Kind = &kind
	}

	if err := eng.directory.Update(ctx, args[0], update); err != nil {
		return translateEngineError(err)
	}

	updated, err := eng.directory.Get(ctx, args[0])
	if err != nil {
		return translateEngineError(err)
	}
	return outputJSON(updated, "")
}

func runCustomerDelete(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("customer")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	if err := eng.directory.Delete(ctx, args[0]); err != nil {
		return translateEngineError(err)
	}

	fmt.Println("customer deleted")
	return nil
}

// parseKind maps operator shorthand onto the model's kind values.
// Anything unrecognized passes through and fails validation with a
// proper field error.
func parseKind(raw string) models.CustomerKind {
	switch raw {
	case "", "individual":
		return models.KindIndividual
	case "legal", "legal-entity":
		return models.KindLegalEntity
	default:
		return models.CustomerKind(raw)
	}
}
