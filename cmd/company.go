package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"fakturnik/internal/logger"
	"fakturnik/internal/store"
	"fakturnik/pkg/models"
)

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Show or update the company profile printed on invoices",
}

var companyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the company profile",
	Args:  cobra.NoArgs,
	RunE:  runCompanyShow,
}

var companySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update company profile fields (unset flags keep their value)",
	Example: `  fakturnik company set --name "Moja Firma d.o.o." --tax-id 123456789 \
      --national-id 12345678 --vat-registered`,
	Args: cobra.NoArgs,
	RunE: runCompanySet,
}

func init() {
	rootCmd.AddCommand(companyCmd)
	companyCmd.AddCommand(companyShowCmd, companySetCmd)

	companySetCmd.Flags().String("name", "", "Company name")
	companySetCmd.Flags().String("address", "", "Street address")
	companySetCmd.Flags().String("city", "", "City")
	companySetCmd.Flags().String("email", "", "E-mail address")
	companySetCmd.Flags().String("national-id", "", "National registration number (MB)")
	companySetCmd.Flags().String("tax-id", "", "Tax id (PIB)")
	companySetCmd.Flags().Bool("vat-registered", false, "Company is in the VAT system")
	companySetCmd.Flags().String("bank-name", "", "Bank name")
	companySetCmd.Flags().String("bank-account-rsd", "", "RSD account number")
	companySetCmd.Flags().String("bank-account-eur", "", "EUR account number")
	companySetCmd.Flags().String("logo", "", "Logo file path")
	companyCmd.PersistentFlags().Int("timeout", 30, "Operation timeout in seconds")
}

func runCompanyShow(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("company")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	company, err := eng.store.GetCompany(ctx)
	if err != nil {
		return translateEngineError(err)
	}
	return outputJSON(company, "")
}

func runCompanySet(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("company")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	company, err := eng.store.GetCompany(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return translateEngineError(err)
		}
		company = &models.Company{}
	}

	setString := func(flag string, target *string) {
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetString(flag)
			*target = v
		}
	}
	setString("name", &company.Name)
	setString("address", &company.Address)
	setString("city", &company.City)
	setString("email", &company.Email)
	setString("national-id", &company.NationalID)
	setString("tax-id", &company.TaxID)
	setString("bank-name", &company.BankName)
	setString("bank-account-rsd", &company.BankAccountRSD)
	setString("bank-account-eur", &company.BankAccountEUR)
	setString("logo", &company.LogoPath)
	if cmd.Flags().Changed("vat-registered") {
		company.VATRegistered, _ = cmd.Flags().GetBool("vat-registered")
	}
	company.UpdatedAt = time.Now()

	if err := eng.store.PutCompany(ctx, company); err != nil {
		return translateEngineError(err)
	}

	log.Info().Str("name", company.Name).Msg("Company profile saved")
	return outputJSON(company, "")
}
