package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"telecalc/internal/pricing"
	"telecalc/internal/proration"
)

func newPriceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Quote a plan: discount, VAT and contract total",
		Example: `  # 20 JOD net, 10% off, 12 month contract
  telecalc price --amount 20 --discount 10 --months 12 --lang en

  # Advertised VAT-inclusive price
  telecalc price --amount 23.2 --basis gross --discount 25 --months 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, _ := cmd.Flags().GetFloat64("amount")
			basisFlag, _ := cmd.Flags().GetString("basis")
			discount, _ := cmd.Flags().GetFloat64("discount")
			vat, _ := cmd.Flags().GetFloat64("vat")
			months, _ := cmd.Flags().GetInt("months")
			langFlag, _ := cmd.Flags().GetString("lang")
			asJSON, _ := cmd.Flags().GetBool("json")

			basis, err := pricing.ParseBasis(basisFlag)
			if err != nil {
				return err
			}
			lang, err := proration.ParseLanguage(langFlag)
			if err != nil {
				return err
			}

			q, err := pricing.Calculate(pricing.Input{
				Amount:          amount,
				Basis:           basis,
				DiscountPercent: discount,
				VATRate:         a.vatRate(vat),
				Months:          months,
			})
			if err != nil {
				return err
			}

			text, err := q.Format(lang)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					Quote *pricing.Quote     `json:"quote"`
					Text  string             `json:"text"`
					Lang  proration.Language `json:"lang"`
				}{q, text, lang})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}

	cmd.Flags().Float64("amount", 0, "Monthly list price")
	cmd.Flags().String("basis", string(pricing.BasisNet), "Whether --amount is net or gross of VAT")
	cmd.Flags().Float64("discount", 0, "Discount percent 0-100")
	cmd.Flags().Float64("vat", -1, "VAT rate as a fraction (default: configured)")
	cmd.Flags().Int("months", 1, "Contract length in months")
	cmd.Flags().String("lang", "", "Output language: ar or en (default: ar)")
	cmd.Flags().Bool("json", false, "Print the quote as JSON")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
