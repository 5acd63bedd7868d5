package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"telecalc/internal/logger"
	"telecalc/internal/proration"
	"telecalc/internal/sheets"
)

func newProrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prorate",
		Short: "Prorate a monthly subscription over the billing cycle containing a date",
		Long: `Compute the prorated charge for the part of a billing cycle selected by the
mode: "remaining" bills from the date to the next anchor, "elapsed" bills from
the cycle start to the date.

--activation prices a new line up to its first invoice. --gross treats the
amount as a VAT-inclusive invoice total and derives the monthly net first.`,
		Example: `  # First bill of a line activated on 14 Oct, anchor day 15
  telecalc prorate --amount 30 --date 2025-10-14 --activation --lang en

  # Days used so far this cycle
  telecalc prorate --amount 100 --date 2024-02-20 --mode elapsed --anchor 10

  # VAT-inclusive invoice, VAT breakdown in Arabic, exported to Google Sheets
  telecalc prorate --amount 116 --gross --date 2025-10-14 --view vat --export`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProrate(cmd)
		},
	}

	cmd.Flags().Float64("amount", 0, "Monthly amount (or invoice total with --gross)")
	cmd.Flags().Bool("gross", false, "Amount includes VAT")
	cmd.Flags().String("date", "", "Pivot or activation date YYYY-MM-DD (default: today)")
	cmd.Flags().Int("anchor", 0, "Billing anchor day 1-31 (default: configured)")
	cmd.Flags().String("mode", string(proration.ModeRemaining), "remaining or elapsed")
	cmd.Flags().Bool("activation", false, "Price a new activation up to its first invoice")
	cmd.Flags().Float64("vat", -1, "VAT rate as a fraction, e.g. 0.16 (default: configured)")
	cmd.Flags().String("lang", "", "Output language: ar or en (default: ar)")
	cmd.Flags().String("view", "", "Output view: script, totals or vat (default: script)")
	cmd.Flags().Bool("json", false, "Print the result as JSON")
	cmd.Flags().Bool("export", false, "Append the calculation to the configured Google Sheet")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func (a *app) runProrate(cmd *cobra.Command) error {
	log := logger.WithComponent("prorate")

	amount, _ := cmd.Flags().GetFloat64("amount")
	gross, _ := cmd.Flags().GetBool("gross")
	date, _ := cmd.Flags().GetString("date")
	anchor, _ := cmd.Flags().GetInt("anchor")
	mode, _ := cmd.Flags().GetString("mode")
	activation, _ := cmd.Flags().GetBool("activation")
	vat, _ := cmd.Flags().GetFloat64("vat")
	export, _ := cmd.Flags().GetBool("export")

	if date == "" {
		date = a.today()
	}
	if anchor == 0 {
		anchor = a.cfg.AnchorDay
	}
	rate := a.vatRate(vat)

	req := proration.Request{
		Amount:     amount,
		Date:       date,
		AnchorDay:  anchor,
		Mode:       proration.Mode(mode),
		Gross:      gross,
		Activation: activation,
	}
	if gross {
		req.VATRate = &rate
	}

	res, err := proration.Calculate(req)
	if err != nil {
		return err
	}

	log.Debug().
		Str("pivot", res.Pivot.String()).
		Int("used_days", res.UsedDays).
		Int("total_days", res.TotalDays).
		Str("value", res.Value.String()).
		Msg("Prorated")

	if err := a.printResult(cmd, res, rate); err != nil {
		return err
	}
	if export {
		return a.export(cmd.Context(), sheets.RowFromResult(res, "cli", "", a.clock.Now()))
	}
	return nil
}

// calculationOutput is the --json shape of prorate and scan.
type calculationOutput struct {
	Result *proration.Result  `json:"result"`
	Text   string             `json:"text"`
	Lang   proration.Language `json:"lang"`
	View   proration.View     `json:"view"`
}

// printResult renders res with the --lang, --view and --json flags.
func (a *app) printResult(cmd *cobra.Command, res *proration.Result, rate float64) error {
	langFlag, _ := cmd.Flags().GetString("lang")
	viewFlag, _ := cmd.Flags().GetString("view")
	asJSON, _ := cmd.Flags().GetBool("json")

	lang, err := proration.ParseLanguage(langFlag)
	if err != nil {
		return err
	}
	view, err := proration.ParseView(viewFlag)
	if err != nil {
		return err
	}

	f := proration.NewFormatter(decimal.NewFromFloat(rate))
	f.DateStyle = proration.DateStyle(a.cfg.DateStyle)
	text, err := f.Format(res, res.MonthlyNet, lang, view)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), calculationOutput{Result: res, Text: text, Lang: lang, View: view})
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}

func (a *app) export(ctx context.Context, rows ...sheets.CalculationRow) error {
	if !a.cfg.SheetsEnabled() {
		return errors.New("export needs GOOGLE_SHEET_URL")
	}
	creds, err := a.cfg.GoogleCredentials()
	if err != nil {
		return err
	}
	svc, err := sheets.NewService(ctx, a.cfg.GoogleSheetURL, creds)
	if err != nil {
		return err
	}
	return svc.AppendCalculations(ctx, a.cfg.GoogleSheetWorksheet, rows)
}

// vatRate is flag when set (non-negative), otherwise the configured rate.
func (a *app) vatRate(flag float64) float64 {
	if flag >= 0 {
		return flag
	}
	return a.cfg.VATRate
}

func (a *app) today() string {
	return proration.DateOf(a.clock.Now().UTC()).String()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
