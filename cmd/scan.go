package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"telecalc/internal/billscan"
	"telecalc/internal/intent"
	"telecalc/internal/logger"
	"telecalc/internal/money"
	"telecalc/internal/ocr"
	"telecalc/internal/proration"
	"telecalc/internal/sheets"
	"telecalc/pkg/models"
)

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [bill-file]",
		Short: "Read a scanned bill and prorate its VAT-inclusive total",
		Long: `Extract the total and invoice date from a PDF or image bill and price the
activation period it covers, as "prorate --gross" would.

With DOCUMENT_AI_PROCESSOR_ID set, Google Document AI's invoice parser reads
the amounts and cross-checks net + VAT against the total. Otherwise the bill
is read with Cloud Vision OCR and the amount and date are picked from the
text.`,
		Example: `  telecalc scan bill.pdf --lang en
  telecalc scan bill.jpg --date 2025-10-14 --anchor 1 --json
  telecalc scan bill.pdf --export`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, args[0])
		},
	}

	cmd.Flags().String("date", "", "Override the invoice date YYYY-MM-DD")
	cmd.Flags().Int("anchor", 0, "Billing anchor day 1-31 (default: configured)")
	cmd.Flags().Float64("vat", -1, "VAT rate as a fraction (default: configured)")
	cmd.Flags().String("lang", "", "Output language: ar or en (default: ar)")
	cmd.Flags().String("view", "", "Output view: script, totals or vat (default: script)")
	cmd.Flags().Bool("json", false, "Print the result as JSON")
	cmd.Flags().Bool("export", false, "Append the calculation to the configured Google Sheet")
	cmd.Flags().Duration("timeout", 2*time.Minute, "Processing timeout")

	return cmd
}

func (a *app) runScan(cmd *cobra.Command, path string) error {
	log := logger.WithComponent("scan")

	dateFlag, _ := cmd.Flags().GetString("date")
	anchor, _ := cmd.Flags().GetInt("anchor")
	vat, _ := cmd.Flags().GetFloat64("vat")
	export, _ := cmd.Flags().GetBool("export")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if anchor == 0 {
		anchor = a.cfg.AnchorDay
	}
	rate := a.vatRate(vat)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	gross, date, err := a.readBill(ctx, log, path)
	if err != nil {
		return err
	}
	if dateFlag != "" {
		date = dateFlag
	}
	if date == "" {
		return errors.New("no invoice date found on the bill, pass --date")
	}

	res, err := proration.ProrateFromGross(gross, date, anchor, rate)
	if err != nil {
		return err
	}
	if err := a.printResult(cmd, res, rate); err != nil {
		return err
	}
	if export {
		return a.export(ctx, sheets.RowFromResult(res, "scan", filepath.Base(path), a.clock.Now()))
	}
	return nil
}

// readBill returns the gross total and invoice date (possibly empty) of the
// bill at path.
func (a *app) readBill(ctx context.Context, log zerolog.Logger, path string) (float64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("open bill: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close bill file")
		}
	}()

	creds, err := a.cfg.GoogleCredentials()
	if err != nil {
		return 0, "", err
	}

	if a.cfg.ScanEnabled() {
		scanner, err := billscan.NewScanner(ctx, billscan.Config{
			ProjectID:        a.cfg.GoogleCloudProject,
			Location:         a.cfg.GoogleCloudLocation,
			ProcessorID:      a.cfg.DocumentAIProcessorID,
			ProcessorVersion: a.cfg.DocumentAIProcessorVersion,
			CredentialsJSON:  creds,
		})
		if err != nil {
			return 0, "", err
		}
		defer scanner.Close()

		bill, warnings, err := scanner.Scan(ctx, filepath.Base(path), f)
		if err != nil {
			return 0, "", err
		}
		for _, w := range warnings {
			log.Warn().Str("file", path).Msg(w)
		}
		return billTotal(bill)
	}

	log.Info().Msg("Document AI not configured, reading the bill with OCR")
	vision, err := ocr.NewVisionService(ctx, creds)
	if err != nil {
		return 0, "", err
	}
	defer vision.Close()

	text, err := vision.ReadText(ctx, f)
	if err != nil {
		return 0, "", err
	}
	return billFromText(text.Text, filepath.Base(path))
}

// billFromText picks the gross total and invoice date out of OCR text. The
// date may be empty; --date fills it in.
func billFromText(text, name string) (float64, string, error) {
	in, _ := intent.Parse(text)
	if in.Amount <= 0 {
		return 0, "", fmt.Errorf("no amount found in the text of %s", name)
	}
	return in.Amount, in.Date, nil
}

func billTotal(bill *models.Bill) (float64, string, error) {
	if bill.Currency != "" && bill.Currency != money.CurrencyCode {
		return 0, "", fmt.Errorf("bill is in %s, only JOD bills can be prorated", bill.Currency)
	}
	if !bill.HasAmounts() {
		return 0, "", errors.New("no total found on the bill")
	}
	date := ""
	if bill.InvoiceDate != nil {
		date = proration.DateOf(*bill.InvoiceDate).String()
	}
	return bill.GrossAmount.InexactFloat64(), date, nil
}
