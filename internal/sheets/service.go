// Package sheets appends proration calculations to a Google Sheet.
package sheets

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"telecalc/internal/logger"
	"telecalc/internal/money"
	"telecalc/internal/proration"
)

// Service handles Google Sheets operations
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// CalculationRow is one exported calculation.
type CalculationRow struct {
	RecordedAt time.Time
	Source     string // cli, scan
	Mode       proration.Mode
	Pivot      proration.Date
	AnchorDay  int
	CycleStart proration.Date
	CycleEnd   proration.Date
	TotalDays  int
	UsedDays   int
	MonthlyNet decimal.Decimal
	Prorated   decimal.Decimal
	Gross      *decimal.Decimal
	Note       string // file name or free text
}

var headers = []interface{}{
	"Recorded", "Source", "Mode", "Date", "Anchor day", "Cycle start", "Cycle end",
	"Days in cycle", "Days billed", "Monthly net", "Prorated", "Gross", "Currency", "Note",
}

var spreadsheetIDRe = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// NewService creates a Sheets client for the spreadsheet at sheetURL. Nil
// credentials use application default credentials.
func NewService(ctx context.Context, sheetURL string, credentialsJSON []byte) (*Service, error) {
	const op = "sheets.NewService"

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var opts []option.ClientOption
	if credentialsJSON != nil {
		jwt, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
		}
		opts = append(opts, option.WithHTTPClient(jwt.Client(ctx)))
	} else {
		client, err := google.DefaultClient(ctx, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("%s: no credentials: %w", op, err)
		}
		opts = append(opts, option.WithHTTPClient(client))
	}

	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           logger.WithComponent("sheets"),
	}, nil
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDRe.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL: %q", url)
	}
	return matches[1], nil
}

// RowFromResult builds a row for res.
func RowFromResult(res *proration.Result, source, note string, at time.Time) CalculationRow {
	return CalculationRow{
		RecordedAt: at,
		Source:     source,
		Mode:       res.Mode,
		Pivot:      res.Pivot,
		AnchorDay:  res.Cycle.AnchorDay,
		CycleStart: res.Start,
		CycleEnd:   res.End,
		TotalDays:  res.TotalDays,
		UsedDays:   res.UsedDays,
		MonthlyNet: res.MonthlyNet,
		Prorated:   res.Value,
		Gross:      res.GrossEcho,
		Note:       note,
	}
}

// AppendCalculations writes rows below the existing data of worksheet,
// creating the worksheet and its header row when missing.
func (s *Service) AppendCalculations(ctx context.Context, worksheet string, rows []CalculationRow) error {
	const op = "sheets.AppendCalculations"

	if len(rows) == 0 {
		return nil
	}
	if err := s.ensureSheetWithHeaders(ctx, worksheet); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, rowToValues(row))
	}

	_, err := s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		columnRange(worksheet, 0),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values: %w", op, err)
	}

	s.log.Info().
		Str("worksheet", worksheet).
		Int("rows", len(values)).
		Msg("Calculations exported to Google Sheet")
	return nil
}

// rowToValues renders a row; amounts are plain numbers so the sheet can sum
// them.
func rowToValues(row CalculationRow) []interface{} {
	gross := ""
	if row.Gross != nil {
		gross = money.Format(*row.Gross)
	}
	return []interface{}{
		row.RecordedAt.UTC().Format("2006-01-02 15:04:05"),
		row.Source,
		string(row.Mode),
		row.Pivot.String(),
		row.AnchorDay,
		row.CycleStart.String(),
		row.CycleEnd.String(),
		row.TotalDays,
		row.UsedDays,
		money.Format(row.MonthlyNet),
		money.Format(row.Prorated),
		gross,
		money.CurrencyCode,
		row.Note,
	}
}

// columnRange is worksheet!A:N, or the header cells A1:N1 when row is 1.
func columnRange(worksheet string, row int) string {
	last := string(rune('A' + len(headers) - 1))
	if row > 0 {
		return fmt.Sprintf("'%s'!A%d:%s%d", worksheet, row, last, row)
	}
	return fmt.Sprintf("'%s'!A:%s", worksheet, last)
}

func (s *Service) ensureSheetWithHeaders(ctx context.Context, worksheet string) error {
	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	exists := false
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == worksheet {
			exists = true
			break
		}
	}

	if !exists {
		s.log.Info().Str("worksheet", worksheet).Msg("Creating worksheet")
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: worksheet},
				},
			}},
		}
		if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to create worksheet: %w", err)
		}
	}

	headerRange := columnRange(worksheet, 1)
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get headers: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]interface{}{headers}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to add headers: %w", err)
	}
	return nil
}
