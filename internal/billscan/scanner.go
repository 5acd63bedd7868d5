// Package billscan reads the amounts and invoice date off a scanned telecom
// bill with Google Document AI's invoice parser.
package billscan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"

	"telecalc/internal/logger"
	"telecalc/pkg/models"
)

// MaxDocumentSizeBytes is the largest file sent for synchronous processing.
const MaxDocumentSizeBytes = 20 * 1024 * 1024

// Config selects the Document AI processor.
type Config struct {
	ProjectID        string
	Location         string // us or eu
	ProcessorID      string
	ProcessorVersion string
	CredentialsJSON  []byte // nil uses application default credentials
	Timeout          time.Duration
}

// Scanner implements bill extraction on Document AI.
type Scanner struct {
	client *documentai.DocumentProcessorClient
	config Config
	log    zerolog.Logger
}

// NewScanner connects to the regional Document AI endpoint.
func NewScanner(ctx context.Context, cfg Config) (*Scanner, error) {
	const op = "NewScanner"

	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, WrapScanError(op, ErrInvalidConfiguration, "project and processor ID are required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)),
	}
	if cfg.CredentialsJSON != nil {
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, WrapScanError(op, err, fmt.Sprintf("failed to create Document AI client for location %s", cfg.Location))
	}

	return &Scanner{
		client: client,
		config: cfg,
		log:    logger.WithComponent("billscan"),
	}, nil
}

// Close closes the underlying Document AI client.
func (s *Scanner) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Scan extracts a bill from a PDF or image. The returned warnings describe
// amounts that did not add up.
func (s *Scanner) Scan(ctx context.Context, name string, r io.Reader) (*models.Bill, []string, error) {
	const op = "Scan"

	content, err := io.ReadAll(io.LimitReader(r, MaxDocumentSizeBytes+1))
	if err != nil {
		return nil, nil, WrapScanError(op, err, "failed to read document")
	}
	if len(content) > MaxDocumentSizeBytes {
		return nil, nil, WrapScanError(op, ErrDocumentTooLarge, name)
	}
	mimeType, err := DetectMIMEType(content)
	if err != nil {
		return nil, nil, WrapScanError(op, err, name)
	}

	processCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.client.ProcessDocument(processCtx, &documentaipb.ProcessRequest{
		Name: s.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: mimeType,
			},
		},
	})
	if err != nil {
		return nil, nil, s.handleProcessingError(op, err)
	}
	if resp.GetDocument() == nil {
		return nil, nil, WrapScanError(op, ErrProcessingFailed, "no document in response")
	}

	bill := ExtractBill(resp.GetDocument())
	bill.FileName = name
	warnings := Reconcile(bill)

	s.log.Info().
		Str("file", name).
		Str("gross", bill.GrossAmount.String()).
		Strs("derived", bill.Derived).
		Strs("warnings", warnings).
		Dur("duration", time.Since(start)).
		Msg("Bill scanned")

	if !bill.HasAmounts() {
		return bill, warnings, WrapScanError(op, ErrNoAmount, name)
	}
	return bill, warnings, nil
}

func (s *Scanner) processorName() string {
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		s.config.ProjectID, s.config.Location, s.config.ProcessorID)
	if s.config.ProcessorVersion != "" {
		name += "/processorVersions/" + s.config.ProcessorVersion
	}
	return name
}

// handleProcessingError maps Document AI failures to the package errors.
func (s *Scanner) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return WrapScanError(op, ErrInvalidCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "RESOURCE_EXHAUSTED"), strings.Contains(errStr, "QUOTA_EXCEEDED"):
		return WrapScanError(op, ErrQuotaExceeded, "")
	case strings.Contains(errStr, "NOT_FOUND"):
		return WrapScanError(op, ErrProcessorNotFound, s.config.ProcessorID)
	case strings.Contains(errStr, "INVALID_ARGUMENT"):
		return WrapScanError(op, ErrUnsupportedFormat, "document format not supported or corrupted")
	default:
		return WrapScanError(op, fmt.Errorf("%w: %v", ErrProcessingFailed, err), "")
	}
}

// DetectMIMEType sniffs PDF and the image types Document AI accepts.
func DetectMIMEType(content []byte) (string, error) {
	if len(content) >= 4 && string(content[:4]) == "%PDF" {
		return "application/pdf", nil
	}
	if len(content) >= 4 && (string(content[:4]) == "II*\x00" || string(content[:4]) == "MM\x00*") {
		return "image/tiff", nil
	}
	switch ct := http.DetectContentType(content); ct {
	case "image/png", "image/jpeg", "image/gif", "image/bmp", "image/webp":
		return ct, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ct)
	}
}

// ExtractBill converts invoice parser entities into a Bill. Amounts are not
// reconciled.
func ExtractBill(doc *documentaipb.Document) *models.Bill {
	bill := &models.Bill{}

	var confSum float64
	var confCount int
	for _, entity := range doc.GetEntities() {
		value := strings.TrimSpace(entity.GetMentionText())

		switch entity.GetType() {
		case "supplier_name", "vendor_name":
			bill.Supplier = value
		case "invoice_date":
			if d, ok := entityDate(entity); ok {
				bill.InvoiceDate = &d
			}
		case "net_amount", "subtotal_amount":
			setAmount(&bill.NetAmount, entity)
		case "total_tax_amount", "vat_amount":
			setAmount(&bill.VATAmount, entity)
		case "total_amount", "gross_amount", "amount_due":
			setAmount(&bill.GrossAmount, entity)
		case "currency":
			bill.Currency = NormalizeCurrency(value)
		default:
			continue
		}
		confSum += float64(entity.GetConfidence())
		confCount++
	}

	if bill.Currency == "" {
		bill.Currency = NormalizeCurrency("")
	}
	if confCount > 0 {
		bill.Confidence = confSum / float64(confCount)
	}
	return bill
}

// setAmount keeps the first positive amount read for a field.
func setAmount(dst *decimal.Decimal, entity *documentaipb.Document_Entity) {
	if dst.IsPositive() {
		return
	}
	if d, ok := entityAmount(entity); ok {
		*dst = d
	}
}

func entityAmount(entity *documentaipb.Document_Entity) (decimal.Decimal, bool) {
	if m := entity.GetNormalizedValue().GetMoneyValue(); m != nil {
		d := decimal.NewFromInt(m.GetUnits()).Add(decimal.New(int64(m.GetNanos()), -9))
		return d, d.IsPositive()
	}
	d, err := ParseAmount(entity.GetMentionText())
	if err != nil {
		return decimal.Zero, false
	}
	return d, d.IsPositive()
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

func entityDate(entity *documentaipb.Document_Entity) (time.Time, bool) {
	if d := entity.GetNormalizedValue().GetDateValue(); d != nil && d.GetYear() > 0 {
		return time.Date(int(d.GetYear()), time.Month(d.GetMonth()), int(d.GetDay()), 0, 0, 0, 0, time.UTC), true
	}

	text := digitReplacer.Replace(strings.TrimSpace(entity.GetMentionText()))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
