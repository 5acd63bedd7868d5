package billscan

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entity(kind, text string, conf float32) *documentaipb.Document_Entity {
	return &documentaipb.Document_Entity{Type: kind, MentionText: text, Confidence: conf}
}

func TestExtractBill(t *testing.T) {
	doc := &documentaipb.Document{
		Entities: []*documentaipb.Document_Entity{
			entity("supplier_name", " Orange Jordan ", 0.9),
			entity("invoice_date", "14/10/2025", 0.8),
			entity("net_amount", "31.000", 0.9),
			entity("total_tax_amount", "4.960", 0.7),
			entity("total_amount", "35.960 JOD", 1.0),
			entity("total_amount", "99.000", 0.2),
			entity("line_item", "Fiber 100", 0.5),
		},
	}

	bill := ExtractBill(doc)
	assert.Equal(t, "Orange Jordan", bill.Supplier)
	require.NotNil(t, bill.InvoiceDate)
	assert.Equal(t, time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC), *bill.InvoiceDate)
	assert.Equal(t, "31", bill.NetAmount.String())
	assert.Equal(t, "4.96", bill.VATAmount.String())
	assert.Equal(t, "35.96", bill.GrossAmount.String(), "first total wins")
	assert.Equal(t, "JOD", bill.Currency)
	assert.InDelta(t, 0.75, bill.Confidence, 1e-6)
}

func TestExtractBillArabicMentions(t *testing.T) {
	doc := &documentaipb.Document{
		Entities: []*documentaipb.Document_Entity{
			entity("invoice_date", "٢٠٢٥-١٠-١٤", 1),
			entity("total_amount", "د.أ ١١٦٫٠٠٠", 1),
			entity("currency", "د.أ", 1),
		},
	}

	bill := ExtractBill(doc)
	require.NotNil(t, bill.InvoiceDate)
	assert.Equal(t, "2025-10-14", bill.InvoiceDate.Format("2006-01-02"))
	assert.Equal(t, "116", bill.GrossAmount.String())
	assert.Empty(t, Reconcile(bill))
}

func TestDetectMIMEType(t *testing.T) {
	mt, err := DetectMIMEType([]byte("%PDF-1.7\n..."))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mt)

	mt, err = DetectMIMEType([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)

	mt, err = DetectMIMEType([]byte("II*\x00\x08\x00\x00\x00"))
	require.NoError(t, err)
	assert.Equal(t, "image/tiff", mt)

	_, err = DetectMIMEType([]byte("plain text bill"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWrapScanError(t *testing.T) {
	assert.NoError(t, WrapScanError("Scan", nil, ""))

	err := WrapScanError("Scan", ErrNoAmount, "bill.pdf")
	assert.ErrorIs(t, err, ErrNoAmount)
	assert.Equal(t, "billscan: Scan failed: bill.pdf: no amount found on the bill", err.Error())

	var scanErr *ScanError
	require.True(t, errors.As(WrapScanError("outer", err, "again"), &scanErr))
	assert.Equal(t, "Scan", scanErr.Op, "already wrapped errors pass through")
}
