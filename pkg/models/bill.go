package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Bill struct {
	// Source
	FileName string // Scanned file name
	Supplier string // Issuer printed on the bill

	// Dates
	InvoiceDate *time.Time // Issue date (nil if not found)

	// Amounts
	NetAmount   decimal.Decimal // Amount before VAT
	VATAmount   decimal.Decimal // VAT amount
	GrossAmount decimal.Decimal // Total payable (net + VAT)
	Currency    string          // ISO currency code, JOD when not printed

	// Extraction metadata
	Confidence float64  // Mean confidence of the extracted fields
	Derived    []string // Fields computed from the other two amounts
}

// HasAmounts reports whether at least the gross amount is known.
func (b *Bill) HasAmounts() bool {
	return b.GrossAmount.IsPositive()
}
