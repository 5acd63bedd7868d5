// Package ocr reads the plain text of a scanned bill with Google Cloud Vision.
//
// It is the fallback when no Document AI processor is configured: the text
// is handed to the chat intent parser, which finds the amount and dates the
// same way it does for a typed question.
//
// Cloud Vision limits for synchronous processing:
//   - 20MB per file
//   - 5 pages per PDF or TIFF
package ocr

import (
	"context"
	"io"
	"time"
)

// Service extracts text from a bill.
type Service interface {
	// ReadText returns the text of a PDF, TIFF or image bill.
	ReadText(ctx context.Context, r io.Reader) (*Result, error)
}

// Result is the recognized text with metadata.
type Result struct {
	// Text is the content of all pages in reading order.
	Text string `json:"text"`

	// PageCount is the number of pages that were processed.
	PageCount int `json:"page_count"`

	// Confidence is the mean page confidence (0.0 to 1.0).
	Confidence float32 `json:"confidence"`

	// LanguageCodes are the detected languages, most frequent first.
	LanguageCodes []string `json:"language_codes,omitempty"`

	ProcessingDuration time.Duration `json:"processing_duration"`
}
