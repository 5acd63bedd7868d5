package billscan

import (
	"errors"
	"fmt"
)

// Common bill scanning errors
var (
	// ErrUnsupportedFormat is returned for files that are neither PDF nor a
	// supported image type.
	ErrUnsupportedFormat = errors.New("unsupported bill format")

	// ErrDocumentTooLarge is returned when the file exceeds MaxDocumentSizeBytes.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size limit")

	// ErrProcessingFailed is returned when Document AI processing fails.
	ErrProcessingFailed = errors.New("document AI processing failed")

	// ErrInvalidConfiguration is returned when project or processor is missing.
	ErrInvalidConfiguration = errors.New("invalid Document AI configuration")

	// ErrInvalidCredentials is returned when the credentials lack permission.
	ErrInvalidCredentials = errors.New("invalid Google Cloud credentials")

	// ErrProcessorNotFound is returned when the processor does not exist.
	ErrProcessorNotFound = errors.New("Document AI processor not found")

	// ErrQuotaExceeded is returned when the Document AI quota is exhausted.
	ErrQuotaExceeded = errors.New("Document AI API quota exceeded")

	// ErrNoAmount is returned when no total could be read from the bill.
	ErrNoAmount = errors.New("no amount found on the bill")
)

// ScanError wraps errors with the operation that failed.
type ScanError struct {
	// Op is the operation that failed (e.g., "Scan", "NewScanner").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

func (e *ScanError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("billscan: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("billscan: %s failed: %v", e.Op, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// WrapScanError wraps err as a ScanError unless it already is one.
func WrapScanError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return err
	}

	return &ScanError{Op: op, Err: err, Details: details}
}
