// Package errs defines the sentinel errors returned by h5col packages.
//
// Callers match them with errors.Is; packages wrap them with context using
// fmt.Errorf("%w: ...").
package errs

import (
	"errors"
	"fmt"
)

// Dataset source errors.
var (
	ErrNotFound = errors.New("not found")
	ErrFormat   = errors.New("invalid format")
)

// Container errors.
var (
	ErrInvalidHeaderSize     = errors.New("invalid header size")
	ErrInvalidMagicNumber    = errors.New("invalid magic number")
	ErrUnsupportedVersion    = errors.New("unsupported container version")
	ErrHeaderChecksum        = errors.New("header checksum mismatch")
	ErrInvalidDirectory      = errors.New("invalid dataset directory")
	ErrPayloadOutOfRange     = errors.New("payload out of range")
	ErrChecksumMismatch      = errors.New("payload checksum mismatch")
	ErrDuplicateDataset      = errors.New("duplicate dataset name")
	ErrNoDatasets            = errors.New("no datasets added")
	ErrInvalidDatasetName    = errors.New("invalid dataset name")
	ErrUnsupportedCompressor = errors.New("unsupported compression type")
)

// Type and schema errors.
var (
	ErrUnsupportedType   = errors.New("unsupported type")
	ErrInvalidProjection = errors.New("invalid column projection")
	ErrColumnNotFound    = errors.New("column not found")
)

// Scan and sink errors.
var (
	ErrInvalidBufferSize = errors.New("record buffer is not a multiple of the record stride")
	ErrSinkSealed        = errors.New("sink columns are sealed")
	ErrRowCountMismatch  = errors.New("column row count mismatch")
	ErrInvalidBatchSize  = errors.New("invalid batch size")
	ErrScanClosed        = errors.New("scan is closed")
)

// SourceError reports that a dataset could not be opened or described.
// It is returned once, before any scan starts.
type SourceError struct {
	Locator string
	Err     error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %q: %v", e.Locator, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError wraps err for locator. A nil err returns nil.
func NewSourceError(locator string, err error) error {
	if err == nil {
		return nil
	}

	var se *SourceError
	if errors.As(err, &se) {
		return err
	}

	return &SourceError{Locator: locator, Err: err}
}
