package extract

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned for file extensions the extractor does
// not handle. Callers match it with errors.Is.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ExtractionError reports a failure while parsing a supported format.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
