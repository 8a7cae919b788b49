package filter

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-relay/core"
)

// ExtractionError reports a document that could not be parsed into a path
// tree. It carries the parse position so callers can surface it; extraction
// is never retried because the same bytes will not parse differently later.
type ExtractionError struct {
	ContentType core.ContentType
	Position    string
	Reason      string
}

func (e *ExtractionError) Error() string {
	if e == nil {
		return "filter: extraction failed"
	}
	if e.Position == "" {
		return fmt.Sprintf("filter: %s document parse failed: %s", e.ContentType, e.Reason)
	}
	return fmt.Sprintf("filter: %s document parse failed at %s: %s", e.ContentType, e.Position, e.Reason)
}

func IsExtractionError(err error) bool {
	var extractionErr *ExtractionError
	return errors.As(err, &extractionErr)
}
