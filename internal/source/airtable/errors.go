package airtable

import (
	"errors"
	"fmt"

	"surveydash/internal/source/util"
)

// FetchError is returned when the API answers with a non-2xx status. The
// whole fetch is abandoned; no partial page set is returned.
type FetchError struct {
	StatusCode int
	Status     string
	Body       string
	Page       int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("airtable page %d: status %d: %s", e.Page, e.StatusCode, util.Truncate(e.Body, 512))
}

// AsFetchError unwraps err to a *FetchError if there is one in the chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

var ErrRepeatedOffset = errors.New("airtable returned an offset it already returned")
