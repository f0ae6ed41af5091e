package listing

import (
	"errors"
	"fmt"
)

// Sentinel errors for failure classes that carry no extra payload.
var (
	// ErrNotFound is returned by Store.Get when no record exists for a key.
	ErrNotFound = errors.New("record not found")

	// ErrExtraction means no usable fields could be extracted from a page.
	ErrExtraction = errors.New("no extractable fields")

	// ErrIdentity means no stable identity key could be derived, so the
	// candidate is rejected before storage.
	ErrIdentity = errors.New("no stable identity key")
)

// FetchErrorKind classifies why a fetch failed.
type FetchErrorKind string

// Fetch failure classes.
const (
	FetchNetworkError     FetchErrorKind = "network_error"
	FetchHTTPError        FetchErrorKind = "http_error"
	FetchTimeout          FetchErrorKind = "timeout"
	FetchRetriesExhausted FetchErrorKind = "retries_exhausted"
)

// FetchError is a classified fetch failure. StatusCode is set for
// http_error; Attempts counts GETs actually issued; Cause holds the
// last underlying error when there is one.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Attempts   int
	Cause      error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPError:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	case FetchRetriesExhausted:
		return fmt.Sprintf("fetch %s: retries exhausted after %d attempts: %v", e.URL, e.Attempts, e.Cause)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Cause)
	}
}

func (e *FetchError) Unwrap() error { return e.Cause }

// AsFetchError unwraps err into a *FetchError if it is one.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
