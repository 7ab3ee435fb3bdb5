package pokedex

import "fmt"

// FetchError reports a request that could not produce a usable page,
// either because retries were exhausted or because the server answered
// with a non-retryable status.
type FetchError struct {
	URL string
	// last HTTP status seen, 0 when the failure was at transport level
	Status   int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v (attempts=%d)", e.URL, e.Err, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: status %d (attempts=%d)", e.URL, e.Status, e.Attempts)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError reports a page whose markup did not carry a required
// field; the record from such a page is dropped, never defaulted.
type ParseError struct {
	URL   string
	Field string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: missing required field %q", e.URL, e.Field)
}
