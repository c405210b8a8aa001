package trendwire

import "fmt"

// NetworkError is a per-source fetch failure: transport error, timeout,
// or non-2xx status. It isolates to the one source; the batch continues.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError is a malformed feed document. Like NetworkError it is
// caught per feed and does not abort the batch.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing feed %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
