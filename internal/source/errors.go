package source

import (
	"errors"
	"fmt"
)

// Stage names where a fetch failed.
const (
	StageRequest = "request"
	StageStatus  = "status"
	StageParse   = "parse"
)

// FetchError reports a failed fetch of the listing page.
type FetchError struct {
	URL        string
	Stage      string
	StatusCode int // set for StageStatus
	Err        error
}

func (e *FetchError) Error() string {
	if e.Stage == StageStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is (or wraps) a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
