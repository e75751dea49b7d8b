package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoActivity marks a user whose listings held no usable posts or comments.
// Analyze reports that as an Outcome, not an error; callers that treat it as
// a failure (the CLI) wrap this.
var ErrNoActivity = errors.New("no public activity")

// ErrFetch is matched by every FetchError
var ErrFetch = errors.New("content fetch failed")

// NoActivityMessage is returned to callers when a user has nothing to analyze
const NoActivityMessage = "This user has no public posts or comments available for analysis."

// FetchError reports that the content source was unreachable or denied access
type FetchError struct {
	Handle string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch content for %s: %v", e.Handle, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFetch) match
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}
