package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by every lookup failure of this package.
	ErrNotFound         = errors.New("not found")
	ErrBranchNotFound   = fmt.Errorf("branch %w", ErrNotFound)
	ErrPlaybackNotFound = fmt.Errorf("playback state %w", ErrNotFound)
)

// ValidationError reports a request field that references something
// missing or malformed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func unknownVideo(field string) error {
	return &ValidationError{Field: field, Message: "video does not exist"}
}
