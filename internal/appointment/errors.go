package appointment

import (
	"errors"
	"fmt"
)

var ErrValidation = errors.New("validation failed")

// InvalidTransitionError names the current and requested states when a
// lifecycle action is attempted from an illegal state.
type InvalidTransitionError struct {
	Current   Status
	Requested Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.Current, e.Requested)
}
