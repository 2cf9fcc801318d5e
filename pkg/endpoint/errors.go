package endpoint

import (
	"errors"
	"fmt"
)

// ResolutionError indicates that the console frame page did not reveal a
// socket hostname, either because the page format changed or because the
// console is not provisioned yet.
type ResolutionError struct {
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("socket endpoint resolution failed: %s", e.Reason)
}

// IsResolutionError checks if an error is a ResolutionError
func IsResolutionError(err error) bool {
	var e *ResolutionError
	return errors.As(err, &e)
}
