package frame

import (
	"errors"
	"fmt"
)

var errEmptyArray = errors.New("data frame carries no messages")

// maxFramePreview bounds how much of a bad frame ends up in error text.
const maxFramePreview = 64

// ProtocolDesyncError indicates an inbound frame that could not be decoded
// where data was expected. The stream cannot be trusted after this.
type ProtocolDesyncError struct {
	Frame string
	Err   error
}

func (e *ProtocolDesyncError) Error() string {
	preview := e.Frame
	if len(preview) > maxFramePreview {
		preview = preview[:maxFramePreview] + "..."
	}
	return fmt.Sprintf("protocol desync on frame %q: %v", preview, e.Err)
}

func (e *ProtocolDesyncError) Unwrap() error {
	return e.Err
}

// IsProtocolDesyncError checks if an error is a ProtocolDesyncError
func IsProtocolDesyncError(err error) bool {
	var e *ProtocolDesyncError
	return errors.As(err, &e)
}
