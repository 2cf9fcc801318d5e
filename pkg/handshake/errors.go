package handshake

import (
	"errors"
	"fmt"

	"anywhere-shell/pkg/socket"
)

// TransportError reports a send or receive failure during the handshake,
// including the socket reporting an error or a close.
type TransportError struct {
	Op      string
	State   State
	Message socket.MessageType
	Err     error
}

func (e *TransportError) Error() string {
	if e.Op == "receive" && e.Message != socket.MessageText {
		if e.Err != nil {
			return fmt.Sprintf("handshake %s in state %s: socket %s: %v", e.Op, e.State, e.Message, e.Err)
		}
		return fmt.Sprintf("handshake %s in state %s: socket %s", e.Op, e.State, e.Message)
	}
	return fmt.Sprintf("handshake %s in state %s: %v", e.Op, e.State, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError checks if an error is a TransportError
func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}
