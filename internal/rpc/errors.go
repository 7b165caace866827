package rpc

import (
	"errors"
	"fmt"
)

// ErrStreamClosed is returned by Stream.Recv after normal termination.
var ErrStreamClosed = errors.New("stream closed")

// ErrUseAfterDispose is the context-side rejection of a call against an
// already-disposed remote object, including a second dispose.
var ErrUseAfterDispose = errors.New("remote object used after dispose")

// RemoteCallError wraps a failure produced by the remote side of a call. It
// is opaque to proxies, which forward it unchanged through the Future or
// Stream failure channel.
type RemoteCallError struct {
	Call string
	Err  error
}

// Error implements the error interface.
func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call %q failed: %v", e.Call, e.Err)
}

// Unwrap exposes the remote cause.
func (e *RemoteCallError) Unwrap() error { return e.Err }
