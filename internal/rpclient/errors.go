package rpclient

import (
	"fmt"

	"github.com/juju/errors"
)

const (
	// ErrDisconnected is the reason every call still pending at disconnect
	// fails with.
	ErrDisconnected = errors.ConstError("session disconnected")
	// ErrNoSuchMember is returned for a member name the descriptor lacks.
	ErrNoSuchMember = errors.ConstError("no such member")
	// ErrMissingHost is returned by New without Options.Host.
	ErrMissingHost = errors.ConstError("missing host")
)

// RemoteCallError is a call failure reported by the robot.
type RemoteCallError struct {
	ID     uint64
	Result any
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("call %d failed: %v", e.ID, e.Result)
}

// ProtocolError is an error event that matches no pending call. The
// connection may be in an unknown state after one.
type ProtocolError struct {
	Result any
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Result)
}

// DescriptorError is a reply whose object descriptor could not be parsed.
type DescriptorError struct {
	Object any
	Reason string
}

func (e *DescriptorError) Error() string {
	if e.Object == nil {
		return "malformed descriptor: " + e.Reason
	}
	return fmt.Sprintf("malformed descriptor for %v: %s", e.Object, e.Reason)
}

// TransportError wraps a failure of the underlying connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }
