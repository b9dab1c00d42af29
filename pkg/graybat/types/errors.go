package types

import "errors"

// Bootstrap failures. Both are fatal: the constructor returns them and
// the communicator is never usable.
var (
	ErrSignalingUnreachable = errors.New("graybat: signaling service unreachable")
	ErrContextAllocFailed   = errors.New("graybat: signaling service failed to allocate context")
)

// ErrBindFailed is returned when no free port was found in the bounded
// search window starting at the requested base port.
var ErrBindFailed = errors.New("graybat: no free port found in search window")

// ErrMalformedMessage is returned by wire.Decode when the buffer is
// shorter than the fixed header size.
var ErrMalformedMessage = errors.New("graybat: malformed message: buffer shorter than header")

// ErrContextInvalid is returned eagerly by send/recv/collective
// operations issued against a default-constructed Context.
var ErrContextInvalid = errors.New("graybat: operation issued on an invalid context")

// ErrProtocolMismatch mirrors the teacher's ErrUnsupportedProtocol: a
// frame arrived whose header fields point to a context/vaddr pairing
// this communicator does not recognize.
var ErrProtocolMismatch = errors.New("graybat: protocol frame does not match local configuration")

// TransportError wraps a failure raised by the transport layer (C3). A
// TransportError on the receiver task is logged and the frame is
// dropped; on the sender it aborts the in-flight asyncSend's event.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return "graybat: transport error during " + e.Op + ": " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}
