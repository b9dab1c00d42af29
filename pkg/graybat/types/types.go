// Package types holds the data shared across every graybat socket-policy
// component: context/address identifiers, the logger contract, and
// configuration accepted by a communicator at construction time.
package types

import "fmt"

// ContextID uniquely identifies a context process-wide.
type ContextID uint32

// VAddr is a peer's virtual address within one context: a dense index
// starting at 0.
type VAddr uint32

// Tag is a user-supplied discriminator distinguishing message streams
// between the same pair of peers.
type Tag uint32

// MsgID is a monotonically increasing per-process counter identifying
// one particular send.
type MsgID uint32

// URI is a transport-dependent endpoint string, e.g. "tcp://host:port".
type URI string

// InvalidContextID is a context id that Valid always rejects. A
// default-constructed Context has ID 0, which is a real id, and is
// rejected by its zero Size instead.
const InvalidContextID ContextID = ^ContextID(0)

// Context is a membership of peers able to communicate: an id, the
// local peer's vaddr within it, its size, and (after a split) an
// explicit whitelist of member vaddrs drawn from the parent context.
//
// A zero-value Context is invalid and must never be passed to
// send/recv/collective operations.
type Context struct {
	ID        ContextID
	Self      VAddr
	Size      uint32
	Name      string
	Whitelist []VAddr
}

// Valid reports whether c was produced by a successful bootstrap or
// split, as opposed to being a default zero value.
func (c Context) Valid() bool {
	return c.ID != InvalidContextID && c.Size > 0
}

func (c Context) String() string {
	return fmt.Sprintf("Context{id=%d self=%d size=%d name=%q}", c.ID, c.Self, c.Size, c.Name)
}

// Config configures a communicator at construction time.
type Config struct {
	// DataURIBase / CtrlURIBase are the host:port bases the data and
	// control receive sockets bind to; the actual bound port may be
	// higher if the base is already taken.
	DataURIBase string
	CtrlURIBase string

	// ContextSize is the number of peers in the initial context. Must
	// match on every peer bootstrapping the same ContextName.
	ContextSize uint32

	// ContextName is the membership name peers bootstrap under.
	ContextName string

	// SignalingURI is the address of the signaling service.
	SignalingURI string

	// MaxBufferBytes bounds the total size, in bytes, a mailbox may
	// hold before producers block.
	MaxBufferBytes uint64

	// Logger receives diagnostic output; DefaultLogger is used if nil.
	Logger Logger
}

// Logger is the diagnostic sink used throughout the runtime. Its shape
// matches the logging contract the rest of this codebase was built
// against: leveled, both formatted and unformatted variants, and a
// debug level that can be toggled at runtime.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	Panic(v ...interface{})
	Panicf(format string, v ...interface{})
	ToggleDebug(value bool) bool
}
