package rpc

// These mirror the message shapes of the original signaling.proto
// (ContextRequest/ContextReply/VaddrRequest/VaddrReply/VaddrLookup/
// UriReply/LeaveRequest/LeaveReply) without the protobuf codegen — see
// codec.go.

// ContextRequest asks the signaling service to resolve a context name
// to a context id, allocating a fresh one if the name is new.
type ContextRequest struct {
	ContextName string `json:"context_name"`
}

// ContextReply carries the resolved context id.
type ContextReply struct {
	ContextID uint32 `json:"context_id"`
}

// VaddrRequest registers a peer's data/control URIs under a context,
// requesting the vaddr it is assigned.
type VaddrRequest struct {
	ContextID uint32 `json:"context_id"`
	DataURI   string `json:"data_uri"`
	CtrlURI   string `json:"ctrl_uri"`
}

// VaddrReply carries the assigned vaddr: the registration's position
// in the context's ordered peer list.
type VaddrReply struct {
	VAddr uint32 `json:"vaddr"`
}

// VaddrLookup asks for the URIs a given vaddr registered under a
// context.
type VaddrLookup struct {
	ContextID uint32 `json:"context_id"`
	VAddr     uint32 `json:"vaddr"`
}

// UriReply carries the looked-up URIs; both fields are empty strings
// when the vaddr has not registered yet, meaning "retry".
type UriReply struct {
	DataURI string `json:"data_uri"`
	CtrlURI string `json:"ctrl_uri"`
}

// LeaveRequest releases a context name so it may be reused.
type LeaveRequest struct {
	ContextName string `json:"context_name"`
}

// LeaveReply is an empty acknowledgement.
type LeaveReply struct{}
