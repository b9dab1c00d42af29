package signaling

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jabolina/graybat/pkg/graybat/signaling/rpc"
	"github.com/jabolina/graybat/pkg/graybat/types"
)

// pollInterval is how often Client.PollVaddr retries a LookupVaddr
// that comes back with the empty-string "not yet registered" sentinel.
const pollInterval = 50 * time.Millisecond

// Client dials a signaling service and exposes the four RPCs, adding
// the polling-until-non-empty retry loop spec.md §4.2 requires of
// LookupVaddr callers.
type Client struct {
	conn *grpc.ClientConn
	rpc  *rpc.SignalingClient
}

// Dial connects to the signaling service at uri. Plaintext only — the
// signaling protocol carries no authentication, matching the original
// (spec.md §9's "no authentication" note).
func Dial(uri string) (*Client, error) {
	conn, err := grpc.Dial(uri, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, &types.TransportError{Op: "signaling-dial", Cause: err}
	}
	return &Client{conn: conn, rpc: rpc.NewSignalingClient(conn)}, nil
}

// Close tears down the connection to the signaling service.
func (c *Client) Close() error {
	return c.conn.Close()
}

// RequestContext resolves name to a context id, allocating a fresh one
// if needed.
func (c *Client) RequestContext(ctx context.Context, name string) (types.ContextID, error) {
	reply, err := c.rpc.RequestContext(ctx, &rpc.ContextRequest{ContextName: name})
	if err != nil {
		return 0, &types.TransportError{Op: "request-context", Cause: err}
	}
	return types.ContextID(reply.ContextID), nil
}

// RequestVaddr registers the local peer's data/ctrl URIs under
// contextID and returns the assigned vaddr — its position in the
// sequence of registrations, per spec.md §4.2.
func (c *Client) RequestVaddr(ctx context.Context, contextID types.ContextID, dataURI, ctrlURI types.URI) (types.VAddr, error) {
	reply, err := c.rpc.RequestVaddr(ctx, &rpc.VaddrRequest{
		ContextID: uint32(contextID),
		DataURI:   string(dataURI),
		CtrlURI:   string(ctrlURI),
	})
	if err != nil {
		return 0, &types.TransportError{Op: "request-vaddr", Cause: err}
	}
	return types.VAddr(reply.VAddr), nil
}

// LookupVaddr performs a single, non-retrying lookup; both URIs come
// back empty if vaddr has not registered within contextID yet.
func (c *Client) LookupVaddr(ctx context.Context, contextID types.ContextID, vaddr types.VAddr) (dataURI, ctrlURI types.URI, err error) {
	reply, err := c.rpc.LookupVaddr(ctx, &rpc.VaddrLookup{ContextID: uint32(contextID), VAddr: uint32(vaddr)})
	if err != nil {
		return "", "", &types.TransportError{Op: "lookup-vaddr", Cause: err}
	}
	return types.URI(reply.DataURI), types.URI(reply.CtrlURI), nil
}

// PollVaddr polls LookupVaddr until it receives a non-empty reply,
// sleeping pollInterval between attempts, or returns early if ctx is
// canceled.
func (c *Client) PollVaddr(ctx context.Context, contextID types.ContextID, vaddr types.VAddr) (dataURI, ctrlURI types.URI, err error) {
	for {
		dataURI, ctrlURI, err = c.LookupVaddr(ctx, contextID, vaddr)
		if err != nil {
			return "", "", err
		}
		if dataURI != "" && ctrlURI != "" {
			return dataURI, ctrlURI, nil
		}
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// LeaveContext is best-effort cleanup so name may be reused; failures
// are not fatal to the caller's teardown.
func (c *Client) LeaveContext(ctx context.Context, name string) error {
	_, err := c.rpc.LeaveContext(ctx, &rpc.LeaveRequest{ContextName: name})
	if err != nil {
		return &types.TransportError{Op: "leave-context", Cause: err}
	}
	return nil
}
