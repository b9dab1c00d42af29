package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the fully qualified gRPC service name both server and
// client address methods under.
const serviceName = "graybat.signaling.Signaling"

// SignalingServer is the interface a signaling service implementation
// must satisfy; it is the hand-written equivalent of what
// protoc-gen-go-grpc generates from a service{} block.
type SignalingServer interface {
	RequestContext(context.Context, *ContextRequest) (*ContextReply, error)
	RequestVaddr(context.Context, *VaddrRequest) (*VaddrReply, error)
	LookupVaddr(context.Context, *VaddrLookup) (*UriReply, error)
	LeaveContext(context.Context, *LeaveRequest) (*LeaveReply, error)
}

func _Signaling_RequestContext_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ContextRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SignalingServer).RequestContext(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RequestContext"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SignalingServer).RequestContext(ctx, req.(*ContextRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Signaling_RequestVaddr_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(VaddrRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SignalingServer).RequestVaddr(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RequestVaddr"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SignalingServer).RequestVaddr(ctx, req.(*VaddrRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Signaling_LookupVaddr_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(VaddrLookup)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SignalingServer).LookupVaddr(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/LookupVaddr"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SignalingServer).LookupVaddr(ctx, req.(*VaddrLookup))
	}
	return interceptor(ctx, in, info, handler)
}

func _Signaling_LeaveContext_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LeaveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SignalingServer).LeaveContext(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/LeaveContext"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SignalingServer).LeaveContext(ctx, req.(*LeaveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// signalingServiceDesc is the ServiceDesc protoc-gen-go-grpc would
// normally emit for a four-RPC "Signaling" service.
var signalingServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SignalingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestContext", Handler: _Signaling_RequestContext_Handler},
		{MethodName: "RequestVaddr", Handler: _Signaling_RequestVaddr_Handler},
		{MethodName: "LookupVaddr", Handler: _Signaling_LookupVaddr_Handler},
		{MethodName: "LeaveContext", Handler: _Signaling_LeaveContext_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "graybat/signaling.proto",
}

// RegisterSignalingServer wires impl into s under the Signaling
// service name, the hand-written equivalent of the generated
// RegisterSignalingServer function.
func RegisterSignalingServer(s *grpc.Server, impl SignalingServer) {
	s.RegisterService(&signalingServiceDesc, impl)
}

// SignalingClient is the hand-written equivalent of a generated gRPC
// client stub: each method is a thin wrapper around
// grpc.ClientConn.Invoke using the JSON codec registered in codec.go.
type SignalingClient struct {
	cc *grpc.ClientConn
}

// NewSignalingClient wraps an established connection.
func NewSignalingClient(cc *grpc.ClientConn) *SignalingClient {
	return &SignalingClient{cc: cc}
}

func (c *SignalingClient) invoke(ctx context.Context, method string, in, out interface{}) error {
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, grpc.CallContentSubtype(CodecName))
}

func (c *SignalingClient) RequestContext(ctx context.Context, in *ContextRequest) (*ContextReply, error) {
	out := new(ContextReply)
	if err := c.invoke(ctx, "RequestContext", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SignalingClient) RequestVaddr(ctx context.Context, in *VaddrRequest) (*VaddrReply, error) {
	out := new(VaddrReply)
	if err := c.invoke(ctx, "RequestVaddr", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SignalingClient) LookupVaddr(ctx context.Context, in *VaddrLookup) (*UriReply, error) {
	out := new(UriReply)
	if err := c.invoke(ctx, "LookupVaddr", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SignalingClient) LeaveContext(ctx context.Context, in *LeaveRequest) (*LeaveReply, error) {
	out := new(LeaveReply)
	if err := c.invoke(ctx, "LeaveContext", in, out); err != nil {
		return nil, err
	}
	return out, nil
}
