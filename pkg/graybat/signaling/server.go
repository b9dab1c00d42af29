package signaling

import (
	"net"

	"google.golang.org/grpc"

	"github.com/jabolina/graybat/pkg/graybat/signaling/rpc"
	"github.com/jabolina/graybat/pkg/graybat/types"
)

// Server wraps a gRPC server running a Service instance.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	Service    *Service
}

// Listen binds addr and wires a fresh Service onto a gRPC server ready
// to Serve.
func Listen(addr string, log types.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &types.TransportError{Op: "signaling-listen", Cause: err}
	}
	svc := NewService(log)
	grpcServer := grpc.NewServer()
	rpc.RegisterSignalingServer(grpcServer, svc)
	return &Server{grpcServer: grpcServer, listener: ln, Service: svc}, nil
}

// Addr is the address the server is bound to.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks, accepting and handling signaling RPCs until Stop is
// called.
func (s *Server) Serve() error {
	return s.grpcServer.Serve(s.listener)
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}
