// Package signaling implements the central rendezvous service (C2):
// context id allocation, per-context vaddr assignment, and URI
// lookup, plus the client used by a communicator to talk to it.
//
// Transport- and message-shape-wise this follows the original graybat
// project's GrpcSignalingService (gRPC over four unary RPCs); see
// pkg/graybat/signaling/rpc for the hand-written service plumbing that
// stands in for protoc-generated bindings.
package signaling

import (
	"context"
	"fmt"
	"sync"

	"github.com/jabolina/graybat/pkg/graybat/signaling/rpc"
	"github.com/jabolina/graybat/pkg/graybat/types"
)

// peerRecord is one registered (data, ctrl) URI pair.
type peerRecord struct {
	dataURI string
	ctrlURI string
}

// Service is the signaling service's in-memory state: a name->id
// table, a reference count per name so LeaveContext can release ids
// for reuse, and per-context ordered peer lists.
//
// It serializes every request against its maps with a single mutex, as
// spec.md §4.2 requires ("the service must serialize concurrent
// requests against its internal maps").
type Service struct {
	mu sync.Mutex

	log types.Logger

	nextContextID types.ContextID
	contextIDs    map[string]types.ContextID
	refCounts     map[string]int

	peers map[types.ContextID][]peerRecord
}

// NewService creates an empty signaling service.
func NewService(log types.Logger) *Service {
	return &Service{
		log:        log,
		contextIDs: make(map[string]types.ContextID),
		refCounts:  make(map[string]int),
		peers:      make(map[types.ContextID][]peerRecord),
	}
}

var _ rpc.SignalingServer = (*Service)(nil)

// RequestContext returns the existing id for name, allocating a fresh
// one on first use.
func (s *Service) RequestContext(_ context.Context, req *rpc.ContextRequest) (*rpc.ContextReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.contextIDs[req.ContextName]
	if !ok {
		id = s.nextContextID
		s.contextIDs[req.ContextName] = id
		s.nextContextID++
	}
	s.refCounts[req.ContextName]++

	s.log.Debugf("signaling: context %q -> id %d", req.ContextName, id)
	return &rpc.ContextReply{ContextID: uint32(id)}, nil
}

// RequestVaddr appends (data_uri, ctrl_uri) to the context's ordered
// peer list; the new vaddr is the new list's index.
func (s *Service) RequestVaddr(_ context.Context, req *rpc.VaddrRequest) (*rpc.VaddrReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := types.ContextID(req.ContextID)
	s.peers[id] = append(s.peers[id], peerRecord{dataURI: req.DataURI, ctrlURI: req.CtrlURI})
	vaddr := len(s.peers[id]) - 1

	s.log.Debugf("signaling: context %d data=%s ctrl=%s -> vaddr %d", id, req.DataURI, req.CtrlURI, vaddr)
	return &rpc.VaddrReply{VAddr: uint32(vaddr)}, nil
}

// LookupVaddr returns the URIs registered by vaddr within context, or
// empty strings if it has not registered yet.
func (s *Service) LookupVaddr(_ context.Context, req *rpc.VaddrLookup) (*rpc.UriReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := types.ContextID(req.ContextID)
	peers := s.peers[id]
	if int(req.VAddr) >= len(peers) {
		return &rpc.UriReply{}, nil
	}
	record := peers[req.VAddr]
	return &rpc.UriReply{DataURI: record.dataURI, CtrlURI: record.ctrlURI}, nil
}

// LeaveContext is a best-effort cleanup releasing name's reservation
// once every peer that joined it has left.
func (s *Service) LeaveContext(_ context.Context, req *rpc.LeaveRequest) (*rpc.LeaveReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refCounts[req.ContextName]--
	if s.refCounts[req.ContextName] <= 0 {
		if id, ok := s.contextIDs[req.ContextName]; ok {
			delete(s.peers, id)
		}
		delete(s.contextIDs, req.ContextName)
		delete(s.refCounts, req.ContextName)
	}

	s.log.Debugf("signaling: leave context %q", req.ContextName)
	return &rpc.LeaveReply{}, nil
}

// String is handy for log lines identifying which service instance is
// running.
func (s *Service) String() string {
	return fmt.Sprintf("signaling.Service{contexts=%d}", len(s.contextIDs))
}
