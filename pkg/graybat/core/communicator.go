// Package core implements the communicator core (C5) and the event and
// status types (C7) it hands back from its async operations: bootstrap
// against the signaling service, send/recv/probe (both targeted and
// receive-from-any), and splitContext.
//
// A SocketCommunicator owns exactly one data and one control receive
// endpoint for its whole lifetime. Peer send sockets are keyed by URI
// rather than by context, so a
// splitContext never reopens a socket: the new context's traffic is
// simply multiplexed over the same physical connections using its own
// context id in the frame header, same as the original graybat's
// socket communication policy.
package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jabolina/graybat/pkg/graybat/definition"
	"github.com/jabolina/graybat/pkg/graybat/mailbox"
	"github.com/jabolina/graybat/pkg/graybat/signaling"
	"github.com/jabolina/graybat/pkg/graybat/transport"
	"github.com/jabolina/graybat/pkg/graybat/types"
	"github.com/jabolina/graybat/pkg/graybat/wire"
)

// Communicator is the surface the collective layer (C6) and
// applications build on: send/recv/probe plus their async
// counterparts, and splitContext.
type Communicator interface {
	InitialContext() types.Context

	Send(ctx types.Context, dest types.VAddr, tag types.Tag, payload []byte) error
	AsyncSend(ctx types.Context, dest types.VAddr, tag types.Tag, payload []byte) (*Event, error)

	Recv(ctx types.Context, src types.VAddr, tag types.Tag, buf []byte) (int, error)
	AsyncRecv(ctx types.Context, src types.VAddr, tag types.Tag, buf []byte) (*Event, error)
	RecvAny(ctx types.Context, buf []byte) (*Event, error)

	Probe(ctx types.Context, src types.VAddr, tag types.Tag) (Status, error)
	AsyncProbe(ctx types.Context, src types.VAddr, tag types.Tag) (*Status, bool)

	SplitContext(parent types.Context, isMember bool) (types.Context, error)

	Close() error
}

// SocketCommunicator is the TCP-backed Communicator implementation.
type SocketCommunicator struct {
	log     types.Logger
	invoker Invoker

	signalingClient *signaling.Client

	initialContext types.Context

	mu        sync.RWMutex
	dataURIOf map[types.ContextID]map[types.VAddr]types.URI
	ctrlURIOf map[types.ContextID]map[types.VAddr]types.URI
	contextOf map[types.ContextID]types.Context

	connMu        sync.Mutex
	dataConnByURI map[types.URI]*transport.Connection
	ctrlConnByURI map[types.URI]*transport.Connection

	sendMu sync.Mutex

	dataEndpoint *transport.Endpoint
	ctrlEndpoint *transport.Endpoint

	inbox   *mailbox.Box
	ctrlBox *mailbox.Box

	msgIDCounter   uint32
	splitCounter   uint32
	contextNameSeq string

	wg sync.WaitGroup

	closeOnce sync.Once
}

var _ Communicator = (*SocketCommunicator)(nil)

// Bootstrap runs the startup sequence in spec.md §4.5: allocate a
// context from the signaling service, bind data/ctrl endpoints,
// publish their URIs (which assigns our vaddr), poll every other
// peer's URIs, connect
// a send socket pair to each (including ourselves), and rendezvous
// once every peer has connected to us in turn.
func Bootstrap(cfg types.Config) (*SocketCommunicator, error) {
	log := cfg.Logger
	if log == nil {
		log = definition.NewDefaultLogger()
	}

	client, err := signaling.Dial(cfg.SignalingURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSignalingUnreachable, err)
	}

	ctx := context.Background()
	contextID, err := client.RequestContext(ctx, cfg.ContextName)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", types.ErrContextAllocFailed, err)
	}

	dataHost, dataPort, err := splitHostPortBase(cfg.DataURIBase)
	if err != nil {
		client.Close()
		return nil, err
	}
	ctrlHost, ctrlPort, err := splitHostPortBase(cfg.CtrlURIBase)
	if err != nil {
		client.Close()
		return nil, err
	}

	dataEP, err := transport.Bind(dataHost, dataPort)
	if err != nil {
		client.Close()
		return nil, err
	}
	ctrlEP, err := transport.Bind(ctrlHost, ctrlPort)
	if err != nil {
		client.Close()
		dataEP.Close()
		return nil, err
	}

	dataURI := dataEP.LocalURI()
	ctrlURI := ctrlEP.LocalURI()

	selfVAddr, err := client.RequestVaddr(ctx, contextID, dataURI, ctrlURI)
	if err != nil {
		client.Close()
		dataEP.Close()
		ctrlEP.Close()
		return nil, err
	}

	comm := &SocketCommunicator{
		log:             log,
		invoker:         InvokerInstance(),
		signalingClient: client,
		dataURIOf:       map[types.ContextID]map[types.VAddr]types.URI{contextID: {}},
		ctrlURIOf:       map[types.ContextID]map[types.VAddr]types.URI{contextID: {}},
		contextOf:       map[types.ContextID]types.Context{},
		dataConnByURI:   map[types.URI]*transport.Connection{},
		ctrlConnByURI:   map[types.URI]*transport.Connection{},
		dataEndpoint:    dataEP,
		ctrlEndpoint:    ctrlEP,
		inbox:           mailbox.NewBox(cfg.MaxBufferBytes),
		ctrlBox:         mailbox.NewBox(cfg.MaxBufferBytes),
		contextNameSeq:  cfg.ContextName,
	}

	size := int(cfg.ContextSize)
	acceptWG := &sync.WaitGroup{}
	acceptWG.Add(2 * size)
	comm.invoker.Spawn(func() { comm.acceptLoop(comm.dataEndpoint, "data", size, acceptWG) })
	comm.invoker.Spawn(func() { comm.acceptLoop(comm.ctrlEndpoint, "ctrl", size, acceptWG) })

	for v := types.VAddr(0); v < types.VAddr(size); v++ {
		dURI, cURI, pollErr := client.PollVaddr(ctx, contextID, v)
		if pollErr != nil {
			return nil, pollErr
		}
		comm.mu.Lock()
		comm.dataURIOf[contextID][v] = dURI
		comm.ctrlURIOf[contextID][v] = cURI
		comm.mu.Unlock()

		if connErr := comm.ensureSendConn(dURI, cURI); connErr != nil {
			return nil, connErr
		}
	}

	acceptWG.Wait()

	comm.initialContext = types.Context{ID: contextID, Self: selfVAddr, Size: uint32(size), Name: cfg.ContextName}
	comm.mu.Lock()
	comm.contextOf[contextID] = comm.initialContext
	comm.mu.Unlock()

	log.Infof("bootstrapped %s", comm.initialContext)
	return comm, nil
}

func splitHostPortBase(base string) (host string, port int, err error) {
	var portStr string
	host, portStr, err = splitOnce(base, ':')
	if err != nil {
		return "", 0, fmt.Errorf("graybat: invalid endpoint base %q: %w", base, err)
	}
	if _, err = fmt.Sscanf(portStr, "%d", &port); err != nil {
		return "", 0, fmt.Errorf("graybat: invalid port in endpoint base %q: %w", base, err)
	}
	return host, port, nil
}

func splitOnce(s string, sep byte) (before, after string, err error) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == sep {
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("separator %q not found", sep)
}

// ensureSendConn dials dataURI/ctrlURI exactly once each; repeat calls
// for already-known URIs (including across a splitContext reusing the
// parent's phone book) are a no-op.
func (c *SocketCommunicator) ensureSendConn(dataURI, ctrlURI types.URI) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if _, ok := c.dataConnByURI[dataURI]; !ok {
		host, port, err := transport.ParseHostPort(dataURI)
		if err != nil {
			return err
		}
		conn, err := transport.Connect(host, port)
		if err != nil {
			return err
		}
		c.dataConnByURI[dataURI] = conn
	}
	if _, ok := c.ctrlConnByURI[ctrlURI]; !ok {
		host, port, err := transport.ParseHostPort(ctrlURI)
		if err != nil {
			return err
		}
		conn, err := transport.Connect(host, port)
		if err != nil {
			return err
		}
		c.ctrlConnByURI[ctrlURI] = conn
	}
	return nil
}

func (c *SocketCommunicator) acceptLoop(ep *transport.Endpoint, kind string, n int, acceptWG *sync.WaitGroup) {
	for i := 0; i < n; i++ {
		conn, err := ep.Accept()
		if err != nil {
			c.log.Errorf("%s receiver: accept failed, aborting rendezvous: %v", kind, err)
			for ; i < n; i++ {
				acceptWG.Done()
			}
			return
		}
		c.wg.Add(1)
		acceptWG.Done()
		if kind == "data" {
			c.invoker.Spawn(func() { c.dataReaderLoop(conn) })
		} else {
			c.invoker.Spawn(func() { c.ctrlReaderLoop(conn) })
		}
	}
}

// InitialContext is the context produced by Bootstrap.
func (c *SocketCommunicator) InitialContext() types.Context {
	return c.initialContext
}

func (c *SocketCommunicator) nextMsgID() types.MsgID {
	return types.MsgID(atomic.AddUint32(&c.msgIDCounter, 1))
}

func (c *SocketCommunicator) selfVAddr(contextID types.ContextID) (types.VAddr, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ctx, ok := c.contextOf[contextID]
	if !ok {
		return 0, false
	}
	return ctx.Self, true
}

func (c *SocketCommunicator) dataSendConn(contextID types.ContextID, dest types.VAddr) (*transport.Connection, error) {
	c.mu.RLock()
	uri, ok := c.dataURIOf[contextID][dest]
	c.mu.RUnlock()
	if !ok {
		return nil, types.ErrProtocolMismatch
	}
	c.connMu.Lock()
	conn, ok := c.dataConnByURI[uri]
	c.connMu.Unlock()
	if !ok {
		return nil, types.ErrProtocolMismatch
	}
	return conn, nil
}

func (c *SocketCommunicator) ctrlSendConn(contextID types.ContextID, dest types.VAddr) (*transport.Connection, error) {
	c.mu.RLock()
	uri, ok := c.ctrlURIOf[contextID][dest]
	c.mu.RUnlock()
	if !ok {
		return nil, types.ErrProtocolMismatch
	}
	c.connMu.Lock()
	conn, ok := c.ctrlConnByURI[uri]
	c.connMu.Unlock()
	if !ok {
		return nil, types.ErrProtocolMismatch
	}
	return conn, nil
}

func (c *SocketCommunicator) writeFrame(conn *transport.Connection, frame []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return conn.SendPrefixSize(frame)
}

// AsyncSend frames payload as a PEER message to dest within ctx and
// writes it to dest's data send socket, returning immediately with an
// Event that becomes ready on the matching CONFIRM.
func (c *SocketCommunicator) AsyncSend(ctx types.Context, dest types.VAddr, tag types.Tag, payload []byte) (*Event, error) {
	if !ctx.Valid() {
		return nil, types.ErrContextInvalid
	}
	conn, err := c.dataSendConn(ctx.ID, dest)
	if err != nil {
		return nil, err
	}
	msgID := c.nextMsgID()
	frame := wire.Encode(wire.PEER, msgID, ctx.ID, ctx.Self, tag, payload)
	if err := c.writeFrame(conn, frame); err != nil {
		return doneEvent(err), nil
	}
	return &Event{msgID: msgID, context: ctx, peerVAddr: dest, tag: tag, ctrlBox: c.ctrlBox}, nil
}

// Send is AsyncSend followed by Wait.
func (c *SocketCommunicator) Send(ctx types.Context, dest types.VAddr, tag types.Tag, payload []byte) error {
	ev, err := c.AsyncSend(ctx, dest, tag, payload)
	if err != nil {
		return err
	}
	return ev.Wait()
}

// AsyncRecv returns immediately: an already-done Event if a matching
// PEER frame is already queued, otherwise a pending Event that becomes
// ready once one arrives.
func (c *SocketCommunicator) AsyncRecv(ctx types.Context, src types.VAddr, tag types.Tag, buf []byte) (*Event, error) {
	if !ctx.Valid() {
		return nil, types.ErrContextInvalid
	}
	key := mailbox.Key{Type: wire.PEER, ContextID: ctx.ID, SrcVAddr: src, Tag: tag}
	if frame, ok := c.inbox.TryDequeue(key); ok {
		n := copy(buf, frame.Payload)
		return &Event{done: true, n: n, context: ctx, peerVAddr: src, tag: tag}, nil
	}
	return &Event{context: ctx, peerVAddr: src, tag: tag, buf: buf, inbox: c.inbox}, nil
}

// Recv blocks until a PEER frame from src with tag arrives within ctx,
// copying its payload into buf.
func (c *SocketCommunicator) Recv(ctx types.Context, src types.VAddr, tag types.Tag, buf []byte) (int, error) {
	if !ctx.Valid() {
		return 0, types.ErrContextInvalid
	}
	key := mailbox.Key{Type: wire.PEER, ContextID: ctx.ID, SrcVAddr: src, Tag: tag}
	frame := c.inbox.WaitDequeue(key)
	return copy(buf, frame.Payload), nil
}

// RecvAny blocks until a PEER frame from any peer within ctx arrives,
// copying its payload into buf and returning an already-done Event
// whose Source/Tag report who it actually came from.
func (c *SocketCommunicator) RecvAny(ctx types.Context, buf []byte) (*Event, error) {
	if !ctx.Valid() {
		return nil, types.ErrContextInvalid
	}
	prefix := mailbox.Key{Type: wire.PEER, ContextID: ctx.ID}
	frame, matched := c.inbox.WaitDequeueAny(prefix, 2)
	n := copy(buf, frame.Payload)
	return &Event{
		done: true, n: n, context: ctx,
		peerVAddr: matched.SrcVAddr, tag: matched.Tag,
		learnedSrc: matched.SrcVAddr, learnedTag: matched.Tag, hasLearned: true,
	}, nil
}

// Probe blocks until a PEER frame from src with tag is queued, then
// reports its size without consuming it.
func (c *SocketCommunicator) Probe(ctx types.Context, src types.VAddr, tag types.Tag) (Status, error) {
	if !ctx.Valid() {
		return Status{}, types.ErrContextInvalid
	}
	key := mailbox.Key{Type: wire.PEER, ContextID: ctx.ID, SrcVAddr: src, Tag: tag}
	size := c.inbox.WaitProbe(key)
	return Status{Source: src, Tag: tag, ByteCount: size}, nil
}

// AsyncProbe is the non-blocking counterpart of Probe: its second
// return value is false if nothing is queued yet.
func (c *SocketCommunicator) AsyncProbe(ctx types.Context, src types.VAddr, tag types.Tag) (*Status, bool) {
	if !ctx.Valid() {
		return nil, false
	}
	key := mailbox.Key{Type: wire.PEER, ContextID: ctx.ID, SrcVAddr: src, Tag: tag}
	size, ok := c.inbox.Probe(key)
	if !ok {
		return nil, false
	}
	return &Status{Source: src, Tag: tag, ByteCount: size}, true
}

// Close tears the communicator down: it sends itself a DESTRUCT on
// both channels, closes the listening endpoints and every send
// connection, joins all reader goroutines (each stops on DESTRUCT or
// once the peer at the other end closes its connection), leaves the
// signaling context, and closes the signaling client connection.
func (c *SocketCommunicator) Close() error {
	var err error
	c.closeOnce.Do(func() {
		selfData, dErr := c.dataSendConn(c.initialContext.ID, c.initialContext.Self)
		if dErr == nil {
			destruct := wire.Encode(wire.DESTRUCT, 0, c.initialContext.ID, c.initialContext.Self, 0, nil)
			_ = c.writeFrame(selfData, destruct)
		}
		selfCtrl, cErr := c.ctrlSendConn(c.initialContext.ID, c.initialContext.Self)
		if cErr == nil {
			destruct := wire.Encode(wire.DESTRUCT, 0, c.initialContext.ID, c.initialContext.Self, 0, nil)
			_ = c.writeFrame(selfCtrl, destruct)
		}

		c.dataEndpoint.Close()
		c.ctrlEndpoint.Close()

		c.connMu.Lock()
		for _, conn := range c.dataConnByURI {
			conn.Close()
		}
		for _, conn := range c.ctrlConnByURI {
			conn.Close()
		}
		c.connMu.Unlock()

		c.wg.Wait()
		c.inbox.Close()
		c.ctrlBox.Close()

		ctx := context.Background()
		if leaveErr := c.signalingClient.LeaveContext(ctx, c.initialContext.Name); leaveErr != nil {
			c.log.Warnf("leave context: %v", leaveErr)
		}
		err = c.signalingClient.Close()
	})
	return err
}
