package core

import (
	"sync"
	"time"

	"github.com/jabolina/graybat/pkg/graybat/mailbox"
	"github.com/jabolina/graybat/pkg/graybat/types"
	"github.com/jabolina/graybat/pkg/graybat/wire"
)

// pollInterval paces the spin-poll inside Wait so it doesn't burn a
// core while an asyncSend/asyncRecv pair is in flight.
const pollInterval = time.Millisecond

// Event is the handle an asyncSend/asyncRecv call returns: a pending
// operation that becomes ready() when its matching CONFIRM or PEER
// frame shows up, with wait() spin-polling ready() until it does.
//
// A send event (buf == nil) resolves against ctrlBox; a recv event
// resolves against inbox. Either may already be done() at construction
// time — asyncSend when the transport write itself failed, asyncRecv
// and recv-from-any when the frame was already queued.
type Event struct {
	mu sync.Mutex

	msgID     types.MsgID
	context   types.Context
	peerVAddr types.VAddr
	tag       types.Tag
	buf       []byte

	done bool
	err  error
	n    int

	learnedSrc types.VAddr
	learnedTag types.Tag
	hasLearned bool

	ctrlBox *mailbox.Box
	inbox   *mailbox.Box
}

func doneEvent(err error) *Event {
	return &Event{done: true, err: err}
}

// Ready reports whether the event has resolved, performing at most one
// non-blocking dequeue attempt as a side effect.
func (e *Event) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readyLocked()
}

func (e *Event) readyLocked() bool {
	if e.done {
		return true
	}

	if e.buf == nil {
		key := mailbox.Key{Type: wire.CONFIRM, ContextID: e.context.ID, SrcVAddr: e.peerVAddr, Tag: e.tag}
		frame, ok := e.ctrlBox.TryDequeue(key)
		if !ok {
			return false
		}
		if frame.Header.MsgID != e.msgID {
			// Some other in-flight send on the same (context, peer,
			// tag) triple got confirmed first; put it back and try
			// again on the next poll.
			e.ctrlBox.Enqueue(frame)
			return false
		}
		e.done = true
		return true
	}

	key := mailbox.Key{Type: wire.PEER, ContextID: e.context.ID, SrcVAddr: e.peerVAddr, Tag: e.tag}
	frame, ok := e.inbox.TryDequeue(key)
	if !ok {
		return false
	}
	e.n = copy(e.buf, frame.Payload)
	e.done = true
	return true
}

// Wait spin-polls Ready until the event resolves, then returns its
// error (nil on success). Per spec this is unconditional — callers
// that need a deadline must race Wait against their own timer.
func (e *Event) Wait() error {
	for !e.Ready() {
		time.Sleep(pollInterval)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// N is the number of payload bytes copied into buf by a recv event.
// Meaningless for a send event.
func (e *Event) N() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.n
}

// Source is the peer this event concerns: the destination for a send,
// the source for a targeted recv, or the learned sender for a
// recv-from-any event.
func (e *Event) Source() types.VAddr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hasLearned {
		return e.learnedSrc
	}
	return e.peerVAddr
}

// Tag is the tag this event concerns, or the learned tag for a
// recv-from-any event.
func (e *Event) Tag() types.Tag {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hasLearned {
		return e.learnedTag
	}
	return e.tag
}
