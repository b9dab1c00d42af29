// Package mailbox implements the message box (C4): a thread-safe,
// multi-key FIFO queue shared between the communicator's receiver
// tasks (producers) and user threads (consumers), bounded in total
// byte size by a configured high-water mark.
package mailbox

import (
	"sync"
	"time"

	"github.com/jabolina/graybat/pkg/graybat/wire"
)

// wakeInterval bounds how long a blocked waiter can go without
// rechecking for new data or for Close, so teardown makes progress
// even without an explicit wakeup tied to its condition.
const wakeInterval = 100 * time.Millisecond

// Box is the multi-key blocking queue described in spec §4.4.
type Box struct {
	mu             sync.Mutex
	cond           *sync.Cond
	queues         map[Key][]wire.Frame
	totalBytes     uint64
	highWaterMark  uint64
	closed         bool
	stopPeriodicCh chan struct{}
}

// NewBox creates a Box bounded by highWaterMark total queued payload
// bytes. A high-water mark of 0 means unbounded.
func NewBox(highWaterMark uint64) *Box {
	b := &Box{
		queues:         make(map[Key][]wire.Frame),
		highWaterMark:  highWaterMark,
		stopPeriodicCh: make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	go b.periodicWake()
	return b
}

// periodicWake broadcasts on the condition variable every wakeInterval
// so blocked producers/consumers periodically recheck their predicate
// (and, crucially, the closed flag) even with no enqueue/dequeue
// activity to wake them.
func (b *Box) periodicWake() {
	ticker := time.NewTicker(wakeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.mu.Lock()
			b.cond.Broadcast()
			b.mu.Unlock()
		case <-b.stopPeriodicCh:
			return
		}
	}
}

// Close marks the box shut down, waking every blocked waiter; further
// Enqueue calls keep working but WaitDequeue/WaitProbe callers should
// stop once they observe Closed().
func (b *Box) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
	close(b.stopPeriodicCh)
}

// Closed reports whether Close has been called.
func (b *Box) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func keyOf(frame wire.Frame) Key {
	return Key{
		Type:      frame.Header.Type,
		ContextID: frame.Header.ContextID,
		SrcVAddr:  frame.Header.SrcVAddr,
		Tag:       frame.Header.Tag,
	}
}

// Enqueue appends frame to its queue, blocking while doing so would
// push the box's total queued bytes past the high-water mark.
func (b *Box) Enqueue(frame wire.Frame) {
	key := keyOf(frame)
	size := uint64(len(frame.Payload))

	b.mu.Lock()
	defer b.mu.Unlock()
	for b.highWaterMark > 0 && b.totalBytes+size > b.highWaterMark && !b.closed {
		b.cond.Wait()
	}
	b.queues[key] = append(b.queues[key], frame)
	b.totalBytes += size
	b.cond.Broadcast()
}

// dequeueLocked pops the head of queues[key], assuming the caller holds
// b.mu and queues[key] is non-empty.
func (b *Box) dequeueLocked(key Key) wire.Frame {
	q := b.queues[key]
	frame := q[0]
	if len(q) == 1 {
		delete(b.queues, key)
	} else {
		b.queues[key] = q[1:]
	}
	b.totalBytes -= uint64(len(frame.Payload))
	return frame
}

// WaitDequeue blocks until key's queue is non-empty, then pops and
// returns its head.
func (b *Box) WaitDequeue(key Key) wire.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.queues[key]) == 0 {
		b.cond.Wait()
	}
	frame := b.dequeueLocked(key)
	b.cond.Broadcast()
	return frame
}

// TryDequeue is the non-blocking counterpart of WaitDequeue.
func (b *Box) TryDequeue(key Key) (wire.Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queues[key]) == 0 {
		return wire.Frame{}, false
	}
	frame := b.dequeueLocked(key)
	b.cond.Broadcast()
	return frame, true
}

// firstMatchLocked returns the first key (in unspecified but
// deterministic-per-call iteration order) whose queue matches prefix
// and is non-empty. Assumes the caller holds b.mu.
func (b *Box) firstMatchLocked(prefix Key, prefixLen int) (Key, bool) {
	for key, q := range b.queues {
		if len(q) == 0 {
			continue
		}
		if key.hasPrefix(prefix, prefixLen) {
			return key, true
		}
	}
	return Key{}, false
}

// WaitDequeueAny is the "receive-from-any" variant: it blocks until any
// queue whose key begins with prefix (matching prefixLen leading
// components) is non-empty, then pops and returns both the frame and
// the full key that matched, so the caller learns the wildcarded
// components (typically src vaddr and tag).
func (b *Box) WaitDequeueAny(prefix Key, prefixLen int) (wire.Frame, Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if key, ok := b.firstMatchLocked(prefix, prefixLen); ok {
			frame := b.dequeueLocked(key)
			b.cond.Broadcast()
			return frame, key
		}
		b.cond.Wait()
	}
}

// TryDequeueAny is the non-blocking counterpart of WaitDequeueAny.
func (b *Box) TryDequeueAny(prefix Key, prefixLen int) (wire.Frame, Key, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key, ok := b.firstMatchLocked(prefix, prefixLen)
	if !ok {
		return wire.Frame{}, Key{}, false
	}
	frame := b.dequeueLocked(key)
	b.cond.Broadcast()
	return frame, key, true
}

// Probe returns the size of the head-of-queue message for key, without
// removing it, and whether one exists.
func (b *Box) Probe(key Key) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queues[key]
	if len(q) == 0 {
		return 0, false
	}
	return len(q[0].Payload), true
}

// WaitProbe blocks until key's queue is non-empty, then returns the
// size of its head-of-queue message without removing it.
func (b *Box) WaitProbe(key Key) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.queues[key]) == 0 {
		b.cond.Wait()
	}
	return len(b.queues[key][0].Payload)
}
