package mailbox

import (
	"sync"
	"testing"
	"time"

	"github.com/jabolina/graybat/pkg/graybat/types"
	"github.com/jabolina/graybat/pkg/graybat/wire"
)

func frame(msgID, contextID, srcVAddr, tag uint32, payload []byte) wire.Frame {
	return wire.EncodeFrame(wire.PEER, types.MsgID(msgID), types.ContextID(contextID), types.VAddr(srcVAddr), types.Tag(tag), payload)
}

func TestBox_FIFOWithinOneKey(t *testing.T) {
	box := NewBox(0)
	key := Key{Type: wire.PEER, ContextID: 1, SrcVAddr: 0, Tag: 0}

	box.Enqueue(frame(1, 1, 0, 0, []byte("a")))
	box.Enqueue(frame(2, 1, 0, 0, []byte("b")))
	box.Enqueue(frame(3, 1, 0, 0, []byte("c")))

	for _, want := range []string{"a", "b", "c"} {
		got := box.WaitDequeue(key)
		if string(got.Payload) != want {
			t.Fatalf("expected %q, got %q", want, got.Payload)
		}
	}
}

func TestBox_TryDequeueEmpty(t *testing.T) {
	box := NewBox(0)
	key := Key{Type: wire.PEER, ContextID: 1, SrcVAddr: 0, Tag: 0}
	if _, ok := box.TryDequeue(key); ok {
		t.Fatalf("expected no message on an empty queue")
	}
}

func TestBox_WaitDequeueAny_LearnsFullKey(t *testing.T) {
	box := NewBox(0)
	box.Enqueue(frame(1, 5, 2, 7, []byte("x")))

	prefix := Key{Type: wire.PEER, ContextID: 5}
	got, matched := box.WaitDequeueAny(prefix, 2)
	if string(got.Payload) != "x" {
		t.Fatalf("expected payload x, got %q", got.Payload)
	}
	if matched.SrcVAddr != 2 || matched.Tag != 7 {
		t.Fatalf("expected matched key to learn src=2 tag=7, got %+v", matched)
	}
}

func TestBox_ProbeDoesNotRemove(t *testing.T) {
	box := NewBox(0)
	key := Key{Type: wire.PEER, ContextID: 1, SrcVAddr: 0, Tag: 0}
	box.Enqueue(frame(1, 1, 0, 0, []byte("hello")))

	size, ok := box.Probe(key)
	if !ok || size != 5 {
		t.Fatalf("expected probe to report size 5, got %d ok=%v", size, ok)
	}

	got := box.WaitDequeue(key)
	if len(got.Payload) != size {
		t.Fatalf("probe size %d did not match dequeued size %d", size, len(got.Payload))
	}
}

func TestBox_Backpressure(t *testing.T) {
	box := NewBox(10)
	key := Key{Type: wire.PEER, ContextID: 1, SrcVAddr: 0, Tag: 0}
	box.Enqueue(frame(1, 1, 0, 0, make([]byte, 8)))

	var wg sync.WaitGroup
	enqueued := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		box.Enqueue(frame(2, 1, 0, 0, make([]byte, 8)))
		close(enqueued)
	}()

	select {
	case <-enqueued:
		t.Fatalf("expected the second enqueue to block while over the high-water mark")
	case <-time.After(150 * time.Millisecond):
	}

	box.WaitDequeue(key)

	select {
	case <-enqueued:
	case <-time.After(time.Second):
		t.Fatalf("expected the blocked enqueue to proceed after draining one message")
	}
	wg.Wait()
}
