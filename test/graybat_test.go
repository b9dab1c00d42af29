package test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jabolina/graybat/pkg/graybat/collective"
	"github.com/jabolina/graybat/pkg/graybat/types"
)

func TestScenario_Ping(t *testing.T) {
	srv := StartSignaling(t)
	cluster := CreateCluster(t, srv, 2, "ping", 20100)
	defer cluster.Off()

	a, b := cluster.Peers[0], cluster.Peers[1]
	ok := WaitThisOrTimeout(func() {
		buf := make([]byte, 4)
		go func() {
			_, _ = b.Recv(b.InitialContext(), 0, 1, buf)
		}()
		if err := a.Send(a.InitialContext(), 1, 1, []byte("ping")); err != nil {
			t.Errorf("send failed: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
		if string(buf) != "ping" {
			t.Errorf("expected peer 1 to receive %q, got %q", "ping", buf)
		}
	}, 2*time.Second)
	if !ok {
		PrintStackTrace(t)
		t.Fatalf("ping scenario did not complete in time")
	}
}

func TestScenario_FullMesh(t *testing.T) {
	srv := StartSignaling(t)
	size := 4
	cluster := CreateCluster(t, srv, size, "mesh", 20200)
	defer cluster.Off()

	var wg sync.WaitGroup
	errs := make(chan error, size*size)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if i == j {
				continue
			}
			wg.Add(2)
			src, dst := types.VAddr(i), types.VAddr(j)
			buf := make([]byte, 8)
			go func() {
				defer wg.Done()
				if _, err := cluster.Peers[dst].Recv(cluster.Peers[dst].InitialContext(), src, types.Tag(100+i), buf); err != nil {
					errs <- fmt.Errorf("peer %d recv from %d: %w", dst, src, err)
				}
			}()
			go func() {
				defer wg.Done()
				payload := []byte(fmt.Sprintf("%d->%d", src, dst))
				if err := cluster.Peers[src].Send(cluster.Peers[src].InitialContext(), dst, types.Tag(100+i), payload); err != nil {
					errs <- fmt.Errorf("peer %d send to %d: %w", src, dst, err)
				}
			}()
		}
	}

	ok := WaitThisOrTimeout(wg.Wait, 5*time.Second)
	close(errs)
	if !ok {
		PrintStackTrace(t)
		t.Fatalf("full mesh scenario did not complete in time")
	}
	for err := range errs {
		t.Error(err)
	}
}

func TestScenario_OrderPreservedWithinOneTag(t *testing.T) {
	srv := StartSignaling(t)
	cluster := CreateCluster(t, srv, 2, "order", 20300)
	defer cluster.Off()

	a, b := cluster.Peers[0], cluster.Peers[1]
	ctx := a.InitialContext()
	const n = 50

	go func() {
		for i := 0; i < n; i++ {
			if err := a.Send(ctx, 1, 9, []byte(fmt.Sprintf("%03d", i))); err != nil {
				t.Errorf("send %d failed: %v", i, err)
				return
			}
		}
	}()

	ok := WaitThisOrTimeout(func() {
		for i := 0; i < n; i++ {
			buf := make([]byte, 3)
			if _, err := b.Recv(b.InitialContext(), 0, 9, buf); err != nil {
				t.Errorf("recv %d failed: %v", i, err)
				return
			}
			if string(buf) != fmt.Sprintf("%03d", i) {
				t.Errorf("message %d arrived out of order: got %q", i, buf)
				return
			}
		}
	}, 5*time.Second)
	if !ok {
		PrintStackTrace(t)
		t.Fatalf("order preservation scenario did not complete in time")
	}
}

func TestScenario_CollectiveReduceSum(t *testing.T) {
	srv := StartSignaling(t)
	size := 5
	cluster := CreateCluster(t, srv, size, "reduce", 20400)
	defer cluster.Off()

	sum := func(a, b []byte) []byte {
		var x, y int
		fmt.Sscanf(string(a), "%d", &x)
		fmt.Sscanf(string(b), "%d", &y)
		return []byte(fmt.Sprintf("%d", x+y))
	}

	results := make([][]byte, size)
	errs := make([]error, size)
	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < size; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := collective.New(cluster.Peers[i], cluster.Peers[i].InitialContext())
			r, err := b.AllReduce(1, []byte(fmt.Sprintf("%d", i+1)), sum)
			mu.Lock()
			results[i], errs[i] = r, err
			mu.Unlock()
		}(i)
	}

	ok := WaitThisOrTimeout(wg.Wait, 5*time.Second)
	if !ok {
		PrintStackTrace(t)
		t.Fatalf("collective reduce scenario did not complete in time")
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("peer %d all-reduce failed: %v", i, err)
		}
	}
	for i, r := range results {
		if string(r) != "15" {
			t.Fatalf("peer %d expected sum 15 (1+2+3+4+5), got %q", i, r)
		}
	}
}

func TestScenario_SplitContext(t *testing.T) {
	srv := StartSignaling(t)
	size := 4
	cluster := CreateCluster(t, srv, size, "split", 20500)
	defer cluster.Off()

	parent := cluster.Peers[0].InitialContext()
	isMember := func(v types.VAddr) bool { return v < 2 }

	newCtx := make([]types.Context, size)
	errs := make([]error, size)
	var wg sync.WaitGroup
	for i := 0; i < size; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			member := isMember(cluster.Peers[i].InitialContext().Self)
			newCtx[i], errs[i] = cluster.Peers[i].SplitContext(parent, member)
		}(i)
	}

	ok := WaitThisOrTimeout(wg.Wait, 5*time.Second)
	if !ok {
		PrintStackTrace(t)
		t.Fatalf("split scenario did not complete in time")
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("peer %d split failed: %v", i, err)
		}
	}

	if !newCtx[0].Valid() || !newCtx[1].Valid() {
		t.Fatalf("expected vaddrs 0 and 1 to be members of the split context")
	}
	if newCtx[2].Valid() || newCtx[3].Valid() {
		t.Fatalf("expected vaddrs 2 and 3 to be excluded from the split context")
	}

	buf := make([]byte, 5)
	done := make(chan error, 1)
	go func() {
		_, err := cluster.Peers[1].Recv(newCtx[1], newCtx[0].Self, 1, buf)
		done <- err
	}()
	if err := cluster.Peers[0].Send(newCtx[0], newCtx[1].Self, 1, []byte("hello")); err != nil {
		t.Fatalf("send within split context failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("recv within split context failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("recv within split context timed out")
	}
	if string(buf) != "hello" {
		t.Fatalf("expected %q within split context, got %q", "hello", buf)
	}
}

func TestScenario_SequentialSendsAllReceived(t *testing.T) {
	srv := StartSignaling(t)
	cluster := CreateCluster(t, srv, 2, "backpressure", 20600)
	defer cluster.Off()

	a, b := cluster.Peers[0], cluster.Peers[1]
	ctx := a.InitialContext()

	const messages = 20
	const payloadSize = 1024

	sendDone := make(chan error, 1)
	go func() {
		for i := 0; i < messages; i++ {
			if err := a.Send(ctx, 1, 5, make([]byte, payloadSize)); err != nil {
				sendDone <- err
				return
			}
		}
		sendDone <- nil
	}()

	received := 0
	ok := WaitThisOrTimeout(func() {
		for received < messages {
			buf := make([]byte, payloadSize)
			if _, err := b.Recv(b.InitialContext(), 0, 5, buf); err != nil {
				t.Errorf("recv failed after %d messages: %v", received, err)
				return
			}
			received++
		}
	}, 5*time.Second)
	if !ok {
		PrintStackTrace(t)
		t.Fatalf("sequential send scenario did not drain within timeout (received %d/%d)", received, messages)
	}
	if err := <-sendDone; err != nil {
		t.Fatalf("send loop failed: %v", err)
	}
}
