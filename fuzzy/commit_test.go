// Package fuzzy stress-tests concurrency and shutdown cleanliness: no
// failure injection, just many concurrent sends/recvs followed by a
// goleak check that every receiver-task goroutine actually exited.
package fuzzy

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/jabolina/graybat/pkg/graybat/types"
	"github.com/jabolina/graybat/test"
)

func Test_ConcurrentSendRecvNoGoroutineLeak(t *testing.T) {
	srv := test.StartSignaling(t)
	cluster := test.CreateCluster(t, srv, 4, "fuzzy-concurrent", 21100)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for round := 0; round < 16; round++ {
		for i := 0; i < len(cluster.Peers); i++ {
			dest := (i + 1) % len(cluster.Peers)
			wg.Add(2)
			src, dst, r := i, dest, round
			buf := make([]byte, 16)
			go func() {
				defer wg.Done()
				if _, err := cluster.Peers[dst].Recv(cluster.Peers[dst].InitialContext(), types.VAddr(src), types.Tag(r), buf); err != nil {
					errs <- fmt.Errorf("round %d: peer %d recv from %d: %w", r, dst, src, err)
				}
			}()
			go func() {
				defer wg.Done()
				payload := []byte(fmt.Sprintf("r%02d-%d->%d", r, src, dst))
				if err := cluster.Peers[src].Send(cluster.Peers[src].InitialContext(), types.VAddr(dst), types.Tag(r), payload); err != nil {
					errs <- fmt.Errorf("round %d: peer %d send to %d: %w", r, src, dst, err)
				}
			}()
		}
	}

	if !test.WaitThisOrTimeout(wg.Wait, 30*time.Second) {
		t.Error("concurrent send/recv rounds did not finish in time")
		test.PrintStackTrace(t)
	}
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if !test.WaitThisOrTimeout(cluster.Off, 30*time.Second) {
		t.Error("failed shutting down cluster")
		test.PrintStackTrace(t)
	}

	goleak.VerifyNone(t,
		// the signaling service's gRPC server keeps background
		// goroutines alive until its own test cleanup runs Stop,
		// which happens after this check.
		goleak.IgnoreTopFunction("google.golang.org/grpc.(*Server).Serve"),
	)
}

func Test_BootstrapAndImmediateShutdown(t *testing.T) {
	srv := test.StartSignaling(t)
	for i := 0; i < 5; i++ {
		cluster := test.CreateCluster(t, srv, 3, fmt.Sprintf("fuzzy-bootstrap-%d", i), 21200+i*10)
		if !test.WaitThisOrTimeout(cluster.Off, 10*time.Second) {
			t.Errorf("iteration %d: cluster did not shut down in time", i)
			test.PrintStackTrace(t)
		}
	}
}
