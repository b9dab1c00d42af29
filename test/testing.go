// Package test holds end-to-end scenarios exercising a full cluster of
// communicators against a real in-process signaling service and real
// loopback TCP sockets, following the teacher's UnityCluster/
// CreateCluster pattern of standing up N peers and tearing them all
// down together.
package test

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/jabolina/graybat/pkg/graybat/core"
	"github.com/jabolina/graybat/pkg/graybat/definition"
	"github.com/jabolina/graybat/pkg/graybat/signaling"
	"github.com/jabolina/graybat/pkg/graybat/types"
)

// Cluster is a bootstrapped set of communicators all sharing one
// context, plus the signaling service they bootstrapped against.
type Cluster struct {
	T       *testing.T
	Server  *signaling.Server
	Peers   []*core.SocketCommunicator
	group   *sync.WaitGroup
	mutex   *sync.Mutex
}

// StartSignaling starts a signaling service on an OS-assigned port and
// registers its shutdown on t's Cleanup.
func StartSignaling(t *testing.T) *signaling.Server {
	t.Helper()
	srv, err := signaling.Listen("127.0.0.1:0", definition.NewDefaultLogger())
	if err != nil {
		t.Fatalf("failed to start signaling service: %v", err)
	}
	go srv.Serve()
	t.Cleanup(srv.Stop)
	return srv
}

// CreateCluster bootstraps size communicators against srv under a
// fresh context name derived from prefix, binding data/ctrl endpoints
// starting at basePort.
func CreateCluster(t *testing.T, srv *signaling.Server, size int, prefix string, basePort int) *Cluster {
	t.Helper()
	contextName := fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	peers := make([]*core.SocketCommunicator, size)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	wg.Add(size)
	for i := 0; i < size; i++ {
		go func() {
			defer wg.Done()
			cfg := types.Config{
				DataURIBase:    fmt.Sprintf("127.0.0.1:%d", basePort),
				CtrlURIBase:    fmt.Sprintf("127.0.0.1:%d", basePort+1000),
				ContextSize:    uint32(size),
				ContextName:    contextName,
				SignalingURI:   srv.Addr(),
				MaxBufferBytes: 4 << 20,
				Logger:         definition.NewDefaultLogger(),
			}
			comm, err := core.Bootstrap(cfg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			peers[comm.InitialContext().Self] = comm
		}()
	}
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("failed bootstrapping cluster %q: %v", prefix, firstErr)
	}
	return &Cluster{T: t, Server: srv, Peers: peers, group: &sync.WaitGroup{}, mutex: &sync.Mutex{}}
}

// Off closes every peer in the cluster concurrently and waits for them
// all to finish tearing down.
func (c *Cluster) Off() {
	for _, peer := range c.Peers {
		c.group.Add(1)
		go c.poweroffPeer(peer)
	}
	c.group.Wait()
}

func (c *Cluster) poweroffPeer(comm *core.SocketCommunicator) {
	defer c.group.Done()
	if err := comm.Close(); err != nil {
		c.T.Logf("close peer: %v", err)
	}
}

// PrintStackTrace dumps every goroutine's stack into the test log,
// used when a scenario hangs under WaitThisOrTimeout.
func PrintStackTrace(t *testing.T) {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	t.Errorf("%s", buf[:n])
}

// WaitThisOrTimeout runs cb on its own goroutine and reports whether
// it finished before duration elapsed.
func WaitThisOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan bool, 1)
	go func() {
		cb()
		done <- true
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}
