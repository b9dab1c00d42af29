package signaling

import (
	"context"
	"testing"
	"time"

	"github.com/jabolina/graybat/pkg/graybat/definition"
	"github.com/jabolina/graybat/pkg/graybat/types"
)

func startTestServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	srv, err := Listen("127.0.0.1:0", definition.NewDefaultLogger())
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(srv.Stop)

	client, err := Dial(srv.Addr())
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func TestRequestContext_SameNameReturnsSameID(t *testing.T) {
	_, client := startTestServer(t)
	ctx := context.Background()

	first, err := client.RequestContext(ctx, "alpha")
	if err != nil {
		t.Fatalf("request context failed: %v", err)
	}
	second, err := client.RequestContext(ctx, "alpha")
	if err != nil {
		t.Fatalf("request context failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same context id for repeated requests, got %d and %d", first, second)
	}

	other, err := client.RequestContext(ctx, "beta")
	if err != nil {
		t.Fatalf("request context failed: %v", err)
	}
	if other == first {
		t.Fatalf("expected a different context id for a different name")
	}
}

func TestRequestVaddr_AssignsContiguousIndices(t *testing.T) {
	_, client := startTestServer(t)
	ctx := context.Background()

	contextID, err := client.RequestContext(ctx, "mesh")
	if err != nil {
		t.Fatalf("request context failed: %v", err)
	}

	for expected := types.VAddr(0); expected < 4; expected++ {
		vaddr, err := client.RequestVaddr(ctx, contextID, types.URI("tcp://peer"), types.URI("tcp://ctrl"))
		if err != nil {
			t.Fatalf("request vaddr failed: %v", err)
		}
		if vaddr != expected {
			t.Fatalf("expected vaddr %d, got %d", expected, vaddr)
		}
	}
}

func TestLookupVaddr_EmptyUntilRegistered(t *testing.T) {
	_, client := startTestServer(t)
	ctx := context.Background()

	contextID, err := client.RequestContext(ctx, "lookup")
	if err != nil {
		t.Fatalf("request context failed: %v", err)
	}

	dataURI, ctrlURI, err := client.LookupVaddr(ctx, contextID, 0)
	if err != nil {
		t.Fatalf("lookup vaddr failed: %v", err)
	}
	if dataURI != "" || ctrlURI != "" {
		t.Fatalf("expected empty URIs before registration, got %q %q", dataURI, ctrlURI)
	}

	if _, err := client.RequestVaddr(ctx, contextID, "tcp://data", "tcp://ctrl"); err != nil {
		t.Fatalf("request vaddr failed: %v", err)
	}

	dataURI, ctrlURI, err = client.LookupVaddr(ctx, contextID, 0)
	if err != nil {
		t.Fatalf("lookup vaddr failed: %v", err)
	}
	if dataURI != "tcp://data" || ctrlURI != "tcp://ctrl" {
		t.Fatalf("expected registered URIs, got %q %q", dataURI, ctrlURI)
	}
}

func TestPollVaddr_RetriesUntilRegistered(t *testing.T) {
	_, client := startTestServer(t)
	ctx := context.Background()

	contextID, err := client.RequestContext(ctx, "poll")
	if err != nil {
		t.Fatalf("request context failed: %v", err)
	}

	go func() {
		time.Sleep(75 * time.Millisecond)
		_, _ = client.RequestVaddr(ctx, contextID, "tcp://late", "tcp://late-ctrl")
	}()

	deadline, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	dataURI, ctrlURI, err := client.PollVaddr(deadline, contextID, 0)
	if err != nil {
		t.Fatalf("poll vaddr failed: %v", err)
	}
	if dataURI != "tcp://late" || ctrlURI != "tcp://late-ctrl" {
		t.Fatalf("expected late-registered URIs, got %q %q", dataURI, ctrlURI)
	}
}

func TestLeaveContext_ReleasesNameAfterLastLeave(t *testing.T) {
	_, client := startTestServer(t)
	ctx := context.Background()

	first, err := client.RequestContext(ctx, "ephemeral")
	if err != nil {
		t.Fatalf("request context failed: %v", err)
	}
	if err := client.LeaveContext(ctx, "ephemeral"); err != nil {
		t.Fatalf("leave context failed: %v", err)
	}

	second, err := client.RequestContext(ctx, "ephemeral")
	if err != nil {
		t.Fatalf("request context failed: %v", err)
	}
	if second == first {
		t.Fatalf("expected name reuse to allocate a fresh id; got %d again", second)
	}
}
