// Package collective implements the collective operations (C6):
// gather, allGather, scatter, allScatter, reduce, allReduce, broadcast
// and barrier, all built purely atop core.Communicator's send/recv
// primitives — no collective operation talks to a socket directly.
package collective

import (
	"encoding/json"
	"fmt"

	"github.com/jabolina/graybat/pkg/graybat/core"
	"github.com/jabolina/graybat/pkg/graybat/types"
)

// Base is the root type every collective operation hangs off of: a
// communicator plus the context the operation runs within.
type Base struct {
	Comm core.Communicator
	Ctx  types.Context
}

// New builds a Base for running collective operations within ctx over
// comm.
func New(comm core.Communicator, ctx types.Context) *Base {
	return &Base{Comm: comm, Ctx: ctx}
}

func (b *Base) send(dest types.VAddr, tag types.Tag, payload []byte) error {
	return b.Comm.Send(b.Ctx, dest, tag, payload)
}

func (b *Base) recv(src types.VAddr, tag types.Tag, maxBytes int) ([]byte, error) {
	buf := make([]byte, maxBytes)
	n, err := b.Comm.Recv(b.Ctx, src, tag, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// root is vaddr 0 within the operating context by convention, matching
// splitContext's own choice of coordinator. Operations that need a
// different coordinator (AllScatter's per-round all-to-all) go through
// the *At variants below instead of hard-coding root.
const root types.VAddr = 0

// maxFrameBytes bounds how large a single collective payload may be;
// callers needing more should chunk at a higher layer.
const maxFrameBytes = 64 << 20

func (b *Base) isRoot() bool {
	return b.Ctx.Self == root
}

// Gather sends value from every peer to root, which returns a slice
// indexed by vaddr; non-root peers get back nil.
func (b *Base) Gather(tag types.Tag, value []byte) ([][]byte, error) {
	return b.gatherAt(root, tag, value)
}

func (b *Base) gatherAt(at types.VAddr, tag types.Tag, value []byte) ([][]byte, error) {
	if err := b.send(at, tag, value); err != nil {
		return nil, err
	}
	if b.Ctx.Self != at {
		return nil, nil
	}
	out := make([][]byte, b.Ctx.Size)
	for v := types.VAddr(0); v < types.VAddr(b.Ctx.Size); v++ {
		chunk, err := b.recv(v, tag, maxFrameBytes)
		if err != nil {
			return nil, fmt.Errorf("gather: recv from %d: %w", v, err)
		}
		out[v] = chunk
	}
	return out, nil
}

// GatherVar is Gather for values whose size varies per peer. It is
// identical to Gather: variable sizing is already handled by Recv
// copying exactly what size the sender framed via the transport's own
// length-prefixed send. It exists as a distinct name to mirror
// spec.md's module list, which names gather and gatherVar separately.
func (b *Base) GatherVar(tag types.Tag, value []byte) ([][]byte, error) {
	return b.Gather(tag, value)
}

// AllGather is Gather followed by a Broadcast of the assembled slice
// back to every peer.
func (b *Base) AllGather(tag types.Tag, value []byte) ([][]byte, error) {
	gathered, err := b.Gather(tag, value)
	if err != nil {
		return nil, err
	}
	var body []byte
	if b.isRoot() {
		body, err = json.Marshal(gathered)
		if err != nil {
			return nil, err
		}
	}
	replied, err := b.broadcastAt(root, tag+1, body)
	if err != nil {
		return nil, err
	}
	if b.isRoot() {
		return gathered, nil
	}
	var out [][]byte
	if err := json.Unmarshal(replied, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AllGatherVar mirrors GatherVar's relationship to Gather.
func (b *Base) AllGatherVar(tag types.Tag, value []byte) ([][]byte, error) {
	return b.AllGather(tag, value)
}

// Scatter has root split values (one entry per vaddr) and send each
// peer its own entry; non-root peers pass a nil values slice.
func (b *Base) Scatter(tag types.Tag, values [][]byte) ([]byte, error) {
	return b.scatterAt(root, tag, values)
}

func (b *Base) scatterAt(at types.VAddr, tag types.Tag, values [][]byte) ([]byte, error) {
	if b.Ctx.Self == at {
		if uint32(len(values)) != b.Ctx.Size {
			return nil, fmt.Errorf("scatter: need exactly %d values, got %d", b.Ctx.Size, len(values))
		}
		for v := types.VAddr(0); v < types.VAddr(b.Ctx.Size); v++ {
			if v == at {
				continue
			}
			if err := b.send(v, tag, values[v]); err != nil {
				return nil, fmt.Errorf("scatter: send to %d: %w", v, err)
			}
		}
		return values[at], nil
	}
	return b.recv(at, tag, maxFrameBytes)
}

// AllScatter runs one Scatter round per vaddr in turn, so every peer
// ends up with the set of values every other peer addressed to it —
// an all-to-all personalized exchange. valuesPerRoot holds, for each
// vaddr r, the size-Ctx.Size slice r itself is scattering this round;
// peers other than r pass nothing for that round and their entry is
// ignored.
func (b *Base) AllScatter(tag types.Tag, valuesPerRoot map[types.VAddr][][]byte) (map[types.VAddr][]byte, error) {
	result := make(map[types.VAddr][]byte, b.Ctx.Size)
	for r := types.VAddr(0); r < types.VAddr(b.Ctx.Size); r++ {
		got, err := b.scatterAt(r, tag+types.Tag(r), valuesPerRoot[r])
		if err != nil {
			return nil, fmt.Errorf("all-scatter round %d: %w", r, err)
		}
		result[r] = got
	}
	return result, nil
}

// ReduceFunc combines two values the same way across every peer;
// AllReduce's correctness depends on it being commutative, since
// partial combination order is not specified further than "root
// combines arrivals in receive order" (see DESIGN.md's Open Question
// resolution).
type ReduceFunc func(a, b []byte) []byte

// Reduce combines every peer's value at root using fn, returning the
// combined result at root only.
func (b *Base) Reduce(tag types.Tag, value []byte, fn ReduceFunc) ([]byte, error) {
	if err := b.send(root, tag, value); err != nil {
		return nil, err
	}
	if !b.isRoot() {
		return nil, nil
	}
	var acc []byte
	for v := types.VAddr(0); v < types.VAddr(b.Ctx.Size); v++ {
		chunk, err := b.recv(v, tag, maxFrameBytes)
		if err != nil {
			return nil, fmt.Errorf("reduce: recv from %d: %w", v, err)
		}
		if v == 0 {
			acc = chunk
			continue
		}
		acc = fn(acc, chunk)
	}
	return acc, nil
}

// AllReduce is Reduce followed by a Broadcast of the combined result
// to every peer.
func (b *Base) AllReduce(tag types.Tag, value []byte, fn ReduceFunc) ([]byte, error) {
	reduced, err := b.Reduce(tag, value, fn)
	if err != nil {
		return nil, err
	}
	return b.broadcastAt(root, tag+1, reduced)
}

// Broadcast has root send value to every peer (including itself); it
// returns the value every peer ends up with.
func (b *Base) Broadcast(tag types.Tag, value []byte) ([]byte, error) {
	return b.broadcastAt(root, tag, value)
}

func (b *Base) broadcastAt(at types.VAddr, tag types.Tag, value []byte) ([]byte, error) {
	if b.Ctx.Self == at {
		for v := types.VAddr(0); v < types.VAddr(b.Ctx.Size); v++ {
			if err := b.send(v, tag, value); err != nil {
				return nil, fmt.Errorf("broadcast: send to %d: %w", v, err)
			}
		}
	}
	return b.recv(at, tag, maxFrameBytes)
}

// Barrier blocks every peer until all of them have called it: every
// non-root peer sends an empty message to root and waits for root's
// empty reply, which root only sends once it has heard from everyone.
func (b *Base) Barrier(tag types.Tag) error {
	if !b.isRoot() {
		if err := b.send(root, tag, nil); err != nil {
			return err
		}
		_, err := b.recv(root, tag+1, 0)
		return err
	}
	for v := types.VAddr(0); v < types.VAddr(b.Ctx.Size); v++ {
		if v == root {
			continue
		}
		if _, err := b.recv(v, tag, 0); err != nil {
			return fmt.Errorf("barrier: recv from %d: %w", v, err)
		}
	}
	for v := types.VAddr(0); v < types.VAddr(b.Ctx.Size); v++ {
		if v == root {
			continue
		}
		if err := b.send(v, tag+1, nil); err != nil {
			return fmt.Errorf("barrier: release to %d: %w", v, err)
		}
	}
	return nil
}
