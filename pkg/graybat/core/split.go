package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/jabolina/graybat/pkg/graybat/mailbox"
	"github.com/jabolina/graybat/pkg/graybat/types"
	"github.com/jabolina/graybat/pkg/graybat/wire"
)

// Reserved tags for splitContext's own control traffic, carried as
// wire.SPLIT frames rather than wire.PEER so they never collide with
// application messages sharing the same inbox.
const (
	splitFlagTag    types.Tag = types.Tag(^uint32(0))
	splitAssignTag  types.Tag = types.Tag(^uint32(0) - 1)
	splitBarrierTag types.Tag = types.Tag(^uint32(0) - 2)
	splitReleaseTag types.Tag = types.Tag(^uint32(0) - 3)
)

// splitAssignment is what vaddr 0 of the parent context sends back to
// each new member: the freshly allocated context id, its size, the
// name it was registered under, and the membership whitelist — the
// parent vaddrs, in ascending order, that make up the new context,
// whose position in this slice is the new vaddr.
type splitAssignment struct {
	NewContextID uint32   `json:"new_context_id"`
	NewSize      uint32   `json:"new_size"`
	Name         string   `json:"name"`
	Whitelist    []uint32 `json:"whitelist"`
}

func (c *SocketCommunicator) sendSplitFrame(ctx types.Context, dest types.VAddr, tag types.Tag, payload []byte) error {
	conn, err := c.dataSendConn(ctx.ID, dest)
	if err != nil {
		return err
	}
	frame := wire.Encode(wire.SPLIT, c.nextMsgID(), ctx.ID, ctx.Self, tag, payload)
	return c.writeFrame(conn, frame)
}

func (c *SocketCommunicator) recvSplitFrame(ctx types.Context, src types.VAddr, tag types.Tag) []byte {
	key := mailbox.Key{Type: wire.SPLIT, ContextID: ctx.ID, SrcVAddr: src, Tag: tag}
	frame := c.inbox.WaitDequeue(key)
	return frame.Payload
}

// SplitContext implements spec.md §4.5's splitContext: a two-phase
// rendezvous routed entirely through vaddr 0 of parent. Every peer
// sends its membership flag to vaddr 0; vaddr 0 allocates exactly one
// new context id (avoiding a race where every peer tries to allocate
// its own) and replies to each member with the new context's shape;
// a member's new vaddr is its position in the ascending whitelist of
// member parent vaddrs. Non-members get back an invalid,
// zero-value Context. A final barrier, also routed through vaddr 0,
// ensures every parent peer — member or not — has observed the split
// before any of them proceeds.
func (c *SocketCommunicator) SplitContext(parent types.Context, isMember bool) (types.Context, error) {
	if !parent.Valid() {
		return types.Context{}, types.ErrContextInvalid
	}

	flag := byte(0)
	if isMember {
		flag = 1
	}
	if err := c.sendSplitFrame(parent, 0, splitFlagTag, []byte{flag}); err != nil {
		return types.Context{}, err
	}

	var newName string
	if parent.Self == 0 {
		members := make([]types.VAddr, 0, parent.Size)
		for v := types.VAddr(0); v < types.VAddr(parent.Size); v++ {
			payload := c.recvSplitFrame(parent, v, splitFlagTag)
			if len(payload) > 0 && payload[0] == 1 {
				members = append(members, v)
			}
		}

		seq := atomic.AddUint32(&c.splitCounter, 1)
		newName = fmt.Sprintf("%s/split-%d", parent.Name, seq)
		newContextID, err := c.signalingClient.RequestContext(context.Background(), newName)
		if err != nil {
			return types.Context{}, err
		}

		assignment := splitAssignment{
			NewContextID: uint32(newContextID),
			NewSize:      uint32(len(members)),
			Name:         newName,
			Whitelist:    toUint32Slice(members),
		}
		body, err := json.Marshal(assignment)
		if err != nil {
			return types.Context{}, err
		}
		for _, v := range members {
			if sendErr := c.sendSplitFrame(parent, v, splitAssignTag, body); sendErr != nil {
				c.log.Errorf("split: failed notifying vaddr %d: %v", v, sendErr)
			}
		}
	}

	var result types.Context
	if isMember {
		body := c.recvSplitFrame(parent, 0, splitAssignTag)
		var assignment splitAssignment
		if err := json.Unmarshal(body, &assignment); err != nil {
			return types.Context{}, fmt.Errorf("split: malformed assignment: %w", err)
		}

		newContextID := types.ContextID(assignment.NewContextID)
		whitelist := fromUint32Slice(assignment.Whitelist)
		newSelf, found := indexOf(whitelist, parent.Self)
		if !found {
			return types.Context{}, fmt.Errorf("split: local vaddr %d missing from its own whitelist", parent.Self)
		}

		c.mu.Lock()
		dataURIs := make(map[types.VAddr]types.URI, len(whitelist))
		ctrlURIs := make(map[types.VAddr]types.URI, len(whitelist))
		for newV, oldV := range whitelist {
			dataURIs[types.VAddr(newV)] = c.dataURIOf[parent.ID][oldV]
			ctrlURIs[types.VAddr(newV)] = c.ctrlURIOf[parent.ID][oldV]
		}
		c.dataURIOf[newContextID] = dataURIs
		c.ctrlURIOf[newContextID] = ctrlURIs

		result = types.Context{
			ID:        newContextID,
			Self:      types.VAddr(newSelf),
			Size:      assignment.NewSize,
			Name:      assignment.Name,
			Whitelist: whitelist,
		}
		c.contextOf[newContextID] = result
		c.mu.Unlock()
	}

	if err := c.splitBarrier(parent); err != nil {
		return types.Context{}, err
	}

	return result, nil
}

func (c *SocketCommunicator) splitBarrier(parent types.Context) error {
	if err := c.sendSplitFrame(parent, 0, splitBarrierTag, nil); err != nil {
		return err
	}
	if parent.Self == 0 {
		for v := types.VAddr(0); v < types.VAddr(parent.Size); v++ {
			c.recvSplitFrame(parent, v, splitBarrierTag)
		}
		for v := types.VAddr(0); v < types.VAddr(parent.Size); v++ {
			if err := c.sendSplitFrame(parent, v, splitReleaseTag, nil); err != nil {
				c.log.Errorf("split barrier: release to vaddr %d failed: %v", v, err)
			}
		}
	}
	c.recvSplitFrame(parent, 0, splitReleaseTag)
	return nil
}

func toUint32Slice(vs []types.VAddr) []uint32 {
	out := make([]uint32, len(vs))
	for i, v := range vs {
		out[i] = uint32(v)
	}
	return out
}

func fromUint32Slice(vs []uint32) []types.VAddr {
	out := make([]types.VAddr, len(vs))
	for i, v := range vs {
		out[i] = types.VAddr(v)
	}
	return out
}

func indexOf(vs []types.VAddr, target types.VAddr) (int, bool) {
	for i, v := range vs {
		if v == target {
			return i, true
		}
	}
	return 0, false
}
