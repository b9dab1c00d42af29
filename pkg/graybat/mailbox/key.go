package mailbox

import (
	"github.com/jabolina/graybat/pkg/graybat/types"
	"github.com/jabolina/graybat/pkg/graybat/wire"
)

// Key identifies one FIFO queue inside a Box: the tuple
// (msg-type, context, src-vaddr, tag) messages are multiplexed on.
type Key struct {
	Type      wire.MsgType
	ContextID types.ContextID
	SrcVAddr  types.VAddr
	Tag       types.Tag
}

// hasPrefix reports whether k matches prefix on its leading fields,
// treating any field past prefixLen as a wildcard. prefixLen counts
// Type=1, ContextID=2, SrcVAddr=3, Tag=4 (all four, i.e. a full key).
func (k Key) hasPrefix(prefix Key, prefixLen int) bool {
	if prefixLen >= 1 && k.Type != prefix.Type {
		return false
	}
	if prefixLen >= 2 && k.ContextID != prefix.ContextID {
		return false
	}
	if prefixLen >= 3 && k.SrcVAddr != prefix.SrcVAddr {
		return false
	}
	if prefixLen >= 4 && k.Tag != prefix.Tag {
		return false
	}
	return true
}
