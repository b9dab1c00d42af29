package core

import "github.com/jabolina/graybat/pkg/graybat/types"

// Status reports what a probe found without consuming it: who it came
// from, which tag it carries and how many payload bytes are waiting.
type Status struct {
	Source    types.VAddr
	Tag       types.Tag
	ByteCount int
}
