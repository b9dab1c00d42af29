// Package wire defines the single on-wire layout shared by every peer:
// a fixed 17-byte header followed by opaque payload bytes. Framing on
// the wire itself (how many bytes to read before decoding a header) is
// a transport concern, handled by pkg/graybat/transport.
package wire

import (
	"encoding/binary"

	"github.com/jabolina/graybat/pkg/graybat/types"
)

// MsgType distinguishes the four kinds of traffic that can cross a
// socket.
type MsgType byte

const (
	// PEER carries a user payload.
	PEER MsgType = iota
	// CONFIRM acknowledges delivery of a PEER message, identified by
	// its MsgID, on the control channel.
	CONFIRM
	// SPLIT carries context-split control traffic over the data
	// channel.
	SPLIT
	// DESTRUCT is the shutdown sentinel a communicator sends to its
	// own receive sockets to stop the receiver tasks.
	DESTRUCT
)

// HeaderSize is the fixed header width in bytes: 1 (msg_type) + 4
// (msg_id) + 4 (context_id) + 4 (src_vaddr) + 4 (tag) = 17.
const HeaderSize = 1 + 4 + 4 + 4 + 4

// Header is the fixed-width prefix of every framed message.
type Header struct {
	Type      MsgType
	MsgID     types.MsgID
	ContextID types.ContextID
	SrcVAddr  types.VAddr
	Tag       types.Tag
}

// Frame is a decoded header paired with its payload.
type Frame struct {
	Header  Header
	Payload []byte
}

// Encode lays out msgType, msgID, contextID, srcVAddr, tag and payload
// into one contiguous little-endian buffer: HeaderSize bytes of header
// followed by the payload, with no length prefix — the transport layer
// is responsible for delimiting frames on the wire.
func Encode(msgType MsgType, msgID types.MsgID, contextID types.ContextID, srcVAddr types.VAddr, tag types.Tag, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = byte(msgType)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(msgID))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(contextID))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(srcVAddr))
	binary.LittleEndian.PutUint32(buf[13:17], uint32(tag))
	copy(buf[HeaderSize:], payload)
	return buf
}

// Decode splits a raw buffer into its header and a view onto the
// payload bytes. The returned payload aliases buf; callers that retain
// it past the buffer's lifetime must copy it first.
func Decode(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, types.ErrMalformedMessage
	}
	h := Header{
		Type:      MsgType(buf[0]),
		MsgID:     types.MsgID(binary.LittleEndian.Uint32(buf[1:5])),
		ContextID: types.ContextID(binary.LittleEndian.Uint32(buf[5:9])),
		SrcVAddr:  types.VAddr(binary.LittleEndian.Uint32(buf[9:13])),
		Tag:       types.Tag(binary.LittleEndian.Uint32(buf[13:17])),
	}
	return h, buf[HeaderSize:], nil
}

// EncodeFrame is a convenience wrapper producing a Frame alongside its
// encoded bytes, used by callers that want both representations
// without decoding back immediately.
func EncodeFrame(msgType MsgType, msgID types.MsgID, contextID types.ContextID, srcVAddr types.VAddr, tag types.Tag, payload []byte) Frame {
	return Frame{
		Header: Header{
			Type:      msgType,
			MsgID:     msgID,
			ContextID: contextID,
			SrcVAddr:  srcVAddr,
			Tag:       tag,
		},
		Payload: payload,
	}
}
