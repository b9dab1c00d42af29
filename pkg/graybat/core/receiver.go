package core

import (
	"github.com/prometheus/common/log"

	"github.com/jabolina/graybat/pkg/graybat/transport"
	"github.com/jabolina/graybat/pkg/graybat/wire"
)

// dataReaderLoop owns one accepted data connection for the lifetime of
// this communicator. Every PEER frame is acknowledged on the sender's
// control socket before being queued, SPLIT frames are queued
// directly, and DESTRUCT stops the loop.
func (c *SocketCommunicator) dataReaderLoop(conn *transport.Connection) {
	defer c.wg.Done()
	for {
		var buf []byte
		if err := conn.ReceivePrefixSize(&buf); err != nil {
			c.log.Debugf("data receiver: connection closed: %v", err)
			return
		}
		header, payload, err := wire.Decode(buf)
		if err != nil {
			log.Errorf("failed decoding data frame %#v. %v", buf, err)
			continue
		}

		switch header.Type {
		case wire.DESTRUCT:
			c.log.Debugf("data receiver: destruct received, stopping")
			return
		case wire.PEER:
			c.sendConfirm(header)
			c.inbox.Enqueue(wire.Frame{Header: header, Payload: append([]byte(nil), payload...)})
		case wire.SPLIT:
			c.inbox.Enqueue(wire.Frame{Header: header, Payload: append([]byte(nil), payload...)})
		default:
			c.log.Warnf("data receiver: unexpected frame type %d", header.Type)
		}
	}
}

// ctrlReaderLoop owns one accepted control connection. Only CONFIRM
// and DESTRUCT are legal here; anything else is a protocol error and
// the frame is dropped.
func (c *SocketCommunicator) ctrlReaderLoop(conn *transport.Connection) {
	defer c.wg.Done()
	for {
		var buf []byte
		if err := conn.ReceivePrefixSize(&buf); err != nil {
			c.log.Debugf("ctrl receiver: connection closed: %v", err)
			return
		}
		header, payload, err := wire.Decode(buf)
		if err != nil {
			log.Errorf("failed decoding ctrl frame %#v. %v", buf, err)
			continue
		}

		switch header.Type {
		case wire.DESTRUCT:
			c.log.Debugf("ctrl receiver: destruct received, stopping")
			return
		case wire.CONFIRM:
			c.ctrlBox.Enqueue(wire.Frame{Header: header, Payload: append([]byte(nil), payload...)})
		default:
			c.log.Errorf("ctrl receiver: protocol error, unexpected frame type %d on control channel", header.Type)
		}
	}
}

// sendConfirm acknowledges a PEER frame on its sender's control
// socket, carrying the original msg_id so the sender can match it
// against the right pending send Event.
func (c *SocketCommunicator) sendConfirm(header wire.Header) {
	conn, err := c.ctrlSendConn(header.ContextID, header.SrcVAddr)
	if err != nil {
		c.log.Errorf("confirm: no control socket for vaddr %d in context %d: %v", header.SrcVAddr, header.ContextID, err)
		return
	}
	self, ok := c.selfVAddr(header.ContextID)
	if !ok {
		c.log.Errorf("confirm: unknown local vaddr for context %d", header.ContextID)
		return
	}
	frame := wire.Encode(wire.CONFIRM, header.MsgID, header.ContextID, self, header.Tag, nil)
	if err := c.writeFrame(conn, frame); err != nil {
		c.log.Errorf("confirm: send failed: %v", err)
	}
}
