// Package transport implements the raw bidirectional byte-stream
// abstraction (C3): binding/accepting/connecting TCP sockets and
// framed reads/writes over one established connection. It knows
// nothing about graybat's message headers; pkg/graybat/core layers
// wire.Frame encoding on top.
package transport

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/jabolina/graybat/pkg/graybat/types"
)

// portSearchWindow bounds how many ascending ports bind will try
// before giving up with ErrBindFailed.
const portSearchWindow = 128

// Endpoint is a bound listening socket.
type Endpoint struct {
	listener net.Listener
	addr     string
}

// Bind picks the first free TCP port at or above port on host and
// starts listening. The returned Endpoint's LocalURI is what should be
// published to the signaling service.
func Bind(host string, port int) (*Endpoint, error) {
	var lastErr error
	for p := port; p < port+portSearchWindow; p++ {
		addr := net.JoinHostPort(host, strconv.Itoa(p))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return &Endpoint{listener: ln, addr: ln.Addr().String()}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: tried ports [%d,%d) on %s: %v", types.ErrBindFailed, port, port+portSearchWindow, host, lastErr)
}

// LocalURI is the "tcp://host:port" endpoint this binding listens on.
func (e *Endpoint) LocalURI() types.URI {
	return types.URI("tcp://" + e.addr)
}

// Accept blocks for the next inbound connection.
func (e *Endpoint) Accept() (*Connection, error) {
	conn, err := e.listener.Accept()
	if err != nil {
		return nil, &types.TransportError{Op: "accept", Cause: err}
	}
	return &Connection{conn: conn}, nil
}

// AsyncAccept spawns the blocking Accept on a goroutine and invokes
// onAccepted with the result once it resolves.
func (e *Endpoint) AsyncAccept(onAccepted func(*Connection, error)) {
	go func() {
		conn, err := e.Accept()
		onAccepted(conn, err)
	}()
}

// Close stops accepting new connections on this endpoint.
func (e *Endpoint) Close() error {
	return e.listener.Close()
}

// ParseHostPort splits a "tcp://host:port" URI into dial-able parts.
func ParseHostPort(uri types.URI) (host string, port string, err error) {
	s := strings.TrimPrefix(string(uri), "tcp://")
	host, port, err = net.SplitHostPort(s)
	return
}

// Connect dials host:port, producing a Connection ready for framed
// send/receive.
func Connect(host, port string) (*Connection, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, &types.TransportError{Op: "connect", Cause: err}
	}
	return &Connection{conn: conn}, nil
}

// AsyncConnect is the non-blocking counterpart of Connect.
func AsyncConnect(host, port string, onConnected func(*Connection, error)) {
	go func() {
		conn, err := Connect(host, port)
		onConnected(conn, err)
	}()
}

// Connection is one established bidirectional byte stream.
type Connection struct {
	conn net.Conn
}

// Send writes the entire buffer or fails.
func (c *Connection) Send(buf []byte) error {
	if _, err := c.conn.Write(buf); err != nil {
		return &types.TransportError{Op: "send", Cause: err}
	}
	return nil
}

// AsyncSend is the non-blocking counterpart of Send.
func (c *Connection) AsyncSend(buf []byte, onSent func(error)) {
	go func() {
		onSent(c.Send(buf))
	}()
}

// Receive reads exactly len(buf) bytes into buf or fails.
func (c *Connection) Receive(buf []byte) error {
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return &types.TransportError{Op: "receive", Cause: err}
	}
	return nil
}

// AsyncReceive is the non-blocking counterpart of Receive.
func (c *Connection) AsyncReceive(buf []byte, onReceived func(error)) {
	go func() {
		onReceived(c.Receive(buf))
	}()
}

// lengthPrefixWidth is the width, in ASCII decimal digits, of the
// length prefix used by SendPrefixSize/ReceivePrefixSize.
const lengthPrefixWidth = 8

// SendPrefixSize writes an 8-byte ASCII-decimal length prefix followed
// by buf.
func (c *Connection) SendPrefixSize(buf []byte) error {
	prefix := fmt.Sprintf("%0*d", lengthPrefixWidth, len(buf))
	if len(prefix) != lengthPrefixWidth {
		return &types.TransportError{Op: "send-prefix", Cause: fmt.Errorf("payload too large to frame: %d bytes", len(buf))}
	}
	if err := c.Send([]byte(prefix)); err != nil {
		return err
	}
	return c.Send(buf)
}

// ReceivePrefixSize reads an 8-byte ASCII-decimal length prefix, resizes
// *buf to that length, then reads the payload.
func (c *Connection) ReceivePrefixSize(buf *[]byte) error {
	prefixBuf := make([]byte, lengthPrefixWidth)
	if err := c.Receive(prefixBuf); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(prefixBuf)))
	if err != nil {
		return &types.TransportError{Op: "receive-prefix", Cause: err}
	}
	*buf = make([]byte, n)
	if n == 0 {
		return nil
	}
	return c.Receive(*buf)
}

// Close tears down the underlying socket.
func (c *Connection) Close() error {
	return c.conn.Close()
}
