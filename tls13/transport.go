package tls13

import (
	"io"
	"net"
)

// Transport is the external byte-stream collaborator named in
// spec.md §6: a reliable, ordered, bidirectional channel this core
// does not own. Keeping it an interface (rather than hardcoding
// net.Conn everywhere) is the same seam the teacher package keeps
// between gametunnel and xray-core's internet.Dialer/stat.Connection
// abstraction — it lets the mocked-peer tests in tls13_e2e_test.go
// drive the handshake without a real socket.
type Transport interface {
	// Send writes p in full or returns a TransportError.
	Send(p []byte) error
	// RecvExact reads exactly n bytes or returns a TransportError
	// (including io.EOF arriving before n bytes are available).
	RecvExact(n int) ([]byte, error)
}

// NetTransport adapts a net.Conn to the Transport interface.
type NetTransport struct {
	Conn net.Conn
}

func NewNetTransport(conn net.Conn) *NetTransport {
	return &NetTransport{Conn: conn}
}

func (t *NetTransport) Send(p []byte) error {
	_, err := t.Conn.Write(p)
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

func (t *NetTransport) RecvExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.Conn, buf); err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	return buf, nil
}
