package tls13

import (
	"net"
	"time"
)

// ====================================================================
// net.Conn-shaped convenience surface
// ====================================================================
//
// Session.Send/Recv are the primary API spec.md §6 names. Read/Write
// additionally let a *Session stand in for a net.Conn once
// established, mirroring GameTunnelClientConn's method set
// (Read/Write/Close/LocalAddr/RemoteAddr/deadline stubs) — minus the
// background goroutine and inbound channel that method set relied on,
// per the single-threaded, caller-driven model spec.md §5 mandates.
//
// ====================================================================

// Read implements io.Reader by draining up to len(b) bytes of
// application plaintext via Recv.
func (s *Session) Read(b []byte) (int, error) {
	chunk, err := s.Recv(len(b))
	if err != nil {
		return 0, err
	}
	return copy(b, chunk), nil
}

// Write implements io.Writer by sending all of b as a single
// application_data record via Send.
func (s *Session) Write(b []byte) (int, error) {
	if err := s.Send(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// LocalAddr returns the underlying transport's local address, if it
// is a *NetTransport; otherwise nil.
func (s *Session) LocalAddr() net.Addr {
	if nt, ok := s.transport.(*NetTransport); ok {
		return nt.Conn.LocalAddr()
	}
	return nil
}

// RemoteAddr returns the underlying transport's remote address, if it
// is a *NetTransport; otherwise nil.
func (s *Session) RemoteAddr() net.Addr {
	if nt, ok := s.transport.(*NetTransport); ok {
		return nt.Conn.RemoteAddr()
	}
	return nil
}

// SetDeadline, SetReadDeadline, and SetWriteDeadline forward to the
// underlying net.Conn when the transport is a *NetTransport; spec.md
// does not require non-blocking operation, so a non-net.Conn
// transport simply has no deadlines to set.
func (s *Session) SetDeadline(t time.Time) error {
	if nt, ok := s.transport.(*NetTransport); ok {
		return nt.Conn.SetDeadline(t)
	}
	return nil
}

func (s *Session) SetReadDeadline(t time.Time) error {
	if nt, ok := s.transport.(*NetTransport); ok {
		return nt.Conn.SetReadDeadline(t)
	}
	return nil
}

func (s *Session) SetWriteDeadline(t time.Time) error {
	if nt, ok := s.transport.(*NetTransport); ok {
		return nt.Conn.SetWriteDeadline(t)
	}
	return nil
}
