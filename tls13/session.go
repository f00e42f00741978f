package tls13

import (
	"fmt"
)

// ====================================================================
// Handshake & Record Engine — state machine
// ====================================================================
//
// States and transitions exactly as spec.md §4.5. Grounded
// structurally on gametunnel/dialer.go's GameTunnelClientConn (method
// set: Read, Write, Close, LocalAddr, RemoteAddr, deadline stubs) and
// tinytls13/tlssocket.py's synchronous send/recv (no background
// goroutine: spec.md §5 mandates single-threaded, caller-driven
// operation, which this module follows instead of the teacher's
// async UDP receive loop — see DESIGN.md).
//
// ====================================================================

// State is the handshake/record-engine phase a Session is in.
type State int

const (
	StateInit State = iota
	StateWaitServerHello
	StateWaitExtensionsFinished
	StateSendFinished
	StateEstablished
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateWaitServerHello:
		return "WAIT_SH"
	case StateWaitExtensionsFinished:
		return "WAIT_EE_FIN"
	case StateSendFinished:
		return "SEND_FIN"
	case StateEstablished:
		return "ESTABLISHED"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Session is an established (or establishing) TLS 1.3 connection. It
// is not safe for concurrent use by multiple goroutines, per spec.md
// §5: callers sharing a Session must serialize externally.
type Session struct {
	transport Transport
	ctx       *Context
	opts      *Options
	state     State

	// recvBuf holds application plaintext drained from one opened
	// record but not yet consumed by Recv, per spec.md §4.5
	// "Application recv buffering".
	recvBuf []byte
}

func (s *Session) fail(err error) error {
	s.state = StateFailed
	s.ctx.zero()
	return err
}

func (s *Session) requireState(op string, want State) error {
	if s.state != want {
		return &StateError{Op: op, State: s.state}
	}
	return nil
}

// Send encrypts data as one application_data record and writes it to
// the transport using app_aead_c2s.
func (s *Session) Send(data []byte) error {
	if err := s.requireState("Send", StateEstablished); err != nil {
		return err
	}
	record, err := s.ctx.appAEADc2s.seal(data, contentTypeApplicationData)
	if err != nil {
		return s.fail(err)
	}
	if err := s.transport.Send(record); err != nil {
		return s.fail(err)
	}
	return nil
}

// Recv returns up to n bytes of application plaintext, per spec.md
// §4.5 "Application recv buffering": when the internal buffer is
// empty, the engine opens exactly one record and refills; short reads
// are permitted. A peer-sent close_notify moves the Session to CLOSED
// and is reported as errClosedConnection (a *TransportError), as is
// every later Recv; any other alert or decode failure is fatal.
func (s *Session) Recv(n int) ([]byte, error) {
	if s.state == StateClosed {
		return nil, errClosedConnection
	}
	if err := s.requireState("Recv", StateEstablished); err != nil {
		return nil, err
	}

	for len(s.recvBuf) == 0 {
		content, contentType, err := s.openOneRecord(s.ctx.appAEADs2c)
		if err != nil {
			return nil, s.fail(err)
		}
		switch contentType {
		case contentTypeApplicationData:
			s.recvBuf = content
		case contentTypeAlert:
			alert, closed, err := parseAlert(content)
			if err != nil {
				return nil, s.fail(err)
			}
			if closed {
				s.state = StateClosed
				s.ctx.zero()
				return nil, errClosedConnection
			}
			return nil, s.fail(alert)
		default:
			return nil, s.fail(&DecodeError{Reason: "unexpected application-data content type while established"})
		}
	}

	if n > len(s.recvBuf) {
		n = len(s.recvBuf)
	}
	out := s.recvBuf[:n]
	s.recvBuf = s.recvBuf[n:]
	return out, nil
}

// openOneRecord reads exactly one record from the transport and opens
// it with the given direction, ignoring ChangeCipherSpec records per
// spec.md §4.4/§4.5.
func (s *Session) openOneRecord(dir *aeadDirection) ([]byte, uint8, error) {
	for {
		header, body, err := readRecord(s.transport)
		if err != nil {
			return nil, 0, err
		}
		if header.contentType == contentTypeChangeCipherSpec {
			continue
		}
		if header.contentType != contentTypeApplicationData {
			return nil, 0, &DecodeError{Reason: "expected application_data record wrapping encrypted content"}
		}
		return dir.open(header, body)
	}
}

// parseAlert interprets a 2-byte alert body. closed reports whether
// this is the one case spec.md §7 treats as clean EOF: a warning-level
// close_notify.
func parseAlert(content []byte) (alert *AlertReceived, closed bool, err error) {
	if len(content) != 2 {
		return nil, false, &DecodeError{Reason: "malformed alert body"}
	}
	a := &AlertReceived{Level: AlertLevel(content[0]), Description: AlertDescription(content[1])}
	if a.Level == AlertLevelWarning && a.Description == AlertCloseNotify {
		return a, true, nil
	}
	return a, false, nil
}

var errClosedConnection = &TransportError{Op: "recv", Err: fmt.Errorf("connection closed")}

// Close sends an encrypted close_notify using app_aead_c2s and frees
// the context, per spec.md §4.5 "Close".
func (s *Session) Close() error {
	if s.state == StateClosed || s.state == StateFailed {
		return nil
	}
	record, err := s.ctx.appAEADc2s.seal([]byte{byte(AlertLevelWarning), byte(AlertCloseNotify)}, contentTypeAlert)
	if err != nil {
		s.state = StateFailed
		s.ctx.zero()
		return err
	}
	sendErr := s.transport.Send(record)
	s.state = StateClosed
	s.ctx.zero()
	return sendErr
}

// State reports the Session's current phase; primarily useful for
// tests and diagnostics.
func (s *Session) State() State { return s.state }
