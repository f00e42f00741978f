package tls13

import "fmt"

// Error kinds the engine can report to the caller. Every fatal failure
// transitions the owning Session to FAILED; none of them are retried
// automatically.

// TransportError wraps an I/O failure from the underlying byte stream
// (including EOF received mid-record).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("tls13: transport %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a malformed record, handshake message, or
// extension, an unexpected cipher suite, or a missing required
// extension.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "tls13: decode error: " + e.Reason }

// AlertLevel mirrors the TLS alert level byte.
type AlertLevel uint8

const (
	AlertLevelWarning AlertLevel = 1
	AlertLevelFatal   AlertLevel = 2
)

// AlertDescription mirrors the subset of TLS alert description codes
// this core needs to recognize.
type AlertDescription uint8

const (
	AlertCloseNotify       AlertDescription = 0
	AlertHandshakeFailure  AlertDescription = 40
	AlertBadRecordMAC      AlertDescription = 20
	AlertDecodeErrorAlert  AlertDescription = 50
	AlertProtocolVersion   AlertDescription = 70
	AlertUnexpectedMessage AlertDescription = 10
)

// AlertReceived reports an alert sent by the peer. IsFatal follows
// spec.md §7: fatal-level alerts are always fatal, as is
// handshake_failure regardless of the level byte it arrives with.
// A warning-level close_notify received by Recv on an established
// Session is not reported as this type: Recv moves the Session to
// CLOSED and returns the closed-connection error instead. During the
// handshake, a close_notify is reported as this type like any other
// alert.
type AlertReceived struct {
	Level       AlertLevel
	Description AlertDescription
}

func (e *AlertReceived) Error() string {
	return fmt.Sprintf("tls13: alert received (level=%d, description=%d)", e.Level, e.Description)
}

func (e *AlertReceived) IsFatal() bool {
	return e.Level == AlertLevelFatal || e.Description == AlertHandshakeFailure
}

// AuthError reports an AEAD authentication failure or a Finished
// verify_data mismatch. No plaintext is ever returned alongside this
// error.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return "tls13: authentication failed: " + e.Reason }

// StateError reports a caller-side API misuse: an operation invoked
// while the Session is in the wrong phase. This is always a
// programming bug, never a transient condition.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("tls13: invalid operation %q in state %s", e.Op, e.State)
}
