package tls13

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSessionRejectsWrongStateOperations is spec.md §4.5: every
// operation checks the session's current state and fails with
// StateError rather than proceeding out of order.
func TestSessionRejectsWrongStateOperations(t *testing.T) {
	ctx := &Context{earlySecret: deriveEarlySecret()}
	s := &Session{transport: &fakeTransport{}, ctx: ctx, state: StateInit}

	_, err := s.Recv(4)
	require.Error(t, err)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, "Recv", stateErr.Op)
	require.Equal(t, StateInit, stateErr.State)

	err = s.Send([]byte("too early"))
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, "Send", stateErr.Op)
}

// TestSessionFailZeroesContextAndTransitions checks that fail() always
// moves the session to FAILED and wipes every secret, per spec.md §7's
// "secrets MUST be zeroed when the context is destroyed" and the
// invariant that FAILED is terminal.
func TestSessionFailZeroesContextAndTransitions(t *testing.T) {
	ctx := &Context{
		clientPrivate: [32]byte{1, 2, 3},
		earlySecret:   bytesOf(32, 0xaa),
		masterSecret:  bytesOf(32, 0xbb),
	}
	s := &Session{transport: &fakeTransport{}, ctx: ctx, state: StateEstablished}

	returnedErr := s.fail(&AuthError{Reason: "boom"})
	require.Error(t, returnedErr)
	require.Equal(t, StateFailed, s.state)

	for _, b := range ctx.clientPrivate {
		require.Zero(t, b)
	}
	for _, b := range ctx.earlySecret {
		require.Zero(t, b)
	}
	for _, b := range ctx.masterSecret {
		require.Zero(t, b)
	}
}

// TestSessionSendSealsWithClientAppDirection confirms Send() routes
// through app_aead_c2s and advances its sequence counter, without
// touching the server->client direction.
func TestSessionSendSealsWithClientAppDirection(t *testing.T) {
	var key [keySize]byte
	var iv [nonceSize]byte
	ctx := &Context{
		appAEADc2s: newAEADDirection(key, iv),
		appAEADs2c: newAEADDirection(key, iv),
	}
	ft := &fakeTransport{}
	s := &Session{transport: ft, ctx: ctx, state: StateEstablished}

	require.NoError(t, s.Send([]byte("ping")))
	require.EqualValues(t, 1, ctx.appAEADc2s.seq)
	require.EqualValues(t, 0, ctx.appAEADs2c.seq)
	require.True(t, ft.buf.Len() > 0)
}

// TestSessionRecvDrainsBufferBeforeOpeningAnotherRecord is spec.md
// §4.5's "Application recv buffering": a short Recv(n) call must not
// discard the remainder of an already-opened record.
func TestSessionRecvDrainsBufferBeforeOpeningAnotherRecord(t *testing.T) {
	s := &Session{state: StateEstablished, recvBuf: []byte("hello world")}

	first, err := s.Recv(5)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), first)
	require.Equal(t, []byte(" world"), s.recvBuf)

	second, err := s.Recv(100)
	require.NoError(t, err)
	require.Equal(t, []byte(" world"), second)
	require.Empty(t, s.recvBuf)
}

// TestSessionRecvSurfacesCloseNotifyAsClosed is spec.md §7: a
// warning-level close_notify transitions the session to CLOSED and is
// reported as errClosedConnection, never as an ordinary error value.
func TestSessionRecvSurfacesCloseNotifyAsClosed(t *testing.T) {
	var key [keySize]byte
	var iv [nonceSize]byte
	serverDir := newAEADDirection(key, iv)

	record, err := serverDir.seal([]byte{byte(AlertLevelWarning), byte(AlertCloseNotify)}, contentTypeAlert)
	require.NoError(t, err)

	ft := &fakeTransport{}
	require.NoError(t, ft.Send(record))

	ctx := &Context{appAEADs2c: newAEADDirection(key, iv)}
	s := &Session{transport: ft, ctx: ctx, state: StateEstablished}

	_, err = s.Recv(4)
	require.ErrorIs(t, err, errClosedConnection)
	require.Equal(t, StateClosed, s.state)
}

// TestSessionRecvSurfacesFatalAlert checks that a fatal alert fails
// the session and is reported as an *AlertReceived, distinct from the
// close_notify path above.
func TestSessionRecvSurfacesFatalAlert(t *testing.T) {
	var key [keySize]byte
	var iv [nonceSize]byte
	serverDir := newAEADDirection(key, iv)

	record, err := serverDir.seal([]byte{byte(AlertLevelFatal), byte(AlertHandshakeFailure)}, contentTypeAlert)
	require.NoError(t, err)

	ft := &fakeTransport{}
	require.NoError(t, ft.Send(record))

	ctx := &Context{appAEADs2c: newAEADDirection(key, iv)}
	s := &Session{transport: ft, ctx: ctx, state: StateEstablished}

	_, err = s.Recv(4)
	var alertErr *AlertReceived
	require.ErrorAs(t, err, &alertErr)
	require.True(t, alertErr.IsFatal())
	require.Equal(t, StateFailed, s.state)
}

// TestSessionCloseIsIdempotent checks that Close() on an
// already-closed or already-failed session is a no-op, per spec.md
// §4.5 (CLOSED and FAILED are both terminal).
func TestSessionCloseIsIdempotent(t *testing.T) {
	s := &Session{transport: &fakeTransport{}, ctx: &Context{}, state: StateClosed}
	require.NoError(t, s.Close())

	s2 := &Session{transport: &fakeTransport{}, ctx: &Context{}, state: StateFailed}
	require.NoError(t, s2.Close())
}
