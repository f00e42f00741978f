package tls13

import (
	"fmt"
)

// ====================================================================
// Transcript & Context
// ====================================================================
//
// Grounded on tinytls/__init__.py's TLSContext (append_message,
// get_messages, set_key_exchange, key_schedule_in_handshake,
// key_schedule_in_app_data) for ownership shape, and on
// gametunnel/crypto.go's SessionKeys for the paired-AEAD-cipher
// representation in Go.
//
// ====================================================================

// aeadDirection is an immutable (key, base_iv) pair plus its mutable
// sequence counter, per spec.md §3's "AEAD cipher" data model entry.
// Each direction owns its own counter; nothing else is allowed to
// mutate it, so two call sites can never race on nonce derivation.
type aeadDirection struct {
	key    [keySize]byte
	baseIV [nonceSize]byte
	seq    uint64
}

func newAEADDirection(key [keySize]byte, iv [nonceSize]byte) *aeadDirection {
	return &aeadDirection{key: key, baseIV: iv}
}

// seal encrypts content (wrapped as the TLS 1.3 inner plaintext with
// contentType) under the next nonce and advances seq by one. A wrapped
// seq counter (2^64 records) is not reachable in practice; this core
// still refuses to produce a nonce past the boundary, per spec.md §3
// ("sequence counters never decrease and never wrap... MUST fail").
func (d *aeadDirection) seal(content []byte, contentType uint8) ([]byte, error) {
	if d.seq == ^uint64(0) {
		return nil, &StateError{Op: "seal", State: StateFailed}
	}
	nonce := buildNonce(d.baseIV, d.seq)
	record, err := sealRecord(d.key[:], nonce, content, contentType)
	if err != nil {
		return nil, err
	}
	d.seq++
	return record, nil
}

// open authenticates and decrypts a received application_data record
// body, and advances seq by one exactly when the open succeeds (a
// failed open must not disturb the sequence number of a record that
// was never actually consumed, but in this engine a failed open is
// always fatal, so there is no subsequent open to desynchronize).
func (d *aeadDirection) open(header recordHeader, body []byte) ([]byte, uint8, error) {
	if d.seq == ^uint64(0) {
		return nil, 0, &StateError{Op: "open", State: StateFailed}
	}
	nonce := buildNonce(d.baseIV, d.seq)
	content, contentType, err := openRecord(d.key[:], nonce, header, body)
	if err != nil {
		return nil, 0, err
	}
	d.seq++
	return content, contentType, nil
}

// Context holds every piece of connection state named in spec.md §3:
// the client's X25519 keypair, the append-only transcript, the
// key-exchange result, and all six derived secrets plus their AEAD
// ciphers. sharedSecret has a companion "set" bool; the derived
// secrets are nil until assigned. Assigning shared_secret,
// handshake_secret or master_secret a second time — a programmer error
// per spec.md §4.4 — panics instead of silently overwriting key
// material.
type Context struct {
	clientPrivate [x25519Size]byte
	clientPublic  [x25519Size]byte

	transcript []byte

	sharedSecret    [32]byte
	sharedSecretSet bool

	earlySecret    []byte
	handshakeSecret []byte
	masterSecret    []byte

	clientHSTrafficSecret []byte
	serverHSTrafficSecret []byte
	clientAppTrafficSecret []byte
	serverAppTrafficSecret []byte

	handshakeAEADc2s *aeadDirection
	handshakeAEADs2c *aeadDirection
	appAEADc2s       *aeadDirection
	appAEADs2c       *aeadDirection
}

// newContext creates a Context: it generates the client's ephemeral
// X25519 keypair from entropy and runs Phase H0 (the early secret),
// per spec.md §3/§4.2.
func newContext(entropy randomSource) (*Context, error) {
	privBytes, err := randomBytes(entropy, x25519Size)
	if err != nil {
		return nil, fmt.Errorf("generate client_private: %w", err)
	}
	var priv [x25519Size]byte
	copy(priv[:], privBytes)

	pub, err := basePointMult(priv)
	if err != nil {
		return nil, fmt.Errorf("compute client_public: %w", err)
	}

	return &Context{
		clientPrivate: priv,
		clientPublic:  pub,
		earlySecret:   deriveEarlySecret(),
	}, nil
}

// appendMessage appends a handshake message's wire bytes (type ||
// uint24(len) || content) to the transcript. spec.md §3's invariant —
// the transcript contains only handshake-message bodies, in order,
// never a record header, never ChangeCipherSpec — is enforced by
// every call site only ever passing such bytes (codec.go's
// wrapHandshakeMessage, or a message already framed that way as
// received from the peer).
func (c *Context) appendMessage(message []byte) {
	c.transcript = append(c.transcript, message...)
}

func (c *Context) transcriptSnapshot() []byte {
	// The transcript is append-only; callers that need a point-in-time
	// snapshot (e.g. for a secret derived "through ServerHello") must
	// call this immediately after the relevant appendMessage, before
	// any further message is appended.
	snap := make([]byte, len(c.transcript))
	copy(snap, c.transcript)
	return snap
}

// setSharedSecret computes and records shared_secret =
// X25519(client_private, server_public), exactly once.
func (c *Context) setSharedSecret(serverPublic [x25519Size]byte) error {
	if c.sharedSecretSet {
		panic("tls13: shared_secret assigned twice")
	}
	secret, err := scalarMult(c.clientPrivate, serverPublic)
	if err != nil {
		return fmt.Errorf("compute shared_secret: %w", err)
	}
	c.sharedSecret = secret
	c.sharedSecretSet = true
	return nil
}

// deriveHandshakeTrafficSecrets implements Phase H1 of spec.md §4.2,
// triggered by receipt of ServerHello. transcriptThroughServerHello
// must be exactly the transcript snapshot taken right after
// ServerHello was appended.
func (c *Context) deriveHandshakeTrafficSecrets(transcriptThroughServerHello []byte) error {
	if !c.sharedSecretSet {
		panic("tls13: deriveHandshakeTrafficSecrets called before shared_secret is set")
	}
	if c.handshakeSecret != nil {
		panic("tls13: handshake_secret assigned twice")
	}

	hs, err := deriveHandshakeSecret(c.earlySecret, c.sharedSecret[:])
	if err != nil {
		return fmt.Errorf("derive handshake_secret: %w", err)
	}
	c.handshakeSecret = hs

	chs, err := deriveSecret(hs, "c hs traffic", transcriptThroughServerHello)
	if err != nil {
		return fmt.Errorf("derive client_hs_traffic_secret: %w", err)
	}
	shs, err := deriveSecret(hs, "s hs traffic", transcriptThroughServerHello)
	if err != nil {
		return fmt.Errorf("derive server_hs_traffic_secret: %w", err)
	}
	c.clientHSTrafficSecret = chs
	c.serverHSTrafficSecret = shs

	c2sKey, c2sIV, err := trafficKeyAndIV(chs)
	if err != nil {
		return fmt.Errorf("derive client handshake traffic key/iv: %w", err)
	}
	s2cKey, s2cIV, err := trafficKeyAndIV(shs)
	if err != nil {
		return fmt.Errorf("derive server handshake traffic key/iv: %w", err)
	}
	c.handshakeAEADc2s = newAEADDirection(c2sKey, c2sIV)
	c.handshakeAEADs2c = newAEADDirection(s2cKey, s2cIV)
	return nil
}

// deriveAppTrafficSecrets implements Phase H2 of spec.md §4.2,
// triggered after server Finished is verified and client Finished is
// sent. transcriptThroughServerFinished must be exactly the
// transcript snapshot taken right after the server Finished was
// appended, before the client Finished.
func (c *Context) deriveAppTrafficSecrets(transcriptThroughServerFinished []byte) error {
	if c.handshakeSecret == nil {
		panic("tls13: deriveAppTrafficSecrets called before handshake_secret is set")
	}
	if c.masterSecret != nil {
		panic("tls13: master_secret assigned twice")
	}

	ms, err := deriveMasterSecret(c.handshakeSecret)
	if err != nil {
		return fmt.Errorf("derive master_secret: %w", err)
	}
	c.masterSecret = ms

	clientAppSecret, err := deriveSecret(ms, "c ap traffic", transcriptThroughServerFinished)
	if err != nil {
		return fmt.Errorf("derive client_app_traffic_secret: %w", err)
	}
	sap, err := deriveSecret(ms, "s ap traffic", transcriptThroughServerFinished)
	if err != nil {
		return fmt.Errorf("derive server_app_traffic_secret: %w", err)
	}
	c.clientAppTrafficSecret = clientAppSecret
	c.serverAppTrafficSecret = sap

	c2sKey, c2sIV, err := trafficKeyAndIV(clientAppSecret)
	if err != nil {
		return fmt.Errorf("derive client app traffic key/iv: %w", err)
	}
	s2cKey, s2cIV, err := trafficKeyAndIV(sap)
	if err != nil {
		return fmt.Errorf("derive server app traffic key/iv: %w", err)
	}
	c.appAEADc2s = newAEADDirection(c2sKey, c2sIV)
	c.appAEADs2c = newAEADDirection(s2cKey, s2cIV)
	return nil
}

// zero clears every secret held by the context, per spec.md §5
// ("Secrets are held only in the context and MUST be zeroed when the
// context is destroyed").
func (c *Context) zero() {
	zeroBytes(c.clientPrivate[:])
	zeroBytes(c.sharedSecret[:])
	zeroBytes(c.earlySecret)
	zeroBytes(c.handshakeSecret)
	zeroBytes(c.masterSecret)
	zeroBytes(c.clientHSTrafficSecret)
	zeroBytes(c.serverHSTrafficSecret)
	zeroBytes(c.clientAppTrafficSecret)
	zeroBytes(c.serverAppTrafficSecret)
	for _, d := range []*aeadDirection{c.handshakeAEADc2s, c.handshakeAEADs2c, c.appAEADc2s, c.appAEADs2c} {
		if d != nil {
			zeroBytes(d.key[:])
		}
	}
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
