package tls13

import (
	"crypto/subtle"
	"fmt"
)

// ====================================================================
// Wrap — drives the full handshake and returns an established Session
// ====================================================================
//
// Structurally grounded on gametunnel/dialer.go's performHandshake:
// a sequential, fmt.Errorf-wrapped run through each handshake step,
// generalized from one UDP Client/Server Hello exchange to the full
// TLS 1.3 ClientHello..Finished flow of spec.md §4.5.
//
// ====================================================================

// NewContext creates a fresh Context: an ephemeral X25519 keypair
// generated from entropy, and Phase H0 (the early secret) already run.
// This is the "new_context(entropy) -> Context" entry point of
// spec.md §6.
func NewContext(opts *Options) (*Context, error) {
	opts = opts.normalize()
	return newContext(opts.Entropy)
}

// Wrap performs the full TLS 1.3 handshake described in spec.md §4.5
// over transport and returns an established Session. opts.ServerName,
// if non-empty, is sent as SNI. This is the "wrap(ctx, transport,
// server_name?) -> Session" entry point of spec.md §6.
func Wrap(ctx *Context, transport Transport, opts *Options) (*Session, error) {
	opts = opts.normalize()

	s := &Session{transport: transport, ctx: ctx, state: StateInit}

	if err := s.sendClientHello(opts.ServerName, opts.Entropy); err != nil {
		return nil, s.fail(err)
	}
	s.state = StateWaitServerHello

	if err := s.receiveServerHello(); err != nil {
		return nil, s.fail(err)
	}
	s.state = StateWaitExtensionsFinished

	if err := s.receiveEncryptedHandshake(opts.VerifyPeerCertificate); err != nil {
		return nil, s.fail(err)
	}
	s.state = StateSendFinished

	if err := s.sendFinished(); err != nil {
		return nil, s.fail(err)
	}
	s.state = StateEstablished

	return s, nil
}

// sendClientHello builds and sends the fixed ClientHello of spec.md
// §4.3, appending its body to the transcript before it is sent (step
// 1 of spec.md §4.4).
func (s *Session) sendClientHello(serverName string, entropy randomSource) error {
	if err := s.requireState("sendClientHello", StateInit); err != nil {
		return err
	}

	randomBuf, err := randomBytes(entropy, 32)
	if err != nil {
		return fmt.Errorf("generate ClientHello random: %w", err)
	}
	var random [32]byte
	copy(random[:], randomBuf)

	sessionIDBuf, err := randomBytes(entropy, 32)
	if err != nil {
		return fmt.Errorf("generate legacy_session_id: %w", err)
	}
	var sessionID [32]byte
	copy(sessionID[:], sessionIDBuf)

	body := encodeClientHelloBody(random, sessionID, s.ctx.clientPublic, serverName)
	message := wrapHandshakeMessage(handshakeTypeClientHello, body)

	s.ctx.appendMessage(message)

	if err := writeRecord(s.transport, contentTypeHandshake, message); err != nil {
		return fmt.Errorf("send ClientHello: %w", err)
	}
	return nil
}

// receiveServerHello reads and parses the ServerHello, sets
// shared_secret, and runs Phase H1 (spec.md §4.2/§4.4 steps 2).
func (s *Session) receiveServerHello() error {
	if err := s.requireState("receiveServerHello", StateWaitServerHello); err != nil {
		return err
	}

	header, body, err := readRecord(s.transport)
	if err != nil {
		return fmt.Errorf("receive ServerHello: %w", err)
	}
	if header.contentType == contentTypeAlert {
		alert, _, err := parseAlert(body)
		if err != nil {
			return err
		}
		return alert
	}
	if header.contentType != contentTypeHandshake {
		return &DecodeError{Reason: "expected handshake record for ServerHello"}
	}

	parsed, err := parseServerHello(body)
	if err != nil {
		return fmt.Errorf("parse ServerHello: %w", err)
	}

	s.ctx.appendMessage(body)

	if err := s.ctx.setSharedSecret(parsed.serverPublic); err != nil {
		return fmt.Errorf("key exchange: %w", err)
	}

	snapshot := s.ctx.transcriptSnapshot()
	if err := s.ctx.deriveHandshakeTrafficSecrets(snapshot); err != nil {
		return fmt.Errorf("derive handshake traffic secrets: %w", err)
	}
	return nil
}

// receiveEncryptedHandshake drains post-ServerHello application-data
// records, appends each decrypted handshake message to the transcript
// in wire order, and verifies the server Finished once it arrives
// (spec.md §4.4 step 3, §4.5 WAIT_EE_FIN).
func (s *Session) receiveEncryptedHandshake(verifyCert func([]byte) error) error {
	if err := s.requireState("receiveEncryptedHandshake", StateWaitExtensionsFinished); err != nil {
		return err
	}

	for {
		content, contentType, err := s.openOneRecord(s.ctx.handshakeAEADs2c)
		if err != nil {
			return fmt.Errorf("receive handshake record: %w", err)
		}
		switch contentType {
		case contentTypeHandshake:
		case contentTypeAlert:
			alert, _, aerr := parseAlert(content)
			if aerr != nil {
				return aerr
			}
			return alert
		default:
			return &DecodeError{Reason: "unexpected content type during handshake"}
		}

		done, err := s.consumeHandshakeMessages(content, verifyCert)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// consumeHandshakeMessages splits one decrypted record's plaintext
// into whole handshake messages (type || uint24(len) || body),
// appending each to the transcript individually, in wire order, per
// spec.md §4.5 "Decrypted handshake fragmentation": a message is never
// assumed to straddle records, and a straddling message is rejected as
// a DecodeError rather than silently reassembled.
func (s *Session) consumeHandshakeMessages(plaintext []byte, verifyCert func([]byte) error) (finishedSeen bool, err error) {
	for len(plaintext) > 0 {
		if len(plaintext) < 4 {
			return false, &DecodeError{Reason: "truncated handshake message header"}
		}
		msgType := plaintext[0]
		msgLen := readUint24(plaintext[1:4])
		if 4+msgLen > len(plaintext) {
			return false, &DecodeError{Reason: "handshake message straddles records, which this core rejects"}
		}
		segment := plaintext[:4+msgLen]
		plaintext = plaintext[4+msgLen:]

		switch msgType {
		case handshakeTypeCertificate:
			if err := verifyCert(segment); err != nil {
				return false, fmt.Errorf("certificate validation: %w", err)
			}
		case handshakeTypeFinished:
			verifyData := segment[4:]
			if len(verifyData) != 32 {
				return false, &DecodeError{Reason: "Finished verify_data has the wrong length"}
			}
			expected, err := finishedVerifyData(s.ctx.serverHSTrafficSecret, s.ctx.transcriptSnapshot())
			if err != nil {
				return false, fmt.Errorf("compute expected server verify_data: %w", err)
			}
			if subtle.ConstantTimeCompare(verifyData, expected) != 1 {
				return false, &AuthError{Reason: "server Finished verify_data mismatch"}
			}
			s.ctx.appendMessage(segment)
			return true, nil
		}

		s.ctx.appendMessage(segment)
	}
	return false, nil
}

// sendFinished computes the client verify_data, appends the Finished
// message to the transcript before sending it, seals and sends it
// with handshake_aead_c2s, and runs Phase H2 (spec.md §4.2/§4.4 step
// 4, §4.5 SEND_FIN).
func (s *Session) sendFinished() error {
	if err := s.requireState("sendFinished", StateSendFinished); err != nil {
		return err
	}

	verifyData, err := finishedVerifyData(s.ctx.clientHSTrafficSecret, s.ctx.transcriptSnapshot())
	if err != nil {
		return fmt.Errorf("compute client verify_data: %w", err)
	}
	finishedBody := verifyData
	message := wrapHandshakeMessage(handshakeTypeFinished, finishedBody)

	// The application traffic secrets cover the transcript through the
	// server Finished, so take that snapshot before appending our own.
	snapshot := s.ctx.transcriptSnapshot()
	s.ctx.appendMessage(message)

	record, err := s.ctx.handshakeAEADc2s.seal(message, contentTypeHandshake)
	if err != nil {
		return fmt.Errorf("seal client Finished: %w", err)
	}
	if err := s.transport.Send(record); err != nil {
		return fmt.Errorf("send client Finished: %w", err)
	}

	if err := s.ctx.deriveAppTrafficSecrets(snapshot); err != nil {
		return fmt.Errorf("derive application traffic secrets: %w", err)
	}
	return nil
}
