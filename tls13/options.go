package tls13

import (
	"crypto/rand"
	"io"
)

// randomSource is the injected entropy capability named in spec.md
// §4.1/§9 ("Entropy as a capability... pass the randomness source
// into the context at creation instead of reading process-global
// state"). It is a plain io.Reader so tests can inject a deterministic
// source (spec.md scenario S1's fixed client_private).
type randomSource = io.Reader

// Options configures a Wrap call. Grounded on gametunnel/config.go's
// Config/DefaultConfig/Validate shape, trimmed to what spec.md leaves
// configurable: everything else (cipher suite, group, extension set)
// is fixed by the spec and is not a knob here.
type Options struct {
	// Entropy is the cryptographically secure random source used to
	// generate the client's ephemeral X25519 keypair and the
	// ClientHello random/legacy_session_id fields. Defaults to
	// crypto/rand.Reader.
	Entropy io.Reader

	// ServerName, if non-empty, is sent as the server_name extension
	// (SNI). Optional, per spec.md §4.3.
	ServerName string

	// VerifyPeerCertificate is the certificate-validation seam spec.md
	// §9 requires this core to preserve without mandating a policy.
	// It is called with the raw Certificate handshake message, 4-byte
	// handshake header included, once decrypted, before the client
	// Finished is sent. The default
	// accepts unconditionally, matching the reference behavior spec.md
	// §1 calls out as a deliberate non-goal of this core.
	VerifyPeerCertificate func(certificateMessage []byte) error
}

// DefaultOptions returns an Options with every field defaulted, the
// way gametunnel.DefaultConfig does for its own Config.
func DefaultOptions() *Options {
	return &Options{
		Entropy:               rand.Reader,
		VerifyPeerCertificate: func([]byte) error { return nil },
	}
}

// normalize fills in zero-valued fields with defaults, mirroring
// gametunnel's Config.Validate (which repairs out-of-range fields
// rather than rejecting the config outright).
func (o *Options) normalize() *Options {
	if o == nil {
		return DefaultOptions()
	}
	out := *o
	if out.Entropy == nil {
		out.Entropy = rand.Reader
	}
	if out.VerifyPeerCertificate == nil {
		out.VerifyPeerCertificate = func([]byte) error { return nil }
	}
	return &out
}
