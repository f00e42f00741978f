// Package tls13 implements the core of a minimal TLS 1.3 client:
// a fixed ClientHello/ServerHello handshake restricted to X25519 and
// TLS_CHACHA20_POLY1305_SHA256, the RFC 8446 §7 key schedule, and AEAD
// record encryption/decryption, byte-exact with RFC 8446/7748/8439/5869
// conformant peers.
//
// Certificate validation, session resumption, cipher/group negotiation,
// HelloRetryRequest, client authentication, and post-handshake key
// updates are all out of scope; see DESIGN.md for what this core
// preserves a seam for versus what it deliberately does not implement.
//
// Typical use:
//
//	ctx, err := tls13.NewContext(nil)
//	sess, err := tls13.Wrap(ctx, tls13.NewNetTransport(conn), &tls13.Options{ServerName: "example.com"})
//	err = sess.Send([]byte("ping"))
//	reply, err := sess.Recv(4)
//	err = sess.Close()
package tls13
