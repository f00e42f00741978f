package tls13

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ====================================================================
// HKDF and the TLS 1.3 key schedule (RFC 8446 §7, RFC 5869)
// ====================================================================
//
// Grounded on tinytls/__init__.py's key_schedule_in_handshake /
// key_schedule_in_app_data and tinytls13/tlssocket.py's Finished
// computation for the exact schedule order, and on
// gametunnel/crypto.go's DeriveSessionKeys for how to shape the
// golang.org/x/crypto/hkdf call in Go.
//
// ====================================================================

const hkdfLabelPrefix = "tls13 "

// hkdfExtract implements HKDF-Extract(salt, ikm) = HMAC(salt, ikm).
func hkdfExtract(salt, ikm []byte) []byte {
	return hmacSHA256(salt, ikm)
}

// hkdfExpand implements HKDF-Expand(prk, info, length) using the
// standard RFC 5869 construction.
func hkdfExpand(prk, info []byte, length int) ([]byte, error) {
	reader := hkdf.Expand(sha256.New, prk, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

// buildHkdfLabel encodes the HkdfLabel structure from RFC 8446 §7.1:
//
//	struct {
//	    uint16 length;
//	    opaque label<7..255> = "tls13 " + Label;
//	    opaque context<0..255> = Context;
//	} HkdfLabel;
func buildHkdfLabel(length int, label string, context []byte) []byte {
	fullLabel := hkdfLabelPrefix + label

	buf := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	var lenBytes [2]byte
	binary.BigEndian.PutUint16(lenBytes[:], uint16(length))
	buf = append(buf, lenBytes[:]...)

	buf = append(buf, byte(len(fullLabel)))
	buf = append(buf, fullLabel...)

	buf = append(buf, byte(len(context)))
	buf = append(buf, context...)

	return buf
}

// hkdfExpandLabel implements HKDF-Expand-Label(secret, label, context, length).
func hkdfExpandLabel(secret []byte, label string, context []byte, length int) ([]byte, error) {
	info := buildHkdfLabel(length, label, context)
	return hkdfExpand(secret, info, length)
}

// deriveSecret implements Derive-Secret(secret, label, messages) =
// HKDF-Expand-Label(secret, label, SHA-256(messages), 32).
func deriveSecret(secret []byte, label string, messages []byte) ([]byte, error) {
	hash := sha256Sum(messages)
	return hkdfExpandLabel(secret, label, hash[:], 32)
}

// trafficKeyAndIV derives the (key, iv) pair for a direction's AEAD
// from its traffic secret, per spec.md §4.2.
func trafficKeyAndIV(trafficSecret []byte) (key [keySize]byte, iv [nonceSize]byte, err error) {
	k, err := hkdfExpandLabel(trafficSecret, "key", nil, keySize)
	if err != nil {
		return key, iv, fmt.Errorf("derive key: %w", err)
	}
	i, err := hkdfExpandLabel(trafficSecret, "iv", nil, nonceSize)
	if err != nil {
		return key, iv, fmt.Errorf("derive iv: %w", err)
	}
	copy(key[:], k)
	copy(iv[:], i)
	return key, iv, nil
}

// finishedVerifyData computes the Finished verify_data for a
// direction, per spec.md §4.2:
//
//	finished_key = HKDF-Expand-Label(traffic_secret, "finished", "", 32)
//	verify_data  = HMAC(finished_key, SHA-256(transcript))
func finishedVerifyData(trafficSecret []byte, transcript []byte) ([]byte, error) {
	finishedKey, err := hkdfExpandLabel(trafficSecret, "finished", nil, 32)
	if err != nil {
		return nil, fmt.Errorf("derive finished_key: %w", err)
	}
	hash := sha256Sum(transcript)
	return hmacSHA256(finishedKey, hash[:]), nil
}

// zeros32 is the all-zero 32-byte value used as both the salt and the
// PSK of the early secret (no PSK in scope, per spec.md §1) and the
// HKDF-Extract input key material at the H2 transition.
var zeros32 [32]byte

// deriveEarlySecret implements Phase H0 of spec.md §4.2.
func deriveEarlySecret() []byte {
	return hkdfExtract(zeros32[:], zeros32[:])
}

// deriveHandshakeSecret implements the handshake_secret half of Phase
// H1: derived = Derive-Secret(early_secret, "derived", ""); then
// handshake_secret = HKDF-Extract(derived, shared_secret).
func deriveHandshakeSecret(earlySecret, sharedSecret []byte) ([]byte, error) {
	derived, err := deriveSecret(earlySecret, "derived", nil)
	if err != nil {
		return nil, fmt.Errorf("derive 'derived' from early_secret: %w", err)
	}
	return hkdfExtract(derived, sharedSecret), nil
}

// deriveMasterSecret implements the master_secret half of Phase H2:
// derived = Derive-Secret(handshake_secret, "derived", "");
// master_secret = HKDF-Extract(derived, 0^32).
func deriveMasterSecret(handshakeSecret []byte) ([]byte, error) {
	derived, err := deriveSecret(handshakeSecret, "derived", nil)
	if err != nil {
		return nil, fmt.Errorf("derive 'derived' from handshake_secret: %w", err)
	}
	return hkdfExtract(derived, zeros32[:]), nil
}
