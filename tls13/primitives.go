package tls13

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

// ====================================================================
// Primitives
// ====================================================================
//
// SHA-256, HMAC-SHA-256, X25519 and ChaCha20-Poly1305, as required by
// RFC 7748 and RFC 8439. These are thin wrappers over golang.org/x/crypto
// and the standard library; the rest of the package builds on top of
// them and never reaches for crypto/cipher or crypto/ecdh directly.
//
// ====================================================================

const (
	// keySize is the ChaCha20-Poly1305 key size in bytes.
	keySize = chacha20poly1305.KeySize // 32

	// nonceSize is the ChaCha20-Poly1305 nonce size in bytes.
	nonceSize = chacha20poly1305.NonceSize // 12

	// tagSize is the Poly1305 authentication tag size in bytes.
	tagSize = 16

	// x25519Size is the size of an X25519 scalar or public key.
	x25519Size = 32
)

// sha256Sum returns the SHA-256 digest of data.
func sha256Sum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// hmacSHA256 computes HMAC-SHA-256(key, data).
func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// randomBytes reads n cryptographically secure random bytes from the
// injected entropy source. Passing the source in rather than reading
// crypto/rand.Reader directly is what makes the RFC 7748 test vector
// (spec.md S1, a fixed client_private) reproducible in tests.
func randomBytes(entropy io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(entropy, buf); err != nil {
		return nil, &TransportError{Op: "read entropy", Err: err}
	}
	return buf, nil
}

// basePointMult computes X25519(scalar, basepoint), i.e. the public
// key corresponding to a private scalar. Clamping is performed inside
// curve25519.X25519 per RFC 7748.
func basePointMult(scalar [x25519Size]byte) ([x25519Size]byte, error) {
	return scalarMult(scalar, [x25519Size]byte(curve25519Basepoint()))
}

// scalarMult computes X25519(scalar, u). spec.md §4.1 makes rejecting
// an all-zero (low-order) output OPTIONAL but recommended; this
// implementation rejects, mirroring the all-zero check the teacher
// package performs on every ECDH result.
func scalarMult(scalar, u [x25519Size]byte) ([x25519Size]byte, error) {
	var out [x25519Size]byte
	result, err := curve25519.X25519(scalar[:], u[:])
	if err != nil {
		return out, fmt.Errorf("x25519: %w", err)
	}
	copy(out[:], result)

	allZero := true
	for _, b := range out {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return out, &AuthError{Reason: "x25519 produced a low-order (all-zero) result"}
	}
	return out, nil
}

func curve25519Basepoint() []byte {
	return curve25519.Basepoint
}

// aeadSeal encrypts and authenticates plaintext under key/nonce,
// authenticating aad, returning ciphertext||tag.
func aeadSeal(key []byte, nonce [nonceSize]byte, aad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("chacha20poly1305: new: %w", err)
	}
	return aead.Seal(nil, nonce[:], plaintext, aad), nil
}

// aeadOpen authenticates and decrypts ciphertext||tag under
// key/nonce/aad. On failure it returns AuthError and no plaintext,
// per spec.md §7 ("AEAD failures MUST NOT reveal plaintext").
func aeadOpen(key []byte, nonce [nonceSize]byte, aad, ciphertextAndTag []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("chacha20poly1305: new: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce[:], ciphertextAndTag, aad)
	if err != nil {
		return nil, &AuthError{Reason: "AEAD open failed (possible tampering, reorder, or wrong key)"}
	}
	return plaintext, nil
}

// buildNonce derives the per-record nonce from a direction's base IV
// and its monotonic sequence counter: baseIV XOR big-endian(seq),
// zero-padded on the left to 12 bytes, per RFC 8446 §5.3. This
// generalizes the teacher's buildNonce (8 zero bytes + 4-byte packet
// number) to the full 12-byte IV the TLS 1.3 record layer requires.
func buildNonce(baseIV [nonceSize]byte, seq uint64) [nonceSize]byte {
	var seqBytes [nonceSize]byte
	binary.BigEndian.PutUint64(seqBytes[nonceSize-8:], seq)

	var nonce [nonceSize]byte
	for i := range nonce {
		nonce[i] = baseIV[i] ^ seqBytes[i]
	}
	return nonce
}
