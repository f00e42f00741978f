package tls13

import (
	"encoding/binary"
)

// ====================================================================
// Protocol codec
// ====================================================================
//
// ClientHello construction, ServerHello parsing, record-layer framing,
// and the TLS 1.3 inner-plaintext shape, restricted to the fixed set
// spec.md §4.3 allows: one cipher suite (TLS_CHACHA20_POLY1305_SHA256),
// one group (x25519), one supported version (TLS 1.3).
//
// Wire semantics are grounded on tinytls13/protocol.py
// (client_hello_message, parse_server_hello, read_content,
// wrap_handshake, wrap_encrypted); the Go structuring (explicit offset
// bookkeeping, encoding/binary.BigEndian, descriptive errors on every
// length check) follows gametunnel/packet.go's Marshal/Unmarshal.
//
// ====================================================================

// Content types (RFC 8446 §5.1).
const (
	contentTypeChangeCipherSpec uint8 = 20
	contentTypeAlert            uint8 = 21
	contentTypeHandshake        uint8 = 22
	contentTypeApplicationData  uint8 = 23
)

// Handshake message types (RFC 8446 §4).
const (
	handshakeTypeClientHello         uint8 = 1
	handshakeTypeServerHello         uint8 = 2
	handshakeTypeEncryptedExtensions uint8 = 8
	handshakeTypeCertificate         uint8 = 11
	handshakeTypeCertificateVerify   uint8 = 15
	handshakeTypeFinished            uint8 = 20
)

// Extension types (RFC 8446 §4.2).
const (
	extServerName          uint16 = 0
	extSupportedGroups     uint16 = 10
	extSignatureAlgorithms uint16 = 13
	extSupportedVersions   uint16 = 43
	extKeyShare            uint16 = 51
)

const (
	legacyVersionTLS12 uint16 = 0x0303
	versionTLS13       uint16 = 0x0304

	groupX25519 uint16 = 0x001d

	cipherSuiteChaCha20Poly1305SHA256 uint16 = 0x1303

	sigSchemeECDSASecp256r1SHA256 uint16 = 0x0403
	sigSchemeRSAPSSRSAESHA256     uint16 = 0x0804
)

// recordHeader is the 5-byte TLS record header.
type recordHeader struct {
	contentType   uint8
	legacyVersion uint16
	length        uint16
}

func (h recordHeader) bytes() []byte {
	buf := make([]byte, 5)
	buf[0] = h.contentType
	binary.BigEndian.PutUint16(buf[1:3], h.legacyVersion)
	binary.BigEndian.PutUint16(buf[3:5], h.length)
	return buf
}

// readRecord reads a 5-byte header followed by its body from the
// transport and returns both, per spec.md §4.3 "Record read".
func readRecord(t Transport) (recordHeader, []byte, error) {
	headerBytes, err := t.RecvExact(5)
	if err != nil {
		return recordHeader{}, nil, err
	}
	h := recordHeader{
		contentType:   headerBytes[0],
		legacyVersion: binary.BigEndian.Uint16(headerBytes[1:3]),
		length:        binary.BigEndian.Uint16(headerBytes[3:5]),
	}
	body, err := t.RecvExact(int(h.length))
	if err != nil {
		return recordHeader{}, nil, err
	}
	return h, body, nil
}

// writeRecord serializes and sends a plaintext record.
func writeRecord(t Transport, contentType uint8, body []byte) error {
	h := recordHeader{contentType: contentType, legacyVersion: legacyVersionTLS12, length: uint16(len(body))}
	return t.Send(append(h.bytes(), body...))
}

// --------------------------------------------------------------------
// ClientHello
// --------------------------------------------------------------------

// appendExtension appends a length-prefixed extension (type,
// 16-bit length, body) to buf.
func appendExtension(buf []byte, extType uint16, body []byte) []byte {
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], extType)
	binary.BigEndian.PutUint16(hdr[2:4], uint16(len(body)))
	buf = append(buf, hdr[:]...)
	buf = append(buf, body...)
	return buf
}

func buildSupportedVersionsExtension() []byte {
	// list<1 byte length> of 16-bit versions.
	body := make([]byte, 0, 3)
	body = append(body, 2) // one 2-byte version entry
	var v [2]byte
	binary.BigEndian.PutUint16(v[:], versionTLS13)
	body = append(body, v[:]...)
	return body
}

func buildSupportedGroupsExtension() []byte {
	body := make([]byte, 0, 4)
	var list [2]byte
	binary.BigEndian.PutUint16(list[:], 2) // list length
	body = append(body, list[:]...)
	var g [2]byte
	binary.BigEndian.PutUint16(g[:], groupX25519)
	body = append(body, g[:]...)
	return body
}

func buildSignatureAlgorithmsExtension() []byte {
	schemes := []uint16{sigSchemeECDSASecp256r1SHA256, sigSchemeRSAPSSRSAESHA256}
	body := make([]byte, 0, 2+2*len(schemes))
	var list [2]byte
	binary.BigEndian.PutUint16(list[:], uint16(2*len(schemes)))
	body = append(body, list[:]...)
	for _, s := range schemes {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], s)
		body = append(body, b[:]...)
	}
	return body
}

func buildKeyShareExtension(clientPublic [x25519Size]byte) []byte {
	// KeyShareClientHello: list<2 byte length> of KeyShareEntry{group, key_exchange<2 byte length>}.
	entry := make([]byte, 0, 2+2+x25519Size)
	var g [2]byte
	binary.BigEndian.PutUint16(g[:], groupX25519)
	entry = append(entry, g[:]...)
	var kl [2]byte
	binary.BigEndian.PutUint16(kl[:], x25519Size)
	entry = append(entry, kl[:]...)
	entry = append(entry, clientPublic[:]...)

	body := make([]byte, 0, 2+len(entry))
	var listLen [2]byte
	binary.BigEndian.PutUint16(listLen[:], uint16(len(entry)))
	body = append(body, listLen[:]...)
	body = append(body, entry...)
	return body
}

func buildServerNameExtension(hostname string) []byte {
	// ServerNameList: list<2 byte length> of ServerName{type=0, name<2 byte length>}.
	entry := make([]byte, 0, 1+2+len(hostname))
	entry = append(entry, 0) // host_name
	var nl [2]byte
	binary.BigEndian.PutUint16(nl[:], uint16(len(hostname)))
	entry = append(entry, nl[:]...)
	entry = append(entry, hostname...)

	body := make([]byte, 0, 2+len(entry))
	var listLen [2]byte
	binary.BigEndian.PutUint16(listLen[:], uint16(len(entry)))
	body = append(body, listLen[:]...)
	body = append(body, entry...)
	return body
}

// encodeClientHelloBody builds the ClientHello handshake body (not
// including the 4-byte handshake header), per spec.md §4.3's table.
func encodeClientHelloBody(random, legacySessionID [32]byte, clientPublic [x25519Size]byte, serverName string) []byte {
	buf := make([]byte, 0, 256)

	var lv [2]byte
	binary.BigEndian.PutUint16(lv[:], legacyVersionTLS12)
	buf = append(buf, lv[:]...)

	buf = append(buf, random[:]...)

	buf = append(buf, 0x20) // legacy_session_id length prefix
	buf = append(buf, legacySessionID[:]...)

	// cipher_suites: list<2 byte length> of one suite.
	buf = append(buf, 0x00, 0x02, 0x13, 0x03)

	// legacy_compression_methods: length 1, value 0.
	buf = append(buf, 0x01, 0x00)

	extensions := make([]byte, 0, 128)
	extensions = appendExtension(extensions, extSupportedVersions, buildSupportedVersionsExtension())
	extensions = appendExtension(extensions, extSupportedGroups, buildSupportedGroupsExtension())
	extensions = appendExtension(extensions, extSignatureAlgorithms, buildSignatureAlgorithmsExtension())
	extensions = appendExtension(extensions, extKeyShare, buildKeyShareExtension(clientPublic))
	if serverName != "" {
		extensions = appendExtension(extensions, extServerName, buildServerNameExtension(serverName))
	}

	var extLen [2]byte
	binary.BigEndian.PutUint16(extLen[:], uint16(len(extensions)))
	buf = append(buf, extLen[:]...)
	buf = append(buf, extensions...)

	return buf
}

// wrapHandshakeMessage prefixes a handshake body with its 4-byte
// handshake header (type || uint24(len)), producing the bytes that
// belong in the transcript.
func wrapHandshakeMessage(msgType uint8, body []byte) []byte {
	msg := make([]byte, 0, 4+len(body))
	msg = append(msg, msgType)
	msg = append(msg, uint24(len(body))...)
	msg = append(msg, body...)
	return msg
}

func uint24(n int) []byte {
	return []byte{byte(n >> 16), byte(n >> 8), byte(n)}
}

func readUint24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

// --------------------------------------------------------------------
// ServerHello
// --------------------------------------------------------------------

// parsedServerHello is what the engine needs out of a ServerHello.
type parsedServerHello struct {
	serverPublic [x25519Size]byte
}

// parseServerHello parses a full ServerHello handshake message: the
// caller passes the message including its 4-byte handshake header
// (type || uint24(len)), and the body after that header is parsed per
// spec.md §4.3's description.
func parseServerHello(message []byte) (*parsedServerHello, error) {
	if len(message) < 4 {
		return nil, &DecodeError{Reason: "ServerHello message too short"}
	}
	if message[0] != handshakeTypeServerHello {
		return nil, &DecodeError{Reason: "expected ServerHello handshake type"}
	}
	declared := readUint24(message[1:4])
	body := message[4:]
	if len(body) != declared {
		return nil, &DecodeError{Reason: "ServerHello length mismatch"}
	}

	pos := 0
	need := func(n int) error {
		if pos+n > len(body) {
			return &DecodeError{Reason: "ServerHello truncated"}
		}
		return nil
	}

	if err := need(2); err != nil {
		return nil, err
	}
	legacyVersion := binary.BigEndian.Uint16(body[pos : pos+2])
	pos += 2
	if legacyVersion != legacyVersionTLS12 {
		return nil, &DecodeError{Reason: "unexpected ServerHello legacy_version"}
	}

	if err := need(32); err != nil {
		return nil, err
	}
	pos += 32 // random, unused by this core

	if err := need(1); err != nil {
		return nil, err
	}
	sessionIDLen := int(body[pos])
	pos++
	if err := need(sessionIDLen); err != nil {
		return nil, err
	}
	pos += sessionIDLen // legacy_session_id echo, skipped

	if err := need(2); err != nil {
		return nil, err
	}
	cipherSuite := binary.BigEndian.Uint16(body[pos : pos+2])
	pos += 2
	if cipherSuite != cipherSuiteChaCha20Poly1305SHA256 {
		return nil, &DecodeError{Reason: "unsupported cipher suite"}
	}

	if err := need(1); err != nil {
		return nil, err
	}
	compressionMethod := body[pos]
	pos++
	if compressionMethod != 0 {
		return nil, &DecodeError{Reason: "unexpected compression method"}
	}

	if err := need(2); err != nil {
		return nil, err
	}
	extLen := int(binary.BigEndian.Uint16(body[pos : pos+2]))
	pos += 2
	if err := need(extLen); err != nil {
		return nil, err
	}
	extensions := body[pos : pos+extLen]

	var serverPublic [x25519Size]byte
	var haveKeyShare, haveSupportedVersions bool

	ePos := 0
	for ePos < len(extensions) {
		if ePos+4 > len(extensions) {
			return nil, &DecodeError{Reason: "ServerHello extension header truncated"}
		}
		extType := binary.BigEndian.Uint16(extensions[ePos : ePos+2])
		extBodyLen := int(binary.BigEndian.Uint16(extensions[ePos+2 : ePos+4]))
		ePos += 4
		if ePos+extBodyLen > len(extensions) {
			return nil, &DecodeError{Reason: "ServerHello extension body truncated"}
		}
		extBody := extensions[ePos : ePos+extBodyLen]
		ePos += extBodyLen

		switch extType {
		case extKeyShare:
			if len(extBody) < 4 {
				return nil, &DecodeError{Reason: "key_share extension too short"}
			}
			group := binary.BigEndian.Uint16(extBody[0:2])
			keLen := int(binary.BigEndian.Uint16(extBody[2:4]))
			if group != groupX25519 {
				return nil, &DecodeError{Reason: "key_share group is not x25519"}
			}
			if keLen != x25519Size || len(extBody) < 4+keLen {
				return nil, &DecodeError{Reason: "key_share key_exchange has the wrong length"}
			}
			copy(serverPublic[:], extBody[4:4+keLen])
			haveKeyShare = true
		case extSupportedVersions:
			if len(extBody) != 2 {
				return nil, &DecodeError{Reason: "supported_versions extension has the wrong length"}
			}
			if binary.BigEndian.Uint16(extBody) != versionTLS13 {
				return nil, &DecodeError{Reason: "supported_versions does not indicate TLS 1.3"}
			}
			haveSupportedVersions = true
		}
	}

	if !haveKeyShare {
		return nil, &DecodeError{Reason: "ServerHello is missing key_share"}
	}
	if !haveSupportedVersions {
		return nil, &DecodeError{Reason: "ServerHello is missing supported_versions"}
	}

	return &parsedServerHello{serverPublic: serverPublic}, nil
}

// --------------------------------------------------------------------
// Inner plaintext / AEAD record framing (RFC 8446 §5.2)
// --------------------------------------------------------------------

// padTo16 returns the number of zero padding bytes needed so that
// n+padding is a multiple of 16, matching the teacher's fixed 16-byte
// alignment (gametunnel pads Poly1305 auth-tag-sized chunks the same
// way tinytls's pad16 does).
func padTo16(n int) int {
	rem := n % 16
	if rem == 0 {
		return 0
	}
	return 16 - rem
}

// buildInnerPlaintext returns content || content_type || zero_padding,
// padded to a multiple of 16 bytes after the content-type byte.
func buildInnerPlaintext(content []byte, contentType uint8) []byte {
	withType := append(append([]byte{}, content...), contentType)
	padding := padTo16(len(withType))
	return append(withType, make([]byte, padding)...)
}

// splitInnerPlaintext reverses buildInnerPlaintext: strips trailing
// zero padding and returns (content, contentType).
func splitInnerPlaintext(inner []byte) ([]byte, uint8, error) {
	i := len(inner) - 1
	for i >= 0 && inner[i] == 0 {
		i--
	}
	if i < 0 {
		return nil, 0, &DecodeError{Reason: "inner plaintext has no content type byte"}
	}
	return inner[:i], inner[i], nil
}

// sealRecord builds the outer application_data record for an
// encrypted payload: header || AEAD-seal(plaintext||type||padding),
// with the 5-byte outer header as AAD, per spec.md §4.3.
func sealRecord(aeadKey []byte, nonce [nonceSize]byte, content []byte, contentType uint8) ([]byte, error) {
	inner := buildInnerPlaintext(content, contentType)
	header := recordHeader{
		contentType:   contentTypeApplicationData,
		legacyVersion: legacyVersionTLS12,
		length:        uint16(len(inner) + tagSize),
	}
	aad := header.bytes()
	sealed, err := aeadSeal(aeadKey, nonce, aad, inner)
	if err != nil {
		return nil, err
	}
	return append(aad, sealed...), nil
}

// openRecord authenticates and decrypts an application_data record
// body (the bytes after the 5-byte header), given that header as AAD,
// and splits the result into (content, contentType).
func openRecord(aeadKey []byte, nonce [nonceSize]byte, header recordHeader, body []byte) ([]byte, uint8, error) {
	inner, err := aeadOpen(aeadKey, nonce, header.bytes(), body)
	if err != nil {
		return nil, 0, err
	}
	return splitInnerPlaintext(inner)
}
