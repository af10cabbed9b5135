package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"

	"golang.org/x/crypto/hkdf"
)

// initialSalt is the version-specific salt used to derive Initial secrets
// for QUIC version 1 (RFC 9001 Section 5.2).
var initialSalt = []byte{
	0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3, 0x4d, 0x17,
	0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad, 0xcc, 0xbb, 0x7f, 0x0a,
}

// retryIntegrityKey and retryIntegrityNonce are the fixed AES-128-GCM key
// and nonce used to compute the Retry Integrity Tag (RFC 9001 Section 5.8).
var (
	retryIntegrityKey = []byte{
		0xbe, 0x0c, 0x69, 0x0b, 0x9f, 0x66, 0x57, 0x5a,
		0x1d, 0x76, 0x6b, 0x54, 0xe3, 0x68, 0xc8, 0x4e,
	}
	retryIntegrityNonce = []byte{
		0x46, 0x15, 0x99, 0xd3, 0x5d, 0x63, 0x2b, 0xf2, 0x23, 0x98, 0x25, 0xbb,
	}
)

// initialAEAD derives, from a client-chosen destination connection ID, the
// two key pairs (client-to-server and server-to-client) that protect
// Initial packets (RFC 9001 Section 5.2). Both endpoints derive identical
// keys from the same CID, so no handshake is required to bootstrap them.
type initialAEAD struct {
	client *keys
	server *keys
}

// init derives the client and server Initial keys from cid. Derivation can
// only fail if AES-128-GCM itself is unavailable, which never happens on
// any Go-supported platform, so init reports no error.
func (a *initialAEAD) init(cid []byte) {
	initialSecret := hkdf.Extract(sha256.New, cid, initialSalt)
	clientSecret := hkdfExpandLabel(sha256.New, initialSecret, "client in", nil, sha256.Size)
	serverSecret := hkdfExpandLabel(sha256.New, initialSecret, "server in", nil, sha256.Size)

	client, err := deriveAESGCMKeys(sha256.New, clientSecret, 16)
	if err != nil {
		panic(err)
	}
	server, err := deriveAESGCMKeys(sha256.New, serverSecret, 16)
	if err != nil {
		panic(err)
	}
	a.client = client
	a.server = server
}

// BuildRetryPacket encodes a Retry packet (RFC 9000 Section 17.2.5): a
// long header naming dcid (echoing the client's chosen source CID as our
// destination) and scid (the new CID the client must use as its
// destination in its next Initial), followed by token and the 16-byte
// integrity tag computed over odcid (the DCID from the Initial that
// provoked this Retry) and everything encoded so far.
func BuildRetryPacket(dcid, scid, odcid, token []byte) ([]byte, error) {
	b := make([]byte, 0, 1+4+1+len(dcid)+1+len(scid)+len(token)+retryIntegrityTagLen)
	b = append(b, 0xf0) // Long header, fixed bit, type Retry (0x3<<4), unused bits zero.
	b = append(b, byte(supportedVersion>>24), byte(supportedVersion>>16), byte(supportedVersion>>8), byte(supportedVersion))
	b = append(b, byte(len(dcid)))
	b = append(b, dcid...)
	b = append(b, byte(len(scid)))
	b = append(b, scid...)
	b = append(b, token...)

	pseudo := make([]byte, 0, 1+len(odcid)+len(b))
	pseudo = append(pseudo, byte(len(odcid)))
	pseudo = append(pseudo, odcid...)
	pseudo = append(pseudo, b...)

	block, err := aes.NewCipher(retryIntegrityKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	tag := aead.Seal(nil, retryIntegrityNonce, nil, pseudo)
	return append(b, tag...), nil
}

// verifyRetryIntegrity checks the 16-byte Retry Integrity Tag appended to a
// Retry packet (RFC 9001 Section 5.8). b is the full datagram as received;
// odcid is the destination connection ID the client used in the packet
// that provoked this Retry.
func verifyRetryIntegrity(b []byte, odcid []byte) bool {
	if len(b) < retryIntegrityTagLen {
		return false
	}
	pseudo := make([]byte, 0, len(odcid)+len(b))
	pseudo = append(pseudo, byte(len(odcid)))
	pseudo = append(pseudo, odcid...)
	pseudo = append(pseudo, b[:len(b)-retryIntegrityTagLen]...)

	block, err := aes.NewCipher(retryIntegrityKey)
	if err != nil {
		return false
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return false
	}
	tag := b[len(b)-retryIntegrityTagLen:]
	_, err = aead.Open(nil, retryIntegrityNonce, append([]byte(nil), tag...), pseudo)
	return err == nil
}
