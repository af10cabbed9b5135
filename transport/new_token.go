package transport

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"golang.org/x/crypto/hkdf"
)

// tokenValidity bounds how long an address-validation token remains
// acceptable. Retry tokens are meant to be used within a single round
// trip; NEW_TOKEN tokens may be presented on a later connection, so both
// share this generous ceiling rather than two separate policies.
const tokenValidity = 24 * time.Hour

// TokenSource distinguishes a Retry token (which must carry the original
// destination CID so the server can validate the transport parameter
// echoed back in the handshake) from a NEW_TOKEN token (which carries no
// CID since it is redeemed on an unrelated future connection).
type TokenSource uint8

const (
	TokenSourceRetry TokenSource = iota
	TokenSourceNewToken
)

// TokenManager seals and opens address-validation tokens (RFC 9000
// Section 8.1). Tokens are AEAD-sealed so a client cannot forge or
// replay one for a different address, and carry an issuance timestamp
// so expired tokens are rejected without any server-side storage. A
// listener owns one TokenManager and uses it both for Retry tokens and
// for the NEW_TOKEN frames it sends once a handshake is confirmed.
type TokenManager struct {
	aead cipher.AEAD
}

// NewTokenManager derives an AES-256-GCM key from secret via HKDF. secret
// should be stable across a server's restarts (and shared across a
// fleet) so tokens issued by one instance validate on another.
func NewTokenManager(secret []byte) (*TokenManager, error) {
	key := hkdfExpandLabel(sha256.New, hkdf.Extract(sha256.New, secret, nil), "quic new token", nil, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &TokenManager{aead: aead}, nil
}

// Mint seals a token binding src (the client's address, in whatever
// textual or wire form the caller canonicalizes it to) and, for Retry
// tokens, odcid, to the issuance time. The returned token is opaque to
// the client and must be echoed back verbatim in its next Initial
// packet's token field.
func (m *TokenManager) Mint(source TokenSource, src []byte, odcid []byte, now time.Time) ([]byte, error) {
	plain := make([]byte, 0, 1+8+1+len(odcid)+len(src))
	plain = append(plain, byte(source))
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(now.Unix()))
	plain = append(plain, tsBuf[:]...)
	plain = append(plain, byte(len(odcid)))
	plain = append(plain, odcid...)
	plain = append(plain, src...)

	nonce := make([]byte, m.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := m.aead.Seal(nonce, nonce, plain, nil)
	return sealed, nil
}

// ValidatedToken is the decoded, authenticated form of a sealed
// address-validation token, returned by Open.
type ValidatedToken struct {
	Source TokenSource
	ODCID  []byte
	Issued time.Time
}

// Open authenticates and decodes a token previously returned by Mint,
// checking that src matches the address the token was bound to and that
// it has not expired. A failure here (forged, replayed against a
// different address, or expired) must cause the caller to treat the
// Initial packet as if it carried no token at all.
func (m *TokenManager) Open(b []byte, src []byte, now time.Time) (*ValidatedToken, error) {
	if len(b) < m.aead.NonceSize() {
		return nil, newError(InvalidToken, "token too short")
	}
	nonce := b[:m.aead.NonceSize()]
	plain, err := m.aead.Open(nil, nonce, b[m.aead.NonceSize():], nil)
	if err != nil {
		return nil, newError(InvalidToken, "token authentication failed")
	}
	if len(plain) < 1+8+1 {
		return nil, newError(InvalidToken, "token malformed")
	}
	source := TokenSource(plain[0])
	issued := time.Unix(int64(binary.BigEndian.Uint64(plain[1:9])), 0)
	odcidLen := int(plain[9])
	if len(plain) < 10+odcidLen {
		return nil, newError(InvalidToken, "token malformed")
	}
	odcid := plain[10 : 10+odcidLen]
	boundSrc := plain[10+odcidLen:]
	if !bytes.Equal(boundSrc, src) {
		return nil, newError(InvalidToken, "token bound to a different address")
	}
	if now.Sub(issued) > tokenValidity || issued.After(now.Add(time.Minute)) {
		return nil, newError(InvalidToken, "token expired")
	}
	return &ValidatedToken{Source: source, ODCID: append([]byte(nil), odcid...), Issued: issued}, nil
}

// QueueNewToken schedules token to go out in a NEW_TOKEN frame on the
// application packet number space. The listener calls this once the
// handshake is confirmed, minting token from its TokenManager bound to
// the connection's remote address, so a future connection attempt from
// that address can skip the Retry round trip.
func (s *Conn) QueueNewToken(token []byte) {
	s.pendingNewToken = token
}

func (s *Conn) sendFrameNewToken() *newTokenFrame {
	if len(s.pendingNewToken) == 0 {
		return nil
	}
	token := s.pendingNewToken
	s.pendingNewToken = nil
	return newNewTokenFrame(token)
}
