package transport

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
)

// StatelessResetTokenLen is the fixed size of a stateless reset token
// (RFC 9000 Section 10.3).
const StatelessResetTokenLen = 16

// DeriveStatelessResetToken derives the token a server advertises for cid,
// either in its transport parameters or in a NEW_CONNECTION_ID frame
// (RFC 9000 Section 10.3). The token is a deterministic function of a
// secret held only by the issuing endpoint (or shared across a server
// fleet) and the CID itself, so any instance that later receives a short
// header packet it cannot decrypt can still recognize its own reset by
// recomputing the token from the packet's destination CID.
func DeriveStatelessResetToken(key, cid []byte) [StatelessResetTokenLen]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(cid)
	sum := mac.Sum(nil)
	var token [StatelessResetTokenLen]byte
	copy(token[:], sum[:StatelessResetTokenLen])
	return token
}

// minStatelessResetPacketLen is the smallest datagram RFC 9000 Section
// 10.3 permits an endpoint to treat as a stateless reset: it must be
// large enough that it cannot be confused with a valid short header
// packet carrying a minimal payload.
const minStatelessResetPacketLen = 1 + MaxCIDLength + StatelessResetTokenLen

// IsStatelessReset reports whether b, an otherwise-undecryptable datagram
// addressed with dcid, carries the stateless reset token this endpoint
// derived for dcid. Callers should only reach this check once normal
// decryption of every packet in the datagram has failed.
func IsStatelessReset(key, dcid, b []byte) bool {
	if len(key) == 0 || len(b) < minStatelessResetPacketLen {
		return false
	}
	want := DeriveStatelessResetToken(key, dcid)
	got := b[len(b)-StatelessResetTokenLen:]
	return subtle.ConstantTimeCompare(want[:], got) == 1
}

// BuildStatelessResetPacket fabricates a datagram that looks like a short
// header packet to an observer but carries token in its final 16 bytes,
// per RFC 9000 Section 10.3: random bytes with the long-header bit cleared
// and the fixed bit set, as in a short header packet, sized to
// blend in with ordinary short header traffic.
func BuildStatelessResetPacket(token [StatelessResetTokenLen]byte, datagramLen int) ([]byte, error) {
	size := datagramLen - 1
	if size < minStatelessResetPacketLen-StatelessResetTokenLen {
		size = minStatelessResetPacketLen - StatelessResetTokenLen
	}
	if size > MaxPacketSize-StatelessResetTokenLen {
		size = MaxPacketSize - StatelessResetTokenLen
	}
	b := make([]byte, 1+size+StatelessResetTokenLen)
	if _, err := rand.Read(b[:1+size]); err != nil {
		return nil, err
	}
	b[0] = (b[0] &^ 0x80) | 0x40 // Clear the long-header bit, set the fixed bit.
	copy(b[1+size:], token[:])
	return b, nil
}
