package transport

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestServerConn builds a server Conn with Initial keys derived, enough
// to exercise send()'s anti-amplification clamp without a full TLS
// handshake: Initial secrets are derived from the connection ID alone
// (RFC 9001 Section 5.2), so no real certificate is needed.
func newTestServerConn(t *testing.T) *Conn {
	t.Helper()
	odcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	cfg := NewConfig(&tls.Config{})
	s, err := Accept([]byte{9, 8, 7, 6}, odcid, cfg)
	require.NoError(t, err)
	s.dcid = append([]byte(nil), odcid...)
	s.deriveInitialKeyMaterial(odcid)
	return s
}

// TestAntiAmplificationClampsAvailableBytes covers RFC 9000 Section 8.1:
// before an address is validated, a server must not send more than 3x the
// bytes it has received from that address.
func TestAntiAmplificationClampsAvailableBytes(t *testing.T) {
	s := newTestServerConn(t)
	require.False(t, s.addrValidated)

	s.amplificationBytesRecv = 100
	pnSpace := &s.packetNumberSpaces[packetSpaceInitial]
	require.NoError(t, pnSpace.cryptoStream.send.push(make([]byte, 2000), 0, false))

	buf := make([]byte, MaxPacketSize)
	n, err := s.send(buf, packetSpaceInitial, time.Now())
	require.NoError(t, err)
	require.Greater(t, n, 0)
	require.LessOrEqual(t, uint64(n), uint64(300), "a single send must stay within the 3x budget")
	require.Equal(t, uint64(n), s.amplificationBytesSent)
	require.LessOrEqual(t, s.amplificationBytesSent, 3*s.amplificationBytesRecv)
}

// TestAntiAmplificationBlocksOnceBudgetExhausted covers the hard stop: once
// amplificationBytesSent reaches the 3x limit, send must refuse to emit
// anything further until the address is validated or more bytes arrive.
func TestAntiAmplificationBlocksOnceBudgetExhausted(t *testing.T) {
	s := newTestServerConn(t)
	s.amplificationBytesRecv = 10
	s.amplificationBytesSent = 30 // Already at the 3x limit.
	require.NoError(t, s.packetNumberSpaces[packetSpaceInitial].cryptoStream.send.push(make([]byte, 200), 0, false))

	buf := make([]byte, MaxPacketSize)
	n, err := s.send(buf, packetSpaceInitial, time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

// TestAntiAmplificationLiftedOnceAddressValidated covers the release: once
// MarkAddressValidated fires, the 3x clamp no longer applies.
func TestAntiAmplificationLiftedOnceAddressValidated(t *testing.T) {
	s := newTestServerConn(t)
	s.amplificationBytesRecv = 10
	s.amplificationBytesSent = 30
	require.NoError(t, s.packetNumberSpaces[packetSpaceInitial].cryptoStream.send.push(make([]byte, 200), 0, false))
	s.MarkAddressValidated()

	buf := make([]byte, MaxPacketSize)
	n, err := s.send(buf, packetSpaceInitial, time.Now())
	require.NoError(t, err)
	require.Greater(t, n, 0, "a validated address must not be amplification-limited")
}

func TestMarkAddressValidatedIsIdempotent(t *testing.T) {
	s := newTestServerConn(t)
	s.MarkAddressValidated()
	s.MarkAddressValidated()
	require.True(t, s.addrValidated)
}
