package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestPathConn(now time.Time) *Conn {
	s := &Conn{state: stateActive}
	s.recovery.init(now)
	s.mtu.init()
	return s
}

// TestOnPeerAddressSeedsActivePath covers the handshake case: the first
// address OnPeerAddress ever sees becomes the active path unconditionally,
// with no PATH_CHALLENGE involved.
func TestOnPeerAddressSeedsActivePath(t *testing.T) {
	now := time.Now()
	s := newTestPathConn(now)

	s.OnPeerAddress("10.0.0.1:4433", now)

	require.NotNil(t, s.activePath)
	require.Equal(t, "10.0.0.1:4433", s.activePath.addr)
	require.True(t, s.activePath.validated)
	require.Empty(t, s.candidatePaths)
}

// TestOnPeerAddressSameAddressIsNotAMigration covers the non-migration
// case: repeated datagrams from the already-active address must not spawn
// a candidate path or a PATH_CHALLENGE.
func TestOnPeerAddressSameAddressIsNotAMigration(t *testing.T) {
	now := time.Now()
	s := newTestPathConn(now)
	s.OnPeerAddress("10.0.0.1:4433", now)

	s.OnPeerAddress("10.0.0.1:4433", now.Add(time.Second))

	require.Empty(t, s.candidatePaths)
	require.Nil(t, s.pendingPathChallenge)
}

// TestOnPeerAddressNewAddressQueuesChallenge covers the migration-candidate
// path: a new source address must not be trusted until a PATH_CHALLENGE
// round trip validates it (RFC 9000 Section 9).
func TestOnPeerAddressNewAddressQueuesChallenge(t *testing.T) {
	now := time.Now()
	s := newTestPathConn(now)
	s.OnPeerAddress("10.0.0.1:4433", now)

	s.OnPeerAddress("10.0.0.2:4433", now)

	require.Len(t, s.candidatePaths, 1)
	cand := s.candidatePaths["10.0.0.2:4433"]
	require.NotNil(t, cand)
	require.False(t, cand.validated)
	require.Equal(t, 1, cand.attempts)
	require.NotNil(t, s.pendingPathChallenge)
	require.Equal(t, "10.0.0.1:4433", s.activePath.addr, "the active path must not change until validation completes")
}

// TestPathResponsePromotesMatchingCandidate covers the happy path of
// migration: a PATH_RESPONSE whose data matches the outstanding challenge
// promotes that candidate to active and rotates the destination CID.
func TestPathResponsePromotesMatchingCandidate(t *testing.T) {
	now := time.Now()
	s := newTestPathConn(now)
	s.OnPeerAddress("10.0.0.1:4433", now)
	s.OnPeerAddress("10.0.0.2:4433", now)

	challenge := s.candidatePaths["10.0.0.2:4433"].challenge
	require.NoError(t, s.peerCIDs.add(cidEntry{sequenceNumber: 1, cid: []byte{1, 2, 3, 4}}))

	f := newPathResponseFrame(challenge)
	buf := make([]byte, f.encodedLen())
	n, err := f.encode(buf)
	require.NoError(t, err)

	_, err = s.recvFramePathResponse(buf[:n], now)
	require.NoError(t, err)

	require.NotNil(t, s.activePath)
	require.Equal(t, "10.0.0.2:4433", s.activePath.addr)
	require.True(t, s.activePath.validated)
	require.Empty(t, s.candidatePaths)
	require.Equal(t, []byte{1, 2, 3, 4}, []byte(s.dcid))
}

// TestPathResponseMismatchDoesNotPromote covers the adversarial case: a
// PATH_RESPONSE whose data doesn't match any outstanding challenge must be
// ignored rather than promoting an unvalidated candidate.
func TestPathResponseMismatchDoesNotPromote(t *testing.T) {
	now := time.Now()
	s := newTestPathConn(now)
	s.OnPeerAddress("10.0.0.1:4433", now)
	s.OnPeerAddress("10.0.0.2:4433", now)

	var wrong [8]byte
	copy(wrong[:], "WRONGWRO")
	f := newPathResponseFrame(wrong)
	buf := make([]byte, f.encodedLen())
	n, err := f.encode(buf)
	require.NoError(t, err)

	_, err = s.recvFramePathResponse(buf[:n], now)
	require.NoError(t, err)

	require.Equal(t, "10.0.0.1:4433", s.activePath.addr)
	require.Len(t, s.candidatePaths, 1, "the unmatched candidate must still be pending")
}

// TestPromotePathResetsCongestionAndMTU covers RFC 9000 Sections 9.4/9.5:
// neither the congestion window, RTT estimate, nor confirmed MTU carries
// over to a migrated path.
func TestPromotePathResetsCongestionAndMTU(t *testing.T) {
	now := time.Now()
	s := newTestPathConn(now)
	s.OnPeerAddress("10.0.0.1:4433", now)
	s.recovery.rtt.update(50*time.Millisecond, 0)
	s.mtu.confirmedSize = 1452
	require.NoError(t, s.peerCIDs.add(cidEntry{sequenceNumber: 1, cid: []byte{9, 9, 9, 9}}))

	s.OnPeerAddress("10.0.0.2:4433", now)
	challenge := s.candidatePaths["10.0.0.2:4433"].challenge
	s.promotePath("10.0.0.2:4433", now)
	_ = challenge

	require.False(t, s.recovery.rtt.hasSample)
	require.Equal(t, 0, s.mtu.confirmed())
}

// TestRetryPathProbesBacksOffAndAbandons covers the exponential-backoff
// retry schedule and its ceiling: a candidate that never validates is
// retried with growing delays and abandoned after pathProbeMaxAttempts.
func TestRetryPathProbesBacksOffAndAbandons(t *testing.T) {
	now := time.Now()
	s := newTestPathConn(now)
	s.OnPeerAddress("10.0.0.1:4433", now)
	s.OnPeerAddress("10.0.0.2:4433", now)

	cand := s.candidatePaths["10.0.0.2:4433"]
	require.Equal(t, 1, cand.attempts)
	firstDeadline := cand.nextProbe

	// Retrying before the backoff elapses must not re-arm the probe.
	s.retryPathProbes(now.Add(10 * time.Millisecond))
	require.Equal(t, 1, cand.attempts)

	t0 := now
	for i := 1; i < pathProbeMaxAttempts; i++ {
		t0 = cand.nextProbe.Add(time.Millisecond)
		s.retryPathProbes(t0)
		require.Equal(t, i+1, cand.attempts)
	}
	require.Equal(t, pathProbeMaxAttempts, cand.attempts)
	_ = firstDeadline

	// One more retry past the final attempt abandons the candidate.
	s.retryPathProbes(t0.Add(10 * time.Second))
	require.Empty(t, s.candidatePaths)
}

// TestRotateRemoteCIDQueuesRetirement covers RFC 9000 Section 9.5: rotating
// the destination CID on migration must queue a RETIRE_CONNECTION_ID for
// the CID abandoned, so the peer isn't left thinking it's still in use.
func TestRotateRemoteCIDQueuesRetirement(t *testing.T) {
	now := time.Now()
	s := newTestPathConn(now)
	s.dcid = []byte{0, 0, 0, 0}
	s.dcidSeq = 0
	require.NoError(t, s.peerCIDs.add(cidEntry{sequenceNumber: 1, cid: []byte{5, 6, 7, 8}}))

	ok := s.rotateRemoteCID()

	require.True(t, ok)
	require.Equal(t, []byte{5, 6, 7, 8}, []byte(s.dcid))
	require.Equal(t, uint64(1), s.dcidSeq)
	require.Equal(t, []uint64{0}, s.pendingRetireCIDs)
}
