package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCIDPoolAddRejectsPastLimit(t *testing.T) {
	var p cidPool
	for i := 0; i < activeConnectionIDLimit; i++ {
		require.NoError(t, p.add(cidEntry{sequenceNumber: uint64(i), cid: []byte{byte(i)}}))
	}
	err := p.add(cidEntry{sequenceNumber: activeConnectionIDLimit, cid: []byte{0xff}})
	require.Error(t, err)
	tErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, ConnectionIDLimitError, tErr.Code)
}

func TestCIDPoolAddIgnoresDuplicateSequence(t *testing.T) {
	var p cidPool
	require.NoError(t, p.add(cidEntry{sequenceNumber: 0, cid: []byte{1}}))
	require.NoError(t, p.add(cidEntry{sequenceNumber: 0, cid: []byte{2}}))
	require.Len(t, p.entries, 1)
	require.Equal(t, []byte{1}, p.entries[0].cid)
}

func TestCIDPoolRetireBelowDropsAndReports(t *testing.T) {
	var p cidPool
	for i := uint64(0); i < 4; i++ {
		require.NoError(t, p.add(cidEntry{sequenceNumber: i, cid: []byte{byte(i)}}))
	}

	retired := p.retireBelow(2)
	require.ElementsMatch(t, []uint64{0, 1}, retired)
	require.Len(t, p.entries, 2)

	// A retire_prior_to at or below the current watermark is a no-op.
	require.Nil(t, p.retireBelow(2))
	require.Nil(t, p.retireBelow(1))
}

func TestCIDPoolActiveReturnsLowestSequence(t *testing.T) {
	var p cidPool
	require.NoError(t, p.add(cidEntry{sequenceNumber: 3, cid: []byte{3}}))
	require.NoError(t, p.add(cidEntry{sequenceNumber: 1, cid: []byte{1}}))
	require.NoError(t, p.add(cidEntry{sequenceNumber: 2, cid: []byte{2}}))

	e, ok := p.active()
	require.True(t, ok)
	require.Equal(t, uint64(1), e.sequenceNumber)
}

func TestCIDPoolActiveEmpty(t *testing.T) {
	var p cidPool
	_, ok := p.active()
	require.False(t, ok)
}

func newTestCIDConn() *Conn {
	s := &Conn{state: stateActive, localCIDSeq: 1}
	return s
}

// TestMaybeReplenishLocalCIDsTopsUpAndQueuesFrames covers the review gap: a
// connection must keep at least localCIDSpareMin spare local CIDs handed to
// the peer, issuing fresh ones via NEW_CONNECTION_ID as the pool runs low.
func TestMaybeReplenishLocalCIDsTopsUpAndQueuesFrames(t *testing.T) {
	s := newTestCIDConn()

	s.maybeReplenishLocalCIDs()

	require.Len(t, s.localCIDs.entries, localCIDPoolTarget)
	require.Len(t, s.pendingNewCIDs, localCIDPoolTarget)
	require.Equal(t, uint64(1+localCIDPoolTarget), s.localCIDSeq)

	f := s.sendFrameNewConnectionID()
	require.NotNil(t, f)
	require.Equal(t, uint64(1), f.sequenceNumber)
	require.Len(t, s.pendingNewCIDs, localCIDPoolTarget-1)
}

func TestMaybeReplenishLocalCIDsNoopAboveSpareMin(t *testing.T) {
	s := newTestCIDConn()
	for i := 0; i < localCIDSpareMin; i++ {
		require.NoError(t, s.localCIDs.add(cidEntry{sequenceNumber: uint64(i), cid: []byte{byte(i)}}))
	}

	s.maybeReplenishLocalCIDs()

	require.Len(t, s.localCIDs.entries, localCIDSpareMin)
	require.Empty(t, s.pendingNewCIDs)
}

// TestMaybeReplenishLocalCIDsRespectsPeerLimit covers the cap: we must never
// hand out more local CIDs than the peer's advertised
// active_connection_id_limit says it is willing to track.
func TestMaybeReplenishLocalCIDsRespectsPeerLimit(t *testing.T) {
	s := newTestCIDConn()
	s.peerParams.ActiveConnectionIDLimit = 2

	s.maybeReplenishLocalCIDs()

	require.Len(t, s.localCIDs.entries, 2)
}

func TestMaybeReplenishLocalCIDsNoopBeforeActive(t *testing.T) {
	s := &Conn{state: stateAttempted, localCIDSeq: 1}

	s.maybeReplenishLocalCIDs()

	require.Empty(t, s.localCIDs.entries)
	require.Empty(t, s.pendingNewCIDs)
}

func TestSendFrameNewConnectionIDEmptyWhenNoneQueued(t *testing.T) {
	s := newTestCIDConn()
	require.Nil(t, s.sendFrameNewConnectionID())
}
