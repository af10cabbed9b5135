package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMTUDiscoveryClimbsLadderOnAck(t *testing.T) {
	var m mtuDiscovery
	m.init()
	now := time.Now()

	size, ok := m.next(now, MaxPacketSize)
	require.True(t, ok)
	require.Equal(t, mtuProbeSizes[0], size)

	m.onProbeSent(1, size, now)
	require.Equal(t, 0, m.confirmed(), "nothing is confirmed until the probe is acked")

	// A probe still outstanding within the timeout must not be reissued.
	_, ok = m.next(now.Add(time.Second), MaxPacketSize)
	require.False(t, ok)

	m.onAckRange(pnRangeSet{{start: 1, end: 1}})
	require.Equal(t, mtuProbeSizes[0], m.confirmed())

	size, ok = m.next(now, MaxPacketSize)
	require.True(t, ok)
	require.Equal(t, mtuProbeSizes[1], size)
}

func TestMTUDiscoveryStopsClimbingOnProbeTimeout(t *testing.T) {
	var m mtuDiscovery
	m.init()
	now := time.Now()

	size, ok := m.next(now, MaxPacketSize)
	require.True(t, ok)
	m.onProbeSent(1, size, now)

	// The probe goes unacknowledged past mtuProbeTimeout: the search gives
	// up on this size rather than retrying forever.
	_, ok = m.next(now.Add(mtuProbeTimeout+time.Millisecond), MaxPacketSize)
	require.False(t, ok)
	require.Equal(t, 0, m.confirmed())
}

func TestMTUDiscoveryNeverExceedsMaxAllowed(t *testing.T) {
	var m mtuDiscovery
	m.init()
	now := time.Now()

	_, ok := m.next(now, mtuProbeSizes[0]-1)
	require.False(t, ok, "no candidate fits under a ceiling below the smallest probe size")
}

func TestMTUDiscoveryIgnoresUnrelatedAck(t *testing.T) {
	var m mtuDiscovery
	m.init()
	now := time.Now()

	size, _ := m.next(now, MaxPacketSize)
	m.onProbeSent(5, size, now)

	m.onAckRange(pnRangeSet{{start: 1, end: 1}})
	require.Equal(t, 0, m.confirmed())
}

func TestMTUDiscoveryResetClearsProgress(t *testing.T) {
	var m mtuDiscovery
	m.init()
	now := time.Now()

	size, _ := m.next(now, MaxPacketSize)
	m.onProbeSent(1, size, now)
	m.onAckRange(pnRangeSet{{start: 1, end: 1}})
	require.NotZero(t, m.confirmed())

	m.reset()

	require.Equal(t, 0, m.confirmed())
	next, ok := m.next(now, MaxPacketSize)
	require.True(t, ok)
	require.Equal(t, mtuProbeSizes[0], next)
}
