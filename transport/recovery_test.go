package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRecovery(now time.Time) *lossRecovery {
	r := &lossRecovery{}
	r.init(now)
	return r
}

func sendPacket(r *lossRecovery, pn uint64, now time.Time) *outgoingPacket {
	op := newOutgoingPacket(pn, now)
	op.addFrame(&pingFrame{})
	op.size = maxDatagramSize
	r.onPacketSent(op, packetSpaceApplication)
	return op
}

// TestDetectLostPacketsByCount covers RFC 9002 Section 6.1.1: a packet is
// declared lost once packetThreshold later packets have been acknowledged,
// even if no time-based threshold has elapsed.
func TestDetectLostPacketsByCount(t *testing.T) {
	now := time.Now()
	r := newTestRecovery(now)

	for pn := uint64(0); pn < 5; pn++ {
		sendPacket(r, pn, now)
	}

	// Ack only the packet packetThreshold ahead of packet 0; packet 0
	// itself was never acked and must be declared lost by count.
	ranges := pnRangeSet{{start: 3, end: 3}}
	r.onAckReceived(ranges, 0, packetSpaceApplication, now)

	require.Len(t, r.lost[packetSpaceApplication], 1)
	require.IsType(t, &pingFrame{}, r.lost[packetSpaceApplication][0])
	_, stillOutstanding := r.sentPackets[packetSpaceApplication][0]
	require.False(t, stillOutstanding, "packet 0 must be removed from the outstanding ledger once declared lost")
}

// TestDetectLostPacketsByTime covers the time-threshold half of RFC 9002
// Section 6.1.2: once enough of the RTT-scaled window has elapsed since a
// packet was sent, it is lost even without packetThreshold later acks.
func TestDetectLostPacketsByTime(t *testing.T) {
	now := time.Now()
	r := newTestRecovery(now)
	r.rtt.update(50*time.Millisecond, 0)

	sendPacket(r, 0, now)
	later := now.Add(200 * time.Millisecond)
	sendPacket(r, 1, later)

	ranges := pnRangeSet{{start: 1, end: 1}}
	r.onAckReceived(ranges, 0, packetSpaceApplication, later)

	require.Len(t, r.lost[packetSpaceApplication], 1)
}

// TestPersistentCongestionDetected covers RFC 9002 Section 7.6: losing a
// span of packets wider than persistentCongestionThreshold PTOs collapses
// the congestion window to the minimum, not just halves it.
func TestPersistentCongestionDetected(t *testing.T) {
	now := time.Now()
	r := newTestRecovery(now)
	r.rtt.update(10*time.Millisecond, 0)
	pto := r.rtt.pto(r.maxAckDelay)

	sendPacket(r, 0, now)
	farLater := now.Add(pto*persistentCongestionThreshold + time.Second)
	sendPacket(r, 1, farLater)
	sendPacket(r, 2, farLater)
	sendPacket(r, 3, farLater)
	sendPacket(r, 4, farLater)

	ranges := pnRangeSet{{start: 4, end: 4}}
	r.onAckReceived(ranges, 0, packetSpaceApplication, farLater)

	require.Equal(t, minimumWindow, r.cc.congestionWindow())
}

// TestOnLossDetectionTimeoutFiresPTOProbe covers the PTO path itself: when
// the loss timer fires with no known loss deadline, recovery must arm two
// probe sends and double the next PTO (RFC 9002 Section 6.2.4).
func TestOnLossDetectionTimeoutFiresPTOProbe(t *testing.T) {
	now := time.Now()
	r := newTestRecovery(now)
	r.rtt.update(10*time.Millisecond, 0)
	sendPacket(r, 0, now)

	firstPTO := r.probeTimeout()
	r.onLossDetectionTimeout(now.Add(firstPTO))

	require.Equal(t, 2, r.probes)
	require.Equal(t, 1, r.ptoCount)
	require.Greater(t, r.probeTimeout(), firstPTO, "PTO must back off exponentially after each expiry")
}

// TestProbesBypassCongestionWindow covers RFC 9002 Section 7.5: once a PTO
// has armed probe sends, canSend must allow them through even if the
// congestion window is otherwise full.
func TestProbesBypassCongestionWindow(t *testing.T) {
	now := time.Now()
	r := newTestRecovery(now)
	r.cc.(*newReno).window = 0 // Simulate a fully-occupied window.

	require.False(t, r.canSend(1))
	r.probes = 2
	require.True(t, r.canSend(1))
}

func TestAckAdvancesRTTEstimate(t *testing.T) {
	now := time.Now()
	r := newTestRecovery(now)
	sendPacket(r, 0, now)

	acked := now.Add(20 * time.Millisecond)
	r.onAckReceived(pnRangeSet{{start: 0, end: 0}}, 0, packetSpaceApplication, acked)

	require.True(t, r.rtt.hasSample)
	require.Equal(t, 20*time.Millisecond, r.rtt.latest)
}

func TestResetForNewPathDiscardsWindowAndRTT(t *testing.T) {
	now := time.Now()
	r := newTestRecovery(now)
	r.rtt.update(100*time.Millisecond, 0)
	r.cc.(*newReno).window = 500
	r.ptoCount = 3
	r.probes = 2

	r.resetForNewPath(now)

	require.False(t, r.rtt.hasSample)
	require.Equal(t, initialWindowPackets*maxDatagramSize, r.cc.congestionWindow())
	require.Equal(t, 0, r.ptoCount)
	require.Equal(t, 0, r.probes)
}
