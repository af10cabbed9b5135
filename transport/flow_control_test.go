package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlowControlCanSendReflectsLimit(t *testing.T) {
	var f flowControl
	f.init(100, 50)

	require.Equal(t, uint64(50), f.canSend())
	f.addSend(20)
	require.Equal(t, uint64(30), f.canSend())
	f.addSend(30)
	require.Equal(t, uint64(0), f.canSend())
}

func TestFlowControlSetMaxSendNeverShrinks(t *testing.T) {
	var f flowControl
	f.init(100, 50)

	f.setMaxSend(40) // A MAX_DATA carrying a smaller value must be ignored.
	require.Equal(t, uint64(50), f.canSend())

	f.setMaxSend(80)
	require.Equal(t, uint64(80), f.canSend())
}

// TestFlowControlCanRecvExhaustion covers the flow-control-violation
// boundary: once recvBytes reaches maxRecv, canRecv reports zero
// remaining credit, the point at which a conforming peer must stop
// sending and an over-limit STREAM/CRYPTO frame is a protocol violation.
func TestFlowControlCanRecvExhaustion(t *testing.T) {
	var f flowControl
	f.init(10, 0)

	require.Equal(t, uint64(10), f.canRecv())
	f.addRecv(10)
	require.Equal(t, uint64(0), f.canRecv())
}

func TestFlowControlAutoTunesRecvWindow(t *testing.T) {
	var f flowControl
	f.init(100, 0)

	require.False(t, f.shouldUpdateMaxRecv())
	f.addRecv(60) // Past half the window: recvStepBytes is 50.
	require.True(t, f.shouldUpdateMaxRecv())

	f.commitMaxRecv()
	require.Equal(t, uint64(110), f.maxRecv)
	require.False(t, f.shouldUpdateMaxRecv())
}

// TestFlowControlViolationDetection exercises the same invariant conn.go
// enforces when an incoming STREAM frame carries more data than the
// remaining connection- or stream-level credit: once canRecv() is smaller than the
// frame's length, the frame must be rejected rather than buffered.
func TestFlowControlViolationDetection(t *testing.T) {
	var f flowControl
	f.init(10, 0)
	f.addRecv(8)

	frameLen := uint64(5)
	require.Less(t, f.canRecv(), frameLen, "frame exceeding remaining credit must be detectable as a violation")
}
