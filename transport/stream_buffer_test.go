package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecvBufferOrdersOutOfOrderChunks(t *testing.T) {
	var b recvBuffer
	b.init()

	require.NoError(t, b.pushRecv([]byte("world"), 5, false))
	require.NoError(t, b.pushRecv([]byte("hello"), 0, false))

	out := make([]byte, 5)
	n, err := b.read(out)
	require.NoError(t, err)
	require.Equal(t, "hello", string(out[:n]))

	n, err = b.read(out)
	require.NoError(t, err)
	require.Equal(t, "world", string(out[:n]))
}

func TestRecvBufferMergesOverlappingChunks(t *testing.T) {
	var b recvBuffer
	b.init()

	require.NoError(t, b.pushRecv([]byte("aaXX"), 0, false))
	require.NoError(t, b.pushRecv([]byte("XXbb"), 2, false))

	out := make([]byte, 8)
	n, err := b.read(out)
	require.NoError(t, err)
	require.Equal(t, "aaXXbb", string(out[:n]))
}

func TestRecvBufferDropsBytesAlreadyDelivered(t *testing.T) {
	var b recvBuffer
	b.init()

	require.NoError(t, b.pushRecv([]byte("hello"), 0, false))
	out := make([]byte, 5)
	n, err := b.read(out)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	// Retransmission of already-delivered bytes, overlapping into new data.
	require.NoError(t, b.pushRecv([]byte("hello!"), 0, false))
	n, err = b.read(out)
	require.NoError(t, err)
	require.Equal(t, "!", string(out[:n]))
}

// TestRecvBufferFinalSizeMismatch covers spec's final-size-mismatch
// boundary: a second FIN announcing a different final size than the first
// must be rejected with FinalSizeError (RFC 9000 Section 4.5).
func TestRecvBufferFinalSizeMismatch(t *testing.T) {
	var b recvBuffer
	b.init()

	require.NoError(t, b.pushRecv([]byte("hello"), 0, true))
	err := b.pushRecv([]byte("x"), 10, true)
	require.Error(t, err)
	tErr, ok := err.(*Error)
	require.True(t, ok, "expected *transport.Error, got %T", err)
	require.Equal(t, FinalSizeError, tErr.Code)
}

// TestRecvBufferDataBeyondFinalSize covers the companion boundary: once a
// final size is known, data purporting to extend past it is also a
// final-size violation, even without a second FIN.
func TestRecvBufferDataBeyondFinalSize(t *testing.T) {
	var b recvBuffer
	b.init()

	require.NoError(t, b.pushRecv([]byte("hello"), 0, true))
	err := b.pushRecv([]byte("x"), 10, false)
	require.Error(t, err)
	tErr, ok := err.(*Error)
	require.True(t, ok, "expected *transport.Error, got %T", err)
	require.Equal(t, FinalSizeError, tErr.Code)
}

func TestRecvBufferResetFreesFlowControlCredit(t *testing.T) {
	var b recvBuffer
	b.init()

	require.NoError(t, b.pushRecv([]byte("hi"), 0, false))
	freed, err := b.reset(100)
	require.NoError(t, err)
	require.Equal(t, 98, freed)
	require.True(t, b.finSet)
	require.Equal(t, uint64(100), b.readOffset)
}

func TestRecvBufferResetFinalSizeMismatch(t *testing.T) {
	var b recvBuffer
	b.init()

	require.NoError(t, b.pushRecv([]byte("hi"), 0, true))
	_, err := b.reset(100)
	require.Error(t, err)
}

func TestSendBufferPopSendRespectsMax(t *testing.T) {
	var b sendBuffer
	b.init()

	require.NoError(t, b.push([]byte("hello world"), 0, true))

	chunk, offset, fin := b.popSend(5)
	require.Equal(t, "hello", string(chunk))
	require.Equal(t, uint64(0), offset)
	require.False(t, fin)

	chunk, offset, fin = b.popSend(100)
	require.Equal(t, " world", string(chunk))
	require.Equal(t, uint64(5), offset)
	require.True(t, fin)
}

func TestSendBufferAckTrimsContiguousPrefix(t *testing.T) {
	var b sendBuffer
	b.init()

	require.NoError(t, b.push([]byte("hello world"), 0, false))
	b.popSend(100)
	b.ack(0, 5)
	require.Equal(t, uint64(5), b.ackedTo)
	require.Equal(t, 6, len(b.data))

	b.ack(5, 6)
	require.Equal(t, uint64(11), b.ackedTo)
	require.Equal(t, 0, len(b.data))
}

func TestSendBufferAckOutOfOrderRanges(t *testing.T) {
	var b sendBuffer
	b.init()

	require.NoError(t, b.push([]byte("hello world"), 0, false))
	b.popSend(100)

	// Ack the tail first; the prefix isn't contiguous yet so ackedTo stays 0.
	b.ack(6, 5)
	require.Equal(t, uint64(0), b.ackedTo)

	// Filling in the gap should advance ackedTo all the way through.
	b.ack(0, 6)
	require.Equal(t, uint64(11), b.ackedTo)
}
