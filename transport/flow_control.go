package transport

// flowControl tracks one flow-control window, either the connection-level
// window (RFC 9000 Section 4.1) or a single stream's window (Section 4.2).
// Both the receive and send sides of the window live in the same struct
// since every window has exactly one of each, mirrored for local and peer.
type flowControl struct {
	// Receive side: bytes we allow the peer to send us.
	maxRecv       uint64 // Current advertised limit.
	maxRecvNext   uint64 // Next limit to advertise, once committed.
	recvBytes     uint64 // Bytes received so far.
	recvStepBytes uint64 // Step size for auto-tuning maxRecvNext.

	// Send side: bytes the peer allows us to send.
	maxSend   uint64
	sendBytes uint64
}

func (f *flowControl) init(maxRecv, maxSend uint64) {
	*f = flowControl{
		maxRecv:     maxRecv,
		maxRecvNext: maxRecv,
		maxSend:     maxSend,
	}
	f.recvStepBytes = maxRecv / 2
}

// canRecv returns how many more bytes the peer is currently allowed to
// send us before hitting our advertised limit.
func (f *flowControl) canRecv() uint64 {
	if f.recvBytes >= f.maxRecv {
		return 0
	}
	return f.maxRecv - f.recvBytes
}

// addRecv records newly received bytes and, once more than half the
// window has been consumed, schedules a larger limit to advertise.
func (f *flowControl) addRecv(n int) {
	f.recvBytes += uint64(n)
	if f.recvStepBytes > 0 && f.recvBytes > f.maxRecvNext-f.recvStepBytes {
		f.maxRecvNext = f.recvBytes + f.recvStepBytes
	}
}

func (f *flowControl) shouldUpdateMaxRecv() bool {
	return f.maxRecvNext > f.maxRecv
}

// commitMaxRecv is called once a MAX_DATA/MAX_STREAM_DATA frame
// announcing maxRecvNext has actually been sent.
func (f *flowControl) commitMaxRecv() {
	f.maxRecv = f.maxRecvNext
}

func (f *flowControl) setMaxSend(max uint64) {
	if max > f.maxSend {
		f.maxSend = max
	}
}

func (f *flowControl) canSend() uint64 {
	if f.sendBytes >= f.maxSend {
		return 0
	}
	return f.maxSend - f.sendBytes
}

func (f *flowControl) addSend(n int) {
	f.sendBytes += uint64(n)
}
