package transport

// Stream is one QUIC stream: independent send and receive byte pipes,
// each with its own flow-control window (RFC 9000 Section 2).
type Stream struct {
	id   uint64
	bidi bool

	recv recvBuffer
	send sendBuffer

	flow     flowControl
	connFlow *flowControl // Connection-level window this stream counts against.

	updateMaxData bool // A MAX_STREAM_DATA update is due (or in flight, pending ack).

	writeOffset uint64 // Next absolute offset Write will queue data at.
	closed      bool   // Write side already closed with fin; Write/Close are no-ops after.
}

func (s *Stream) init(id uint64, bidi bool) {
	*s = Stream{id: id, bidi: bidi}
	s.recv.init()
	s.send.init()
}

// pushRecv reassembles incoming STREAM frame data and updates this
// stream's receive-side flow-control accounting.
func (s *Stream) pushRecv(data span, offset uint64, fin bool) error {
	if err := s.recv.pushRecv(data, offset, fin); err != nil {
		return err
	}
	s.flow.addRecv(len(data))
	if s.flow.shouldUpdateMaxRecv() {
		s.updateMaxData = true
	}
	return nil
}

// popSend returns the next outgoing chunk of at most max bytes.
func (s *Stream) popSend(max int) (span, uint64, bool) {
	return s.send.popSend(max)
}

// ackMaxData clears the pending-update flag once a MAX_STREAM_DATA frame
// for this stream has been acknowledged.
func (s *Stream) ackMaxData() {
	s.updateMaxData = false
}

// Write queues len(p) bytes for sending on this stream at the current
// write cursor, advancing it, so repeated calls produce one contiguous
// byte stream the way io.Writer callers expect.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, newError(StreamStateError, "write on closed stream")
	}
	if err := s.send.push(p, s.writeOffset, false); err != nil {
		return 0, err
	}
	s.writeOffset += uint64(len(p))
	return len(p), nil
}

// Close marks the end of this stream's send side, queuing a zero-length
// STREAM frame with fin set at the current write cursor (RFC 9000
// Section 3.1). Further Write calls return an error.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	if err := s.send.push(nil, s.writeOffset, true); err != nil {
		return err
	}
	s.closed = true
	return nil
}

// Read copies reassembled, in-order received bytes into p.
func (s *Stream) Read(p []byte) (int, error) {
	return s.recv.read(p)
}
