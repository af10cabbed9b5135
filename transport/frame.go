package transport

// Frame type codes (RFC 9000 Section 19).
const (
	frameTypePadding              = 0x00
	frameTypePing                 = 0x01
	frameTypeAck                  = 0x02
	frameTypeAckECN               = 0x03
	frameTypeResetStream          = 0x04
	frameTypeStopSending          = 0x05
	frameTypeCrypto               = 0x06
	frameTypeNewToken             = 0x07
	frameTypeStream               = 0x08 // 0x08-0x0f: OFF|LEN|FIN bits.
	frameTypeStreamEnd            = 0x0f
	frameTypeMaxData              = 0x10
	frameTypeMaxStreamData        = 0x11
	frameTypeMaxStreamsBidi       = 0x12
	frameTypeMaxStreamsUni        = 0x13
	frameTypeDataBlocked          = 0x14
	frameTypeStreamDataBlocked    = 0x15
	frameTypeStreamsBlockedBidi   = 0x16
	frameTypeStreamsBlockedUni    = 0x17
	frameTypeNewConnectionID      = 0x18
	frameTypeRetireConnectionID   = 0x19
	frameTypePathChallenge        = 0x1a
	frameTypePathResponse         = 0x1b
	frameTypeConnectionClose      = 0x1c
	frameTypeApplicationClose     = 0x1d
	frameTypeHanshakeDone         = 0x1e // Matches upstream's spelling; kept for call-site consistency.
)

// frame is implemented by every QUIC frame type. encodedLen must return the
// exact number of bytes encode will write; send-path code relies on this to
// budget packets before committing a frame.
type frame interface {
	encodedLen() int
	encode(b []byte) (int, error)
}

// isFrameAckEliciting reports whether receiving a frame of the given type
// requires the receiver to eventually send an ACK (every frame except ACK,
// PADDING and CONNECTION_CLOSE is ack-eliciting).
func isFrameAckEliciting(typ uint64) bool {
	switch typ {
	case frameTypePadding, frameTypeAck, frameTypeAckECN,
		frameTypeConnectionClose, frameTypeApplicationClose:
		return false
	default:
		return true
	}
}

// encodeFrames writes frames in order into b, returning the total bytes
// written. Callers have already budgeted exactly enough space (via
// encodedLen) so a short buffer here is an internal bug, not a normal
// "try a smaller packet" condition.
func encodeFrames(b []byte, frames []frame) (int, error) {
	off := 0
	for _, f := range frames {
		n, err := f.encode(b[off:])
		if err != nil {
			return 0, err
		}
		off += n
	}
	return off, nil
}

// paddingFrame is one or more PADDING frames (type 0x00), coalesced into a
// single run since individual PADDING frames carry no information.
type paddingFrame struct {
	length int
}

func newPaddingFrame(length int) *paddingFrame {
	return &paddingFrame{length: length}
}

func (s *paddingFrame) encodedLen() int {
	return s.length
}

func (s *paddingFrame) encode(b []byte) (int, error) {
	if len(b) < s.length {
		return 0, errInsufficientSpace
	}
	for i := 0; i < s.length; i++ {
		b[i] = 0
	}
	return s.length, nil
}

func (s *paddingFrame) decode(b []byte) (int, error) {
	n := 0
	for n < len(b) && b[n] == frameTypePadding {
		n++
	}
	if n == 0 {
		return 0, newError(FrameEncodingError, "padding")
	}
	s.length = n
	return n, nil
}

// pingFrame requests an acknowledgement (type 0x01); it carries no data.
type pingFrame struct{}

func (s *pingFrame) encodedLen() int {
	return 1
}

func (s *pingFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypePing
	return 1, nil
}

func (s *pingFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypePing {
		return 0, newError(FrameEncodingError, "ping")
	}
	return 1, nil
}

// handshakeDoneFrame (type 0x1e) is sent once, by the server, to signal
// handshake confirmation to the client.
type handshakeDoneFrame struct{}

func (s *handshakeDoneFrame) encodedLen() int {
	return 1
}

func (s *handshakeDoneFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypeHanshakeDone
	return 1, nil
}

func (s *handshakeDoneFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypeHanshakeDone {
		return 0, newError(FrameEncodingError, "handshake_done")
	}
	return 1, nil
}
