package transport

// Stream frame type flag bits (RFC 9000 Section 19.8), ORed onto the base
// frameTypeStream (0x08).
const (
	streamFlagFin = 0x01
	streamFlagLen = 0x02
	streamFlagOff = 0x04
)

// streamFrame carries application data for a stream (types 0x08-0x0f).
type streamFrame struct {
	streamID uint64
	data     span
	offset   uint64
	fin      bool
}

func newStreamFrame(id uint64, data span, offset uint64, fin bool) *streamFrame {
	return &streamFrame{streamID: id, data: data, offset: offset, fin: fin}
}

const maxStreamFrameOverhead = 1 + 8 + 8 + 8 // type + streamID + offset + length, worst case

func (f *streamFrame) encodedLen() int {
	n := 1 // type byte
	n += varintLen(f.streamID)
	if f.offset > 0 {
		n += varintLen(f.offset)
	}
	n += varintLen(uint64(len(f.data))) // LEN is always encoded so framing stays unambiguous mid-packet
	n += len(f.data)
	return n
}

func (f *streamFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	typ := byte(frameTypeStream) | streamFlagLen
	if f.offset > 0 {
		typ |= streamFlagOff
	}
	if f.fin {
		typ |= streamFlagFin
	}
	b[0] = typ
	off := 1
	off += putVarint(b[off:], f.streamID)
	if f.offset > 0 {
		off += putVarint(b[off:], f.offset)
	}
	off += putVarint(b[off:], uint64(len(f.data)))
	off += copy(b[off:], f.data)
	return off, nil
}

func (f *streamFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] < frameTypeStream || b[0] > frameTypeStreamEnd {
		return 0, newError(FrameEncodingError, "stream type")
	}
	typ := b[0]
	off := 1
	n := getVarint(b[off:], &f.streamID)
	if n == 0 {
		return 0, newError(FrameEncodingError, "stream id")
	}
	off += n
	f.offset = 0
	if typ&streamFlagOff != 0 {
		if n = getVarint(b[off:], &f.offset); n == 0 {
			return 0, newError(FrameEncodingError, "stream offset")
		}
		off += n
	}
	var length uint64
	if typ&streamFlagLen != 0 {
		if n = getVarint(b[off:], &length); n == 0 {
			return 0, newError(FrameEncodingError, "stream length")
		}
		off += n
	} else {
		length = uint64(len(b) - off)
	}
	if uint64(len(b)-off) < length {
		return 0, newError(FrameEncodingError, "stream data")
	}
	f.data = b[off : off+int(length) : off+int(length)]
	f.fin = typ&streamFlagFin != 0
	off += int(length)
	return off, nil
}

func (f *streamFrame) String() string {
	return sprint("id=", f.streamID, " offset=", f.offset, " length=", len(f.data), " fin=", f.fin)
}

// cryptoFrame carries TLS handshake bytes (type 0x06).
type cryptoFrame struct {
	data   span
	offset uint64
}

func newCryptoFrame(data span, offset uint64) *cryptoFrame {
	return &cryptoFrame{data: data, offset: offset}
}

const maxCryptoFrameOverhead = 1 + 8 + 8 // type + offset + length

func (f *cryptoFrame) encodedLen() int {
	return 1 + varintLen(f.offset) + varintLen(uint64(len(f.data))) + len(f.data)
}

func (f *cryptoFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypeCrypto
	off := 1
	off += putVarint(b[off:], f.offset)
	off += putVarint(b[off:], uint64(len(f.data)))
	off += copy(b[off:], f.data)
	return off, nil
}

func (f *cryptoFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypeCrypto {
		return 0, newError(FrameEncodingError, "crypto type")
	}
	off := 1
	n := getVarint(b[off:], &f.offset)
	if n == 0 {
		return 0, newError(FrameEncodingError, "crypto offset")
	}
	off += n
	var length uint64
	if n = getVarint(b[off:], &length); n == 0 {
		return 0, newError(FrameEncodingError, "crypto length")
	}
	off += n
	if uint64(len(b)-off) < length {
		return 0, newError(FrameEncodingError, "crypto data")
	}
	f.data = b[off : off+int(length) : off+int(length)]
	off += int(length)
	return off, nil
}

func (f *cryptoFrame) String() string {
	return sprint("offset=", f.offset, " length=", len(f.data))
}

// newTokenFrame (type 0x07) carries an address-validation token the server
// issued for use on a future connection.
type newTokenFrame struct {
	token []byte
}

func newNewTokenFrame(token []byte) *newTokenFrame {
	return &newTokenFrame{token: token}
}

func (f *newTokenFrame) encodedLen() int {
	return 1 + varintLen(uint64(len(f.token))) + len(f.token)
}

func (f *newTokenFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypeNewToken
	off := 1
	off += putVarint(b[off:], uint64(len(f.token)))
	off += copy(b[off:], f.token)
	return off, nil
}

func (f *newTokenFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypeNewToken {
		return 0, newError(FrameEncodingError, "new_token type")
	}
	off := 1
	var length uint64
	n := getVarint(b[off:], &length)
	if n == 0 {
		return 0, newError(FrameEncodingError, "new_token length")
	}
	off += n
	if length == 0 || uint64(len(b)-off) < length {
		return 0, newError(FrameEncodingError, "new_token data")
	}
	f.token = append([]byte(nil), b[off:off+int(length)]...)
	off += int(length)
	return off, nil
}

// resetStreamFrame (type 0x04) abruptly terminates the send side of a
// stream, announcing its final size.
type resetStreamFrame struct {
	streamID  uint64
	errorCode uint64
	finalSize uint64
}

func newResetStreamFrame(id, errorCode, finalSize uint64) *resetStreamFrame {
	return &resetStreamFrame{streamID: id, errorCode: errorCode, finalSize: finalSize}
}

func (f *resetStreamFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode) + varintLen(f.finalSize)
}

func (f *resetStreamFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypeResetStream
	off := 1
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.errorCode)
	off += putVarint(b[off:], f.finalSize)
	return off, nil
}

func (f *resetStreamFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypeResetStream {
		return 0, newError(FrameEncodingError, "reset_stream type")
	}
	off := 1
	n := getVarint(b[off:], &f.streamID)
	if n == 0 {
		return 0, newError(FrameEncodingError, "reset_stream id")
	}
	off += n
	if n = getVarint(b[off:], &f.errorCode); n == 0 {
		return 0, newError(FrameEncodingError, "reset_stream error")
	}
	off += n
	if n = getVarint(b[off:], &f.finalSize); n == 0 {
		return 0, newError(FrameEncodingError, "reset_stream final_size")
	}
	off += n
	return off, nil
}

// stopSendingFrame (type 0x05) asks the peer to abandon sending on a stream.
type stopSendingFrame struct {
	streamID  uint64
	errorCode uint64
}

func newStopSendingFrame(id, errorCode uint64) *stopSendingFrame {
	return &stopSendingFrame{streamID: id, errorCode: errorCode}
}

func (f *stopSendingFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode)
}

func (f *stopSendingFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypeStopSending
	off := 1
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.errorCode)
	return off, nil
}

func (f *stopSendingFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypeStopSending {
		return 0, newError(FrameEncodingError, "stop_sending type")
	}
	off := 1
	n := getVarint(b[off:], &f.streamID)
	if n == 0 {
		return 0, newError(FrameEncodingError, "stop_sending id")
	}
	off += n
	if n = getVarint(b[off:], &f.errorCode); n == 0 {
		return 0, newError(FrameEncodingError, "stop_sending error")
	}
	off += n
	return off, nil
}
