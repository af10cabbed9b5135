package transport

// connectionCloseFrame (types 0x1c/0x1d) ends the connection, carrying
// either a transport error code or an opaque application error code.
type connectionCloseFrame struct {
	application  bool
	errorCode    uint64
	frameType    uint64 // Transport-close only: the frame type that triggered the error, or 0.
	reasonPhrase []byte
}

func newConnectionCloseFrame(errorCode, frameType uint64, reason []byte, application bool) *connectionCloseFrame {
	return &connectionCloseFrame{
		application:  application,
		errorCode:    errorCode,
		frameType:    frameType,
		reasonPhrase: reason,
	}
}

func (f *connectionCloseFrame) typ() uint64 {
	if f.application {
		return frameTypeApplicationClose
	}
	return frameTypeConnectionClose
}

func (f *connectionCloseFrame) encodedLen() int {
	n := varintLen(f.typ()) + varintLen(f.errorCode)
	if !f.application {
		n += varintLen(f.frameType)
	}
	n += varintLen(uint64(len(f.reasonPhrase))) + len(f.reasonPhrase)
	return n
}

func (f *connectionCloseFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	off := putVarint(b, f.typ())
	off += putVarint(b[off:], f.errorCode)
	if !f.application {
		off += putVarint(b[off:], f.frameType)
	}
	off += putVarint(b[off:], uint64(len(f.reasonPhrase)))
	off += copy(b[off:], f.reasonPhrase)
	return off, nil
}

func (f *connectionCloseFrame) decode(b []byte) (int, error) {
	off := 0
	var typ uint64
	n := getVarint(b[off:], &typ)
	if n == 0 || (typ != frameTypeConnectionClose && typ != frameTypeApplicationClose) {
		return 0, newError(FrameEncodingError, "connection_close type")
	}
	off += n
	f.application = typ == frameTypeApplicationClose
	if n = getVarint(b[off:], &f.errorCode); n == 0 {
		return 0, newError(FrameEncodingError, "connection_close error")
	}
	off += n
	f.frameType = 0
	if !f.application {
		if n = getVarint(b[off:], &f.frameType); n == 0 {
			return 0, newError(FrameEncodingError, "connection_close frame_type")
		}
		off += n
	}
	var length uint64
	if n = getVarint(b[off:], &length); n == 0 {
		return 0, newError(FrameEncodingError, "connection_close reason length")
	}
	off += n
	if uint64(len(b)-off) < length {
		return 0, newError(FrameEncodingError, "connection_close reason")
	}
	f.reasonPhrase = append([]byte(nil), b[off:off+int(length)]...)
	off += int(length)
	return off, nil
}

func (f *connectionCloseFrame) String() string {
	return sprint(string(f.reasonPhrase))
}
