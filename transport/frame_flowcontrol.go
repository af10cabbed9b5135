package transport

// maxDataFrame (type 0x10) raises the connection-level receive limit.
type maxDataFrame struct {
	maximumData uint64
}

func newMaxDataFrame(max uint64) *maxDataFrame {
	return &maxDataFrame{maximumData: max}
}

func (f *maxDataFrame) encodedLen() int {
	return 1 + varintLen(f.maximumData)
}

func (f *maxDataFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypeMaxData
	return 1 + putVarint(b[1:], f.maximumData), nil
}

func (f *maxDataFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypeMaxData {
		return 0, newError(FrameEncodingError, "max_data type")
	}
	n := getVarint(b[1:], &f.maximumData)
	if n == 0 {
		return 0, newError(FrameEncodingError, "max_data value")
	}
	return 1 + n, nil
}

// maxStreamDataFrame (type 0x11) raises a per-stream receive limit.
type maxStreamDataFrame struct {
	streamID    uint64
	maximumData uint64
}

func newMaxStreamDataFrame(id, max uint64) *maxStreamDataFrame {
	return &maxStreamDataFrame{streamID: id, maximumData: max}
}

func (f *maxStreamDataFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.maximumData)
}

func (f *maxStreamDataFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypeMaxStreamData
	off := 1
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.maximumData)
	return off, nil
}

func (f *maxStreamDataFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypeMaxStreamData {
		return 0, newError(FrameEncodingError, "max_stream_data type")
	}
	off := 1
	n := getVarint(b[off:], &f.streamID)
	if n == 0 {
		return 0, newError(FrameEncodingError, "max_stream_data id")
	}
	off += n
	if n = getVarint(b[off:], &f.maximumData); n == 0 {
		return 0, newError(FrameEncodingError, "max_stream_data value")
	}
	off += n
	return off, nil
}

// maxStreamsFrame (types 0x12/0x13) raises the bidirectional or
// unidirectional stream-count limit.
type maxStreamsFrame struct {
	maximumStreams uint64
	bidi           bool
}

func newMaxStreamsFrame(max uint64, bidi bool) *maxStreamsFrame {
	return &maxStreamsFrame{maximumStreams: max, bidi: bidi}
}

func (f *maxStreamsFrame) typ() byte {
	if f.bidi {
		return frameTypeMaxStreamsBidi
	}
	return frameTypeMaxStreamsUni
}

func (f *maxStreamsFrame) encodedLen() int {
	return 1 + varintLen(f.maximumStreams)
}

func (f *maxStreamsFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	b[0] = f.typ()
	return 1 + putVarint(b[1:], f.maximumStreams), nil
}

func (f *maxStreamsFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || (b[0] != frameTypeMaxStreamsBidi && b[0] != frameTypeMaxStreamsUni) {
		return 0, newError(FrameEncodingError, "max_streams type")
	}
	f.bidi = b[0] == frameTypeMaxStreamsBidi
	n := getVarint(b[1:], &f.maximumStreams)
	if n == 0 {
		return 0, newError(FrameEncodingError, "max_streams value")
	}
	return 1 + n, nil
}

// dataBlockedFrame (type 0x14) tells the peer we are blocked on the
// connection-level send limit.
type dataBlockedFrame struct {
	dataLimit uint64
}

func newDataBlockedFrame(limit uint64) *dataBlockedFrame {
	return &dataBlockedFrame{dataLimit: limit}
}

func (f *dataBlockedFrame) encodedLen() int {
	return 1 + varintLen(f.dataLimit)
}

func (f *dataBlockedFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypeDataBlocked
	return 1 + putVarint(b[1:], f.dataLimit), nil
}

func (f *dataBlockedFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypeDataBlocked {
		return 0, newError(FrameEncodingError, "data_blocked type")
	}
	n := getVarint(b[1:], &f.dataLimit)
	if n == 0 {
		return 0, newError(FrameEncodingError, "data_blocked value")
	}
	return 1 + n, nil
}

// streamDataBlockedFrame (type 0x15) tells the peer we are blocked on a
// per-stream send limit.
type streamDataBlockedFrame struct {
	streamID  uint64
	dataLimit uint64
}

func newStreamDataBlockedFrame(id, limit uint64) *streamDataBlockedFrame {
	return &streamDataBlockedFrame{streamID: id, dataLimit: limit}
}

func (f *streamDataBlockedFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.dataLimit)
}

func (f *streamDataBlockedFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypeStreamDataBlocked
	off := 1
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.dataLimit)
	return off, nil
}

func (f *streamDataBlockedFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypeStreamDataBlocked {
		return 0, newError(FrameEncodingError, "stream_data_blocked type")
	}
	off := 1
	n := getVarint(b[off:], &f.streamID)
	if n == 0 {
		return 0, newError(FrameEncodingError, "stream_data_blocked id")
	}
	off += n
	if n = getVarint(b[off:], &f.dataLimit); n == 0 {
		return 0, newError(FrameEncodingError, "stream_data_blocked value")
	}
	off += n
	return off, nil
}

// streamsBlockedFrame (types 0x16/0x17) tells the peer we are blocked on
// the bidirectional or unidirectional stream-count limit.
type streamsBlockedFrame struct {
	streamLimit uint64
	bidi        bool
}

func newStreamsBlockedFrame(limit uint64, bidi bool) *streamsBlockedFrame {
	return &streamsBlockedFrame{streamLimit: limit, bidi: bidi}
}

func (f *streamsBlockedFrame) typ() byte {
	if f.bidi {
		return frameTypeStreamsBlockedBidi
	}
	return frameTypeStreamsBlockedUni
}

func (f *streamsBlockedFrame) encodedLen() int {
	return 1 + varintLen(f.streamLimit)
}

func (f *streamsBlockedFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	b[0] = f.typ()
	return 1 + putVarint(b[1:], f.streamLimit), nil
}

func (f *streamsBlockedFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || (b[0] != frameTypeStreamsBlockedBidi && b[0] != frameTypeStreamsBlockedUni) {
		return 0, newError(FrameEncodingError, "streams_blocked type")
	}
	f.bidi = b[0] == frameTypeStreamsBlockedBidi
	n := getVarint(b[1:], &f.streamLimit)
	if n == 0 {
		return 0, newError(FrameEncodingError, "streams_blocked value")
	}
	return 1 + n, nil
}
