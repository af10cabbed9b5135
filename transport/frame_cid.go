package transport

// newConnectionIDFrame (type 0x18) supplies a CID the peer may use as our
// destination CID, plus its stateless-reset token.
type newConnectionIDFrame struct {
	sequenceNumber uint64
	retirePriorTo  uint64
	connectionID   []byte
	resetToken     [16]byte
}

func (f *newConnectionIDFrame) encodedLen() int {
	return 1 + varintLen(f.sequenceNumber) + varintLen(f.retirePriorTo) +
		1 + len(f.connectionID) + len(f.resetToken)
}

func (f *newConnectionIDFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypeNewConnectionID
	off := 1
	off += putVarint(b[off:], f.sequenceNumber)
	off += putVarint(b[off:], f.retirePriorTo)
	b[off] = byte(len(f.connectionID))
	off++
	off += copy(b[off:], f.connectionID)
	off += copy(b[off:], f.resetToken[:])
	return off, nil
}

func (f *newConnectionIDFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypeNewConnectionID {
		return 0, newError(FrameEncodingError, "new_connection_id type")
	}
	off := 1
	n := getVarint(b[off:], &f.sequenceNumber)
	if n == 0 {
		return 0, newError(FrameEncodingError, "new_connection_id seq")
	}
	off += n
	if n = getVarint(b[off:], &f.retirePriorTo); n == 0 {
		return 0, newError(FrameEncodingError, "new_connection_id retire_prior_to")
	}
	off += n
	if off >= len(b) {
		return 0, newError(FrameEncodingError, "new_connection_id length")
	}
	cidLen := int(b[off])
	off++
	if cidLen == 0 || cidLen > MaxCIDLength || len(b)-off < cidLen+16 {
		return 0, newError(FrameEncodingError, "new_connection_id cid")
	}
	f.connectionID = append([]byte(nil), b[off:off+cidLen]...)
	off += cidLen
	copy(f.resetToken[:], b[off:off+16])
	off += 16
	return off, nil
}

// retireConnectionIDFrame (type 0x19) tells the peer to stop using a CID we
// issued.
type retireConnectionIDFrame struct {
	sequenceNumber uint64
}

func newRetireConnectionIDFrame(seq uint64) *retireConnectionIDFrame {
	return &retireConnectionIDFrame{sequenceNumber: seq}
}

func (f *retireConnectionIDFrame) encodedLen() int {
	return 1 + varintLen(f.sequenceNumber)
}

func (f *retireConnectionIDFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypeRetireConnectionID
	return 1 + putVarint(b[1:], f.sequenceNumber), nil
}

func (f *retireConnectionIDFrame) decode(b []byte) (int, error) {
	if len(b) == 0 || b[0] != frameTypeRetireConnectionID {
		return 0, newError(FrameEncodingError, "retire_connection_id type")
	}
	n := getVarint(b[1:], &f.sequenceNumber)
	if n == 0 {
		return 0, newError(FrameEncodingError, "retire_connection_id seq")
	}
	return 1 + n, nil
}

// pathChallengeFrame (type 0x1a) probes reachability of a path.
type pathChallengeFrame struct {
	data [8]byte
}

func newPathChallengeFrame(data [8]byte) *pathChallengeFrame {
	return &pathChallengeFrame{data: data}
}

func (f *pathChallengeFrame) encodedLen() int {
	return 1 + 8
}

func (f *pathChallengeFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypePathChallenge
	copy(b[1:9], f.data[:])
	return 9, nil
}

func (f *pathChallengeFrame) decode(b []byte) (int, error) {
	if len(b) < 9 || b[0] != frameTypePathChallenge {
		return 0, newError(FrameEncodingError, "path_challenge")
	}
	copy(f.data[:], b[1:9])
	return 9, nil
}

// pathResponseFrame (type 0x1b) answers a PATH_CHALLENGE.
type pathResponseFrame struct {
	data [8]byte
}

func newPathResponseFrame(data [8]byte) *pathResponseFrame {
	return &pathResponseFrame{data: data}
}

func (f *pathResponseFrame) encodedLen() int {
	return 1 + 8
}

func (f *pathResponseFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errInsufficientSpace
	}
	b[0] = frameTypePathResponse
	copy(b[1:9], f.data[:])
	return 9, nil
}

func (f *pathResponseFrame) decode(b []byte) (int, error) {
	if len(b) < 9 || b[0] != frameTypePathResponse {
		return 0, newError(FrameEncodingError, "path_response")
	}
	copy(f.data[:], b[1:9])
	return 9, nil
}
