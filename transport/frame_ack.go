package transport

// pnRange is an inclusive, closed range of packet numbers.
type pnRange struct {
	start, end uint64
}

// pnRangeSet is a sorted, merged set of packet numbers kept as disjoint
// ascending ranges, separated by at least one missing number. It backs both
// "packets we still owe an ACK for" (recv side) and "packets newly
// acknowledged by an inbound ACK frame" (send side).
type pnRangeSet []pnRange

func (s *pnRangeSet) add(pn uint64) {
	rs := *s
	for i := range rs {
		r := &rs[i]
		switch {
		case pn >= r.start && pn <= r.end:
			return
		case pn+1 == r.start:
			r.start = pn
			if i > 0 && rs[i-1].end+1 == r.start {
				rs[i-1].end = r.end
				*s = append(rs[:i], rs[i+1:]...)
			}
			return
		case r.end+1 == pn:
			r.end = pn
			if i+1 < len(rs) && rs[i+1].start == r.end+1 {
				r.end = rs[i+1].end
				*s = append(rs[:i+1], rs[i+2:]...)
			}
			return
		case pn < r.start:
			rs = append(rs, pnRange{})
			copy(rs[i+1:], rs[i:])
			rs[i] = pnRange{start: pn, end: pn}
			*s = rs
			return
		}
	}
	*s = append(rs, pnRange{start: pn, end: pn})
}

func (s pnRangeSet) contains(pn uint64) bool {
	for _, r := range s {
		if pn >= r.start && pn <= r.end {
			return true
		}
	}
	return false
}

func (s pnRangeSet) largest() (uint64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1].end, true
}

// removeUntil drops every range (or partial range) at or below pn: used
// once we know the peer has been told about those packet numbers and we no
// longer need to carry them in a future ACK.
func (s *pnRangeSet) removeUntil(pn uint64) {
	rs := *s
	i := 0
	for i < len(rs) && rs[i].end <= pn {
		i++
	}
	if i < len(rs) && rs[i].start <= pn {
		rs[i].start = pn + 1
	}
	*s = rs[i:]
}

func (s pnRangeSet) empty() bool {
	return len(s) == 0
}

// ackRangeItem is one (Gap, ACK Range Length) pair following the first ACK
// range, per RFC 9000 Section 19.3.
type ackRangeItem struct {
	gap, length uint64
}

// ackFrame is ACK or ACK_ECN (types 0x02/0x03).
type ackFrame struct {
	largestAck    uint64
	ackDelay      uint64
	firstAckRange uint64
	ranges        []ackRangeItem
	ecn           bool
	ect0, ect1    uint64
	ecnCE         uint64
}

// newAckFrame builds an ackFrame describing ranges, most recent packet
// first, scaled ackDelay already in the wire's microsecond-exponent units.
func newAckFrame(ackDelay uint64, ranges pnRangeSet) *ackFrame {
	if len(ranges) == 0 {
		return nil
	}
	last := ranges[len(ranges)-1]
	f := &ackFrame{
		largestAck:    last.end,
		ackDelay:      ackDelay,
		firstAckRange: last.end - last.start,
	}
	smallest := last.start
	for i := len(ranges) - 2; i >= 0; i-- {
		r := ranges[i]
		gap := smallest - r.end - 2
		length := r.end - r.start
		f.ranges = append(f.ranges, ackRangeItem{gap: gap, length: length})
		smallest = r.start
	}
	return f
}

// toRangeSet reconstructs the acknowledged packet-number ranges described
// by the frame, ascending. It returns nil if the frame's fields cannot
// represent a valid set (caller treats this as FRAME_ENCODING_ERROR).
func (f *ackFrame) toRangeSet() pnRangeSet {
	if f.largestAck < f.firstAckRange {
		return nil
	}
	smallest := f.largestAck - f.firstAckRange
	rs := pnRangeSet{{start: smallest, end: f.largestAck}}
	for _, r := range f.ranges {
		if smallest < r.gap+2 {
			return nil
		}
		largest := smallest - r.gap - 2
		if largest < r.length {
			return nil
		}
		next := largest - r.length
		rs = append(pnRangeSet{{start: next, end: largest}}, rs...)
		smallest = next
	}
	return rs
}

func (f *ackFrame) encodedLen() int {
	n := varintLen(f.typ())
	n += varintLen(f.largestAck)
	n += varintLen(f.ackDelay)
	n += varintLen(uint64(len(f.ranges)))
	n += varintLen(f.firstAckRange)
	for _, r := range f.ranges {
		n += varintLen(r.gap) + varintLen(r.length)
	}
	if f.ecn {
		n += varintLen(f.ect0) + varintLen(f.ect1) + varintLen(f.ecnCE)
	}
	return n
}

func (f *ackFrame) typ() uint64 {
	if f.ecn {
		return frameTypeAckECN
	}
	return frameTypeAck
}

func (f *ackFrame) encode(b []byte) (int, error) {
	n := f.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	off := 0
	off += putVarint(b[off:], f.typ())
	off += putVarint(b[off:], f.largestAck)
	off += putVarint(b[off:], f.ackDelay)
	off += putVarint(b[off:], uint64(len(f.ranges)))
	off += putVarint(b[off:], f.firstAckRange)
	for _, r := range f.ranges {
		off += putVarint(b[off:], r.gap)
		off += putVarint(b[off:], r.length)
	}
	if f.ecn {
		off += putVarint(b[off:], f.ect0)
		off += putVarint(b[off:], f.ect1)
		off += putVarint(b[off:], f.ecnCE)
	}
	return off, nil
}

func (f *ackFrame) decode(b []byte) (int, error) {
	off := 0
	var typ uint64
	n := getVarint(b[off:], &typ)
	if n == 0 || (typ != frameTypeAck && typ != frameTypeAckECN) {
		return 0, newError(FrameEncodingError, "ack type")
	}
	off += n
	f.ecn = typ == frameTypeAckECN
	if n = getVarint(b[off:], &f.largestAck); n == 0 {
		return 0, newError(FrameEncodingError, "ack largest")
	}
	off += n
	if n = getVarint(b[off:], &f.ackDelay); n == 0 {
		return 0, newError(FrameEncodingError, "ack delay")
	}
	off += n
	var count uint64
	if n = getVarint(b[off:], &count); n == 0 {
		return 0, newError(FrameEncodingError, "ack range count")
	}
	off += n
	if n = getVarint(b[off:], &f.firstAckRange); n == 0 {
		return 0, newError(FrameEncodingError, "ack first range")
	}
	off += n
	f.ranges = f.ranges[:0]
	for i := uint64(0); i < count; i++ {
		var r ackRangeItem
		if n = getVarint(b[off:], &r.gap); n == 0 {
			return 0, newError(FrameEncodingError, "ack gap")
		}
		off += n
		if n = getVarint(b[off:], &r.length); n == 0 {
			return 0, newError(FrameEncodingError, "ack range length")
		}
		off += n
		f.ranges = append(f.ranges, r)
	}
	if f.ecn {
		if n = getVarint(b[off:], &f.ect0); n == 0 {
			return 0, newError(FrameEncodingError, "ack ect0")
		}
		off += n
		if n = getVarint(b[off:], &f.ect1); n == 0 {
			return 0, newError(FrameEncodingError, "ack ect1")
		}
		off += n
		if n = getVarint(b[off:], &f.ecnCE); n == 0 {
			return 0, newError(FrameEncodingError, "ack ce")
		}
		off += n
	}
	return off, nil
}

func (f *ackFrame) String() string {
	return sprint("largest=", f.largestAck, " delay=", f.ackDelay, " first_range=", f.firstAckRange, " ranges=", len(f.ranges))
}
