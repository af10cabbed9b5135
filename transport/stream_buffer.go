package transport

// byteRange is an inclusive, closed range of stream byte offsets. It
// mirrors pnRange's shape (frame_ack.go) but is kept separate since packet
// numbers and stream offsets are conceptually distinct spaces.
type byteRange struct {
	start, end uint64
}

type byteRangeSet []byteRange

func (s *byteRangeSet) add(start, end uint64) {
	if end < start {
		return
	}
	rs := *s
	i := 0
	for i < len(rs) && rs[i].end+1 < start {
		i++
	}
	j := i
	for j < len(rs) && rs[j].start <= end+1 {
		if rs[j].start < start {
			start = rs[j].start
		}
		if rs[j].end > end {
			end = rs[j].end
		}
		j++
	}
	merged := append([]byteRange{{start: start, end: end}}, rs[j:]...)
	*s = append(rs[:i], merged...)
}

func (s byteRangeSet) contains(offset uint64) bool {
	for _, r := range s {
		if offset >= r.start && offset <= r.end {
			return true
		}
	}
	return false
}

func (s byteRangeSet) empty() bool {
	return len(s) == 0
}

// sendBuffer accumulates outgoing stream (or CRYPTO) bytes and tracks,
// independently, which byte ranges still need to be sent (never sent, or
// sent but later declared lost) versus which have been acknowledged.
type sendBuffer struct {
	data       []byte
	dataOffset uint64 // Absolute stream offset of data[0].

	pending byteRangeSet // Ranges that still need to go out on the wire.
	ackedTo uint64       // Every byte below this offset is acked and may be trimmed.
	acked   byteRangeSet // Out-of-order acked ranges, beyond ackedTo.

	finSize uint64
	finSet  bool
}

func (b *sendBuffer) init() {
	*b = sendBuffer{}
}

// push queues data for sending at the given absolute offset. If offset
// falls at the current end of the buffer, data is appended and marked
// pending. If it falls within already-buffered data, the bytes are assumed
// already stored (this is the lost-frame retransmission path: conn.go
// calls push again with a previously-sent frame's bytes) and only the
// pending marker is restored.
func (b *sendBuffer) push(data []byte, offset uint64, fin bool) error {
	end := offset + uint64(len(data))
	bufEnd := b.dataOffset + uint64(len(b.data))
	switch {
	case offset == bufEnd:
		b.data = append(b.data, data...)
	case offset > bufEnd:
		return newError(InternalError, "sendBuffer: non-contiguous push")
	// offset < bufEnd: bytes already stored, re-queue for retransmission.
	default:
	}
	if len(data) > 0 {
		b.pending.add(offset, end-1)
	}
	if fin {
		b.finSize = end
		b.finSet = true
	}
	return nil
}

// popSend returns the next at-most-max bytes of pending data, in
// ascending offset order, along with their absolute offset. fin is true
// only when this chunk is the final one and reaches finSize.
func (b *sendBuffer) popSend(max int) (span, uint64, bool) {
	if len(b.pending) == 0 || max <= 0 {
		return nil, 0, false
	}
	r := b.pending[0]
	start := r.start
	end := r.end + 1
	if end-start > uint64(max) {
		end = start + uint64(max)
	}
	lo := start - b.dataOffset
	hi := end - b.dataOffset
	chunk := b.data[lo:hi]

	b.pending[0].start = end
	if b.pending[0].start > b.pending[0].end {
		b.pending = b.pending[1:]
	}
	fin := b.finSet && end == b.finSize && len(b.pending) == 0
	return chunk, start, fin
}

// ack records that [offset, offset+length) has been delivered, and
// reclaims any now-fully-acked prefix of the buffer.
func (b *sendBuffer) ack(offset, length uint64) {
	if length == 0 {
		return
	}
	end := offset + length - 1
	if offset <= b.ackedTo {
		if end+1 > b.ackedTo {
			b.ackedTo = end + 1
		}
	} else {
		b.acked.add(offset, end)
	}
	for {
		advanced := false
		for i, r := range b.acked {
			if r.start <= b.ackedTo && r.end+1 > b.ackedTo {
				b.ackedTo = r.end + 1
				b.acked = append(b.acked[:i], b.acked[i+1:]...)
				advanced = true
				break
			}
		}
		if !advanced {
			break
		}
	}
	if b.ackedTo > b.dataOffset {
		trim := b.ackedTo - b.dataOffset
		if trim > uint64(len(b.data)) {
			trim = uint64(len(b.data))
		}
		b.data = b.data[trim:]
		b.dataOffset += trim
	}
}

func (b *sendBuffer) ready() bool {
	return !b.pending.empty()
}

func (b *sendBuffer) complete() bool {
	return b.finSet && b.ackedTo >= b.finSize
}

// recvChunk is one contiguous, reassembled run of received bytes.
type recvChunk struct {
	offset uint64
	data   []byte
}

// recvBuffer reassembles out-of-order stream (or CRYPTO) data into a
// single ordered byte stream.
type recvBuffer struct {
	chunks     []recvChunk
	readOffset uint64

	finSize uint64
	finSet  bool
}

func (b *recvBuffer) init() {
	*b = recvBuffer{}
}

// pushRecv inserts data received at offset into the reassembly buffer.
// Bytes already delivered (below readOffset) are dropped; overlaps with
// already-buffered chunks are trimmed.
func (b *recvBuffer) pushRecv(data []byte, offset uint64, fin bool) error {
	if fin {
		end := offset + uint64(len(data))
		if b.finSet && end != b.finSize {
			return newError(FinalSizeError, "crypto/stream final size changed")
		}
		b.finSize = end
		b.finSet = true
	} else if b.finSet && offset+uint64(len(data)) > b.finSize {
		return newError(FinalSizeError, "data received beyond final size")
	}
	if offset < b.readOffset {
		skip := b.readOffset - offset
		if skip >= uint64(len(data)) {
			return nil
		}
		data = data[skip:]
		offset = b.readOffset
	}
	if len(data) == 0 {
		return nil
	}
	b.insert(recvChunk{offset: offset, data: data})
	return nil
}

func (b *recvBuffer) insert(c recvChunk) {
	i := 0
	for i < len(b.chunks) && b.chunks[i].offset < c.offset {
		i++
	}
	b.chunks = append(b.chunks, recvChunk{})
	copy(b.chunks[i+1:], b.chunks[i:])
	b.chunks[i] = c
	b.merge()
}

// merge coalesces overlapping or adjacent chunks after an insert.
func (b *recvBuffer) merge() {
	out := b.chunks[:0]
	for _, c := range b.chunks {
		if len(out) == 0 {
			out = append(out, c)
			continue
		}
		last := &out[len(out)-1]
		lastEnd := last.offset + uint64(len(last.data))
		switch {
		case c.offset > lastEnd:
			out = append(out, c)
		case c.offset+uint64(len(c.data)) <= lastEnd:
			// Fully covered by the previous chunk, drop it.
		default:
			overlap := lastEnd - c.offset
			last.data = append(last.data, c.data[overlap:]...)
		}
	}
	b.chunks = out
}

// read copies the next contiguous, already-reassembled bytes into p.
func (b *recvBuffer) read(p []byte) (int, error) {
	if len(b.chunks) == 0 || b.chunks[0].offset != b.readOffset {
		if b.finSet && b.readOffset >= b.finSize {
			return 0, nil
		}
		return 0, nil
	}
	c := &b.chunks[0]
	n := copy(p, c.data)
	c.data = c.data[n:]
	c.offset += uint64(n)
	b.readOffset += uint64(n)
	if len(c.data) == 0 {
		b.chunks = b.chunks[1:]
	}
	return n, nil
}

// reset abandons the receive side early (RESET_STREAM). It returns how
// many bytes of connection-level flow-control credit are freed: the
// difference between the announced final size and bytes already counted
// toward flow control.
func (b *recvBuffer) reset(finalSize uint64) (int, error) {
	if b.finSet && finalSize != b.finSize {
		return 0, newError(FinalSizeError, "reset_stream final size changed")
	}
	received := b.readOffset
	for _, c := range b.chunks {
		if end := c.offset + uint64(len(c.data)); end > received {
			received = end
		}
	}
	freed := 0
	if finalSize > received {
		freed = int(finalSize - received)
	}
	b.finSize = finalSize
	b.finSet = true
	b.chunks = nil
	b.readOffset = finalSize
	return freed, nil
}

// cryptoStream carries TLS handshake bytes for one encryption level
// (RFC 9001 Section 4). It is a CRYPTO-frame-only analogue of Stream: no
// stream ID, no FIN, no flow control of its own.
type cryptoStream struct {
	send sendBuffer
	recv recvBuffer
}

func (c *cryptoStream) init() {
	c.send.init()
	c.recv.init()
}

func (c *cryptoStream) pushRecv(data []byte, offset uint64, fin bool) error {
	return c.recv.pushRecv(data, offset, fin)
}

func (c *cryptoStream) popSend(max int) (span, uint64, bool) {
	return c.send.popSend(max)
}
