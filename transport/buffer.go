package transport

// buffer is an arena-backed byte store with independent read and write
// cursors over a single contiguous block. It is the codec's only notion of
// "memory": frame and packet encoders are handed a writable span, decoders
// a readable span, and payloads travel onward as shared read-only spans
// that borrow from the arena rather than copy out of it.
type buffer struct {
	data  []byte
	roff  int // read cursor
	woff  int // write cursor
}

func newBuffer(data []byte) *buffer {
	return &buffer{data: data, woff: len(data)}
}

// newWriteBuffer wraps data for writing from offset 0; written reports how
// much has been produced so far.
func newWriteBuffer(data []byte) *buffer {
	return &buffer{data: data}
}

// writable returns the remaining capacity available for writes.
func (b *buffer) writable() []byte {
	return b.data[b.woff:]
}

// readable returns the unread portion of the buffer.
func (b *buffer) readable() []byte {
	return b.data[b.roff:b.woff]
}

// advanceWrite moves the write cursor forward by n bytes, as if n bytes
// were just written into the span returned by writable.
func (b *buffer) advanceWrite(n int) {
	b.woff += n
}

// advanceRead moves the read cursor forward by n bytes.
func (b *buffer) advanceRead(n int) {
	b.roff += n
}

// write appends p, returning errInsufficientSpace if there is not enough
// capacity left. This never allocates.
func (b *buffer) write(p []byte) error {
	if len(b.writable()) < len(p) {
		return errInsufficientSpace
	}
	n := copy(b.writable(), p)
	b.advanceWrite(n)
	return nil
}

// written returns the bytes produced by write calls so far, as a
// shared read-only span (it aliases b.data; callers must not retain it
// past the next reuse of the underlying array).
func (b *buffer) written() []byte {
	return b.data[:b.woff]
}

// span is a cheap, shareable read-only view into a buffer's backing array.
// It never copies: payloads decoded off the network ride as spans all the
// way into stream reassembly.
type span = []byte

// splitSpan carves off the first n bytes of b as a span and advances the
// read cursor past them. It returns nil, false if fewer than n bytes
// remain.
func (b *buffer) splitSpan(n int) (span, bool) {
	r := b.readable()
	if len(r) < n {
		return nil, false
	}
	s := r[:n:n]
	b.advanceRead(n)
	return s, true
}
