package transport

// streamMap owns every stream a connection has created, plus the
// stream-count limits from RFC 9000 Section 4.6.
type streamMap struct {
	streams map[uint64]*Stream

	ids streamIDGenerator

	localMaxStreamsBidi uint64 // We advertised this many bidi streams to the peer.
	localMaxStreamsUni  uint64
	peerMaxStreamsBidi  uint64 // Peer advertised this many to us.
	peerMaxStreamsUni   uint64

	openedBidi uint64 // Peer-initiated bidi streams created so far.
	openedUni  uint64
}

func (m *streamMap) init(maxStreamsBidi, maxStreamsUni uint64, isClient bool) {
	*m = streamMap{
		streams:             make(map[uint64]*Stream),
		localMaxStreamsBidi: maxStreamsBidi,
		localMaxStreamsUni:  maxStreamsUni,
	}
	m.ids.init(isClient)
}

func (m *streamMap) get(id uint64) *Stream {
	return m.streams[id]
}

// create allocates a new stream with the given id. local is whether this
// connection is the one that opened it; the appropriate stream-count limit
// (what we told the peer, or what the peer told us) is enforced depending
// on which side initiated it.
func (m *streamMap) create(id uint64, local, bidi bool) (*Stream, error) {
	if local {
		limit := m.peerMaxStreamsUni
		if bidi {
			limit = m.peerMaxStreamsBidi
		}
		if streamSequence(id, bidi) >= limit {
			return nil, newError(StreamLimitError, sprint("stream limit exceeded: ", id))
		}
	} else {
		limit := m.localMaxStreamsUni
		if bidi {
			limit = m.localMaxStreamsBidi
		}
		if streamSequence(id, bidi) >= limit {
			return nil, newError(StreamLimitError, sprint("stream limit exceeded: ", id))
		}
	}
	st := &Stream{}
	st.init(id, bidi)
	m.streams[id] = st
	return st, nil
}

// streamSequence returns the zero-based ordinal of id within its
// (initiator, directionality) numbering space: ids in one space advance by
// 4 (RFC 9000 Section 2.1).
func streamSequence(id uint64, bidi bool) uint64 {
	return id / 4
}

func (m *streamMap) setPeerMaxStreamsBidi(n uint64) {
	if n > m.peerMaxStreamsBidi {
		m.peerMaxStreamsBidi = n
	}
}

func (m *streamMap) setPeerMaxStreamsUni(n uint64) {
	if n > m.peerMaxStreamsUni {
		m.peerMaxStreamsUni = n
	}
}

// open allocates the next locally-initiated stream of the requested
// directionality.
func (m *streamMap) open(bidi bool) (*Stream, error) {
	id := m.ids.next(bidi)
	return m.create(id, true, bidi)
}

func (m *streamMap) hasFlushable() bool {
	for _, st := range m.streams {
		if st.send.ready() {
			return true
		}
	}
	return false
}
