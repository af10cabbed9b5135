package transport

import (
	"time"

	"github.com/cespare/xxhash/v2"
)

// CIDHash returns a 64-bit digest of cid suitable for sharding an
// endpoint's connection table by destination CID, so a listener serving
// many connections does not need to compare raw CID bytes against every
// bucket. Collisions are expected and must be resolved by the caller
// with a direct byte comparison against whatever it stores per bucket.
func CIDHash(cid []byte) uint64 {
	return xxhash.Sum64(cid)
}

// activeConnectionIDLimit bounds how many not-yet-retired CIDs we will
// cache from the peer (RFC 9000 Section 5.1.1): beyond this the peer has
// violated the limit we advertised and the connection is torn down.
const activeConnectionIDLimit = 4

// localCIDSpareMin and localCIDPoolTarget bound our own pool of CIDs
// handed to the peer: whenever fewer than localCIDSpareMin remain
// unused, we top back up to localCIDPoolTarget by issuing fresh CIDs via
// NEW_CONNECTION_ID (RFC 9000 Section 5.1.1).
const (
	localCIDSpareMin   = 3
	localCIDPoolTarget = 8
)

// cidEntry is one connection ID issued by either endpoint, numbered by the
// sequence number carried in its NEW_CONNECTION_ID frame.
type cidEntry struct {
	sequenceNumber uint64
	cid            []byte
	resetToken     [16]byte
}

// cidPool tracks the connection IDs one side has made available to the
// other, in ascending sequence order, plus the retire-prior-to watermark
// below which entries must be abandoned.
type cidPool struct {
	entries       []cidEntry
	retirePriorTo uint64
}

func (p *cidPool) add(e cidEntry) error {
	for _, existing := range p.entries {
		if existing.sequenceNumber == e.sequenceNumber {
			return nil // Duplicate NEW_CONNECTION_ID, ignore.
		}
	}
	if len(p.entries) >= activeConnectionIDLimit {
		return newError(ConnectionIDLimitError, sprint("active connection id limit exceeded"))
	}
	p.entries = append(p.entries, e)
	return nil
}

// retireBelow removes every entry with a sequence number below to and
// returns their sequence numbers, so the caller can send RETIRE_CONNECTION_ID
// for each.
func (p *cidPool) retireBelow(to uint64) []uint64 {
	if to <= p.retirePriorTo {
		return nil
	}
	p.retirePriorTo = to
	var retired []uint64
	kept := p.entries[:0]
	for _, e := range p.entries {
		if e.sequenceNumber < to {
			retired = append(retired, e.sequenceNumber)
			continue
		}
		kept = append(kept, e)
	}
	p.entries = kept
	return retired
}

// retire drops a single entry by sequence number (an explicit
// RETIRE_CONNECTION_ID) and reports whether it existed.
func (p *cidPool) retire(seq uint64) bool {
	for i, e := range p.entries {
		if e.sequenceNumber == seq {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return true
		}
	}
	return false
}

// active returns the lowest-sequence entry still available, used as the
// next destination CID on migration.
func (p *cidPool) active() (cidEntry, bool) {
	if len(p.entries) == 0 {
		return cidEntry{}, false
	}
	best := p.entries[0]
	for _, e := range p.entries[1:] {
		if e.sequenceNumber < best.sequenceNumber {
			best = e
		}
	}
	return best, true
}

// recvFrameNewConnectionID handles a peer-issued CID we may use as a
// destination CID in the future (RFC 9000 Section 19.15).
func (s *Conn) recvFrameNewConnectionID(b []byte, now time.Time) (int, error) {
	var f newConnectionIDFrame
	n, err := f.decode(b)
	if err != nil {
		return 0, err
	}
	if f.retirePriorTo > f.sequenceNumber {
		return 0, newError(FrameEncodingError, "new_connection_id retire_prior_to")
	}
	retired := s.peerCIDs.retireBelow(f.retirePriorTo)
	for _, seq := range retired {
		s.queueRetireConnectionID(seq)
	}
	if err := s.peerCIDs.add(cidEntry{
		sequenceNumber: f.sequenceNumber,
		cid:            f.connectionID,
		resetToken:     f.resetToken,
	}); err != nil {
		return 0, err
	}
	s.logFrameProcessed(&f, now)
	return n, nil
}

// recvFrameRetireConnectionID handles the peer telling us it will no
// longer use one of the CIDs we issued it (RFC 9000 Section 19.16).
func (s *Conn) recvFrameRetireConnectionID(b []byte, now time.Time) (int, error) {
	var f retireConnectionIDFrame
	n, err := f.decode(b)
	if err != nil {
		return 0, err
	}
	s.localCIDs.retire(f.sequenceNumber)
	s.logFrameProcessed(&f, now)
	return n, nil
}

// queueRetireConnectionID records that a RETIRE_CONNECTION_ID frame for seq
// is owed to the peer; sendFrames drains this queue opportunistically.
func (s *Conn) queueRetireConnectionID(seq uint64) {
	s.pendingRetireCIDs = append(s.pendingRetireCIDs, seq)
}

func (s *Conn) sendFrameRetireConnectionID() *retireConnectionIDFrame {
	if len(s.pendingRetireCIDs) == 0 {
		return nil
	}
	seq := s.pendingRetireCIDs[0]
	s.pendingRetireCIDs = s.pendingRetireCIDs[1:]
	return newRetireConnectionIDFrame(seq)
}

// maybeReplenishLocalCIDs tops up our own pool of CIDs offered to the peer
// once it drops below localCIDSpareMin, generating fresh CIDs up to
// localCIDPoolTarget and queuing each as a NEW_CONNECTION_ID. Only done
// once the peer's transport parameters (and active_connection_id_limit)
// are known, so we never hand out more CIDs than it is willing to track.
func (s *Conn) maybeReplenishLocalCIDs() {
	if s.state < stateActive {
		return
	}
	if len(s.localCIDs.entries) >= localCIDSpareMin {
		return
	}
	limit := localCIDPoolTarget
	if n := int(s.peerParams.ActiveConnectionIDLimit); n > 0 && n < limit {
		limit = n
	}
	for len(s.localCIDs.entries) < limit {
		cid := make([]byte, MaxCIDLength)
		if err := s.rand(cid); err != nil {
			return
		}
		var resetToken [16]byte
		if len(s.statelessResetKey) > 0 {
			resetToken = DeriveStatelessResetToken(s.statelessResetKey, cid)
		} else if err := s.rand(resetToken[:]); err != nil {
			return
		}
		e := cidEntry{sequenceNumber: s.localCIDSeq, cid: cid, resetToken: resetToken}
		// The local pool is bounded by limit above, not by
		// activeConnectionIDLimit, which caps peer-issued CIDs.
		s.localCIDs.entries = append(s.localCIDs.entries, e)
		s.localCIDSeq++
		s.pendingNewCIDs = append(s.pendingNewCIDs, e)
	}
}

// sendFrameNewConnectionID drains one queued local CID into a
// NEW_CONNECTION_ID frame; sendFrames calls it opportunistically until
// the queue built by maybeReplenishLocalCIDs is empty.
func (s *Conn) sendFrameNewConnectionID() *newConnectionIDFrame {
	if len(s.pendingNewCIDs) == 0 {
		return nil
	}
	e := s.pendingNewCIDs[0]
	s.pendingNewCIDs = s.pendingNewCIDs[1:]
	return &newConnectionIDFrame{
		sequenceNumber: e.sequenceNumber,
		retirePriorTo:  s.localCIDs.retirePriorTo,
		connectionID:   e.cid,
		resetToken:     e.resetToken,
	}
}
