package transport

import "time"

// mtuProbeSizes are the candidate payload sizes DPLPMTUD climbs through in
// order (RFC 8899-style search, adapted to QUIC's padded-PING probe from
// RFC 9000 Section 14.3): conservative, then the common Ethernet-without-
// fragmentation ceiling, then the protocol maximum.
var mtuProbeSizes = []int{1350, 1420, 1452, MaxPacketSize}

// mtuProbeTimeout bounds how long an unacknowledged probe is allowed to
// stay outstanding before the search gives up on that size; chosen well
// above a typical PTO so a probe isn't mistaken for loss prematurely.
const mtuProbeTimeout = 3 * time.Second

// mtuDiscovery implements upward Path MTU probing: candidate sizes above
// the current confirmed floor are tried one at a time via a padded PING
// packet, and a size is only adopted once a probe packet of that size is
// actually acknowledged by the peer.
type mtuDiscovery struct {
	confirmedSize int // Largest payload size verified to reach the peer; 0 until the first probe succeeds.
	nextIndex     int // Index into mtuProbeSizes of the next candidate to try.

	probing     bool
	probeSize   int
	probePN     uint64
	probeSentAt time.Time
}

func (m *mtuDiscovery) init() {
	*m = mtuDiscovery{}
}

// reset discards all progress, used when a connection migrates to a new
// path whose MTU characteristics cannot be assumed from the old one
// (RFC 9000 Section 9.4).
func (m *mtuDiscovery) reset() {
	*m = mtuDiscovery{}
}

// confirmed returns the largest payload size known to reach the peer, or
// 0 if DPLPMTUD has not yet confirmed anything beyond the protocol
// minimum.
func (m *mtuDiscovery) confirmed() int {
	return m.confirmedSize
}

// next reports the next probe size to attempt, if one is due: nil if a
// probe is already outstanding and hasn't timed out, or if every
// candidate size up to maxAllowed has already been confirmed or ruled
// out.
func (m *mtuDiscovery) next(now time.Time, maxAllowed int) (size int, ok bool) {
	if m.probing {
		if now.Sub(m.probeSentAt) < mtuProbeTimeout {
			return 0, false
		}
		// The probe went unacknowledged for too long: treat this size as
		// unreachable and stop climbing rather than keep retrying it.
		m.probing = false
		m.nextIndex = len(mtuProbeSizes)
		return 0, false
	}
	for m.nextIndex < len(mtuProbeSizes) {
		size = mtuProbeSizes[m.nextIndex]
		if size <= m.confirmedSize || size > maxAllowed {
			m.nextIndex++
			continue
		}
		return size, true
	}
	return 0, false
}

func (m *mtuDiscovery) onProbeSent(pn uint64, size int, now time.Time) {
	m.probing = true
	m.probeSize = size
	m.probePN = pn
	m.probeSentAt = now
}

// onAckRange lets DPLPMTUD notice when an outstanding probe's packet
// number has been acknowledged: that size becomes the new confirmed
// floor and the search advances to the next candidate.
func (m *mtuDiscovery) onAckRange(ranges pnRangeSet) {
	if !m.probing || !ranges.contains(m.probePN) {
		return
	}
	m.confirmedSize = m.probeSize
	m.probing = false
	m.nextIndex++
}

// sendMTUProbe builds and encrypts one Application-space datagram padded
// to size bytes: a PING frame (so it is ack-eliciting) plus padding,
// bypassing the ordinary send path's maxPacketSize ceiling since that
// ceiling is exactly what this probe is trying to extend.
func (s *Conn) sendMTUProbe(b []byte, size int, now time.Time) (int, error) {
	pnSpace := &s.packetNumberSpaces[packetSpaceApplication]
	if !pnSpace.canEncrypt() || size > len(b) {
		return 0, nil
	}
	p := packet{
		typ: packetTypeShort,
		header: packetHeader{
			version: s.version,
			dcid:    s.dcid,
			scid:    s.scid,
		},
		packetNumber: pnSpace.nextPacketNumber,
		payloadLen:   size,
	}
	overhead := pnSpace.sealer.aead.Overhead()
	pktOverhead := p.encodedLen() + overhead - p.payloadLen
	left := size - pktOverhead
	if left <= 1 {
		return 0, nil
	}
	op := newOutgoingPacket(p.packetNumber, now)
	op.addFrame(&pingFrame{})
	left--
	op.addFrame(newPaddingFrame(left))
	p.payloadLen = 1 + left + overhead

	payloadOffset, err := p.encode(b)
	if err != nil {
		return 0, err
	}
	n, err := encodeFrames(b[payloadOffset:], op.frames)
	if err != nil {
		return 0, err
	}
	n += payloadOffset + overhead
	pnSpace.encryptPacket(b[:n], &p)
	op.size = uint64(n)
	s.onPacketSent(op, packetSpaceApplication)
	s.mtu.onProbeSent(p.packetNumber, size, now)
	s.logPacketSent(&p, op.frames, now)
	return n, nil
}
