package transport

import "fmt"

// Wire-level size limits (RFC 9000 Section 14, RFC 9001 Section 5.4).
const (
	MaxCIDLength         = 20
	MinInitialPacketSize = 1200
	MaxPacketSize        = 65527
	minPayloadLength     = 4 // Smallest AEAD sample window needs a minimum protected payload.

	retryIntegrityTagLen = 16
)

// packetSpace identifies one of the three packet-number spaces a
// connection maintains.
type packetSpace int

const (
	packetSpaceInitial packetSpace = iota
	packetSpaceHandshake
	packetSpaceApplication
	packetSpaceCount
)

func (s packetSpace) String() string {
	switch s {
	case packetSpaceInitial:
		return "initial"
	case packetSpaceHandshake:
		return "handshake"
	case packetSpaceApplication:
		return "application"
	default:
		return "unknown"
	}
}

// packetType is the six QUIC packet wire types (RFC 9000 Section 17).
type packetType uint8

const (
	packetTypeInitial packetType = iota
	packetTypeZeroRTT
	packetTypeHandshake
	packetTypeRetry
	packetTypeShort
	packetTypeVersionNegotiation
)

func (t packetType) String() string {
	switch t {
	case packetTypeInitial:
		return "initial"
	case packetTypeZeroRTT:
		return "0rtt"
	case packetTypeHandshake:
		return "handshake"
	case packetTypeRetry:
		return "retry"
	case packetTypeShort:
		return "1rtt"
	case packetTypeVersionNegotiation:
		return "version_negotiation"
	default:
		return "unknown"
	}
}

func (t packetType) isLongHeader() bool {
	return t != packetTypeShort
}

// packetTypeFromSpace returns the packet wire type used to carry data in
// the given packet-number space (Application always uses the short
// header/1-RTT type; there is no long-header "Application" wire type).
func packetTypeFromSpace(space packetSpace) packetType {
	switch space {
	case packetSpaceInitial:
		return packetTypeInitial
	case packetSpaceHandshake:
		return packetTypeHandshake
	default:
		return packetTypeShort
	}
}

func spaceFromPacketType(t packetType) packetSpace {
	switch t {
	case packetTypeInitial:
		return packetSpaceInitial
	case packetTypeHandshake:
		return packetSpaceHandshake
	default:
		return packetSpaceApplication
	}
}

// Long-header type bits (second byte nibble), RFC 9000 Section 17.2.
const (
	longHeaderTypeInitial   = 0x0
	longHeaderTypeZeroRTT   = 0x1
	longHeaderTypeHandshake = 0x2
	longHeaderTypeRetry     = 0x3
)

// supportedVersion is the single QUIC version this core advertises
// (RFC 9000's version 1).
const supportedVersion uint32 = 0x00000001

func versionSupported(v uint32) bool {
	return v == supportedVersion
}

// packetHeader holds the union of long- and short-header fields. Which
// fields are meaningful depends on the owning packet's typ.
type packetHeader struct {
	version uint32
	dcid    []byte
	scid    []byte
	dcil    uint8 // Expected DCID length for short-header packets (we know our own SCID length).
	// Short header only:
	spinBit   bool
	keyPhase  bool
}

// packet is a decoded or to-be-encoded QUIC packet: one header variant plus
// packet-number-space metadata and a payload length/span.
type packet struct {
	typ    packetType
	header packetHeader

	packetNumber    uint64
	packetNumberLen int // Encoded length in bytes, 1-4; 0 until chosen/decoded.

	token             []byte // Initial (from client) or Retry (from server).
	supportedVersions []uint32

	payloadLen int // For encode: budgeted length (incl. AEAD overhead). For decode: remaining bytes after header.
	headerLen  int // Bytes consumed decoding the unprotected header, filled by decodeHeader.
}

// decodeHeader parses the packet's type and header fields (excluding
// header protection removal, which requires key material and happens in
// packetNumberSpace.decryptPacket). It sets p.headerLen to the number of
// bytes consumed so far so the caller can locate the packet-number field.
func (p *packet) decodeHeader(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, newError(FrameEncodingError, "short packet")
	}
	first := b[0]
	if first&0x80 != 0 {
		return p.decodeLongHeader(b)
	}
	return p.decodeShortHeader(b, first)
}

func (p *packet) decodeLongHeader(b []byte) (int, error) {
	if len(b) < 6 {
		return 0, errNeedMoreBytes
	}
	first := b[0]
	version := getUint32(b[1:5])
	off := 5
	if off >= len(b) {
		return 0, errNeedMoreBytes
	}
	dcil := int(b[off])
	off++
	if len(b)-off < dcil {
		return 0, errNeedMoreBytes
	}
	dcid := b[off : off+dcil]
	off += dcil
	if off >= len(b) {
		return 0, errNeedMoreBytes
	}
	scil := int(b[off])
	off++
	if len(b)-off < scil {
		return 0, errNeedMoreBytes
	}
	scid := b[off : off+scil]
	off += scil

	p.header = packetHeader{version: version, dcid: dcid, scid: scid}

	if version == 0 {
		p.typ = packetTypeVersionNegotiation
		p.headerLen = off
		return off, nil
	}
	if !versionSupported(version) {
		return 0, newError(InternalError, fmt.Sprintf("unsupported version 0x%x", version))
	}
	switch (first >> 4) & 0x3 {
	case longHeaderTypeInitial:
		p.typ = packetTypeInitial
		var tokenLen uint64
		n := getVarint(b[off:], &tokenLen)
		if n == 0 {
			return 0, errNeedMoreBytes
		}
		off += n
		if uint64(len(b)-off) < tokenLen {
			return 0, errNeedMoreBytes
		}
		p.token = b[off : off+int(tokenLen)]
		off += int(tokenLen)
	case longHeaderTypeZeroRTT:
		p.typ = packetTypeZeroRTT
	case longHeaderTypeHandshake:
		p.typ = packetTypeHandshake
	case longHeaderTypeRetry:
		p.typ = packetTypeRetry
		if len(b)-off < retryIntegrityTagLen {
			return 0, errNeedMoreBytes
		}
		p.token = b[off : len(b)-retryIntegrityTagLen]
		off = len(b)
		p.headerLen = off
		return off, nil
	}
	var length uint64
	n := getVarint(b[off:], &length)
	if n == 0 {
		return 0, errNeedMoreBytes
	}
	off += n
	if uint64(len(b)-off) < length {
		return 0, errNeedMoreBytes
	}
	p.payloadLen = int(length) // Includes the (still protected) packet number.
	p.headerLen = off
	return off, nil
}

func (p *packet) decodeShortHeader(b []byte, first byte) (int, error) {
	p.typ = packetTypeShort
	off := 1
	dcil := int(p.header.dcil)
	if len(b)-off < dcil {
		return 0, errNeedMoreBytes
	}
	p.header.dcid = b[off : off+dcil]
	off += dcil
	p.header.spinBit = first&0x20 != 0
	p.headerLen = off
	p.payloadLen = len(b) - off
	return off, nil
}

// decodeBody parses trailer fields that follow the common header for
// packet types with no AEAD-protected payload (Version Negotiation,
// Retry). Encrypted types are handled by packetNumberSpace.decryptPacket.
func (p *packet) decodeBody(b []byte) (int, error) {
	switch p.typ {
	case packetTypeVersionNegotiation:
		off := p.headerLen
		p.supportedVersions = p.supportedVersions[:0]
		for off+4 <= len(b) {
			p.supportedVersions = append(p.supportedVersions, getUint32(b[off:off+4]))
			off += 4
		}
		return off - p.headerLen, nil
	case packetTypeRetry:
		return 0, nil // Already captured as p.token in decodeLongHeader.
	default:
		return 0, newError(InternalError, "decodeBody: unexpected packet type")
	}
}

// encodedLen returns the number of header bytes (including the
// packet-number field but not the AEAD tag) this packet will occupy, based
// on p.packetNumberLen which the caller must set first.
func (p *packet) encodedLen() int {
	n := 0
	switch {
	case p.typ.isLongHeader():
		n = 1 + 4 + 1 + len(p.header.dcid) + 1 + len(p.header.scid)
		if p.typ == packetTypeInitial {
			n += varintLen(uint64(len(p.token))) + len(p.token)
		}
		n += varintLen(uint64(p.payloadLen)) // Length field covers PN + AEAD-sealed payload.
	default:
		n = 1 + len(p.header.dcid)
	}
	n += p.packetNumberLen
	return n
}

// encode writes the unprotected header (packet-number bytes included, not
// yet masked) and returns the offset where the sealed payload begins.
func (p *packet) encode(b []byte) (int, error) {
	if p.packetNumberLen == 0 {
		p.packetNumberLen = packetNumberLenFor(p.packetNumber, 0)
	}
	n := p.encodedLen()
	if len(b) < n {
		return 0, errInsufficientSpace
	}
	if p.typ.isLongHeader() {
		return p.encodeLongHeader(b)
	}
	return p.encodeShortHeader(b)
}

func (p *packet) encodeLongHeader(b []byte) (int, error) {
	first := byte(0xc0) | byte(p.packetNumberLen-1)
	switch p.typ {
	case packetTypeInitial:
		first |= longHeaderTypeInitial << 4
	case packetTypeZeroRTT:
		first |= longHeaderTypeZeroRTT << 4
	case packetTypeHandshake:
		first |= longHeaderTypeHandshake << 4
	default:
		return 0, newError(InternalError, "encode: unsupported long-header type")
	}
	b[0] = first
	off := 1
	putUint32(b[off:off+4], p.header.version)
	off += 4
	b[off] = byte(len(p.header.dcid))
	off++
	off += copy(b[off:], p.header.dcid)
	b[off] = byte(len(p.header.scid))
	off++
	off += copy(b[off:], p.header.scid)
	if p.typ == packetTypeInitial {
		off += putVarint(b[off:], uint64(len(p.token)))
		off += copy(b[off:], p.token)
	}
	off += putVarint(b[off:], uint64(p.payloadLen))
	putUintN(b[off:off+p.packetNumberLen], p.packetNumber, p.packetNumberLen)
	off += p.packetNumberLen
	return off, nil
}

func (p *packet) encodeShortHeader(b []byte) (int, error) {
	first := byte(0x40) | byte(p.packetNumberLen-1)
	if p.header.spinBit {
		first |= 0x20
	}
	if p.header.keyPhase {
		first |= 0x04
	}
	b[0] = first
	off := 1
	off += copy(b[off:], p.header.dcid)
	putUintN(b[off:off+p.packetNumberLen], p.packetNumber, p.packetNumberLen)
	off += p.packetNumberLen
	return off, nil
}

// packetNumberLenFor chooses the minimum encoded length (1-4 bytes) that
// unambiguously represents pn given the largest packet number already
// acknowledged in this space (RFC 9000 Section 17.1).
func packetNumberLenFor(pn, largestAcked uint64) int {
	diff := pn
	if pn > largestAcked {
		diff = pn - largestAcked
	}
	switch {
	case diff < 1<<7:
		return 1
	case diff < 1<<15:
		return 2
	case diff < 1<<23:
		return 3
	default:
		return 4
	}
}

func (p *packet) String() string {
	return fmt.Sprintf("%s pn=%d dcid=%x scid=%x", p.typ, p.packetNumber, p.header.dcid, p.header.scid)
}
