package transport

import "time"

// packetNumberSpace holds the per-space protocol state described by RFC
// 9000 Section 12.3: an independent packet-number sequence, its current
// read/write keys, and the CRYPTO stream used to carry TLS messages at
// this encryption level.
type packetNumberSpace struct {
	nextPacketNumber uint64

	ackElicited      bool // An ack-eliciting frame was received since the last ACK we sent.
	firstPacketAcked bool

	// recvPacketNeedAck doubles as the duplicate-detection set and the set
	// of ranges still owed to the peer in an ACK frame. Once a range is
	// acknowledged by the peer (recvPacketNeedAck.removeUntil), a later
	// duplicate at or below that point would be mistaken for new; RFC 9000
	// endpoints discard packets that old anyway, so this is harmless.
	recvPacketNeedAck    pnRangeSet
	largestRecvPacketTime time.Time

	cryptoStream cryptoStream

	opener *keys // Read key for this level.
	sealer *keys // Write key for this level.

	// ECN counters accumulate the IP-layer codepoint observed on every
	// packet received in this space (RFC 9000 Section 13.4.2); sent back
	// to the peer in ACK_ECN so it can detect a path that is dropping or
	// remarking ECT-marked traffic.
	ect0Count uint64
	ect1Count uint64
	ceCount   uint64

	// lastPeerCE is the CE count the peer last reported in an ACK_ECN for
	// this space, so onPeerCEIncrease can tell whether a newly reported
	// count is an increase (a fresh congestion signal).
	lastPeerCE uint64
}

func (ps *packetNumberSpace) init() {
	*ps = packetNumberSpace{}
	ps.cryptoStream.init()
}

// reset clears packet-number and key state, keeping the crypto stream
// (used after Retry/Version Negotiation, which restart the Initial space).
func (ps *packetNumberSpace) reset() {
	ps.nextPacketNumber = 0
	ps.ackElicited = false
	ps.firstPacketAcked = false
	ps.recvPacketNeedAck = nil
	ps.largestRecvPacketTime = time.Time{}
}

// drop discards key material once a space is no longer needed.
func (ps *packetNumberSpace) drop() {
	ps.opener = nil
	ps.sealer = nil
}

func (ps *packetNumberSpace) canDecrypt() bool { return ps.opener != nil }
func (ps *packetNumberSpace) canEncrypt() bool { return ps.sealer != nil }

// ready reports whether this space has anything worth sending: a pending
// ACK or buffered CRYPTO data.
func (ps *packetNumberSpace) ready() bool {
	if !ps.canEncrypt() {
		return false
	}
	return ps.ackElicited || ps.cryptoStream.send.ready()
}

func (ps *packetNumberSpace) isPacketReceived(pn uint64) bool {
	return ps.recvPacketNeedAck.contains(pn)
}

func (ps *packetNumberSpace) onPacketReceived(pn uint64, now time.Time) {
	prevLargest, hadAny := ps.recvPacketNeedAck.largest()
	wasLargest := !hadAny || pn > prevLargest
	ps.recvPacketNeedAck.add(pn)
	if wasLargest {
		ps.largestRecvPacketTime = now
	}
}

// decryptPacket removes header protection and AEAD-decrypts the packet
// starting at b[0], filling in p.packetNumber and p.packetNumberLen. It
// returns the decrypted payload (frame bytes, tag stripped) and the total
// number of bytes this packet occupied in b (header + packet number +
// ciphertext + tag), so the caller can advance past it in a coalesced
// datagram.
func (ps *packetNumberSpace) decryptPacket(b []byte, p *packet) ([]byte, int, error) {
	if ps.opener == nil {
		return nil, 0, newError(InternalError, "no read key installed")
	}
	pnOffset := p.headerLen
	totalLen := p.headerLen + p.payloadLen
	if totalLen > len(b) {
		return nil, 0, errNeedMoreBytes
	}
	sampleOffset := pnOffset + 4
	if sampleOffset+16 > totalLen {
		return nil, 0, newError(ProtocolViolation, "packet too short for header protection sample")
	}
	mask := ps.opener.hp.mask(b[sampleOffset : sampleOffset+16])

	if p.typ.isLongHeader() {
		b[0] ^= mask[0] & 0x0f
	} else {
		b[0] ^= mask[0] & 0x1f
	}
	pnLen := int(b[0]&0x03) + 1
	for i := 0; i < pnLen; i++ {
		b[pnOffset+i] ^= mask[1+i]
	}
	truncated := getUintN(b[pnOffset:pnOffset+pnLen], pnLen)
	largest, _ := ps.recvPacketNeedAck.largest()
	pn := decodePacketNumber(largest, truncated, pnLen)
	p.packetNumber = pn
	p.packetNumberLen = pnLen

	ciphertextStart := pnOffset + pnLen
	header := b[:ciphertextStart]
	ciphertext := b[ciphertextStart:totalLen]
	nonce := ps.opener.nonceFor(pn)
	payload, err := ps.opener.aead.Open(ciphertext[:0], nonce, ciphertext, header)
	if err != nil {
		return nil, 0, newError(ProtocolViolation, "aead open failed")
	}
	return payload, totalLen, nil
}

// encryptPacket AEAD-seals the frame bytes already written at b[n:] (where
// n is the unprotected header length, packet number included) and applies
// header protection. b must be exactly as long as the final packet: header
// + plaintext frames + AEAD tag room.
func (ps *packetNumberSpace) encryptPacket(b []byte, p *packet) error {
	if ps.sealer == nil {
		return newError(InternalError, "no write key installed")
	}
	headerLen := p.encodedLen()
	pnOffset := headerLen - p.packetNumberLen

	overhead := ps.sealer.aead.Overhead()
	plainLen := len(b) - headerLen - overhead
	if plainLen < 0 {
		return newError(InternalError, "buffer too small to seal packet")
	}
	header := b[:pnOffset]
	plaintext := b[headerLen : headerLen+plainLen]
	nonce := ps.sealer.nonceFor(p.packetNumber)
	sealed := ps.sealer.aead.Seal(plaintext[:0], nonce, plaintext, header)
	_ = sealed // Same backing array as plaintext; length now plainLen+overhead.

	sampleOffset := pnOffset + 4
	mask := ps.sealer.hp.mask(b[sampleOffset : sampleOffset+16])
	if p.typ.isLongHeader() {
		b[0] ^= mask[0] & 0x0f
	} else {
		b[0] ^= mask[0] & 0x1f
	}
	for i := 0; i < p.packetNumberLen; i++ {
		b[pnOffset+i] ^= mask[1+i]
	}
	return nil
}

// decodePacketNumber reconstructs the full packet number from its
// truncated wire encoding given the largest packet number received so far
// in this space (RFC 9000 Appendix A).
func decodePacketNumber(largest, truncated uint64, pnLen int) uint64 {
	expected := largest + 1
	win := uint64(1) << (8 * pnLen)
	half := win / 2
	candidate := (expected &^ (win - 1)) | truncated
	switch {
	case candidate <= expected-half && candidate < (uint64(1)<<62)-win:
		return candidate + win
	case candidate > expected+half && candidate >= win:
		return candidate - win
	default:
		return candidate
	}
}
