package transport

import "time"

// ECN is the two-bit IP-layer Explicit Congestion Notification codepoint
// (RFC 3168), as read off the socket alongside a received datagram.
type ECN uint8

const (
	ECNNotECT ECN = 0
	ECNECT1   ECN = 1
	ECNECT0   ECN = 2
	ECNCE     ECN = 3
)

// RecordECN tallies the IP-layer codepoint the caller observed on the
// datagram carrying a packet in space, so the next ACK sent in that
// space reports it to the peer (RFC 9000 Section 13.4.2). recvPacket
// calls this once per successfully decrypted packet, with the codepoint
// of the datagram currently being processed.
func (s *Conn) RecordECN(space packetSpace, codepoint ECN) {
	ps := &s.packetNumberSpaces[space]
	switch codepoint {
	case ECNECT0:
		ps.ect0Count++
	case ECNECT1:
		ps.ect1Count++
	case ECNCE:
		ps.ceCount++
	}
}

// onPeerCEIncrease reacts to the peer's ACK_ECN reporting more CE-marked
// packets than last time: a congestion signal equivalent to loss (RFC
// 9002 Section 7.2's ECN-aware congestion response), so the same
// multiplicative-decrease path as a detected loss is invoked.
func (s *Conn) onPeerCEIncrease(space packetSpace, newCE uint64, now time.Time) {
	ps := &s.packetNumberSpaces[space]
	if newCE <= ps.lastPeerCE {
		return
	}
	ps.lastPeerCE = newCE
	s.recovery.cc.onPacketsLost(0, false, now)
}
