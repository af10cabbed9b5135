package transport

import "time"

// outgoingPacket records what was sent under a given packet number so
// recovery can later credit or discard its frames once the packet is
// acknowledged or declared lost.
type outgoingPacket struct {
	packetNumber uint64
	frames       []frame
	ackEliciting bool
	inFlight     bool
	timeSent     time.Time
	size         uint64
}

func newOutgoingPacket(pn uint64, now time.Time) *outgoingPacket {
	return &outgoingPacket{packetNumber: pn, timeSent: now}
}

// addFrame appends f to the packet and updates ackEliciting/inFlight: every
// frame is ack-eliciting except ACK and PADDING (RFC 9000 Section 13.2),
// and a packet is in flight (counts against the congestion window) under
// the same condition (RFC 9002 Section 2).
func (op *outgoingPacket) addFrame(f frame) {
	op.frames = append(op.frames, f)
	switch f.(type) {
	case *ackFrame, *paddingFrame:
	default:
		op.ackEliciting = true
		op.inFlight = true
	}
}
