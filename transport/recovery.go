package transport

import "time"

// packetThreshold and timeThreshold implement the loss detection thresholds
// of RFC 9002 Section 6.1: a packet is deemed lost once a later packet has
// been acknowledged and either enough packets (packetThreshold) or enough
// time (timeThreshold, relative to RTT) has elapsed since it was sent.
const (
	packetThreshold      = 3
	timeThresholdNum      = 9
	timeThresholdDen      = 8
	persistentCongestionThreshold = 3 // multiple of PTO, RFC 9002 Section 7.6.
)

// lossRecovery implements the loss detection and recovery state machine of
// RFC 9002: one outstanding-packet ledger and one RTT estimate shared across
// packet number spaces, congestion control delegated to cc.
type lossRecovery struct {
	sentPackets [packetSpaceCount]map[uint64]*outgoingPacket
	inFlightCount [packetSpaceCount]int

	acked [packetSpaceCount][]frame
	lost  [packetSpaceCount][]frame

	largestAcked    [packetSpaceCount]uint64
	hasLargestAcked [packetSpaceCount]bool

	lastAckElicitingSent [packetSpaceCount]time.Time
	hasAckEliciting      [packetSpaceCount]bool

	rtt      rttEstimator
	cc       congestionController
	probes   int
	ptoCount int

	maxAckDelay         time.Duration
	lossDetectionTimer  time.Time
	lossTimeSpace       [packetSpaceCount]time.Time

	bytesInFlight int
	pacer         *pacer
}

// canSend reports whether the congestion window has room for another
// ack-eliciting packet of size n, and whether the pacer is currently
// letting packets through. Loss probes (r.probes > 0) bypass both, per
// RFC 9002 Section 7.5.
func (r *lossRecovery) canSend(n int) bool {
	if r.probes > 0 {
		return true
	}
	if !r.cc.canSend(r.bytesInFlight) {
		return false
	}
	return r.pacer.allow(n)
}

func (r *lossRecovery) init(now time.Time) {
	*r = lossRecovery{
		cc:          newNewReno(),
		maxAckDelay: 25 * time.Millisecond,
		pacer:       newPacer(),
	}
	for i := range r.sentPackets {
		r.sentPackets[i] = make(map[uint64]*outgoingPacket)
	}
}

// resetForNewPath discards the congestion window and RTT estimate on
// migration to a new network path: neither carries over, since a new
// path's capacity and latency are unrelated to the old one's (RFC 9000
// Section 9.4). In-flight bookkeeping for packets already sent on the
// old path is left alone; they are credited or lost against it as usual.
func (r *lossRecovery) resetForNewPath(now time.Time) {
	r.cc = newNewReno()
	r.rtt = rttEstimator{}
	r.pacer = newPacer()
	r.ptoCount = 0
	r.probes = 0
}

func (r *lossRecovery) onPacketSent(op *outgoingPacket, space packetSpace) {
	r.sentPackets[space][op.packetNumber] = op
	if op.ackEliciting {
		r.lastAckElicitingSent[space] = op.timeSent
		r.hasAckEliciting[space] = true
	}
	if op.inFlight {
		r.inFlightCount[space]++
		r.bytesInFlight += int(op.size)
		r.cc.onPacketSent(int(op.size), op.timeSent)
	}
	r.setLossDetectionTimer(op.timeSent)
}

func (r *lossRecovery) onAckReceived(ranges pnRangeSet, ackDelay time.Duration, space packetSpace, now time.Time) {
	largest, ok := ranges.largest()
	if !ok {
		return
	}
	if !r.hasLargestAcked[space] || largest > r.largestAcked[space] {
		r.largestAcked[space] = largest
		r.hasLargestAcked[space] = true
	}

	sawProgress := false
	var sampleFrom *outgoingPacket
	for pn, op := range r.sentPackets[space] {
		if !ranges.contains(pn) {
			continue
		}
		delete(r.sentPackets[space], pn)
		if op.inFlight {
			r.inFlightCount[space]--
			r.bytesInFlight -= int(op.size)
			r.cc.onPacketsAcked(int(op.size), largest, now)
		}
		r.acked[space] = append(r.acked[space], op.frames...)
		sawProgress = true
		if pn == largest && op.ackEliciting {
			sampleFrom = op
		}
	}
	if sampleFrom != nil {
		sample := now.Sub(sampleFrom.timeSent)
		if sample > 0 {
			r.rtt.update(sample, ackDelay)
		}
	}
	if sawProgress {
		r.ptoCount = 0
	}

	r.detectLostPackets(space, now)
	r.setLossDetectionTimer(now)
	r.pacer.setRate(r.cc.congestionWindow(), r.rtt.smoothed)
}

// detectLostPackets moves every sent-but-unacked packet that is either
// packetThreshold packets or timeThreshold duration behind the largest
// acknowledged packet into the lost queue (RFC 9002 Section 6.1).
func (r *lossRecovery) detectLostPackets(space packetSpace, now time.Time) {
	if !r.hasLargestAcked[space] {
		return
	}
	largest := r.largestAcked[space]
	lossDelay := r.lossDelay()
	r.lossTimeSpace[space] = time.Time{}

	var persistentCongestion bool
	lostBytes := 0
	var earliestUnacked, latestLost time.Time
	lostAny := false

	for pn, op := range r.sentPackets[space] {
		if pn > largest {
			continue
		}
		lostByCount := largest >= packetThreshold && pn <= largest-packetThreshold
		lostByTime := !op.timeSent.IsZero() && now.Sub(op.timeSent) > lossDelay
		if !lostByCount && !lostByTime {
			deadline := op.timeSent.Add(lossDelay)
			if r.lossTimeSpace[space].IsZero() || deadline.Before(r.lossTimeSpace[space]) {
				r.lossTimeSpace[space] = deadline
			}
			continue
		}
		delete(r.sentPackets[space], pn)
		if op.inFlight {
			r.inFlightCount[space]--
			r.bytesInFlight -= int(op.size)
			lostBytes += int(op.size)
		}
		r.lost[space] = append(r.lost[space], op.frames...)
		lostAny = true
		if earliestUnacked.IsZero() || op.timeSent.Before(earliestUnacked) {
			earliestUnacked = op.timeSent
		}
		if op.timeSent.After(latestLost) {
			latestLost = op.timeSent
		}
	}
	if !lostAny {
		return
	}
	if !earliestUnacked.IsZero() && latestLost.Sub(earliestUnacked) > r.rtt.pto(r.maxAckDelay)*persistentCongestionThreshold {
		persistentCongestion = true
	}
	r.cc.onPacketsLost(lostBytes, persistentCongestion, now)
}

// lossDelay returns the time-threshold window (RFC 9002 Section 6.1.2).
func (r *lossRecovery) lossDelay() time.Duration {
	sample := r.rtt.latest
	if r.rtt.smoothed > sample {
		sample = r.rtt.smoothed
	}
	delay := sample * timeThresholdNum / timeThresholdDen
	if delay < kGranularity {
		delay = kGranularity
	}
	return delay
}

func (r *lossRecovery) drainAcked(space packetSpace, fn func(frame)) {
	for _, f := range r.acked[space] {
		fn(f)
	}
	r.acked[space] = r.acked[space][:0]
}

func (r *lossRecovery) drainLost(space packetSpace, fn func(frame)) {
	for _, f := range r.lost[space] {
		fn(f)
	}
	r.lost[space] = r.lost[space][:0]
}

// dropUnackedData discards every in-flight packet recorded for space
// without treating its contents as lost: used when an entire packet number
// space is retired (Initial once Handshake keys are installed, and so on).
func (r *lossRecovery) dropUnackedData(space packetSpace) {
	for _, op := range r.sentPackets[space] {
		if op.inFlight {
			r.bytesInFlight -= int(op.size)
			r.cc.onPacketsDiscarded(int(op.size))
		}
	}
	r.sentPackets[space] = make(map[uint64]*outgoingPacket)
	r.acked[space] = nil
	r.lost[space] = nil
	r.inFlightCount[space] = 0
	r.hasAckEliciting[space] = false
	r.lossTimeSpace[space] = time.Time{}
}

// setLossDetectionTimer recomputes when the connection should next check
// for loss or send a PTO probe (RFC 9002 Section 6.2.1).
func (r *lossRecovery) setLossDetectionTimer(now time.Time) {
	earliestLoss := time.Time{}
	for space := packetSpaceInitial; space < packetSpaceCount; space++ {
		t := r.lossTimeSpace[space]
		if t.IsZero() {
			continue
		}
		if earliestLoss.IsZero() || t.Before(earliestLoss) {
			earliestLoss = t
		}
	}
	if !earliestLoss.IsZero() {
		r.lossDetectionTimer = earliestLoss
		return
	}

	anyInFlight := false
	var last time.Time
	for space := packetSpaceInitial; space < packetSpaceCount; space++ {
		if r.inFlightCount[space] == 0 {
			continue
		}
		anyInFlight = true
		if r.hasAckEliciting[space] && r.lastAckElicitingSent[space].After(last) {
			last = r.lastAckElicitingSent[space]
		}
	}
	if !anyInFlight {
		r.lossDetectionTimer = time.Time{}
		return
	}
	pto := r.probeTimeout()
	r.lossDetectionTimer = last.Add(pto)
}

func (r *lossRecovery) onLossDetectionTimeout(now time.Time) {
	lossSpace, hasLoss := packetSpaceCount, false
	for space := packetSpaceInitial; space < packetSpaceCount; space++ {
		if !r.lossTimeSpace[space].IsZero() && !now.Before(r.lossTimeSpace[space]) {
			lossSpace, hasLoss = space, true
			break
		}
	}
	if hasLoss {
		r.detectLostPackets(lossSpace, now)
		r.setLossDetectionTimer(now)
		return
	}
	// No known loss time: the timer fired as a PTO. RFC 9002 Section 6.2.4
	// sends up to two probe packets and backs off exponentially.
	r.ptoCount++
	r.probes = 2
	r.setLossDetectionTimer(now)
}

// probeTimeout returns the current PTO duration, doubling with each
// consecutive expiry per RFC 9002 Section 6.2.1.
func (r *lossRecovery) probeTimeout() time.Duration {
	pto := r.rtt.pto(r.maxAckDelay)
	return pto << uint(r.ptoCount)
}
