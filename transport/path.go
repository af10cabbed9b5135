package transport

import "time"

// pathProbeInitialBackoff and pathProbeMaxAttempts implement the
// exponential-backoff PATH_CHALLENGE retry schedule: 100ms, 200ms,
// 400ms, 800ms, 1600ms across 5 attempts, after which an unreachable
// candidate is abandoned (RFC 9000 Section 8.2.4 leaves the schedule to
// the implementation; this mirrors the PTO backoff used elsewhere).
const (
	pathProbeInitialBackoff = 100 * time.Millisecond
	pathProbeMaxAttempts    = 5
)

// pathState tracks one peer address: either the single active path a
// connection is currently sending on, or a candidate address observed
// but not yet proven reachable. Candidates carry their own PATH_CHALLENGE
// bookkeeping. On promotion, srtt records the old path's smoothed RTT;
// the connection's RTT estimate itself is reset by the recovery state.
type pathState struct {
	addr string

	validated bool
	attempts  int
	challenge [8]byte
	sentAt    time.Time
	nextProbe time.Time

	srtt time.Duration // Seeded from recovery.rtt.smoothed at promotion time.
}

// recvFramePathChallenge answers a reachability probe by queuing the
// matching PATH_RESPONSE (RFC 9000 Section 8.2.1): it must carry the
// exact same data and go out on the path the challenge arrived on, which
// here is always the current active path, since send addressing is the
// caller's responsibility.
func (s *Conn) recvFramePathChallenge(b []byte, now time.Time) (int, error) {
	var f pathChallengeFrame
	n, err := f.decode(b)
	if err != nil {
		return 0, err
	}
	s.pendingPathResponse = &f.data
	s.logFrameProcessed(&f, now)
	return n, nil
}

func (s *Conn) sendFramePathResponse() *pathResponseFrame {
	if s.pendingPathResponse == nil {
		return nil
	}
	data := *s.pendingPathResponse
	s.pendingPathResponse = nil
	return newPathResponseFrame(data)
}

// recvFramePathResponse matches an incoming PATH_RESPONSE against every
// candidate path awaiting validation (normally at most one) and promotes
// the first match to the active path (RFC 9000 Section 8.2.3).
func (s *Conn) recvFramePathResponse(b []byte, now time.Time) (int, error) {
	var f pathResponseFrame
	n, err := f.decode(b)
	if err != nil {
		return 0, err
	}
	for addr, cand := range s.candidatePaths {
		if !cand.sentAt.IsZero() && cand.challenge == f.data {
			s.promotePath(addr, now)
			break
		}
	}
	s.logFrameProcessed(&f, now)
	return n, nil
}

// OnPeerAddress reports the source address observed on an inbound
// datagram. The first address seen for a connection seeds its active
// path unconditionally (this is how the handshake's peer address is
// established); any later, different address is treated as an unproven
// migration candidate and gated behind a PATH_CHALLENGE round trip
// before anything about the connection (its destination CID, congestion
// state, or confirmed MTU) is allowed to change (RFC 9000 Section 9).
func (s *Conn) OnPeerAddress(addr string, now time.Time) {
	if s.activePath == nil {
		s.activePath = &pathState{addr: addr, validated: true}
		return
	}
	if addr == s.activePath.addr {
		return
	}
	if s.candidatePaths == nil {
		s.candidatePaths = make(map[string]*pathState)
	}
	cand, ok := s.candidatePaths[addr]
	if !ok {
		cand = &pathState{addr: addr}
		s.candidatePaths[addr] = cand
	}
	s.probeCandidate(cand, now)
}

// probeCandidate arms (or re-arms, on retry) a PATH_CHALLENGE for cand,
// respecting its backoff schedule and attempt ceiling.
func (s *Conn) probeCandidate(cand *pathState, now time.Time) {
	if cand.validated || cand.attempts >= pathProbeMaxAttempts {
		return
	}
	if !cand.nextProbe.IsZero() && now.Before(cand.nextProbe) {
		return
	}
	if err := s.rand(cand.challenge[:]); err != nil {
		return
	}
	cand.attempts++
	cand.sentAt = now
	backoff := pathProbeInitialBackoff << uint(cand.attempts-1)
	if ceiling := pathProbeInitialBackoff << uint(pathProbeMaxAttempts-1); backoff > ceiling {
		backoff = ceiling
	}
	cand.nextProbe = now.Add(backoff)
	challenge := cand.challenge
	s.pendingPathChallenge = &challenge
}

func (s *Conn) sendFramePathChallenge() *pathChallengeFrame {
	if s.pendingPathChallenge == nil {
		return nil
	}
	data := *s.pendingPathChallenge
	s.pendingPathChallenge = nil
	return newPathChallengeFrame(data)
}

// retryPathProbes re-sends PATH_CHALLENGE for any candidate whose backoff
// has elapsed, and gives up on (and discards) any candidate that has
// exhausted pathProbeMaxAttempts without a PATH_RESPONSE. Driven from
// checkTimeout alongside loss-detection's own timer.
func (s *Conn) retryPathProbes(now time.Time) {
	for addr, cand := range s.candidatePaths {
		if cand.validated {
			continue
		}
		if cand.attempts >= pathProbeMaxAttempts {
			delete(s.candidatePaths, addr)
			continue
		}
		s.probeCandidate(cand, now)
	}
}

// promotePath switches the active path to a validated candidate: it
// rotates to a fresh peer-issued destination CID and retires the old
// one, and resets congestion control and MTU discovery, since neither
// property carries over to an unrelated network path (RFC 9000 Section
// 9.4 and Section 9.5).
func (s *Conn) promotePath(addr string, now time.Time) {
	cand := s.candidatePaths[addr]
	if cand == nil {
		return
	}
	delete(s.candidatePaths, addr)
	cand.validated = true
	if s.activePath != nil {
		s.rotateRemoteCID()
	}
	cand.srtt = s.recovery.rtt.smoothed
	s.recovery.resetForNewPath(now)
	s.mtu.reset()
	s.activePath = cand
	s.pendingPathChallenge = nil
}

// hasPendingPathWork reports whether a path-validation frame is queued,
// used by the level scheduler to prioritize path probes over ordinary
// stream data.
func (s *Conn) hasPendingPathWork() bool {
	return s.pendingPathChallenge != nil || s.pendingPathResponse != nil
}

// rotateRemoteCID switches the destination CID used to reach the peer to
// the next one it has issued us, and queues a RETIRE_CONNECTION_ID for
// the one we stop using (RFC 9000 Section 9.5): a peer observing traffic
// continue on a stable CID across a migration could otherwise correlate
// the two paths as the same connection.
func (s *Conn) rotateRemoteCID() bool {
	next, ok := s.peerCIDs.active()
	if !ok {
		return false
	}
	s.peerCIDs.retire(next.sequenceNumber)
	oldSeq := s.dcidSeq
	s.dcid = append(s.dcid[:0], next.cid...)
	s.dcidSeq = next.sequenceNumber
	s.queueRetireConnectionID(oldSeq)
	return true
}
