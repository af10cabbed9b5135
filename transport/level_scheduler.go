package transport

// levelScheduler orders what an outbound datagram should carry whenever
// more than one packet number space has something ready: a cross-level
// pending ACK or retransmission comes first, then an outstanding path
// validation probe, then buffered 0-RTT early data, and only then
// ordinary current-level stream data (RFC 9000 Sections 13.2, 8.2, 4.6.1
// and 2, in that priority order).
type levelScheduler struct{}

var defaultLevelScheduler levelScheduler

// next picks the packet number space the next datagram should use.
func (levelScheduler) next(s *Conn) packetSpace {
	// 1. Cross-level pending ACK or retransmission, in ascending space
	// order: Initial and Handshake gate the TLS handshake's progress, so
	// they are drained before anything Application-level is considered.
	for i := packetSpaceInitial; i < packetSpaceCount; i++ {
		if i == packetSpaceApplication && s.state < stateActive {
			continue
		}
		if s.packetNumberSpaces[i].ready() || len(s.recovery.lost[i]) > 0 {
			return i
		}
	}
	if s.state < stateActive {
		return packetSpaceCount
	}
	// 2. Path validation probe: PATH_CHALLENGE/PATH_RESPONSE ride in
	// Application space but must preempt ordinary stream data so a
	// migrating path gets validated promptly.
	if s.hasPendingPathWork() {
		return packetSpaceApplication
	}
	// 3. Pending 0-RTT early data. Sending early data isn't implemented
	// (hasPendingEarlyData always reports false), but the step stays in
	// the search order so a future sender slots in here without
	// reshuffling the rest of the priority.
	if s.hasPendingEarlyData() {
		return packetSpaceApplication
	}
	// 4. Current level: ordinary flushable stream data.
	if s.streams.hasFlushable() {
		return packetSpaceApplication
	}
	return packetSpaceCount
}
