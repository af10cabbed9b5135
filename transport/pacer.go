package transport

import (
	"time"

	"golang.org/x/time/rate"
)

// pacer spreads a congestion window's worth of packets across a round
// trip instead of bursting them all at once, which is gentler on shared
// queues than firing the whole window back-to-back. The send rate is
// re-derived from the current congestion window and smoothed RTT each
// time the caller asks, so it tracks both congestion events and RTT
// changes without any separate feedback loop.
type pacer struct {
	limiter *rate.Limiter
}

// minPacingRate is the lowest rate (in bytes per second) setRate
// configures, so a tiny window or a long RTT never yields a zero rate.
const minPacingRate = rate.Limit(1)

func newPacer() *pacer {
	return &pacer{limiter: rate.NewLimiter(rate.Inf, maxDatagramSize*2)}
}

// setRate reconfigures the token bucket from the current congestion
// window and smoothed RTT (RFC 9002 Section 7.7 suggests pacing at
// roughly window/rtt): bytesPerSecond = window / rtt, burst sized to let
// a handful of datagrams through immediately so a single ACK's worth of
// newly opened window doesn't stall behind the limiter's own warm-up.
func (p *pacer) setRate(window int, rtt time.Duration) {
	if rtt <= 0 {
		p.limiter.SetLimit(rate.Inf)
		return
	}
	bytesPerSecond := rate.Limit(float64(window) / rtt.Seconds())
	if bytesPerSecond < minPacingRate {
		bytesPerSecond = minPacingRate
	}
	p.limiter.SetLimit(bytesPerSecond)
	burst := window
	if burst < maxDatagramSize*2 {
		burst = maxDatagramSize * 2
	}
	p.limiter.SetBurst(burst)
}

// allow reports whether a datagram of size n may be sent now without
// blocking; the caller is expected to retry on its next timer tick
// rather than wait synchronously, since the connection is driven by a
// single-threaded step loop.
func (p *pacer) allow(n int) bool {
	return p.limiter.AllowN(time.Now(), n)
}
