package transport

import "time"

// rttEstimator tracks latest, smoothed and minimum round-trip time samples
// per RFC 9002 Section 5.
type rttEstimator struct {
	latest   time.Duration
	smoothed time.Duration
	variance time.Duration
	min      time.Duration

	hasSample bool
}

const (
	initialRTT = 333 * time.Millisecond // RFC 9002 Section 6.2.2.
	kGranularity = time.Millisecond
)

// update folds a new sample (the time between sending an ack-eliciting
// packet and receiving the ACK for it) into the estimator. ackDelay is the
// peer-reported delay between receiving the packet and sending the ACK,
// subtracted from the sample before it is used for smoothed/variance
// updates (min_rtt is updated from the raw sample),
// but never below min_rtt (RFC 9002 Section 5.3).
func (r *rttEstimator) update(sample, ackDelay time.Duration) {
	r.latest = sample
	if !r.hasSample {
		r.hasSample = true
		r.min = sample
		r.smoothed = sample
		r.variance = sample / 2
		return
	}
	if sample < r.min {
		r.min = sample
	}
	adjusted := sample
	if adjusted > r.min+ackDelay {
		adjusted -= ackDelay
	}
	// Exponentially weighted moving average, RFC 9002 Section 5.3:
	//   rttvar = 3/4 * rttvar + 1/4 * |smoothed - adjusted|
	//   smoothed = 7/8 * smoothed + 1/8 * adjusted
	diff := r.smoothed - adjusted
	if diff < 0 {
		diff = -diff
	}
	r.variance = (r.variance*3 + diff) / 4
	r.smoothed = (r.smoothed*7 + adjusted) / 8
}

// pto returns the current probe timeout duration (RFC 9002 Section 6.2.1).
func (r *rttEstimator) pto(maxAckDelay time.Duration) time.Duration {
	variance := 4 * r.variance
	if variance < kGranularity {
		variance = kGranularity
	}
	smoothed := r.smoothed
	if !r.hasSample {
		smoothed = initialRTT
	}
	return smoothed + variance + maxAckDelay
}
