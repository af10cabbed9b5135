// Package metrics exposes the listener's connection and transport
// counters to Prometheus. It is a free-standing package (rather than
// living in transport or at the module root) so a binary that embeds
// quince as a library can opt out of scraping entirely just by never
// importing it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quince",
		Name:      "connections_active",
		Help:      "Number of QUIC connections the listener tracks, from accept or connect until close.",
	})

	ConnectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quince",
		Name:      "connections_total",
		Help:      "QUIC connections started, labeled by role (client/server).",
	}, []string{"role"})

	ConnectionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quince",
		Name:      "connections_closed_total",
		Help:      "QUIC connections closed, labeled by result; the listener records every close as \"closed\".",
	}, []string{"result"})

	PacketsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quince",
		Name:      "packets_received_total",
		Help:      "Datagrams handed to the transport layer.",
	})

	PacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quince",
		Name:      "packets_dropped_total",
		Help:      "Datagrams dropped before or during transport processing, labeled by reason.",
	}, []string{"reason"})

	PacketsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quince",
		Name:      "packets_sent_total",
		Help:      "Datagrams written to the socket.",
	})

	BytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quince",
		Name:      "bytes_received_total",
		Help:      "UDP payload bytes read from the socket.",
	})

	BytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quince",
		Name:      "bytes_sent_total",
		Help:      "UDP payload bytes written to the socket.",
	})

	RetriesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quince",
		Name:      "retries_sent_total",
		Help:      "Retry packets sent in response to an unvalidated Initial.",
	})

	StatelessResetsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quince",
		Name:      "stateless_resets_sent_total",
		Help:      "Stateless reset datagrams sent for an unrecognized CID.",
	})

	HandshakeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quince",
		Name:      "handshake_duration_seconds",
		Help:      "Wall time from Initial receipt/send to handshake confirmation.",
		Buckets:   prometheus.DefBuckets,
	})
)
