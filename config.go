package quic

import (
	"crypto/tls"
	"time"

	"github.com/quince-io/quince/transport"
)

// Config configures a Client or Server: the transport.Config each
// connection is built from, plus the listener-level policy that sits in
// front of the per-connection state machine (retry requirement, token
// and stateless-reset secrets, idle bookkeeping cadence).
type Config struct {
	// TLS backs every connection's handshake. NewConfig clones and pins
	// it to TLS 1.3, matching transport.NewConfig.
	TLS *tls.Config

	// Version is the QUIC version every connection negotiates.
	Version uint32

	// Params are the transport parameters advertised by every
	// connection accepted or initiated through this Config.
	Params transport.Parameters

	// RequireRetry makes a Server send a Retry packet before creating
	// any connection state, trading one extra round trip for address
	// validation against source-address spoofing (RFC 9000 Section
	// 8.1.2). Recommended whenever the listener is reachable from the
	// open internet.
	RequireRetry bool

	// TokenSecret seeds the Retry/NEW_TOKEN TokenManager. Must be set
	// for RequireRetry or NEW_TOKEN issuance to function; should be
	// stable across restarts of the same deployment.
	TokenSecret []byte

	// StatelessResetKey seeds stateless reset token derivation (RFC
	// 9000 Section 10.3). When nil, no token is advertised in the
	// transport parameters and NEW_CONNECTION_ID tokens are random.
	StatelessResetKey []byte

	// MaxConnections bounds how many connections a listener will admit
	// concurrently; new Initial packets beyond this are dropped. Zero
	// means unlimited.
	MaxConnections int

	// IdleCheckInterval is how often the listener sweeps connections
	// for Conn.Timeout() expiry.
	IdleCheckInterval time.Duration

	// EnableECN reads the IP-layer ECN codepoint of received datagrams
	// so ACKs can report ECN counts (RFC 9000 Section 13.4.2). Outgoing
	// datagrams are always sent Not-ECT. Requires a platform x/net/ipv4
	// or x/net/ipv6 supports.
	EnableECN bool
}

// NewConfig returns a Config with QUIC version 1, default transport
// parameters, tlsConfig pinned to TLS 1.3, and conservative listener
// defaults (no Retry requirement, a 30s idle sweep).
func NewConfig(tlsConfig *tls.Config) *Config {
	tc := transport.NewConfig(tlsConfig)
	return &Config{
		TLS:               tc.TLS,
		Version:           tc.Version,
		Params:            tc.Params,
		IdleCheckInterval: 30 * time.Second,
	}
}

func (c *Config) transportConfig() *transport.Config {
	return &transport.Config{
		Version:           c.Version,
		Params:            c.Params,
		TLS:               c.TLS,
		StatelessResetKey: c.StatelessResetKey,
	}
}
