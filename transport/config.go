package transport

import "crypto/tls"

// Config carries everything a connection needs beyond the local/peer
// connection IDs: the QUIC version to speak, the transport parameters to
// advertise, and the TLS configuration backing the handshake.
type Config struct {
	// Version is the QUIC version this endpoint initiates with.
	Version uint32

	// Params are the transport parameters advertised to the peer.
	Params Parameters

	// TLS configures the underlying TLS 1.3 handshake. NextProtos selects
	// ALPN, and MinVersion/MaxVersion are both pinned to TLS 1.3 by
	// NewConfig since QUIC requires it (RFC 9001 Section 4).
	TLS *tls.Config

	// StatelessResetKey seeds the HMAC used to derive stateless reset
	// tokens for CIDs this endpoint issues (RFC 9000 Section 10.3). When
	// nil, no token is advertised in the transport parameters and CIDs
	// issued by NEW_CONNECTION_ID carry random tokens instead of derived
	// ones.
	StatelessResetKey []byte
}

// NewConfig returns a Config with QUIC version 1, default transport
// parameters, and tlsConfig pinned to TLS 1.3 as RFC 9001 Section 4
// requires.
func NewConfig(tlsConfig *tls.Config) *Config {
	cfg := tlsConfig.Clone()
	cfg.MinVersion = tls.VersionTLS13
	cfg.MaxVersion = tls.VersionTLS13
	return &Config{
		Version: supportedVersion,
		Params:  DefaultParameters(),
		TLS:     cfg,
	}
}
