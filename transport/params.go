package transport

import "time"

// Transport parameter identifiers, RFC 9000 Section 18.2.
const (
	paramOriginalDestinationCID         uint64 = 0x00
	paramMaxIdleTimeout                 uint64 = 0x01
	paramStatelessResetToken            uint64 = 0x02
	paramMaxUDPPayloadSize              uint64 = 0x03
	paramInitialMaxData                 uint64 = 0x04
	paramInitialMaxStreamDataBidiLocal  uint64 = 0x05
	paramInitialMaxStreamDataBidiRemote uint64 = 0x06
	paramInitialMaxStreamDataUni        uint64 = 0x07
	paramInitialMaxStreamsBidi          uint64 = 0x08
	paramInitialMaxStreamsUni           uint64 = 0x09
	paramAckDelayExponent               uint64 = 0x0a
	paramMaxAckDelay                    uint64 = 0x0b
	paramDisableActiveMigration         uint64 = 0x0c
	paramActiveConnectionIDLimit        uint64 = 0x0e
	paramInitialSourceCID               uint64 = 0x0f
	paramRetrySourceCID                 uint64 = 0x10
)

// Parameters holds the QUIC transport parameters exchanged during the
// handshake (RFC 9000 Section 18). Durations are already expanded from
// their wire units (milliseconds) into time.Duration.
type Parameters struct {
	OriginalDestinationCID []byte
	InitialSourceCID       []byte
	RetrySourceCID         []byte
	StatelessResetToken    []byte

	MaxIdleTimeout   time.Duration
	MaxAckDelay      time.Duration
	AckDelayExponent uint64

	MaxUDPPayloadSize uint64

	InitialMaxData                 uint64
	InitialMaxStreamDataBidiLocal  uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni        uint64
	InitialMaxStreamsBidi          uint64
	InitialMaxStreamsUni           uint64

	ActiveConnectionIDLimit uint64
	DisableActiveMigration  bool
}

// DefaultParameters returns the transport parameters this implementation
// advertises absent any caller overrides.
func DefaultParameters() Parameters {
	return Parameters{
		MaxIdleTimeout:                 30 * time.Second,
		MaxAckDelay:                    25 * time.Millisecond,
		AckDelayExponent:               3,
		MaxUDPPayloadSize:              1452,
		InitialMaxData:                 1 << 20,
		InitialMaxStreamDataBidiLocal:  1 << 18,
		InitialMaxStreamDataBidiRemote: 1 << 18,
		InitialMaxStreamDataUni:        1 << 18,
		InitialMaxStreamsBidi:          100,
		InitialMaxStreamsUni:           100,
		ActiveConnectionIDLimit:        4,
	}
}

// appendVarint is the append-style counterpart to putVarint, used when the
// destination length isn't known up front (transport parameter encoding).
func appendVarint(b []byte, v uint64) []byte {
	n := varintLen(v)
	off := len(b)
	b = append(b, make([]byte, n)...)
	putVarint(b[off:], v)
	return b
}

// marshal encodes p as a sequence of (Transport Parameter ID, Length, Value)
// tuples for embedding in the TLS quic_transport_parameters extension.
func (p *Parameters) marshal() []byte {
	var b []byte
	putBytesParam := func(id uint64, v []byte) {
		if v == nil {
			return
		}
		b = appendVarint(b, id)
		b = appendVarint(b, uint64(len(v)))
		b = append(b, v...)
	}
	putVarintParam := func(id, v uint64) {
		b = appendVarint(b, id)
		b = appendVarint(b, uint64(varintLen(v)))
		b = appendVarint(b, v)
	}
	putFlagParam := func(id uint64, set bool) {
		if !set {
			return
		}
		b = appendVarint(b, id)
		b = appendVarint(b, 0)
	}

	putBytesParam(paramOriginalDestinationCID, p.OriginalDestinationCID)
	putBytesParam(paramInitialSourceCID, p.InitialSourceCID)
	putBytesParam(paramRetrySourceCID, p.RetrySourceCID)
	putBytesParam(paramStatelessResetToken, p.StatelessResetToken)
	putVarintParam(paramMaxIdleTimeout, uint64(p.MaxIdleTimeout/time.Millisecond))
	putVarintParam(paramMaxAckDelay, uint64(p.MaxAckDelay/time.Millisecond))
	putVarintParam(paramAckDelayExponent, p.AckDelayExponent)
	putVarintParam(paramMaxUDPPayloadSize, p.MaxUDPPayloadSize)
	putVarintParam(paramInitialMaxData, p.InitialMaxData)
	putVarintParam(paramInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal)
	putVarintParam(paramInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote)
	putVarintParam(paramInitialMaxStreamDataUni, p.InitialMaxStreamDataUni)
	putVarintParam(paramInitialMaxStreamsBidi, p.InitialMaxStreamsBidi)
	putVarintParam(paramInitialMaxStreamsUni, p.InitialMaxStreamsUni)
	putVarintParam(paramActiveConnectionIDLimit, p.ActiveConnectionIDLimit)
	putFlagParam(paramDisableActiveMigration, p.DisableActiveMigration)
	return b
}

// unmarshalParameters decodes a quic_transport_parameters extension body.
// Unknown parameter IDs are skipped (RFC 9000 Section 18.1).
func unmarshalParameters(b []byte) (*Parameters, error) {
	p := &Parameters{}
	for len(b) > 0 {
		var id uint64
		n := getVarint(b, &id)
		if n == 0 {
			return nil, newError(TransportParameterError, "malformed parameter id")
		}
		b = b[n:]
		var length uint64
		n = getVarint(b, &length)
		if n == 0 {
			return nil, newError(TransportParameterError, "malformed parameter length")
		}
		b = b[n:]
		if uint64(len(b)) < length {
			return nil, newError(TransportParameterError, "truncated parameter value")
		}
		v := b[:length]
		b = b[length:]
		switch id {
		case paramOriginalDestinationCID:
			p.OriginalDestinationCID = append([]byte(nil), v...)
		case paramInitialSourceCID:
			p.InitialSourceCID = append([]byte(nil), v...)
		case paramRetrySourceCID:
			p.RetrySourceCID = append([]byte(nil), v...)
		case paramStatelessResetToken:
			p.StatelessResetToken = append([]byte(nil), v...)
		case paramMaxIdleTimeout:
			n, err := decodeVarintParam(v)
			if err != nil {
				return nil, err
			}
			p.MaxIdleTimeout = time.Duration(n) * time.Millisecond
		case paramMaxAckDelay:
			n, err := decodeVarintParam(v)
			if err != nil {
				return nil, err
			}
			p.MaxAckDelay = time.Duration(n) * time.Millisecond
		case paramAckDelayExponent:
			n, err := decodeVarintParam(v)
			if err != nil {
				return nil, err
			}
			p.AckDelayExponent = n
		case paramMaxUDPPayloadSize:
			n, err := decodeVarintParam(v)
			if err != nil {
				return nil, err
			}
			p.MaxUDPPayloadSize = n
		case paramInitialMaxData:
			n, err := decodeVarintParam(v)
			if err != nil {
				return nil, err
			}
			p.InitialMaxData = n
		case paramInitialMaxStreamDataBidiLocal:
			n, err := decodeVarintParam(v)
			if err != nil {
				return nil, err
			}
			p.InitialMaxStreamDataBidiLocal = n
		case paramInitialMaxStreamDataBidiRemote:
			n, err := decodeVarintParam(v)
			if err != nil {
				return nil, err
			}
			p.InitialMaxStreamDataBidiRemote = n
		case paramInitialMaxStreamDataUni:
			n, err := decodeVarintParam(v)
			if err != nil {
				return nil, err
			}
			p.InitialMaxStreamDataUni = n
		case paramInitialMaxStreamsBidi:
			n, err := decodeVarintParam(v)
			if err != nil {
				return nil, err
			}
			p.InitialMaxStreamsBidi = n
		case paramInitialMaxStreamsUni:
			n, err := decodeVarintParam(v)
			if err != nil {
				return nil, err
			}
			p.InitialMaxStreamsUni = n
		case paramActiveConnectionIDLimit:
			n, err := decodeVarintParam(v)
			if err != nil {
				return nil, err
			}
			p.ActiveConnectionIDLimit = n
		case paramDisableActiveMigration:
			p.DisableActiveMigration = true
		}
	}
	if p.AckDelayExponent == 0 {
		p.AckDelayExponent = 3
	}
	return p, nil
}

func decodeVarintParam(v []byte) (uint64, error) {
	var n uint64
	sz := getVarint(v, &n)
	if sz == 0 || sz != len(v) {
		return 0, newError(TransportParameterError, "malformed varint parameter")
	}
	return n, nil
}
