package transport

import (
	"crypto/tls"
)

// cryptoBufferSize is the chunk size of each read tlsHandshake makes from
// a crypto stream; doHandshake keeps reading until the stream is empty.
const cryptoBufferSize = 4096

// tlsHandshake drives the TLS 1.3 handshake over the crypto/tls QUIC event
// API (RFC 9001 Section 4), feeding and draining CRYPTO frame bytes through
// the owning connection's per-space crypto streams and installing the
// resulting Handshake/Application keys directly into its packet number
// spaces.
type tlsHandshake struct {
	conn *Conn

	tlsConfig *tls.Config
	quicConn  *tls.QUICConn

	localParams *Parameters
	peer        *Parameters

	writeOffset [packetSpaceCount]uint64
	complete    bool
	writeSpaceVal packetSpace
}

func (h *tlsHandshake) init(conn *Conn, tlsConfig *tls.Config) {
	*h = tlsHandshake{conn: conn, tlsConfig: tlsConfig}
}

// reset discards in-progress handshake state, used after a Retry or
// Version Negotiation forces the client to restart the Initial exchange.
func (h *tlsHandshake) reset() {
	h.quicConn = nil
	h.writeOffset = [packetSpaceCount]uint64{}
	h.complete = false
	h.writeSpaceVal = packetSpaceInitial
}

func (h *tlsHandshake) setTransportParams(p *Parameters) {
	h.localParams = p
}

func (h *tlsHandshake) HandshakeComplete() bool {
	return h.complete
}

func (h *tlsHandshake) peerTransportParams() *Parameters {
	return h.peer
}

func (h *tlsHandshake) writeSpace() packetSpace {
	return h.writeSpaceVal
}

func (h *tlsHandshake) start() error {
	if h.quicConn != nil {
		return nil
	}
	qc := &tls.QUICConfig{TLSConfig: h.tlsConfig}
	if h.conn.isClient {
		h.quicConn = tls.QUICClient(qc)
	} else {
		h.quicConn = tls.QUICServer(qc)
	}
	h.quicConn.SetTransportParameters(h.localParams.marshal())
	return h.quicConn.Start(nil)
}

// doHandshake feeds any newly-received CRYPTO bytes into the TLS state
// machine, drains its output back into the crypto streams, and installs
// any newly available read/write keys. It may be called repeatedly as more
// CRYPTO data arrives; it is a no-op once the handshake is complete and
// quiescent.
func (h *tlsHandshake) doHandshake() error {
	if err := h.start(); err != nil {
		return err
	}
	for space := packetSpaceInitial; space < packetSpaceApplication; space++ {
		level := spaceToLevel(space)
		buf := make([]byte, cryptoBufferSize)
		for {
			n, err := h.conn.packetNumberSpaces[space].cryptoStream.recv.read(buf)
			if n == 0 {
				break
			}
			if err := h.quicConn.HandleData(level, buf[:n]); err != nil {
				return translateTLSError(err)
			}
			if err != nil {
				break
			}
		}
	}
	return h.drainEvents()
}

func (h *tlsHandshake) drainEvents() error {
	for {
		ev := h.quicConn.NextEvent()
		switch ev.Kind {
		case tls.QUICNoEvent:
			return nil
		case tls.QUICSetReadSecret:
			k, err := deriveKeys(ev.Suite, ev.Data)
			if err != nil {
				return err
			}
			h.conn.packetNumberSpaces[levelToSpace(ev.Level)].opener = k
		case tls.QUICSetWriteSecret:
			k, err := deriveKeys(ev.Suite, ev.Data)
			if err != nil {
				return err
			}
			space := levelToSpace(ev.Level)
			h.conn.packetNumberSpaces[space].sealer = k
			if space > h.writeSpaceVal {
				h.writeSpaceVal = space
			}
		case tls.QUICWriteData:
			space := levelToSpace(ev.Level)
			off := h.writeOffset[space]
			if err := h.conn.packetNumberSpaces[space].cryptoStream.send.push(ev.Data, off, false); err != nil {
				return err
			}
			h.writeOffset[space] += uint64(len(ev.Data))
		case tls.QUICTransportParameters:
			p, err := unmarshalParameters(ev.Data)
			if err != nil {
				return err
			}
			h.peer = p
		case tls.QUICTransportParametersRequired:
			h.quicConn.SetTransportParameters(h.localParams.marshal())
		case tls.QUICHandshakeDone:
			h.complete = true
		}
	}
}

func spaceToLevel(space packetSpace) tls.QUICEncryptionLevel {
	switch space {
	case packetSpaceInitial:
		return tls.QUICEncryptionLevelInitial
	case packetSpaceHandshake:
		return tls.QUICEncryptionLevelHandshake
	default:
		return tls.QUICEncryptionLevelApplication
	}
}

func levelToSpace(level tls.QUICEncryptionLevel) packetSpace {
	switch level {
	case tls.QUICEncryptionLevelInitial:
		return packetSpaceInitial
	case tls.QUICEncryptionLevelHandshake:
		return packetSpaceHandshake
	default:
		return packetSpaceApplication
	}
}

// translateTLSError maps a TLS alert surfaced by the handshake into the
// CRYPTO_ERROR range (RFC 9000 Section 20.1: 0x100 + alert code).
func translateTLSError(err error) error {
	if alert, ok := err.(tls.AlertError); ok {
		return newError(cryptoErrorBase+TransportErrorCode(alert), err.Error())
	}
	return newError(cryptoErrorBase, err.Error())
}
