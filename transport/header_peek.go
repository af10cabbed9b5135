package transport

// PeekDCID extracts the destination connection ID from a datagram's first
// packet without validating or decrypting anything, so a listener can
// route it to the right connection (or decide none exists yet) before a
// Conn is involved at all (RFC 9000 Section 17.2/17.3 header layout).
// Short header packets don't self-describe their CID length, so dcidLen
// (the length this listener assigns its own CIDs) is used for those.
func PeekDCID(b []byte, dcidLen int) ([]byte, error) {
	if len(b) < 1 {
		return nil, errNeedMoreBytes
	}
	if b[0]&0x80 == 0 {
		// Short header: fixed-length DCID immediately follows the first byte.
		if dcidLen < 0 || len(b) < 1+dcidLen {
			return nil, errNeedMoreBytes
		}
		return b[1 : 1+dcidLen], nil
	}
	// Long header: version(4) + DCIL(1) + DCID.
	if len(b) < 6 {
		return nil, errNeedMoreBytes
	}
	dcil := int(b[5])
	if dcil > MaxCIDLength || len(b) < 6+dcil {
		return nil, errNeedMoreBytes
	}
	return b[6 : 6+dcil], nil
}

// PeekLongHeader reports whether b starts a long header packet and, if
// so, its version and first byte (whose type bits are only meaningful
// once version is confirmed supported).
func PeekLongHeader(b []byte) (isLong bool, version uint32, first byte, ok bool) {
	if len(b) < 1 {
		return false, 0, 0, false
	}
	if b[0]&0x80 == 0 {
		return false, 0, b[0], true
	}
	if len(b) < 5 {
		return true, 0, 0, false
	}
	version = getUint32(b[1:5])
	return true, version, b[0], true
}

// PeekPacketIsInitial reports whether the long header packet in b is an
// Initial packet of the supported QUIC version, the only packet type a
// listener accepts from an address it has no connection state for.
func PeekPacketIsInitial(b []byte) bool {
	isLong, version, first, ok := PeekLongHeader(b)
	if !ok || !isLong || version != supportedVersion {
		return false
	}
	return (first>>4)&0x3 == longHeaderTypeInitial
}

// PeekInitialHeader extracts the DCID, SCID and address-validation token
// of the leading Initial packet in b, without decrypting anything, so a
// listener can decide whether to issue a Retry or accept a connection
// before any Conn exists. Callers must first confirm PeekPacketIsInitial.
func PeekInitialHeader(b []byte) (dcid, scid, token []byte, err error) {
	if len(b) < 6 {
		return nil, nil, nil, errNeedMoreBytes
	}
	off := 5
	dcil := int(b[off])
	off++
	if len(b)-off < dcil {
		return nil, nil, nil, errNeedMoreBytes
	}
	dcid = b[off : off+dcil]
	off += dcil
	if off >= len(b) {
		return nil, nil, nil, errNeedMoreBytes
	}
	scil := int(b[off])
	off++
	if len(b)-off < scil {
		return nil, nil, nil, errNeedMoreBytes
	}
	scid = b[off : off+scil]
	off += scil
	var tokenLen uint64
	n := getVarint(b[off:], &tokenLen)
	if n == 0 {
		return nil, nil, nil, errNeedMoreBytes
	}
	off += n
	if uint64(len(b)-off) < tokenLen {
		return nil, nil, nil, errNeedMoreBytes
	}
	token = b[off : off+int(tokenLen)]
	return dcid, scid, token, nil
}
