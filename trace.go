package quic

import "github.com/rs/xid"

// traceID identifies one connection across its logs and qlog events for
// as long as it lives, independent of its (possibly migrating) CIDs and
// remote address. xid packs a timestamp, machine and process identifier,
// and a counter into a sortable 12-byte value, so traces naturally order
// by connection start time without a central allocator.
type traceID = xid.ID

func newTraceID() traceID {
	return xid.New()
}
