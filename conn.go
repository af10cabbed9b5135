package quic

import (
	"net"
	"time"

	"github.com/quince-io/quince/transport"
)

// EventType is shared with transport.EventType so a listener-level
// lifecycle event (connection accepted or closed) can be reported
// through the same transport.Event slice as stream activity, in a
// single ordered callback per connection.
type EventType = transport.EventType

const (
	// EventConnAccept fires once for a new connection, on the server
	// when its first Initial is received and on the client when
	// Connect is called. Offset well past transport's own stream event
	// values so the two enums never collide.
	EventConnAccept EventType = iota + 100
	// EventConnClose fires once a connection has fully drained and its
	// state has been removed from the listener.
	EventConnClose
)

// Conn is the handle an application holds for one QUIC connection: the
// transport state machine plus the addressing and stream access the
// core layer deliberately does not own.
type Conn interface {
	// RemoteAddr is the peer's UDP address as observed on the wire.
	RemoteAddr() net.Addr
	// Stream returns (creating locally if necessary) the stream
	// identified by id.
	Stream(id uint64) (*transport.Stream, error)
	// OpenStream allocates the next locally-initiated stream.
	OpenStream(bidi bool) (*transport.Stream, error)
	// Close starts the closing handshake with the given error.
	Close(app bool, errCode uint64, reason string)
	// TraceID identifies this connection across its lifetime for log
	// correlation.
	TraceID() traceID
}

// Handler processes events for accepted or initiated connections. Serve
// is called from the listener's read goroutine, and from its timeout
// sweep goroutine for connections whose timer has expired;
// implementations must not block.
type Handler interface {
	Serve(c Conn, events []transport.Event)
}

// remoteConn is the listener's bookkeeping record for one connection: the
// transport state machine, its current peer address, and
// the event-translation glue the listener drives it with.
type remoteConn struct {
	conn *transport.Conn
	scid []byte
	addr net.Addr

	trace traceID

	lastActive  time.Time
	established bool

	// events buffers listener-level events (EventConnAccept/Close)
	// queued ahead of the next Serve call for this connection.
	events []transport.Event
}

func newRemoteConn(tc *transport.Conn, scid []byte, addr net.Addr) *remoteConn {
	return &remoteConn{
		conn:       tc,
		scid:       append([]byte(nil), scid...),
		addr:       addr,
		trace:      newTraceID(),
		lastActive: time.Now(),
	}
}

func (c *remoteConn) RemoteAddr() net.Addr { return c.addr }

func (c *remoteConn) Stream(id uint64) (*transport.Stream, error) {
	return c.conn.Stream(id)
}

func (c *remoteConn) OpenStream(bidi bool) (*transport.Stream, error) {
	return c.conn.OpenStream(bidi)
}

func (c *remoteConn) Close(app bool, errCode uint64, reason string) {
	c.conn.Close(app, errCode, reason)
}

func (c *remoteConn) TraceID() traceID { return c.trace }

func (c *remoteConn) queueEvent(e transport.Event) {
	c.events = append(c.events, e)
}
