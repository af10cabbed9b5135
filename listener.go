package quic

import (
	"context"
	"crypto/rand"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/quince-io/quince/metrics"
	"github.com/quince-io/quince/transport"
)

// cidLen is the length of the source connection ID the listener assigns
// when it accepts or initiates a connection, and the destination CID
// length it expects on incoming short header packets. CIDs issued later
// through NEW_CONNECTION_ID are MaxCIDLength bytes.
const cidLen = 16

const readBufferSize = 65536

// cidShardCount bounds the listener's connection table to a fixed number
// of independently-locked buckets, selected by transport.CIDHash, rather
// than a single contended map or a more elaborate consistent-hash
// sharding layer.
const cidShardCount = 256

type cidShard struct {
	mu    sync.Mutex
	conns map[string]*remoteConn
}

type cidTable struct {
	shards [cidShardCount]*cidShard
}

func newCIDTable() *cidTable {
	t := &cidTable{}
	for i := range t.shards {
		t.shards[i] = &cidShard{conns: make(map[string]*remoteConn)}
	}
	return t
}

func (t *cidTable) shardFor(cid []byte) *cidShard {
	return t.shards[transport.CIDHash(cid)%cidShardCount]
}

func (t *cidTable) get(cid []byte) (*remoteConn, bool) {
	sh := t.shardFor(cid)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rc, ok := sh.conns[string(cid)]
	return rc, ok
}

func (t *cidTable) put(cid []byte, rc *remoteConn) {
	sh := t.shardFor(cid)
	sh.mu.Lock()
	sh.conns[string(cid)] = rc
	sh.mu.Unlock()
}

func (t *cidTable) delete(cid []byte) {
	sh := t.shardFor(cid)
	sh.mu.Lock()
	delete(sh.conns, string(cid))
	sh.mu.Unlock()
}

// forEach calls fn for every connection currently registered. fn must
// not mutate the table.
func (t *cidTable) forEach(fn func(*remoteConn)) {
	for _, sh := range t.shards {
		sh.mu.Lock()
		for _, rc := range sh.conns {
			fn(rc)
		}
		sh.mu.Unlock()
	}
}

// listener owns the UDP socket and drives every transport.Conn's I/O and
// timers from a single reader goroutine plus a timeout sweep goroutine,
// matching the teacher's single-threaded-per-connection design: the
// connection state machine itself is never touched concurrently.
type listener struct {
	socket   packetSocket
	config   *Config
	handler  Handler
	isClient bool

	log *logrus.Entry

	tokens *transport.TokenManager
	table  *cidTable

	// onNewConn, if set, is called once a remoteConn is registered,
	// client- or server-initiated, so a qlog logger can be attached
	// before any packet is processed for it.
	onNewConn func(*remoteConn)

	mu        sync.Mutex
	connCount int
}

func newListener(config *Config, handler Handler, isClient bool) *listener {
	l := &listener{
		config:   config,
		handler:  handler,
		isClient: isClient,
		table:    newCIDTable(),
		log:      logrus.WithField("component", "quic"),
	}
	if len(config.TokenSecret) > 0 {
		if tm, err := transport.NewTokenManager(config.TokenSecret); err == nil {
			l.tokens = tm
		} else {
			l.log.WithError(err).Warn("token manager disabled")
		}
	}
	return l
}

func (l *listener) listen(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	if l.config.EnableECN {
		sock, err := newECNSocket(conn)
		if err != nil {
			l.log.WithError(err).Warn("ECN socket unavailable, falling back to plain UDP")
			l.socket = &plainSocket{PacketConn: conn}
		} else {
			l.socket = sock
		}
	} else {
		l.socket = &plainSocket{PacketConn: conn}
	}
	return nil
}

// serve runs the read loop and the idle/timeout sweep until ctx is done
// or the socket is closed, whichever comes first.
func (l *listener) serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.readLoop(ctx) })
	g.Go(func() error { return l.timeoutLoop(ctx) })
	return g.Wait()
}

func (l *listener) close() error {
	return l.socket.Close()
}

func (l *listener) readLoop(ctx context.Context) error {
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, ecn, addr, err := l.socket.ReadPacket(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		metrics.PacketsReceived.Inc()
		metrics.BytesReceived.Add(float64(n))
		// The Conn keeps references into this datagram (header fields,
		// the retry token, CRYPTO bytes queued for the TLS engine) well
		// past this loop iteration, so it cannot reuse buf's backing array.
		b := append([]byte(nil), buf[:n]...)
		l.handleDatagram(b, ecn, addr)
	}
}

func (l *listener) handleDatagram(b []byte, ecn transport.ECN, addr net.Addr) {
	dcid, err := transport.PeekDCID(b, cidLen)
	if err != nil {
		metrics.PacketsDropped.WithLabelValues("unparseable").Inc()
		return
	}
	rc, ok := l.table.get(dcid)
	if !ok {
		if l.isClient {
			metrics.PacketsDropped.WithLabelValues("no_connection").Inc()
			return
		}
		rc, ok = l.acceptInitial(b, dcid, addr)
		if !ok {
			return
		}
	}
	now := time.Now()
	// Report the observed source address to the connection before handing
	// off the datagram: a first-seen address seeds the active path
	// outright, while a change from the established address is treated as
	// a migration candidate and gated behind a PATH_CHALLENGE internally
	// (transport.Conn.OnPeerAddress). We still re-point the socket send
	// address optimistically so replies (including that very challenge)
	// aren't black-holed while validation is pending; rotateRemoteCID,
	// the congestion/MTU reset, and the anti-amplification budget only
	// take effect once the peer's PATH_RESPONSE actually proves the new
	// address can be reached.
	rc.conn.OnPeerAddress(addr.String(), now)
	rc.addr = addr
	rc.lastActive = now
	if _, err := rc.conn.WriteWithECN(b, ecn); err != nil {
		l.log.WithError(err).WithField("trace", rc.trace.String()).Debug("connection error")
	}
	l.flush(rc)
}

// acceptInitial handles a datagram with no matching connection: it must
// be an Initial packet, optionally gated behind a Retry round trip, per
// RFC 9000 Section 8.1.
func (l *listener) acceptInitial(b []byte, dcid []byte, addr net.Addr) (*remoteConn, bool) {
	if !transport.PeekPacketIsInitial(b) || len(b) < transport.MinInitialPacketSize {
		metrics.PacketsDropped.WithLabelValues("unsolicited").Inc()
		return nil, false
	}
	if l.config.MaxConnections > 0 {
		l.mu.Lock()
		full := l.connCount >= l.config.MaxConnections
		l.mu.Unlock()
		if full {
			metrics.PacketsDropped.WithLabelValues("connection_limit").Inc()
			return nil, false
		}
	}
	_, clientSCID, token, err := transport.PeekInitialHeader(b)
	if err != nil {
		metrics.PacketsDropped.WithLabelValues("unparseable").Inc()
		return nil, false
	}

	var odcid []byte
	addrValidated := false
	now := time.Now()
	if len(token) > 0 && l.tokens != nil {
		if vt, err := l.tokens.Open(token, []byte(addr.String()), now); err == nil {
			odcid = vt.ODCID
			addrValidated = true
		}
		// An invalid token is treated the same as no token: re-validate
		// below instead of rejecting the connection outright.
	}
	if odcid == nil {
		if l.config.RequireRetry && l.tokens != nil {
			l.sendRetry(dcid, clientSCID, addr)
			return nil, false
		}
		odcid = dcid
	}

	scid := make([]byte, cidLen)
	if _, err := rand.Read(scid); err != nil {
		return nil, false
	}
	tc := l.config.transportConfig()
	conn, err := transport.Accept(scid, odcid, tc)
	if err != nil {
		l.log.WithError(err).Warn("accept failed")
		return nil, false
	}
	if addrValidated {
		// A successfully opened Retry/NEW_TOKEN token is independent proof
		// the client owns addr, lifting the anti-amplification limit
		// immediately instead of waiting for the first Handshake packet.
		conn.MarkAddressValidated()
	}
	rc := newRemoteConn(conn, scid, addr)
	l.table.put(scid, rc)
	l.mu.Lock()
	l.connCount++
	l.mu.Unlock()
	if l.onNewConn != nil {
		l.onNewConn(rc)
	}
	metrics.ConnectionsTotal.WithLabelValues("server").Inc()
	metrics.ConnectionsActive.Inc()
	rc.queueEvent(transport.Event{Type: EventConnAccept})
	return rc, true
}

// connect starts a client-initiated connection to addr and registers it
// in the table under its own source connection ID.
func (l *listener) connect(addr net.Addr) (*remoteConn, error) {
	scid := make([]byte, cidLen)
	if _, err := rand.Read(scid); err != nil {
		return nil, err
	}
	tc := l.config.transportConfig()
	conn, err := transport.Connect(scid, tc)
	if err != nil {
		return nil, err
	}
	rc := newRemoteConn(conn, scid, addr)
	l.table.put(scid, rc)
	l.mu.Lock()
	l.connCount++
	l.mu.Unlock()
	if l.onNewConn != nil {
		l.onNewConn(rc)
	}
	metrics.ConnectionsTotal.WithLabelValues("client").Inc()
	metrics.ConnectionsActive.Inc()
	rc.queueEvent(transport.Event{Type: EventConnAccept})
	l.flush(rc)
	return rc, nil
}

func (l *listener) sendRetry(dcid, clientSCID []byte, addr net.Addr) {
	serverSCID := make([]byte, cidLen)
	if _, err := rand.Read(serverSCID); err != nil {
		return
	}
	token, err := l.tokens.Mint(transport.TokenSourceRetry, []byte(addr.String()), dcid, time.Now())
	if err != nil {
		return
	}
	pkt, err := transport.BuildRetryPacket(clientSCID, serverSCID, dcid, token)
	if err != nil {
		return
	}
	if err := l.socket.WritePacket(pkt, transport.ECNNotECT, addr); err == nil {
		metrics.RetriesSent.Inc()
		metrics.PacketsSent.Inc()
	}
}

// flush sends up to 16 pending outbound datagrams for rc, mints a NEW_TOKEN
// once its handshake confirms, dispatches its events to the handler, and
// retires it from the table once closed.
func (l *listener) flush(rc *remoteConn) {
	buf := make([]byte, transport.MaxPacketSize)
	wasEstablished := rc.established
	for i := 0; i < 16; i++ {
		n, err := rc.conn.Read(buf)
		if err != nil {
			l.log.WithError(err).WithField("trace", rc.trace.String()).Debug("read for send failed")
			break
		}
		if n == 0 {
			break
		}
		if err := l.socket.WritePacket(buf[:n], transport.ECNNotECT, rc.addr); err != nil {
			metrics.PacketsDropped.WithLabelValues("write_error").Inc()
			break
		}
		metrics.PacketsSent.Inc()
		metrics.BytesSent.Add(float64(n))
	}
	if !wasEstablished && rc.conn.IsEstablished() {
		rc.established = true
		if !l.isClient && l.tokens != nil {
			if tok, err := l.tokens.Mint(transport.TokenSourceNewToken, []byte(rc.addr.String()), nil, time.Now()); err == nil {
				rc.conn.QueueNewToken(tok)
			}
		}
	}

	l.deliver(rc)

	if rc.conn.IsClosed() {
		l.table.delete(rc.scid)
		l.mu.Lock()
		l.connCount--
		l.mu.Unlock()
		metrics.ConnectionsActive.Dec()
		metrics.ConnectionsClosed.WithLabelValues("closed").Inc()
		rc.queueEvent(transport.Event{Type: EventConnClose})
		l.deliver(rc)
	}
}

// deliver merges any pending listener-level lifecycle events ahead of
// this connection's own stream events and makes a single Serve call, so
// a handler sees them in the order they actually happened.
func (l *listener) deliver(rc *remoteConn) {
	if l.handler == nil {
		rc.events = nil
		return
	}
	events := rc.conn.Events(rc.events)
	rc.events = nil
	if len(events) == 0 {
		return
	}
	l.handler.Serve(rc, events)
}

func (l *listener) timeoutLoop(ctx context.Context) error {
	interval := l.config.IdleCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := time.Now()
			// Collect first: flush may delete rc from the table, which
			// must not happen while forEach holds a shard lock.
			var due []*remoteConn
			l.table.forEach(func(rc *remoteConn) {
				if rc.conn.Timeout() == 0 {
					due = append(due, rc)
				}
			})
			for _, rc := range due {
				rc.conn.OnTimeout(now)
				l.flush(rc)
			}
		}
	}
}
