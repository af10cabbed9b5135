package transport

import (
	"container/list"
	"sync"
)

// Session is the opaque state needed to attempt 0-RTT resumption against
// a peer address on a later connection: the TLS session ticket plus a
// summary of the transport parameters the peer advertised last time, so
// a client can bound what it sends as early data to what the peer
// previously allowed (RFC 9001 Section 4.6.1).
type Session struct {
	Ticket                []byte
	TransportParamsSummary Parameters
	EarlyDataLimit        uint64
}

// SessionCache stores at most one Session per peer address, evicting the
// least recently used entry once capacity is reached. Nothing in this
// module calls Put; the caller decides when to store a Session, and 0-RTT
// replay-acceptance policy itself is caller-supplied and out of scope here.
type SessionCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // Front is most recently used.
}

type sessionCacheEntry struct {
	addr    string
	session Session
}

// NewSessionCache returns a cache holding at most capacity sessions.
func NewSessionCache(capacity int) *SessionCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &SessionCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Put stores or replaces the session for addr, per RFC 9001's guidance
// that a new ticket invalidates any earlier one for the same peer.
func (c *SessionCache) Put(addr string, s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[addr]; ok {
		el.Value.(*sessionCacheEntry).session = s
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&sessionCacheEntry{addr: addr, session: s})
	c.entries[addr] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*sessionCacheEntry).addr)
		}
	}
}

// Get returns the cached session for addr, if any, and marks it most
// recently used.
func (c *SessionCache) Get(addr string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[addr]
	if !ok {
		return Session{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*sessionCacheEntry).session, true
}

// Delete removes any cached session for addr, used once a ticket is
// consumed (or rejected) so it cannot be replayed for another 0-RTT
// attempt.
func (c *SessionCache) Delete(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[addr]; ok {
		c.order.Remove(el)
		delete(c.entries, addr)
	}
}
