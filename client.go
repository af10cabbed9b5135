package quic

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// Client is a Server that additionally dials outbound connections: QUIC
// has no listen/connect asymmetry at the socket level, a client's UDP
// socket receives exactly like a server's, it simply never accepts an
// unsolicited Initial.
type Client struct {
	config *Config
	lg     *logger

	mu             sync.Mutex
	l              *listener
	pendingHandler Handler
	cancel         context.CancelFunc
	serveErr       chan error
}

// NewClient returns a Client that will dial connections built from
// config once ListenAndServe and Connect are called.
func NewClient(config *Config) *Client {
	return &Client{
		config: config,
		lg:     &logger{level: levelOff},
	}
}

func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.l != nil {
		c.l.handler = h
	} else {
		c.pendingHandler = h
	}
}

func (c *Client) SetLogger(level int, w io.Writer) {
	c.lg.level = logLevel(level)
	c.lg.setWriter(w)
	logrus.SetLevel(logrusLevel(c.lg.level))
}

// ListenAndServe binds a local UDP socket (addr may be ":0" for an
// ephemeral port) and starts its read/timeout loops, without dialing
// anything yet.
func (c *Client) ListenAndServe(addr string) error {
	c.mu.Lock()
	l := newListener(c.config, c.pendingHandler, true)
	if err := l.listen(addr); err != nil {
		c.mu.Unlock()
		return err
	}
	l.onNewConn = c.lg.attachLogger
	ctx, cancel := context.WithCancel(context.Background())
	c.l = l
	c.cancel = cancel
	c.serveErr = make(chan error, 1)
	c.mu.Unlock()

	go func() { c.serveErr <- l.serve(ctx) }()
	return nil
}

// Connect dials addr, sending the first Initial packet synchronously and
// leaving the rest of the handshake to the listener's read loop. The
// Handler receives EventConnAccept for this connection right away, and
// stream events as the handshake and application data progress.
func (c *Client) Connect(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	c.mu.Lock()
	l := c.l
	c.mu.Unlock()
	_, err = l.connect(udpAddr)
	return err
}

// Close stops the client's socket and every connection on it.
func (c *Client) Close() error {
	c.mu.Lock()
	l, cancel := c.l, c.cancel
	c.mu.Unlock()
	if l == nil {
		return nil
	}
	cancel()
	err := l.close()
	<-c.serveErr
	return err
}
