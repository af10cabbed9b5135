package quic

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Server accepts inbound connections on a UDP socket, driving each
// through its own listener-managed transport.Conn.
type Server struct {
	config *Config
	lg     *logger

	mu             sync.Mutex
	l              *listener
	pendingHandler Handler
	cancel         context.CancelFunc
	serveErr       chan error
}

// NewServer returns a Server that will accept connections built from
// config once ListenAndServe is called.
func NewServer(config *Config) *Server {
	return &Server{
		config: config,
		lg:     &logger{level: levelOff},
	}
}

// SetHandler installs the handler invoked for every accepted connection's
// events. Must be called before ListenAndServe.
func (s *Server) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.l != nil {
		s.l.handler = h
	} else {
		s.pendingHandler = h
	}
}

// SetLogger sets the qlog verbosity and destination for every connection
// this server accepts, and the level of its own operational logging.
func (s *Server) SetLogger(level int, w io.Writer) {
	s.lg.level = logLevel(level)
	s.lg.setWriter(w)
	logrus.SetLevel(logrusLevel(s.lg.level))
}

// ListenAndServe binds addr and begins accepting connections in a
// background goroutine.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	l := newListener(s.config, s.pendingHandler, false)
	if err := l.listen(addr); err != nil {
		s.mu.Unlock()
		return err
	}
	l.onNewConn = s.lg.attachLogger
	ctx, cancel := context.WithCancel(context.Background())
	s.l = l
	s.cancel = cancel
	s.serveErr = make(chan error, 1)
	s.mu.Unlock()

	go func() { s.serveErr <- l.serve(ctx) }()
	return nil
}

// Close stops accepting and tears down every active connection.
func (s *Server) Close() error {
	s.mu.Lock()
	l, cancel := s.l, s.cancel
	s.mu.Unlock()
	if l == nil {
		return nil
	}
	cancel()
	err := l.close()
	<-s.serveErr
	return err
}
