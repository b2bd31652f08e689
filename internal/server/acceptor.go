// Package server implements the TCP acceptor and per-connection
// dispatcher for the backup protocol: one connection per client, one
// request processed at a time per connection (the wire format has no
// request ID to multiplex on), sequential reply writes.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/filevault/backupd/internal/filestore"
	"github.com/filevault/backupd/internal/logger"
	"github.com/filevault/backupd/internal/metrics"
	"github.com/filevault/backupd/internal/session"
)

// Config controls the acceptor's listening behavior and the resource
// ceilings the dispatcher enforces.
type Config struct {
	// Port is the TCP port to listen on. 0 lets the OS pick one (tests
	// use this to avoid port collisions).
	Port int

	// FilesDir is where decrypted file contents are written.
	FilesDir string

	// MaxFileSize bounds the ciphertext size the dispatcher accepts in
	// a single SendFile request, before attempting to decrypt it.
	MaxFileSize int64

	// ShutdownTimeout bounds how long Serve waits for in-flight
	// dispatchers to finish once its context is cancelled.
	ShutdownTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.FilesDir == "" {
		c.FilesDir = "server_files"
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 64 << 20
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Server owns the listener, the session registry, the file store, and
// the metrics sink shared by every dispatched connection.
type Server struct {
	config   Config
	registry *session.Registry
	store    *filestore.Store
	sink     metrics.Sink

	listenerMu sync.RWMutex
	listener   net.Listener

	activeConns sync.WaitGroup
	connCount   atomic.Int32

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New builds a Server. sink may be nil, in which case metrics.NopSink
// is used so the dispatcher never has to nil-check.
func New(cfg Config, sink metrics.Sink) *Server {
	cfg.applyDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Server{
		config:   cfg,
		registry: session.NewRegistry(),
		store:    filestore.New(cfg.FilesDir),
		sink:     sink,
		shutdown: make(chan struct{}),
	}
}

// Registry exposes the session registry, for the admin /debug/sessions
// endpoint.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Serve binds the listener and accepts connections until ctx is
// cancelled, spawning one dispatcher goroutine per accepted connection.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("server: listen on port %d: %w", s.config.Port, err)
	}
	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()

	logger.Info("backup server listening", "port", s.listener.Addr().(*net.TCPAddr).Port)

	go func() {
		<-ctx.Done()
		s.initiateShutdown()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("accept error", logger.Err(err))
				continue
			}
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)
		s.sink.RecordConnection()

		d := &dispatcher{
			conn:     conn,
			registry: s.registry,
			store:    s.store,
			sink:     s.sink,
			maxFile:  s.config.MaxFileSize,
		}
		go func() {
			defer func() {
				s.activeConns.Done()
				s.connCount.Add(-1)
			}()
			d.run(ctx)
		}()
	}
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		s.listenerMu.RLock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.listenerMu.RUnlock()
	})
}

func (s *Server) gracefulShutdown() error {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		return fmt.Errorf("server: shutdown timeout exceeded with %d connections still active", remaining)
	}
}

// Addr returns the listener's bound address. Only valid after Serve has
// started; used by tests that bind to port 0.
func (s *Server) Addr() net.Addr {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
