// Package server drives the per-connection request/response loop
// against a shared store.Store and the TCP accept loop that spawns it,
// speaking the GET/SET-only memcached binary protocol subset.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/armandparker/cachesrv/internal/store"
	"github.com/armandparker/cachesrv/internal/wire"
)

// Server owns one Store and accepts connections, spawning a handler
// goroutine bound to that shared Store for each.
type Server struct {
	Store *store.Store
	Log   *zap.Logger
	Stats Stats

	mu       sync.Mutex
	listener net.Listener
}

// New returns a Server backed by st, logging through log.
func New(st *store.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Store: st, Log: log}
}

// Serve listens on addr and accepts connections until ctx is canceled
// or Accept fails. It blocks until the listener is closed.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.Log.Info("server listening", zap.String("addr", addr))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				wg.Wait()
				return nil
			}
			s.Log.Warn("accept error", zap.Error(err))
			return fmt.Errorf("accept on %s: %w", addr, err)
		}

		s.Stats.recordConnection()
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// handleConnection drives one client's Idle->ReadingHeader->
// ReadingBody->Dispatching->Writing->Idle loop until EndOfStream,
// FramingError, or an internal error, any of which close the
// connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	peer := conn.RemoteAddr().String()
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		req, err := wire.Decode(reader)
		if err != nil {
			if errors.Is(err, wire.ErrEndOfStream) {
				s.Log.Debug("connection closed by peer", zap.String("peer", peer))
				return
			}
			var fe *wire.FramingError
			if errors.As(err, &fe) {
				s.Log.Info("framing error, closing connection", zap.String("peer", peer), zap.Error(fe))
				return
			}
			s.Log.Error("unexpected read error, closing connection", zap.String("peer", peer), zap.Error(err))
			return
		}

		s.Log.Debug("decoded request", zap.String("peer", peer), zap.String("message", req.GoString()))

		if req.Magic != wire.MagicRequest {
			s.Log.Info("received a response on the server side, closing connection", zap.String("peer", peer))
			return
		}
		if req.CAS != 0 {
			s.Log.Debug("ignoring cas attribute in request", zap.String("peer", peer), zap.Uint64("cas", req.CAS))
		}

		s.Stats.recordRead(int(req.BodyLen()) + 24)
		switch req.Opcode {
		case wire.OpGet:
			s.Stats.recordGet()
		case wire.OpSet:
			s.Stats.recordSet()
		}

		resp := dispatch(s.Store, req)

		if resp.StatusOrVBucket != wire.StatusOK {
			s.Log.Debug("error response", zap.String("peer", peer), zap.Uint16("status", resp.StatusOrVBucket))
		}
		s.Log.Debug("encoded response", zap.String("peer", peer), zap.String("message", resp.GoString()))

		if err := wire.Encode(writer, resp); err != nil {
			s.Log.Info("write error, closing connection", zap.String("peer", peer), zap.Error(err))
			return
		}
		s.Stats.recordWritten(int(resp.BodyLen()) + 24)
		if err := writer.Flush(); err != nil {
			if !errors.Is(err, io.ErrClosedPipe) {
				s.Log.Info("flush error, closing connection", zap.String("peer", peer), zap.Error(err))
			}
			return
		}
	}
}
