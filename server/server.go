/*
 * Musing
 *
 * A single-host music player server.
 */

// Package server implements the TCP accept loop and per-connection
// request loop: one goroutine per connection, decoding frames, routing
// them through a dispatch.Router, and writing back response frames.
// The accept loop itself is adapted from the teacher's Server.Run/serv
// (a SetDeadline poll loop so shutdown can be checked cooperatively),
// generalized to also handle SIGTERM alongside SIGINT.
package server

import (
	"encoding/json"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/alfazet/musing"
	"github.com/alfazet/musing/dispatch"
	"github.com/alfazet/musing/state"
	"github.com/alfazet/musing/transport"
)

// Server is the TCP listener driving musing's request/response loop.
type Server struct {
	router *dispatch.Router
	log    zerolog.Logger

	listener atomic.Pointer[net.TCPListener]
	serving  atomic.Bool
}

// Addr returns the server's listening address, or nil if Run has not
// yet bound a listener. Intended for tests that listen on port 0 and
// need to learn the assigned port.
func (s *Server) Addr() net.Addr {
	l := s.listener.Load()
	if l == nil {
		return nil
	}
	return l.Addr()
}

// New creates a Server that dispatches every connection's requests
// through router.
func New(router *dispatch.Router, log zerolog.Logger) *Server {
	return &Server{router: router, log: log.With().Str("component", "server").Logger()}
}

// Run listens on laddr and serves connections until a SIGINT/SIGTERM is
// received or Shutdown is called. It does not return until the accept
// loop has stopped.
func (s *Server) Run(laddr string) error {
	listener, err := net.Listen("tcp", laddr)
	if err != nil {
		return err
	}
	s.listener.Store(listener.(*net.TCPListener))
	s.serving.Store(true)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		s.Shutdown()
	}()

	s.log.Info().Str("addr", laddr).Msg("listening")

	l := s.listener.Load()
	for s.serving.Load() {
		l.SetDeadline(time.Now().Add(time.Second))
		conn, err := l.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !s.serving.Load() {
				break
			}
			continue
		}
		go s.handleConnection(conn)
	}

	return l.Close()
}

// Shutdown stops the accept loop; in-flight connections are left to run
// to completion.
func (s *Server) Shutdown() {
	s.serving.Store(false)
}

// handleConnection drives one client's request loop end to end: send the
// greeting, then decode/route/respond until a transport-level failure or
// disconnect, per spec.md §4.1/§4.6.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	fc := transport.NewConn(conn)
	log := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()

	if err := fc.SendGreeting(musing.ProductVersion); err != nil {
		log.Debug().Err(err).Msg("failed to send greeting")
		return
	}

	sess := state.NewSession()

	for {
		payload, err := fc.ReadFrame()
		if err != nil {
			log.Debug().Err(err).Msg("connection closed")
			return
		}

		kind, fields, ok := transport.DecodeRequest(payload)
		var resp map[string]any
		if !ok {
			resp = map[string]any{"status": "err", "reason": musing.ErrMalformedRequest.Error()}
		} else {
			resp = s.router.Handle(kind, fields, sess)
		}

		body, err := json.Marshal(resp)
		if err != nil {
			log.Warn().Err(err).Msg("failed to marshal response")
			return
		}
		if err := fc.WriteFrame(body); err != nil {
			log.Debug().Err(err).Msg("failed to write response")
			return
		}
	}
}
