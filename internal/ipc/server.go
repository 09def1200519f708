package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Requests are single-line JSON; a client that stalls past this deadline
// must not hold a session goroutine open.
const connReadTimeout = 2 * time.Second

// Server owns the control socket for one active check-in session.
type Server struct {
	Handler Handler
	Logger  *slog.Logger
}

// Serve accepts unix-socket clients until context cancellation or listener
// close. Each connection carries exactly one request.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	s := Server{Handler: handler}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			s.handleConn(ctx, c)
		}(conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(connReadTimeout))

	req, err := s.readRequest(conn)
	if err != nil {
		s.warn("rejected ipc request", err)
		_ = json.NewEncoder(conn).Encode(Response{OK: false, Error: err.Error()})
		return
	}

	resp := s.Handler.Handle(ctx, req)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.warn("write ipc response failed", err)
	}
}

func (s *Server) readRequest(conn net.Conn) (Request, error) {
	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return Request{}, fmt.Errorf("read request: %w", err)
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	if req.Command == "" {
		return Request{}, errors.New("empty command")
	}
	return req, nil
}

func (s *Server) warn(msg string, err error) {
	if s.Logger == nil {
		return
	}
	s.Logger.Warn(msg, "error", err.Error())
}
