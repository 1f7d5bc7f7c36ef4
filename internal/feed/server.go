// Package feed exposes the rendered captions over a websocket so overlay
// clients (OBS browser sources, companion displays) can mirror the two-line
// display without embedding the pipeline.
//
// Each connected client receives JSON [Update] messages. Line updates are
// sent on every render and every level reading is sent as its own update;
// nothing is coalesced. Slow clients are dropped rather than allowed to stall
// the pipeline.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Update is one feed message. Level is a pointer so that line-only updates
// omit it entirely.
type Update struct {
	Line1 string   `json:"line1,omitempty"`
	Line2 string   `json:"line2,omitempty"`
	Level *float64 `json:"level,omitempty"`
}

// clientQueueDepth bounds the per-client send queue. A client that falls this
// far behind is disconnected.
const clientQueueDepth = 32

// Server broadcasts caption updates to websocket clients.
//
// All methods are safe for concurrent use.
type Server struct {
	addr string

	mu      sync.Mutex
	srv     *http.Server
	cancel  context.CancelFunc
	clients map[chan Update]struct{}

	line1, line2 string
}

// NewServer creates a feed server listening on addr (e.g., ":9876").
func NewServer(addr string) *Server {
	return &Server{
		addr:    addr,
		clients: make(map[chan Update]struct{}),
	}
}

// Start binds the listen address and begins serving.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("feed: listen %q: %w", s.addr, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handle(runCtx, w, r)
	})}

	s.mu.Lock()
	s.srv = srv
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("feed: serve failed", "error", err)
		}
	}()
	slog.Info("caption feed listening", "addr", s.addr)
	return nil
}

// Stop shuts the server down and disconnects all clients.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv, cancel := s.srv, s.cancel
	s.srv, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if srv == nil {
		return nil
	}
	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	return srv.Shutdown(ctx)
}

// SetLines broadcasts a line update and remembers it for newly connecting
// clients.
func (s *Server) SetLines(line1, line2 string) {
	s.mu.Lock()
	s.line1, s.line2 = line1, line2
	s.broadcastLocked(Update{Line1: line1, Line2: line2})
	s.mu.Unlock()
}

// SetLevel broadcasts a level update.
func (s *Server) SetLevel(level float64) {
	s.mu.Lock()
	s.broadcastLocked(Update{Level: &level})
	s.mu.Unlock()
}

// broadcastLocked enqueues u for every client, dropping clients whose queue
// is full. Caller holds s.mu.
func (s *Server) broadcastLocked(u Update) {
	for ch := range s.clients {
		select {
		case ch <- u:
		default:
			delete(s.clients, ch)
			close(ch)
		}
	}
}

// handle upgrades the request and pumps updates until the client disconnects.
func (s *Server) handle(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("feed: accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch := make(chan Update, clientQueueDepth)

	s.mu.Lock()
	s.clients[ch] = struct{}{}
	// Bring the new client up to date with the current display.
	ch <- Update{Line1: s.line1, Line2: s.line2}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if _, ok := s.clients[ch]; ok {
			delete(s.clients, ch)
			close(ch)
		}
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, u)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
