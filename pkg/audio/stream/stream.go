// Package stream provides an [audio.Source] fed over a websocket by a
// companion capture helper running in a separate process (or on a separate
// machine). Binary messages carry audio; the negotiated subprotocol selects
// the codec:
//
//   - "pcm"  — raw 16 kHz mono S16LE PCM (default when none is offered).
//   - "opus" — 48 kHz mono Opus packets at 20 ms frame size, decoded with
//     gopus and converted to the pipeline format.
//
// A single client may be connected at a time; a second connection is
// refused with HTTP 409 Conflict before the websocket upgrade.
package stream

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
	"layeh.com/gopus"

	"github.com/tmkbharathi/LiveCaptions/pkg/audio"
)

const (
	opusSampleRate  = 48000
	opusChannels    = 1
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960
)

// Source accepts one websocket client and forwards its audio into the
// pipeline. Implements [audio.Source].
type Source struct {
	addr string

	mu      sync.Mutex
	srv     *http.Server
	cancel  context.CancelFunc
	active  bool
	dataCb  func([]byte)
	levelCb func(float64)
}

// New creates a Source listening on addr (e.g., "127.0.0.1:9877").
func New(addr string) *Source {
	return &Source{addr: addr}
}

// OnAudioData registers cb to receive PCM chunks. Must be called before Start.
func (s *Source) OnAudioData(cb func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataCb = cb
}

// OnLevelChanged registers cb to receive peak levels. Must be called before Start.
func (s *Source) OnLevelChanged(cb func(float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levelCb = cb
}

// Start binds the listen address and begins serving. Returns an error
// wrapping [audio.ErrSource] when the address cannot be bound.
func (s *Source) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w: listen %q: %w", audio.ErrSource, s.addr, err)
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
			slog.Error("audio stream: serve failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down and disconnects any client. Safe to call more
// than once.
func (s *Source) Stop() error {
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

// handle upgrades the request and pumps audio until the client disconnects.
func (s *Source) handle(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		http.Error(w, "capture client already connected", http.StatusConflict)
		return
	}
	s.active = true
	dataCb, levelCb := s.dataCb, s.levelCb
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{"pcm", "opus"},
	})
	if err != nil {
		slog.Warn("audio stream: accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var dec *gopus.Decoder
	if conn.Subprotocol() == "opus" {
		dec, err = gopus.NewDecoder(opusSampleRate, opusChannels)
		if err != nil {
			slog.Error("audio stream: create opus decoder", "error", err)
			conn.Close(websocket.StatusInternalError, "decoder init failed")
			return
		}
	}
	conv := &audio.FormatConverter{Src: audio.Format{SampleRate: opusSampleRate, Channels: opusChannels}}

	slog.Info("audio stream: capture client connected",
		"remote", r.RemoteAddr,
		"codec", conn.Subprotocol(),
	)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Info("audio stream: capture client disconnected", "error", err)
			}
			return
		}
		if typ != websocket.MessageBinary || len(data) == 0 {
			continue
		}

		pcm := data
		if dec != nil {
			samples, err := dec.Decode(data, opusFrameSize, false)
			if err != nil {
				slog.Warn("audio stream: opus decode failed, dropping packet", "error", err)
				continue
			}
			pcm = conv.Convert(int16sToBytes(samples))
		}
		if len(pcm) == 0 {
			continue
		}
		if dataCb != nil {
			dataCb(pcm)
		}
		if levelCb != nil {
			levelCb(audio.PeakLevel(pcm))
		}
	}
}

// int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)
