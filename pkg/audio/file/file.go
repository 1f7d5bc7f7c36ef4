// Package file provides an [audio.Source] that replays a raw PCM file at
// capture rate. It exists for demos and end-to-end tests where no live
// capture helper is available.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tmkbharathi/LiveCaptions/pkg/audio"
)

const defaultChunkMs = 250

// Source replays a headerless 16 kHz mono S16LE PCM file, delivering one
// chunk per chunk interval and a peak-level reading alongside each chunk.
// When the file is exhausted the source reports a zero level and stops.
type Source struct {
	path    string
	chunkMs int

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	dataCb  func([]byte)
	levelCb func(float64)
}

// Option is a functional option for configuring a Source.
type Option func(*Source)

// WithChunkMs sets the replay chunk duration in milliseconds. Defaults to
// 250 ms (one pipeline frame per chunk).
func WithChunkMs(ms int) Option {
	return func(s *Source) { s.chunkMs = ms }
}

// New creates a Source replaying the PCM file at path.
func New(path string, opts ...Option) *Source {
	s := &Source{path: path, chunkMs: defaultChunkMs}
	for _, o := range opts {
		o(s)
	}
	return s
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

// Start opens the file and begins paced replay on an internal goroutine.
// Returns an error wrapping [audio.ErrSource] when the file cannot be opened.
func (s *Source) Start(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("%w: open %q: %w", audio.ErrSource, s.path, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	dataCb, levelCb := s.dataCb, s.levelCb
	s.mu.Unlock()

	chunkBytes := audio.SampleRate * 2 * s.chunkMs / 1000

	go func() {
		defer close(done)
		defer f.Close()
		defer cancel()

		ticker := time.NewTicker(time.Duration(s.chunkMs) * time.Millisecond)
		defer ticker.Stop()

		buf := make([]byte, chunkBytes)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				n, err := io.ReadFull(f, buf)
				if n > 0 {
					chunk := make([]byte, n)
					copy(chunk, buf[:n])
					if dataCb != nil {
						dataCb(chunk)
					}
					if levelCb != nil {
						levelCb(audio.PeakLevel(chunk))
					}
				}
				if err != nil {
					if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
						return
					}
					if levelCb != nil {
						levelCb(0)
					}
					return
				}
			}
		}
	}()
	return nil
}

// Stop ends replay. Safe to call more than once.
func (s *Source) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)
