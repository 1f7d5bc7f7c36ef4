// Package resilience provides automatic failover between STT engines.
//
// A typical deployment pairs the in-process whisper.cpp engine with a remote
// whisper-server: when the local engine starts failing (exhausted VRAM, a
// corrupt context, a wedged native library), captioning degrades to the
// remote engine instead of going dark, and periodically probes the primary so
// it can recover.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tmkbharathi/LiveCaptions/pkg/stt"
)

const (
	// defaultTripAfter is the number of consecutive failures before an
	// engine is bypassed.
	defaultTripAfter = 3

	// defaultRetryAfter is how long a bypassed engine rests before the next
	// probe call is allowed through.
	defaultRetryAfter = 30 * time.Second
)

// ErrAllEnginesFailed is returned when every engine in the chain failed or is
// resting after repeated failures.
var ErrAllEnginesFailed = errors.New("all stt engines failed")

// engineState tracks one engine's recent health.
type engineState struct {
	name    string
	engine  stt.Engine
	fails   int
	downAt  time.Time
	resting bool
}

// EngineFallback implements [stt.Engine] over an ordered engine chain. Calls
// go to the first healthy engine; an engine that fails tripAfter times in a
// row is bypassed for retryAfter, then probed again.
//
// All methods are safe for concurrent use, though the pipeline's worker
// serialises Transcribe calls anyway.
type EngineFallback struct {
	mu         sync.Mutex
	chain      []*engineState
	tripAfter  int
	retryAfter time.Duration
}

// Ensure EngineFallback implements stt.Engine at compile time.
var _ stt.Engine = (*EngineFallback)(nil)

// FallbackOption is a functional option for configuring an [EngineFallback].
type FallbackOption func(*EngineFallback)

// WithTripAfter sets the consecutive-failure count that bypasses an engine.
// Default: 3.
func WithTripAfter(n int) FallbackOption {
	return func(f *EngineFallback) {
		if n > 0 {
			f.tripAfter = n
		}
	}
}

// WithRetryAfter sets the rest period before a bypassed engine is probed
// again. Default: 30s.
func WithRetryAfter(d time.Duration) FallbackOption {
	return func(f *EngineFallback) {
		if d > 0 {
			f.retryAfter = d
		}
	}
}

// NewEngineFallback creates a fallback chain with primary first.
func NewEngineFallback(primaryName string, primary stt.Engine, opts ...FallbackOption) *EngineFallback {
	f := &EngineFallback{
		chain:      []*engineState{{name: primaryName, engine: primary}},
		tripAfter:  defaultTripAfter,
		retryAfter: defaultRetryAfter,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// AddFallback appends an engine to the chain. Engines are tried in the order
// they were added.
func (f *EngineFallback) AddFallback(name string, engine stt.Engine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chain = append(f.chain, &engineState{name: name, engine: engine})
}

// Load loads the primary engine, then best-effort loads the fallbacks. A
// fallback that cannot load is logged and left in the chain — it may become
// loadable later (e.g., the remote server comes up).
func (f *EngineFallback) Load(ctx context.Context, modelRef string) error {
	f.mu.Lock()
	chain := append([]*engineState(nil), f.chain...)
	f.mu.Unlock()

	if err := chain[0].engine.Load(ctx, modelRef); err != nil {
		return err
	}
	for _, s := range chain[1:] {
		if err := s.engine.Load(ctx, modelRef); err != nil {
			slog.Warn("fallback engine not ready", "engine", s.name, "error", err)
		}
	}
	return nil
}

// Transcribe runs the inference against the first healthy engine in the
// chain. Returns [ErrAllEnginesFailed] wrapping the last error when no engine
// produced a result.
func (f *EngineFallback) Transcribe(ctx context.Context, pcm []byte) ([]stt.Segment, error) {
	var lastErr error
	for _, s := range f.candidates() {
		segments, err := s.engine.Transcribe(ctx, pcm)
		f.record(s, err)
		if err == nil {
			return segments, nil
		}
		lastErr = err
		slog.Warn("stt engine failed, trying next", "engine", s.name, "error", err)
	}
	if lastErr == nil {
		return nil, ErrAllEnginesFailed
	}
	return nil, fmt.Errorf("%w: %w", ErrAllEnginesFailed, lastErr)
}

// Close closes every engine in the chain, joining errors.
func (f *EngineFallback) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for _, s := range f.chain {
		if err := s.engine.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// candidates returns the engines currently worth calling: healthy ones plus
// resting ones whose retry period has elapsed.
func (f *EngineFallback) candidates() []*engineState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*engineState, 0, len(f.chain))
	for _, s := range f.chain {
		if s.resting && time.Since(s.downAt) < f.retryAfter {
			continue
		}
		out = append(out, s)
	}
	return out
}

// record updates an engine's health after a call.
func (f *EngineFallback) record(s *engineState, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		if s.resting {
			slog.Info("stt engine recovered", "engine", s.name)
		}
		s.fails = 0
		s.resting = false
		return
	}
	s.fails++
	if s.fails >= f.tripAfter && !s.resting {
		s.resting = true
		s.downAt = time.Now()
		slog.Warn("stt engine bypassed after repeated failures",
			"engine", s.name,
			"failures", s.fails,
			"retry_after", f.retryAfter,
		)
	} else if s.resting {
		// Probe failed; rest again from now.
		s.downAt = time.Now()
	}
}
