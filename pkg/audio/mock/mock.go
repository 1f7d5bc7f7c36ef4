// Package mock provides a test double for the audio package interfaces.
//
// Use Source to drive the pipeline with scripted PCM chunks and level
// readings from tests:
//
//	src := &mock.Source{}
//	deps := pipeline.Deps{Source: src, Engine: eng}
//	// ... construct and Start the pipeline with deps ...
//	src.EmitData(pcm)
//	src.EmitLevel(0.2)
package mock

import (
	"context"
	"sync"

	"github.com/tmkbharathi/LiveCaptions/pkg/audio"
)

// Source is a mock implementation of audio.Source. Tests push audio through
// the registered callbacks via EmitData and EmitLevel.
type Source struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// StartCallCount is the number of times Start was called.
	StartCallCount int

	// StopCallCount is the number of times Stop was called.
	StopCallCount int

	dataCb  func([]byte)
	levelCb func(float64)
}

// Start records the call and returns StartErr.
func (s *Source) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCallCount++
	return s.StartErr
}

// Stop records the call.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCallCount++
	return nil
}

// OnAudioData stores cb for EmitData.
func (s *Source) OnAudioData(cb func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataCb = cb
}

// OnLevelChanged stores cb for EmitLevel.
func (s *Source) OnLevelChanged(cb func(float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levelCb = cb
}

// EmitData invokes the registered data callback with pcm. No-op when no
// callback is registered.
func (s *Source) EmitData(pcm []byte) {
	s.mu.Lock()
	cb := s.dataCb
	s.mu.Unlock()
	if cb != nil {
		cb(pcm)
	}
}

// EmitLevel invokes the registered level callback.
func (s *Source) EmitLevel(level float64) {
	s.mu.Lock()
	cb := s.levelCb
	s.mu.Unlock()
	if cb != nil {
		cb(level)
	}
}

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)
