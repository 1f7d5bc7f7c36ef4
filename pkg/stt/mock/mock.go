// Package mock provides a test double for the stt package interfaces.
//
// Use Engine to feed controlled recognition results to the segmenter and
// inspect which audio snapshots were submitted:
//
//	eng := &mock.Engine{Results: []string{"hello world"}}
//	worker := stt.NewWorker(eng)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/tmkbharathi/LiveCaptions/pkg/stt"
)

// TranscribeCall records a single invocation of Engine.Transcribe.
type TranscribeCall struct {
	// PCM is a copy of the audio bytes that were passed to Transcribe.
	PCM []byte
}

// Engine is a mock implementation of stt.Engine.
//
// Each Transcribe call consumes the next entry of Results (the last entry
// repeats once the list is exhausted) and returns it as a single segment.
// Set Segments to return multi-segment results instead.
type Engine struct {
	mu sync.Mutex

	// Results is the sequence of texts returned by successive Transcribe calls.
	Results []string

	// Segments, when non-nil, overrides Results entirely.
	Segments []stt.Segment

	// LoadErr, if non-nil, is returned by Load.
	LoadErr error

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// Delay is slept inside Transcribe to simulate a slow engine.
	Delay time.Duration

	// LoadCalls records every modelRef passed to Load.
	LoadCalls []string

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Load records the call and returns LoadErr.
func (e *Engine) Load(_ context.Context, modelRef string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.LoadCalls = append(e.LoadCalls, modelRef)
	return e.LoadErr
}

// Transcribe records the call, sleeps Delay, and returns the next scripted
// result.
func (e *Engine) Transcribe(ctx context.Context, pcm []byte) ([]stt.Segment, error) {
	e.mu.Lock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	e.TranscribeCalls = append(e.TranscribeCalls, TranscribeCall{PCM: cp})
	n := len(e.TranscribeCalls)
	segments := e.Segments
	results := e.Results
	err := e.TranscribeErr
	delay := e.Delay
	e.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if segments != nil {
		return segments, nil
	}
	if len(results) == 0 {
		return nil, nil
	}
	idx := n - 1
	if idx >= len(results) {
		idx = len(results) - 1
	}
	return []stt.Segment{{Text: results[idx]}}, nil
}

// Close records the call.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CloseCallCount++
	return nil
}

// TranscribeCallCount returns the number of Transcribe calls. Thread-safe.
func (e *Engine) TranscribeCallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.TranscribeCalls)
}

// SetResults replaces the scripted result list. Thread-safe.
func (e *Engine) SetResults(results []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Results = results
}

// Ensure Engine implements stt.Engine at compile time.
var _ stt.Engine = (*Engine)(nil)
