package stt

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Worker is the single-flight adapter over an [Engine]. When an inference is
// already in flight, Transcribe returns the empty string immediately rather
// than queueing, so the segmenter loop can retain audio and retry on a later
// tick.
//
// All methods are safe for concurrent use.
type Worker struct {
	engine   Engine
	language string

	sem    *semaphore.Weighted
	busy   atomic.Bool
	loaded atomic.Bool
}

// WorkerOption is a functional option for configuring a [Worker].
type WorkerOption func(*Worker)

// WithLanguage sets the configured caption language (e.g., "en"). Segments
// whose detected language differs are dropped from the output. An empty
// language disables filtering.
func WithLanguage(lang string) WorkerOption {
	return func(w *Worker) { w.language = lang }
}

// NewWorker creates a Worker wrapping engine.
func NewWorker(engine Engine, opts ...WorkerOption) *Worker {
	w := &Worker{
		engine: engine,
		sem:    semaphore.NewWeighted(1),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Initialize loads the model. Idempotent on success; subsequent calls are
// no-ops. Load failures propagate unchanged (they wrap [ErrModel]).
func (w *Worker) Initialize(ctx context.Context, modelRef string) error {
	if w.loaded.Load() {
		return nil
	}
	if err := w.engine.Load(ctx, modelRef); err != nil {
		return err
	}
	w.loaded.Store(true)
	return nil
}

// Transcribe runs one inference over pcm under the single-flight discipline.
//
// When another inference is in flight it returns ("", nil) immediately.
// Engine faults are returned wrapping [ErrTranscribe]; callers treat them as
// an empty result and continue. Otherwise the result is the language-filtered
// segment texts concatenated with single spaces and trimmed.
func (w *Worker) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if !w.sem.TryAcquire(1) {
		return "", nil
	}
	w.busy.Store(true)
	defer func() {
		w.busy.Store(false)
		w.sem.Release(1)
	}()

	segments, err := w.engine.Transcribe(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscribe, err)
	}

	var parts []string
	for _, seg := range segments {
		if w.language != "" && seg.Language != "" && !strings.EqualFold(seg.Language, w.language) {
			continue
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

// Busy reports whether an inference is currently in flight.
func (w *Worker) Busy() bool {
	return w.busy.Load()
}

// Close releases the underlying engine.
func (w *Worker) Close() error {
	return w.engine.Close()
}
