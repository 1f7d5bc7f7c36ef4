// Package segment turns the rolling audio window into an ordered stream of
// caption events. It owns the pipeline's hardest state machine: a silence
// timer that commits the current partial independently of inference, a
// cooperative single-consumer inference loop with throttling and
// back-pressure, and the filter chain that keeps streaming-model artefacts
// (bracketed sound tags, silence hallucinations) off the screen.
package segment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tmkbharathi/LiveCaptions/internal/observe"
	"github.com/tmkbharathi/LiveCaptions/pkg/audio"
	"github.com/tmkbharathi/LiveCaptions/pkg/stt"
)

// Event is one caption update. A Final event marks the text as committed: it
// is appended to history and no longer subject to revision.
type Event struct {
	Text  string
	Final bool
}

// Config holds the segmentation tunables. Zero values select the defaults.
type Config struct {
	// SilenceMs is the silence duration after the last voice activity that
	// auto-commits the current partial.
	SilenceMs int

	// InferenceIntervalMs is the minimum gap between STT calls.
	InferenceIntervalMs int

	// MinInferFrames is the minimum session-window size, in frames, before
	// the first inference.
	MinInferFrames int

	// MaxSegmentFrames is the session-window size, in frames, at which the
	// current partial is force-committed.
	MaxSegmentFrames int

	// StaleSilenceS clears the session window once silence has lasted this
	// many seconds.
	StaleSilenceS float64

	// TagHoldS is how long a run of pure non-speech tag outputs must persist
	// before one is passed through.
	TagHoldS float64
}

func (c Config) withDefaults() Config {
	if c.SilenceMs <= 0 {
		c.SilenceMs = 800
	}
	if c.InferenceIntervalMs <= 0 {
		c.InferenceIntervalMs = 300
	}
	if c.MinInferFrames <= 0 {
		c.MinInferFrames = 2
	}
	if c.MaxSegmentFrames <= 0 {
		c.MaxSegmentFrames = 100
	}
	if c.StaleSilenceS <= 0 {
		c.StaleSilenceS = 3
	}
	if c.TagHoldS <= 0 {
		c.TagHoldS = 4
	}
	return c
}

// Segmenter consumes frames from a [audio.RollingBuffer], calls the STT
// worker under throttling, and emits [Event] values.
//
// For any voice-activity period the emitted sequence is zero or more partial
// events followed by exactly one final event, produced by the silence timer,
// the length safety, or hallucination-drop protection.
//
// Run owns the inference loop and is never reentrant; NoteVoice may be called
// from the capture thread. The emit callback is invoked with an internal lock
// held to preserve event ordering — it must hand the event off quickly
// (typically a buffered channel send) and must never call back into the
// Segmenter.
type Segmenter struct {
	cfg     Config
	buf     *audio.RollingBuffer
	worker  *stt.Worker
	emit    func(Event)
	metrics *observe.Metrics

	mu              sync.Mutex
	lastPartial     string
	committed       bool
	lastInferenceAt time.Time
	tagStreakStart  time.Time
	silenceTimer    *time.Timer
	silenceDur      time.Duration
	inferInterval   time.Duration
	stopped         bool
}

// Option is a functional option for configuring a [Segmenter].
type Option func(*Segmenter)

// WithMetrics attaches metric instruments. Without it, nothing is recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Segmenter) { s.metrics = m }
}

// New creates a Segmenter reading from buf and transcribing through worker.
// Events are delivered to emit.
func New(buf *audio.RollingBuffer, worker *stt.Worker, cfg Config, emit func(Event), opts ...Option) *Segmenter {
	cfg = cfg.withDefaults()
	s := &Segmenter{
		cfg:           cfg,
		buf:           buf,
		worker:        worker,
		emit:          emit,
		committed:     true,
		silenceDur:    time.Duration(cfg.SilenceMs) * time.Millisecond,
		inferInterval: time.Duration(cfg.InferenceIntervalMs) * time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NoteVoice re-arms the silence timer. Wire it to the buffer's voice-activity
// callback so every level report above the threshold postpones the commit.
// The timer runs independently of the inference loop: commits still fire while
// STT is busy.
func (s *Segmenter) NoteVoice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.silenceTimer == nil {
		s.silenceTimer = time.AfterFunc(s.silenceDur, s.onSilence)
		return
	}
	s.silenceTimer.Stop()
	s.silenceTimer.Reset(s.silenceDur)
}

// onSilence is the silence-timer callback. It commits the pending partial, if
// any. Safe to fire during teardown: it re-checks state flags and no-ops when
// there is nothing to commit.
func (s *Segmenter) onSilence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.committed || s.lastPartial == "" {
		return
	}
	text := s.lastPartial
	s.lastPartial = ""
	s.committed = true
	s.buf.ClearSession()
	if s.metrics != nil {
		s.metrics.RecordCommit(context.Background(), "silence")
	}
	s.emit(Event{Text: text, Final: true})
}

// SetSilenceMs updates the silence-commit duration. Takes effect on the next
// voice report.
func (s *Segmenter) SetSilenceMs(ms int) {
	if ms <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silenceDur = time.Duration(ms) * time.Millisecond
}

// SetInferenceIntervalMs updates the minimum gap between STT calls.
func (s *Segmenter) SetInferenceIntervalMs(ms int) {
	if ms <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inferInterval = time.Duration(ms) * time.Millisecond
}

// Run executes the inference loop until ctx is cancelled. It is the single
// consumer of the buffer's frame signal and must not be called concurrently
// with itself.
func (s *Segmenter) Run(ctx context.Context) error {
	frameBytes := s.buf.FrameBytes()
	minInferBytes := s.cfg.MinInferFrames * frameBytes

	for {
		if err := s.buf.WaitForFrame(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		// Retain audio instead of dropping it while an inference is in
		// flight.
		if s.worker.Busy() {
			s.buf.DrainIntoWindow()
			continue
		}

		if !s.buf.TryConsumeFrame() {
			continue
		}
		if s.buf.ByteCount() < minInferBytes {
			continue
		}

		s.mu.Lock()
		sinceLast := time.Since(s.lastInferenceAt)
		interval := s.inferInterval
		s.mu.Unlock()
		if sinceLast < interval {
			continue
		}

		snapshot := s.buf.Snapshot()

		spanCtx, span := observe.StartSpan(ctx, "stt.transcribe")
		start := time.Now()
		text, err := s.worker.Transcribe(spanCtx, snapshot)
		elapsed := time.Since(start)
		span.End()

		s.mu.Lock()
		s.lastInferenceAt = time.Now()
		s.mu.Unlock()

		switch {
		case err != nil:
			slog.Warn("inference failed, continuing", "error", err)
			s.recordInference(ctx, "error", elapsed)
			text = ""
		case strings.TrimSpace(text) == "":
			s.recordInference(ctx, "empty", elapsed)
		default:
			s.recordInference(ctx, "ok", elapsed)
		}

		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		if !s.process(trimmed) {
			continue
		}

		if s.buf.SecondsSinceLastVoice() > s.cfg.StaleSilenceS {
			s.buf.ClearSession()
		}
	}
}

// process applies the filter chain to one trimmed recognition result and
// updates the partial state. It returns true only when the update flowed
// through to the partial-update step — a filtered-out result or a
// hallucination-drop commit ends the tick, and the caller must then skip the
// stale-silence check as well.
func (s *Segmenter) process(raw string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}

	text, ok := s.applyFilters(raw)
	if !ok {
		return false
	}

	if s.dropProtect(text) {
		return false
	}

	s.lastPartial = text
	if s.buf.ByteCount() >= s.cfg.MaxSegmentFrames*s.buf.FrameBytes() {
		// Length safety: the window is about to saturate — commit now so the
		// caption cannot grow unboundedly stale.
		s.lastPartial = ""
		s.committed = true
		s.buf.ClearSession()
		if s.metrics != nil {
			s.metrics.RecordCommit(context.Background(), "length")
		}
		s.emit(Event{Text: text, Final: true})
		return true
	}
	s.committed = false
	s.emit(Event{Text: text, Final: false})
	return true
}

// dropProtect implements hallucination-drop protection: when a long prior
// partial is about to be replaced by a much shorter, context-disjoint text,
// the old text is force-committed so it is not lost to a model hiccup.
// Returns true when it handled the update. Caller holds s.mu.
func (s *Segmenter) dropProtect(text string) bool {
	oldWords := strings.Fields(s.lastPartial)
	newWords := strings.Fields(text)
	if len(oldWords) < 3 || len(newWords) == 0 || len(newWords) >= len(oldWords) {
		return false
	}

	newSet := make(map[string]struct{}, len(newWords))
	for _, w := range newWords {
		newSet[strings.ToLower(w)] = struct{}{}
	}

	var match, oldSignificant int
	for _, w := range oldWords {
		if len([]rune(w)) <= 2 {
			continue
		}
		oldSignificant++
		if _, ok := newSet[strings.ToLower(w)]; ok {
			match++
		}
	}
	if oldSignificant < 2 || match != 0 {
		return false
	}

	prev := s.lastPartial
	s.buf.ClearSession()
	if s.metrics != nil {
		s.metrics.RecordCommit(context.Background(), "hallucination_drop")
	}
	s.emit(Event{Text: prev, Final: true})

	s.lastPartial = text
	s.committed = false
	s.emit(Event{Text: text, Final: false})
	return true
}

func (s *Segmenter) recordInference(ctx context.Context, status string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordInference(ctx, status, elapsed.Seconds())
}

// Stop disarms the silence timer and marks the segmenter stopped. The
// inference loop is stopped separately by cancelling the Run context.
func (s *Segmenter) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.silenceTimer != nil {
		s.silenceTimer.Stop()
	}
}
