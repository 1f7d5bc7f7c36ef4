// Package pipeline wires the capture source, rolling buffer, segmenter,
// renderer, and the optional archive/translation/feed extras into one
// start/stoppable unit. It owns the dispatcher goroutine that serialises all
// UI-facing callbacks, so the renderer and the caller's callbacks never run
// concurrently with themselves.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"

	"github.com/tmkbharathi/LiveCaptions/internal/config"
	"github.com/tmkbharathi/LiveCaptions/internal/feed"
	"github.com/tmkbharathi/LiveCaptions/internal/observe"
	"github.com/tmkbharathi/LiveCaptions/internal/render"
	"github.com/tmkbharathi/LiveCaptions/internal/segment"
	"github.com/tmkbharathi/LiveCaptions/internal/transcript"
	"github.com/tmkbharathi/LiveCaptions/internal/translate"
	"github.com/tmkbharathi/LiveCaptions/pkg/audio"
	"github.com/tmkbharathi/LiveCaptions/pkg/stt"
)

const (
	// eventQueueDepth buffers segment events between the segmenter and the
	// dispatcher. Sends block when full so finals are never lost.
	eventQueueDepth = 64

	// levelQueueDepth buffers level readings. Sends drop when full — a level
	// meter only needs the latest value.
	levelQueueDepth = 64

	// archiveTimeout bounds a single archive write.
	archiveTimeout = 5 * time.Second

	// translateTimeout bounds a single translation call; past it the
	// untranslated text is shown.
	translateTimeout = 10 * time.Second
)

// Callbacks are the UI-facing outputs. All of them are invoked from the
// pipeline's single dispatcher goroutine. Nil callbacks are skipped.
type Callbacks struct {
	// SetLine1 and SetLine2 receive the rendered caption lines. Blank lines
	// arrive as a single space.
	SetLine1 func(string)
	SetLine2 func(string)

	// SetLevel receives the instantaneous audio level in [0, 1].
	SetLevel func(float64)

	// OnSegment receives every caption event before rendering.
	OnSegment func(text string, final bool)
}

// Deps are the pipeline's injectable collaborators. Source and Engine are
// required; the rest are optional.
type Deps struct {
	Source     audio.Source
	Engine     stt.Engine
	Store      transcript.Store     // nil: in-memory archive
	Translator translate.Translator // nil: no translation
	Feed       *feed.Server         // nil: no websocket feed
	Metrics    *observe.Metrics     // nil: no metric recording
}

// Pipeline is the facade over the captioning core.
type Pipeline struct {
	cfg       *config.Config
	callbacks Callbacks

	source    audio.Source
	buf       *audio.RollingBuffer
	worker    *stt.Worker
	seg       *segment.Segmenter
	renderer  *render.Renderer
	corrector *transcript.Corrector
	store     transcript.Store
	feed      *feed.Server

	sessionID uuid.UUID
	events    chan segment.Event
	levels    chan float64
	stopCh    chan struct{}

	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool

	// line state is only touched from the dispatcher goroutine.
	line1, line2 string
}

// New constructs a Pipeline from cfg, the user settings, and deps. Silence
// timing, inference interval and wrap width come from the settings; the
// config file's values for them are not used. The audio-tag and profanity
// display toggles are on when either the config file or the settings enable
// them.
func New(cfg *config.Config, settings *config.Settings, deps Deps, callbacks Callbacks) (*Pipeline, error) {
	if deps.Source == nil {
		return nil, errors.New("pipeline: Source is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("pipeline: Engine is required")
	}
	if settings == nil {
		settings = config.DefaultSettings()
	}

	p := &Pipeline{
		cfg:       cfg,
		callbacks: callbacks,
		source:    deps.Source,
		store:     deps.Store,
		feed:      deps.Feed,
		sessionID: uuid.New(),
		events:    make(chan segment.Event, eventQueueDepth),
		levels:    make(chan float64, levelQueueDepth),
		stopCh:    make(chan struct{}),
	}
	if p.store == nil {
		p.store = transcript.NewMemStore(0)
	}
	if terms := cfg.Archive.Glossary; len(terms) > 0 {
		p.corrector = transcript.NewCorrector(terms)
	}

	p.buf = audio.NewRollingBuffer(audio.BufferConfig{
		MaxFrames:      cfg.Segmenter.MaxFrames,
		VoiceThreshold: cfg.Segmenter.VoiceThreshold,
		Metrics:        deps.Metrics,
	})

	p.worker = stt.NewWorker(deps.Engine, stt.WithLanguage(cfg.Engine.Language))

	// The yaml config carries the operator-facing tunables; the settings file
	// carries the user preferences and wins for the values it owns.
	segCfg := segment.Config{
		SilenceMs:           settings.SilenceMs,
		InferenceIntervalMs: settings.InferenceIntervalMs,
		MinInferFrames:      cfg.Segmenter.MinInferFrames,
		MaxSegmentFrames:    cfg.Segmenter.MaxSegmentFrames,
		StaleSilenceS:       cfg.Segmenter.StaleSilenceS,
		TagHoldS:            cfg.Segmenter.TagHoldS,
	}

	var segOpts []segment.Option
	if deps.Metrics != nil {
		segOpts = append(segOpts, segment.WithMetrics(deps.Metrics))
	}
	// The send blocks rather than drops so finals survive bursts; the stop
	// channel keeps a late timer fire from blocking forever during teardown.
	p.seg = segment.New(p.buf, p.worker, segCfg, func(e segment.Event) {
		select {
		case p.events <- e:
		case <-p.stopCh:
		}
	}, segOpts...)

	p.renderer = render.New(render.Config{
		CharsPerLine:    settings.CharsPerLine,
		ShowAudioTags:   cfg.Renderer.ShowAudioTags || settings.ShowAudioTags,
		FilterProfanity: cfg.Renderer.FilterProfanity || settings.FilterProfanity,
		Transform:       p.transform(deps.Translator),
		SetLine1:        func(s string) { p.publishLine1(s) },
		SetLine2:        func(s string) { p.publishLine2(s) },
	})

	// Capture-side wiring. The capture thread only ever touches the buffer;
	// everything downstream is decoupled through channels.
	p.source.OnAudioData(p.buf.Push)
	p.source.OnLevelChanged(p.buf.ReportLevel)
	p.buf.OnVoice(p.seg.NoteVoice)
	p.buf.OnLevel(func(level float64) {
		select {
		case p.levels <- level:
		default:
		}
	})

	return p, nil
}

// Initialize loads the STT model. Failures wrap [stt.ErrModel] and surface
// synchronously; the pipeline stays stopped.
func (p *Pipeline) Initialize(ctx context.Context) error {
	return p.worker.Initialize(ctx, p.cfg.Engine.ModelPath)
}

// Start launches the inference loop, the dispatcher, the optional feed
// server, and finally capture. Capture failures wrap [audio.ErrSource] and
// surface synchronously; the pipeline tears back down to stopped.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.started {
		return errors.New("pipeline: already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, loopCtx := errgroup.WithContext(runCtx)
	p.cancel = cancel
	p.group = g

	g.Go(func() error { return p.seg.Run(loopCtx) })
	g.Go(func() error { p.dispatch(loopCtx); return nil })

	if p.feed != nil {
		if err := p.feed.Start(runCtx); err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("pipeline: start feed: %w", err)
		}
	}

	if err := p.source.Start(runCtx); err != nil {
		cancel()
		_ = g.Wait()
		if p.feed != nil {
			_ = p.feed.Stop()
		}
		return err
	}

	p.started = true
	slog.Info("pipeline started",
		"session_id", p.sessionID,
		"language", p.cfg.Engine.Language,
	)
	return nil
}

// Stop tears the pipeline down: capture first so no new audio arrives, then
// the loops, then the silence timer, then the extras. Calling it again, or on
// a pipeline that never started, is a no-op.
func (p *Pipeline) Stop(ctx context.Context) error {
	if !p.started {
		return nil
	}
	p.started = false

	var errs []error
	if err := p.source.Stop(); err != nil {
		errs = append(errs, err)
	}

	p.cancel()
	close(p.stopCh)
	if err := p.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}
	p.seg.Stop()

	if p.feed != nil {
		if err := p.feed.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.worker.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.store.Close(); err != nil {
		errs = append(errs, err)
	}

	slog.Info("pipeline stopped", "session_id", p.sessionID)
	return errors.Join(errs...)
}

// ApplySettings pushes changed user preferences into the running components.
func (p *Pipeline) ApplySettings(s *config.Settings) {
	if s == nil {
		return
	}
	p.seg.SetSilenceMs(s.SilenceMs)
	p.seg.SetInferenceIntervalMs(s.InferenceIntervalMs)
	p.renderer.SetCharsPerLine(s.CharsPerLine)
	p.renderer.SetShowAudioTags(s.ShowAudioTags)
	p.renderer.SetFilterProfanity(s.FilterProfanity)
}

// SessionID identifies this pipeline run in the transcript archive.
func (p *Pipeline) SessionID() uuid.UUID {
	return p.sessionID
}

// History returns the renderer's committed caption history.
func (p *Pipeline) History() string {
	return p.renderer.History()
}

// dispatch is the single goroutine through which every renderer call and
// UI-facing callback flows.
func (p *Pipeline) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-p.events:
			p.handleEvent(ctx, e)
		case level := <-p.levels:
			if p.callbacks.SetLevel != nil {
				p.callbacks.SetLevel(level)
			}
			if p.feed != nil {
				p.feed.SetLevel(level)
			}
		}
	}
}

// handleEvent routes one caption event to the corrector, the renderer, the
// caller, and the archive.
func (p *Pipeline) handleEvent(ctx context.Context, e segment.Event) {
	text := e.Text
	if e.Final && p.corrector != nil {
		text = p.corrector.Correct(text)
	}

	p.renderer.OnText(text, e.Final)
	if p.callbacks.OnSegment != nil {
		p.callbacks.OnSegment(text, e.Final)
	}

	if !e.Final {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, archiveTimeout)
	err := p.store.Append(writeCtx, transcript.Utterance{
		ID:          uuid.New(),
		SessionID:   p.sessionID,
		Text:        text,
		CommittedAt: time.Now(),
	})
	cancel()
	if err != nil {
		slog.Warn("transcript archive write failed", "error", err)
	}
}

// transform adapts the optional translator into the renderer's opaque text
// hook. Translation failures fall back to the untranslated text.
func (p *Pipeline) transform(tr translate.Translator) func(string) string {
	if tr == nil {
		return nil
	}
	return func(text string) string {
		ctx, cancel := context.WithTimeout(context.Background(), translateTimeout)
		defer cancel()
		translated, err := tr.Translate(ctx, text)
		if err != nil {
			slog.Warn("translation failed, showing original", "error", err)
			return text
		}
		return translated
	}
}

// publishLine1 forwards a rendered top line to the callback and the feed.
func (p *Pipeline) publishLine1(s string) {
	p.line1 = s
	if p.callbacks.SetLine1 != nil {
		p.callbacks.SetLine1(s)
	}
	if p.feed != nil {
		p.feed.SetLines(p.line1, p.line2)
	}
}

// publishLine2 forwards a rendered bottom line to the callback and the feed.
func (p *Pipeline) publishLine2(s string) {
	p.line2 = s
	if p.callbacks.SetLine2 != nil {
		p.callbacks.SetLine2(s)
	}
	if p.feed != nil {
		p.feed.SetLines(p.line1, p.line2)
	}
}
