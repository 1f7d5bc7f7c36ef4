package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tmkbharathi/LiveCaptions/internal/config"
	"github.com/tmkbharathi/LiveCaptions/internal/transcript"
	translatemock "github.com/tmkbharathi/LiveCaptions/internal/translate/mock"
	"github.com/tmkbharathi/LiveCaptions/pkg/audio"
	audiomock "github.com/tmkbharathi/LiveCaptions/pkg/audio/mock"
	"github.com/tmkbharathi/LiveCaptions/pkg/stt"
	sttmock "github.com/tmkbharathi/LiveCaptions/pkg/stt/mock"
)

// capture collects everything the pipeline reports to the UI.
type capture struct {
	mu       sync.Mutex
	line1s   []string
	line2s   []string
	levels   []float64
	segments []struct {
		text  string
		final bool
	}
}

func (c *capture) callbacks() Callbacks {
	return Callbacks{
		SetLine1: func(s string) {
			c.mu.Lock()
			c.line1s = append(c.line1s, s)
			c.mu.Unlock()
		},
		SetLine2: func(s string) {
			c.mu.Lock()
			c.line2s = append(c.line2s, s)
			c.mu.Unlock()
		},
		SetLevel: func(l float64) {
			c.mu.Lock()
			c.levels = append(c.levels, l)
			c.mu.Unlock()
		},
		OnSegment: func(text string, final bool) {
			c.mu.Lock()
			c.segments = append(c.segments, struct {
				text  string
				final bool
			}{text, final})
			c.mu.Unlock()
		},
	}
}

func (c *capture) finals() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, s := range c.segments {
		if s.final {
			out = append(out, s.text)
		}
	}
	return out
}

func (c *capture) lastLine1() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.line1s) == 0 {
		return ""
	}
	return c.line1s[len(c.line1s)-1]
}

func (c *capture) lastLine2() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.line2s) == 0 {
		return ""
	}
	return c.line2s[len(c.line2s)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineEntry{Name: "mock", Language: "en"},
	}
}

func testSettings() *config.Settings {
	s := config.DefaultSettings()
	s.SilenceMs = 60
	s.InferenceIntervalMs = 10
	s.CharsPerLine = 40
	return s
}

func waitFor(t *testing.T, timeout time.Duration, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// feedVoiced pushes one 0.25 s frame of audio plus a voiced level report.
func feedVoiced(src *audiomock.Source) {
	src.EmitData(make([]byte, audio.FrameBytes))
	src.EmitLevel(0.2)
}

func TestPipelineBasicCommit(t *testing.T) {
	t.Parallel()

	eng := &sttmock.Engine{Results: []string{"hello world"}}
	src := &audiomock.Source{}
	cap := &capture{}
	store := transcript.NewMemStore(0)

	p, err := New(testConfig(), testSettings(), Deps{Source: src, Engine: eng, Store: store}, cap.callbacks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Stop(context.Background())

	// One second of voiced audio, then silence.
	for range 4 {
		feedVoiced(src)
		time.Sleep(15 * time.Millisecond)
	}

	waitFor(t, 3*time.Second, func() bool {
		return len(cap.finals()) == 1
	})

	if got := cap.finals(); got[0] != "hello world" {
		t.Fatalf("want final hello world, got %q", got[0])
	}
	if got := p.History(); got != "hello world" {
		t.Fatalf("want history hello world, got %q", got)
	}
	if got := cap.lastLine1(); got != "hello world" {
		t.Fatalf("want line1 hello world, got %q", got)
	}
	if got := cap.lastLine2(); got != " " {
		t.Fatalf("want blank line2, got %q", got)
	}

	// Partials precede the single final.
	cap.mu.Lock()
	sawFinal := false
	for _, s := range cap.segments {
		if sawFinal {
			t.Fatalf("event after final: %+v", s)
		}
		if s.final {
			sawFinal = true
		}
	}
	cap.mu.Unlock()

	// The committed utterance landed in the archive.
	recent, err := store.Recent(context.Background(), p.SessionID(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 1 || recent[0].Text != "hello world" {
		t.Fatalf("want archived utterance, got %+v", recent)
	}
}

func TestPipelineLevelForwarding(t *testing.T) {
	t.Parallel()

	eng := &sttmock.Engine{}
	src := &audiomock.Source{}
	cap := &capture{}

	p, err := New(testConfig(), testSettings(), Deps{Source: src, Engine: eng}, cap.callbacks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Stop(context.Background())

	src.EmitLevel(0.7)
	waitFor(t, time.Second, func() bool {
		cap.mu.Lock()
		defer cap.mu.Unlock()
		return len(cap.levels) > 0
	})

	cap.mu.Lock()
	defer cap.mu.Unlock()
	if cap.levels[0] != 0.7 {
		t.Fatalf("want level 0.7, got %f", cap.levels[0])
	}
}

func TestPipelineGlossaryCorrection(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Archive.Glossary = []string{"Grafana"}

	eng := &sttmock.Engine{Results: []string{"open graphana now"}}
	src := &audiomock.Source{}
	cap := &capture{}
	store := transcript.NewMemStore(0)

	p, err := New(cfg, testSettings(), Deps{Source: src, Engine: eng, Store: store}, cap.callbacks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Stop(context.Background())

	for range 4 {
		feedVoiced(src)
		time.Sleep(15 * time.Millisecond)
	}
	waitFor(t, 3*time.Second, func() bool { return len(cap.finals()) == 1 })

	if got := cap.finals()[0]; got != "open Grafana now" {
		t.Fatalf("want corrected final, got %q", got)
	}
	recent, _ := store.Recent(context.Background(), p.SessionID(), 1)
	if len(recent) != 1 || recent[0].Text != "open Grafana now" {
		t.Fatalf("want corrected archive entry, got %+v", recent)
	}
}

func TestPipelineTranslationHook(t *testing.T) {
	t.Parallel()

	eng := &sttmock.Engine{Results: []string{"hello there"}}
	src := &audiomock.Source{}
	cap := &capture{}
	tr := &translatemock.Translator{Result: "hola amigo"}

	p, err := New(testConfig(), testSettings(), Deps{Source: src, Engine: eng, Translator: tr}, cap.callbacks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Stop(context.Background())

	for range 4 {
		feedVoiced(src)
		time.Sleep(15 * time.Millisecond)
	}
	waitFor(t, 3*time.Second, func() bool { return cap.lastLine1() == "hola amigo" })
}

func TestPipelineInitializeModelError(t *testing.T) {
	t.Parallel()

	eng := &sttmock.Engine{LoadErr: stt.ErrModel}
	p, err := New(testConfig(), testSettings(), Deps{Source: &audiomock.Source{}, Engine: eng}, Callbacks{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Initialize(context.Background()); !errors.Is(err, stt.ErrModel) {
		t.Fatalf("want ErrModel, got %v", err)
	}
}

func TestPipelineSourceStartError(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{StartErr: audio.ErrSource}
	p, err := New(testConfig(), testSettings(), Deps{Source: src, Engine: &sttmock.Engine{}}, Callbacks{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Start(context.Background()); !errors.Is(err, audio.ErrSource) {
		t.Fatalf("want ErrSource, got %v", err)
	}
	// A failed start leaves the pipeline stoppable without effect.
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPipelineStopIsClean(t *testing.T) {
	t.Parallel()

	eng := &sttmock.Engine{Results: []string{"some words"}}
	src := &audiomock.Source{}
	p, err := New(testConfig(), testSettings(), Deps{Source: src, Engine: eng}, Callbacks{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	feedVoiced(src)

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.StopCallCount != 1 {
		t.Fatalf("want source stopped once, got %d", src.StopCallCount)
	}
	if eng.CloseCallCount != 1 {
		t.Fatalf("want engine closed once, got %d", eng.CloseCallCount)
	}
	// Stopping again is a no-op.
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
