// This file contains the native Engine implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/tmkbharathi/LiveCaptions/pkg/stt"
)

// Compile-time assertion that NativeEngine satisfies stt.Engine.
var _ stt.Engine = (*NativeEngine)(nil)

// NativeEngine implements stt.Engine using the whisper.cpp Go bindings (CGO),
// eliminating server overhead entirely. The model is loaded once in Load and
// a fresh whisper context is created per inference — contexts are not
// thread-safe, but the worker's single-flight discipline means only one is
// live at a time anyway.
type NativeEngine struct {
	language string

	mu    sync.Mutex
	model whisperlib.Model
}

// NativeOption is a functional option for configuring a NativeEngine.
type NativeOption func(*NativeEngine)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(e *NativeEngine) { e.language = lang }
}

// NewNative creates an unloaded NativeEngine. Call Load with the model path
// before the first Transcribe.
func NewNative(opts ...NativeOption) *NativeEngine {
	e := &NativeEngine{language: defaultLanguage}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Load loads the whisper.cpp model from modelRef. Idempotent once a model is
// loaded. Failures wrap [stt.ErrModel] and include the model file's observed
// size, or its missing state, so startup errors are actionable.
func (e *NativeEngine) Load(_ context.Context, modelRef string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		return nil
	}
	if modelRef == "" {
		return fmt.Errorf("%w: model path is empty", stt.ErrModel)
	}

	info, statErr := os.Stat(modelRef)
	if statErr != nil {
		return fmt.Errorf("%w: model file %q is missing: %w", stt.ErrModel, modelRef, statErr)
	}

	model, err := whisperlib.New(modelRef)
	if err != nil {
		return fmt.Errorf("%w: load %q (%d bytes): %w", stt.ErrModel, modelRef, info.Size(), err)
	}
	e.model = model
	slog.Info("whisper model loaded", "path", modelRef, "size", info.Size())
	return nil
}

// Transcribe converts pcm to float32 samples, runs whisper.cpp inference
// using a fresh context, and returns the recognised segments tagged with the
// detected language.
func (e *NativeEngine) Transcribe(_ context.Context, pcm []byte) ([]stt.Segment, error) {
	e.mu.Lock()
	model := e.model
	e.mu.Unlock()
	if model == nil {
		return nil, fmt.Errorf("%w: model is not loaded", stt.ErrModel)
	}

	samples := pcmToFloat32(pcm)
	if len(samples) == 0 {
		return nil, nil
	}

	wctx, err := model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(e.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", e.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	lang := wctx.DetectedLanguage()
	var segments []stt.Segment
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		segments = append(segments, stt.Segment{Text: text, Language: lang})
	}
	return segments, nil
}

// Close releases the whisper model. Safe to call more than once.
func (e *NativeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}
