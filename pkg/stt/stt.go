// Package stt defines the speech-to-text capability consumed by the
// live-captioning pipeline and the single-flight [Worker] that guards it.
//
// An [Engine] wraps a batch transcription backend (local whisper.cpp via CGO
// bindings, a whisper-server HTTP endpoint, or a test mock) and turns a PCM
// byte buffer into recognised segments. Engines are non-streaming: each
// Transcribe call is a full inference over the supplied audio.
//
// The [Worker] enforces the pipeline's single-flight discipline: at most one
// inference is in flight at any time, and overlapping calls return
// immediately with an empty result instead of queueing.
//
// This package lives under pkg/ because external code (alternative engine
// backends) is expected to implement [Engine].
package stt

import (
	"context"
	"errors"
)

// ErrModel indicates the model file is missing or corrupt. Engine Load
// implementations wrap it with the observed file size or missing state so the
// UI can show a useful startup error.
var ErrModel = errors.New("stt model error")

// ErrTranscribe indicates a transient engine fault during inference. Callers
// treat it as "produced empty text" and continue.
var ErrTranscribe = errors.New("stt transcribe error")

// Segment is one recognised span of audio. Engines that detect language per
// inference fill Language with a BCP-47 code; engines without language
// detection leave it empty, which exempts the segment from language
// filtering.
type Segment struct {
	// Text is the recognised text, trimmed.
	Text string

	// Language is the detected language code (e.g., "en"), or "" when the
	// engine does not report one.
	Language string
}

// Engine is the abstraction over any batch STT backend.
//
// Implementations need not be safe for concurrent Transcribe calls — the
// [Worker] serialises access.
type Engine interface {
	// Load prepares the engine with the model identified by modelRef (a file
	// path for local engines, ignored by remote ones). Idempotent on success.
	// Returns an error wrapping [ErrModel] on a missing or corrupt model.
	Load(ctx context.Context, modelRef string) error

	// Transcribe runs one inference over pcm (16 kHz mono S16LE) and returns
	// the recognised segments in order. May take multiple seconds.
	Transcribe(ctx context.Context, pcm []byte) ([]Segment, error)

	// Close releases engine resources. Safe to call more than once.
	Close() error
}
