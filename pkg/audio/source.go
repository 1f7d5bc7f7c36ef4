// Package audio defines the capture-side capability and the rolling frame
// buffer that feeds the live-captioning pipeline.
//
// The two primary abstractions are:
//
//   - [Source] — an audio producer (OS loopback capture, a PCM file, a
//     network stream) that emits raw PCM chunks and instantaneous level
//     readings through registered callbacks.
//   - [RollingBuffer] — converts the variable-rate PCM byte stream into a
//     bounded rolling window of fixed-duration frames and signals their
//     availability to the segmenter loop.
//
// Implementations of [Source] are provided by adapter packages (audio/file,
// audio/stream). The interface is intentionally narrow so the pipeline stays
// decoupled from capture details.
//
// This package lives under pkg/ because external code (platform-specific
// capture helpers) is expected to implement [Source].
package audio

import (
	"context"
	"errors"
)

// ErrSource is the base error for capture failures. Adapters wrap it so the
// facade can report "capture cannot start" distinctly from model errors.
var ErrSource = errors.New("audio source error")

// Source is the capability the pipeline consumes for audio input.
//
// Data and level callbacks are invoked on an internal goroutine owned by the
// implementation — callbacks must not block on slow work (in particular they
// must never wait on STT). Only one callback of each kind may be registered
// at a time; subsequent calls replace the previous registration and must
// happen before Start.
type Source interface {
	// Start begins capture. Chunks delivered to the data callback are
	// 16 kHz mono signed-16-bit little-endian PCM of arbitrary length.
	// Returns an error wrapping [ErrSource] if capture cannot begin.
	Start(ctx context.Context) error

	// Stop ends capture and releases resources. Safe to call more than once.
	Stop() error

	// OnAudioData registers cb to receive raw PCM chunks.
	OnAudioData(cb func(pcm []byte))

	// OnLevelChanged registers cb to receive the instantaneous peak level,
	// normalised to [0, 1].
	OnLevelChanged(cb func(level float64))
}
