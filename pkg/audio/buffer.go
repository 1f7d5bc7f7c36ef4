package audio

import (
	"context"
	"sync"
	"time"

	"github.com/tmkbharathi/LiveCaptions/internal/observe"
)

const (
	// SampleRate is the fixed pipeline sample rate in Hz.
	SampleRate = 16000

	// bytesPerSample is fixed at 2 for signed-16-bit PCM.
	bytesPerSample = 2

	// FrameBytes is the size of one 0.25 s frame: rate × bytes ÷ 4.
	FrameBytes = SampleRate * bytesPerSample / 4

	// DefaultMaxFrames bounds the session window to 30 s of audio.
	DefaultMaxFrames = 120

	// DefaultVoiceThreshold is the level above which audio counts as voice.
	DefaultVoiceThreshold = 0.05

	// notifyDepth is the capacity of the frame-available signal channel.
	// WaitForFrame re-checks the ready queue before blocking, so a dropped
	// token when the channel is full cannot strand a waiter.
	notifyDepth = 1024
)

// BufferConfig configures a [RollingBuffer]. Zero values select the defaults
// above.
type BufferConfig struct {
	// FrameBytes is the fixed frame size in bytes.
	FrameBytes int

	// MaxFrames bounds the session window; appending beyond it evicts the
	// oldest frame.
	MaxFrames int

	// VoiceThreshold is the level above which ReportLevel records voice
	// activity.
	VoiceThreshold float64

	// Metrics receives frame and window-size instrumentation. Nil disables
	// recording.
	Metrics *observe.Metrics
}

// RollingBuffer accepts raw PCM, carves fixed-size frames, and maintains a
// bounded rolling session window for STT snapshots.
//
// Push and ReportLevel may be called from a capture thread; the consuming
// methods are called by the segmenter loop. A single mutex guards the scratch
// accumulator, the ready queue, and the session window.
type RollingBuffer struct {
	frameBytes     int
	maxFrames      int
	voiceThreshold float64
	metrics        *observe.Metrics

	mu        sync.Mutex
	scratch   []byte
	ready     [][]byte
	window    [][]byte
	lastVoice time.Time

	notify  chan struct{}
	onLevel func(float64)
	onVoice func()
}

// NewRollingBuffer creates a buffer with the given config.
func NewRollingBuffer(cfg BufferConfig) *RollingBuffer {
	if cfg.FrameBytes <= 0 {
		cfg.FrameBytes = FrameBytes
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = DefaultMaxFrames
	}
	if cfg.VoiceThreshold <= 0 {
		cfg.VoiceThreshold = DefaultVoiceThreshold
	}
	return &RollingBuffer{
		frameBytes:     cfg.FrameBytes,
		maxFrames:      cfg.MaxFrames,
		voiceThreshold: cfg.VoiceThreshold,
		metrics:        cfg.Metrics,
		notify:         make(chan struct{}, notifyDepth),
	}
}

// OnLevel registers cb to receive every level reported via ReportLevel.
// Only one callback may be registered; it is invoked on the reporting
// goroutine and must not block. Must be called before capture starts.
func (b *RollingBuffer) OnLevel(cb func(float64)) {
	b.onLevel = cb
}

// OnVoice registers cb to be invoked whenever a reported level crosses the
// voice threshold. The segmenter uses this to re-arm its silence timer.
// Must be called before capture starts.
func (b *RollingBuffer) OnVoice(cb func()) {
	b.onVoice = cb
}

// Push appends raw bytes to the scratch accumulator and moves every completed
// frame into the ready queue, signalling once per frame. Odd trailing bytes
// stay in the accumulator until a later push completes them.
func (b *RollingBuffer) Push(data []byte) {
	if len(data) == 0 {
		return
	}

	b.mu.Lock()
	b.scratch = append(b.scratch, data...)
	var carved int
	for len(b.scratch) >= b.frameBytes {
		frame := make([]byte, b.frameBytes)
		copy(frame, b.scratch[:b.frameBytes])
		b.scratch = b.scratch[b.frameBytes:]
		b.ready = append(b.ready, frame)
		carved++
	}
	if carved > 0 && len(b.scratch) == 0 {
		// Reset the accumulator's backing array so carved frames don't pin it.
		b.scratch = nil
	}
	b.mu.Unlock()

	if carved > 0 && b.metrics != nil {
		b.metrics.RecordFrames(context.Background(), carved)
	}
	for range carved {
		select {
		case b.notify <- struct{}{}:
		default:
		}
	}
}

// ReportLevel records voice activity when level exceeds the threshold and
// publishes the level to the registered subscriber.
func (b *RollingBuffer) ReportLevel(level float64) {
	voiced := level > b.voiceThreshold
	if voiced {
		b.mu.Lock()
		b.lastVoice = time.Now()
		b.mu.Unlock()
	}
	if b.onLevel != nil {
		b.onLevel(level)
	}
	if voiced && b.onVoice != nil {
		b.onVoice()
	}
}

// WaitForFrame blocks until at least one ready frame exists or ctx is done.
func (b *RollingBuffer) WaitForFrame(ctx context.Context) error {
	for {
		b.mu.Lock()
		n := len(b.ready)
		b.mu.Unlock()
		if n > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.notify:
		}
	}
}

// TryConsumeFrame moves one frame from the ready queue into the session
// window, evicting the oldest window frame when over the bound. Returns false
// if the queue was empty.
func (b *RollingBuffer) TryConsumeFrame() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumeLocked()
}

// DrainIntoWindow moves all queued frames into the session window. Used when
// STT is busy so audio is retained in the window rather than dropped from the
// queue. Returns the number of frames moved.
func (b *RollingBuffer) DrainIntoWindow() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int
	for b.consumeLocked() {
		n++
	}
	return n
}

func (b *RollingBuffer) consumeLocked() bool {
	if len(b.ready) == 0 {
		return false
	}
	frame := b.ready[0]
	b.ready = b.ready[1:]
	if len(b.ready) == 0 {
		b.ready = nil
	}
	b.window = append(b.window, frame)
	delta := b.frameBytes
	if len(b.window) > b.maxFrames {
		over := len(b.window) - b.maxFrames
		b.window = append([][]byte(nil), b.window[over:]...)
		delta -= over * b.frameBytes
	}
	if b.metrics != nil {
		b.metrics.AddWindowBytes(context.Background(), delta)
	}
	return true
}

// FrameBytes returns the fixed frame size in bytes.
func (b *RollingBuffer) FrameBytes() int {
	return b.frameBytes
}

// Snapshot returns a contiguous copy of the current session window in frame
// order. The returned slice is owned by the caller.
func (b *RollingBuffer) Snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, 0, len(b.window)*b.frameBytes)
	for _, f := range b.window {
		out = append(out, f...)
	}
	return out
}

// ByteCount returns the session window size in bytes.
func (b *RollingBuffer) ByteCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.window) * b.frameBytes
}

// ClearSession empties the session window. Queued frames and the scratch
// accumulator are unaffected.
func (b *RollingBuffer) ClearSession() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.metrics != nil && len(b.window) > 0 {
		b.metrics.AddWindowBytes(context.Background(), -len(b.window)*b.frameBytes)
	}
	b.window = nil
}

// SecondsSinceLastVoice returns the seconds elapsed since the last reported
// level above the voice threshold. Before any voice has been reported the
// value is very large.
func (b *RollingBuffer) SecondsSinceLastVoice() float64 {
	b.mu.Lock()
	last := b.lastVoice
	b.mu.Unlock()
	return time.Since(last).Seconds()
}
