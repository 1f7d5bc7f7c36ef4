package config

import (
	"crypto/sha256"
	"log/slog"
	"os"
	"sync"
	"time"
)

// SettingsWatcher monitors the user settings file for external edits and
// calls a callback when it changes, so preference changes (wrap width,
// profanity filter, silence timing) apply to a running pipeline without a
// restart. It uses polling (not fsnotify) to keep dependencies minimal.
type SettingsWatcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Settings)

	mu       sync.Mutex
	current  *Settings
	done     chan struct{}
	stopOnce sync.Once

	// last known file state for change detection
	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

// WatcherOption configures a [SettingsWatcher].
type WatcherOption func(*SettingsWatcher)

// WithInterval sets the polling interval. The default is 2 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *SettingsWatcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewSettingsWatcher creates a settings file watcher. It loads the initial
// settings immediately (applying defaults when the file is absent) and starts
// polling in a background goroutine.
func NewSettingsWatcher(path string, onChange func(old, new *Settings), opts ...WatcherOption) *SettingsWatcher {
	w := &SettingsWatcher{
		path:     path,
		interval: 2 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.current = LoadSettings(path)
	if data, err := os.ReadFile(path); err == nil {
		w.lastHash = sha256.Sum256(data)
		if info, err := os.Stat(path); err == nil {
			w.lastMtime = info.ModTime()
		}
	}

	go w.poll()
	return w
}

// Current returns the most recently loaded settings.
func (w *SettingsWatcher) Current() *Settings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops the file watcher.
func (w *SettingsWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

// poll runs in a background goroutine, checking the settings file periodically.
func (w *SettingsWatcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check reads the settings file and, if it has changed, calls onChange and
// updates the current settings.
func (w *SettingsWatcher) check() {
	// Quick mtime check first to avoid hashing unchanged files.
	info, err := os.Stat(w.path)
	if err != nil {
		// Absent file means defaults are in effect; nothing to do.
		return
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()

	if info.ModTime().Equal(mtime) {
		return
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		slog.Warn("settings watcher: cannot read file", "path", w.path, "err", err)
		return
	}
	hash := sha256.Sum256(data)

	w.mu.Lock()
	if hash == w.lastHash {
		// File was touched but content is identical.
		w.lastMtime = info.ModTime()
		w.mu.Unlock()
		return
	}

	s := LoadSettings(w.path)
	old := w.current
	w.current = s
	w.lastHash = hash
	w.lastMtime = info.ModTime()
	w.mu.Unlock()

	for _, change := range describeChanges(old, s) {
		slog.Info("settings watcher: preference changed", "change", change)
	}

	// Invoke the callback outside the lock so it can safely call Current().
	if w.onChange != nil {
		w.onChange(old, s)
	}
}

// describeChanges returns a human-readable list of the preference fields that
// differ between old and new. Geometry changes are summarised as one entry.
func describeChanges(old, new *Settings) []string {
	var out []string
	if old.IncludeMicrophone != new.IncludeMicrophone {
		out = append(out, "include_microphone")
	}
	if old.FilterProfanity != new.FilterProfanity {
		out = append(out, "filter_profanity")
	}
	if old.ShowAudioTags != new.ShowAudioTags {
		out = append(out, "show_audio_tags")
	}
	if old.CaptionStyle != new.CaptionStyle {
		out = append(out, "caption_style")
	}
	if old.WindowPosition != new.WindowPosition {
		out = append(out, "window_position")
	}
	if old.SilenceMs != new.SilenceMs {
		out = append(out, "silence_ms")
	}
	if old.InferenceIntervalMs != new.InferenceIntervalMs {
		out = append(out, "inference_interval_ms")
	}
	if old.CharsPerLine != new.CharsPerLine {
		out = append(out, "chars_per_line")
	}
	if !intPtrEq(old.Width, new.Width) || !intPtrEq(old.Height, new.Height) ||
		!intPtrEq(old.X, new.X) || !intPtrEq(old.Y, new.Y) {
		out = append(out, "window_geometry")
	}
	return out
}

func intPtrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
