package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSettings(t *testing.T) {
	t.Parallel()

	t.Run("missing file yields defaults", func(t *testing.T) {
		t.Parallel()
		s := LoadSettings(filepath.Join(t.TempDir(), "nope.json"))
		want := DefaultSettings()
		if *s != settingsValue(want) {
			t.Fatalf("want defaults %+v, got %+v", want, s)
		}
	})

	t.Run("partial file keeps defaults for missing keys", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "settings.json")
		writeFile(t, path, `{"filter_profanity": true, "chars_per_line": 40}`)

		s := LoadSettings(path)
		if !s.FilterProfanity {
			t.Fatal("want filter_profanity true")
		}
		if s.CharsPerLine != 40 {
			t.Fatalf("want chars_per_line 40, got %d", s.CharsPerLine)
		}
		if s.SilenceMs != 800 {
			t.Fatalf("want default silence_ms 800, got %d", s.SilenceMs)
		}
	})

	t.Run("unknown keys are ignored", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "settings.json")
		writeFile(t, path, `{"future_feature": 42, "silence_ms": 1200}`)

		s := LoadSettings(path)
		if s.SilenceMs != 1200 {
			t.Fatalf("want silence_ms 1200, got %d", s.SilenceMs)
		}
	})

	t.Run("corrupt file yields defaults", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "settings.json")
		writeFile(t, path, `{not json`)

		s := LoadSettings(path)
		if s.SilenceMs != 800 {
			t.Fatalf("want defaults, got %+v", s)
		}
	})

	t.Run("invalid enums fall back individually", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "settings.json")
		writeFile(t, path, `{"caption_style": "neon", "window_position": "bottom-left", "silence_ms": 900}`)

		s := LoadSettings(path)
		if s.CaptionStyle != StyleDefault {
			t.Fatalf("want default style, got %q", s.CaptionStyle)
		}
		if s.WindowPosition != AnchorBottomLeft {
			t.Fatalf("want bottom-left kept, got %q", s.WindowPosition)
		}
		if s.SilenceMs != 900 {
			t.Fatalf("want silence_ms 900, got %d", s.SilenceMs)
		}
	})
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	w, h := 640, 120
	in := DefaultSettings()
	in.ShowAudioTags = true
	in.CaptionStyle = StyleYellowOnBlue
	in.Width, in.Height = &w, &h

	if err := SaveSettings(path, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := LoadSettings(path)
	if !out.ShowAudioTags || out.CaptionStyle != StyleYellowOnBlue {
		t.Fatalf("round trip lost values: %+v", out)
	}
	if out.Width == nil || *out.Width != 640 {
		t.Fatalf("want width 640, got %v", out.Width)
	}
	if out.X != nil {
		t.Fatalf("want unset x to stay nil, got %v", out.X)
	}
}

func TestSettingsWatcher(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	writeFile(t, path, `{"chars_per_line": 50}`)

	changed := make(chan *Settings, 1)
	w := NewSettingsWatcher(path, func(_, new *Settings) {
		select {
		case changed <- new:
		default:
		}
	}, WithInterval(20*time.Millisecond))
	defer w.Stop()

	if got := w.Current().CharsPerLine; got != 50 {
		t.Fatalf("want initial chars_per_line 50, got %d", got)
	}

	// Ensure a different mtime on filesystems with coarse timestamps.
	time.Sleep(30 * time.Millisecond)
	writeFile(t, path, `{"chars_per_line": 72}`)

	select {
	case s := <-changed:
		if s.CharsPerLine != 72 {
			t.Fatalf("want chars_per_line 72, got %d", s.CharsPerLine)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report the change")
	}
	if got := w.Current().CharsPerLine; got != 72 {
		t.Fatalf("want Current to reflect change, got %d", got)
	}
}

func settingsValue(s *Settings) Settings { return *s }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
