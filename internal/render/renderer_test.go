package render

import (
	"strings"
	"testing"
)

// captureRenderer returns a renderer whose rendered lines are recorded.
func captureRenderer(cfg Config) (*Renderer, *[]string, *[]string) {
	line1s, line2s := &[]string{}, &[]string{}
	cfg.SetLine1 = func(s string) { *line1s = append(*line1s, s) }
	cfg.SetLine2 = func(s string) { *line2s = append(*line2s, s) }
	return New(cfg), line1s, line2s
}

func last(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[len(ss)-1]
}

func TestBasicCommitRendering(t *testing.T) {
	t.Parallel()

	r, l1, l2 := captureRenderer(Config{CharsPerLine: 40})
	r.OnText("hello world", false)
	r.OnText("hello world", true)

	if got := r.History(); got != "hello world" {
		t.Fatalf("want history %q, got %q", "hello world", got)
	}
	if got := last(*l1); got != "hello world" {
		t.Fatalf("want line1 %q, got %q", "hello world", got)
	}
	if got := last(*l2); got != " " {
		t.Fatalf("want blank line2 normalised to space, got %q", got)
	}
}

func TestPartialDoesNotMutateHistory(t *testing.T) {
	t.Parallel()

	r, l1, _ := captureRenderer(Config{CharsPerLine: 40})
	r.OnText("first utterance", true)
	r.OnText("second thoughts", false)

	if got := r.History(); got != "first utterance" {
		t.Fatalf("want history untouched by partial, got %q", got)
	}
	if got := last(*l1); got != "first utterance second thoughts" {
		t.Fatalf("want merged partial rendered, got %q", got)
	}
}

func TestOverlapCommit(t *testing.T) {
	t.Parallel()

	r, _, _ := captureRenderer(Config{CharsPerLine: 80})
	r.OnText("I went to the store", true)
	r.OnText("to the store yesterday", true)

	if got := r.History(); got != "I went to the store yesterday" {
		t.Fatalf("want merged history, got %q", got)
	}
}

func TestHistoryCappedAtFourLines(t *testing.T) {
	t.Parallel()

	r, _, _ := captureRenderer(Config{CharsPerLine: 10})
	// Each commit wraps to ~2 lines at width 10.
	r.OnText("alpha beta gamma", true)
	r.OnText("delta epsilon zeta", true)
	r.OnText("eta theta iota", true)

	lines := WrapLines(r.History(), 10)
	if len(lines) > 4 {
		t.Fatalf("want at most 4 history lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(r.History(), "iota") {
		t.Fatalf("want newest text retained, got %q", r.History())
	}
	if strings.Contains(r.History(), "alpha") {
		t.Fatalf("want oldest line trimmed, got %q", r.History())
	}
}

func TestLineWidthInvariant(t *testing.T) {
	t.Parallel()

	r, l1, l2 := captureRenderer(Config{CharsPerLine: 12})
	inputs := []struct {
		text  string
		final bool
	}{
		{"the quick", false},
		{"the quick brown", false},
		{"the quick brown fox jumps", false},
		{"the quick brown fox jumps over the lazy dog", true},
	}
	for _, in := range inputs {
		r.OnText(in.text, in.final)
	}
	for _, line := range append(append([]string{}, *l1...), *l2...) {
		if len([]rune(line)) > 12 {
			t.Fatalf("line exceeds width: %q", line)
		}
	}
}

func TestBlockSnapPinning(t *testing.T) {
	t.Parallel()

	r, l1, l2 := captureRenderer(Config{CharsPerLine: 16})

	// Two-line layout pins the top line.
	r.OnText("aaa bbb ccc ddddddd", false)
	if got := last(*l1); got != "aaa bbb ccc" {
		t.Fatalf("want line1 %q, got %q", "aaa bbb ccc", got)
	}

	// The revision re-wraps to a longer target1 that starts with the pinned
	// line; the pinned line must be rendered instead.
	r.OnText("aaa bbb ccc dd eeee", false)
	if got := last(*l1); got != "aaa bbb ccc" {
		t.Fatalf("want pinned line1 %q, got %q", "aaa bbb ccc", got)
	}
	if got := last(*l2); got != "eeee" {
		t.Fatalf("want line2 %q, got %q", "eeee", got)
	}

	// A revision with a different top line updates the pin.
	r.OnText("zzz yyy xxx wwww vvv", false)
	if got := last(*l1); got != "zzz yyy xxx wwww" {
		t.Fatalf("want pin replaced, got %q", got)
	}
}

func TestPrefilter(t *testing.T) {
	t.Parallel()

	t.Run("blank and short inputs dropped", func(t *testing.T) {
		t.Parallel()
		r, l1, _ := captureRenderer(Config{CharsPerLine: 40})
		r.OnText("", true)
		r.OnText("   ", true)
		r.OnText("a", true)
		if len(*l1) != 0 {
			t.Fatalf("want no renders, got %v", *l1)
		}
		if r.History() != "" {
			t.Fatalf("want empty history, got %q", r.History())
		}
	})

	t.Run("silence hallucination dropped", func(t *testing.T) {
		t.Parallel()
		r, _, _ := captureRenderer(Config{CharsPerLine: 40})
		r.OnText("Thank you.", true)
		r.OnText("thank you", true)
		if r.History() != "" {
			t.Fatalf("want hallucinations dropped, got %q", r.History())
		}
	})

	t.Run("audio tags stripped when hidden", func(t *testing.T) {
		t.Parallel()
		r, _, _ := captureRenderer(Config{CharsPerLine: 40, ShowAudioTags: false})
		r.OnText("[music] hello there", true)
		if got := r.History(); got != "hello there" {
			t.Fatalf("want tags stripped, got %q", got)
		}
	})

	t.Run("audio tags kept when shown", func(t *testing.T) {
		t.Parallel()
		r, _, _ := captureRenderer(Config{CharsPerLine: 40, ShowAudioTags: true})
		r.OnText("[music] hello there", true)
		if got := r.History(); got != "[music] hello there" {
			t.Fatalf("want tags kept, got %q", got)
		}
	})

	t.Run("profanity masked whole-word", func(t *testing.T) {
		t.Parallel()
		r, _, _ := captureRenderer(Config{CharsPerLine: 40, FilterProfanity: true})
		r.OnText("damn that classic movie", true)
		if got := r.History(); got != "*** that classic movie" {
			t.Fatalf("want masked profanity, got %q", got)
		}

		r2, _, _ := captureRenderer(Config{CharsPerLine: 40, FilterProfanity: true})
		r2.OnText("the classic film", true)
		if got := r2.History(); got != "the classic film" {
			t.Fatalf("want substrings untouched, got %q", got)
		}
	})

	t.Run("transform hook applies", func(t *testing.T) {
		t.Parallel()
		r, _, _ := captureRenderer(Config{
			CharsPerLine: 40,
			Transform:    strings.ToUpper,
		})
		r.OnText("hello", true)
		if got := r.History(); got != "HELLO" {
			t.Fatalf("want transformed text, got %q", got)
		}
	})
}

func TestSetCharsPerLine(t *testing.T) {
	t.Parallel()

	r, l1, l2 := captureRenderer(Config{CharsPerLine: 80})
	r.OnText("the quick brown fox jumps over the lazy dog", true)
	r.SetCharsPerLine(10)
	r.OnText("and keeps running", true)

	for _, line := range append([]string{last(*l1)}, last(*l2)) {
		if len([]rune(line)) > 10 {
			t.Fatalf("line exceeds new width: %q", line)
		}
	}
}
