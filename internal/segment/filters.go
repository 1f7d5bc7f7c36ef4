package segment

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// audioTagRe matches bracketed audio-event annotations the model emits for
// non-speech sounds, e.g. "[music]" or "(laughs)".
var audioTagRe = regexp.MustCompile(`\[.*?\]|\(.*?\)`)

// StripAudioTags removes bracketed audio-event annotations and the
// musical-note glyph, then trims surrounding whitespace.
func StripAudioTags(s string) string {
	s = audioTagRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "♪", "")
	return strings.TrimSpace(s)
}

// isSilenceHallucination reports whether text is one of the phrases whisper
// reliably invents for near-silent audio.
func isSilenceHallucination(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "thank you", "thank you.":
		return true
	}
	return false
}

// applyFilters runs the ordered text filters over one trimmed recognition
// result. It returns the text to continue with and whether the update
// survives. Caller holds s.mu.
//
// A "pure tag" is an output that is nothing but audio-event annotations
// ("[music]", "(applause)", "♪♪"). A one-off pure tag is noise, but a run of
// them means the model keeps hearing the same non-speech sound — after
// TagHoldS seconds the tag is let through so the user sees it.
func (s *Segmenter) applyFilters(raw string) (string, bool) {
	stripped := StripAudioTags(raw)
	isPureTag := utf8.RuneCountInString(stripped) < 2 && utf8.RuneCountInString(raw) >= 2

	text := raw
	if !isPureTag {
		s.tagStreakStart = time.Time{}
		text = stripped
		if utf8.RuneCountInString(text) < 2 {
			s.recordDrop("too_short")
			return "", false
		}
	} else {
		if s.tagStreakStart.IsZero() {
			s.tagStreakStart = time.Now()
		}
		if time.Since(s.tagStreakStart) < time.Duration(s.cfg.TagHoldS*float64(time.Second)) {
			s.recordDrop("pure_tag")
			return "", false
		}
		// The streak has persisted; pass the raw tag through.
	}

	if isSilenceHallucination(text) {
		s.recordDrop("hallucination")
		return "", false
	}
	return text, true
}

func (s *Segmenter) recordDrop(reason string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordDrop(context.Background(), reason)
}
