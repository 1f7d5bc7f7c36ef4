package render

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tmkbharathi/LiveCaptions/internal/segment"
)

// defaultMaxHistoryLines caps the committed history; once a commit wraps to
// more lines than this, whole lines are trimmed from the front.
const defaultMaxHistoryLines = 4

// profanityList is the fixed blacklist masked when profanity filtering is
// enabled. Matching is whole-word and case-insensitive.
var profanityList = []string{
	"ass", "asshole", "bastard", "bitch", "cock", "crap", "cunt",
	"damn", "dick", "fuck", "piss", "pussy", "shit", "slut", "whore",
}

var profanityRe = func() *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(profanityList, "|") + `)\b`)
}()

// Config configures a [Renderer].
type Config struct {
	// CharsPerLine is the wrap width of both caption lines. The UI owns this
	// value and updates it via [Renderer.SetCharsPerLine] whenever the window
	// width or font size changes; the renderer never derives it itself.
	CharsPerLine int

	// ShowAudioTags keeps bracketed audio-event tags and ♪ in the output.
	// When false they are stripped before display.
	ShowAudioTags bool

	// FilterProfanity masks blacklisted words with *** before display.
	FilterProfanity bool

	// Transform, when non-nil, is applied to every surviving input opaquely
	// (the translation hook). It runs after tag stripping and profanity
	// masking.
	Transform func(string) string

	// SetLine1 and SetLine2 deliver the rendered lines. The empty string is
	// never passed — blank lines are normalised to a single space so the
	// display cannot collapse vertically.
	SetLine1 func(string)
	SetLine2 func(string)
}

// Renderer accumulates committed caption history and drives the two-line
// block-snap display.
//
// OnText must be called from a single logical thread; the pipeline serialises
// all calls through its dispatcher. The mutex only guards against concurrent
// preference updates (SetCharsPerLine and friends).
type Renderer struct {
	mu sync.Mutex

	charsPerLine    int
	maxHistoryLines int
	showAudioTags   bool
	filterProfanity bool
	transform       func(string) string
	setLine1        func(string)
	setLine2        func(string)

	history string
	pinned  string
}

// New creates a Renderer. Missing line setters default to no-ops.
func New(cfg Config) *Renderer {
	if cfg.CharsPerLine <= 0 {
		cfg.CharsPerLine = 64
	}
	noop := func(string) {}
	if cfg.SetLine1 == nil {
		cfg.SetLine1 = noop
	}
	if cfg.SetLine2 == nil {
		cfg.SetLine2 = noop
	}
	return &Renderer{
		charsPerLine:    cfg.CharsPerLine,
		maxHistoryLines: defaultMaxHistoryLines,
		showAudioTags:   cfg.ShowAudioTags,
		filterProfanity: cfg.FilterProfanity,
		transform:       cfg.Transform,
		setLine1:        cfg.SetLine1,
		setLine2:        cfg.SetLine2,
	}
}

// SetCharsPerLine updates the wrap width. Takes effect on the next render.
func (r *Renderer) SetCharsPerLine(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.charsPerLine = n
}

// SetShowAudioTags updates the tag-stripping preference.
func (r *Renderer) SetShowAudioTags(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.showAudioTags = v
}

// SetFilterProfanity updates the profanity-masking preference.
func (r *Renderer) SetFilterProfanity(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filterProfanity = v
}

// History returns the committed caption history.
func (r *Renderer) History() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history
}

// OnText consumes one caption event. Final text is merged into history; a
// partial is rendered over the unchanged history.
func (r *Renderer) OnText(text string, final bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	text, ok := r.prefilter(text)
	if !ok {
		return
	}

	if final {
		r.history = Merge(r.history, text)
		lines := WrapLines(r.history, r.charsPerLine)
		if len(lines) > r.maxHistoryLines {
			lines = lines[len(lines)-r.maxHistoryLines:]
			r.history = strings.Join(lines, " ")
		}
		r.render(lines)
		return
	}

	r.render(WrapLines(Merge(r.history, text), r.charsPerLine))
}

// prefilter drops blank, too-short, and known-hallucination inputs, then
// applies the optional tag stripping, profanity masking, and transform hook.
// Caller holds r.mu.
func (r *Renderer) prefilter(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < 2 {
		return "", false
	}
	switch strings.ToLower(text) {
	case "thank you", "thank you.":
		return "", false
	}

	if !r.showAudioTags {
		text = segment.StripAudioTags(text)
		if text == "" {
			return "", false
		}
	}
	if r.filterProfanity {
		text = profanityRe.ReplaceAllString(text, "***")
	}
	if r.transform != nil {
		text = r.transform(text)
		if strings.TrimSpace(text) == "" {
			return "", false
		}
	}
	return text, true
}

// render applies the two-line block-snap layout. Caller holds r.mu.
func (r *Renderer) render(lines []string) {
	var line1, line2 string
	switch {
	case len(lines) == 0:
		r.pinned = ""
	case len(lines) == 1:
		line1 = lines[0]
		r.pinned = line1
	default:
		target1 := lines[len(lines)-2]
		line2 = lines[len(lines)-1]

		// Block snap: while the previously shown top line is still a prefix
		// of the freshly wrapped one, keep showing it — revisions that only
		// grow the tail must not re-flow the line the viewer is reading.
		if r.pinned != "" &&
			strings.HasPrefix(strings.ToLower(target1), strings.ToLower(r.pinned)) {
			line1 = r.pinned
		} else {
			r.pinned = target1
			line1 = target1
		}
	}

	r.setLine1(padBlank(line1))
	r.setLine2(padBlank(line2))
}

// padBlank normalises the empty string to a single space so the UI rows keep
// their height.
func padBlank(s string) string {
	if s == "" {
		return " "
	}
	return s
}
