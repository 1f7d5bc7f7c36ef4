package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80

	// minCorrectableLen skips very short tokens — articles and particles are
	// phonetically close to almost everything.
	minCorrectableLen = 3
)

// Corrector substitutes glossary terms for phonetically similar
// misrecognitions. Whisper reliably mangles proper nouns and project jargon;
// a small user glossary plus Double Metaphone alignment fixes single-word
// slips ("graphana" for "Grafana") without any model round-trip. Each
// whitespace token is matched on its own: a term split across several tokens
// ("cube urn eighties" for "kubernetes") is not rejoined and stays as it is.
//
// The algorithm, per word token:
//
//  1. Exact (case-insensitive) glossary hits are left alone.
//  2. Double Metaphone codes of the token are compared with each glossary
//     entry's codes. Entries sharing a code become candidates.
//  3. The candidate with the highest Jaro-Winkler similarity against the
//     token wins, provided it clears the threshold.
//
// Corrector is read-only after construction and safe for concurrent use.
type Corrector struct {
	glossary  []string
	codes     []map[string]struct{}
	threshold float64
}

// CorrectorOption is a functional option for configuring a [Corrector].
type CorrectorOption func(*Corrector)

// WithThreshold sets the minimum Jaro-Winkler score for a phonetic candidate
// to be accepted. Default: 0.80.
func WithThreshold(threshold float64) CorrectorOption {
	return func(c *Corrector) { c.threshold = threshold }
}

// NewCorrector creates a Corrector for the given glossary terms. Empty and
// duplicate terms are ignored.
func NewCorrector(glossary []string, opts ...CorrectorOption) *Corrector {
	c := &Corrector{threshold: defaultPhoneticThreshold}
	seen := make(map[string]struct{}, len(glossary))
	for _, term := range glossary {
		term = strings.TrimSpace(term)
		key := strings.ToLower(term)
		if term == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		c.glossary = append(c.glossary, term)
		c.codes = append(c.codes, metaphoneCodes(key))
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct returns text with glossary substitutions applied. Punctuation
// attached to a corrected word is preserved.
func (c *Corrector) Correct(text string) string {
	if len(c.glossary) == 0 || strings.TrimSpace(text) == "" {
		return text
	}

	words := strings.Fields(text)
	changed := false
	for i, word := range words {
		core, leading, trailing := splitPunct(word)
		if len(core) < minCorrectableLen {
			continue
		}
		if replacement, ok := c.match(core); ok {
			words[i] = leading + replacement + trailing
			changed = true
		}
	}
	if !changed {
		return text
	}
	return strings.Join(words, " ")
}

// match finds the best glossary substitution for a single word, or reports
// that the word should be left alone.
func (c *Corrector) match(word string) (string, bool) {
	lower := strings.ToLower(word)
	wordCodes := metaphoneCodes(lower)

	var (
		best      string
		bestScore float64
	)
	for i, term := range c.glossary {
		termLower := strings.ToLower(term)
		if lower == termLower {
			return "", false
		}
		if !codesOverlap(wordCodes, c.codes[i]) {
			continue
		}
		if score := matchr.JaroWinkler(lower, termLower, false); score >= c.threshold && score > bestScore {
			best, bestScore = term, score
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// metaphoneCodes returns the set of Double Metaphone codes for s. Empty codes
// (produced when the word contains no consonants) are excluded.
func metaphoneCodes(s string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, sec := matchr.DoubleMetaphone(s)
	if p != "" {
		codes[p] = struct{}{}
	}
	if sec != "" {
		codes[sec] = struct{}{}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// splitPunct separates leading and trailing punctuation from a word token.
func splitPunct(word string) (core, leading, trailing string) {
	core = word
	for len(core) > 0 && strings.ContainsRune(`"'(`, rune(core[0])) {
		leading += string(core[0])
		core = core[1:]
	}
	for len(core) > 0 && strings.ContainsRune(`.,?!"')`, rune(core[len(core)-1])) {
		trailing = string(core[len(core)-1]) + trailing
		core = core[:len(core)-1]
	}
	return core, leading, trailing
}
