// Package render turns the stream of caption events into a stable two-line
// display: it accumulates committed history, splices new text onto it without
// duplicating overlapping words, wraps the result, and pins the top line
// across re-wraps so revisions don't make the display flicker.
package render

import "strings"

// anchorWindow bounds how far back in history the anchor search looks.
const anchorWindow = 100

// maxAnchorLen is the longest anchor tried when aligning an addition against
// history.
const maxAnchorLen = 5

// compareForm returns the punctuation-stripped, case-insensitive form of a
// word used for overlap comparisons: trailing `. , ? ! " '` and leading
// `" '` are removed.
func compareForm(w string) string {
	w = strings.TrimRight(w, `.,?!"'`)
	w = strings.TrimLeft(w, `"'`)
	return strings.ToLower(w)
}

func compareForms(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = compareForm(w)
	}
	return out
}

// Merge splices addition onto history without duplicating overlapping words.
//
// Two alignment passes run in order:
//
//  1. Anchor search: within the last 100 words of history, find a run of
//     k words (k from 5 down to 2) equal to the first k words of the
//     addition in comparison form. The latest match in history wins; at the
//     same position a longer anchor wins. On a hit, history before the
//     anchor is kept and the addition replaces everything from the anchor on.
//  2. Suffix–prefix overlap: the largest k for which the last k words of
//     history equal the first k words of the addition; the addition's
//     overlapping head is dropped.
//
// When neither pass finds an overlap the addition is appended with a space.
// The two passes intentionally have different tie-breaking (latest match vs
// largest k) — do not unify them.
func Merge(history, addition string) string {
	if strings.TrimSpace(addition) == "" {
		return history
	}
	if strings.TrimSpace(history) == "" {
		return addition
	}

	hist := strings.Fields(history)
	add := strings.Fields(addition)
	histCmp := compareForms(hist)
	addCmp := compareForms(add)

	// Pass 1: anchor search, scanning from the back so the first hit is the
	// latest match.
	kMax := min(maxAnchorLen, len(add), len(hist))
	lo := max(0, len(hist)-anchorWindow)
	for i := len(hist) - 2; i >= lo; i-- {
		limit := min(kMax, len(hist)-i)
		for k := limit; k >= 2; k-- {
			if wordsEqual(histCmp[i:i+k], addCmp[:k]) {
				return strings.Join(append(hist[:i:i], add...), " ")
			}
		}
	}

	// Pass 2: strict suffix–prefix overlap, keeping the largest k.
	best := 0
	for k := 1; k <= min(len(hist), len(add)); k++ {
		if wordsEqual(histCmp[len(hist)-k:], addCmp[:k]) {
			best = k
		}
	}
	return strings.Join(append(hist[:len(hist):len(hist)], add[best:]...), " ")
}

func wordsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
