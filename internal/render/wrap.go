package render

import "strings"

// WrapLines greedy-wraps text into lines of at most width characters,
// breaking on word boundaries. Words longer than the width are hard-split so
// no returned line ever exceeds it. A non-positive width yields the whole
// text as one line; blank text yields no lines.
func WrapLines(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var lines []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
		}
	}

	for _, word := range words {
		// Hard-split words that cannot fit on any line.
		for len([]rune(word)) > width {
			flush()
			r := []rune(word)
			lines = append(lines, string(r[:width]))
			word = string(r[width:])
		}
		if word == "" {
			continue
		}

		switch {
		case cur.Len() == 0:
			cur.WriteString(word)
		case len([]rune(cur.String()))+1+len([]rune(word)) <= width:
			cur.WriteByte(' ')
			cur.WriteString(word)
		default:
			flush()
			cur.WriteString(word)
		}
	}
	flush()
	return lines
}
