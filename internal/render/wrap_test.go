package render

import (
	"strings"
	"testing"
)

func TestWrapLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"empty text", "", 10, nil},
		{"single short word", "hi", 10, []string{"hi"}},
		{"fits on one line", "one two", 10, []string{"one two"}},
		{"wraps at boundary", "one two three", 7, []string{"one two", "three"}},
		{"exact width fits", "abcde", 5, []string{"abcde"}},
		{"long word hard split", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"long word mid-sentence", "hi abcdefgh yo", 4, []string{"hi", "abcd", "efgh", "yo"}},
		{"collapses whitespace", "a   b\t c", 10, []string{"a b c"}},
		{"non-positive width single line", "a b c", 0, []string{"a b c"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := WrapLines(tc.text, tc.width)
			if len(got) != len(tc.want) {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("line %d: want %q, got %q", i, tc.want[i], got[i])
				}
			}
		})
	}
}

func TestWrapLinesNeverExceedsWidth(t *testing.T) {
	t.Parallel()

	texts := []string{
		"the quick brown fox jumps over the lazy dog",
		"supercalifragilisticexpialidocious and more",
		strings.Repeat("word ", 50),
	}
	for _, text := range texts {
		for _, width := range []int{1, 3, 8, 20} {
			for _, line := range WrapLines(text, width) {
				if len([]rune(line)) > width {
					t.Fatalf("width %d violated by line %q", width, line)
				}
			}
		}
	}
}
