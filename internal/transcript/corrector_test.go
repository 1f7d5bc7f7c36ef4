package transcript

import "testing"

func TestCorrector(t *testing.T) {
	t.Parallel()

	c := NewCorrector([]string{"Kubernetes", "Grafana", "PostgreSQL"})

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "term split across tokens left alone",
			in:   "we deployed coober netties yesterday",
			want: "we deployed coober netties yesterday",
		},
		{
			name: "close single-word slip corrected",
			in:   "check the graphana dashboard",
			want: "check the Grafana dashboard",
		},
		{
			name: "exact term left alone",
			in:   "Grafana is already fine",
			want: "Grafana is already fine",
		},
		{
			name: "punctuation preserved",
			in:   "restart graphana, please",
			want: "restart Grafana, please",
		},
		{
			name: "unrelated words untouched",
			in:   "the weather is nice today",
			want: "the weather is nice today",
		},
		{
			name: "short tokens skipped",
			in:   "go to it",
			want: "go to it",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := c.Correct(tc.in); got != tc.want {
				t.Fatalf("want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCorrectorEmptyGlossary(t *testing.T) {
	t.Parallel()

	c := NewCorrector(nil)
	if got := c.Correct("anything at all"); got != "anything at all" {
		t.Fatalf("want passthrough, got %q", got)
	}
}

func TestCorrectorThreshold(t *testing.T) {
	t.Parallel()

	// With an impossible threshold nothing is ever corrected.
	c := NewCorrector([]string{"Grafana"}, WithThreshold(1.1))
	if got := c.Correct("open graphana now"); got != "open graphana now" {
		t.Fatalf("want passthrough at threshold 1.1, got %q", got)
	}
}
