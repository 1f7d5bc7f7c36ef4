package render

import (
	"strings"
	"testing"
)

func TestMergeProperties(t *testing.T) {
	t.Parallel()

	t.Run("empty addition returns history unchanged", func(t *testing.T) {
		t.Parallel()
		if got := Merge("I went home", ""); got != "I went home" {
			t.Fatalf("want history unchanged, got %q", got)
		}
		if got := Merge("I went home", "   "); got != "I went home" {
			t.Fatalf("want history unchanged for whitespace, got %q", got)
		}
	})

	t.Run("empty history returns addition", func(t *testing.T) {
		t.Parallel()
		if got := Merge("", "hello world"); got != "hello world" {
			t.Fatalf("want addition, got %q", got)
		}
	})

	t.Run("empty add is idempotent", func(t *testing.T) {
		t.Parallel()
		once := Merge("I went to the store", "to the store yesterday")
		if got := Merge(once, ""); got != once {
			t.Fatalf("want %q, got %q", once, got)
		}
	})

	t.Run("full duplicate is suppressed", func(t *testing.T) {
		t.Parallel()
		h := "I went to the store"
		if got := Merge(h, h); got != h {
			t.Fatalf("want %q, got %q", h, got)
		}
	})

	t.Run("duplicate up to comparison form", func(t *testing.T) {
		t.Parallel()
		got := Merge("I went to the store.", "i went to the store")
		if len(strings.Fields(got)) != 5 {
			t.Fatalf("want 5 words, got %q", got)
		}
	})
}

func TestMergeAnchor(t *testing.T) {
	t.Parallel()

	t.Run("chunk boundary overlap", func(t *testing.T) {
		t.Parallel()
		got := Merge("I went to the store", "to the store yesterday")
		if got != "I went to the store yesterday" {
			t.Fatalf("want overlap spliced, got %q", got)
		}
	})

	t.Run("revision replaces anchored tail", func(t *testing.T) {
		t.Parallel()
		got := Merge("the cat sat on a", "sat on the mat")
		if got != "the cat sat on the mat" {
			t.Fatalf("want anchored revision, got %q", got)
		}
	})

	t.Run("latest anchor position wins", func(t *testing.T) {
		t.Parallel()
		// "so then" appears twice in history; the later occurrence must be
		// the splice point.
		got := Merge("so then he left so then she spoke", "so then everyone cheered")
		if got != "so then he left so then everyone cheered" {
			t.Fatalf("want latest occurrence replaced, got %q", got)
		}
	})

	t.Run("anchor is punctuation-insensitive", func(t *testing.T) {
		t.Parallel()
		got := Merge(`I said "stop, now" please`, "stop now everyone")
		if got != "I said stop now everyone" {
			t.Fatalf("want punctuation-insensitive anchor, got %q", got)
		}
	})
}

func TestMergeSuffixPrefix(t *testing.T) {
	t.Parallel()

	t.Run("single word overlap", func(t *testing.T) {
		t.Parallel()
		got := Merge("we walked home", "home again")
		if got != "we walked home again" {
			t.Fatalf("want single-word overlap dropped, got %q", got)
		}
	})

	t.Run("largest overlap wins", func(t *testing.T) {
		t.Parallel()
		// Suffix "la la" vs prefix "la la": the two-word overlap, not the
		// one-word one, is dropped. (The anchor pass already matches it at
		// the tail, so the suffix-prefix pass is not reached here.)
		got := Merge("sing la la", "la la land")
		if got != "sing la la land" {
			t.Fatalf("want largest k kept, got %q", got)
		}
	})

	t.Run("no overlap appends with a space", func(t *testing.T) {
		t.Parallel()
		got := Merge("first sentence", "second sentence")
		if got != "first sentence second sentence" {
			t.Fatalf("want plain append, got %q", got)
		}
	})
}

func TestCompareForm(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"Hello,", "hello"},
		{`"quoted"`, "quoted"},
		{"what?!", "what"},
		{"it's", "it's"}, // interior apostrophe survives
		{"'tis", "tis"},
		{"Store.", "store"},
	}
	for _, tc := range tests {
		if got := compareForm(tc.in); got != tc.want {
			t.Fatalf("compareForm(%q): want %q, got %q", tc.in, tc.want, got)
		}
	}
}
