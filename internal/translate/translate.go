// Package translate provides the optional caption translation hook. The
// renderer treats the hook as an opaque text transform; this package supplies
// an LLM-backed implementation plus a mock for tests.
package translate

import "context"

// Translator converts caption text into the configured target language.
//
// Implementations must be safe for concurrent use.
type Translator interface {
	// Translate returns text rendered in the target language. On failure the
	// caller is expected to fall back to the untranslated text.
	Translate(ctx context.Context, text string) (string, error)
}
