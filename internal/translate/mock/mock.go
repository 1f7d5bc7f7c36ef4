// Package mock provides a test double for the translate package.
package mock

import (
	"context"
	"sync"

	"github.com/tmkbharathi/LiveCaptions/internal/translate"
)

// Translator is a mock implementation of translate.Translator. Each call
// returns Result (or the input prefixed with "tr:" when Result is empty).
type Translator struct {
	mu sync.Mutex

	// Result, when non-empty, is returned by every Translate call.
	Result string

	// Err, if non-nil, is returned by every Translate call.
	Err error

	// Calls records every text passed to Translate.
	Calls []string
}

// Translate records the call and returns the scripted result.
func (t *Translator) Translate(_ context.Context, text string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = append(t.Calls, text)
	if t.Err != nil {
		return "", t.Err
	}
	if t.Result != "" {
		return t.Result, nil
	}
	return "tr:" + text, nil
}

// Ensure Translator implements translate.Translator at compile time.
var _ translate.Translator = (*Translator)(nil)
