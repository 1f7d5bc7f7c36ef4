package translate

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
)

// systemPrompt keeps the model on task: captions must come back as bare text,
// with no commentary, and fast.
const systemPrompt = "You are a live-caption translator. Translate the user's text into %s. " +
	"Reply with the translation only — no quotes, no explanations. " +
	"Preserve sentence fragments as fragments; the text is a rolling caption, not a document."

// LLMTranslator implements [Translator] by wrapping
// github.com/mozilla-ai/any-llm-go, so any of its supported local or hosted
// backends (ollama, llamacpp, openai, mistral, groq) can translate captions.
type LLMTranslator struct {
	backend  anyllmlib.Provider
	model    string
	language string
}

// Ensure LLMTranslator implements Translator at compile time.
var _ Translator = (*LLMTranslator)(nil)

// NewLLM creates an LLMTranslator for the given provider name, model, and
// target language. opts are any-llm-go configuration options (e.g.,
// anyllmlib.WithAPIKey, anyllmlib.WithBaseURL). Without an API key option the
// backend falls back to its usual environment variable.
func NewLLM(providerName, model, targetLanguage string, opts ...anyllmlib.Option) (*LLMTranslator, error) {
	if model == "" {
		return nil, fmt.Errorf("translate: model must not be empty")
	}
	if targetLanguage == "" {
		return nil, fmt.Errorf("translate: targetLanguage must not be empty")
	}

	var (
		backend anyllmlib.Provider
		err     error
	)
	switch strings.ToLower(providerName) {
	case "openai":
		backend, err = anyllmoai.New(opts...)
	case "ollama":
		backend, err = ollama.New(opts...)
	case "llamacpp":
		backend, err = llamacpp.New(opts...)
	case "mistral":
		backend, err = mistral.New(opts...)
	case "groq":
		backend, err = groq.New(opts...)
	default:
		return nil, fmt.Errorf("translate: unsupported provider %q; supported: openai, ollama, llamacpp, mistral, groq", providerName)
	}
	if err != nil {
		return nil, fmt.Errorf("translate: create %q backend: %w", providerName, err)
	}

	return &LLMTranslator{
		backend:  backend,
		model:    model,
		language: targetLanguage,
	}, nil
}

// Translate implements [Translator].
func (t *LLMTranslator) Translate(ctx context.Context, text string) (string, error) {
	resp, err := t.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: t.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: fmt.Sprintf(systemPrompt, t.language)},
			{Role: anyllmlib.RoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("translate: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("translate: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.ContentString()), nil
}
