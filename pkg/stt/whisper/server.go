// Package whisper provides whisper.cpp-backed implementations of the
// [stt.Engine] capability.
//
// Two engines are available:
//
//   - [NativeEngine] — loads the model in-process through the whisper.cpp
//     CGO bindings. Lowest latency; requires libwhisper at link time.
//   - [ServerEngine] — talks to a running whisper-server binary (which
//     exposes a REST API at POST /inference) by wrapping each PCM snapshot
//     in a WAV container and submitting it as a multipart upload. No CGO
//     needed; useful when the model runs on another machine.
//
// Both engines are batch: every Transcribe call is a full inference over the
// supplied audio, and the pipeline's worker guarantees the calls never
// overlap.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/tmkbharathi/LiveCaptions/pkg/stt"
)

const (
	defaultLanguage = "en"
	serverTimeout   = 30 * time.Second
)

// Compile-time assertion that ServerEngine satisfies stt.Engine.
var _ stt.Engine = (*ServerEngine)(nil)

// ServerEngine implements stt.Engine backed by a whisper.cpp HTTP server.
type ServerEngine struct {
	serverURL  string
	language   string
	model      string
	httpClient *http.Client
}

// ServerOption is a functional option for configuring a ServerEngine.
type ServerOption func(*ServerEngine)

// WithServerLanguage sets the language hint sent with every inference
// request. Defaults to "en".
func WithServerLanguage(lang string) ServerOption {
	return func(e *ServerEngine) { e.language = lang }
}

// WithServerModel sets the model identifier forwarded to the server (e.g.,
// "base.en"). When empty the server uses whichever model it was started
// with — this is the default.
func WithServerModel(model string) ServerOption {
	return func(e *ServerEngine) { e.model = model }
}

// NewServer creates a ServerEngine that connects to the whisper.cpp HTTP
// server at serverURL (e.g., "http://localhost:8080"). serverURL must be
// non-empty.
func NewServer(serverURL string, opts ...ServerOption) (*ServerEngine, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	e := &ServerEngine{
		serverURL:  serverURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: serverTimeout},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Load probes the server's health endpoint. The modelRef is ignored — the
// server owns its model. Unreachable servers wrap [stt.ErrModel] so startup
// failures surface the same way as a missing local model.
func (e *ServerEngine) Load(ctx context.Context, _ string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.serverURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("whisper: create health request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: whisper-server unreachable at %s: %w", stt.ErrModel, e.serverURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: whisper-server health returned HTTP %d", stt.ErrModel, resp.StatusCode)
	}
	return nil
}

// Transcribe encodes pcm as WAV and POSTs it to the /inference endpoint as
// multipart/form-data, returning the recognised text as a single untagged
// segment.
func (e *ServerEngine) Transcribe(ctx context.Context, pcm []byte) ([]stt.Segment, error) {
	wav := encodeWAV(pcm, 16000, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("whisper: write wav data: %w", err)
	}
	if e.language != "" {
		if err := mw.WriteField("language", e.language); err != nil {
			return nil, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if e.model != "" {
		if err := mw.WriteField("model", e.model); err != nil {
			return nil, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return nil, nil
	}
	return []stt.Segment{{Text: text}}, nil
}

// Close is a no-op; the server owns all model resources.
func (e *ServerEngine) Close() error { return nil }
