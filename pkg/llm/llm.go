// Package llm provides HTTP clients for the text generators and embedding
// models the advisor talks to.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// Request is a single prompt sent to a Generator.
type Request struct {
	System      string
	Prompt      string
	JSON        bool // ask the backend for a JSON-only response when supported
	Temperature float64
	MaxTokens   int
}

// Generator turns a prompt into free text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options configures an HTTP-backed client.
type Options struct {
	BaseURL string
	Model   string
	APIKey  string
	// Timeout bounds one HTTP exchange.
	Timeout time.Duration
	// RPS and Burst configure client-side rate limiting; RPS <= 0 disables it.
	RPS   float64
	Burst int
}

// ErrEmptyResponse is returned when a backend answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// StatusError is a non-2xx answer.
type StatusError struct {
	Backend string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Backend, e.Code, e.Body)
}

// Temporary reports whether retrying might help.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type transport struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
}

func newTransport(name string, opts Options) transport {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return transport{
		name: name,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// postJSON sends body as JSON and decodes a 2xx answer into out.
func (t transport) postJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit: %w", t.name, err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", t.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", t.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", t.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Backend: t.name, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", t.name, err)
	}
	return nil
}

// New builds the generator for provider: "ollama", "gemini" or "openai".
func New(provider string, opts Options) (Generator, error) {
	switch strings.ToLower(provider) {
	case "ollama":
		return NewOllama(opts), nil
	case "gemini":
		return NewGemini(opts)
	case "openai":
		return NewOpenAI(opts)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", provider)
	}
}
