package llm

import (
	"context"
	"strings"
)

// OllamaClient talks to a local Ollama server for both generation and
// embeddings.
type OllamaClient struct {
	baseURL string
	model   string
	http    transport
}

// NewOllama creates an Ollama client. BaseURL defaults to localhost.
func NewOllama(opts Options) *OllamaClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "http://localhost:11434"
	}
	return &OllamaClient{baseURL: base, model: opts.Model, http: newTransport("ollama", opts)}
}

type ollamaGenerateReq struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Format  string         `json:"format,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResp struct {
	Response string `json:"response"`
}

// Generate implements Generator.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	body := ollamaGenerateReq{Model: c.model, Prompt: req.Prompt, System: req.System}
	if req.JSON {
		body.Format = "json"
	}
	opts := map[string]any{}
	if req.Temperature > 0 {
		opts["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) > 0 {
		body.Options = opts
	}

	var out ollamaGenerateResp
	if err := c.http.postJSON(ctx, c.baseURL+"/api/generate", nil, body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", ErrEmptyResponse
	}
	return out.Response, nil
}

type ollamaEmbedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed implements Embedder.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var out ollamaEmbedResp
	if err := c.http.postJSON(ctx, c.baseURL+"/api/embeddings", nil, ollamaEmbedReq{Model: c.model, Prompt: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, ErrEmptyResponse
	}
	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
