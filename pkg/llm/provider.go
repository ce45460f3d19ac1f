package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider produces a single chat completion.
type Provider interface {
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionOptions tune one completion request.
type CompletionOptions struct {
	// Temperature defaults to the provider's own default when nil.
	Temperature *float64
	// JSONResponse forces the model to emit a JSON object.
	JSONResponse bool
	MaxTokens    int
}

// Config stores provider connection settings.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	APIURL   string
}

// NewProvider builds a Provider from configuration. Only the OpenAI-compatible
// chat completions API is supported; APIURL can point it at any compatible host.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
}
