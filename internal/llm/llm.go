// Package llm is the provider gateway: it hides the Anthropic, OpenAI, and
// Ollama wire protocols behind one Provider interface and turns every reply
// into an action.Action.
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultMaxTokens      = 2048
	defaultLLMHTTPTimeout = 3 * time.Minute
	defaultOllamaHost     = "http://localhost:11434"

	// Prompt context budgets, roughly 4 chars/token with headroom for the reply.
	maxContextChars = 60_000
	maxMemoChars    = 8_000
	maxExcerptChars = 600
)

// Role identifies the author of a turn as the providers see it.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one provider-neutral message.
type Turn struct {
	Role    Role
	Content string
}

// Request is what the gateway hands a provider after normalization.
type Request struct {
	Model     string
	System    string
	Turns     []Turn
	Tools     []ToolSpec
	MaxTokens int
}

// RawToolCall is a tool invocation exactly as the provider reported it.
type RawToolCall struct {
	Name  string
	Input json.RawMessage
}

// Reply is the provider-neutral shape of one completion.
type Reply struct {
	Text      string
	ToolCalls []RawToolCall
}

// Provider is one LLM family behind a concrete wire protocol.
type Provider interface {
	ID() string
	Dispatch(ctx context.Context, req *Request) (*Reply, error)
}

// ModelLister is implemented by providers that can list their upstream models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]Model, error)
}

// Config describes how to build the gateway.
type Config struct {
	Model        string
	DefaultModel string
	AnthropicKey string
	OpenAIKey    string
	OllamaHost   string
	Timeout      time.Duration
	MaxTokens    int
	HTTPClient   *http.Client
}

// NewFromEnv builds a Gateway with every provider family that has credentials,
// filling blanks in cfg from the environment.
func NewFromEnv(cfg Config, opts ...GatewayOption) (*Gateway, error) {
	if cfg.AnthropicKey == "" {
		cfg.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.OpenAIKey == "" {
		cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	host := cfg.OllamaHost
	if host == "" {
		if env := os.Getenv("OLLAMA_HOST"); env != "" {
			host = env
		} else {
			host = defaultOllamaHost
		}
	}
	host = strings.TrimRight(host, "/")
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	var providers []Provider
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey, maxTokens))
	}
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey, maxTokens))
	}
	providers = append(providers, NewOllamaProvider(host, pickHTTPClient(cfg.HTTPClient)))

	catalog := NewCatalog(cfg.DefaultModel)
	opts = append([]GatewayOption{WithTimeout(cfg.Timeout), WithModel(cfg.Model)}, opts...)
	return NewGateway(catalog, providers, opts...), nil
}

func pickHTTPClient(custom *http.Client) *http.Client {
	if custom != nil {
		return custom
	}
	// Local models can take well over a minute; callers cancel through ctx.
	return &http.Client{Timeout: defaultLLMHTTPTimeout}
}
