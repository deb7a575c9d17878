package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaProvider talks to a local Ollama daemon over /api/chat. It does not
// offer native tools; tool calls only arrive embedded in the JSON envelope.
type OllamaProvider struct {
	host   string
	client *http.Client
}

// NewOllamaProvider builds a provider for the daemon at host.
func NewOllamaProvider(host string, client *http.Client) *OllamaProvider {
	return &OllamaProvider{
		host:   strings.TrimRight(host, "/"),
		client: pickHTTPClient(client),
	}
}

func (p *OllamaProvider) ID() string {
	return string(FamilyOllama)
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (p *OllamaProvider) Dispatch(ctx context.Context, req *Request) (*Reply, error) {
	messages := make([]ollamaMessage, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	for _, turn := range req.Turns {
		messages = append(messages, ollamaMessage{Role: string(turn.Role), Content: turn.Content})
	}
	payload := map[string]any{
		"model":    req.Model,
		"messages": messages,
		"stream":   false,
	}

	var parsed struct {
		Message ollamaMessage `json:"message"`
		Done    bool          `json:"done"`
	}
	if err := p.do(ctx, http.MethodPost, "/api/chat", payload, &parsed); err != nil {
		return nil, err
	}
	return &Reply{Text: strings.TrimSpace(parsed.Message.Content)}, nil
}

func (p *OllamaProvider) ListModels(ctx context.Context) ([]Model, error) {
	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := p.do(ctx, http.MethodGet, "/api/tags", nil, &parsed); err != nil {
		return nil, fmt.Errorf("list ollama models: %w", err)
	}
	models := make([]Model, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		models = append(models, Model{
			ID:          ollamaPrefix + m.Name,
			Name:        m.Name,
			Family:      FamilyOllama,
			DisplayName: m.Name + " (local)",
		})
	}
	return models, nil
}

func (p *OllamaProvider) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.host+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &statusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", errMalformedReply, err)
	}
	return nil
}
