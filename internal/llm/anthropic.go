package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider speaks the Messages API, where tool_use blocks arrive
// interleaved with text blocks in one content array.
type AnthropicProvider struct {
	client    anthropic.Client
	maxTokens int
}

// NewAnthropicProvider builds a provider authenticated with apiKey. Extra
// request options (base URL, HTTP client, retries) are passed through.
func NewAnthropicProvider(apiKey string, maxTokens int, opts ...option.RequestOption) *AnthropicProvider {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		maxTokens: maxTokens,
	}
}

func (p *AnthropicProvider) ID() string {
	return string(FamilyAnthropic)
}

func (p *AnthropicProvider) Dispatch(ctx context.Context, req *Request) (*Reply, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(p.maxTokens),
		Messages:  anthropicMessages(req.Turns),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			toolParam := anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.Schema["properties"],
				},
			}
			if required, ok := tool.Schema["required"].([]string); ok {
				toolParam.InputSchema.Required = required
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = tools
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	reply := &Reply{}
	var text []string
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text = append(text, b.Text)
		case anthropic.ToolUseBlock:
			reply.ToolCalls = append(reply.ToolCalls, RawToolCall{
				Name:  b.Name,
				Input: json.RawMessage(b.Input),
			})
		}
	}
	reply.Text = strings.TrimSpace(strings.Join(text, "\n"))
	return reply, nil
}

func (p *AnthropicProvider) ListModels(ctx context.Context) ([]Model, error) {
	page, err := p.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("list anthropic models: %w", err)
	}
	models := make([]Model, 0, len(page.Data))
	for _, info := range page.Data {
		models = append(models, Model{
			ID:          info.ID,
			Name:        info.ID,
			Family:      FamilyAnthropic,
			DisplayName: info.DisplayName,
		})
	}
	return models, nil
}

func anthropicMessages(turns []Turn) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, turn := range turns {
		block := anthropic.NewTextBlock(turn.Content)
		if turn.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}
