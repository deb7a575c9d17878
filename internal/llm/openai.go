package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIProvider speaks Chat Completions, where tool calls arrive in a
// separate tool_calls field next to the message content.
type OpenAIProvider struct {
	client    openai.Client
	maxTokens int
}

// NewOpenAIProvider builds a provider authenticated with apiKey.
func NewOpenAIProvider(apiKey string, maxTokens int, opts ...option.RequestOption) *OpenAIProvider {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIProvider{
		client:    openai.NewClient(opts...),
		maxTokens: maxTokens,
	}
}

func (p *OpenAIProvider) ID() string {
	return string(FamilyOpenAI)
}

func (p *OpenAIProvider) Dispatch(ctx context.Context, req *Request) (*Reply, error) {
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(req.Model),
		Messages:            openAIMessages(req.System, req.Turns),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Function: shared.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters:  shared.FunctionParameters(tool.Schema),
				},
			})
		}
		params.Tools = tools
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", errMalformedReply)
	}

	msg := completion.Choices[0].Message
	reply := &Reply{Text: strings.TrimSpace(msg.Content)}
	for _, call := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, RawToolCall{
			Name:  call.Function.Name,
			Input: json.RawMessage(call.Function.Arguments),
		})
	}
	return reply, nil
}

func (p *OpenAIProvider) ListModels(ctx context.Context) ([]Model, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list openai models: %w", err)
	}
	models := make([]Model, 0, len(page.Data))
	for _, m := range page.Data {
		if !strings.HasPrefix(m.ID, "gpt-") && !strings.HasPrefix(m.ID, "o") {
			continue
		}
		models = append(models, Model{ID: m.ID, Name: m.ID, Family: FamilyOpenAI, DisplayName: m.ID})
	}
	return models, nil
}

func openAIMessages(system string, turns []Turn) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, turn := range turns {
		if turn.Role == RoleAssistant {
			out = append(out, openai.AssistantMessage(turn.Content))
			continue
		}
		out = append(out, openai.UserMessage(turn.Content))
	}
	return out
}
