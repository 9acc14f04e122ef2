package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/clarence/internal/retry"
)

// EinoClient adapts an eino tool-calling chat model (OpenAI-compatible or
// DeepSeek) to Client.
type EinoClient struct {
	model    model.ToolCallingChatModel
	name     string
	callback callbacks.Handler
}

// WithCallbacks logs every model run through handler.
func (c *EinoClient) WithCallbacks(handler callbacks.Handler) *EinoClient {
	c.callback = handler
	return c
}

func NewOpenAIClient(ctx context.Context, apiKey, modelName, baseURL string, maxTokens int) (*EinoClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrNotConfigured)
	}
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		Model:     modelName,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return &EinoClient{model: chatModel, name: modelName}, nil
}

func NewDeepSeekClient(ctx context.Context, apiKey, modelName string, maxTokens int) (*EinoClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: DEEPSEEK_API_KEY is not set", ErrNotConfigured)
	}
	chatModel, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
		APIKey:    apiKey,
		Model:     modelName,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create deepseek model: %w", err)
	}
	return &EinoClient{model: chatModel, name: modelName}, nil
}

func (c *EinoClient) bind(req Request) (model.ToolCallingChatModel, error) {
	if len(req.Tools) == 0 {
		return c.model, nil
	}
	infos := make([]*schema.ToolInfo, 0, len(req.Tools))
	for _, t := range req.Tools {
		infos = append(infos, toToolInfo(t))
	}
	return c.model.WithTools(infos)
}

func (c *EinoClient) Chat(ctx context.Context, req Request) (*Response, error) {
	m, err := c.bind(req)
	if err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}
	msgs, err := toSchemaMessages(req)
	if err != nil {
		return nil, err
	}

	out, err := m.Generate(withCallbacks(ctx, c.name, c.callback), msgs)
	if err != nil {
		return nil, einoError(err)
	}
	return fromSchemaMessage(out)
}

func (c *EinoClient) Stream(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	msgs, err := toSchemaMessages(req)
	if err != nil {
		return "", err
	}

	reader, err := c.model.Stream(withCallbacks(ctx, c.name, c.callback), msgs)
	if err != nil {
		return "", einoError(err)
	}
	defer reader.Close()

	var sb strings.Builder
	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sb.String(), einoError(err)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		sb.WriteString(chunk.Content)
		if onDelta != nil {
			onDelta(chunk.Content)
		}
	}
	return sb.String(), nil
}

func toToolInfo(t ToolSpec) *schema.ToolInfo {
	required := make(map[string]bool, len(t.Required))
	for _, name := range t.Required {
		required[name] = true
	}

	params := make(map[string]*schema.ParameterInfo, len(t.Properties))
	for name, raw := range t.Properties {
		prop, _ := raw.(map[string]any)
		params[name] = toParameterInfo(prop, required[name])
	}
	return &schema.ToolInfo{
		Name:        t.Name,
		Desc:        t.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

func toParameterInfo(prop map[string]any, required bool) *schema.ParameterInfo {
	info := &schema.ParameterInfo{Type: schema.String, Required: required}
	if prop == nil {
		return info
	}
	if desc, ok := prop["description"].(string); ok {
		info.Desc = desc
	}
	switch prop["type"] {
	case "integer":
		info.Type = schema.Integer
	case "number":
		info.Type = schema.Number
	case "boolean":
		info.Type = schema.Boolean
	case "object":
		info.Type = schema.Object
	case "array":
		info.Type = schema.Array
		items, _ := prop["items"].(map[string]any)
		info.ElemInfo = toParameterInfo(items, false)
	}
	return info
}

func toSchemaMessages(req Request) ([]*schema.Message, error) {
	msgs := make([]*schema.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, schema.SystemMessage(req.System))
	}

	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			var text []string
			for _, b := range m.Content {
				switch b := b.(type) {
				case TextBlock:
					text = append(text, b.Text)
				case ToolResultBlock:
					msgs = append(msgs, schema.ToolMessage(b.Content, b.ToolUseID))
				case ToolUseBlock:
					return nil, errors.New("tool use in a user message")
				}
			}
			if len(text) > 0 {
				msgs = append(msgs, schema.UserMessage(strings.Join(text, "\n")))
			}
		case RoleAssistant:
			out := &schema.Message{Role: schema.Assistant}
			var text []string
			for _, b := range m.Content {
				switch b := b.(type) {
				case TextBlock:
					text = append(text, b.Text)
				case ToolUseBlock:
					args, err := json.Marshal(b.Input)
					if err != nil {
						return nil, fmt.Errorf("encode tool input for %s: %w", b.Name, err)
					}
					out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
						ID:   b.ID,
						Type: "function",
						Function: schema.FunctionCall{
							Name:      b.Name,
							Arguments: string(args),
						},
					})
				case ToolResultBlock:
					return nil, errors.New("tool result in an assistant message")
				}
			}
			out.Content = strings.Join(text, "\n")
			msgs = append(msgs, out)
		default:
			return nil, fmt.Errorf("unknown message role %q", m.Role)
		}
	}
	return msgs, nil
}

func fromSchemaMessage(msg *schema.Message) (*Response, error) {
	if msg == nil {
		return nil, errors.New("empty response from model")
	}
	resp := &Response{StopReason: StopEndTurn}
	if msg.Content != "" {
		resp.Content = append(resp.Content, TextBlock{Text: msg.Content})
	}
	for _, call := range msg.ToolCalls {
		input := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				return nil, fmt.Errorf("decode tool arguments for %s: %w", call.Function.Name, err)
			}
		}
		resp.Content = append(resp.Content, ToolUseBlock{ID: call.ID, Name: call.Function.Name, Input: input})
	}

	switch {
	case len(msg.ToolCalls) > 0:
		resp.StopReason = StopToolUse
	case msg.ResponseMeta != nil && msg.ResponseMeta.FinishReason == "length":
		resp.StopReason = StopMaxTokens
	}
	return resp, nil
}

// einoError marks rate limiting reported in the provider's error text; the
// eino models do not expose a typed status.
func einoError(err error) error {
	text := strings.ToLower(err.Error())
	if strings.Contains(text, "429") || strings.Contains(text, "rate limit") {
		return fmt.Errorf("%w: %v", retry.ErrRateLimited, err)
	}
	if strings.Contains(text, "connection refused") || strings.Contains(text, "timeout") || strings.Contains(text, "eof") {
		return fmt.Errorf("%w: %v", retry.ErrConnection, err)
	}
	return err
}
