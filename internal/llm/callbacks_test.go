package llm

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"

	"github.com/dyike/clarence/internal/logger"
)

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewLogHandler(logger.NewWithWriter(&buf))
	info := &callbacks.RunInfo{Name: "gpt-4o"}
	ctx := context.Background()

	h.OnStart(ctx, info, &model.CallbackInput{
		Messages: []*schema.Message{schema.UserMessage("hi")},
		Tools:    []*schema.ToolInfo{{Name: "get_news"}},
	})
	assert.Contains(t, buf.String(), "model call started")
	assert.Contains(t, buf.String(), `"tools":1`)

	buf.Reset()
	h.OnEnd(ctx, info, &model.CallbackOutput{
		Message:    schema.AssistantMessage("hello", nil),
		TokenUsage: &model.TokenUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
	})
	assert.Contains(t, buf.String(), `"prompt_tokens":12`)

	buf.Reset()
	h.OnError(ctx, info, errors.New("boom"))
	assert.Contains(t, buf.String(), "model call failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestWithCallbacksWithoutHandler(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, withCallbacks(ctx, "m", nil))
}
