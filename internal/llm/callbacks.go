package llm

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/clarence/internal/logger"
)

// NewLogHandler returns an eino callback handler that logs chat model
// calls: message and tool counts on start, token usage on end, and errors.
func NewLogHandler(log *logger.Logger) callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
			in := model.ConvCallbackInput(input)
			if in == nil {
				return ctx
			}
			log.WithFields(map[string]interface{}{
				"model":    info.Name,
				"messages": len(in.Messages),
				"tools":    len(in.Tools),
			}).Debug("model call started")
			return ctx
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
			logUsage(log, info, model.ConvCallbackOutput(output))
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			log.WithField("model", info.Name).WithError(err).Warn("model call failed")
			return ctx
		}).
		OnEndWithStreamOutputFn(func(ctx context.Context, info *callbacks.RunInfo,
			output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
			go func() {
				defer output.Close()
				var last *model.CallbackOutput
				for {
					frame, err := output.Recv()
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						log.WithField("model", info.Name).WithError(err).Debug("stream callback ended")
						return
					}
					if out := model.ConvCallbackOutput(frame); out != nil && out.TokenUsage != nil {
						last = out
					}
				}
				logUsage(log, info, last)
			}()
			return ctx
		}).
		Build()
}

func logUsage(log *logger.Logger, info *callbacks.RunInfo, out *model.CallbackOutput) {
	fields := map[string]interface{}{"model": info.Name}
	if out != nil && out.TokenUsage != nil {
		fields["prompt_tokens"] = out.TokenUsage.PromptTokens
		fields["completion_tokens"] = out.TokenUsage.CompletionTokens
	}
	log.WithFields(fields).Debug("model call finished")
}

// withCallbacks attaches handler to ctx for one chat model run.
func withCallbacks(ctx context.Context, name string, handler callbacks.Handler) context.Context {
	if handler == nil {
		return ctx
	}
	return callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      "ChatModel",
		Component: components.ComponentOfChatModel,
	}, handler)
}
