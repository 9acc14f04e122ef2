package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/devops"

	"github.com/dyike/clarence/config"
	"github.com/dyike/clarence/internal/logger"
	"github.com/dyike/clarence/internal/retry"
)

const (
	defaultOpenAIModel   = "gpt-4o"
	defaultDeepSeekModel = "deepseek-chat"
	defaultDebugPort     = 52538
)

// New builds the configured provider wrapped in the default retry policy.
// eino providers log their runs through log. A provider without an API key
// yields an Unavailable client so the rest of the app still starts.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	modelName := cfg.LLMModel

	var (
		c   Client
		err error
	)
	switch cfg.LLMProvider {
	case "", "anthropic":
		c, err = NewAnthropicClient(cfg.AnthropicAPIKey, modelName, cfg.LLMBaseURL, cfg.LLMMaxTokens)
	case "openai":
		if modelName == "" || strings.HasPrefix(modelName, "claude") {
			modelName = defaultOpenAIModel
		}
		var ec *EinoClient
		ec, err = NewOpenAIClient(ctx, cfg.OpenAIAPIKey, modelName, cfg.LLMBaseURL, cfg.LLMMaxTokens)
		if err == nil {
			c = ec.WithCallbacks(NewLogHandler(log))
		}
	case "deepseek":
		if modelName == "" || strings.HasPrefix(modelName, "claude") {
			modelName = defaultDeepSeekModel
		}
		var ec *EinoClient
		ec, err = NewDeepSeekClient(ctx, cfg.DeepSeekAPIKey, modelName, cfg.LLMMaxTokens)
		if err == nil {
			c = ec.WithCallbacks(NewLogHandler(log))
		}
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
	if errors.Is(err, ErrNotConfigured) {
		log.WithError(err).Warn("model client unavailable")
		return Unavailable{Err: err}, nil
	}
	if err != nil {
		return nil, err
	}
	return NewRetrying(c, retry.DefaultPolicy()), nil
}

// InitDebug starts the eino visual debug server when enabled.
func InitDebug(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if !cfg.EinoDebugEnabled {
		return nil
	}
	port := debugPort(cfg.EinoDebugPort)
	log.Debugf("initializing eino debug plugin on port %s", port)

	if err := devops.Init(ctx, devops.WithDevServerPort(port)); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}

	log.Infof("eino debug server at http://localhost:%s", port)
	return nil
}

// debugPort falls back to the devops default when port is unset.
func debugPort(port int) string {
	if port <= 0 {
		return strconv.Itoa(defaultDebugPort)
	}
	return strconv.Itoa(port)
}
