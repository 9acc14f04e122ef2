// Package llm is the provider-neutral reasoning collaborator: a small
// message model with tagged content blocks, and clients for Anthropic and
// the eino chat models.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/dyike/clarence/internal/retry"
)

var (
	ErrRateLimited = retry.ErrRateLimited
	ErrConnection  = retry.ErrConnection

	// ErrNotConfigured means the selected provider has no API key.
	ErrNotConfigured = errors.New("model provider not configured")
)

// Block is one piece of message content. Implementations are TextBlock,
// ToolUseBlock and ToolResultBlock; switch on the concrete type.
type Block interface {
	isBlock()
}

type TextBlock struct {
	Text string
}

// ToolUseBlock is a tool invocation requested by the model.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResultBlock answers a ToolUseBlock in the next user message.
type ToolResultBlock struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (TextBlock) isBlock()       {}
func (ToolUseBlock) isBlock()    {}
func (ToolResultBlock) isBlock() {}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content []Block
}

func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []Block{TextBlock{Text: text}}}
}

// ToolSpec describes a callable tool with a JSON-schema object for input.
type ToolSpec struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

type Request struct {
	System    string
	Messages  []Message
	Tools     []ToolSpec
	MaxTokens int
}

type Response struct {
	Content    []Block
	StopReason StopReason
}

// Text joins the text blocks of the response with newlines.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var parts []string
	for _, b := range r.Content {
		switch b := b.(type) {
		case TextBlock:
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case ToolUseBlock, ToolResultBlock:
		}
	}
	return strings.Join(parts, "\n")
}

// ToolUses returns the tool invocations in response order.
func (r *Response) ToolUses() []ToolUseBlock {
	if r == nil {
		return nil
	}
	var uses []ToolUseBlock
	for _, b := range r.Content {
		switch b := b.(type) {
		case ToolUseBlock:
			uses = append(uses, b)
		case TextBlock, ToolResultBlock:
		}
	}
	return uses
}

// AssistantMessage turns a response into the assistant turn of the
// conversation history.
func (r *Response) AssistantMessage() Message {
	return Message{Role: RoleAssistant, Content: append([]Block(nil), r.Content...)}
}

// Client sends one chat request. Stream emits text deltas to onDelta as
// they arrive and returns the full text.
type Client interface {
	Chat(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request, onDelta func(string)) (string, error)
}

// Complete sends a single user prompt with a system instruction and returns
// the text of the answer.
func Complete(ctx context.Context, c Client, prompt, system string) (string, error) {
	resp, err := c.Chat(ctx, Request{
		System:   system,
		Messages: []Message{UserText(prompt)},
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}

// Unavailable stands in for a provider that could not be built. Every call
// fails with Err.
type Unavailable struct {
	Err error
}

func (u Unavailable) Chat(context.Context, Request) (*Response, error) {
	return nil, u.Err
}

func (u Unavailable) Stream(context.Context, Request, func(string)) (string, error) {
	return "", u.Err
}

// Completer adapts a Client to single-prompt completion.
type Completer struct {
	Client Client
}

func (c Completer) Complete(ctx context.Context, prompt, system string) (string, error) {
	return Complete(ctx, c.Client, prompt, system)
}
