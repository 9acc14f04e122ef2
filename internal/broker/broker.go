// Package broker drives the Alpaca brokerage through the alpaca-mcp-server
// subprocess over MCP stdio.
package broker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dyike/clarence/config"
	"github.com/dyike/clarence/internal/llm"
	"github.com/dyike/clarence/internal/logger"
)

const (
	notConnectedResult = `{"error": "MCP session not connected"}`
	emptyResult        = `{"result": "ok"}`
	clientName         = "clarence"
)

var (
	ErrNotConnected = errors.New("MCP session not connected")
	ErrToolFailed   = errors.New("tool reported an error")
)

// ToolCaller invokes a brokerage tool and returns its text result.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// session is the subset of the mcp-go client used here.
type session interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

type MCPClient struct {
	cfg     *config.Config
	log     *logger.Logger
	version string

	mu      sync.Mutex
	session session
}

func NewMCPClient(cfg *config.Config, log *logger.Logger, version string) *MCPClient {
	return &MCPClient{cfg: cfg, log: log, version: version}
}

// ServerArgs returns the subprocess arguments. The .env file is passed by
// absolute path so the server finds credentials regardless of its working
// directory.
func ServerArgs(projectDir string) []string {
	args := []string{"alpaca-mcp-server", "serve"}
	envFile := filepath.Join(projectDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if abs, err := filepath.Abs(envFile); err == nil {
			args = append(args, "--config-file", abs)
		}
	}
	return args
}

// ServerEnv returns the parent environment plus the non-empty Alpaca
// credentials from cfg. Empty values are left out so the server can still
// read them from its config file.
func ServerEnv(base []string, cfg *config.Config) []string {
	env := append([]string(nil), base...)
	for _, kv := range [][2]string{
		{"ALPACA_API_KEY", cfg.AlpacaAPIKey},
		{"ALPACA_SECRET_KEY", cfg.AlpacaSecretKey},
		{"ALPACA_PAPER_TRADE", cfg.AlpacaPaperTrade},
	} {
		if kv[1] != "" {
			env = append(env, kv[0]+"="+kv[1])
		}
	}
	return env
}

// Connect spawns the server and completes the MCP handshake.
func (c *MCPClient) Connect(ctx context.Context) error {
	command := c.cfg.MCPCommand
	if command == "" {
		command = "uvx"
	}
	args := ServerArgs(c.cfg.ProjectDir)

	c.log.WithField("command", command).WithField("args", strings.Join(args, " ")).Debug("starting brokerage server")
	mcpClient, err := client.NewStdioMCPClient(command, ServerEnv(os.Environ(), c.cfg), args...)
	if err != nil {
		return fmt.Errorf("start %s %s: %w", command, strings.Join(args, " "), err)
	}
	return c.attach(ctx, mcpClient)
}

func (c *MCPClient) attach(ctx context.Context, s session) error {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: c.version}

	result, err := s.Initialize(ctx, req)
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("initialize brokerage session: %w", err)
	}
	if result != nil {
		c.log.WithField("server", result.ServerInfo.Name).Info("brokerage session connected")
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return nil
}

func (c *MCPClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

func (c *MCPClient) current() session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// ListTools returns the server's tools as model tool specs. An unconnected
// client has no tools.
func (c *MCPClient) ListTools(ctx context.Context) ([]llm.ToolSpec, error) {
	s := c.current()
	if s == nil {
		return nil, nil
	}

	result, err := s.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list brokerage tools: %w", err)
	}

	specs := make([]llm.ToolSpec, 0, len(result.Tools))
	for _, tool := range result.Tools {
		props := tool.InputSchema.Properties
		if props == nil {
			props = map[string]any{}
		}
		specs = append(specs, llm.ToolSpec{
			Name:        tool.Name,
			Description: tool.Description,
			Properties:  props,
			Required:    tool.InputSchema.Required,
		})
	}
	return specs, nil
}

// CallTool runs a brokerage tool. Text content blocks are joined with
// newlines; a result without text yields {"result": "ok"}.
func (c *MCPClient) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	s := c.current()
	if s == nil {
		return notConnectedResult, ErrNotConnected
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := s.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", name, err)
	}

	text := joinText(result.Content)
	if result.IsError {
		return text, fmt.Errorf("%w: %s: %s", ErrToolFailed, name, text)
	}
	return text, nil
}

func joinText(content []mcp.Content) string {
	var parts []string
	for _, block := range content {
		switch b := block.(type) {
		case mcp.TextContent:
			parts = append(parts, b.Text)
		case *mcp.TextContent:
			parts = append(parts, b.Text)
		}
	}
	if len(parts) == 0 {
		return emptyResult
	}
	return strings.Join(parts, "\n")
}

// Close shuts down the session and the subprocess.
func (c *MCPClient) Close() error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}
