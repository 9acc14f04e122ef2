package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir  string `json:"project_dir"`
	ClarenceDir string `json:"clarence_dir"`

	// LLM configuration
	LLMProvider     string `json:"llm_provider"`
	LLMModel        string `json:"llm_model"`
	LLMBaseURL      string `json:"llm_base_url"`
	LLMMaxTokens    int    `json:"llm_max_tokens"`
	AnthropicAPIKey string `json:"anthropic_api_key"`
	OpenAIAPIKey    string `json:"openai_api_key"`
	DeepSeekAPIKey  string `json:"deepseek_api_key"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`

	// Alpaca brokerage and market data
	AlpacaAPIKey     string `json:"alpaca_api_key"`
	AlpacaSecretKey  string `json:"alpaca_secret_key"`
	AlpacaPaperTrade string `json:"alpaca_paper_trade"`
	AlpacaDataURL    string `json:"alpaca_data_url"`
	AlpacaRateLimit  int    `json:"alpaca_rate_limit"`
	MCPCommand       string `json:"mcp_command"`

	// MarketDataProvider selects the quote/bars source: alpaca, longport or yahoo.
	MarketDataProvider string `json:"market_data_provider"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	FinancialDatasetsAPIKey string `json:"financial_datasets_api_key"`
	FinancialDatasetsURL    string `json:"financial_datasets_url"`
	CacheEnabled            bool   `json:"cache_enabled"`

	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`
	LogFile     string `json:"log_file"`
	MetricsAddr string `json:"metrics_addr"`
	Debug       bool   `json:"debug"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := &Config{
		ProjectDir:  currentDir,
		ClarenceDir: filepath.Join(currentDir, ".clarence"),

		LLMProvider:  "anthropic",
		LLMModel:     "claude-sonnet-4-5-20250929",
		LLMMaxTokens: 4096,

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,

		AlpacaPaperTrade: "True",
		AlpacaDataURL:    "https://data.alpaca.markets",
		AlpacaRateLimit:  200,
		MCPCommand:       "uvx",

		MarketDataProvider: "alpaca",

		FinancialDatasetsURL: "https://api.financialdatasets.ai",
		CacheEnabled:         true,

		LogLevel:  "info",
		LogFormat: "console",
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()

	return cfg
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("CLARENCE_DIR"); val != "" {
		c.ClarenceDir = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = strings.ToLower(val)
	}
	if val := os.Getenv("LLM_MODEL"); val != "" {
		c.LLMModel = val
	}
	if val := os.Getenv("LLM_BASE_URL"); val != "" {
		c.LLMBaseURL = val
	}
	if val := os.Getenv("LLM_MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.LLMMaxTokens = v
		}
	}
	c.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.DeepSeekAPIKey = os.Getenv("DEEPSEEK_API_KEY")

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}

	c.AlpacaAPIKey = os.Getenv("ALPACA_API_KEY")
	c.AlpacaSecretKey = os.Getenv("ALPACA_SECRET_KEY")
	if val := os.Getenv("ALPACA_PAPER_TRADE"); val != "" {
		c.AlpacaPaperTrade = val
	}
	if val := os.Getenv("ALPACA_DATA_URL"); val != "" {
		c.AlpacaDataURL = strings.TrimRight(val, "/")
	}
	if val := os.Getenv("ALPACA_RATE_LIMIT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.AlpacaRateLimit = v
		}
	}
	if val := os.Getenv("MCP_COMMAND"); val != "" {
		c.MCPCommand = val
	}

	if val := os.Getenv("MARKET_DATA_PROVIDER"); val != "" {
		c.MarketDataProvider = strings.ToLower(val)
	}

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	c.FinancialDatasetsAPIKey = os.Getenv("FINANCIAL_DATASETS_API_KEY")
	if val := os.Getenv("FINANCIAL_DATASETS_URL"); val != "" {
		c.FinancialDatasetsURL = strings.TrimRight(val, "/")
	}
	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if cache, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = cache
		}
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.LogFormat = val
	}
	if val := os.Getenv("LOG_FILE"); val != "" {
		c.LogFile = val
	}
	if val := os.Getenv("METRICS_ADDR"); val != "" {
		c.MetricsAddr = val
	}
	if val := os.Getenv("CLARENCE_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
}

// PaperTrading reports whether orders go to the paper account. Anything that
// does not parse as false keeps paper trading on.
func (c *Config) PaperTrading() bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.AlpacaPaperTrade))
	if err != nil {
		return true
	}
	return v
}

func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "anthropic", "openai", "deepseek":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLMProvider)
	}
	switch c.MarketDataProvider {
	case "alpaca", "longport", "yahoo":
	default:
		return fmt.Errorf("unsupported market data provider %q", c.MarketDataProvider)
	}
	if c.LLMMaxTokens <= 0 {
		return fmt.Errorf("llm max tokens must be positive")
	}
	return nil
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ClarenceDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
