package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "DeepSeek")
	t.Setenv("LLM_MAX_TOKENS", "2048")
	t.Setenv("MARKET_DATA_PROVIDER", "yahoo")
	t.Setenv("ALPACA_DATA_URL", "http://localhost:9999/")
	t.Setenv("CACHE_ENABLED", "false")

	cfg := DefaultConfig()
	assert.Equal(t, "deepseek", cfg.LLMProvider)
	assert.Equal(t, 2048, cfg.LLMMaxTokens)
	assert.Equal(t, "yahoo", cfg.MarketDataProvider)
	assert.Equal(t, "http://localhost:9999", cfg.AlpacaDataURL)
	assert.False(t, cfg.CacheEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownProviders(t *testing.T) {
	cfg := &Config{LLMProvider: "gemini", MarketDataProvider: "alpaca", LLMMaxTokens: 1}
	assert.Error(t, cfg.Validate())

	cfg = &Config{LLMProvider: "anthropic", MarketDataProvider: "bloomberg", LLMMaxTokens: 1}
	assert.Error(t, cfg.Validate())
}

func TestPaperTrading(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"True", true},
		{"false", false},
		{"0", false},
		{"", true},
		{"maybe", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := &Config{AlpacaPaperTrade: tt.value}
			assert.Equal(t, tt.want, cfg.PaperTrading())
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", ".clarence")
	cfg := &Config{ClarenceDir: dir}
	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, dir)
}
