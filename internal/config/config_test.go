package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://indexer:pw@localhost:5432/pump")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("RPC_ENDPOINT", "")
	t.Setenv("WS_ENDPOINT", "")
	t.Setenv("API_PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("PUMP_PROGRAM_ID", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.RPCEndpoint)
	assert.Equal(t, "wss://api.mainnet-beta.solana.com", cfg.WSEndpoint)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, ":8080", cfg.APIAddr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultProgramID, cfg.ProgramID)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("RPC_ENDPOINT", "https://rpc.example.com")
	t.Setenv("WS_ENDPOINT", "wss://ws.example.com")
	t.Setenv("API_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("COINGECKO_API_KEY", "cg-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.com", cfg.RPCEndpoint)
	assert.Equal(t, "wss://ws.example.com", cfg.WSEndpoint)
	assert.Equal(t, 9999, cfg.APIPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "cg-key", cfg.CoinGeckoAPIKey)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/pump")
	t.Setenv("REDIS_URL", "")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoad_BadPort(t *testing.T) {
	setRequired(t)
	t.Setenv("API_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_PORT")
}

func TestConfig_Logger(t *testing.T) {
	cfg := &Config{LogLevel: "warn"}
	logger, err := cfg.Logger()
	require.NoError(t, err)
	logger.Sync()

	cfg = &Config{LogLevel: "shouting"}
	_, err = cfg.Logger()
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"# comment\n"+
			"FROM_FILE=file-value\n"+
			"ALREADY_SET=file-value\n"+
			"malformed line\n"), 0o600))

	t.Setenv("FROM_FILE", "")
	os.Unsetenv("FROM_FILE")
	t.Setenv("ALREADY_SET", "env-value")

	LoadDotEnv(path)

	assert.Equal(t, "file-value", os.Getenv("FROM_FILE"))
	assert.Equal(t, "env-value", os.Getenv("ALREADY_SET"))

	// A missing file is silently ignored.
	LoadDotEnv(filepath.Join(dir, "missing.env"))
}
