// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultProgramID is the mainnet pump.fun program.
const DefaultProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// Config carries every runtime setting of the indexer.
type Config struct {
	DatabaseURL     string
	RedisURL        string
	RPCEndpoint     string
	WSEndpoint      string
	CoinGeckoAPIKey string
	APIPort         int
	LogLevel        string
	ProgramID       string
}

// Load reads configuration from the environment, falling back to a
// .env file in the working directory for unset keys. DATABASE_URL and
// REDIS_URL are required.
func Load() (*Config, error) {
	LoadDotEnv(".env")

	port, err := getEnvInt("API_PORT", 8080)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		RPCEndpoint:     getEnv("RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
		WSEndpoint:      getEnv("WS_ENDPOINT", "wss://api.mainnet-beta.solana.com"),
		CoinGeckoAPIKey: os.Getenv("COINGECKO_API_KEY"),
		APIPort:         port,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ProgramID:       getEnv("PUMP_PROGRAM_ID", DefaultProgramID),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	return cfg, nil
}

// APIAddr returns the listen address for the API server.
func (c *Config) APIAddr() string {
	return fmt.Sprintf(":%d", c.APIPort)
}

// Logger builds a production zap logger honoring LogLevel.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// LoadDotEnv loads KEY=VALUE lines from a file into the process
// environment without overriding variables that are already set. A
// missing file is not an error.
func LoadDotEnv(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", key, v, err)
	}
	return n, nil
}
