package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const (
	defaultSearchMaxCandidates = 10000
	defaultRateLimit           = 20.0
	defaultRateBurst           = 40
)

type Config struct {
	config *viper.Viper
}

func Load(env string) (*Config, error) {

	if len(env) == 0 {
		if env = os.Getenv(keyEnv); len(env) == 0 {
			env = envLocal
		}
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	viperConfig.SetDefault("search.max_candidates", defaultSearchMaxCandidates)
	viperConfig.SetDefault("search.ranked_enabled", true)
	viperConfig.SetDefault("server.rate_limit", defaultRateLimit)
	viperConfig.SetDefault("server.rate_burst", defaultRateBurst)

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

// Set overrides a key, mainly for tests and CLI flags.
func (c *Config) Set(key string, value any) {
	c.config.Set(key, value)
}

func (c *Config) GetPort() string {
	port := c.config.GetString("PORT")
	if len(port) == 0 {
		port = c.config.GetString("server.port")
	}

	return port
}

func (c *Config) GetStoragePath() string {
	storagePath := c.config.GetString("STORAGE_PATH")
	if len(storagePath) == 0 {
		storagePath = c.config.GetString("database.storage_path")
	}

	return storagePath
}

func (c *Config) GetIndexPath() string {
	indexPath := c.config.GetString("INDEX_PATH")
	if len(indexPath) == 0 {
		indexPath = c.config.GetString("database.index_path")
	}

	return indexPath
}

func (c *Config) GetKVDBPath() string {
	kvdbPath := c.config.GetString("KVDB_PATH")
	if len(kvdbPath) == 0 {
		kvdbPath = c.config.GetString("database.kvdb_path")
	}

	return kvdbPath
}

func (c *Config) GetSourceDBPath() string {
	sourcePath := c.config.GetString("SOURCE_DB_PATH")
	if len(sourcePath) == 0 {
		sourcePath = c.config.GetString("database.source_path")
	}

	return sourcePath
}

// GetEncryptionKey returns the base64 encoded field encryption key. Empty
// means stored values are treated as plaintext.
func (c *Config) GetEncryptionKey() string {
	key := c.config.GetString("ENCRYPTION_KEY")
	if len(key) == 0 {
		key = c.config.GetString("encryption.key")
	}

	return key
}

// GetAdminToken returns the shared secret the index routes expect in the
// X-Admin-Token header. Empty leaves them open.
func (c *Config) GetAdminToken() string {
	token := c.config.GetString("ADMIN_TOKEN")
	if len(token) == 0 {
		token = c.config.GetString("server.admin_token")
	}

	return token
}

func (c *Config) GetLogLevel() string {
	level := c.config.GetString("LOG_LEVEL")
	if len(level) == 0 {
		level = c.config.GetString("log.level")
	}

	return level
}

func (c *Config) GetSearchMaxCandidates() int {
	maxCandidates := c.config.GetInt("search.max_candidates")
	if maxCandidates <= 0 {
		return defaultSearchMaxCandidates
	}

	return maxCandidates
}

func (c *Config) GetRankedSearchEnabled() bool {
	return c.config.GetBool("search.ranked_enabled")
}

func (c *Config) GetRateLimit() float64 {
	return c.config.GetFloat64("server.rate_limit")
}

func (c *Config) GetRateBurst() int {
	return c.config.GetInt("server.rate_burst")
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
