package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains HTTP API settings.
type Server struct {
	Bind                string `toml:"bind"`
	APIToken            string `toml:"api_token"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
	MaxBodyBytes        int64  `toml:"max_body_bytes"`
}

// Storage selects and configures the persistence backend.
type Storage struct {
	Driver      string `toml:"driver"` // sqlite | postgres | json | memory
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn"`
	DataDir     string `toml:"data_dir"`
}

// LLM contains the connection settings for content analysis.
type LLM struct {
	Provider       string `toml:"provider"` // openai | gemini
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxInputChars  int    `toml:"max_input_chars"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Analysis contains batch settings for the content analysis pipeline.
type Analysis struct {
	Concurrency int `toml:"concurrency"`
	BatchLimit  int `toml:"batch_limit"`
}

// Favicon contains settings for the icon resolution chain.
type Favicon struct {
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	ServiceURL       string `toml:"service_url"`
	UserAgent        string `toml:"user_agent"`
	Inline           bool   `toml:"inline"`
	BatchConcurrency int    `toml:"batch_concurrency"`
}

// Notifications contains ntfy push settings and per-kind toggles.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Comments       bool   `toml:"comments"`
	Acquisitions   bool   `toml:"acquisitions"`
	Likes          bool   `toml:"likes"`
	Analysis       bool   `toml:"analysis"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config encapsulates all configuration values for BookAIMark.
type Config struct {
	Server        Server        `toml:"server"`
	Storage       Storage       `toml:"storage"`
	LLM           LLM           `toml:"llm"`
	Analysis      Analysis      `toml:"analysis"`
	Favicon       Favicon       `toml:"favicon"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned
// config has environment overrides applied and path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bookaimark.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// applyEnv overlays environment variables on top of file values.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookupTrimmed(lookup, "BOOKAIMARK_BIND"); ok {
		c.Server.Bind = v
	}
	if v, ok := lookupTrimmed(lookup, "BOOKAIMARK_API_TOKEN"); ok {
		c.Server.APIToken = v
	}
	if v, ok := lookupTrimmed(lookup, "DATABASE_URL"); ok {
		c.Storage.PostgresDSN = v
		if c.Storage.Driver == "" {
			c.Storage.Driver = DriverPostgres
		}
	}
	if c.LLM.APIKey == "" {
		key := "OPENAI_API_KEY"
		if strings.EqualFold(c.LLM.Provider, ProviderGemini) {
			key = "GEMINI_API_KEY"
		}
		if v, ok := lookupTrimmed(lookup, key); ok {
			c.LLM.APIKey = v
		}
	}
	if v, ok := lookupTrimmed(lookup, "NTFY_TOPIC"); ok {
		c.Notifications.NtfyTopic = v
	}
}

func lookupTrimmed(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// EnsureDirectories creates directories required by the selected storage
// driver and the log file.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	switch c.Storage.Driver {
	case DriverSQLite:
		dirs = append(dirs, filepath.Dir(c.Storage.SQLitePath))
	case DriverJSON:
		dirs = append(dirs, c.Storage.DataDir)
	}
	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML with secrets masked.
func (c *Config) Encode() (string, error) {
	masked := *c
	masked.Server.APIToken = maskSecret(masked.Server.APIToken)
	masked.LLM.APIKey = maskSecret(masked.LLM.APIKey)
	masked.Storage.PostgresDSN = maskSecret(masked.Storage.PostgresDSN)
	data, err := toml.Marshal(masked)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	return "********"
}
