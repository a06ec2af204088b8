package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateFavicon(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return ensurePositiveMap(map[string]int{
		"analysis.concurrency":          c.Analysis.Concurrency,
		"analysis.batch_limit":          c.Analysis.BatchLimit,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateServer() error {
	if c.Server.Bind == "" {
		return errors.New("server.bind must be set")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server.max_body_bytes must be positive")
	}
	return ensurePositiveMap(map[string]int{
		"server.read_timeout_seconds":  c.Server.ReadTimeoutSeconds,
		"server.write_timeout_seconds": c.Server.WriteTimeoutSeconds,
	})
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path must be set for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return errors.New("storage.postgres_dsn (or DATABASE_URL) must be set for the postgres driver")
		}
	case DriverJSON:
		if c.Storage.DataDir == "" {
			return errors.New("storage.data_dir must be set for the json driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver: unsupported value %q", c.Storage.Driver)
	}
	return nil
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if _, err := url.ParseRequestURI(c.LLM.BaseURL); err != nil {
			return fmt.Errorf("llm.base_url: %w", err)
		}
	case ProviderGemini:
	default:
		return fmt.Errorf("llm.provider: unsupported value %q", c.LLM.Provider)
	}
	if c.LLM.MaxInputChars < 200 {
		return errors.New("llm.max_input_chars must be at least 200")
	}
	return ensurePositiveMap(map[string]int{
		"llm.timeout_seconds": c.LLM.TimeoutSeconds,
		"llm.retry_attempts":  c.LLM.RetryAttempts,
	})
}

func (c *Config) validateFavicon() error {
	if c.Favicon.ServiceURL != "" && !strings.Contains(c.Favicon.ServiceURL, "{domain}") {
		return errors.New("favicon.service_url must contain the {domain} placeholder")
	}
	return ensurePositiveMap(map[string]int{
		"favicon.timeout_seconds":   c.Favicon.TimeoutSeconds,
		"favicon.batch_concurrency": c.Favicon.BatchConcurrency,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
