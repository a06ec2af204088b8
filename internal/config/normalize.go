package config

import "strings"

func (c *Config) normalize() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case ProviderGemini:
			c.LLM.Model = defaultGeminiModel
		default:
			c.LLM.Model = defaultOpenAIModel
		}
	}
	if c.LLM.Provider == ProviderOpenAI && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultOpenAIBaseURL
	}
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	var err error
	if c.Storage.SQLitePath, err = expandPath(strings.TrimSpace(c.Storage.SQLitePath)); err != nil {
		return err
	}
	if c.Storage.DataDir, err = expandPath(strings.TrimSpace(c.Storage.DataDir)); err != nil {
		return err
	}
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return err
	}
	return nil
}
