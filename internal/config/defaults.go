package config

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverJSON     = "json"
	DriverMemory   = "memory"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const (
	defaultConfigPath            = "~/.config/bookaimark/config.toml"
	defaultBind                  = "127.0.0.1:8787"
	defaultReadTimeoutSeconds    = 15
	defaultWriteTimeoutSeconds   = 90
	defaultMaxBodyBytes          = 4 << 20
	defaultSQLitePath            = "~/.bookmarks/bookaimark.db"
	defaultDataDir               = "~/.bookmarks/data"
	defaultOpenAIBaseURL         = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel           = "gpt-4o-mini"
	defaultGeminiModel           = "gemini-2.0-flash"
	defaultLLMTitle              = "BookAIMark"
	defaultLLMTimeoutSeconds     = 30
	defaultMaxInputChars         = 6000
	defaultRetryAttempts         = 3
	defaultAnalysisConcurrency   = 4
	defaultAnalysisBatchLimit    = 10
	defaultFaviconTimeoutSeconds = 8
	defaultFaviconServiceURL     = "https://www.google.com/s2/favicons?domain={domain}&sz=64"
	defaultFaviconUserAgent      = "Mozilla/5.0 (compatible; BookAIMark/1.0)"
	defaultFaviconConcurrency    = 4
	defaultNotifyTimeout         = 10
	defaultLogLevel              = "info"
	defaultLogFormat             = "console"
	defaultLogMaxSizeMB          = 10
	defaultLogMaxBackups         = 3
	defaultLogMaxAgeDays         = 28
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind:                defaultBind,
			ReadTimeoutSeconds:  defaultReadTimeoutSeconds,
			WriteTimeoutSeconds: defaultWriteTimeoutSeconds,
			MaxBodyBytes:        defaultMaxBodyBytes,
		},
		Storage: Storage{
			SQLitePath: defaultSQLitePath,
			DataDir:    defaultDataDir,
		},
		LLM: LLM{
			Provider:       ProviderOpenAI,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MaxInputChars:  defaultMaxInputChars,
			RetryAttempts:  defaultRetryAttempts,
		},
		Analysis: Analysis{
			Concurrency: defaultAnalysisConcurrency,
			BatchLimit:  defaultAnalysisBatchLimit,
		},
		Favicon: Favicon{
			TimeoutSeconds:   defaultFaviconTimeoutSeconds,
			ServiceURL:       defaultFaviconServiceURL,
			UserAgent:        defaultFaviconUserAgent,
			BatchConcurrency: defaultFaviconConcurrency,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Comments:       true,
			Acquisitions:   true,
			Likes:          false,
			Analysis:       false,
		},
		Logging: Logging{
			Level:      defaultLogLevel,
			Format:     defaultLogFormat,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
			Compress:   true,
		},
	}
}
