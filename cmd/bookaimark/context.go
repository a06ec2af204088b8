package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dastanaron/bookaimark/internal/analysis"
	"github.com/dastanaron/bookaimark/internal/config"
	"github.com/dastanaron/bookaimark/internal/favicon"
	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/notifications"
	"github.com/dastanaron/bookaimark/internal/repository"
	"github.com/dastanaron/bookaimark/internal/secrets"
	"github.com/dastanaron/bookaimark/internal/service"
	"github.com/dastanaron/bookaimark/internal/services/llm"
)

type commandContext struct {
	configFlag *string
	userFlag   *string
	keychain   secrets.Store

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	app *appRuntime
}

// appRuntime holds everything a command needs to touch bookmarks.
type appRuntime struct {
	cfg      *config.Config
	logger   *slog.Logger
	repo     repository.Repository
	svc      *service.Services
	analyzer *analysis.Analyzer
	favicons *favicon.Resolver
}

func newCommandContext(configFlag, userFlag *string, keychain secrets.Store) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		userFlag:   userFlag,
		keychain:   keychain,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) userID() string {
	if c.userFlag != nil {
		if id := strings.TrimSpace(*c.userFlag); id != "" {
			return id
		}
	}
	if id := strings.TrimSpace(os.Getenv("BOOKAIMARK_USER")); id != "" {
		return id
	}
	return models.DefaultUserID
}

// open wires storage, the analyzer, the favicon resolver and the services.
// Console logs go to logOut; the runtime is closed after the command runs.
func (c *commandContext) open(ctx context.Context, logOut io.Writer) (*appRuntime, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Writer:     logOut,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, err
	}

	if err := secrets.ApplyLLMKey(cfg, c.keychain); err != nil {
		logger.Warn("keychain lookup failed", "error", err)
	}

	repo, err := repository.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	completer, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	analyzer := analysis.New(completer, analysis.OptionsFromConfig(cfg, logger))
	favicons := favicon.NewResolver(favicon.OptionsFromConfig(cfg.Favicon, logger))
	svc := service.New(repo, service.Options{
		Analyzer:    analyzer,
		Favicons:    favicons,
		Notifier:    notifications.New(cfg.Notifications),
		Notify:      cfg.Notifications,
		InlineIcons: cfg.Favicon.Inline,
		Logger:      logger,
	})

	c.app = &appRuntime{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		svc:      svc,
		analyzer: analyzer,
		favicons: favicons,
	}
	return c.app, nil
}

func (c *commandContext) openFor(cmd *cobra.Command) (*appRuntime, error) {
	return c.open(cmd.Context(), cmd.ErrOrStderr())
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.repo.Close()
	c.app = nil
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
