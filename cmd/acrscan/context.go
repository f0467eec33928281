package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"acrscan/internal/config"
	"acrscan/internal/history"
	"acrscan/internal/logging"
	"acrscan/internal/recognizer"
)

// recognizerFactory builds the recognizer used by scan. Tests replace it.
type recognizerFactory func(cfg *config.Config, cache recognizer.Cache, logger *slog.Logger) recognizer.Recognizer

func acrcloudRecognizer(cfg *config.Config, cache recognizer.Cache, logger *slog.Logger) recognizer.Recognizer {
	return recognizer.FromConfig(cfg, cache, logger)
}

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	newRecognizer recognizerFactory
	// skipPreflight disables the environment checks run before a scan.
	skipPreflight bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		newRecognizer: acrcloudRecognizer,
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
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
			if err := cfg.Validate(); err != nil {
				c.configErr = err
				return
			}
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

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// ensureLogger builds the logger once and prunes expired log files.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		if removed := logging.PruneLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logging.DailyLogPath(cfg.Paths.LogDir, time.Now())); removed > 0 {
			logger.Debug("pruned expired log files", logging.Int("count", removed))
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open scan history: %w", err)
	}
	return store, nil
}

func (c *commandContext) withHistory(fn func(*history.Store) error) error {
	store, err := c.openHistory()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
