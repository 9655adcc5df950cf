// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/config"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/logging"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/metrics"
)

// App holds the shared, long-lived services for the CLI: the configuration
// snapshot and the structured logger. It is initialized once per invocation
// and passed to the command that runs.
type App struct {
	logger *zap.Logger
	cfg    config.Config
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the validated configuration snapshot.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// NewApp loads and validates configuration and builds the logger. It fails
// fast if configuration is unusable.
func NewApp(_ context.Context) (*App, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()
	return &App{logger: logger, cfg: cfg}, nil
}

// Close flushes the logger. Called by a Cobra hook after the command finishes.
func (a *App) Close() {
	// Best effort; stderr sync failures on shutdown are not actionable.
	_ = a.logger.Sync()
}
