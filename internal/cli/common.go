package cli

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/creatorincome/wpup/internal/config"
	"github.com/creatorincome/wpup/internal/engine"
	"github.com/creatorincome/wpup/internal/fsops"
	"github.com/creatorincome/wpup/internal/gitx"
	"github.com/creatorincome/wpup/internal/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// loadConfig reads the configuration and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// newLogger builds the logger for cfg.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// newEngine creates a new engine over the repository containing the current
// directory.
func newEngine() (*engine.Engine, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	repo, err := gitx.Open(".", cfg.Remote, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return engine.New(repo, fsops.NewRealFS(), cfg, log), cfg, nil
}

// FormatError formats an error for display.
func FormatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON writes a value as a single JSON line to w.
func outputJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
