package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/specialistvlad/fedcompose/internal/config"
	"github.com/specialistvlad/fedcompose/internal/hcl"
	"github.com/specialistvlad/fedcompose/internal/yamlconfig"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logW   io.Writer
	logger *slog.Logger
	config *Config
	loader config.Loader
}

// NewApp is the constructor for the main application. Logs go to logW and
// the composed supergraph to outW unless an output path is configured. A
// nil loader is chosen from the config path.
func NewApp(outW, logW io.Writer, cfg *Config, loader config.Loader) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	if loader == nil {
		var err error
		if loader, err = LoaderFor(cfg.ConfigPath); err != nil {
			return nil, err
		}
	}

	return &App{
		outW:   outW,
		logW:   logW,
		logger: logger,
		config: cfg,
		loader: loader,
	}, nil
}

// LoaderFor picks the config loader by file extension. Directories are
// loaded as HCL.
func LoaderFor(path string) (config.Loader, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return hcl.NewLoader(), nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == hcl.Extension:
		return hcl.NewLoader(), nil
	case slices.Contains(yamlconfig.Extensions, ext):
		return yamlconfig.NewLoader(), nil
	case ext == "":
		return hcl.NewLoader(), nil
	}
	return nil, fmt.Errorf("unsupported config file %q: expected %s, .yaml or .yml", path, hcl.Extension)
}
