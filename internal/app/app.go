// Package app wires the application together and drives the orchestrator
// run: resolve the data root, load configuration, load sources through the
// smart loader, compute the rebuild set, and rebuild facts in order.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/vk/factbuild/internal/config"
	"github.com/vk/factbuild/internal/loader"
	"github.com/vk/factbuild/internal/registry"
)

// Config holds everything an App instance needs to run. Zero-valued fields
// fall back to settings.hcl values, then to built-in defaults.
type Config struct {
	SettingsPath string
	DataRoot     string
	Period       string
	OnStaleCache string
	LogLevel     string
	LogFormat    string
	Inspect      bool
}

// App encapsulates the application's dependencies and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	settings *config.Settings
	cfg      *Config
	policy   loader.StalePolicy
	runID    string
}

// NewApp constructs a fully initialized App: settings loaded, logger
// configured, builder modules registered. Failing to load settings is a
// fatal startup error and panics; main recovers and reports it.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		panic(fmt.Errorf("failed to load settings: %w", err))
	}

	runID := uuid.NewString()
	logger := newLogger(
		firstOf(cfg.LogLevel, settings.LogLevel, "info"),
		firstOf(cfg.LogFormat, settings.LogFormat, "text"),
		outW,
	).With("run_id", runID)
	logger.Debug("logger configured")

	policy, err := loader.ParseStalePolicy(firstOf(cfg.OnStaleCache, settings.OnStaleCache, string(loader.StaleFail)))
	if err != nil {
		panic(err)
	}

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("builder modules registered", "count", len(modules), "facts", reg.Names())

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		settings: settings,
		cfg:      cfg,
		policy:   policy,
		runID:    runID,
	}
}

// Registry returns the application's registry. Primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// dataRootOverride returns the highest-priority explicit data root: the
// CLI flag, else the environment (seeded from .env when present).
func (a *App) dataRootOverride() string {
	if a.cfg.DataRoot != "" {
		return a.cfg.DataRoot
	}
	_ = godotenv.Load()
	return os.Getenv("FACTBUILD_DATA_ROOT")
}

// mapPaths returns the source map and dependency map locations, defaulting
// to config/*.json next to the settings file.
func (a *App) mapPaths() (string, string) {
	base := filepath.Dir(a.cfg.SettingsPath)
	sources := a.settings.SourcesMap
	if sources == "" {
		sources = filepath.Join(base, "config", "sources_map.json")
	}
	deps := a.settings.Dependencies
	if deps == "" {
		deps = filepath.Join(base, "config", "model_dependencies.json")
	}
	return sources, deps
}

// period returns the effective period variable for pattern templating.
func (a *App) period() string {
	return firstOf(a.cfg.Period, a.settings.Period, "")
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
