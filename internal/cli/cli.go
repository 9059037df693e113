package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/factbuild/internal/app"
	"github.com/vk/factbuild/internal/loader"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("factbuild", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
factbuild - incremental builder for the semantic accounting model.

Detects which source spreadsheets changed since the last run, reloads only
those, and rebuilds the fact tables that depend on them.

Usage:
  factbuild [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	settingsFlag := flagSet.String("settings", "settings.hcl", "Path to the HCL settings file.")
	dataRootFlag := flagSet.String("data-root", "", "Data root directory. Overrides FACTBUILD_DATA_ROOT and the configured candidates.")
	periodFlag := flagSet.String("period", "", "Accounting period substituted into templated source patterns, e.g. 2511.")
	staleFlag := flagSet.String("on-stale-cache", "", "What to do when a source has a cache but no files. Options: 'fail', 'delete', 'ignore'.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	inspectFlag := flagSet.Bool("inspect", false, "Report source freshness and artifact shapes without loading or rebuilding.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument: %q", flagSet.Arg(0))}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "" && logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	stale := strings.ToLower(*staleFlag)
	if stale != "" {
		if _, err := loader.ParseStalePolicy(stale); err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
	}

	return &app.Config{
		SettingsPath: *settingsFlag,
		DataRoot:     *dataRootFlag,
		Period:       *periodFlag,
		OnStaleCache: stale,
		LogLevel:     logLevel,
		LogFormat:    logFormat,
		Inspect:      *inspectFlag,
	}, false, nil
}
