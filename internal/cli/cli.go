package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
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

// Config carries the parsed command-line options for the proxygen tool.
type Config struct {
	DefsPath      string
	OutDir        string
	PreserveNames bool
	LogFormat     string
	LogLevel      slog.Level
}

// Parse processes command-line arguments. It returns the populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("proxygen", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
proxygen - Ahead-of-time proxy generation for service definitions.

Usage:
  proxygen [options] [DEFS_PATH]

Arguments:
  DEFS_PATH
    Path to a single .hcl definition file or a directory containing them.

Options:
`)
		flagSet.PrintDefaults()
	}

	defsFlag := flagSet.String("defs", "", "Path to the definition file or directory.")
	dFlag := flagSet.String("d", "", "Path to the definition file or directory (shorthand).")
	outFlag := flagSet.String("out", "gen", "Directory to write generated Go files into.")
	preserveFlag := flagSet.Bool("preserve-names", false, "Fail on export name collisions instead of disambiguating.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	cfg := &Config{
		DefsPath:      *defsFlag,
		OutDir:        *outFlag,
		PreserveNames: *preserveFlag,
	}
	if cfg.DefsPath == "" {
		cfg.DefsPath = *dFlag
	}
	if cfg.DefsPath == "" && flagSet.NArg() > 0 {
		cfg.DefsPath = flagSet.Arg(0)
	}
	if cfg.DefsPath == "" {
		flagSet.Usage()
		return nil, false, &ExitError{Code: 2, Message: "no definition path given"}
	}

	switch strings.ToLower(*logFormatFlag) {
	case "text", "json":
		cfg.LogFormat = strings.ToLower(*logFormatFlag)
	default:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown log format %q", *logFormatFlag)}
	}

	level, err := parseLevel(*logLevelFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	cfg.LogLevel = level

	return cfg, false, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
