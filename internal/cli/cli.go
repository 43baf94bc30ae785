package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/fedcompose/internal/app"
	"github.com/specialistvlad/fedcompose/internal/diag"
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

// FromRunError maps an App.Run error to an ExitError: composition errors
// exit with 1 and one line per error, everything else with 1 and the error
// text.
func FromRunError(err error) *ExitError {
	if list, ok := diag.AsList(err); ok {
		return &ExitError{Code: 1, Message: strings.Join(list.Messages(), "\n")}
	}
	return &ExitError{Code: 1, Message: err.Error()}
}

type flags struct {
	config        string
	output        string
	logFormat     string
	logLevel      string
	workers       int
	maxGraphNodes int
	trace         bool
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}

	var (
		f      flags
		parsed *app.Config
	)
	cmd := &cobra.Command{
		Use:   "fedcompose [flags] [CONFIG_PATH]",
		Short: "Compose GraphQL federation subgraphs into a supergraph.",
		Long: `fedcompose reads a composition config (HCL file or directory, or a
supergraph.yaml), composes the listed subgraph schemas and prints the
supergraph SDL.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, rest []string) error {
			path := f.config
			if path == "" && len(rest) > 0 {
				path = rest[0]
			}
			slog.Debug("Config path determined.", "path", path)
			if path == "" {
				slog.Debug("No config path provided, printing usage and exiting.")
				return cmd.Usage()
			}

			logFormat := strings.ToLower(f.logFormat)
			if logFormat != "text" && logFormat != "json" {
				return fmt.Errorf("invalid log-format: must be 'text' or 'json'")
			}
			logLevel := strings.ToLower(f.logLevel)
			switch logLevel {
			case "debug", "info", "warn", "error":
			default:
				return fmt.Errorf("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
			}

			cfg, err := app.NewConfig(app.Config{
				ConfigPath:    path,
				OutputPath:    f.output,
				LogFormat:     logFormat,
				LogLevel:      logLevel,
				Workers:       f.workers,
				MaxGraphNodes: f.maxGraphNodes,
				Trace:         f.trace,
			})
			if err != nil {
				return err
			}
			parsed = cfg
			return nil
		},
	}
	cmd.SetArgs(args)
	cmd.SetOut(output)
	cmd.SetErr(output)

	fs := cmd.Flags()
	fs.StringVarP(&f.config, "config", "c", "", "Path to the composition config (.hcl file or directory, .yaml/.yml file).")
	fs.StringVarP(&f.output, "output", "o", "", "Write the supergraph SDL to this file instead of stdout.")
	fs.StringVar(&f.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	fs.StringVar(&f.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	fs.IntVar(&f.workers, "workers", 0, "Concurrent workers per composition stage. 0 uses GOMAXPROCS.")
	fs.IntVar(&f.maxGraphNodes, "max-graph-nodes", 0, "Upper bound on query graph nodes. 0 uses the built-in default.")
	fs.BoolVar(&f.trace, "trace", false, "Print OpenTelemetry spans of the composition to stderr.")

	if err := cmd.Execute(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if parsed == nil {
		// Help or usage was printed.
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "config", parsed)
	return parsed, false, nil
}
