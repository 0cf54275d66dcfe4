package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/scalegrid/internal/app"
	"github.com/vk/scalegrid/internal/scale"
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

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("scalegrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
scalegrid - run a multi-scale simulation experiment through an external engine.

Usage:
  scalegrid [options] COMMAND EXPERIMENT_PATH

Commands:
  init      Write a starter experiment definition to EXPERIMENT_PATH.
  write     Write the parameter file of every scale.
  status    Show the state of every scale.
  run       Run the engine for every scale (or those given with -scale).
  collect   Parse available output files and report on them.
  all       write, run and collect in one go.

Arguments:
  EXPERIMENT_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	var scales []int
	var envFiles []string

	experimentFlag := flagSet.String("experiment", "", "Name of the experiment to use when several are defined.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 1, "Number of scales run concurrently. 1 runs them one after another.")
	flagSet.Func("scale", "Restrict run to these scales, e.g. '16,32'. Repeatable.", func(v string) error {
		for _, part := range strings.Split(v, ",") {
			s, err := scale.Parse(part)
			if err != nil {
				return err
			}
			scales = append(scales, int(s))
		}
		return nil
	})
	ledgerFlag := flagSet.String("ledger", "", "Path of the SQLite run ledger. Defaults to runs.db in the experiment directory; 'off' disables it.")
	reportFlag := flagSet.String("report", "", "Write a YAML summary of collected results to this path.")
	xlsxFlag := flagSet.String("xlsx", "", "Write an XLSX workbook of collected results to this path.")
	waitFlag := flagSet.Duration("wait", 0, "Before collecting, wait up to this long for every output file to appear.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP status server during runs. 0 is disabled.")
	streamFlag := flagSet.Bool("stream", false, "Copy engine output to standard output.")
	flagSet.Func("env-file", "Dotenv file whose variables are available as env.NAME. Repeatable.", func(v string) error {
		envFiles = append(envFiles, v)
		return nil
	})

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		slog.Debug("No command provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	if flagSet.NArg() != 2 {
		return nil, false, &ExitError{Code: 2, Message: "expected COMMAND and EXPERIMENT_PATH"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		Command:        strings.ToLower(flagSet.Arg(0)),
		ExperimentPath: flagSet.Arg(1),
		ExperimentName: *experimentFlag,
		LogFormat:      logFormat,
		LogLevel:       logLevel,
		Workers:        *workersFlag,
		Scales:         scales,
		LedgerPath:     *ledgerFlag,
		ReportPath:     *reportFlag,
		XLSXPath:       *xlsxFlag,
		Wait:           *waitFlag,
		StatusPort:     *statusPortFlag,
		StreamEngine:   *streamFlag,
		EnvFiles:       envFiles,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "command", config.Command, "path", config.ExperimentPath)
	return config, false, nil
}
