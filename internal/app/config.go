package app

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Commands lists the accepted values of Config.Command in usage order.
var Commands = []string{"init", "write", "status", "run", "collect", "all"}

// LedgerOff disables the run ledger when given as Config.LedgerPath.
const LedgerOff = "off"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command        string
	ExperimentPath string // hcl file or directory
	ExperimentName string

	LogFormat  string
	LogLevel   string
	Workers    int
	Scales     []int
	LedgerPath string
	ReportPath string
	XLSXPath   string
	Wait       time.Duration
	StatusPort int
	// StreamEngine copies engine output to the app's writer.
	StreamEngine bool
	EnvFiles     []string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ExperimentPath == "" {
		return nil, errors.New("ExperimentPath is a required configuration field and cannot be empty")
	}
	if !slices.Contains(Commands, cfg.Command) {
		return nil, fmt.Errorf("unknown command %q: must be one of %v", cfg.Command, Commands)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return nil, fmt.Errorf("status port %d is out of range", cfg.StatusPort)
	}
	if cfg.Wait < 0 {
		return nil, fmt.Errorf("wait must not be negative, got %s", cfg.Wait)
	}
	if len(cfg.Scales) > 0 && cfg.Command != "run" && cfg.Command != "all" {
		return nil, fmt.Errorf("scales can only be restricted for 'run' and 'all', not %q", cfg.Command)
	}
	return &cfg, nil
}
