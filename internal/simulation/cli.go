package simulation

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/pacer/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging initialises the global logger to write to stdout and to a log
// file. An empty logFile gets a timestamped name. The returned func closes
// the file.
func SetupLogging(logFile, format string, verbose bool) (func() error, error) {
	if logFile == "" {
		logFile = "simulate_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(
		logger.WithWriter(io.MultiWriter(os.Stdout, file)),
		logger.WithFormat(format),
	); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	return file.Close, nil
}

// ShowHelp prints usage information for the simulate tool.
func ShowHelp() {
	os.Stdout.WriteString(`Pacer Campaign Simulator
========================

Runs simulated hiring campaigns against a pacing policy and reports how
often the vacancies were filled.

Usage:
  go run ./cmd/simulate [options]

Options:
  -policy string
        Policy to simulate: pacing, bayesian or stochastic (default "bayesian")
  -campaigns int
        Number of campaigns to simulate (default 100)
  -seed uint
        Seed of the first campaign (default 1)
  -workers int
        Number of campaigns simulated concurrently (default CPU cores)
  -url string
        Run the batch on a pacer service instead of locally
  -timeout duration
        HTTP request timeout in remote mode (default 5m)
  -output string
        Trajectory file (default: trajectories_TIMESTAMP.json)
  -log string
        Log file (default: simulate_TIMESTAMP.log)
  -format string
        Log format, text or json (default "text")
  -verbose
        Enable debug logging
  -help
        Show this help message

Configuration:
  Policy and simulator settings are read like the service does: defaults,
  then the YAML file named by PACER_CONFIG, then PACER_ environment variables.

Examples:
  # Compare policies on the same campaigns
  go run ./cmd/simulate -policy pacing -campaigns 500 -seed 7
  go run ./cmd/simulate -policy stochastic -campaigns 500 -seed 7

  # Delegate the batch to a running service
  go run ./cmd/simulate -url http://localhost:9080 -policy bayesian
`)
}
