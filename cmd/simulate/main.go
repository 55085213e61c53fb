package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/pacer/internal/config"
	"github.com/okian/pacer/internal/simulation"
	"github.com/okian/pacer/pkg/logger"
)

// Default configuration constants.
const (
	defaultCampaigns  = 100
	defaultSeed       = 1
	defaultTimeout    = 5 * time.Minute
	defaultRunTimeout = 30 * time.Minute
)

func main() {
	var (
		policyName = flag.String("policy", "bayesian", "Policy to simulate: pacing, bayesian or stochastic")
		campaigns  = flag.Int("campaigns", defaultCampaigns, "Number of campaigns to simulate")
		seed       = flag.Uint64("seed", defaultSeed, "Seed of the first campaign")
		workers    = flag.Int("workers", runtime.NumCPU(), "Number of campaigns simulated concurrently")
		baseURL    = flag.String("url", "", "Run the batch on a pacer service instead of locally")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout in remote mode")
		outputFile = flag.String("output", "", "Trajectory file (default: trajectories_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file (default: simulate_TIMESTAMP.log)")
		logFormat  = flag.String("format", "text", "Log format, text or json")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulation.ShowHelp()
		return
	}

	closeLog, err := simulation.SetupLogging(*logFile, *logFormat, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(&simulation.Config{
		BaseURL:    *baseURL,
		Policy:     *policyName,
		Campaigns:  *campaigns,
		Seed:       *seed,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		LogFormat:  *logFormat,
		Verbose:    *verbose,
	}); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		_ = closeLog()
		os.Exit(1)
	}
	_ = closeLog()
}

func run(cfg *simulation.Config) error {
	svcCfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	exec := simulation.NewExecutor(svcCfg.Policy, svcCfg.Simulator,
		simulation.WithLogger(logger.Get().Named("simulation")))
	_, err = simulation.Run(ctx, cfg, exec)
	return err
}
