package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pacer/internal/domain/policy"
	"github.com/okian/pacer/pkg/logger"
)

const directoryPermission = 0750

// Run executes a simulate CLI run, locally through exec or on the service
// at cfg.BaseURL, and logs the aggregated statistics.
func Run(ctx context.Context, cfg *Config, exec *Executor) (Stats, error) {
	if _, err := policy.ParseKind(cfg.Policy); err != nil {
		return Stats{}, err
	}
	if cfg.Campaigns <= 0 {
		return Stats{}, fmt.Errorf("%w: campaigns must be positive, got %d", ErrInvalidBatch, cfg.Campaigns)
	}

	log := logger.Get()
	log.Info(ctx, "starting campaign simulation",
		logger.String("policy", cfg.Policy),
		logger.Int("campaigns", cfg.Campaigns),
		logger.Any("seed", cfg.Seed),
		logger.Int("workers", cfg.Workers),
		logger.String("baseURL", cfg.BaseURL),
	)

	req := BatchRequest{Policy: cfg.Policy, Campaigns: cfg.Campaigns, Seed: cfg.Seed}
	start := time.Now()

	var (
		stats Stats
		err   error
	)
	if cfg.BaseURL != "" {
		stats, err = runRemote(ctx, cfg, req)
	} else {
		stats, err = runLocal(ctx, cfg, exec, req)
	}
	if err != nil {
		return Stats{}, err
	}
	if stats.Duration == 0 {
		stats.Duration = time.Since(start)
	}

	displayFinalStats(ctx, stats)
	return stats, nil
}

func runLocal(ctx context.Context, cfg *Config, exec *Executor, req BatchRequest) (Stats, error) {
	start := time.Now()
	trajectories, err := exec.RunBatch(ctx, req.Jobs(uuid.NewString()), cfg.Workers)
	if err != nil {
		return Stats{}, fmt.Errorf("simulation interrupted: %w", err)
	}

	stats := Aggregate(req.Policy, Results(trajectories))
	stats.Duration = time.Since(start)

	if err := saveTrajectories(ctx, cfg.OutputFile, trajectories); err != nil {
		logger.Get().Warn(ctx, "failed to save trajectories", logger.Error(err))
	}
	return stats, nil
}

func runRemote(ctx context.Context, cfg *Config, req BatchRequest) (Stats, error) {
	client := newHTTPClient(cfg.Timeout)
	if err := checkServiceHealth(ctx, client, cfg.BaseURL); err != nil {
		return Stats{}, fmt.Errorf("service health check failed: %w", err)
	}
	return submitBatch(ctx, client, cfg.BaseURL, req)
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, baseURL string) error {
	resp, err := client.Get(ctx, baseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// The service answers with Prometheus metrics; any 200 is healthy.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// saveTrajectories writes trajectories as a JSON array, one campaign per line.
func saveTrajectories(ctx context.Context, filename string, trajectories []Trajectory) error {
	if len(trajectories) == 0 {
		return ErrNoTrajectories
	}
	if filename == "" {
		filename = "trajectories_" + time.Now().Format("20060102_150405") + ".json"
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	if _, err := file.WriteString("[\n"); err != nil {
		return fmt.Errorf("failed to write opening bracket: %w", err)
	}
	for i, t := range trajectories {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal trajectory %d: %w", i, err)
		}
		if i > 0 {
			data = append([]byte(",\n"), data...)
		}
		if _, err := file.Write(data); err != nil {
			return fmt.Errorf("failed to write trajectory %d: %w", i, err)
		}
	}
	if _, err := file.WriteString("\n]\n"); err != nil {
		return fmt.Errorf("failed to write closing bracket: %w", err)
	}

	logger.Get().Info(ctx, "trajectories saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats Stats) {
	logger.Get().Info(ctx, "final statistics",
		logger.String("policy", stats.Policy),
		logger.Int("campaigns", stats.Campaigns),
		logger.Int("failed", stats.Failed),
		logger.Int("fulfilled", stats.Fulfilled),
		logger.Int("noVacancies", stats.NoVacancies),
		logger.Float64("fulfillmentRate", stats.FulfillmentRate),
		logger.Float64("meanTicks", stats.MeanTicks),
		logger.Float64("stdTicks", stats.StdTicks),
		logger.Float64("meanNotified", stats.MeanNotified),
		logger.Float64("meanAccepted", stats.MeanAccepted),
		logger.Float64("meanOffersAccepted", stats.MeanOffersAccepted),
		logger.String("duration", stats.Duration.String()),
	)
}
