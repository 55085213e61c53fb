package simulation

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/okian/pacer/internal/domain/model"
)

// BatchRequest asks for a number of simulated campaigns of one policy.
type BatchRequest struct {
	Policy    string `json:"policy"`
	Campaigns int    `json:"campaigns"`
	Seed      uint64 `json:"seed"`
}

// Jobs expands the request into jobs of the given batch. Job i is seeded
// with Seed+2i so every campaign and its policy draw distinct streams.
func (r BatchRequest) Jobs(batch string) []model.SimulationJob {
	jobs := make([]model.SimulationJob, max(r.Campaigns, 0))
	for i := range jobs {
		jobs[i] = model.SimulationJob{
			ID:     strconv.Itoa(i),
			Batch:  batch,
			Policy: r.Policy,
			Seed:   r.Seed + 2*uint64(i),
		}
	}
	return jobs
}

// RunBatch runs jobs with at most workers in flight and returns the
// trajectories in job order. It only fails when ctx is done.
func (e *Executor) RunBatch(ctx context.Context, jobs []model.SimulationJob, workers int) ([]Trajectory, error) {
	out := make([]Trajectory, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.Run(gctx, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Results extracts the summaries of trajectories.
func Results(ts []Trajectory) []model.SimulationResult {
	out := make([]model.SimulationResult, len(ts))
	for i, t := range ts {
		out[i] = t.Result
	}
	return out
}
