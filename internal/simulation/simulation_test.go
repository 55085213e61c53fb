package simulation_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/policy"
	"github.com/okian/pacer/internal/domain/simulator"
	"github.com/okian/pacer/internal/simulation"
	"github.com/okian/pacer/pkg/logger"
)

func newExecutor() *simulation.Executor {
	return simulation.NewExecutor(policy.DefaultConfig(), simulator.DefaultConfig())
}

func TestExecutor(t *testing.T) {
	Convey("Given an executor with default settings", t, func() {
		exec := newExecutor()
		ctx := context.Background()

		Convey("A bayesian job runs to a terminal decision", func() {
			tr := exec.Run(ctx, model.SimulationJob{ID: "7", Batch: "b", Policy: "bayesian", Seed: 3})

			So(tr.Result.Err, ShouldBeEmpty)
			So(tr.Result.JobID, ShouldEqual, "7")
			So(tr.Result.Batch, ShouldEqual, "b")
			So(tr.Result.Ticks, ShouldEqual, len(tr.Steps))
			So(tr.Steps, ShouldNotBeEmpty)
			So(tr.Steps[0].State.CorrelationID, ShouldEqual, "Case7_0")
		})

		Convey("The same seed replays the same campaign", func() {
			job := model.SimulationJob{ID: "1", Policy: "pacing", Seed: 11}
			a := exec.Run(ctx, job)
			b := exec.Run(ctx, job)
			So(b.Result, ShouldResemble, a.Result)
			So(len(b.Steps), ShouldEqual, len(a.Steps))
		})

		Convey("An unknown policy is reported in the result", func() {
			res := exec.Simulate(ctx, model.SimulationJob{ID: "x", Policy: "greedy"})
			So(res.Err, ShouldContainSubstring, "unknown policy")
			So(res.Ticks, ShouldEqual, 0)
		})
	})
}

func TestBatch(t *testing.T) {
	Convey("Given a batch request", t, func() {
		req := simulation.BatchRequest{Policy: "bayesian", Campaigns: 4, Seed: 10}

		Convey("Jobs are numbered and spaced two seeds apart", func() {
			jobs := req.Jobs("batch-1")
			So(jobs, ShouldHaveLength, 4)
			So(jobs[3], ShouldResemble, model.SimulationJob{ID: "3", Batch: "batch-1", Policy: "bayesian", Seed: 16})
		})

		Convey("A non-positive count yields no jobs", func() {
			So(simulation.BatchRequest{Campaigns: -1}.Jobs("b"), ShouldBeEmpty)
		})

		Convey("RunBatch keeps job order", func() {
			ts, err := newExecutor().RunBatch(context.Background(), req.Jobs("b"), 2)
			So(err, ShouldBeNil)
			So(ts, ShouldHaveLength, 4)
			for i, tr := range ts {
				So(tr.Result.JobID, ShouldEqual, req.Jobs("b")[i].ID)
			}
		})

		Convey("RunBatch stops on a cancelled context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := newExecutor().RunBatch(ctx, req.Jobs("b"), 2)
			So(err, ShouldEqual, context.Canceled)
		})
	})
}

func TestAggregate(t *testing.T) {
	Convey("Given mixed results", t, func() {
		results := []model.SimulationResult{
			{JobID: "0", Ticks: 4, Notified: 40, Accepted: 8, OffersAccepted: 5, Vacancies: 5, Fulfilled: true},
			{JobID: "1", Ticks: 6, Notified: 60, Accepted: 10, OffersAccepted: 3, Vacancies: 4},
			{JobID: "2", Err: "boom"},
		}
		s := simulation.Aggregate("pacing", results)

		So(s.Campaigns, ShouldEqual, 3)
		So(s.Failed, ShouldEqual, 1)
		So(s.Errors, ShouldResemble, []string{"2: boom"})
		So(s.Fulfilled, ShouldEqual, 1)
		So(s.FulfillmentRate, ShouldEqual, 50)
		So(s.MeanTicks, ShouldEqual, 5)
		So(s.StdTicks, ShouldAlmostEqual, 1.4142135, 1e-6)
		So(s.MeanNotified, ShouldEqual, 50)
		So(s.MeanOffersAccepted, ShouldEqual, 4)
	})

	Convey("A single result has no spread", t, func() {
		s := simulation.Aggregate("pacing", []model.SimulationResult{{Ticks: 3}})
		So(s.StdTicks, ShouldEqual, 0)
		So(s.MeanTicks, ShouldEqual, 3)
	})

	Convey("Only failures leave the means at zero", t, func() {
		s := simulation.Aggregate("pacing", []model.SimulationResult{{Err: "x"}})
		So(s.MeanTicks, ShouldEqual, 0)
		So(s.FulfillmentRate, ShouldEqual, 0)
	})

	Convey("Given campaigns generated without vacancies", t, func() {
		s := simulation.Aggregate("pacing", []model.SimulationResult{
			{JobID: "0", Ticks: 1},
			{JobID: "1", Ticks: 1},
			{JobID: "2", Ticks: 5, OffersAccepted: 2, Vacancies: 2, Fulfilled: true},
			{JobID: "3", Ticks: 5, OffersAccepted: 1, Vacancies: 2},
		})

		So(s.NoVacancies, ShouldEqual, 2)
		So(s.Fulfilled, ShouldEqual, 1)
		So(s.FulfillmentRate, ShouldEqual, 50)
		So(s.MeanTicks, ShouldEqual, 3)
	})

	Convey("Given only campaigns without vacancies", t, func() {
		s := simulation.Aggregate("pacing", []model.SimulationResult{{Ticks: 1}, {Ticks: 1}})
		So(s.NoVacancies, ShouldEqual, 2)
		So(s.FulfillmentRate, ShouldEqual, 0)
	})
}

func TestRun(t *testing.T) {
	Convey("Given an initialised logger", t, func() {
		So(logger.Init(logger.WithWriter(io.Discard)), ShouldBeNil)
		ctx := context.Background()

		Convey("A local run writes every trajectory", func() {
			out := filepath.Join(t.TempDir(), "nested", "trajectories.json")
			cfg := &simulation.Config{Policy: "bayesian", Campaigns: 3, Seed: 5, Workers: 2, OutputFile: out}

			stats, err := simulation.Run(ctx, cfg, newExecutor())
			So(err, ShouldBeNil)
			So(stats.Campaigns, ShouldEqual, 3)
			So(stats.Duration, ShouldBeGreaterThan, 0)

			data, err := os.ReadFile(out)
			So(err, ShouldBeNil)
			var ts []simulation.Trajectory
			So(json.Unmarshal(data, &ts), ShouldBeNil)
			So(ts, ShouldHaveLength, 3)
		})

		Convey("An unknown policy is rejected up front", func() {
			_, err := simulation.Run(ctx, &simulation.Config{Policy: "greedy", Campaigns: 1}, newExecutor())
			So(errors.Is(err, policy.ErrUnknownPolicy), ShouldBeTrue)
		})

		Convey("A zero campaign count is rejected", func() {
			_, err := simulation.Run(ctx, &simulation.Config{Policy: "pacing"}, newExecutor())
			So(err, ShouldNotBeNil)
		})

		Convey("A remote run delegates to the service", func() {
			var got simulation.BatchRequest
			mux := http.NewServeMux()
			mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {})
			mux.HandleFunc("POST /simulations", func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&got)
				_ = json.NewEncoder(w).Encode(simulation.Stats{Policy: got.Policy, Campaigns: got.Campaigns, Fulfilled: 2})
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			cfg := &simulation.Config{BaseURL: srv.URL, Policy: "stochastic", Campaigns: 2, Seed: 9}
			stats, err := simulation.Run(ctx, cfg, nil)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, simulation.BatchRequest{Policy: "stochastic", Campaigns: 2, Seed: 9})
			So(stats.Fulfilled, ShouldEqual, 2)
		})

		Convey("A remote rejection surfaces the status", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/simulations" {
					http.Error(w, "queue full", http.StatusTooManyRequests)
				}
			}))
			defer srv.Close()

			_, err := simulation.Run(ctx, &simulation.Config{BaseURL: srv.URL, Policy: "pacing", Campaigns: 1}, nil)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "429")
		})
	})
}
