package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/pacer/internal/adapters/mq/worker"
	"github.com/okian/pacer/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan model.SimulationJob
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan model.SimulationJob, 16)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan model.SimulationJob { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

// mockSimulator reports one tick per seed and fails the "broken" policy.
type mockSimulator struct{}

func (mockSimulator) Simulate(_ context.Context, job model.SimulationJob) model.SimulationResult {
	res := model.SimulationResult{JobID: job.ID, Policy: job.Policy, Ticks: int(job.Seed)}
	if job.Policy == "broken" {
		res.Err = "solver failed"
	}
	return res
}

type lostSimulator struct{}

func (lostSimulator) Simulate(context.Context, model.SimulationJob) model.SimulationResult {
	return model.SimulationResult{}
}

type mockSink struct {
	mu      sync.Mutex
	results map[string]model.SimulationResult
}

func newMockSink() *mockSink {
	return &mockSink{results: make(map[string]model.SimulationResult)}
}

func (s *mockSink) Deliver(_ context.Context, res model.SimulationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.JobID] = res
}

func (s *mockSink) get(id string) (model.SimulationResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[id]
	return res, ok
}

func (s *mockSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running InMemoryWorker", t, func() {
		q := newMockQueue()
		sink := newMockSink()
		w := worker.NewInMemoryWorker(q, mockSimulator{}, sink, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job is queued", func() {
			q.jobs <- model.SimulationJob{ID: "job-1", Batch: "b1", Policy: "pacing", Seed: 7}

			convey.Convey("Then its result reaches the sink tagged with the batch", func() {
				convey.So(eventually(func() bool { _, ok := sink.get("job-1"); return ok }), convey.ShouldBeTrue)
				res, _ := sink.get("job-1")
				convey.So(res.Ticks, convey.ShouldEqual, 7)
				convey.So(res.Batch, convey.ShouldEqual, "b1")
				convey.So(res.Err, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the simulation fails", func() {
			q.jobs <- model.SimulationJob{ID: "job-2", Policy: "broken"}

			convey.Convey("Then the failed result is still delivered", func() {
				convey.So(eventually(func() bool { _, ok := sink.get("job-2"); return ok }), convey.ShouldBeTrue)
				res, _ := sink.get("job-2")
				convey.So(res.Err, convey.ShouldEqual, "solver failed")
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then a second shutdown is harmless", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a simulator that loses the job id", t, func() {
		q := newMockQueue()
		sink := newMockSink()
		w := worker.NewInMemoryWorker(q, lostSimulator{}, sink)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		q.jobs <- model.SimulationJob{ID: "job-3", Policy: "pacing"}

		convey.Convey("Then an error result is delivered under the job id", func() {
			convey.So(eventually(func() bool { _, ok := sink.get("job-3"); return ok }), convey.ShouldBeTrue)
			res, _ := sink.get("job-3")
			convey.So(res.Err, convey.ShouldEqual, worker.ErrNoResult.Error())
			convey.So(res.Policy, convey.ShouldEqual, "pacing")
		})
	})

	convey.Convey("Given a worker whose context is cancelled", t, func() {
		w := worker.NewInMemoryWorker(newMockQueue(), mockSimulator{}, newMockSink())
		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)
		cancel()

		convey.Convey("Then Shutdown returns promptly", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		q := newMockQueue()
		sink := newMockSink()

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, q, mockSimulator{}, sink, nil)

			convey.Convey("Then it has at least one worker", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThanOrEqualTo, 1)
				convey.So(pool.Active(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When started with several jobs queued", func() {
			pool := worker.NewPool(4, q, mockSimulator{}, sink, nil)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			for i := range 10 {
				q.jobs <- model.SimulationJob{ID: string(rune('a' + i)), Policy: "bayesian", Seed: uint64(i)}
			}

			convey.Convey("Then every job is delivered", func() {
				convey.So(eventually(func() bool { return sink.len() == 10 }), convey.ShouldBeTrue)
			})

			convey.Convey("Then shutdown closes the queue and stops the workers", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()
				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)

				_, open := <-q.jobs
				for open {
					_, open = <-q.jobs
				}
				convey.So(open, convey.ShouldBeFalse)
			})
		})
	})
}
