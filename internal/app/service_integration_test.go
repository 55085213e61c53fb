package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pacer/internal/adapters/mq/queue"
	service "github.com/okian/pacer/internal/app"
	"github.com/okian/pacer/internal/domain/policy"
	"github.com/okian/pacer/internal/simulation"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service with a small worker pool", t, func() {
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(100),
			service.WithMaxSimulations(20),
		)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When every policy simulates a batch", func() {
			for _, kind := range []policy.Kind{policy.KindPacing, policy.KindBayesian} {
				stats, err := svc.Simulate(ctx, simulation.BatchRequest{Policy: string(kind), Campaigns: 6, Seed: 42})

				So(err, ShouldBeNil)
				So(stats.Policy, ShouldEqual, string(kind))
				So(stats.Campaigns, ShouldEqual, 6)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.MeanTicks, ShouldBeGreaterThan, 0)
				So(stats.Duration, ShouldBeGreaterThan, 0)
			}

			Convey("Then no batch stays pending", func() {
				So(svc.GetStats()["pendingBatches"], ShouldEqual, 0)
			})
		})

		Convey("When the same batch runs twice", func() {
			req := simulation.BatchRequest{Policy: "bayesian", Campaigns: 4, Seed: 7}
			a, errA := svc.Simulate(ctx, req)
			b, errB := svc.Simulate(ctx, req)

			Convey("Then the outcome is reproducible", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(b.MeanTicks, ShouldEqual, a.MeanTicks)
				So(b.Fulfilled, ShouldEqual, a.Fulfilled)
				So(b.MeanNotified, ShouldEqual, a.MeanNotified)
			})
		})

		Convey("When a batch is out of bounds", func() {
			for _, n := range []int{0, 21} {
				_, err := svc.Simulate(ctx, simulation.BatchRequest{Policy: "pacing", Campaigns: n})
				So(errors.Is(err, simulation.ErrInvalidBatch), ShouldBeTrue)
			}
			_, err := svc.Simulate(ctx, simulation.BatchRequest{Policy: "greedy", Campaigns: 1})
			So(errors.Is(err, policy.ErrUnknownPolicy), ShouldBeTrue)
		})

		Convey("When the caller gives up", func() {
			short, cancelShort := context.WithCancel(ctx)
			cancelShort()
			_, err := svc.Simulate(short, simulation.BatchRequest{Policy: "pacing", Campaigns: 3})

			Convey("Then the request fails with the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestServiceBackpressure(t *testing.T) {
	Convey("Given a service whose queue holds one job", t, func() {
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
		)
		defer svc.Stop()
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("A large batch is refused as queue full", func() {
			_, err := svc.Simulate(ctx, simulation.BatchRequest{Policy: "stochastic", Campaigns: 200})
			So(errors.Is(err, queue.ErrFull), ShouldBeTrue)
		})
	})
}

func TestServiceStopReleasesBatches(t *testing.T) {
	Convey("Given a long batch in flight", t, func() {
		svc := service.New(service.WithWorkerCount(1))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)

		errCh := make(chan error, 1)
		go func() {
			_, err := svc.Simulate(ctx, simulation.BatchRequest{Policy: "stochastic", Campaigns: 500})
			errCh <- err
		}()

		deadline := time.Now().Add(time.Second)
		for svc.GetStats()["pendingBatches"] != 1 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		svc.Stop()

		Convey("Then the waiting request fails with ErrStopped", func() {
			select {
			case err := <-errCh:
				So(errors.Is(err, service.ErrStopped), ShouldBeTrue)
				So(errors.Is(err, queue.ErrClosed), ShouldBeTrue)
			case <-time.After(30 * time.Second):
				So("request still waiting", ShouldBeEmpty)
			}
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given many campaigns decided concurrently", t, func() {
		svc := service.New(service.WithStoreSize(8))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		const campaigns, ticks = 16, 5
		var wg sync.WaitGroup
		errs := make(chan error, campaigns*ticks)
		for i := range campaigns {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("campaign-%d", i)
				for tick := range ticks {
					st := openState(120, 5*24*time.Hour)
					st.Now = st.Now.Add(time.Duration(tick) * time.Hour)
					if _, err := svc.Decide(ctx, policy.KindBayesian, id, st); err != nil {
						errs <- err
					}
				}
			}(i)
		}
		wg.Wait()
		close(errs)

		Convey("Then every decision succeeds and the store stays bounded", func() {
			for err := range errs {
				So(err, ShouldBeNil)
			}
			So(svc.GetStats()["campaigns"], ShouldBeLessThanOrEqualTo, 8)
		})
	})
}
