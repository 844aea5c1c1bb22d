package planner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/routeselection/pkg/metrics"
	"github.com/limaJavier/routeselection/pkg/mip"
	"github.com/limaJavier/routeselection/pkg/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one instance. Err is set when the instance was malformed or the backend failed,
// in which case Solution only carries the instance's day and region
type Result struct {
	Instance model.Instance
	Solution model.Solution
	Err      error
	Elapsed  time.Duration
}

func (result Result) Malformed() bool {
	var malformedErr *model.MalformedInstanceError
	return errors.As(result.Err, &malformedErr)
}

type Plan struct {
	RunID   string
	Results []Result // Same order as the input instances
}

// Count returns how many results ended with status. Failed results count as solve-failed
func (plan Plan) Count(status mip.Status) int {
	return lo.CountBy(plan.Results, func(result Result) bool {
		if result.Err != nil {
			return status == mip.SolveFailed && !result.Malformed()
		}
		return result.Solution.Status == status
	})
}

func (plan Plan) MalformedCount() int {
	return lo.CountBy(plan.Results, Result.Malformed)
}

func (plan Plan) AllOptimal() bool {
	return plan.Count(mip.Optimal) == len(plan.Results)
}

type Planner struct {
	selector        model.Selector
	workers         int
	instanceTimeout time.Duration
	logger          zerolog.Logger
}

// New returns a planner solving up to workers instances at a time; a non-positive value uses GOMAXPROCS.
// A positive instanceTimeout bounds each instance on its own
func New(selector model.Selector, workers int, instanceTimeout time.Duration) *Planner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Planner{
		selector:        selector,
		workers:         workers,
		instanceTimeout: instanceTimeout,
		logger:          log.With().Str("component", "planner").Logger(),
	}
}

// Solve selects routes for every instance. Instances are independent so one failing never stops the others;
// the returned error is only set when ctx ends before every instance was started
func (planner *Planner) Solve(ctx context.Context, instances []model.Instance) (Plan, error) {
	plan := Plan{
		RunID:   uuid.NewString(),
		Results: make([]Result, len(instances)),
	}
	logger := planner.logger.With().Str("run", plan.RunID).Logger()
	logger.Info().Int("instances", len(instances)).Int("workers", planner.workers).Msg("solving batch")

	metrics.Register()
	overlaps := model.CheckDisjointRegions(instances)

	for index, instance := range instances {
		plan.Results[index] = Result{
			Instance: instance,
			Solution: model.Solution{Day: instance.Day, Region: instance.Region},
		}
	}

	group := errgroup.Group{}
	group.SetLimit(planner.workers)
	for index, instance := range instances {
		if err := ctx.Err(); err != nil {
			_ = group.Wait()
			for remaining := index; remaining < len(instances); remaining++ {
				plan.Results[remaining].Err = err
			}
			return plan, fmt.Errorf("batch %v interrupted: %w", plan.RunID, err)
		}

		if err, ok := overlaps[index]; ok {
			plan.Results[index].Err = err
			metrics.InstancesSolved.WithLabelValues("malformed").Inc()
			logger.Warn().Str("instance", instance.Name()).Err(err).Msg("skipping instance")
			continue
		}

		group.Go(func() error {
			plan.Results[index] = planner.solveInstance(ctx, logger, instance)
			return nil
		})
	}
	_ = group.Wait()

	logger.Info().
		Int("optimal", plan.Count(mip.Optimal)).
		Int("infeasible", plan.Count(mip.Infeasible)).
		Int("timed_out", plan.Count(mip.TimedOut)).
		Int("failed", plan.Count(mip.SolveFailed)).
		Int("malformed", plan.MalformedCount()).
		Msg("batch solved")
	return plan, nil
}

func (planner *Planner) solveInstance(ctx context.Context, logger zerolog.Logger, instance model.Instance) Result {
	if planner.instanceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, planner.instanceTimeout)
		defer cancel()
	}

	result := Result{Instance: instance}
	start := time.Now()
	result.Solution, result.Err = planner.selector.Select(ctx, instance)
	result.Elapsed = time.Since(start)
	metrics.SolveDuration.Observe(result.Elapsed.Seconds())

	event := logger.With().Str("instance", instance.Name()).Dur("elapsed", result.Elapsed).Logger()
	if result.Err != nil {
		result.Solution = model.Solution{Day: instance.Day, Region: instance.Region}
		label := mip.SolveFailed.String()
		if result.Malformed() {
			label = "malformed"
		}
		metrics.InstancesSolved.WithLabelValues(label).Inc()
		event.Error().Err(result.Err).Msg("instance failed")
		return result
	}

	metrics.InstancesSolved.WithLabelValues(result.Solution.Status.String()).Inc()
	metrics.BranchAndBoundNodes.Add(float64(result.Solution.Nodes))
	if result.Solution.Optimal && !planner.selector.Verify(result.Solution, instance) {
		result.Err = fmt.Errorf("solution of %v does not satisfy the model", instance.Name())
		event.Error().Err(result.Err).Msg("verification failed")
		return result
	}

	event.Debug().
		Str("status", result.Solution.Status.String()).
		Float64("objective", result.Solution.Objective).
		Ints("routes", result.Solution.Indices).
		Int("nodes", result.Solution.Nodes).
		Msg("instance solved")
	return result
}
