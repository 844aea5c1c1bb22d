package mip

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	integralityTolerance = 1e-6
	improvementTolerance = 1e-9
	incumbentTolerance   = 1e-5
)

type branchAndBoundSolver struct {
	options Options
	logger  zerolog.Logger
}

// NewBranchAndBoundSolver returns a depth-first branch-and-bound search bounded by LP relaxations.
// Branching picks the most fractional integer column (lowest index on ties) and explores the up-branch first.
func NewBranchAndBoundSolver(options Options) MIPSolver {
	return &branchAndBoundSolver{
		options: options,
		logger:  log.With().Str("component", "branch_and_bound").Logger(),
	}
}

type searchNode struct {
	lower []float64
	upper []float64
	depth int
}

func (node searchNode) child() searchNode {
	return searchNode{
		lower: append([]float64(nil), node.lower...),
		upper: append([]float64(nil), node.upper...),
		depth: node.depth + 1,
	}
}

func (solver *branchAndBoundSolver) Solve(ctx context.Context, problem *MIP) (Solution, error) {
	if err := problem.Validate(); err != nil {
		return Solution{}, err
	}

	if solver.options.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, solver.options.TimeLimit)
		defer cancel()
	}

	start := time.Now()
	logger := solver.logger.With().Str("model", problem.Name).Logger()

	//** Initialize root bounds
	root := searchNode{
		lower: make([]float64, len(problem.Columns)),
		upper: make([]float64, len(problem.Columns)),
	}
	for index, column := range problem.Columns {
		root.lower[index], root.upper[index] = column.Lower, column.Upper
		if column.Integer {
			root.lower[index] = math.Ceil(column.Lower - integralityTolerance)
			if !math.IsInf(column.Upper, 1) {
				root.upper[index] = math.Floor(column.Upper + integralityTolerance)
			}
			if root.lower[index] > root.upper[index] {
				return Solution{Status: Infeasible}, nil
			}
		}
	}

	//** Depth-first search
	var (
		stack         = []searchNode{root}
		bestValues    []float64
		bestObjective = math.Inf(1)
		nodes         = 0
		unproven      = false
	)

	incumbent := func(status Status) Solution {
		solution := Solution{Status: status, Values: bestValues, Nodes: nodes}
		if bestValues != nil {
			solution.Objective = bestObjective
		}
		logger.Debug().
			Str("status", status.String()).
			Int("nodes", nodes).
			Float64("objective", solution.Objective).
			Dur("elapsed", time.Since(start)).
			Msg("search finished")
		return solution
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return incumbent(TimedOut), nil
			}
			return incumbent(SolveFailed), nil
		} else if solver.options.NodeLimit > 0 && nodes >= solver.options.NodeLimit {
			return incumbent(SolveFailed), nil
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		values, bound, status := solveRelaxation(problem, current.lower, current.upper)
		switch status {
		case relaxationInfeasible:
			continue
		case relaxationUnbounded:
			logger.Debug().Int("depth", current.depth).Msg("unbounded relaxation")
			return incumbent(SolveFailed), nil
		case relaxationFailed:
			// The subtree is dropped without a bound, so optimality can no longer be proven
			unproven = true
			logger.Warn().Int("depth", current.depth).Msg("relaxation failed numerically")
			continue
		}

		if bound >= solver.cutoff(bestObjective) {
			continue
		}

		branch := mostFractional(problem, values)
		if branch < 0 {
			rounded := roundIntegers(problem, values)
			objective := problem.Objective(rounded)
			if !problem.Feasible(rounded, incumbentTolerance) {
				unproven = true
				logger.Warn().Int("depth", current.depth).Msg("integral relaxation violates the model after rounding")
				continue
			}
			if objective < bestObjective-improvementTolerance {
				bestValues, bestObjective = rounded, objective
				logger.Debug().Int("nodes", nodes).Int("depth", current.depth).Float64("objective", objective).Msg("new incumbent")
			}
			continue
		}

		down, up := current.child(), current.child()
		down.upper[branch] = math.Floor(values[branch])
		up.lower[branch] = math.Ceil(values[branch])
		stack = append(stack, down, up) // up is popped first
	}

	if unproven {
		return incumbent(SolveFailed), nil
	} else if bestValues == nil {
		return incumbent(Infeasible), nil
	}
	return incumbent(Optimal), nil
}

// cutoff is the bound at or above which a node cannot improve the incumbent enough to matter
func (solver *branchAndBoundSolver) cutoff(bestObjective float64) float64 {
	if math.IsInf(bestObjective, 1) {
		return bestObjective
	}
	return bestObjective - math.Max(improvementTolerance, solver.options.Gap*math.Abs(bestObjective))
}

func mostFractional(problem *MIP, values []float64) int {
	branch, distance := -1, integralityTolerance
	for index, column := range problem.Columns {
		if !column.Integer {
			continue
		}
		fraction := values[index] - math.Floor(values[index])
		if current := math.Min(fraction, 1-fraction); current > distance {
			branch, distance = index, current
		}
	}
	return branch
}

func roundIntegers(problem *MIP, values []float64) []float64 {
	rounded := make([]float64, len(values))
	for index, column := range problem.Columns {
		rounded[index] = values[index]
		if column.Integer {
			rounded[index] = math.Round(values[index])
		}
	}
	return rounded
}
