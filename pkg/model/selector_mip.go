package model

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/limaJavier/routeselection/pkg/mip"
)

const selectionTolerance = 1e-6

type mipSelector struct {
	solver mip.MIPSolver
}

func NewMIPSelector(solver mip.MIPSolver) Selector {
	return &mipSelector{
		solver: solver,
	}
}

func (selector *mipSelector) Select(ctx context.Context, instance Instance) (Solution, error) {
	//** Build model
	model, err := buildCoverageModel(instance)
	if err != nil {
		return Solution{}, err
	}

	//** Solve model
	result, err := selector.solver.Solve(ctx, model.problem)
	if err != nil {
		return Solution{}, fmt.Errorf("cannot solve %v: %w", instance.Name(), err)
	}

	return model.extract(result), nil
}

// extract keeps every route whose selection variable rounds to one, in candidate order
func (model *coverageModel) extract(result mip.Solution) Solution {
	solution := Solution{
		Day:     model.instance.Day,
		Region:  model.instance.Region,
		Routes:  []Route{},
		Indices: []int{},
		Optimal: result.Status == mip.Optimal,
		Status:  result.Status,
		Nodes:   result.Nodes,
	}
	if !result.HasSolution() {
		return solution
	}

	for column, value := range result.Values {
		route, ok := model.indexer.Route(column)
		if ok && math.Abs(value-1) <= selectionTolerance {
			solution.Indices = append(solution.Indices, route)
			solution.Routes = append(solution.Routes, model.instance.Routes[route])
		}
	}
	solution.Objective = result.Objective
	solution.Slack = math.Max(0, result.Values[model.indexer.SlackColumn()])
	return solution
}

func (selector *mipSelector) Verify(solution Solution, instance Instance) bool {
	return verify(solution, instance)
}

// verify checks that the chosen routes serve every required store exactly once within the fleet cap,
// and that the reported objective is the one those routes incur
func verify(solution Solution, instance Instance) bool {
	model, err := buildCoverageModel(instance)
	if err != nil || len(solution.Indices) != len(solution.Routes) || len(solution.Indices) > instance.MaxTrucks {
		return false
	}

	// Indices must be strictly increasing positions whose routes match the reported ones
	for position, route := range solution.Indices {
		if route < 0 || route >= len(instance.Routes) ||
			(position > 0 && route <= solution.Indices[position-1]) ||
			!slices.Equal(instance.Routes[route].Stores, solution.Routes[position].Stores) {
			return false
		}
	}

	served := make(map[Store]int, len(instance.Stores))
	for _, route := range solution.Indices {
		for _, store := range slices.Compact(slices.Sorted(slices.Values(instance.Routes[route].Stores))) {
			served[store]++
		}
	}
	for _, store := range instance.Stores {
		if served[store] != 1 {
			return false
		}
	}

	objective, _ := model.evaluate(solution.Indices)
	return math.Abs(objective-solution.Objective) <= 1e-6*math.Max(1, math.Abs(objective))
}

// ExportLP renders the coverage model of instance in CPLEX LP format
func ExportLP(instance Instance) (string, error) {
	model, err := buildCoverageModel(instance)
	if err != nil {
		return "", err
	}
	return model.problem.ToLP(), nil
}
