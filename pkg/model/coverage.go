package model

import (
	"fmt"
	"math"

	"github.com/limaJavier/routeselection/pkg/mip"
)

type constraintState struct {
	instance Instance
	indexer  indexer
	visitors map[Store][]int // Routes visiting each required store, in candidate order
}

// Σ x_i <= maxTrucks
func fleetConstraints(state constraintState) []mip.Constraint {
	terms := make([]mip.Term, 0, len(state.instance.Routes))
	for route := range state.instance.Routes {
		terms = append(terms, mip.Term{Column: state.indexer.RouteColumn(route), Coefficient: 1})
	}
	return []mip.Constraint{{
		Name:  "fleet",
		Terms: terms,
		Sense: mip.LessEqual,
		Rhs:   float64(state.instance.MaxTrucks),
	}}
}

// Σ d_i x_i - s <= target
// The target stands for an average route duration but is not divided by the number of chosen routes, since that
// number is itself a decision; this keeps the model linear
func durationConstraints(state constraintState) []mip.Constraint {
	terms := make([]mip.Term, 0, len(state.instance.Routes)+1)
	for route, candidate := range state.instance.Routes {
		if candidate.Duration != 0 {
			terms = append(terms, mip.Term{Column: state.indexer.RouteColumn(route), Coefficient: candidate.Duration})
		}
	}
	terms = append(terms, mip.Term{Column: state.indexer.SlackColumn(), Coefficient: -1})
	return []mip.Constraint{{
		Name:  "duration",
		Terms: terms,
		Sense: mip.LessEqual,
		Rhs:   state.instance.TargetDuration,
	}}
}

// Σ_{i : store ∈ route_i} x_i = 1 for every required store
func coverConstraints(state constraintState) []mip.Constraint {
	constraints := make([]mip.Constraint, 0, len(state.instance.Stores))
	for index, store := range state.instance.Stores {
		routes := state.visitors[store]
		terms := make([]mip.Term, 0, len(routes))
		for _, route := range routes {
			terms = append(terms, mip.Term{Column: state.indexer.RouteColumn(route), Coefficient: 1})
		}
		constraints = append(constraints, mip.Constraint{
			Name:  fmt.Sprintf("cover_%d", index),
			Terms: terms,
			Sense: mip.Equal,
			Rhs:   1,
		})
	}
	return constraints
}

type coverageModel struct {
	instance Instance
	indexer  indexer
	costs    []float64 // Cost of each route, evaluated once
	problem  *mip.MIP
}

func buildCoverageModel(instance Instance) (*coverageModel, error) {
	if err := instance.Validate(); err != nil {
		return nil, err
	}

	//** Initialize dependencies
	indexer := newIndexer(len(instance.Routes))
	required := make(map[Store]bool, len(instance.Stores))
	for _, store := range instance.Stores {
		required[store] = true
	}
	visitors := make(map[Store][]int, len(instance.Stores))
	for route, candidate := range instance.Routes {
		seen := make(map[Store]bool, len(candidate.Stores))
		for _, store := range candidate.Stores {
			// A route visiting a store twice still serves it once
			if required[store] && !seen[store] {
				visitors[store] = append(visitors[store], route)
			}
			seen[store] = true
		}
	}

	//** Build columns
	costs := make([]float64, len(instance.Routes))
	columns := make([]mip.Column, indexer.Columns())
	for route, candidate := range instance.Routes {
		costs[route] = Cost(candidate.Duration)
		columns[indexer.RouteColumn(route)] = mip.Column{
			Name:    fmt.Sprintf("x_%d", route),
			Cost:    costs[route],
			Lower:   0,
			Upper:   1,
			Integer: true,
		}
	}
	columns[indexer.SlackColumn()] = mip.Column{
		Name:  "s",
		Cost:  instance.SlackWeight,
		Lower: 0,
		Upper: math.Inf(1),
	}

	//** Build constraints
	state := constraintState{
		instance: instance,
		indexer:  indexer,
		visitors: visitors,
	}
	constraints := buildConstraints([]func(state constraintState) []mip.Constraint{
		fleetConstraints,
		durationConstraints,
		coverConstraints,
	}, state)

	return &coverageModel{
		instance: instance,
		indexer:  indexer,
		costs:    costs,
		problem: &mip.MIP{
			Name:        instance.Name(),
			Columns:     columns,
			Constraints: constraints,
		},
	}, nil
}

// buildConstraints runs every constraint family on its own goroutine and concatenates the results in family order
func buildConstraints(families []func(state constraintState) []mip.Constraint, state constraintState) []mip.Constraint {
	type result struct {
		family      int
		constraints []mip.Constraint
	}
	resultsChannel := make(chan result, len(families))

	for family, constraint := range families {
		go func() {
			resultsChannel <- result{family, constraint(state)}
		}()
	}

	collected := make([][]mip.Constraint, len(families))
	for range families {
		received := <-resultsChannel
		collected[received.family] = received.constraints
	}

	constraints := make([]mip.Constraint, 0)
	for _, family := range collected {
		constraints = append(constraints, family...)
	}
	return constraints
}

// evaluate returns the objective value and the slack needed by a set of chosen routes
func (model *coverageModel) evaluate(chosen []int) (objective float64, slack float64) {
	total := 0.0
	for _, route := range chosen {
		objective += model.costs[route]
		total += model.instance.Routes[route].Duration
	}
	slack = math.Max(0, total-model.instance.TargetDuration)
	return objective + model.instance.SlackWeight*slack, slack
}
