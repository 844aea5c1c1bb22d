package model

import (
	"context"

	"github.com/limaJavier/routeselection/pkg/mip"
)

type Solution struct {
	Day       string
	Region    string
	Routes    []Route // Chosen routes in candidate order
	Indices   []int   // Positions of the chosen routes among the candidates
	Optimal   bool
	Status    mip.Status
	Objective float64
	Slack     float64 // Hours beyond the duration target
	Nodes     int
}

type Selector interface {
	// Select returns a *MalformedInstanceError before solving when the instance cannot be modelled.
	// Infeasible and non-proven outcomes are reported through Solution.Status, never as errors
	Select(ctx context.Context, instance Instance) (Solution, error)

	Verify(solution Solution, instance Instance) bool
}
