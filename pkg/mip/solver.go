package mip

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Status int

const (
	Optimal Status = iota
	Infeasible
	SolveFailed
	TimedOut
)

var statusNames = map[Status]string{
	Optimal:     "optimal",
	Infeasible:  "infeasible",
	SolveFailed: "solve-failed",
	TimedOut:    "timed-out",
}

func (status Status) String() string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(status))
}

func ParseStatus(name string) (Status, error) {
	for status, statusName := range statusNames {
		if strings.EqualFold(statusName, name) {
			return status, nil
		}
	}
	return SolveFailed, fmt.Errorf("unknown solve status \"%v\"", name)
}

type Solution struct {
	Status    Status
	Values    []float64 // Best incumbent found, nil when there is none
	Objective float64
	Nodes     int // Branch-and-bound nodes explored, zero for backends that do not report it
}

func (solution Solution) IsOptimal() bool {
	return solution.Status == Optimal
}

func (solution Solution) HasSolution() bool {
	return solution.Values != nil
}

type MIPSolver interface {
	// Solve returns a non-nil error only when the backend itself fails; infeasibility and truncated searches are statuses
	Solve(ctx context.Context, problem *MIP) (Solution, error)
}

type Options struct {
	TimeLimit time.Duration // Zero means no limit
	NodeLimit int           // Zero means no limit
	Gap       float64       // Relative optimality gap accepted as optimal
}
