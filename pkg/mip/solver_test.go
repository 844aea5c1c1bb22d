package mip

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchAndBoundSetPartitioning(t *testing.T) {
	solver := NewBranchAndBoundSolver(Options{})
	random := rand.New(rand.NewSource(7))

	for scenario := range 25 {
		//** Arrange
		problem := randomSetPartitioning(random, 5, 10)
		expected, feasible := bruteForce(problem)

		//** Act
		solution, err := solver.Solve(context.Background(), problem)

		//** Assert
		require.NoError(t, err)
		if !feasible {
			assert.Equal(t, Infeasible, solution.Status, "scenario %d", scenario)
			continue
		}
		assert.Equal(t, Optimal, solution.Status, "scenario %d", scenario)
		assert.True(t, problem.Feasible(solution.Values, 1e-6), "scenario %d", scenario)
		assert.InDelta(t, expected, solution.Objective, 1e-6, "scenario %d", scenario)
	}
}

func TestBranchAndBoundKnapsack(t *testing.T) {
	//** Arrange
	problem := &MIP{
		Name: "knapsack",
		Columns: []Column{
			{Name: "a", Cost: -5, Lower: 0, Upper: 1, Integer: true},
			{Name: "b", Cost: -4, Lower: 0, Upper: 1, Integer: true},
			{Name: "c", Cost: -3, Lower: 0, Upper: 1, Integer: true},
		},
		Constraints: []Constraint{
			{Name: "weight", Terms: []Term{{0, 2}, {1, 3}, {2, 1}}, Sense: LessEqual, Rhs: 5},
			{Name: "volume", Terms: []Term{{0, 4}, {1, 1}, {2, 2}}, Sense: LessEqual, Rhs: 11},
			{Name: "size", Terms: []Term{{0, 3}, {1, 4}, {2, 2}}, Sense: LessEqual, Rhs: 8},
		},
	}
	solver := NewBranchAndBoundSolver(Options{})

	//** Act
	solution, err := solver.Solve(context.Background(), problem)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, Optimal, solution.Status)
	assert.InDelta(t, -9, solution.Objective, 1e-9)
	assert.Equal(t, []float64{1, 1, 0}, solution.Values)
}

func TestBranchAndBoundGeneralIntegers(t *testing.T) {
	//** Arrange
	problem := &MIP{
		Name: "general",
		Columns: []Column{
			{Name: "x", Cost: -1, Lower: 0, Upper: math.Inf(1), Integer: true},
			{Name: "y", Cost: -1, Lower: 0, Upper: math.Inf(1), Integer: true},
		},
		Constraints: []Constraint{
			{Name: "cap", Terms: []Term{{0, 2}, {1, 2}}, Sense: LessEqual, Rhs: 3},
		},
	}
	solver := NewBranchAndBoundSolver(Options{})

	//** Act
	solution, err := solver.Solve(context.Background(), problem)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, Optimal, solution.Status)
	assert.InDelta(t, -1, solution.Objective, 1e-9)
	assert.Greater(t, solution.Nodes, 1)
}

func TestBranchAndBoundContinuousSlack(t *testing.T) {
	//** Arrange
	// Picking a is mandatory and overshoots the budget by 2, which the slack absorbs
	problem := &MIP{
		Name: "slack",
		Columns: []Column{
			{Name: "a", Cost: 1, Lower: 0, Upper: 1, Integer: true},
			{Name: "s", Cost: 10, Lower: 0, Upper: math.Inf(1)},
		},
		Constraints: []Constraint{
			{Name: "pick", Terms: []Term{{0, 1}}, Sense: Equal, Rhs: 1},
			{Name: "budget", Terms: []Term{{0, 5}, {1, -1}}, Sense: LessEqual, Rhs: 3},
		},
	}
	solver := NewBranchAndBoundSolver(Options{})

	//** Act
	solution, err := solver.Solve(context.Background(), problem)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, Optimal, solution.Status)
	assert.InDelta(t, 21, solution.Objective, 1e-6)
	assert.InDelta(t, 2, solution.Values[1], 1e-6)
}

func TestBranchAndBoundInfeasible(t *testing.T) {
	//** Arrange
	problem := &MIP{
		Name: "infeasible",
		Columns: []Column{
			{Name: "a", Cost: 1, Lower: 0, Upper: 1, Integer: true},
			{Name: "b", Cost: 1, Lower: 0, Upper: 1, Integer: true},
		},
		Constraints: []Constraint{
			{Name: "one", Terms: []Term{{0, 1}, {1, 1}}, Sense: Equal, Rhs: 1},
			{Name: "two", Terms: []Term{{0, 1}, {1, 1}}, Sense: GreaterEqual, Rhs: 2},
		},
	}
	solver := NewBranchAndBoundSolver(Options{})

	//** Act
	solution, err := solver.Solve(context.Background(), problem)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, Infeasible, solution.Status)
	assert.False(t, solution.HasSolution())
}

func TestBranchAndBoundUnbounded(t *testing.T) {
	//** Arrange
	problem := &MIP{
		Name:    "unbounded",
		Columns: []Column{{Name: "x", Cost: -1, Lower: 0, Upper: math.Inf(1)}},
	}
	solver := NewBranchAndBoundSolver(Options{})

	//** Act
	solution, err := solver.Solve(context.Background(), problem)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, SolveFailed, solution.Status)
}

func TestBranchAndBoundTruncation(t *testing.T) {
	problem := &MIP{
		Name: "general",
		Columns: []Column{
			{Name: "x", Cost: -1, Lower: 0, Upper: math.Inf(1), Integer: true},
			{Name: "y", Cost: -1, Lower: 0, Upper: math.Inf(1), Integer: true},
		},
		Constraints: []Constraint{
			{Name: "cap", Terms: []Term{{0, 2}, {1, 2}}, Sense: LessEqual, Rhs: 3},
		},
	}

	t.Run("Node limit", func(t *testing.T) {
		solution, err := NewBranchAndBoundSolver(Options{NodeLimit: 1}).Solve(context.Background(), problem)
		require.NoError(t, err)
		assert.Equal(t, SolveFailed, solution.Status)
		assert.False(t, solution.IsOptimal())
	})

	t.Run("Expired deadline", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		solution, err := NewBranchAndBoundSolver(Options{}).Solve(ctx, problem)
		require.NoError(t, err)
		assert.Equal(t, TimedOut, solution.Status)
		assert.False(t, solution.HasSolution())
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		solution, err := NewBranchAndBoundSolver(Options{}).Solve(ctx, problem)
		require.NoError(t, err)
		assert.Equal(t, SolveFailed, solution.Status)
	})
}

func TestValidate(t *testing.T) {
	scenarios := map[string]*MIP{
		"no columns":      {Name: "empty"},
		"infinite lower":  {Columns: []Column{{Name: "x", Lower: math.Inf(-1), Upper: 1}}},
		"empty domain":    {Columns: []Column{{Name: "x", Lower: 2, Upper: 1}}},
		"unnamed column":  {Columns: []Column{{Lower: 0, Upper: 1}}},
		"unknown column":  {Columns: []Column{{Name: "x", Upper: 1}}, Constraints: []Constraint{{Terms: []Term{{3, 1}}}}},
		"nan coefficient": {Columns: []Column{{Name: "x", Upper: 1}}, Constraints: []Constraint{{Terms: []Term{{0, math.NaN()}}}}},
	}

	for name, problem := range scenarios {
		t.Run(name, func(t *testing.T) {
			_, err := NewBranchAndBoundSolver(Options{}).Solve(context.Background(), problem)
			assert.ErrorIs(t, err, ErrUnsupportedModel)
		})
	}
}

func TestToLP(t *testing.T) {
	problem := &MIP{
		Name: "lp",
		Columns: []Column{
			{Name: "x_0", Cost: 450, Lower: 0, Upper: 1, Integer: true},
			{Name: "s", Cost: 10000, Lower: 0, Upper: math.Inf(1)},
		},
		Constraints: []Constraint{
			{Name: "budget", Terms: []Term{{0, 2}, {1, -1}}, Sense: LessEqual, Rhs: 25},
		},
	}

	lp := problem.ToLP()

	assert.Contains(t, lp, "Minimize\n OBJ: 450 x_0 + 10000 s\n")
	assert.Contains(t, lp, " budget: 2 x_0 - 1 s <= 25\n")
	assert.Contains(t, lp, " 0 <= x_0 <= 1\n")
	assert.Contains(t, lp, " s >= 0\n")
	assert.Contains(t, lp, "Generals\n x_0\n")
	assert.Contains(t, lp, "End\n")
}

func TestParseStatus(t *testing.T) {
	for _, status := range []Status{Optimal, Infeasible, SolveFailed, TimedOut} {
		parsed, err := ParseStatus(status.String())
		assert.NoError(t, err)
		assert.Equal(t, status, parsed)
	}
	_, err := ParseStatus("unknown")
	assert.Error(t, err)
}

func TestParseCbcSolution(t *testing.T) {
	problem := &MIP{
		Name: "cbc",
		Columns: []Column{
			{Name: "x_0", Cost: 450, Lower: 0, Upper: 1, Integer: true},
			{Name: "x_1", Cost: 300, Lower: 0, Upper: 1, Integer: true},
			{Name: "s", Cost: 10000, Lower: 0, Upper: math.Inf(1)},
		},
	}

	t.Run("Optimal", func(t *testing.T) {
		output := "Optimal - objective value 450.00000000\n      0 x_0                      1                     450\n"

		solution, err := parseCbcSolution(output, problem)

		require.NoError(t, err)
		assert.Equal(t, Optimal, solution.Status)
		assert.Equal(t, []float64{1, 0, 0}, solution.Values)
		assert.InDelta(t, 450, solution.Objective, 1e-9)
	})

	t.Run("Infeasible", func(t *testing.T) {
		solution, err := parseCbcSolution("Infeasible - objective value 0.00000000\n", problem)

		require.NoError(t, err)
		assert.Equal(t, Infeasible, solution.Status)
	})

	t.Run("Integer infeasible", func(t *testing.T) {
		solution, err := parseCbcSolution("Integer infeasible - objective value 0.00000000\n", problem)

		require.NoError(t, err)
		assert.Equal(t, Infeasible, solution.Status)
	})

	t.Run("Stopped on time", func(t *testing.T) {
		output := "Stopped on time - objective value 300.00000000\n**    1 x_1                      1                     300\n"

		solution, err := parseCbcSolution(output, problem)

		require.NoError(t, err)
		assert.Equal(t, TimedOut, solution.Status)
		assert.Equal(t, []float64{0, 1, 0}, solution.Values)
	})

	t.Run("Unknown column", func(t *testing.T) {
		_, err := parseCbcSolution("Optimal - objective value 1\n 0 y 1 1\n", problem)
		assert.Error(t, err)
	})
}

func TestCbc(t *testing.T) {
	if _, err := exec.LookPath(DefaultCbcPath); err != nil {
		t.Skip("cbc executable is not available")
	}
	solver := NewCbcSolver(DefaultCbcPath, Options{})
	random := rand.New(rand.NewSource(11))

	for range 5 {
		problem := randomSetPartitioning(random, 4, 8)
		expected, feasible := bruteForce(problem)

		solution, err := solver.Solve(context.Background(), problem)

		require.NoError(t, err)
		if !feasible {
			assert.Equal(t, Infeasible, solution.Status)
			continue
		}
		assert.Equal(t, Optimal, solution.Status)
		assert.InDelta(t, expected, solution.Objective, 1e-6)
	}
}

// randomSetPartitioning builds a set-partitioning model whose columns are random subsets of the rows
func randomSetPartitioning(random *rand.Rand, rows, columns int) *MIP {
	problem := &MIP{Name: "random"}
	members := make([][]int, rows)
	for column := range columns {
		problem.Columns = append(problem.Columns, Column{
			Name:    fmt.Sprintf("x_%d", column),
			Cost:    float64(random.Intn(50) + 1),
			Lower:   0,
			Upper:   1,
			Integer: true,
		})
		for row := range rows {
			if random.Intn(3) == 0 {
				members[row] = append(members[row], column)
			}
		}
	}
	for row, columns := range members {
		terms := make([]Term, 0, len(columns))
		for _, column := range columns {
			terms = append(terms, Term{Column: column, Coefficient: 1})
		}
		problem.Constraints = append(problem.Constraints, Constraint{Name: fmt.Sprintf("row_%d", row), Terms: terms, Sense: Equal, Rhs: 1})
	}
	return problem
}

// bruteForce enumerates every 0-1 assignment of a pure binary model
func bruteForce(problem *MIP) (float64, bool) {
	best, feasible := math.Inf(1), false
	values := make([]float64, len(problem.Columns))
	for mask := range 1 << len(problem.Columns) {
		for column := range values {
			values[column] = float64((mask >> column) & 1)
		}
		if problem.Feasible(values, 1e-9) {
			feasible = true
			best = math.Min(best, problem.Objective(values))
		}
	}
	return best, feasible
}
