package mip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const DefaultCbcPath = "cbc"

type cbcSolver struct {
	path    string
	options Options
}

// NewCbcSolver drives the COIN-OR cbc executable found at path (looked up in PATH when it is a bare name)
func NewCbcSolver(path string, options Options) MIPSolver {
	if path == "" {
		path = DefaultCbcPath
	}
	return &cbcSolver{path: path, options: options}
}

func (solver *cbcSolver) Solve(ctx context.Context, problem *MIP) (Solution, error) {
	if err := problem.Validate(); err != nil {
		return Solution{}, err
	}

	// Create a temporary file to hold the LP content
	modelFile, err := os.CreateTemp("", "model-*.lp")
	if err != nil {
		return Solution{}, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(modelFile.Name())

	solutionFile, err := os.CreateTemp("", "cbc_solution-*.txt")
	if err != nil {
		return Solution{}, fmt.Errorf("failed to create temporary file: %w", err)
	}
	solutionFile.Close()
	defer os.Remove(solutionFile.Name())

	// Write the LP content to the temporary file
	if _, err := modelFile.WriteString(problem.ToLP()); err != nil {
		return Solution{}, fmt.Errorf("failed to write LP to temporary file: %w", err)
	}
	if err := modelFile.Close(); err != nil {
		return Solution{}, fmt.Errorf("failed to close temporary file: %w", err)
	}

	args := []string{modelFile.Name()}
	if solver.options.TimeLimit > 0 {
		args = append(args, "-sec", strconv.FormatFloat(solver.options.TimeLimit.Seconds(), 'f', -1, 64))
	}
	if solver.options.Gap > 0 {
		args = append(args, "-ratio", strconv.FormatFloat(solver.options.Gap, 'f', -1, 64))
	}
	if solver.options.NodeLimit > 0 {
		args = append(args, "-maxNodes", strconv.Itoa(solver.options.NodeLimit))
	}
	args = append(args, "-solve", "-solution", solutionFile.Name())

	cmd := exec.CommandContext(ctx, solver.path, args...)
	var stdOut bytes.Buffer
	cmd.Stdout = &stdOut
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Solution{Status: TimedOut}, nil
		} else if ctx.Err() != nil {
			return Solution{Status: SolveFailed}, nil
		}
		return Solution{}, fmt.Errorf("an error occurred during cbc execution: %w : %v", err, stderr.String())
	}

	output, err := os.ReadFile(solutionFile.Name())
	if err != nil {
		return Solution{}, fmt.Errorf("failed to read solution file: %w", err)
	}
	return parseCbcSolution(string(output), problem)
}

// parseCbcSolution reads a cbc solution file: a status line followed by "index name value reducedCost" rows.
// Rows whose value violates a bound are prefixed with "**".
func parseCbcSolution(output string, problem *MIP) (Solution, error) {
	lines := lo.Filter(strings.Split(output, "\n"), func(line string, _ int) bool { return strings.TrimSpace(line) != "" })
	if len(lines) == 0 {
		return Solution{}, fmt.Errorf("empty cbc solution file")
	}

	header := strings.Fields(lines[0])
	var status Status
	switch {
	case header[0] == "Optimal":
		status = Optimal
	case header[0] == "Infeasible", header[0] == "Integer" && len(header) > 1 && header[1] == "infeasible":
		return Solution{Status: Infeasible}, nil
	case header[0] == "Stopped" && strings.Contains(lines[0], "time"):
		status = TimedOut
	default:
		status = SolveFailed
	}

	columns := lo.SliceToMap(lo.Range(len(problem.Columns)), func(index int) (string, int) {
		return problem.Columns[index].Name, index
	})

	values := make([]float64, len(problem.Columns))
	for index, column := range problem.Columns {
		// Columns absent from the file are at zero unless their bounds say otherwise
		values[index] = math.Max(column.Lower, math.Min(0, column.Upper))
	}

	found := false
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == "**" {
			fields = fields[1:]
		}
		if len(fields) < 3 {
			return Solution{}, fmt.Errorf("invalid cbc solution line: %v", line)
		}
		index, ok := columns[fields[1]]
		if !ok {
			return Solution{}, fmt.Errorf("unknown column \"%v\" in cbc solution", fields[1])
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return Solution{}, fmt.Errorf("invalid value in cbc solution: %w", err)
		}
		values[index] = value
		found = true
	}

	if !found && status != Optimal {
		return Solution{Status: status}, nil
	}
	return Solution{Status: status, Values: values, Objective: problem.Objective(values)}, nil
}
