package mip

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrUnsupportedModel = errors.New("unsupported model")

type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (sense Sense) String() string {
	switch sense {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	case Equal:
		return "="
	}
	return fmt.Sprintf("Sense(%d)", int(sense))
}

type Term struct {
	Column      int
	Coefficient float64
}

type Column struct {
	Name    string
	Cost    float64
	Lower   float64
	Upper   float64 // math.Inf(1) stands for an unbounded column
	Integer bool
}

type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	Rhs   float64
}

// MIP is a minimization problem over Columns subject to Constraints
type MIP struct {
	Name        string
	Columns     []Column
	Constraints []Constraint
}

func (problem *MIP) Validate() error {
	if len(problem.Columns) == 0 {
		return fmt.Errorf("%w: model \"%v\" has no columns", ErrUnsupportedModel, problem.Name)
	}

	for index, column := range problem.Columns {
		if math.IsNaN(column.Cost) || math.IsInf(column.Cost, 0) {
			return fmt.Errorf("%w: column \"%v\" has a non-finite cost", ErrUnsupportedModel, column.Name)
		} else if math.IsNaN(column.Lower) || math.IsInf(column.Lower, 0) {
			return fmt.Errorf("%w: column \"%v\" must have a finite lower bound", ErrUnsupportedModel, column.Name)
		} else if math.IsNaN(column.Upper) || column.Upper < column.Lower {
			return fmt.Errorf("%w: column \"%v\" has an empty domain [%v, %v]", ErrUnsupportedModel, column.Name, column.Lower, column.Upper)
		} else if column.Name == "" {
			return fmt.Errorf("%w: column %d has no name", ErrUnsupportedModel, index)
		}
	}

	for _, constraint := range problem.Constraints {
		if math.IsNaN(constraint.Rhs) || math.IsInf(constraint.Rhs, 0) {
			return fmt.Errorf("%w: constraint \"%v\" has a non-finite right-hand side", ErrUnsupportedModel, constraint.Name)
		}
		for _, term := range constraint.Terms {
			if term.Column < 0 || term.Column >= len(problem.Columns) {
				return fmt.Errorf("%w: constraint \"%v\" references unknown column %d", ErrUnsupportedModel, constraint.Name, term.Column)
			} else if math.IsNaN(term.Coefficient) || math.IsInf(term.Coefficient, 0) {
				return fmt.Errorf("%w: constraint \"%v\" has a non-finite coefficient", ErrUnsupportedModel, constraint.Name)
			}
		}
	}

	return nil
}

// Objective evaluates the objective function at values
func (problem *MIP) Objective(values []float64) float64 {
	objective := 0.0
	for index, column := range problem.Columns {
		objective += column.Cost * values[index]
	}
	return objective
}

// Feasible checks bounds, integrality and every constraint of values within tolerance
func (problem *MIP) Feasible(values []float64, tolerance float64) bool {
	if len(values) != len(problem.Columns) {
		return false
	}

	for index, column := range problem.Columns {
		value := values[index]
		if value < column.Lower-tolerance || value > column.Upper+tolerance {
			return false
		} else if column.Integer && math.Abs(value-math.Round(value)) > tolerance {
			return false
		}
	}

	for _, constraint := range problem.Constraints {
		activity := 0.0
		for _, term := range constraint.Terms {
			activity += term.Coefficient * values[term.Column]
		}
		switch constraint.Sense {
		case LessEqual:
			if activity > constraint.Rhs+tolerance {
				return false
			}
		case GreaterEqual:
			if activity < constraint.Rhs-tolerance {
				return false
			}
		case Equal:
			if math.Abs(activity-constraint.Rhs) > tolerance {
				return false
			}
		}
	}
	return true
}

// ToLP renders the model in CPLEX LP format
func (problem *MIP) ToLP() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "\\* %v *\\\n", problem.Name)

	builder.WriteString("Minimize\n OBJ:")
	objective := make([]Term, 0, len(problem.Columns))
	for index, column := range problem.Columns {
		if column.Cost != 0 {
			objective = append(objective, Term{Column: index, Coefficient: column.Cost})
		}
	}
	problem.writeTerms(&builder, objective)
	builder.WriteString("\n")

	builder.WriteString("Subject To\n")
	for index, constraint := range problem.Constraints {
		name := constraint.Name
		if name == "" {
			name = fmt.Sprintf("c_%d", index)
		}
		fmt.Fprintf(&builder, " %v:", name)
		problem.writeTerms(&builder, constraint.Terms)
		fmt.Fprintf(&builder, " %v %v\n", constraint.Sense, formatNumber(constraint.Rhs))
	}

	builder.WriteString("Bounds\n")
	for _, column := range problem.Columns {
		if math.IsInf(column.Upper, 1) {
			fmt.Fprintf(&builder, " %v >= %v\n", column.Name, formatNumber(column.Lower))
		} else {
			fmt.Fprintf(&builder, " %v <= %v <= %v\n", formatNumber(column.Lower), column.Name, formatNumber(column.Upper))
		}
	}

	generals := make([]string, 0)
	for _, column := range problem.Columns {
		if column.Integer {
			generals = append(generals, column.Name)
		}
	}
	if len(generals) > 0 {
		builder.WriteString("Generals\n")
		for _, name := range generals {
			fmt.Fprintf(&builder, " %v\n", name)
		}
	}

	builder.WriteString("End\n")
	return builder.String()
}

func (problem *MIP) writeTerms(builder *strings.Builder, terms []Term) {
	if len(terms) == 0 {
		// LP format requires at least one term per expression
		fmt.Fprintf(builder, " 0 %v", problem.Columns[0].Name)
		return
	}
	for index, term := range terms {
		coefficient := term.Coefficient
		sign := "+"
		if coefficient < 0 {
			sign = "-"
			coefficient = -coefficient
		}
		if index == 0 && sign == "+" {
			fmt.Fprintf(builder, " %v %v", formatNumber(coefficient), problem.Columns[term.Column].Name)
		} else {
			fmt.Fprintf(builder, " %v %v %v", sign, formatNumber(coefficient), problem.Columns[term.Column].Name)
		}
	}
}

func formatNumber(value float64) string {
	return fmt.Sprintf("%.12g", value)
}
