package mip

import (
	"cmp"
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	simplexTolerance     = 1e-10
	feasibilityTolerance = 1e-7
)

type relaxationStatus int

const (
	relaxationSolved relaxationStatus = iota
	relaxationInfeasible
	relaxationUnbounded
	relaxationFailed
)

// standardRow is a row over the free columns of a relaxation, Column in its terms is a position in the free list
type standardRow struct {
	terms []Term
	sense Sense // Only LessEqual or GreaterEqual, equalities are split in two
	rhs   float64
}

// solveRelaxation solves the linear relaxation of problem with column bounds replaced by lower and upper.
// Fixed columns (lower == upper) are substituted as constants and every free column is shifted so that it starts at zero,
// which leaves a problem in the form gonum's simplex expects: minimize c'y s.t. Ay = b, y >= 0.
// Each row gets its own slack column, therefore A always has full row rank.
func solveRelaxation(problem *MIP, lower, upper []float64) ([]float64, float64, relaxationStatus) {
	columns := len(problem.Columns)
	values := make([]float64, columns)
	copy(values, lower)

	//** Collect free columns
	position := make([]int, columns)
	free := make([]int, 0, columns)
	for column := range columns {
		position[column] = -1
		if upper[column] > lower[column] {
			position[column] = len(free)
			free = append(free, column)
		}
	}

	//** Shift constraints onto free columns
	rows := make([]standardRow, 0, 2*len(problem.Constraints)+len(free))
	for _, constraint := range problem.Constraints {
		rhs := constraint.Rhs
		terms := make([]Term, 0, len(constraint.Terms))
		for _, term := range constraint.Terms {
			rhs -= term.Coefficient * lower[term.Column]
			if p := position[term.Column]; p >= 0 && term.Coefficient != 0 {
				terms = append(terms, Term{Column: p, Coefficient: term.Coefficient})
			}
		}
		terms = mergeTerms(terms)

		// A row without free columns is either trivially satisfied or proves the node infeasible
		if len(terms) == 0 {
			if (constraint.Sense == LessEqual && rhs < -feasibilityTolerance) ||
				(constraint.Sense == GreaterEqual && rhs > feasibilityTolerance) ||
				(constraint.Sense == Equal && math.Abs(rhs) > feasibilityTolerance) {
				return nil, 0, relaxationInfeasible
			}
			continue
		}

		switch constraint.Sense {
		case Equal:
			rows = append(rows, standardRow{terms, LessEqual, rhs}, standardRow{terms, GreaterEqual, rhs})
		default:
			rows = append(rows, standardRow{terms, constraint.Sense, rhs})
		}
	}

	//** Upper bounds not already implied by a non-negative <= row
	implied := make([]float64, len(free))
	for p := range implied {
		implied[p] = math.Inf(1)
	}
	for _, row := range rows {
		if row.sense != LessEqual || row.rhs < 0 || slices.ContainsFunc(row.terms, func(term Term) bool { return term.Coefficient < 0 }) {
			continue
		}
		for _, term := range row.terms {
			implied[term.Column] = math.Min(implied[term.Column], row.rhs/term.Coefficient)
		}
	}
	for p, column := range free {
		span := upper[column] - lower[column]
		if !math.IsInf(span, 1) && implied[p] > span {
			rows = append(rows, standardRow{[]Term{{Column: p, Coefficient: 1}}, LessEqual, span})
		}
	}

	//** Columns appearing in no row stay at their lower bound unless they improve the objective forever
	appears := make([]bool, len(free))
	for _, row := range rows {
		for _, term := range row.terms {
			appears[term.Column] = true
		}
	}
	lpColumn := make([]int, len(free))
	structural := 0
	for p, column := range free {
		lpColumn[p] = -1
		if appears[p] {
			lpColumn[p] = structural
			structural++
		} else if problem.Columns[column].Cost < 0 {
			return nil, 0, relaxationUnbounded
		}
	}

	if len(rows) == 0 {
		return values, problem.Objective(values), relaxationSolved
	}

	//** Assemble standard form
	m, n := len(rows), structural+len(rows)
	a := mat.NewDense(m, n, nil)
	b := make([]float64, m)
	c := make([]float64, n)
	for p, column := range free {
		if lpColumn[p] >= 0 {
			c[lpColumn[p]] = problem.Columns[column].Cost
		}
	}
	for r, row := range rows {
		for _, term := range row.terms {
			a.Set(r, lpColumn[term.Column], term.Coefficient)
		}
		if row.sense == LessEqual {
			a.Set(r, structural+r, 1)
		} else {
			a.Set(r, structural+r, -1)
		}
		b[r] = row.rhs
	}

	_, optimal, err := lp.Simplex(c, a, b, simplexTolerance, nil)
	if errors.Is(err, lp.ErrInfeasible) {
		return nil, 0, relaxationInfeasible
	} else if errors.Is(err, lp.ErrUnbounded) {
		return nil, 0, relaxationUnbounded
	} else if err != nil {
		return nil, 0, relaxationFailed
	}

	for p, column := range free {
		if lpColumn[p] >= 0 {
			values[column] = lower[column] + optimal[lpColumn[p]]
		}
	}
	return values, problem.Objective(values), relaxationSolved
}

// mergeTerms sorts terms by column and folds repeated columns together, dropping zero coefficients
func mergeTerms(terms []Term) []Term {
	slices.SortFunc(terms, func(a, b Term) int { return cmp.Compare(a.Column, b.Column) })
	merged := terms[:0]
	for _, term := range terms {
		if len(merged) > 0 && merged[len(merged)-1].Column == term.Column {
			merged[len(merged)-1].Coefficient += term.Coefficient
			continue
		}
		merged = append(merged, term)
	}
	return slices.DeleteFunc(merged, func(term Term) bool { return term.Coefficient == 0 })
}
