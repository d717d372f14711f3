package lp

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInfeasible = errors.New("lp: infeasible")
	ErrUnbounded  = errors.New("lp: unbounded")
)

const feasibleTol = 1e-9

type Solver interface {
	SolveLP(ctx context.Context, m *Model) (*Result, error)
	SolveMIP(ctx context.Context, m *Model, opts MIPOptions) ([]*Result, error)
}

// GonumSolver runs a dense two-phase tableau simplex on gonum matrices.
// Duals are read off the final tableau.
type GonumSolver struct{}

func NewGonumSolver() *GonumSolver {
	return &GonumSolver{}
}

func (s *GonumSolver) SolveLP(ctx context.Context, m *Model) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "lp")
	}
	return solveRelaxation(ctx, m, nil, true)
}

// standardForm is min cᵀx, Ax = b, x >= 0 with b >= 0. Columns are the free
// model variables followed by one slack per inequality row and one per
// finite upper bound.
type standardForm struct {
	c        []float64
	a        *mat.Dense
	b        []float64
	constant float64
	varCol   []int     // model var -> column, -1 when substituted out
	value    []float64 // value of substituted variables
	rowOf    []int     // model row -> standard row, -1 when dropped
	sign     []float64 // standard row -> +1 or -1 from rhs normalization
	basis    []int     // unit column of every row, -1 if none
}

func buildStandardForm(m *Model, fix []float64) (*standardForm, error) {
	sf := &standardForm{
		varCol: make([]int, len(m.vars)),
		value:  make([]float64, len(m.vars)),
		rowOf:  make([]int, len(m.rows)),
	}
	fixedAt := func(v int) float64 {
		if fix != nil && !math.IsNaN(fix[v]) {
			return fix[v]
		}
		return m.vars[v].fixed
	}

	// choose columns; variables with a fixed value move to the constant term
	inRow := make([]bool, len(m.vars))
	for _, row := range m.rows {
		if row.removed {
			continue
		}
		for _, t := range row.terms {
			if t.Coef != 0 {
				inRow[t.Var] = true
			}
		}
	}
	nCols := 0
	var bounded []int
	for v, mv := range m.vars {
		sf.varCol[v] = -1
		switch {
		case mv.removed:
		case !math.IsNaN(fixedAt(v)):
			sf.value[v] = fixedAt(v)
			sf.constant += mv.obj * sf.value[v]
		case !inRow[v] && math.IsInf(mv.upper, 1):
			if mv.obj < 0 {
				return nil, ErrUnbounded
			}
		case !inRow[v] && mv.obj >= 0:
		default:
			sf.varCol[v] = nCols
			nCols++
			if !math.IsInf(mv.upper, 1) {
				bounded = append(bounded, v)
			}
		}
	}

	type stdRow struct {
		coefs map[int]float64
		slack float64
		rhs   float64
	}
	var rows []stdRow
	for r, row := range m.rows {
		sf.rowOf[r] = -1
		if row.removed {
			continue
		}
		sr := stdRow{coefs: map[int]float64{}, rhs: row.rhs}
		for _, t := range row.terms {
			if t.Coef == 0 || m.vars[t.Var].removed {
				continue
			}
			if col := sf.varCol[t.Var]; col >= 0 {
				sr.coefs[col] += t.Coef
			} else {
				sr.rhs -= t.Coef * sf.value[t.Var]
			}
		}
		if len(sr.coefs) == 0 {
			if !satisfied(row.sense, sr.rhs) {
				return nil, ErrInfeasible
			}
			continue
		}
		switch row.sense {
		case LessEqual:
			sr.slack = 1
		case GreaterEqual:
			sr.slack = -1
		}
		sf.rowOf[r] = len(rows)
		rows = append(rows, sr)
	}
	for _, v := range bounded {
		if m.vars[v].upper < 0 {
			return nil, ErrInfeasible
		}
		rows = append(rows, stdRow{coefs: map[int]float64{sf.varCol[v]: 1}, slack: 1, rhs: m.vars[v].upper})
	}

	nSlack := 0
	for _, sr := range rows {
		if sr.slack != 0 {
			nSlack++
		}
	}
	total := nCols + nSlack
	if len(rows) == 0 {
		return sf, nil
	}
	sf.c = make([]float64, total)
	for v, col := range sf.varCol {
		if col >= 0 {
			sf.c[col] = m.vars[v].obj
		}
	}
	sf.a = mat.NewDense(len(rows), total, nil)
	sf.b = make([]float64, len(rows))
	sf.sign = make([]float64, len(rows))
	slackCol := nCols
	for i, sr := range rows {
		sign := 1.0
		if sr.rhs < 0 {
			sign = -1
		}
		sf.sign[i] = sign
		sf.b[i] = sign * sr.rhs
		for col, coef := range sr.coefs {
			sf.a.Set(i, col, sign*coef)
		}
		if sr.slack != 0 {
			sf.a.Set(i, slackCol, sign*sr.slack)
			slackCol++
		}
	}
	sf.basis = unitBasis(sf.a)
	return sf, nil
}

func satisfied(sense Sense, rhs float64) bool {
	switch sense {
	case LessEqual:
		return rhs >= -feasibleTol
	case GreaterEqual:
		return rhs <= feasibleTol
	default:
		return math.Abs(rhs) <= feasibleTol
	}
}

// unitBasis finds, for every row, a column equal to the matching unit
// vector, or -1. With b >= 0 these columns start a feasible basis and only
// the remaining rows need an artificial in phase one.
func unitBasis(a mat.Matrix) []int {
	rows, cols := a.Dims()
	basis := make([]int, rows)
	for i := range basis {
		basis[i] = -1
	}
	found := 0
	for j := cols - 1; j >= 0 && found < rows; j-- {
		unitRow := -1
		for i := 0; i < rows; i++ {
			v := a.At(i, j)
			if v == 0 {
				continue
			}
			if v != 1 || unitRow >= 0 {
				unitRow = -2
				break
			}
			unitRow = i
		}
		if unitRow >= 0 && basis[unitRow] < 0 {
			basis[unitRow] = j
			found++
		}
	}
	return basis
}

// solveRelaxation solves the continuous relaxation with the extra
// fixations in fix (NaN entries are free, nil means none).
func solveRelaxation(ctx context.Context, m *Model, fix []float64, wantDuals bool) (*Result, error) {
	sf, err := buildStandardForm(m, fix)
	if err != nil {
		return nil, err
	}
	res := &Result{Objective: sf.constant, X: make([]float64, len(m.vars))}
	copy(res.X, sf.value)
	if len(sf.b) == 0 {
		if wantDuals {
			res.Duals = make([]float64, len(m.rows))
		}
		return res, nil
	}
	tb := newTableau(sf)
	if err := tb.solve(ctx); err != nil {
		return nil, err
	}
	x := tb.x()
	for v, col := range sf.varCol {
		if col >= 0 {
			res.X[v] = x[col]
			res.Objective += sf.c[col] * x[col]
		}
	}
	if wantDuals {
		y := tb.duals()
		res.Duals = make([]float64, len(m.rows))
		for r, i := range sf.rowOf {
			if i >= 0 {
				res.Duals[r] = sf.sign[i] * y[i]
			}
		}
	}
	return res, nil
}
