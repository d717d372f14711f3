package lp

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var ErrIterationLimit = errors.New("lp: pivot limit reached")

const (
	pivotTol   = 1e-9
	reducedTol = 1e-7
	// consecutive degenerate pivots before entering columns are picked by
	// Bland's rule
	degenerateStreak = 20
	ctxCheckEvery    = 32
)

// tableau is a dense simplex tableau over the standard form. Row m holds
// the reduced costs, column n holds the right hand side (and -z in row m).
// Columns n-m..n-1 are one artificial per row.
type tableau struct {
	t        *mat.Dense
	m, n     int
	nStd     int
	basis    []int
	initial  []int // column that formed the unit basis of each row
	c        []float64 // phase two costs
	cost     []float64 // costs the reduced cost row was built for
	blocked  []bool    // columns that may not enter
	sumB     float64
	maxPivot int
}

func newTableau(sf *standardForm) *tableau {
	m, nStd := sf.a.Dims()
	n := nStd + m
	tb := &tableau{
		t:        mat.NewDense(m+1, n+1, nil),
		m:        m,
		n:        n,
		nStd:     nStd,
		basis:    make([]int, m),
		initial:  make([]int, m),
		c:        make([]float64, n),
		cost:     make([]float64, n),
		blocked:  make([]bool, n),
		maxPivot: 50 * (m + n),
	}
	copy(tb.c, sf.c)
	for i := 0; i < m; i++ {
		row := tb.t.RawRowView(i)
		mat.Row(row[:nStd], i, sf.a)
		row[nStd+i] = 1
		row[n] = sf.b[i]
		tb.basis[i] = nStd + i
		if sf.basis[i] >= 0 {
			tb.basis[i] = sf.basis[i]
		}
		tb.initial[i] = tb.basis[i]
		tb.sumB += sf.b[i]
	}
	return tb
}

// price rebuilds the reduced cost row for cost under the current basis.
func (tb *tableau) price(cost []float64) {
	copy(tb.cost, cost)
	obj := tb.t.RawRowView(tb.m)
	copy(obj[:tb.n], cost)
	obj[tb.n] = 0
	for i, col := range tb.basis {
		if c := cost[col]; c != 0 {
			floats.AddScaled(obj, -c, tb.t.RawRowView(i))
		}
	}
}

func (tb *tableau) pivot(r, col int) {
	pivotRow := tb.t.RawRowView(r)
	floats.Scale(1/pivotRow[col], pivotRow)
	pivotRow[col] = 1
	for i := 0; i <= tb.m; i++ {
		if i == r {
			continue
		}
		row := tb.t.RawRowView(i)
		if f := row[col]; f != 0 {
			floats.AddScaled(row, -f, pivotRow)
			row[col] = 0
		}
	}
	tb.basis[r] = col
}

func (tb *tableau) entering(bland bool) int {
	obj := tb.t.RawRowView(tb.m)
	best, bestVal := -1, -reducedTol
	for j := 0; j < tb.n; j++ {
		if tb.blocked[j] || obj[j] >= bestVal {
			continue
		}
		if bland {
			return j
		}
		best, bestVal = j, obj[j]
	}
	return best
}

// leaving runs the ratio test on col. Ties go to the smallest basic column.
func (tb *tableau) leaving(col int) int {
	best, bestRatio := -1, math.Inf(1)
	for i := 0; i < tb.m; i++ {
		row := tb.t.RawRowView(i)
		if row[col] <= pivotTol {
			continue
		}
		ratio := math.Max(row[tb.n], 0) / row[col]
		switch {
		case ratio < bestRatio-1e-12:
			best, bestRatio = i, ratio
		case ratio <= bestRatio+1e-12 && tb.basis[i] < tb.basis[best]:
			best = i
		}
	}
	return best
}

// optimize pivots until no reduced cost is negative.
func (tb *tableau) optimize(ctx context.Context, pivots *int) error {
	streak := 0
	for {
		if *pivots%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "simplex")
			}
		}
		col := tb.entering(streak >= degenerateStreak)
		if col < 0 {
			return nil
		}
		r := tb.leaving(col)
		if r < 0 {
			return ErrUnbounded
		}
		if *pivots >= tb.maxPivot {
			return ErrIterationLimit
		}
		if tb.t.At(r, tb.n) > pivotTol {
			streak = 0
		} else {
			streak++
		}
		tb.pivot(r, col)
		*pivots++
	}
}

// solve runs both phases. Artificials only enter phase one for rows
// without a unit column.
func (tb *tableau) solve(ctx context.Context) error {
	pivots := 0
	phaseOne := false
	cost := make([]float64, tb.n)
	for i, col := range tb.basis {
		if col >= tb.nStd {
			cost[col] = 1
			phaseOne = true
		} else {
			tb.blocked[tb.nStd+i] = true
		}
	}
	if phaseOne {
		tb.price(cost)
		if err := tb.optimize(ctx, &pivots); err != nil {
			return err
		}
		if -tb.t.At(tb.m, tb.n) > reducedTol*(1+tb.sumB) {
			return ErrInfeasible
		}
		tb.driveOutArtificials()
	}
	for j := tb.nStd; j < tb.n; j++ {
		tb.blocked[j] = true
	}
	tb.price(tb.c)
	return tb.optimize(ctx, &pivots)
}

// driveOutArtificials swaps zero-valued artificials for structural columns.
// Rows where none exists are redundant and keep their artificial.
func (tb *tableau) driveOutArtificials() {
	for i, col := range tb.basis {
		if col < tb.nStd {
			continue
		}
		row := tb.t.RawRowView(i)
		for j := 0; j < tb.nStd; j++ {
			if math.Abs(row[j]) > pivotTol {
				tb.pivot(i, j)
				break
			}
		}
	}
}

func (tb *tableau) x() []float64 {
	x := make([]float64, tb.nStd)
	for i, col := range tb.basis {
		if col < tb.nStd {
			x[col] = math.Max(tb.t.At(i, tb.n), 0)
		}
	}
	return x
}

// duals reads y = B⁻ᵀc_B off the reduced costs of the initial unit columns.
func (tb *tableau) duals() []float64 {
	y := make([]float64, tb.m)
	obj := tb.t.RawRowView(tb.m)
	for i, col := range tb.initial {
		y[i] = tb.cost[col] - obj[col]
	}
	return y
}
