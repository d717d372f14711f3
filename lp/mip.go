package lp

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/oleiade/lane/v2"
	"github.com/pkg/errors"
)

const integralityTol = 1e-6

type MIPOptions struct {
	// Cutoff discards every solution whose objective is not below it.
	Cutoff float64
	// Gap stops the search once (incumbent - bound) / |incumbent| falls under
	// it. Ignored when Populate is set.
	Gap float64
	// Populate keeps collecting distinct solutions under Cutoff until
	// PopulateLimit of them were found or the tree is exhausted.
	Populate      bool
	PopulateLimit int
	// NodeLimit stops the search after that many nodes without a new
	// solution; 0 disables it.
	NodeLimit int
}

func DefaultMIPOptions() MIPOptions {
	return MIPOptions{Cutoff: math.Inf(1), PopulateLimit: 1}
}

type mipNode struct {
	fix   []float64
	relax *Result
}

// SolveMIP runs best-first branch and bound over the binary variables,
// branching on the most fractional one. Results are sorted by objective. An
// empty result means nothing exists below the cutoff (or a limit was hit
// first).
func (s *GonumSolver) SolveMIP(ctx context.Context, m *Model, opts MIPOptions) ([]*Result, error) {
	binaries := m.binaries()
	cutoff := opts.Cutoff
	limit := opts.PopulateLimit
	if limit <= 0 {
		limit = 1
	}

	var found []*Result
	seen := map[string]bool{}
	bestBound := math.Inf(-1)
	queue := lane.NewMinPriorityQueue[*mipNode, float64]()

	push := func(fix []float64) error {
		relax, err := solveRelaxation(ctx, m, fix, false)
		if errors.Is(err, ErrInfeasible) {
			return nil
		}
		if err != nil {
			return err
		}
		if relax.Objective < cutoff-feasibleTol {
			queue.Push(&mipNode{fix: fix, relax: relax}, relax.Objective)
		}
		return nil
	}

	root := make([]float64, len(m.vars))
	for i := range root {
		root[i] = math.NaN()
	}
	if err := push(root); err != nil {
		return nil, errors.Wrap(err, "root relaxation")
	}

	sinceImprovement := 0
	for queue.Size() > 0 {
		if err := ctx.Err(); err != nil {
			sortResults(found)
			return found, errors.Wrap(err, "mip")
		}
		node, bound, _ := queue.Pop()
		if bound >= cutoff-feasibleTol {
			continue
		}
		bestBound = bound
		if !opts.Populate && len(found) > 0 {
			incumbent := found[0].Objective
			if (incumbent-bestBound)/math.Max(math.Abs(incumbent), 1e-10) <= opts.Gap {
				break
			}
		}
		if opts.NodeLimit > 0 && sinceImprovement >= opts.NodeLimit {
			break
		}
		sinceImprovement++

		branch, frac := Var(-1), 0.0
		for _, v := range binaries {
			x := node.relax.X[v]
			f := math.Min(x-math.Floor(x), math.Ceil(x)-x)
			if f > integralityTol && f > frac {
				branch, frac = v, f
			}
		}
		if branch < 0 {
			for _, v := range binaries {
				node.relax.X[v] = math.Round(node.relax.X[v])
			}
			key := solutionKey(node.relax.X, binaries)
			if !seen[key] {
				seen[key] = true
				found = append(found, node.relax)
				sinceImprovement = 0
			}
			if !opts.Populate {
				cutoff = math.Min(cutoff, node.relax.Objective)
				// keep the best one first for the gap test
				sortResults(found)
				continue
			}
			if len(found) >= limit {
				break
			}
			// other solutions may hide below an integral relaxation
			if branch = m.firstFree(node.fix, binaries); branch < 0 {
				continue
			}
		}

		for _, value := range []float64{1, 0} {
			child := slices.Clone(node.fix)
			child[branch] = value
			if err := push(child); err != nil {
				sortResults(found)
				return found, errors.Wrapf(err, "branching on %s", m.VarName(branch))
			}
		}
	}
	sortResults(found)
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (m *Model) firstFree(fix []float64, binaries []Var) Var {
	for _, v := range binaries {
		if math.IsNaN(fix[v]) && math.IsNaN(m.vars[v].fixed) {
			return v
		}
	}
	return -1
}

func solutionKey(x []float64, binaries []Var) string {
	var sb strings.Builder
	for _, v := range binaries {
		if x[v] > 0.5 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func sortResults(results []*Result) {
	slices.SortStableFunc(results, func(a, b *Result) int {
		switch {
		case a.Objective < b.Objective:
			return -1
		case a.Objective > b.Objective:
			return 1
		}
		return 0
	})
}
