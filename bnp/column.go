package bnp

import (
	"math"

	"github.com/pkg/errors"
	"leagues_go/lp"
	"leagues_go/model"
)

const EPS = 1e-6

// Column is one league variable of the master problem.
type Column struct {
	League *model.League
	Var    lp.Var
	Value  float64
	// Objective is cost - Σγ for the duals the column was priced with.
	Objective float64
	// Iter is the last column generation iteration the column was active.
	Iter int
}

func (c *Column) Contains(team int) bool {
	return c.League.Contains(team)
}

// Valid checks a freshly priced column: its objective must match the duals,
// its reduced cost must be negative and it must respect every fixation.
func (c *Column) Valid(duals []float64, mu float64, fixedOne, fixedZero []Pair) error {
	objective := float64(c.League.Cost())
	for _, t := range c.League.Teams() {
		objective -= duals[t]
	}
	if math.Abs(objective-c.Objective) >= EPS {
		return errors.Errorf("%v has objective %v, expected %v", c.League, c.Objective, objective)
	}
	for _, p := range fixedZero {
		if c.Contains(p.I) && c.Contains(p.J) {
			return errors.Errorf("%v joins teams %d and %d", c.League, p.I, p.J)
		}
	}
	for _, p := range fixedOne {
		if c.Contains(p.I) != c.Contains(p.J) {
			return errors.Errorf("%v separates teams %d and %d", c.League, p.I, p.J)
		}
	}
	if err := c.League.Validate(); err != nil {
		return err
	}
	if objective-mu >= -EPS {
		return errors.Errorf("%v has reduced cost %v", c.League, objective-mu)
	}
	return nil
}

// Pair is a pair of teams, I < J.
type Pair struct {
	I, J int
}
