package lp

import (
	"math"

	"golang.org/x/exp/constraints"
)

type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return "="
	}
}

type Var int

type Row int

type Term struct {
	Var  Var
	Coef float64
}

// ColumnTerm places a new variable into an existing row.
type ColumnTerm struct {
	Row  Row
	Coef float64
}

type variable struct {
	name    string
	obj     float64
	upper   float64
	binary  bool
	fixed   float64 // NaN when free
	removed bool
}

type constraint struct {
	name    string
	terms   []Term
	sense   Sense
	rhs     float64
	removed bool
}

// Model is a minimization problem over non-negative variables. Indices of
// removed variables and constraints stay reserved so handles never move.
type Model struct {
	Name string
	vars []variable
	rows []constraint
}

func NewModel(name string) *Model {
	return &Model{Name: name}
}

// AddVar adds a continuous variable in [0, upper]; pass math.Inf(1) for no
// upper bound.
func (m *Model) AddVar(name string, obj, upper float64) Var {
	m.vars = append(m.vars, variable{name: name, obj: obj, upper: upper, fixed: math.NaN()})
	return Var(len(m.vars) - 1)
}

func (m *Model) AddBinary(name string, obj float64) Var {
	v := m.AddVar(name, obj, 1)
	m.vars[v].binary = true
	return v
}

// AddColumn adds a variable together with its coefficients in existing rows.
func (m *Model) AddColumn(name string, obj, upper float64, column []ColumnTerm) Var {
	v := m.AddVar(name, obj, upper)
	for _, ct := range column {
		m.rows[ct.Row].terms = append(m.rows[ct.Row].terms, Term{Var: v, Coef: ct.Coef})
	}
	return v
}

func (m *Model) AddConstraint(name string, terms []Term, sense Sense, rhs float64) Row {
	m.rows = append(m.rows, constraint{name: name, terms: terms, sense: sense, rhs: rhs})
	return Row(len(m.rows) - 1)
}

func (m *Model) RemoveVar(v Var) {
	m.vars[v].removed = true
}

func (m *Model) RemoveConstraint(r Row) {
	m.rows[r].removed = true
}

func (m *Model) SetObjective(v Var, obj float64) {
	m.vars[v].obj = obj
}

func (m *Model) Objective(v Var) float64 {
	return m.vars[v].obj
}

// Fix pins the variable to value until Unfix is called.
func (m *Model) Fix(v Var, value float64) {
	m.vars[v].fixed = value
}

func (m *Model) Unfix(v Var) {
	m.vars[v].fixed = math.NaN()
}

func (m *Model) VarName(v Var) string {
	return m.vars[v].name
}

func (m *Model) Removed(v Var) bool {
	return m.vars[v].removed
}

func (m *Model) NumVars() int {
	return len(m.vars)
}

func (m *Model) NumRows() int {
	return len(m.rows)
}

func (m *Model) binaries() []Var {
	var out []Var
	for i, v := range m.vars {
		if v.binary && !v.removed {
			out = append(out, Var(i))
		}
	}
	return out
}

// Sum builds the terms coef*v for every v.
func Sum[T constraints.Integer | constraints.Float](coef T, vars ...Var) []Term {
	terms := make([]Term, len(vars))
	for i, v := range vars {
		terms[i] = Term{Var: v, Coef: float64(coef)}
	}
	return terms
}

type Result struct {
	Objective float64
	X         []float64 // indexed by Var
	Duals     []float64 // indexed by Row; nil for MIP results
}

func (r *Result) Value(v Var) float64 {
	return r.X[v]
}

func (r *Result) Dual(row Row) float64 {
	return r.Duals[row]
}
