// Package milp holds a small mixed-integer linear program model and a
// branch-and-bound solver over LP relaxations.
package milp

import (
	"math"
)

type Term struct {
	Var  int
	Coef float64
}

type variable struct {
	name    string
	lower   float64
	upper   float64
	integer bool
	obj     float64
}

type constraint struct {
	name  string
	terms []Term
	rhs   float64
}

// Model maximizes a linear objective subject to Σ coef·x ≤ rhs rows and
// variable bounds. Integer variables need finite bounds; continuous ones
// may have an infinite upper bound.
type Model struct {
	vars []variable
	cons []constraint
}

func NewModel() *Model {
	return &Model{}
}

// AddVar returns the index of the new variable.
func (m *Model) AddVar(name string, lower, upper float64, integer bool, objective float64) int {
	if math.IsInf(lower, 0) || math.IsNaN(lower) || math.IsNaN(upper) || upper < lower {
		log.Panicf("variable %s has invalid bounds [%v, %v]", name, lower, upper)
	}
	if integer && math.IsInf(upper, 0) {
		log.Panicf("integer variable %s needs a finite upper bound", name)
	}
	m.vars = append(m.vars, variable{name: name, lower: lower, upper: upper, integer: integer, obj: objective})
	return len(m.vars) - 1
}

// AddConstraint adds Σ terms ≤ rhs.
func (m *Model) AddConstraint(name string, terms []Term, rhs float64) {
	for _, t := range terms {
		if t.Var < 0 || t.Var >= len(m.vars) {
			log.Panicf("constraint %s refers to unknown variable %d", name, t.Var)
		}
	}
	m.cons = append(m.cons, constraint{name: name, terms: append([]Term(nil), terms...), rhs: rhs})
}

func (m *Model) NumVars() int {
	return len(m.vars)
}

func (m *Model) NumConstraints() int {
	return len(m.cons)
}

func (m *Model) NumIntegers() int {
	n := 0
	for _, v := range m.vars {
		if v.integer {
			n++
		}
	}
	return n
}

func (m *Model) Name(j int) string {
	return m.vars[j].name
}

func (m *Model) IsInteger(j int) bool {
	return m.vars[j].integer
}

func (m *Model) Evaluate(x []float64) float64 {
	obj := 0.0
	for j, v := range m.vars {
		obj += v.obj * x[j]
	}
	return obj
}

// Feasible checks bounds, integrality and every row within tol.
func (m *Model) Feasible(x []float64, tol float64) bool {
	if len(x) != len(m.vars) {
		return false
	}
	for j, v := range m.vars {
		if x[j] < v.lower-tol || x[j] > v.upper+tol {
			return false
		}
		if v.integer && math.Abs(x[j]-math.Round(x[j])) > tol {
			return false
		}
	}
	for _, c := range m.cons {
		lhs := 0.0
		for _, t := range c.terms {
			lhs += t.Coef * x[t.Var]
		}
		if lhs > c.rhs+tol {
			return false
		}
	}
	return true
}

func (m *Model) bounds() (lower, upper []float64) {
	lower = make([]float64, len(m.vars))
	upper = make([]float64, len(m.vars))
	for j, v := range m.vars {
		lower[j], upper[j] = v.lower, v.upper
	}
	return lower, upper
}
