// Package cpsat exposes a small CP-SAT-shaped modelling layer: boolean
// variables, unary-encoded integer variables, linear constraints over weighted
// terms, implications and a weighted minimization objective. Models compile to
// pseudo-boolean constraints and are solved by gophersat.
package cpsat

import (
	"fmt"

	"github.com/crillab/gophersat/solver"
)

// BoolVar is a model boolean variable. The zero value is invalid; valid
// variables are numbered from 1, matching the DIMACS convention used by the
// backend.
type BoolVar int

// Term is a weighted occurrence of a boolean variable in a linear expression.
type Term struct {
	Var   BoolVar
	Coeff int
}

// IntVar is an order-encoded integer counter with domain [0, len(bits)].
// Its value is the number of true bits; the encoding keeps bits monotone
// (bit k+1 implies bit k) so linear sums over bits behave like an integer.
type IntVar struct {
	bits []BoolVar
}

// Max returns the upper bound of the variable's domain.
func (v IntVar) Max() int { return len(v.bits) }

// Terms expands the integer variable into weighted boolean terms.
func (v IntVar) Terms(coeff int) []Term {
	terms := make([]Term, len(v.bits))
	for i, b := range v.bits {
		terms[i] = Term{Var: b, Coeff: coeff}
	}
	return terms
}

// Model accumulates variables, constraints and the objective before a solve.
type Model struct {
	nbVars  int
	names   []string
	constrs []solver.PBConstr

	objTerms  []Term
	objOffset int

	// set when a constraint reduces to an impossible constant comparison,
	// e.g. an equality over an empty contributor set with a non-zero bound
	unsat bool
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// NewBoolVar creates a fresh boolean variable.
func (m *Model) NewBoolVar(name string) BoolVar {
	m.nbVars++
	m.names = append(m.names, name)
	return BoolVar(m.nbVars)
}

// NewIntVar creates an integer variable with domain [0, max] as an ordered
// chain of booleans.
func (m *Model) NewIntVar(max int, name string) IntVar {
	if max < 0 {
		max = 0
	}
	bits := make([]BoolVar, max)
	for i := range bits {
		bits[i] = m.NewBoolVar(fmt.Sprintf("%s_b%d", name, i+1))
	}
	for i := 1; i < len(bits); i++ {
		m.AddImplication(bits[i], bits[i-1])
	}
	return IntVar{bits: bits}
}

// Name returns the debug name of a boolean variable.
func (m *Model) Name(v BoolVar) string {
	if v < 1 || int(v) > len(m.names) {
		return ""
	}
	return m.names[v-1]
}

// NumVars returns the number of boolean variables created so far, including
// integer-variable bits.
func (m *Model) NumVars() int { return m.nbVars }

// NumConstraints returns the number of pseudo-boolean constraints added.
func (m *Model) NumConstraints() int { return len(m.constrs) }

// AddAtLeast constrains sum(terms) >= bound.
func (m *Model) AddAtLeast(terms []Term, bound int) {
	m.addNormalized(terms, bound)
}

// AddAtMost constrains sum(terms) <= bound.
func (m *Model) AddAtMost(terms []Term, bound int) {
	m.addNormalized(negate(terms), -bound)
}

// AddEqual constrains sum(terms) == bound.
func (m *Model) AddEqual(terms []Term, bound int) {
	m.AddAtLeast(terms, bound)
	m.AddAtMost(terms, bound)
}

// AddImplication adds a => b.
func (m *Model) AddImplication(a, b BoolVar) {
	m.constrs = append(m.constrs, solver.PropClause(-int(a), int(b)))
}

// AddEquivalence adds a <=> b.
func (m *Model) AddEquivalence(a, b BoolVar) {
	m.AddImplication(a, b)
	m.AddImplication(b, a)
}

// FixFalse forces a variable to 0.
func (m *Model) FixFalse(v BoolVar) {
	m.constrs = append(m.constrs, solver.PropClause(-int(v)))
}

// AddAbsAtLeast constrains target >= |sum(expr)|. Under a minimization
// objective that charges the target this is equivalent to abs equality, the
// same relaxation the overrun linearization relies on.
func (m *Model) AddAbsAtLeast(target IntVar, expr []Term) {
	m.AddAtLeast(append(target.Terms(1), negate(expr)...), 0)
	m.AddAtLeast(append(target.Terms(1), expr...), 0)
}

// Minimize declares the objective as the weighted sum of the given terms plus
// a constant offset. Coefficients must be non-negative; zero-weight terms are
// kept so the model shape stays input-agnostic.
func (m *Model) Minimize(terms []Term, offset int) {
	m.objTerms = append(m.objTerms, terms...)
	m.objOffset += offset
}

// addNormalized rewrites sum(terms) >= bound into the backend's at-least form
// with strictly positive weights, folding negative coefficients into negated
// literals. Constant constraints are resolved immediately instead of being
// handed to the backend.
func (m *Model) addNormalized(terms []Term, bound int) {
	lits := make([]int, 0, len(terms))
	weights := make([]int, 0, len(terms))
	for _, t := range terms {
		switch {
		case t.Coeff > 0:
			lits = append(lits, int(t.Var))
			weights = append(weights, t.Coeff)
		case t.Coeff < 0:
			lits = append(lits, -int(t.Var))
			weights = append(weights, -t.Coeff)
			bound -= t.Coeff
		}
	}
	if len(lits) == 0 {
		if bound > 0 {
			m.unsat = true
		}
		return
	}
	if bound <= 0 {
		return
	}
	m.constrs = append(m.constrs, solver.GtEq(lits, weights, bound))
}

func negate(terms []Term) []Term {
	out := make([]Term, len(terms))
	for i, t := range terms {
		out[i] = Term{Var: t.Var, Coeff: -t.Coeff}
	}
	return out
}
