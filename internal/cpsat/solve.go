package cpsat

import (
	"context"
	"time"

	"github.com/crillab/gophersat/solver"
)

// Status reports how a solve ended.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusFeasible
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// Solution is the outcome of a solve: a status, the objective value of the
// best model found, and the valuation of every variable in that model.
type Solution struct {
	Status    Status
	Objective int

	values []bool
}

// Value returns the boolean assignment of v in the best model. Variables the
// backend never saw (because every constraint mentioning them was resolved at
// build time) default to false.
func (s Solution) Value(v BoolVar) bool {
	idx := int(v) - 1
	if idx < 0 || idx >= len(s.values) {
		return false
	}
	return s.values[idx]
}

// IntValue returns the integer assignment of v in the best model.
func (s Solution) IntValue(v IntVar) int {
	n := 0
	for _, b := range v.bits {
		if s.Value(b) {
			n++
		}
	}
	return n
}

type incumbent struct {
	values []bool
	cost   int
}

// Solve minimizes the model objective within the wall-clock budget. The
// search runs a branch-and-bound loop over the backend: each satisfying model
// tightens a pseudo-boolean upper bound on the objective until the bound is
// proved unreachable. If the budget (or ctx) expires first, the best model
// found so far is returned with StatusFeasible. A budget of zero means no
// limit. onImprove, when non-nil, is invoked with the objective of every
// incumbent found.
func (m *Model) Solve(ctx context.Context, budget time.Duration, onImprove func(objective int)) Solution {
	if m.unsat {
		return Solution{Status: StatusInfeasible}
	}

	stop := make(chan struct{})
	defer close(stop)
	steps := make(chan incumbent)
	finals := make(chan Solution, 1)
	go m.search(stop, steps, finals)

	var timer <-chan time.Time
	if budget > 0 {
		t := time.NewTimer(budget)
		defer t.Stop()
		timer = t.C
	}

	var best *incumbent
	for {
		select {
		case inc := <-steps:
			best = &inc
			if onImprove != nil {
				onImprove(inc.cost + m.objOffset)
			}
		case sol := <-finals:
			return sol
		case <-timer:
			return m.interrupted(best)
		case <-ctx.Done():
			return m.interrupted(best)
		}
	}
}

func (m *Model) interrupted(best *incumbent) Solution {
	if best == nil {
		return Solution{Status: StatusUnknown}
	}
	return Solution{Status: StatusFeasible, Objective: best.cost + m.objOffset, values: best.values}
}

// search runs the bounding loop. It rebuilds the backend problem for each
// bound rather than mutating solver internals; the constraint set is small
// relative to the search effort and the rebuild keeps the loop on the
// backend's public surface only.
func (m *Model) search(stop <-chan struct{}, steps chan<- incumbent, finals chan<- Solution) {
	lits, weights, total := m.costFunc()

	var bounds []solver.PBConstr
	var best *incumbent
	for {
		select {
		case <-stop:
			return
		default:
		}

		constrs := make([]solver.PBConstr, 0, len(m.constrs)+len(bounds))
		constrs = append(constrs, m.constrs...)
		constrs = append(constrs, bounds...)
		s := solver.New(solver.ParsePBConstrs(constrs))

		switch s.Solve() {
		case solver.Unsat:
			if best == nil {
				m.finish(stop, finals, Solution{Status: StatusInfeasible})
			} else {
				m.finish(stop, finals, Solution{Status: StatusOptimal, Objective: best.cost + m.objOffset, values: best.values})
			}
			return
		case solver.Sat:
		default:
			if best == nil {
				m.finish(stop, finals, Solution{Status: StatusUnknown})
			} else {
				m.finish(stop, finals, Solution{Status: StatusFeasible, Objective: best.cost + m.objOffset, values: best.values})
			}
			return
		}

		values := s.Model()
		cost := 0
		for i, lit := range lits {
			if valueOf(values, lit) {
				cost += weights[i]
			}
		}
		best = &incumbent{values: values, cost: cost}

		select {
		case steps <- *best:
		case <-stop:
			return
		}

		if cost == 0 || len(lits) == 0 {
			m.finish(stop, finals, Solution{Status: StatusOptimal, Objective: cost + m.objOffset, values: values})
			return
		}

		// cost <= best-1, stated over negated cost literals
		negLits := make([]int, len(lits))
		copy(negLits, lits)
		for i := range negLits {
			negLits[i] = -negLits[i]
		}
		ws := make([]int, len(weights))
		copy(ws, weights)
		bounds = append(bounds, solver.GtEq(negLits, ws, total-cost+1))
	}
}

func (m *Model) finish(stop <-chan struct{}, finals chan<- Solution, sol Solution) {
	select {
	case finals <- sol:
	case <-stop:
	}
}

// costFunc flattens the objective into positive-weight literals. Zero-weight
// terms exist in the model but cannot influence the search, so they are not
// part of the bounding constraint.
func (m *Model) costFunc() (lits []int, weights []int, total int) {
	for _, t := range m.objTerms {
		if t.Coeff <= 0 {
			continue
		}
		lits = append(lits, int(t.Var))
		weights = append(weights, t.Coeff)
		total += t.Coeff
	}
	return lits, weights, total
}

func valueOf(values []bool, lit int) bool {
	idx := lit - 1
	if idx < 0 || idx >= len(values) {
		return false
	}
	return values[idx]
}
