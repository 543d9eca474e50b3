package timetable

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/schoolcore/timetable-engine/internal/cpsat"
	apperrors "github.com/schoolcore/timetable-engine/pkg/errors"
)

// TupleVar binds one (class, day, period, subject, teacher, room) tuple of the
// decision universe to its boolean variable. Fields are ordinals into the
// Problem's entity slices.
type TupleVar struct {
	Class, Day, Period, Subject, Teacher, Room int
	Var                                        cpsat.BoolVar
}

// VarIndex is the canonical enumeration of the decision universe plus the
// prefix indexes used for constraint emission and extraction. Tuples are
// stored in lexicographic (class, day, period, subject, teacher, room) order.
type VarIndex struct {
	Classes  []string
	Subjects []string
	Teachers []string
	Rooms    []string

	classOrd   map[string]int
	subjectOrd map[string]int
	teacherOrd map[string]int
	roomOrd    map[string]int

	tuples []TupleVar

	slotRange map[[3]int][2]int // (c,d,p) -> [start,end) in tuples
	byTuple   map[[6]int]cpsat.BoolVar
	byTDP     map[[3]int][]int // (t,d,p) -> tuple positions
	byRDP     map[[3]int][]int // (r,d,p) -> tuple positions
	byCSD     map[[3]int][]int // (c,s,d) -> tuple positions
}

// Tuples returns the whole universe in canonical order.
func (ix *VarIndex) Tuples() []TupleVar { return ix.tuples }

// SlotTuples returns the tuples of one (class, day, period) slot in canonical
// order.
func (ix *VarIndex) SlotTuples(c, d, p int) []TupleVar {
	r, ok := ix.slotRange[[3]int{c, d, p}]
	if !ok {
		return nil
	}
	return ix.tuples[r[0]:r[1]]
}

// Lookup re-finds the variable bound to an exact tuple.
func (ix *VarIndex) Lookup(c, d, p, s, t, r int) (cpsat.BoolVar, bool) {
	v, ok := ix.byTuple[[6]int{c, d, p, s, t, r}]
	return v, ok
}

// LookupIDs re-finds the variable bound to a tuple given as entity ids.
func (ix *VarIndex) LookupIDs(class string, d, p int, subject, teacher, room string) (cpsat.BoolVar, bool) {
	ci, ok1 := ix.classOrd[class]
	si, ok2 := ix.subjectOrd[subject]
	ti, ok3 := ix.teacherOrd[teacher]
	ri, ok4 := ix.roomOrd[room]
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, false
	}
	return ix.Lookup(ci, d, p, si, ti, ri)
}

// BuiltModel couples the solver-facing model with the variable index used for
// extraction and validation.
type BuiltModel struct {
	Model *cpsat.Model
	Index *VarIndex
}

// BuildModel materializes the sparse decision universe and assembles all hard
// constraints and the weighted soft objective. The Problem is read-only; hard
// infeasibility is not an error here, it surfaces from the solve.
func BuildModel(p *Problem, log *zap.Logger) (*BuiltModel, error) {
	if log == nil {
		log = zap.NewNop()
	}

	m := cpsat.NewModel()
	ix := &VarIndex{
		Classes:    p.Classes,
		Subjects:   p.Subjects,
		Teachers:   p.Teachers,
		Rooms:      p.Rooms,
		classOrd:   ordinals(p.Classes),
		subjectOrd: ordinals(p.Subjects),
		teacherOrd: ordinals(p.Teachers),
		roomOrd:    ordinals(p.Rooms),
		slotRange:  make(map[[3]int][2]int),
		byTuple:    make(map[[6]int]cpsat.BoolVar),
		byTDP:      make(map[[3]int][]int),
		byRDP:      make(map[[3]int][]int),
		byCSD:      make(map[[3]int][]int),
	}

	// Decision universe. Qualification, availability and room-type filters
	// are applied here, so impossible tuples never become variables.
	for ci, c := range p.Classes {
		for d := 0; d < p.Days; d++ {
			for period := 0; period < p.PeriodsPerDay; period++ {
				start := len(ix.tuples)
				for si, s := range p.Subjects {
					if !p.InCurriculum(c, s) {
						continue
					}
					roomType := p.SubjectInfo[s].RoomType
					for ti, t := range p.Teachers {
						teacher := p.TeacherInfo[t]
						if !teacher.Teaches(s) || !teacher.Available(d, period) {
							continue
						}
						for ri, r := range p.Rooms {
							if p.RoomInfo[r].Type != roomType {
								continue
							}
							v := m.NewBoolVar(fmt.Sprintf("x_%s_d%d_p%d_%s_%s_%s", c, d, period, s, t, r))
							pos := len(ix.tuples)
							ix.tuples = append(ix.tuples, TupleVar{
								Class: ci, Day: d, Period: period,
								Subject: si, Teacher: ti, Room: ri,
								Var: v,
							})
							ix.byTuple[[6]int{ci, d, period, si, ti, ri}] = v
							ix.byTDP[[3]int{ti, d, period}] = append(ix.byTDP[[3]int{ti, d, period}], pos)
							ix.byRDP[[3]int{ri, d, period}] = append(ix.byRDP[[3]int{ri, d, period}], pos)
							ix.byCSD[[3]int{ci, si, d}] = append(ix.byCSD[[3]int{ci, si, d}], pos)
						}
					}
				}
				ix.slotRange[[3]int{ci, d, period}] = [2]int{start, len(ix.tuples)}
			}
		}
	}

	if err := checkCanonicalOrder(ix); err != nil {
		return nil, err
	}

	blocked := p.BreakSlots()

	// H1: at most one assignment per class slot. Empty slots are permitted.
	for ci := range p.Classes {
		for d := 0; d < p.Days; d++ {
			for period := 0; period < p.PeriodsPerDay; period++ {
				m.AddAtMost(tupleTerms(ix.SlotTuples(ci, d, period)), 1)
			}
		}
	}

	// H2: teacher non-conflict.
	for ti := range p.Teachers {
		for d := 0; d < p.Days; d++ {
			for period := 0; period < p.PeriodsPerDay; period++ {
				m.AddAtMost(postingTerms(ix, ix.byTDP[[3]int{ti, d, period}]), 1)
			}
		}
	}

	// H3: room non-conflict.
	for ri := range p.Rooms {
		for d := 0; d < p.Days; d++ {
			for period := 0; period < p.PeriodsPerDay; period++ {
				m.AddAtMost(postingTerms(ix, ix.byRDP[[3]int{ri, d, period}]), 1)
			}
		}
	}

	// H4: weekly hours per (class, curriculum subject).
	for ci, c := range p.Classes {
		for _, s := range p.Curriculum(c) {
			si := ix.subjectOrd[s]
			var terms []cpsat.Term
			for d := 0; d < p.Days; d++ {
				terms = append(terms, postingTerms(ix, ix.byCSD[[3]int{ci, si, d}])...)
			}
			m.AddEqual(terms, p.SubjectInfo[s].HoursPerWeek)
		}
	}

	// H5 and H6 hold structurally: unavailable and type-mismatched tuples
	// were never enumerated.

	// H7: institution breaks pin every variable in the window to zero. The
	// overlap with slot capacity is intentional; a fixed variable cannot be
	// revived by any later code path.
	for d := 0; d < p.Days; d++ {
		for period := 0; period < p.PeriodsPerDay; period++ {
			if !blocked[[2]int{d, period}] {
				continue
			}
			for ci := range p.Classes {
				for _, tv := range ix.SlotTuples(ci, d, period) {
					m.FixFalse(tv.Var)
				}
			}
		}
	}

	// H8: double-period pairing. Assignments of a double-period subject must
	// decompose into disjoint same-day adjacent pairs with the same teacher
	// and room. Each (class, day, subject, teacher, room) channel gets pair
	// start indicators; every x equals the sum of the starts covering it, so
	// a start at the last period can never exist.
	for _, s := range p.Subjects {
		if !p.SubjectInfo[s].IsDoublePeriod {
			continue
		}
		si := ix.subjectOrd[s]
		for ci, c := range p.Classes {
			if !p.InCurriculum(c, s) {
				continue
			}
			for d := 0; d < p.Days; d++ {
				for ti, t := range p.Teachers {
					if !p.TeacherInfo[t].Teaches(s) {
						continue
					}
					for ri, r := range p.Rooms {
						if p.RoomInfo[r].Type != p.SubjectInfo[s].RoomType {
							continue
						}
						addPairChannel(m, ix, p, ci, d, si, ti, ri, c, s, t, r)
					}
				}
			}
		}
	}

	buildObjective(m, ix, p)

	log.Debug("model built",
		zap.Int("tuples", len(ix.tuples)),
		zap.Int("variables", m.NumVars()),
		zap.Int("constraints", m.NumConstraints()),
	)
	return &BuiltModel{Model: m, Index: ix}, nil
}

// addPairChannel wires the pair-start channeling for one
// (class, day, subject, teacher, room) combination.
func addPairChannel(m *cpsat.Model, ix *VarIndex, p *Problem, ci, d, si, ti, ri int, c, s, t, r string) {
	P := p.PeriodsPerDay
	xs := make([]cpsat.BoolVar, P)
	exists := make([]bool, P)
	any := false
	for period := 0; period < P; period++ {
		if v, ok := ix.Lookup(ci, d, period, si, ti, ri); ok {
			xs[period] = v
			exists[period] = true
			any = true
		}
	}
	if !any {
		return
	}

	starts := make([]cpsat.BoolVar, P)
	hasStart := make([]bool, P)
	for period := 0; period+1 < P; period++ {
		if exists[period] && exists[period+1] {
			starts[period] = m.NewBoolVar(fmt.Sprintf("pair_%s_d%d_p%d_%s_%s_%s", c, d, period, s, t, r))
			hasStart[period] = true
		}
	}

	for period := 0; period < P; period++ {
		if !exists[period] {
			continue
		}
		terms := []cpsat.Term{{Var: xs[period], Coeff: 1}}
		if hasStart[period] {
			terms = append(terms, cpsat.Term{Var: starts[period], Coeff: -1})
		}
		if period > 0 && hasStart[period-1] {
			terms = append(terms, cpsat.Term{Var: starts[period-1], Coeff: -1})
		}
		// x with no covering start collapses to x = 0
		m.AddEqual(terms, 0)
	}
}

// buildObjective creates the presence indicators and the five weighted
// penalty groups. Zero-weight terms keep their variables and constraints so
// the model shape stays input-agnostic; only the heavy machinery disappears
// when no heavy subject exists.
func buildObjective(m *cpsat.Model, ix *VarIndex, p *Problem) {
	D, P := p.Days, p.PeriodsPerDay
	w := p.Weights

	var obj []cpsat.Term

	// teacher presence
	yTeacher := make([][][]cpsat.BoolVar, len(p.Teachers))
	for ti, t := range p.Teachers {
		yTeacher[ti] = make([][]cpsat.BoolVar, D)
		for d := 0; d < D; d++ {
			yTeacher[ti][d] = make([]cpsat.BoolVar, P)
			for period := 0; period < P; period++ {
				y := m.NewBoolVar(fmt.Sprintf("y_teacher_%s_d%d_p%d", t, d, period))
				if posts := ix.byTDP[[3]int{ti, d, period}]; len(posts) > 0 {
					terms := postingTerms(ix, posts)
					terms = append(terms, cpsat.Term{Var: y, Coeff: -1})
					m.AddEqual(terms, 0)
				} else {
					m.FixFalse(y)
				}
				yTeacher[ti][d][period] = y
			}
		}
	}

	// class presence
	yClass := make([][][]cpsat.BoolVar, len(p.Classes))
	for ci, c := range p.Classes {
		yClass[ci] = make([][]cpsat.BoolVar, D)
		for d := 0; d < D; d++ {
			yClass[ci][d] = make([]cpsat.BoolVar, P)
			for period := 0; period < P; period++ {
				y := m.NewBoolVar(fmt.Sprintf("y_class_%s_d%d_p%d", c, d, period))
				if slot := ix.SlotTuples(ci, d, period); len(slot) > 0 {
					terms := tupleTerms(slot)
					terms = append(terms, cpsat.Term{Var: y, Coeff: -1})
					m.AddEqual(terms, 0)
				} else {
					m.FixFalse(y)
				}
				yClass[ci][d][period] = y
			}
		}
	}

	// teacher idle transitions: |y[p] - y[p-1]| as exact xor
	for ti, t := range p.Teachers {
		for d := 0; d < D; d++ {
			for period := 1; period < P; period++ {
				now := yTeacher[ti][d][period]
				prev := yTeacher[ti][d][period-1]
				z := m.NewBoolVar(fmt.Sprintf("idle_trans_%s_d%d_p%d", t, d, period))
				m.AddAtLeast([]cpsat.Term{{Var: z, Coeff: 1}, {Var: now, Coeff: -1}, {Var: prev, Coeff: 1}}, 0)
				m.AddAtLeast([]cpsat.Term{{Var: z, Coeff: 1}, {Var: prev, Coeff: -1}, {Var: now, Coeff: 1}}, 0)
				m.AddAtMost([]cpsat.Term{{Var: z, Coeff: 1}, {Var: now, Coeff: -1}, {Var: prev, Coeff: -1}}, 0)
				m.AddAtMost([]cpsat.Term{{Var: z, Coeff: 1}, {Var: now, Coeff: 1}, {Var: prev, Coeff: 1}}, 2)
				obj = append(obj, cpsat.Term{Var: z, Coeff: w.TeacherIdleTransition})
			}
		}
	}

	// class consecutive overrun over sliding windows of maxConsecutive+1
	maxConsecutive := p.Tuning.MaxConsecutivePeriods
	for ci, c := range p.Classes {
		for d := 0; d < D; d++ {
			for start := 0; start < P; start++ {
				end := start + maxConsecutive + 1
				if end > P {
					end = P
				}
				if end-start <= maxConsecutive {
					continue
				}
				over := m.NewIntVar(end-start, fmt.Sprintf("overrun_%s_d%d_s%d", c, d, start))
				terms := over.Terms(1)
				for period := start; period < end; period++ {
					terms = append(terms, cpsat.Term{Var: yClass[ci][d][period], Coeff: -1})
				}
				m.AddAtLeast(terms, -maxConsecutive)
				obj = append(obj, over.Terms(w.ClassConsecutiveOverrun)...)
			}
		}
	}

	// subject spread excess per (class, subject, day)
	for ci, c := range p.Classes {
		for _, s := range p.Curriculum(c) {
			si := ix.subjectOrd[s]
			for d := 0; d < D; d++ {
				posts := ix.byCSD[[3]int{ci, si, d}]
				if len(posts) == 0 {
					continue
				}
				excess := m.NewIntVar(P, fmt.Sprintf("excess_%s_%s_d%d", c, s, d))
				terms := excess.Terms(1)
				for _, t := range postingTerms(ix, posts) {
					terms = append(terms, cpsat.Term{Var: t.Var, Coeff: -1})
				}
				m.AddAtLeast(terms, -1)
				obj = append(obj, excess.Terms(w.SubjectSpreadExcess)...)
			}
		}
	}

	// heavy back-to-back, only when heavy subjects exist
	var heavyOrds []int
	for si, s := range p.Subjects {
		if p.SubjectInfo[s].IsHeavy {
			heavyOrds = append(heavyOrds, si)
		}
	}
	if len(heavyOrds) > 0 {
		heavy := make([][][]cpsat.BoolVar, len(p.Classes))
		for ci, c := range p.Classes {
			heavy[ci] = make([][]cpsat.BoolVar, D)
			for d := 0; d < D; d++ {
				heavy[ci][d] = make([]cpsat.BoolVar, P)
				for period := 0; period < P; period++ {
					y := m.NewBoolVar(fmt.Sprintf("heavy_%s_d%d_p%d", c, d, period))
					var terms []cpsat.Term
					for _, tv := range ix.SlotTuples(ci, d, period) {
						if p.SubjectInfo[p.Subjects[tv.Subject]].IsHeavy {
							terms = append(terms, cpsat.Term{Var: tv.Var, Coeff: 1})
						}
					}
					if len(terms) > 0 {
						terms = append(terms, cpsat.Term{Var: y, Coeff: -1})
						m.AddEqual(terms, 0)
					} else {
						m.FixFalse(y)
					}
					heavy[ci][d][period] = y
				}
			}
		}
		for ci, c := range p.Classes {
			for d := 0; d < D; d++ {
				for period := 0; period+1 < P; period++ {
					a := heavy[ci][d][period]
					b := heavy[ci][d][period+1]
					z := m.NewBoolVar(fmt.Sprintf("heavy_pair_%s_d%d_p%d", c, d, period))
					m.AddAtMost([]cpsat.Term{{Var: z, Coeff: 1}, {Var: a, Coeff: -1}}, 0)
					m.AddAtMost([]cpsat.Term{{Var: z, Coeff: 1}, {Var: b, Coeff: -1}}, 0)
					m.AddAtLeast([]cpsat.Term{{Var: z, Coeff: 1}, {Var: a, Coeff: -1}, {Var: b, Coeff: -1}}, -1)
					obj = append(obj, cpsat.Term{Var: z, Coeff: w.HeavyBackToBack})
				}
			}
		}
	}

	// teacher early/late imbalance
	early, late := p.Tuning.EarlyPeriods, p.Tuning.LatePeriods
	maxSide := len(early)
	if len(late) > maxSide {
		maxSide = len(late)
	}
	for ti, t := range p.Teachers {
		var expr []cpsat.Term
		for d := 0; d < D; d++ {
			for _, period := range early {
				expr = append(expr, cpsat.Term{Var: yTeacher[ti][d][period], Coeff: 1})
			}
			for _, period := range late {
				expr = append(expr, cpsat.Term{Var: yTeacher[ti][d][period], Coeff: -1})
			}
		}
		imbalance := m.NewIntVar(D*maxSide, fmt.Sprintf("imbalance_%s", t))
		m.AddAbsAtLeast(imbalance, expr)
		obj = append(obj, imbalance.Terms(w.TeacherEarlyLateImbalance)...)
	}

	m.Minimize(obj, 0)
}

func checkCanonicalOrder(ix *VarIndex) error {
	for i := 1; i < len(ix.tuples); i++ {
		if !tupleLess(ix.tuples[i-1], ix.tuples[i]) {
			return apperrors.Clone(apperrors.ErrModelInvalid,
				fmt.Sprintf("decision universe not in canonical order at position %d", i))
		}
	}
	return nil
}

func tupleLess(a, b TupleVar) bool {
	ka := [6]int{a.Class, a.Day, a.Period, a.Subject, a.Teacher, a.Room}
	kb := [6]int{b.Class, b.Day, b.Period, b.Subject, b.Teacher, b.Room}
	for i := range ka {
		if ka[i] != kb[i] {
			return ka[i] < kb[i]
		}
	}
	return false
}

func ordinals(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}

func tupleTerms(tuples []TupleVar) []cpsat.Term {
	terms := make([]cpsat.Term, len(tuples))
	for i, tv := range tuples {
		terms[i] = cpsat.Term{Var: tv.Var, Coeff: 1}
	}
	return terms
}

func postingTerms(ix *VarIndex, positions []int) []cpsat.Term {
	terms := make([]cpsat.Term, len(positions))
	for i, pos := range positions {
		terms[i] = cpsat.Term{Var: ix.tuples[pos].Var, Coeff: 1}
	}
	return terms
}
