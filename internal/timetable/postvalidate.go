package timetable

import (
	"fmt"
	"sort"

	"github.com/schoolcore/timetable-engine/internal/cpsat"
)

// ValidationResult is the independent re-check verdict on an extracted
// assignment.
type ValidationResult struct {
	IsValid    bool
	Violations []string
}

func (r *ValidationResult) addViolation(msg string) {
	r.Violations = append(r.Violations, msg)
	r.IsValid = false
}

// Validate re-evaluates every hard constraint against the assigned tuples,
// independently of the model that produced them. It consults only the
// Problem, the variable index and the final valuation.
func Validate(p *Problem, ix *VarIndex, val cpsat.Solution) ValidationResult {
	res := ValidationResult{IsValid: true}

	assigned := make([]TupleVar, 0)
	for _, tv := range ix.Tuples() {
		if val.Value(tv.Var) {
			assigned = append(assigned, tv)
		}
	}

	// slot uniqueness per class
	counts := make(map[[3]int]int)
	for _, tv := range assigned {
		counts[[3]int{tv.Class, tv.Day, tv.Period}]++
	}
	for ci, c := range p.Classes {
		for d := 0; d < p.Days; d++ {
			for period := 0; period < p.PeriodsPerDay; period++ {
				if n := counts[[3]int{ci, d, period}]; n > 1 {
					res.addViolation(fmt.Sprintf(
						"HC1: class %s has %d subjects on day %d period %d (max 1)", c, n, d+1, period+1))
				}
			}
		}
	}

	// teacher non-conflict
	tcounts := make(map[[3]int][]string)
	for _, tv := range assigned {
		key := [3]int{tv.Teacher, tv.Day, tv.Period}
		tcounts[key] = append(tcounts[key], p.Classes[tv.Class])
	}
	for ti, t := range p.Teachers {
		for d := 0; d < p.Days; d++ {
			for period := 0; period < p.PeriodsPerDay; period++ {
				if cs := tcounts[[3]int{ti, d, period}]; len(cs) > 1 {
					res.addViolation(fmt.Sprintf(
						"HC2: teacher %s assigned to %v on day %d period %d (conflict)", t, cs, d+1, period+1))
				}
			}
		}
	}

	// room non-conflict
	rcounts := make(map[[3]int]int)
	for _, tv := range assigned {
		rcounts[[3]int{tv.Room, tv.Day, tv.Period}]++
	}
	for ri, r := range p.Rooms {
		for d := 0; d < p.Days; d++ {
			for period := 0; period < p.PeriodsPerDay; period++ {
				if n := rcounts[[3]int{ri, d, period}]; n > 1 {
					res.addViolation(fmt.Sprintf(
						"HC3: room %s double-booked on day %d period %d", r, d+1, period+1))
				}
			}
		}
	}

	// weekly hours
	hours := make(map[[2]int]int)
	for _, tv := range assigned {
		hours[[2]int{tv.Class, tv.Subject}]++
	}
	for ci, c := range p.Classes {
		for _, s := range p.Curriculum(c) {
			si := ix.subjectOrd[s]
			required := p.SubjectInfo[s].HoursPerWeek
			if got := hours[[2]int{ci, si}]; got != required {
				res.addViolation(fmt.Sprintf(
					"HC4: class %s subject %s has %d hours/week (required %d)", c, s, got, required))
			}
		}
	}

	// teacher availability and qualification
	for _, tv := range assigned {
		t := p.Teachers[tv.Teacher]
		s := p.Subjects[tv.Subject]
		info := p.TeacherInfo[t]
		if !info.Teaches(s) {
			res.addViolation(fmt.Sprintf(
				"HC5: teacher %s not qualified for subject %s on day %d period %d", t, s, tv.Day+1, tv.Period+1))
		}
		if !info.Available(tv.Day, tv.Period) {
			res.addViolation(fmt.Sprintf(
				"HC5: teacher %s scheduled in unavailable slot (day %d, period %d)", t, tv.Day+1, tv.Period+1))
		}
	}

	// room type match
	for _, tv := range assigned {
		s := p.Subjects[tv.Subject]
		r := p.Rooms[tv.Room]
		want := p.SubjectInfo[s].RoomType
		if got := p.RoomInfo[r].Type; got != want {
			res.addViolation(fmt.Sprintf(
				"HC6: subject %s (needs %s) in %s room %s", s, want, got, r))
		}
	}

	// institution breaks
	blocked := p.BreakSlots()
	for _, tv := range assigned {
		if blocked[[2]int{tv.Day, tv.Period}] {
			res.addViolation(fmt.Sprintf(
				"HC7: class %s assigned during break (day %d, period %d)", p.Classes[tv.Class], tv.Day+1, tv.Period+1))
		}
	}

	// double-period pairing: within each (class, day, subject, teacher, room)
	// channel the assigned periods must split into disjoint adjacent pairs
	channels := make(map[[5]int][]int)
	for _, tv := range assigned {
		if !p.SubjectInfo[p.Subjects[tv.Subject]].IsDoublePeriod {
			continue
		}
		key := [5]int{tv.Class, tv.Day, tv.Subject, tv.Teacher, tv.Room}
		channels[key] = append(channels[key], tv.Period)
	}
	keys := make([][5]int, 0, len(channels))
	for key := range channels {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		for k := 0; k < 5; k++ {
			if keys[i][k] != keys[j][k] {
				return keys[i][k] < keys[j][k]
			}
		}
		return false
	})
	for _, key := range keys {
		periods := channels[key]
		sort.Ints(periods)
		if !pairsCleanly(periods) {
			res.addViolation(fmt.Sprintf(
				"HC8: double-period subject %s for class %s on day %d is not delivered as adjacent pairs",
				p.Subjects[key[2]], p.Classes[key[0]], key[1]+1))
		}
	}

	return res
}

// pairsCleanly reports whether the sorted period list decomposes into
// disjoint adjacent pairs.
func pairsCleanly(periods []int) bool {
	for i := 0; i < len(periods); {
		if i+1 >= len(periods) || periods[i+1] != periods[i]+1 {
			return false
		}
		i += 2
	}
	return true
}
