package timetable

import (
	"fmt"
	"strings"
)

// PreValidationResult carries the static-analysis verdict on a Problem.
// Errors mean the instance is infeasible by construction and no model should
// be built; warnings flag tightness; info carries diagnostic totals.
type PreValidationResult struct {
	Errors   []string
	Warnings []string
	Info     []string
}

// IsValid reports whether model construction may proceed.
func (r PreValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

func labTyped(roomType string) bool {
	return roomType == "lab" || roomType == "computer"
}

// PreValidate statically analyses the Problem without touching the solver.
// Message ordering follows the insertion order of classes, subjects, teachers
// and rooms, so repeated calls yield identical lists.
func PreValidate(p *Problem) PreValidationResult {
	var res PreValidationResult

	totalSlots := p.TotalSlots()
	blocked := p.blockedSlotCount()
	availablePerClass := totalSlots - blocked

	res.Info = append(res.Info,
		fmt.Sprintf("total slots per class: %d (%d days x %d periods)", totalSlots, p.Days, p.PeriodsPerDay),
		fmt.Sprintf("blocked slots: %d", blocked),
		fmt.Sprintf("available slots: %d", availablePerClass),
	)

	// class demand vs per-class capacity
	for _, c := range p.Classes {
		required := 0
		for _, s := range p.Curriculum(c) {
			required += p.SubjectInfo[s].HoursPerWeek
		}
		switch {
		case required > availablePerClass:
			res.Errors = append(res.Errors, fmt.Sprintf(
				"class %s requires %d hours but only %d slots are available (exceeds by %d)",
				c, required, availablePerClass, required-availablePerClass))
		case float64(required) > float64(availablePerClass)*0.95:
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"class %s has a very tight schedule: %d hours in %d slots (%.1f%% utilization)",
				c, required, availablePerClass, pct(required, availablePerClass)))
		}
		res.Info = append(res.Info, fmt.Sprintf("class %s: %d/%d hours", c, required, availablePerClass))
	}

	// subjects without qualified teachers
	for _, s := range p.Subjects {
		if !subjectInAnyCurriculum(p, s) {
			continue
		}
		qualified := false
		for _, t := range p.Teachers {
			if p.TeacherInfo[t].Teaches(s) {
				qualified = true
				break
			}
		}
		if !qualified {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"subject %s has no qualified teachers and cannot be scheduled", s))
		}
	}

	// double-period subjects with odd weekly hours cannot form whole pairs
	for _, s := range p.Subjects {
		info := p.SubjectInfo[s]
		if info.IsDoublePeriod && info.HoursPerWeek%2 != 0 {
			msg := fmt.Sprintf(
				"double-period subject %s has odd hours_per_week %d; hours cannot be delivered as adjacent pairs",
				s, info.HoursPerWeek)
			if p.Tuning.LenientDoublePeriods {
				res.Warnings = append(res.Warnings, msg)
			} else {
				res.Errors = append(res.Errors, msg)
			}
		}
	}

	// room-type coverage
	roomTypes, roomTypeOrder := roomTypeHistogram(p)
	needs, needOrder := subjectRoomNeeds(p)
	for _, rt := range needOrder {
		if roomTypes[rt] == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"%d subject(s) require %q rooms but none are available", needs[rt], rt))
		}
	}
	res.Info = append(res.Info,
		fmt.Sprintf("room types: %s", renderHistogram(roomTypes, roomTypeOrder)),
		fmt.Sprintf("subject room needs: %s", renderHistogram(needs, needOrder)),
	)

	// global teacher capacity
	totalDemand := 0
	for _, c := range p.Classes {
		for _, s := range p.Curriculum(c) {
			totalDemand += p.SubjectInfo[s].HoursPerWeek
		}
	}
	totalTeacherSlots := 0
	for _, t := range p.Teachers {
		totalTeacherSlots += p.TeacherInfo[t].AvailableSlots()
	}
	res.Info = append(res.Info,
		fmt.Sprintf("total teaching demand: %d hours", totalDemand),
		fmt.Sprintf("total teacher availability: %d slots", totalTeacherSlots),
	)
	switch {
	case totalDemand > totalTeacherSlots:
		res.Errors = append(res.Errors, fmt.Sprintf(
			"insufficient teacher capacity: need %d hours but only %d teacher-slots available (shortage %d)",
			totalDemand, totalTeacherSlots, totalDemand-totalTeacherSlots))
	case float64(totalDemand) > float64(totalTeacherSlots)*0.90:
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"teacher capacity is very tight: %d demand vs %d availability (%.1f%% utilization)",
			totalDemand, totalTeacherSlots, pct(totalDemand, totalTeacherSlots)))
	}

	// per-teacher worst-case demand
	for _, t := range p.Teachers {
		info := p.TeacherInfo[t]
		maxDemand := 0
		for _, s := range info.CanTeach {
			hours := p.SubjectInfo[s].HoursPerWeek
			for _, c := range p.Classes {
				if p.InCurriculum(c, s) {
					maxDemand += hours
				}
			}
		}
		capacity := info.AvailableSlots()
		if maxDemand > capacity*2 {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"teacher %s: maximum possible demand %d hours far exceeds capacity %d slots",
				t, maxDemand, capacity))
		}
	}

	// every class can need a room at the same instant
	if len(p.Classes) > len(p.Rooms) {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"room shortage: %d classes but only %d rooms (need %d more)",
			len(p.Classes), len(p.Rooms), len(p.Classes)-len(p.Rooms)))
	}

	// lab coverage
	var labSubjects, labRooms int
	for _, s := range p.Subjects {
		if labTyped(p.SubjectInfo[s].RoomType) {
			labSubjects++
		}
	}
	for _, r := range p.Rooms {
		if labTyped(p.RoomInfo[r].Type) {
			labRooms++
		}
	}
	if labSubjects > 0 && labRooms == 0 {
		res.Errors = append(res.Errors, "lab subjects exist but no lab or computer rooms are available")
	} else if float64(labSubjects) > float64(labRooms*p.Days*p.PeriodsPerDay)*0.3 && labSubjects > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"lab room capacity may be tight: %d lab subjects, %d lab rooms", labSubjects, labRooms))
	}

	// blocked slots squeezing tight classes
	if blocked > 0 {
		for _, c := range p.Classes {
			required := 0
			for _, s := range p.Curriculum(c) {
				required += p.SubjectInfo[s].HoursPerWeek
			}
			if float64(required) > float64(availablePerClass)*0.8 {
				res.Warnings = append(res.Warnings, fmt.Sprintf(
					"class %s: blocked slots reduce flexibility and may cause infeasibility", c))
			}
		}
	}

	// teachers mostly unavailable
	for _, t := range p.Teachers {
		unavailable := totalSlots - p.TeacherInfo[t].AvailableSlots()
		if float64(unavailable) > float64(totalSlots)*0.5 {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"teacher %s has low availability: %d/%d slots unavailable (%.1f%%)",
				t, unavailable, totalSlots, pct(unavailable, totalSlots)))
		}
	}

	// double periods reduce flexibility
	doubles := 0
	for _, s := range p.Subjects {
		if p.SubjectInfo[s].IsDoublePeriod {
			doubles++
		}
	}
	if doubles > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"%d subject(s) require consecutive periods and may reduce scheduling flexibility", doubles))
	}

	return res
}

func subjectInAnyCurriculum(p *Problem, s string) bool {
	for _, c := range p.Classes {
		if p.InCurriculum(c, s) {
			return true
		}
	}
	return false
}

func roomTypeHistogram(p *Problem) (map[string]int, []string) {
	counts := make(map[string]int)
	var order []string
	for _, r := range p.Rooms {
		rt := p.RoomInfo[r].Type
		if counts[rt] == 0 {
			order = append(order, rt)
		}
		counts[rt]++
	}
	return counts, order
}

func subjectRoomNeeds(p *Problem) (map[string]int, []string) {
	counts := make(map[string]int)
	var order []string
	for _, s := range p.Subjects {
		rt := p.SubjectInfo[s].RoomType
		if counts[rt] == 0 {
			order = append(order, rt)
		}
		counts[rt]++
	}
	return counts, order
}

func renderHistogram(counts map[string]int, order []string) string {
	if len(order) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(order))
	for _, key := range order {
		parts = append(parts, fmt.Sprintf("%s=%d", key, counts[key]))
	}
	return strings.Join(parts, " ")
}

func pct(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}
