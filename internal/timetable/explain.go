package timetable

import "fmt"

// ExplainInfeasibility produces heuristic diagnostics for an instance the
// solver proved unsatisfiable. It checks total teaching hours against
// slots times teachers, teachers with no available slot, room types no room
// provides, and subjects no teacher can teach. The other pre-validation
// checks (per-class capacity, room count, lab coverage, odd double-period
// hours, warnings) are not repeated here. The list is advisory and never
// fails.
func ExplainInfeasibility(p *Problem) []string {
	var suggestions []string

	totalSlots := p.TotalSlots()

	totalHoursNeeded := 0
	for _, c := range p.Classes {
		for _, s := range p.Curriculum(c) {
			totalHoursNeeded += p.SubjectInfo[s].HoursPerWeek
		}
	}
	if totalHoursNeeded > totalSlots*len(p.Teachers) {
		suggestions = append(suggestions, fmt.Sprintf(
			"insufficient teacher capacity: %d hours needed, but only %d slot-hours available",
			totalHoursNeeded, totalSlots*len(p.Teachers)))
	}

	for _, t := range p.Teachers {
		if p.TeacherInfo[t].AvailableSlots() == 0 {
			suggestions = append(suggestions, fmt.Sprintf("teacher %s has zero available time slots", t))
		}
	}

	roomTypes, _ := roomTypeHistogram(p)
	needs, needOrder := subjectRoomNeeds(p)
	for _, rt := range needOrder {
		if roomTypes[rt] == 0 {
			suggestions = append(suggestions, fmt.Sprintf(
				"%d subject(s) need %q rooms but 0 are available", needs[rt], rt))
		}
	}

	for _, s := range p.Subjects {
		qualified := false
		for _, t := range p.Teachers {
			if p.TeacherInfo[t].Teaches(s) {
				qualified = true
				break
			}
		}
		if !qualified {
			suggestions = append(suggestions, fmt.Sprintf("subject %s has no qualified teachers", s))
		}
	}

	return suggestions
}
