package timetable

import (
	"encoding/json"

	"github.com/schoolcore/timetable-engine/internal/cpsat"
)

// Cell is one assigned slot as seen from any of the three views.
type Cell struct {
	Class   string
	Subject string
	Teacher string
	Room    string
}

// Schedule is the extracted timetable: per-class, per-teacher and per-room
// grids of Days x PeriodsPerDay cells. A nil cell means Free.
type Schedule struct {
	Status        string
	Objective     int
	Days          int
	PeriodsPerDay int

	// GeneratedAt is an optional RFC3339 stamp the caller may set before
	// exporting; extraction itself never reads a clock.
	GeneratedAt string

	ByClass   map[string][][]*Cell
	ByTeacher map[string][][]*Cell
	ByRoom    map[string][][]*Cell
}

// Extract projects the valuation into the three schedule views. For each
// (class, day, period) slot the contributing tuples are scanned in canonical
// universe order and the first assigned tuple wins; slot uniqueness makes it
// the only one. Extraction reads nothing from the solver besides values.
func Extract(p *Problem, ix *VarIndex, val cpsat.Solution) *Schedule {
	s := &Schedule{
		Days:          p.Days,
		PeriodsPerDay: p.PeriodsPerDay,
		ByClass:       make(map[string][][]*Cell, len(p.Classes)),
		ByTeacher:     make(map[string][][]*Cell, len(p.Teachers)),
		ByRoom:        make(map[string][][]*Cell, len(p.Rooms)),
	}
	for _, c := range p.Classes {
		s.ByClass[c] = emptyGrid(p.Days, p.PeriodsPerDay)
	}
	for _, t := range p.Teachers {
		s.ByTeacher[t] = emptyGrid(p.Days, p.PeriodsPerDay)
	}
	for _, r := range p.Rooms {
		s.ByRoom[r] = emptyGrid(p.Days, p.PeriodsPerDay)
	}

	for ci, c := range p.Classes {
		for d := 0; d < p.Days; d++ {
			for period := 0; period < p.PeriodsPerDay; period++ {
				for _, tv := range ix.SlotTuples(ci, d, period) {
					if !val.Value(tv.Var) {
						continue
					}
					cell := &Cell{
						Class:   c,
						Subject: p.Subjects[tv.Subject],
						Teacher: p.Teachers[tv.Teacher],
						Room:    p.Rooms[tv.Room],
					}
					s.ByClass[c][d][period] = cell
					s.ByTeacher[cell.Teacher][d][period] = cell
					s.ByRoom[cell.Room][d][period] = cell
					break
				}
			}
		}
	}
	return s
}

func emptyGrid(days, periods int) [][]*Cell {
	grid := make([][]*Cell, days)
	for d := range grid {
		grid[d] = make([]*Cell, periods)
	}
	return grid
}

// canonical JSON export types; field names are a stable contract for
// downstream consumers.

type exportMetadata struct {
	Status         string `json:"status"`
	ObjectiveValue int    `json:"objective_value"`
	Solver         string `json:"solver"`
	Days           int    `json:"days"`
	PeriodsPerDay  int    `json:"periods_per_day"`
	Timestamp      string `json:"timestamp,omitempty"`
}

type classSlotExport struct {
	Day     int     `json:"day"`
	Period  int     `json:"period"`
	Subject *string `json:"subject"`
	Teacher *string `json:"teacher"`
	Room    *string `json:"room"`
}

type teacherSlotExport struct {
	Day     int     `json:"day"`
	Period  int     `json:"period"`
	Class   *string `json:"class"`
	Subject *string `json:"subject"`
	Room    *string `json:"room"`
}

type roomSlotExport struct {
	Day     int     `json:"day"`
	Period  int     `json:"period"`
	Class   *string `json:"class"`
	Subject *string `json:"subject"`
	Teacher *string `json:"teacher"`
}

type scheduleExport struct {
	Metadata         exportMetadata                   `json:"metadata"`
	ClassTimetables  map[string][][]classSlotExport   `json:"class_timetables"`
	TeacherTimetable map[string][][]teacherSlotExport `json:"teacher_timetables"`
	RoomUtilization  map[string][][]roomSlotExport    `json:"room_utilization"`
}

// ExportJSON renders the canonical timetable document: a metadata block plus
// the three views as day-by-period record grids with 1-based day and period
// and null fields for free slots.
func (s *Schedule) ExportJSON() ([]byte, error) {
	doc := scheduleExport{
		Metadata: exportMetadata{
			Status:         s.Status,
			ObjectiveValue: s.Objective,
			Solver:         "timetable-engine/cpsat (gophersat)",
			Days:           s.Days,
			PeriodsPerDay:  s.PeriodsPerDay,
			Timestamp:      s.GeneratedAt,
		},
		ClassTimetables:  make(map[string][][]classSlotExport, len(s.ByClass)),
		TeacherTimetable: make(map[string][][]teacherSlotExport, len(s.ByTeacher)),
		RoomUtilization:  make(map[string][][]roomSlotExport, len(s.ByRoom)),
	}

	for c, grid := range s.ByClass {
		out := make([][]classSlotExport, len(grid))
		for d, row := range grid {
			day := make([]classSlotExport, len(row))
			for p, cell := range row {
				slot := classSlotExport{Day: d + 1, Period: p + 1}
				if cell != nil {
					slot.Subject = strptr(cell.Subject)
					slot.Teacher = strptr(cell.Teacher)
					slot.Room = strptr(cell.Room)
				}
				day[p] = slot
			}
			out[d] = day
		}
		doc.ClassTimetables[c] = out
	}

	for t, grid := range s.ByTeacher {
		out := make([][]teacherSlotExport, len(grid))
		for d, row := range grid {
			day := make([]teacherSlotExport, len(row))
			for p, cell := range row {
				slot := teacherSlotExport{Day: d + 1, Period: p + 1}
				if cell != nil {
					slot.Class = strptr(cell.Class)
					slot.Subject = strptr(cell.Subject)
					slot.Room = strptr(cell.Room)
				}
				day[p] = slot
			}
			out[d] = day
		}
		doc.TeacherTimetable[t] = out
	}

	for r, grid := range s.ByRoom {
		out := make([][]roomSlotExport, len(grid))
		for d, row := range grid {
			day := make([]roomSlotExport, len(row))
			for p, cell := range row {
				slot := roomSlotExport{Day: d + 1, Period: p + 1}
				if cell != nil {
					slot.Class = strptr(cell.Class)
					slot.Subject = strptr(cell.Subject)
					slot.Teacher = strptr(cell.Teacher)
				}
				day[p] = slot
			}
			out[d] = day
		}
		doc.RoomUtilization[r] = out
	}

	return json.MarshalIndent(doc, "", "  ")
}

func strptr(s string) *string { return &s }
