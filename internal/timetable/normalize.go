package timetable

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/schoolcore/timetable-engine/pkg/errors"
)

// RawConfig is an already-parsed configuration, before normalization. The
// Subjects, Teachers and Rooms fields accept either a mapping of id to record
// or a sequence whose elements are ids (strings) or records; this mirrors the
// shapes produced by generic JSON/YAML decoding upstream.
type RawConfig struct {
	Classes  []string
	Subjects any
	Teachers any
	Rooms    any

	// ClassSubjects maps class id to curriculum. Absent or malformed means
	// every class studies the full subject set.
	ClassSubjects any

	Days          int
	PeriodsPerDay int

	Institution RawInstitution
	Weights     map[string]int

	MaxConsecutivePeriods int
	EarlyPeriods          []int
	LatePeriods           []int
	LenientDoublePeriods  bool
}

// RawInstitution carries institution-wide settings.
type RawInstitution struct {
	Breaks []RawBreak
}

// RawBreak blocks Duration periods starting at Period. Day is a day index or
// -1 for every day; Duration defaults to 1.
type RawBreak struct {
	Day      int
	Period   int
	Duration int
}

// RawSubject is the record form of a subject entry.
type RawSubject struct {
	Name           string
	HoursPerWeek   int
	RoomType       string
	IsHeavy        bool
	IsDoublePeriod bool
}

// RawTeacher is the record form of a teacher entry.
type RawTeacher struct {
	Name         string
	CanTeach     []string
	Availability [][]int
}

// RawRoom is the record form of a room entry.
type RawRoom struct {
	Name     string
	Type     string
	Capacity int
}

var validate = validator.New()

// Normalize maps a raw configuration to a canonical Problem. It defaults
// omitted fields, coerces the flexible entry shapes to records, and verifies
// referential integrity; feasibility is PreValidate's concern.
func Normalize(raw RawConfig, log *zap.Logger) (*Problem, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if len(raw.Classes) == 0 {
		return nil, apperrors.Clone(apperrors.ErrConfig, "missing required field: classes")
	}
	if raw.Subjects == nil {
		return nil, apperrors.Clone(apperrors.ErrConfig, "missing required field: subjects")
	}
	if raw.Teachers == nil {
		return nil, apperrors.Clone(apperrors.ErrConfig, "missing required field: teachers")
	}

	days := raw.Days
	if days == 0 {
		days = 5
	}
	periods := raw.PeriodsPerDay
	if periods == 0 {
		periods = 6
	}
	if days < 1 || periods < 1 {
		return nil, apperrors.Clone(apperrors.ErrConfig, "days and periods_per_day must be positive")
	}

	subjects, subjectInfo, err := coerceSubjects(raw.Subjects)
	if err != nil {
		return nil, err
	}
	teachers, teacherInfo, err := coerceTeachers(raw.Teachers, days, periods)
	if err != nil {
		return nil, err
	}
	rooms, roomInfo, err := coerceRooms(raw.Rooms)
	if err != nil {
		return nil, err
	}

	for _, t := range teachers {
		for _, s := range teacherInfo[t].CanTeach {
			if _, ok := subjectInfo[s]; !ok {
				return nil, apperrors.Clone(apperrors.ErrConfig,
					fmt.Sprintf("teacher %s can_teach references unknown subject %s", t, s))
			}
		}
	}

	curricula, err := coerceCurricula(raw.ClassSubjects, raw.Classes, subjects, subjectInfo)
	if err != nil {
		return nil, err
	}

	weights, err := coerceWeights(raw.Weights)
	if err != nil {
		return nil, err
	}

	tuning := Tuning{
		MaxConsecutivePeriods: raw.MaxConsecutivePeriods,
		EarlyPeriods:          clipPeriods(raw.EarlyPeriods, periods),
		LatePeriods:           clipPeriods(raw.LatePeriods, periods),
		LenientDoublePeriods:  raw.LenientDoublePeriods,
	}
	if tuning.MaxConsecutivePeriods <= 0 {
		tuning.MaxConsecutivePeriods = 3
	}
	if raw.EarlyPeriods == nil {
		tuning.EarlyPeriods = clipPeriods([]int{0, 1}, periods)
	}
	if raw.LatePeriods == nil {
		tuning.LatePeriods = clipPeriods([]int{periods - 2, periods - 1}, periods)
	}

	breaks := make([]Break, 0, len(raw.Institution.Breaks))
	for _, b := range raw.Institution.Breaks {
		if b.Day != AllDays && (b.Day < 0 || b.Day >= days) {
			return nil, apperrors.Clone(apperrors.ErrConfig,
				fmt.Sprintf("break day %d outside horizon", b.Day))
		}
		duration := b.Duration
		if duration == 0 {
			duration = 1
		}
		if duration < 0 {
			return nil, apperrors.Clone(apperrors.ErrConfig,
				fmt.Sprintf("break duration %d is negative", duration))
		}
		start, end := b.Period, b.Period+duration
		if start < 0 {
			start = 0
		}
		if end > periods {
			end = periods
		}
		if start >= end {
			continue
		}
		breaks = append(breaks, Break{Day: b.Day, StartPeriod: start, Duration: end - start})
	}

	p := &Problem{
		Classes:       append([]string(nil), raw.Classes...),
		Subjects:      subjects,
		Teachers:      teachers,
		Rooms:         rooms,
		SubjectInfo:   subjectInfo,
		TeacherInfo:   teacherInfo,
		RoomInfo:      roomInfo,
		Curricula:     curricula,
		Days:          days,
		PeriodsPerDay: periods,
		Breaks:        breaks,
		Weights:       weights,
		Tuning:        tuning,
	}

	for _, t := range teachers {
		avail := teacherInfo[t].Availability
		if len(avail) != days {
			return nil, apperrors.Clone(apperrors.ErrConfig,
				fmt.Sprintf("teacher %s availability has %d rows, want %d days", t, len(avail), days))
		}
		for d, row := range avail {
			if len(row) != periods {
				return nil, apperrors.Clone(apperrors.ErrConfig,
					fmt.Sprintf("teacher %s availability day %d has %d periods, want %d", t, d, len(row), periods))
			}
		}
	}

	if err := validate.Struct(p); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfig.Code, "normalized problem failed validation")
	}

	log.Debug("normalized problem",
		zap.Int("classes", len(p.Classes)),
		zap.Int("subjects", len(p.Subjects)),
		zap.Int("teachers", len(p.Teachers)),
		zap.Int("rooms", len(p.Rooms)),
		zap.Int("days", p.Days),
		zap.Int("periods_per_day", p.PeriodsPerDay),
	)
	return p, nil
}

// coerceSubjects accepts map[string]RawSubject, map[string]any, []string or
// []any of strings/records. Map inputs are ordered by sorted key so the
// canonical ordering is deterministic.
func coerceSubjects(v any) ([]string, map[string]Subject, error) {
	info := make(map[string]Subject)
	var order []string

	add := func(name string, s Subject) {
		if s.RoomType == "" {
			s.RoomType = "standard"
		}
		info[name] = s
		order = append(order, name)
	}

	switch in := v.(type) {
	case map[string]RawSubject:
		for _, name := range sortedKeys(in) {
			r := in[name]
			add(name, Subject{HoursPerWeek: r.HoursPerWeek, RoomType: r.RoomType, IsHeavy: r.IsHeavy, IsDoublePeriod: r.IsDoublePeriod})
		}
	case map[string]Subject:
		for _, name := range sortedKeys(in) {
			add(name, in[name])
		}
	case map[string]any:
		for _, name := range sortedKeys(in) {
			s, err := subjectFromMap(in[name])
			if err != nil {
				return nil, nil, apperrors.Clone(apperrors.ErrConfig, fmt.Sprintf("subject %s: %v", name, err))
			}
			add(name, s)
		}
	case []string:
		for _, name := range in {
			add(name, Subject{HoursPerWeek: 1})
		}
	case []any:
		for _, item := range in {
			switch e := item.(type) {
			case string:
				add(e, Subject{HoursPerWeek: 1})
			case RawSubject:
				if e.Name == "" {
					return nil, nil, apperrors.Clone(apperrors.ErrConfig, "subject record entries require a name")
				}
				add(e.Name, Subject{HoursPerWeek: e.HoursPerWeek, RoomType: e.RoomType, IsHeavy: e.IsHeavy, IsDoublePeriod: e.IsDoublePeriod})
			case map[string]any:
				name, _ := firstString(e, "name", "id", "subject")
				if name == "" {
					return nil, nil, apperrors.Clone(apperrors.ErrConfig, "subject entries must include a name or be strings")
				}
				s, err := subjectFromMap(e)
				if err != nil {
					return nil, nil, apperrors.Clone(apperrors.ErrConfig, fmt.Sprintf("subject %s: %v", name, err))
				}
				add(name, s)
			default:
				return nil, nil, apperrors.Clone(apperrors.ErrConfig, "unsupported subject entry type")
			}
		}
	default:
		return nil, nil, apperrors.Clone(apperrors.ErrConfig, "subjects must be a mapping or a sequence")
	}
	return order, info, nil
}

func subjectFromMap(v any) (Subject, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Subject{}, fmt.Errorf("expected a record, got %T", v)
	}
	s := Subject{HoursPerWeek: 1, RoomType: "standard"}
	if h, ok := m["hours_per_week"]; ok {
		n, err := toInt(h)
		if err != nil {
			return Subject{}, fmt.Errorf("hours_per_week: %v", err)
		}
		s.HoursPerWeek = n
	}
	if rt, ok := m["room_type"].(string); ok {
		s.RoomType = rt
	}
	if hv, ok := m["is_heavy"].(bool); ok {
		s.IsHeavy = hv
	}
	if dp, ok := m["is_double_period"].(bool); ok {
		s.IsDoublePeriod = dp
	}
	return s, nil
}

func coerceTeachers(v any, days, periods int) ([]string, map[string]Teacher, error) {
	info := make(map[string]Teacher)
	var order []string

	add := func(name string, t Teacher) {
		if t.Availability == nil {
			t.Availability = allOnes(days, periods)
		}
		if t.CanTeach == nil {
			t.CanTeach = []string{}
		}
		info[name] = t
		order = append(order, name)
	}

	switch in := v.(type) {
	case map[string]RawTeacher:
		for _, name := range sortedKeys(in) {
			r := in[name]
			add(name, Teacher{CanTeach: r.CanTeach, Availability: r.Availability})
		}
	case map[string]Teacher:
		for _, name := range sortedKeys(in) {
			add(name, in[name])
		}
	case map[string]any:
		for _, name := range sortedKeys(in) {
			t, err := teacherFromMap(in[name])
			if err != nil {
				return nil, nil, apperrors.Clone(apperrors.ErrConfig, fmt.Sprintf("teacher %s: %v", name, err))
			}
			add(name, t)
		}
	case []string:
		for _, name := range in {
			add(name, Teacher{})
		}
	case []any:
		for _, item := range in {
			switch e := item.(type) {
			case string:
				add(e, Teacher{})
			case RawTeacher:
				if e.Name == "" {
					return nil, nil, apperrors.Clone(apperrors.ErrConfig, "teacher record entries require a name")
				}
				add(e.Name, Teacher{CanTeach: e.CanTeach, Availability: e.Availability})
			case map[string]any:
				name, _ := firstString(e, "name", "id", "teacher")
				if name == "" {
					return nil, nil, apperrors.Clone(apperrors.ErrConfig, "teacher entries must include a name or be strings")
				}
				t, err := teacherFromMap(e)
				if err != nil {
					return nil, nil, apperrors.Clone(apperrors.ErrConfig, fmt.Sprintf("teacher %s: %v", name, err))
				}
				add(name, t)
			default:
				return nil, nil, apperrors.Clone(apperrors.ErrConfig, "unsupported teacher entry type")
			}
		}
	default:
		return nil, nil, apperrors.Clone(apperrors.ErrConfig, "teachers must be a mapping or a sequence")
	}
	return order, info, nil
}

func teacherFromMap(v any) (Teacher, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Teacher{}, fmt.Errorf("expected a record, got %T", v)
	}
	t := Teacher{}
	if ct, ok := m["can_teach"]; ok {
		list, err := toStringSlice(ct)
		if err != nil {
			return Teacher{}, fmt.Errorf("can_teach: %v", err)
		}
		t.CanTeach = list
	}
	if av, ok := m["availability"]; ok {
		matrix, err := toIntMatrix(av)
		if err != nil {
			return Teacher{}, fmt.Errorf("availability: %v", err)
		}
		t.Availability = matrix
	}
	return t, nil
}

func coerceRooms(v any) ([]string, map[string]Room, error) {
	info := make(map[string]Room)
	var order []string

	add := func(name string, r Room) {
		if r.Type == "" {
			r.Type = "standard"
		}
		info[name] = r
		order = append(order, name)
	}

	switch in := v.(type) {
	case nil:
	case map[string]RawRoom:
		for _, name := range sortedKeys(in) {
			r := in[name]
			add(name, Room{Type: r.Type, Capacity: r.Capacity})
		}
	case map[string]Room:
		for _, name := range sortedKeys(in) {
			add(name, in[name])
		}
	case map[string]any:
		for _, name := range sortedKeys(in) {
			r, err := roomFromMap(in[name])
			if err != nil {
				return nil, nil, apperrors.Clone(apperrors.ErrConfig, fmt.Sprintf("room %s: %v", name, err))
			}
			add(name, r)
		}
	case []string:
		for _, name := range in {
			add(name, Room{})
		}
	case []any:
		for _, item := range in {
			switch e := item.(type) {
			case string:
				add(e, Room{})
			case RawRoom:
				if e.Name == "" {
					return nil, nil, apperrors.Clone(apperrors.ErrConfig, "room record entries require a name")
				}
				add(e.Name, Room{Type: e.Type, Capacity: e.Capacity})
			case map[string]any:
				name, _ := firstString(e, "name", "id", "room")
				if name == "" {
					return nil, nil, apperrors.Clone(apperrors.ErrConfig, "room entries must include a name or be strings")
				}
				r, err := roomFromMap(e)
				if err != nil {
					return nil, nil, apperrors.Clone(apperrors.ErrConfig, fmt.Sprintf("room %s: %v", name, err))
				}
				add(name, r)
			default:
				return nil, nil, apperrors.Clone(apperrors.ErrConfig, "unsupported room entry type")
			}
		}
	default:
		return nil, nil, apperrors.Clone(apperrors.ErrConfig, "rooms must be a mapping, a sequence or omitted")
	}
	return order, info, nil
}

func roomFromMap(v any) (Room, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Room{}, fmt.Errorf("expected a record, got %T", v)
	}
	r := Room{Type: "standard"}
	if t, ok := m["type"].(string); ok {
		r.Type = t
	}
	if c, ok := m["capacity"]; ok {
		n, err := toInt(c)
		if err != nil {
			return Room{}, fmt.Errorf("capacity: %v", err)
		}
		r.Capacity = n
	}
	return r, nil
}

// coerceCurricula applies the full subject set when class_subjects is absent
// or malformed, and verifies every referenced subject exists.
func coerceCurricula(v any, classes, subjects []string, info map[string]Subject) (map[string][]string, error) {
	full := func() map[string][]string {
		out := make(map[string][]string, len(classes))
		for _, c := range classes {
			out[c] = append([]string(nil), subjects...)
		}
		return out
	}

	var byClass map[string][]string
	switch in := v.(type) {
	case nil:
		return full(), nil
	case map[string][]string:
		byClass = in
	case map[string]any:
		byClass = make(map[string][]string, len(in))
		for name, val := range in {
			list, err := toStringSlice(val)
			if err != nil {
				return full(), nil
			}
			byClass[name] = list
		}
	default:
		return full(), nil
	}

	out := make(map[string][]string, len(classes))
	for _, c := range classes {
		list, ok := byClass[c]
		if !ok {
			out[c] = append([]string(nil), subjects...)
			continue
		}
		for _, s := range list {
			if _, known := info[s]; !known {
				return nil, apperrors.Clone(apperrors.ErrConfig,
					fmt.Sprintf("class %s curriculum references unknown subject %s", c, s))
			}
		}
		if len(list) == 0 {
			return nil, apperrors.Clone(apperrors.ErrConfig,
				fmt.Sprintf("class %s has an empty curriculum", c))
		}
		out[c] = append([]string(nil), list...)
	}
	return out, nil
}

func coerceWeights(raw map[string]int) (Weights, error) {
	w := DefaultWeights()
	for key, val := range raw {
		if val < 0 {
			return Weights{}, apperrors.Clone(apperrors.ErrConfig,
				fmt.Sprintf("weight %s must be non-negative", key))
		}
		switch key {
		case "teacher_idle_transition":
			w.TeacherIdleTransition = val
		case "class_consecutive_overrun":
			w.ClassConsecutiveOverrun = val
		case "subject_spread_excess":
			w.SubjectSpreadExcess = val
		case "heavy_back_to_back":
			w.HeavyBackToBack = val
		case "teacher_early_late_imbalance":
			w.TeacherEarlyLateImbalance = val
		case "teacher_unavailable":
			// accepted for input compatibility; availability is hard
		default:
			return Weights{}, apperrors.Clone(apperrors.ErrConfig,
				fmt.Sprintf("unknown weight key %s", key))
		}
	}
	return w, nil
}

func clipPeriods(periods []int, max int) []int {
	out := make([]int, 0, len(periods))
	for _, p := range periods {
		if p >= 0 && p < max {
			out = append(out, p)
		}
	}
	return out
}

func allOnes(days, periods int) [][]int {
	m := make([][]int, days)
	for d := range m {
		row := make([]int, periods)
		for p := range row {
			row[p] = 1
		}
		m[d] = row
	}
	return m
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func toStringSlice(v any) ([]string, error) {
	switch in := v.(type) {
	case []string:
		return append([]string(nil), in...), nil
	case []any:
		out := make([]string, 0, len(in))
		for _, item := range in {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected strings, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a sequence, got %T", v)
	}
}

func toIntMatrix(v any) ([][]int, error) {
	switch in := v.(type) {
	case [][]int:
		out := make([][]int, len(in))
		for i, row := range in {
			out[i] = append([]int(nil), row...)
		}
		return out, nil
	case []any:
		out := make([][]int, 0, len(in))
		for _, rowVal := range in {
			items, ok := rowVal.([]any)
			if !ok {
				return nil, fmt.Errorf("expected rows of numbers, got %T", rowVal)
			}
			row := make([]int, 0, len(items))
			for _, item := range items {
				n, err := toInt(item)
				if err != nil {
					return nil, err
				}
				row = append(row, n)
			}
			out = append(out, row)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a matrix, got %T", v)
	}
}
