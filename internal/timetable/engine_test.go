package timetable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/schoolcore/timetable-engine/pkg/errors"
)

func testEngine() *Engine {
	return NewEngine(nil, nil, Options{MaxTime: 30 * time.Second})
}

func assignedCells(grid [][]*Cell) []*Cell {
	var cells []*Cell
	for _, row := range grid {
		for _, c := range row {
			if c != nil {
				cells = append(cells, c)
			}
		}
	}
	return cells
}

// trivially feasible single-class single-subject instance
func TestRunTrivialInstance(t *testing.T) {
	raw := RawConfig{
		Classes:       []string{"A"},
		Subjects:      map[string]Subject{"math": {HoursPerWeek: 2, RoomType: "standard"}},
		Teachers:      map[string]Teacher{"t1": {CanTeach: []string{"math"}}},
		Rooms:         []string{"r1"},
		Days:          1,
		PeriodsPerDay: 2,
	}

	out, err := testEngine().Run(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, out.Status)

	grid := out.Schedule.ByClass["A"]
	require.NotNil(t, grid)
	for p := 0; p < 2; p++ {
		cell := grid[0][p]
		require.NotNil(t, cell)
		assert.Equal(t, "math", cell.Subject)
		assert.Equal(t, "t1", cell.Teacher)
		assert.Equal(t, "r1", cell.Room)
	}

	// both hours land on the single day, so the spread term is the whole cost
	assert.Equal(t, 2, out.Objective)

	require.NotNil(t, out.Validation)
	assert.True(t, out.Validation.IsValid)
	assert.Empty(t, out.Validation.Violations)
}

// identical input and settings must reproduce bit-identical schedules
func TestRunIsDeterministic(t *testing.T) {
	raw := RawConfig{
		Classes: []string{"A", "B"},
		Subjects: map[string]Subject{
			"math": {HoursPerWeek: 2, RoomType: "standard"},
			"art":  {HoursPerWeek: 1, RoomType: "standard"},
		},
		Teachers: map[string]Teacher{
			"t1": {CanTeach: []string{"math"}},
			"t2": {CanTeach: []string{"art", "math"}},
		},
		Rooms:         []string{"r1", "r2"},
		Days:          2,
		PeriodsPerDay: 3,
	}

	first, err := testEngine().Run(context.Background(), raw)
	require.NoError(t, err)
	second, err := testEngine().Run(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Objective, second.Objective)

	a, err := first.Schedule.ExportJSON()
	require.NoError(t, err)
	b, err := second.Schedule.ExportJSON()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// hard infeasible by capacity, caught before any model is built
func TestRunRejectsOverloadedClass(t *testing.T) {
	raw := RawConfig{
		Classes:       []string{"A"},
		Subjects:      map[string]Subject{"math": {HoursPerWeek: 3, RoomType: "standard"}},
		Teachers:      map[string]Teacher{"t1": {CanTeach: []string{"math"}}},
		Rooms:         []string{"r1"},
		Days:          1,
		PeriodsPerDay: 2,
	}

	out, err := testEngine().Run(context.Background(), raw)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperrors.ErrPreValidation))
	var pvErr *apperrors.PreValidationError
	require.True(t, errors.As(err, &pvErr))
	assert.True(t, hasMessage(pvErr.Messages, "exceeds"))
	assert.Nil(t, out.Schedule)
}

// a curriculum subject nobody can teach blocks model construction
func TestRunRejectsUnqualifiedSubject(t *testing.T) {
	raw := RawConfig{
		Classes:  []string{"A"},
		Subjects: map[string]Subject{"math": {HoursPerWeek: 1, RoomType: "standard"}},
		Teachers: map[string]Teacher{"t1": {}},
		Rooms:    []string{"r1"},
	}

	out, err := testEngine().Run(context.Background(), raw)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperrors.ErrPreValidation))
	var pvErr *apperrors.PreValidationError
	require.True(t, errors.As(err, &pvErr))
	assert.True(t, hasMessage(pvErr.Messages, "no qualified teachers"))
	assert.Nil(t, out.Schedule)
}

// double-period subjects appear as same-day adjacent pairs with one teacher
// and one room
func TestRunDoublePeriodPairing(t *testing.T) {
	raw := RawConfig{
		Classes:       []string{"A"},
		Subjects:      map[string]Subject{"lab": {HoursPerWeek: 2, RoomType: "lab", IsDoublePeriod: true}},
		Teachers:      map[string]Teacher{"t1": {CanTeach: []string{"lab"}}},
		Rooms:         map[string]Room{"lab1": {Type: "lab"}},
		Days:          1,
		PeriodsPerDay: 3,
	}

	out, err := testEngine().Run(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, out.Status)

	cells := assignedCells(out.Schedule.ByClass["A"])
	require.Len(t, cells, 2)

	var periods []int
	for p, cell := range out.Schedule.ByClass["A"][0] {
		if cell != nil {
			periods = append(periods, p)
		}
	}
	require.Len(t, periods, 2)
	assert.Equal(t, periods[0]+1, periods[1], "double period must occupy adjacent slots")
	assert.Equal(t, cells[0].Teacher, cells[1].Teacher)
	assert.Equal(t, cells[0].Room, cells[1].Room)

	assert.True(t, out.Validation.IsValid)
}

// two classes competing for one teacher's only two slots
func TestRunSoleTeacherOverload(t *testing.T) {
	raw := RawConfig{
		Classes:       []string{"A", "B"},
		Subjects:      map[string]Subject{"math": {HoursPerWeek: 2, RoomType: "standard"}},
		Teachers:      map[string]Teacher{"t1": {CanTeach: []string{"math"}}},
		Rooms:         []string{"r1", "r2"},
		Days:          1,
		PeriodsPerDay: 2,
	}

	_, err := testEngine().Run(context.Background(), raw)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperrors.ErrPreValidation))

	// the explainer names the capacity shortfall as well
	p := mustNormalize(t, raw)
	notes := ExplainInfeasibility(p)
	assert.True(t, hasMessage(notes, "insufficient teacher capacity"))
}

// room contention that only the solver can prove impossible
func TestRunSolverProvenInfeasible(t *testing.T) {
	raw := RawConfig{
		Classes:  []string{"A", "B"},
		Subjects: map[string]Subject{"chem": {HoursPerWeek: 2, RoomType: "lab"}},
		Teachers: map[string]Teacher{
			"t1": {CanTeach: []string{"chem"}},
			"t2": {CanTeach: []string{"chem"}},
		},
		Rooms:         map[string]Room{"lab1": {Type: "lab"}, "r1": {Type: "standard"}},
		Days:          1,
		PeriodsPerDay: 2,
	}

	out, err := testEngine().Run(context.Background(), raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInfeasible))
	assert.Equal(t, StatusInfeasible, out.Status)
	assert.Nil(t, out.Schedule)
}

// with only the heavy penalty active the solver spreads the heavy subject
func TestRunSoftOptimizationPrefersSpread(t *testing.T) {
	raw := RawConfig{
		Classes:       []string{"A"},
		Subjects:      map[string]Subject{"phys": {HoursPerWeek: 2, RoomType: "standard", IsHeavy: true}},
		Teachers:      map[string]Teacher{"t1": {CanTeach: []string{"phys"}}},
		Rooms:         []string{"r1"},
		Days:          2,
		PeriodsPerDay: 2,
		Weights: map[string]int{
			"teacher_idle_transition":      0,
			"class_consecutive_overrun":    0,
			"subject_spread_excess":        0,
			"heavy_back_to_back":           1,
			"teacher_early_late_imbalance": 0,
		},
	}

	out, err := testEngine().Run(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, out.Status)
	assert.Equal(t, 0, out.Objective)

	var usedDays []int
	for d := 0; d < 2; d++ {
		for p := 0; p < 2; p++ {
			if out.Schedule.ByClass["A"][d][p] != nil {
				usedDays = append(usedDays, d)
			}
		}
	}
	require.Len(t, usedDays, 2)
	assert.NotEqual(t, usedDays[0], usedDays[1], "heavy hours should land on different days")
}

// break windows stay free and the remaining slots absorb the hours
func TestRunRespectsBreaks(t *testing.T) {
	raw := RawConfig{
		Classes:       []string{"A"},
		Subjects:      map[string]Subject{"math": {HoursPerWeek: 2, RoomType: "standard"}},
		Teachers:      map[string]Teacher{"t1": {CanTeach: []string{"math"}}},
		Rooms:         []string{"r1"},
		Days:          1,
		PeriodsPerDay: 3,
		Institution:   RawInstitution{Breaks: []RawBreak{{Day: AllDays, Period: 1, Duration: 1}}},
	}

	out, err := testEngine().Run(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, out.Status)

	grid := out.Schedule.ByClass["A"]
	assert.NotNil(t, grid[0][0])
	assert.Nil(t, grid[0][1], "break period must stay free")
	assert.NotNil(t, grid[0][2])
	assert.True(t, out.Validation.IsValid)
}

// the post-validator catches assignments that disagree with the problem
func TestValidateFlagsForeignProblem(t *testing.T) {
	raw := RawConfig{
		Classes:       []string{"A"},
		Subjects:      map[string]Subject{"math": {HoursPerWeek: 2, RoomType: "standard"}},
		Teachers:      map[string]Teacher{"t1": {CanTeach: []string{"math"}}},
		Rooms:         []string{"r1"},
		Days:          1,
		PeriodsPerDay: 2,
	}
	p := mustNormalize(t, raw)
	bm, err := BuildModel(p, nil)
	require.NoError(t, err)
	res := Solve(context.Background(), bm, Options{MaxTime: 30 * time.Second}, nil, nil)
	require.Equal(t, StatusOptimal, res.Status)

	// same entities, but the weekly requirement changed under our feet
	raw.Subjects = map[string]Subject{"math": {HoursPerWeek: 1, RoomType: "standard"}}
	altered := mustNormalize(t, raw)

	verdict := Validate(altered, bm.Index, res.Valuation)
	assert.False(t, verdict.IsValid)
	assert.True(t, hasMessage(verdict.Violations, "HC4"))
}

func TestSolveReportsRunMetadata(t *testing.T) {
	raw := RawConfig{
		Classes:       []string{"A"},
		Subjects:      map[string]Subject{"math": {HoursPerWeek: 1, RoomType: "standard"}},
		Teachers:      map[string]Teacher{"t1": {CanTeach: []string{"math"}}},
		Rooms:         []string{"r1"},
		Days:          1,
		PeriodsPerDay: 1,
	}
	p := mustNormalize(t, raw)
	bm, err := BuildModel(p, nil)
	require.NoError(t, err)

	seed := int64(42)
	res := Solve(context.Background(), bm, Options{MaxTime: 30 * time.Second, Workers: 4, RandomSeed: &seed}, nil, nil)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, StatusOptimal, res.Status)
	assert.GreaterOrEqual(t, res.Elapsed, time.Duration(0))
}
