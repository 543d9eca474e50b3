package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildModelPrunesUnavailableSlots(t *testing.T) {
	p := mustNormalize(t, RawConfig{
		Classes: []string{"A"},
		Subjects: map[string]Subject{
			"chem": {HoursPerWeek: 1, RoomType: "lab"},
			"math": {HoursPerWeek: 1, RoomType: "standard"},
		},
		Teachers: map[string]Teacher{
			"t1": {CanTeach: []string{"chem", "math"}, Availability: [][]int{{0, 1}}},
		},
		Rooms:         map[string]Room{"lab1": {Type: "lab"}, "r1": {Type: "standard"}},
		Days:          1,
		PeriodsPerDay: 2,
	})
	bm, err := BuildModel(p, nil)
	require.NoError(t, err)
	ix := bm.Index

	// the unavailable period produced no variables at all
	assert.Empty(t, ix.SlotTuples(0, 0, 0))

	// the available period pairs each subject only with its room type
	slot := ix.SlotTuples(0, 0, 1)
	require.Len(t, slot, 2)
	assert.Equal(t, "chem", ix.Subjects[slot[0].Subject])
	assert.Equal(t, "lab1", ix.Rooms[slot[0].Room])
	assert.Equal(t, "math", ix.Subjects[slot[1].Subject])
	assert.Equal(t, "r1", ix.Rooms[slot[1].Room])
}

func TestBuildModelIndexLookups(t *testing.T) {
	p := mustNormalize(t, RawConfig{
		Classes:       []string{"A", "B"},
		Subjects:      map[string]Subject{"math": {HoursPerWeek: 1, RoomType: "standard"}},
		Teachers:      map[string]Teacher{"t1": {CanTeach: []string{"math"}}},
		Rooms:         []string{"r1", "r2"},
		Days:          2,
		PeriodsPerDay: 2,
	})
	bm, err := BuildModel(p, nil)
	require.NoError(t, err)
	ix := bm.Index

	// 2 classes x 2 days x 2 periods x 1 subject x 1 teacher x 2 rooms
	assert.Len(t, ix.Tuples(), 16)

	v, ok := ix.Lookup(1, 1, 0, 0, 0, 1)
	require.True(t, ok)
	assert.Equal(t, "x_B_d1_p0_math_t1_r2", bm.Model.Name(v))

	byID, ok := ix.LookupIDs("B", 1, 0, "math", "t1", "r2")
	require.True(t, ok)
	assert.Equal(t, v, byID)

	_, ok = ix.Lookup(0, 0, 0, 0, 0, 5)
	assert.False(t, ok)

	_, ok = ix.LookupIDs("Z", 0, 0, "math", "t1", "r1")
	assert.False(t, ok)
}

func TestBuildModelCurriculumFiltersUniverse(t *testing.T) {
	p := mustNormalize(t, RawConfig{
		Classes: []string{"A", "B"},
		Subjects: map[string]Subject{
			"art":  {HoursPerWeek: 1, RoomType: "standard"},
			"math": {HoursPerWeek: 1, RoomType: "standard"},
		},
		Teachers:      map[string]Teacher{"t1": {CanTeach: []string{"art", "math"}}},
		Rooms:         []string{"r1"},
		ClassSubjects: map[string][]string{"A": {"math"}, "B": {"art"}},
		Days:          1,
		PeriodsPerDay: 1,
	})
	bm, err := BuildModel(p, nil)
	require.NoError(t, err)

	for _, tv := range bm.Index.Tuples() {
		class := bm.Index.Classes[tv.Class]
		subject := bm.Index.Subjects[tv.Subject]
		assert.True(t, p.InCurriculum(class, subject))
	}
	assert.Len(t, bm.Index.Tuples(), 2)
}
