package analytics

import (
	"fmt"
	"testing"

	"github.com/starkhealth/backend/internal/healthdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFor(t *testing.T, loads []MuscleLoad, muscle healthdata.MuscleGroup) MuscleLoad {
	t.Helper()
	for _, load := range loads {
		if load.Muscle == muscle {
			return load
		}
	}
	t.Fatalf("muscle %s not in loads", muscle)
	return MuscleLoad{}
}

func chestWorkout(date string, sets int) healthdata.WorkoutRecord {
	exerciseSets := make([]healthdata.ExerciseSet, 0, sets)
	for i := 0; i < sets; i++ {
		exerciseSets = append(exerciseSets, healthdata.ExerciseSet{
			WeightKg: 100, Reps: 10, Type: healthdata.SetNormal,
		})
	}
	return healthdata.WorkoutRecord{
		ID:   fmt.Sprintf("w-%s", date),
		Date: date,
		Exercises: []healthdata.Exercise{{
			Name:             "Bench Press",
			MuscleGroup:      healthdata.MuscleChest,
			SecondaryMuscles: []healthdata.MuscleGroup{healthdata.MuscleTriceps},
			Sets:             exerciseSets,
		}},
	}
}

func TestComputeMuscleFatigue_DecaySteps(t *testing.T) {
	// 10 sets today: min(90 + min(10*3, 40), 100) = 100
	loads := ComputeMuscleFatigue(
		[]healthdata.WorkoutRecord{chestWorkout(isoDaysAgo(0), 10)}, testNow,
	)
	assert.Equal(t, 100, loadFor(t, loads, healthdata.MuscleChest).Fatigue)

	// untouched for 6 days scores 0 outright, the accumulated sets no
	// longer count as fatigue once the muscle is fully rested
	loads = ComputeMuscleFatigue(
		[]healthdata.WorkoutRecord{chestWorkout(isoDaysAgo(6), 10)}, testNow,
	)
	assert.Equal(t, 0, loadFor(t, loads, healthdata.MuscleChest).Fatigue)

	// 2 days ago with 2 sets: 50 + 6 = 56
	loads = ComputeMuscleFatigue(
		[]healthdata.WorkoutRecord{chestWorkout(isoDaysAgo(2), 2)}, testNow,
	)
	assert.Equal(t, 56, loadFor(t, loads, healthdata.MuscleChest).Fatigue)
}

func TestComputeMuscleFatigue_SecondaryCredit(t *testing.T) {
	loads := ComputeMuscleFatigue(
		[]healthdata.WorkoutRecord{chestWorkout(isoDaysAgo(0), 4)}, testNow,
	)

	chest := loadFor(t, loads, healthdata.MuscleChest)
	assert.Equal(t, 4.0, chest.Sets)
	assert.Equal(t, 4000.0, chest.Volume)

	// secondary muscle gets half set credit and 0.4x volume credit
	triceps := loadFor(t, loads, healthdata.MuscleTriceps)
	assert.Equal(t, 2.0, triceps.Sets)
	assert.Equal(t, 1600.0, triceps.Volume)
	assert.Equal(t, isoDaysAgo(0), triceps.LastWorked)
}

func TestComputeMuscleFatigue_WarmupsExcluded(t *testing.T) {
	workout := healthdata.WorkoutRecord{
		ID: "w1", Date: isoDaysAgo(0),
		Exercises: []healthdata.Exercise{{
			Name:        "Bench Press",
			MuscleGroup: healthdata.MuscleChest,
			Sets: []healthdata.ExerciseSet{
				{WeightKg: 50, Reps: 10, Type: healthdata.SetWarmup},
				{WeightKg: 100, Reps: 10, Type: healthdata.SetNormal},
			},
		}},
	}

	chest := loadFor(t, ComputeMuscleFatigue([]healthdata.WorkoutRecord{workout}, testNow), healthdata.MuscleChest)
	assert.Equal(t, 1.0, chest.Sets)
	assert.Equal(t, 1000.0, chest.Volume)
}

func TestComputeMuscleFatigue_WindowIsEightWorkouts(t *testing.T) {
	// nine chest workouts, the oldest must not contribute
	var workouts []healthdata.WorkoutRecord
	for i := 9; i >= 1; i-- {
		workouts = append(workouts, chestWorkout(isoDaysAgo(i), 1))
	}

	chest := loadFor(t, ComputeMuscleFatigue(workouts, testNow), healthdata.MuscleChest)
	assert.Equal(t, 8.0, chest.Sets)
}

func TestComputeMuscleFatigue_AllGroupsAlwaysPresent(t *testing.T) {
	loads := ComputeMuscleFatigue(nil, testNow)
	require.Len(t, loads, len(healthdata.MuscleGroups))
	for _, load := range loads {
		assert.Zero(t, load.Fatigue)
		assert.Zero(t, load.Sets)
	}
}
