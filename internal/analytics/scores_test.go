package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/starkhealth/backend/internal/healthdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func isoDaysAgo(daysAgo int) string {
	return testNow.AddDate(0, 0, -daysAgo).Format("2006-01-02")
}

func TestComputeHealthScore_InsufficientWithOneFactor(t *testing.T) {
	days := []healthdata.DayRecord{
		dayWith(isoDaysAgo(0), func(d *healthdata.DayRecord) { d.Recovery = healthdata.IntPtr(80) }),
	}

	score := ComputeHealthScore(days, nil, testNow)
	assert.True(t, score.Insufficient)
}

func TestComputeHealthScore_StaleMetricsExcluded(t *testing.T) {
	// both factors present but dated outside the 48h window
	days := []healthdata.DayRecord{
		dayWith(isoDaysAgo(5), func(d *healthdata.DayRecord) {
			d.Recovery = healthdata.IntPtr(80)
			d.SleepScore = healthdata.IntPtr(90)
		}),
	}

	score := ComputeHealthScore(days, nil, testNow)
	assert.True(t, score.Insufficient)
}

func TestComputeHealthScore_WeightsRedistribute(t *testing.T) {
	days := []healthdata.DayRecord{
		dayWith(isoDaysAgo(0), func(d *healthdata.DayRecord) {
			d.Recovery = healthdata.IntPtr(80)
			d.SleepScore = healthdata.IntPtr(90)
		}),
	}

	score := ComputeHealthScore(days, nil, testNow)
	require.False(t, score.Insufficient)
	assert.ElementsMatch(t, []string{"recovery", "sleep", "training"}, score.Factors)

	// recovery 80 w25, sleep 90 w20, training default 50 w20:
	// (80*25 + 90*20 + 50*20) / 65 = 73.8...
	assert.Equal(t, 74, score.Score)
}

func TestComputeHealthScore_AllFactors(t *testing.T) {
	days := []healthdata.DayRecord{
		dayWith(isoDaysAgo(0), func(d *healthdata.DayRecord) {
			d.Recovery = healthdata.IntPtr(80)
			d.SleepScore = healthdata.IntPtr(90)
			d.HRV = healthdata.Float64Ptr(60) // normalizes to 50
			d.BodyFat = healthdata.Float64Ptr(20)
		}),
	}

	score := ComputeHealthScore(days, nil, testNow)
	require.False(t, score.Insufficient)
	require.Len(t, score.Factors, 5)

	// (80*25 + 90*20 + 50*20 + 100*15 + 50*20) / 100 = 73
	assert.Equal(t, 73, score.Score)
}

func TestNormalizeHRV(t *testing.T) {
	assert.Equal(t, 0.0, normalizeHRV(10))
	assert.Equal(t, 50.0, normalizeHRV(60))
	assert.Equal(t, 100.0, normalizeHRV(150))
}

func TestNormalizeBodyFat(t *testing.T) {
	// 36% sits at the 75 midpoint, leaner clamps at 100, higher at 50
	assert.Equal(t, 75.0, normalizeBodyFat(36))
	assert.Equal(t, 100.0, normalizeBodyFat(10))
	assert.Equal(t, 50.0, normalizeBodyFat(55))
}

func benchWorkout(date string, topWeight float64) healthdata.WorkoutRecord {
	return healthdata.WorkoutRecord{
		ID:   fmt.Sprintf("w-%s", date),
		Date: date,
		Exercises: []healthdata.Exercise{{
			Name:        "Bench Press (Barbell)",
			MuscleGroup: healthdata.MuscleChest,
			Sets: []healthdata.ExerciseSet{
				{WeightKg: topWeight * 2, Reps: 5, Type: healthdata.SetWarmup},
				{WeightKg: topWeight, Reps: 5, Type: healthdata.SetNormal},
			},
		}},
	}
}

func TestComputeTrainingScore(t *testing.T) {
	// 8 workouts in 4 weeks = 2/week -> 2/5*50 = 20 frequency points;
	// bench progressed 80 -> 90 -> +12.5, rounds to 33
	var workouts []healthdata.WorkoutRecord
	for i := 0; i < 8; i++ {
		topWeight := 80.0
		if i >= 4 {
			topWeight = 90
		}
		workouts = append(workouts, benchWorkout(isoDaysAgo(26-i*3), topWeight))
	}

	assert.Equal(t, 33, ComputeTrainingScore(workouts, testNow))
}

func TestComputeTrainingScore_WarmupNeverTopSet(t *testing.T) {
	// warmup weights are double the working weight; without excluding
	// them the lift would look like it regressed
	workouts := []healthdata.WorkoutRecord{
		benchWorkout(isoDaysAgo(20), 80),
		benchWorkout(isoDaysAgo(2), 85),
	}

	score := ComputeTrainingScore(workouts, testNow)
	// 2 workouts / 4 weeks = 0.5/week -> 5 points, +12.5 progression
	assert.Equal(t, 18, score)
}

func TestComputeTrainingScore_NoWorkouts(t *testing.T) {
	assert.Equal(t, 0, ComputeTrainingScore(nil, testNow))
}

func TestComputeTrainingScore_Cap(t *testing.T) {
	// 5+/week frequency and all four lifts progressing caps at 100
	var workouts []healthdata.WorkoutRecord
	lifts := []string{"Bench Press", "Squat (Barbell)", "Deadlift", "Overhead Press"}
	for week := 0; week < 4; week++ {
		for day := 0; day < 6; day++ {
			date := isoDaysAgo(27 - week*7 - day)
			weight := 80.0 + float64(week)*5
			exercises := make([]healthdata.Exercise, 0, len(lifts))
			for _, lift := range lifts {
				exercises = append(exercises, healthdata.Exercise{
					Name:        lift,
					MuscleGroup: healthdata.MuscleChest,
					Sets: []healthdata.ExerciseSet{
						{WeightKg: weight, Reps: 5, Type: healthdata.SetNormal},
					},
				})
			}
			workouts = append(workouts, healthdata.WorkoutRecord{
				ID: date + "-w", Date: date, Exercises: exercises,
			})
		}
	}

	assert.Equal(t, 100, ComputeTrainingScore(workouts, testNow))
}
