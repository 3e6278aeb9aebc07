package analytics

import (
	"math"
	"time"

	"github.com/starkhealth/backend/internal/healthdata"
)

// fatigue accumulates over this many most recent workouts
const fatigueWorkoutWindow = 8

const (
	secondarySetCredit    = 0.5
	secondaryVolumeCredit = 0.4

	// volume component of the fatigue score caps out at 40
	maxSetComponent = 40.0
)

type MuscleLoad struct {
	Muscle     healthdata.MuscleGroup `json:"muscle"`
	Sets       float64                `json:"sets"`
	Volume     float64                `json:"volume"`
	LastWorked string                 `json:"lastWorked"`
	Fatigue    int                    `json:"fatigue"`
}

// ComputeMuscleFatigue estimates per-muscle-group fatigue 0-100 from
// the most recent 8 workouts. Primary muscles get full credit, each
// secondary muscle half set credit and 0.4x volume credit; warmup sets
// count for neither. The score blends how recently the muscle was
// worked with how many sets hit it.
func ComputeMuscleFatigue(workouts []healthdata.WorkoutRecord, now time.Time) []MuscleLoad {
	recent := lastN(workouts, fatigueWorkoutWindow)

	type accumulator struct {
		sets       float64
		volume     float64
		lastWorked string
	}
	acc := map[healthdata.MuscleGroup]*accumulator{}
	accFor := func(muscle healthdata.MuscleGroup) *accumulator {
		if a, ok := acc[muscle]; ok {
			return a
		}
		a := &accumulator{}
		acc[muscle] = a
		return a
	}

	for _, w := range recent {
		for _, exercise := range w.Exercises {
			var sets float64
			var volume float64
			for _, set := range exercise.Sets {
				if set.Type == healthdata.SetWarmup {
					continue
				}
				sets++
				volume += set.WeightKg * float64(set.Reps)
			}
			if sets == 0 {
				continue
			}

			primary := accFor(exercise.MuscleGroup)
			primary.sets += sets
			primary.volume += volume
			if w.Date > primary.lastWorked {
				primary.lastWorked = w.Date
			}

			for _, muscle := range exercise.SecondaryMuscles {
				secondary := accFor(muscle)
				secondary.sets += sets * secondarySetCredit
				secondary.volume += volume * secondaryVolumeCredit
				if w.Date > secondary.lastWorked {
					secondary.lastWorked = w.Date
				}
			}
		}
	}

	loads := make([]MuscleLoad, 0, len(healthdata.MuscleGroups))
	for _, muscle := range healthdata.MuscleGroups {
		a, ok := acc[muscle]
		if !ok {
			loads = append(loads, MuscleLoad{Muscle: muscle})
			continue
		}
		loads = append(loads, MuscleLoad{
			Muscle:     muscle,
			Sets:       a.sets,
			Volume:     math.Round(a.volume),
			LastWorked: a.lastWorked,
			Fatigue:    fatigueScore(a.sets, a.lastWorked, now),
		})
	}
	return loads
}

func fatigueScore(sets float64, lastWorked string, now time.Time) int {
	daysAgo := daysSince(lastWorked, now)
	if daysAgo >= 5 {
		// fully rested, accumulated volume no longer counts as fatigue
		return 0
	}
	recency := recencyComponent(daysAgo)
	setComponent := math.Min(sets*3, maxSetComponent)
	return int(math.Min(recency+setComponent, 100))
}

// recencyComponent steps down from 90 (worked today) to 0 (5+ days ago).
func recencyComponent(daysAgo int) float64 {
	steps := []float64{90, 70, 50, 30, 10}
	if daysAgo < 0 {
		daysAgo = 0
	}
	if daysAgo >= len(steps) {
		return 0
	}
	return steps[daysAgo]
}

func daysSince(date string, now time.Time) int {
	workedAt, err := time.Parse("2006-01-02", date)
	if err != nil {
		return math.MaxInt
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(midnight.Sub(workedAt).Hours() / 24)
}
