package healthdata

// MuscleGroup is the canonical body-map taxonomy. Provider-native muscle
// names get mapped onto it by the workout adapter.
type MuscleGroup string

const (
	MuscleChest      MuscleGroup = "chest"
	MuscleBack       MuscleGroup = "back"
	MuscleShoulders  MuscleGroup = "shoulders"
	MuscleBiceps     MuscleGroup = "biceps"
	MuscleTriceps    MuscleGroup = "triceps"
	MuscleForearms   MuscleGroup = "forearms"
	MuscleCore       MuscleGroup = "core"
	MuscleQuads      MuscleGroup = "quads"
	MuscleHamstrings MuscleGroup = "hamstrings"
	MuscleGlutes     MuscleGroup = "glutes"
	MuscleCalves     MuscleGroup = "calves"
	MuscleTraps      MuscleGroup = "traps"
)

// MuscleGroups lists all canonical groups in body-map order.
var MuscleGroups = []MuscleGroup{
	MuscleChest, MuscleBack, MuscleShoulders, MuscleBiceps,
	MuscleTriceps, MuscleForearms, MuscleCore, MuscleQuads,
	MuscleHamstrings, MuscleGlutes, MuscleCalves, MuscleTraps,
}

type SetType string

const (
	SetNormal  SetType = "normal"
	SetWarmup  SetType = "warmup"
	SetDropset SetType = "dropset"
)

type ExerciseSet struct {
	WeightKg float64  `json:"weight_kg"`
	Reps     int      `json:"reps"`
	RPE      *float64 `json:"rpe"`
	Type     SetType  `json:"type"`
}

type Exercise struct {
	Name             string        `json:"name"`
	MuscleGroup      MuscleGroup   `json:"muscle_group"`
	SecondaryMuscles []MuscleGroup `json:"secondary_muscles"`
	Sets             []ExerciseSet `json:"sets"`
}

// WorkoutRecord is one logged workout, fetched in full from the workout
// provider and cached keyed by (user, workout id).
type WorkoutRecord struct {
	ID          string     `json:"id"`
	Date        string     `json:"date"`
	Title       string     `json:"title"`
	DurationMin int        `json:"duration_min"`
	Exercises   []Exercise `json:"exercises"`
}

// Volume sums weight*reps over all exercises, warmup sets excluded.
func (w *WorkoutRecord) Volume() float64 {
	var volume float64
	for _, exercise := range w.Exercises {
		for _, set := range exercise.Sets {
			if set.Type == SetWarmup {
				continue
			}
			volume += set.WeightKg * float64(set.Reps)
		}
	}
	return volume
}
