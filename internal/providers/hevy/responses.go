package hevy

type apiSet struct {
	WeightKg float64  `json:"weight_kg"`
	Reps     int      `json:"reps"`
	RPE      *float64 `json:"rpe"`
	Type     string   `json:"type"`
}

type apiExercise struct {
	Title              string   `json:"title"`
	ExerciseTemplateID string   `json:"exercise_template_id"`
	Sets               []apiSet `json:"sets"`
}

type apiWorkout struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	StartTime string        `json:"start_time"`
	EndTime   string        `json:"end_time"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
	Exercises []apiExercise `json:"exercises"`
}

type workoutsResponse struct {
	Workouts  []apiWorkout `json:"workouts"`
	PageCount int          `json:"page_count"`
}

type apiExerciseTemplate struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	PrimaryMuscleGroup    string   `json:"primary_muscle_group"`
	SecondaryMuscleGroups []string `json:"secondary_muscle_groups"`
}

type templatesResponse struct {
	ExerciseTemplates []apiExerciseTemplate `json:"exercise_templates"`
	PageCount         int                   `json:"page_count"`
}
