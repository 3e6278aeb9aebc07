package analytics

import (
	"math"
	"strings"
	"time"

	"github.com/starkhealth/backend/internal/healthdata"
)

const (
	// metrics older than this never enter the health score
	healthScoreWindow = 48 * time.Hour
	// at least this many of the gating factors must be present
	healthScoreMinFactors = 2

	weightRecovery = 25.0
	weightSleep    = 20.0
	weightHRV      = 20.0
	weightBody     = 15.0
	weightTraining = 20.0

	// training score contribution when no workout history exists
	defaultTrainingScore = 50.0

	trainingFrequencyTarget = 5.0
	trainingLiftBonus       = 12.5
	// frequency is averaged over this many trailing weeks
	trainingFrequencyWeeks = 4
)

// trackedLifts are the major lifts whose progression feeds the training
// score. Matched as substrings of the logged exercise name.
var trackedLifts = []string{"bench press", "squat", "deadlift", "overhead press"}

type HealthScore struct {
	Score int `json:"score"`
	// true when fewer than 2 gating factors had data within 48h; Score
	// is meaningless then and must not be rendered as a number
	Insufficient bool `json:"insufficient"`
	// which gating factors contributed
	Factors []string `json:"factors"`
}

// ComputeHealthScore blends recovery, sleep, HRV, body composition and
// training consistency into one 0-100 score. Only metrics observed
// within the last 48 hours count; with fewer than 2 of the 4 gating
// factors present the result is flagged insufficient instead of being
// derived from a single data point. Weights redistribute proportionally
// across the present factors.
func ComputeHealthScore(
	days []healthdata.DayRecord,
	workouts []healthdata.WorkoutRecord,
	now time.Time,
) HealthScore {
	cutoff := now.Add(-healthScoreWindow)
	recent := recentDays(days, cutoff)

	type factor struct {
		name   string
		value  float64
		weight float64
	}
	var factors []factor

	if v, _, ok := Latest(recent, MetricRecovery); ok {
		factors = append(factors, factor{"recovery", v, weightRecovery})
	}
	if v, _, ok := Latest(recent, MetricSleepScore); ok {
		factors = append(factors, factor{"sleep", v, weightSleep})
	}
	if v, _, ok := Latest(recent, MetricHRV); ok {
		factors = append(factors, factor{"hrv", normalizeHRV(v), weightHRV})
	}
	if v, _, ok := Latest(recent, MetricBodyFat); ok {
		factors = append(factors, factor{"body", normalizeBodyFat(v), weightBody})
	}

	if len(factors) < healthScoreMinFactors {
		return HealthScore{Insufficient: true}
	}

	// training always contributes, defaulting when no history exists
	trainingScore := defaultTrainingScore
	if len(workouts) > 0 {
		trainingScore = float64(ComputeTrainingScore(workouts, now))
	}
	factors = append(factors, factor{"training", trainingScore, weightTraining})

	var weightedSum, weightSum float64
	names := make([]string, 0, len(factors))
	for _, f := range factors {
		weightedSum += f.value * f.weight
		weightSum += f.weight
		names = append(names, f.name)
	}

	return HealthScore{
		Score:   int(math.Round(weightedSum / weightSum)),
		Factors: names,
	}
}

// normalizeHRV maps the typical adult HRV range (20-100ms) onto 0-100.
func normalizeHRV(hrv float64) float64 {
	return clamp((hrv-20)/80*100, 0, 100)
}

// normalizeBodyFat maps body fat % onto a 50-100 band centered so that
// 36% scores 75.
func normalizeBodyFat(bodyFat float64) float64 {
	return clamp(75+(36-bodyFat)*2, 50, 100)
}

// ComputeTrainingScore scores workout consistency: up to 50 points for
// average weekly frequency (5 sessions/week maxes it out) plus 12.5 per
// tracked lift whose latest top working-set weight beats its earliest
// recorded one. Capped at 100.
func ComputeTrainingScore(workouts []healthdata.WorkoutRecord, now time.Time) int {
	if len(workouts) == 0 {
		return 0
	}

	frequency := avgWeeklyFrequency(workouts, now)
	score := math.Min(frequency/trainingFrequencyTarget, 1) * 50

	for _, lift := range trackedLifts {
		earliest, latest, ok := liftProgression(workouts, lift)
		if ok && latest > earliest {
			score += trainingLiftBonus
		}
	}

	return int(math.Round(math.Min(score, 100)))
}

// avgWeeklyFrequency counts workouts in the trailing 4 weeks divided by
// 4, so one heavy week does not dominate.
func avgWeeklyFrequency(workouts []healthdata.WorkoutRecord, now time.Time) float64 {
	cutoff := now.AddDate(0, 0, -trainingFrequencyWeeks*7).Format("2006-01-02")
	count := 0
	for _, w := range workouts {
		if w.Date >= cutoff {
			count++
		}
	}
	return float64(count) / trainingFrequencyWeeks
}

// liftProgression returns the earliest and latest top working-set weight
// for a tracked lift. Warmup sets never count as a top set.
func liftProgression(workouts []healthdata.WorkoutRecord, lift string) (earliest, latest float64, ok bool) {
	// workouts are sorted ascending by date
	for _, w := range workouts {
		top, found := topWorkingSet(w, lift)
		if !found {
			continue
		}
		if !ok {
			earliest = top
			ok = true
		}
		latest = top
	}
	return earliest, latest, ok
}

func topWorkingSet(w healthdata.WorkoutRecord, lift string) (float64, bool) {
	var top float64
	found := false
	for _, exercise := range w.Exercises {
		if !strings.Contains(strings.ToLower(exercise.Name), lift) {
			continue
		}
		for _, set := range exercise.Sets {
			if set.Type == healthdata.SetWarmup {
				continue
			}
			if set.WeightKg > top {
				top = set.WeightKg
			}
			found = true
		}
	}
	return top, found
}

// recentDays filters to days dated after the cutoff.
func recentDays(days []healthdata.DayRecord, cutoff time.Time) []healthdata.DayRecord {
	cutoffDate := cutoff.Format("2006-01-02")
	var recent []healthdata.DayRecord
	for _, day := range days {
		if day.Date >= cutoffDate {
			recent = append(recent, day)
		}
	}
	return recent
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
