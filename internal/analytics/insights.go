package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/starkhealth/backend/internal/healthdata"
)

const maxInsights = 5

type InsightKind string

const (
	InsightPositive InsightKind = "positive"
	InsightWarning  InsightKind = "warning"
	InsightInfo     InsightKind = "info"
)

type Insight struct {
	Kind InsightKind `json:"kind"`
	Text string      `json:"text"`
}

// ComputeInsights runs a small rule set over the trailing data and
// produces at most 5 textual observations. With no qualifying data it
// falls back to onboarding hints instead of an empty list.
func ComputeInsights(
	days []healthdata.DayRecord,
	workouts []healthdata.WorkoutRecord,
	now time.Time,
) []Insight {
	var insights []Insight
	add := func(kind InsightKind, text string) {
		if len(insights) < maxInsights {
			insights = append(insights, Insight{Kind: kind, Text: text})
		}
	}

	if insight, ok := hrvTrendInsight(days); ok {
		add(insight.Kind, insight.Text)
	}
	if insight, ok := recoveryVsAverageInsight(days); ok {
		add(insight.Kind, insight.Text)
	}
	if insight, ok := sleepRecoveryInsight(days); ok {
		add(insight.Kind, insight.Text)
	}
	if insight, ok := bodyTrendInsight(days); ok {
		add(insight.Kind, insight.Text)
	}
	if insight, ok := trainingFrequencyInsight(workouts, now); ok {
		add(insight.Kind, insight.Text)
	}

	if len(insights) == 0 {
		return onboardingInsights(days, workouts)
	}
	return insights
}

// hrvTrendInsight compares the trailing 7-day HRV average against the
// prior 7 days.
func hrvTrendInsight(days []healthdata.DayRecord) (Insight, bool) {
	if len(days) < 8 {
		return Insight{}, false
	}
	recent, recentOK := average(lastN(days, 7), MetricHRV)
	prior, priorOK := average(lastN(days[:len(days)-7], 7), MetricHRV)
	if !recentOK || !priorOK || prior == 0 {
		return Insight{}, false
	}

	change := (recent - prior) / prior * 100
	switch {
	case change > 5:
		return Insight{
			Kind: InsightPositive,
			Text: fmt.Sprintf(
				"Your HRV is trending up: %.1fms this week vs %.1fms last week (+%.0f%%). Recovery capacity is improving.",
				recent, prior, change,
			),
		}, true
	case change < -10:
		return Insight{
			Kind: InsightWarning,
			Text: fmt.Sprintf(
				"Your HRV dropped %.0f%% vs last week (%.1fms vs %.1fms). Consider an easier training day and earlier bedtime.",
				-change, recent, prior,
			),
		}, true
	}
	return Insight{}, false
}

// recoveryVsAverageInsight compares today's recovery with the 7-day
// average.
func recoveryVsAverageInsight(days []healthdata.DayRecord) (Insight, bool) {
	if len(days) == 0 {
		return Insight{}, false
	}
	today := MetricValue(days[len(days)-1], MetricRecovery)
	if today == nil {
		return Insight{}, false
	}
	avg, ok := average(lastN(days, 7), MetricRecovery)
	if !ok {
		return Insight{}, false
	}

	diff := *today - avg
	switch {
	case diff >= 10:
		return Insight{
			Kind: InsightPositive,
			Text: fmt.Sprintf(
				"Today's recovery (%.0f%%) is well above your weekly average (%.0f%%). Good day to push training intensity.",
				*today, avg,
			),
		}, true
	case diff <= -15:
		return Insight{
			Kind: InsightWarning,
			Text: fmt.Sprintf(
				"Today's recovery (%.0f%%) is far below your weekly average (%.0f%%). Prioritize rest today.",
				*today, avg,
			),
		}, true
	}
	return Insight{}, false
}

// sleepRecoveryInsight splits recovery by sleep duration: nights of at
// least 7.5h vs nights of at most 6.5h, both on the same day record
// (the wearable attributes recovery to the night that produced it).
func sleepRecoveryInsight(days []healthdata.DayRecord) (Insight, bool) {
	const goodSleepHours, poorSleepHours = 7.5, 6.5

	var goodSum, poorSum float64
	var goodCount, poorCount int
	for _, day := range days {
		sleep := MetricValue(day, MetricSleepHours)
		recovery := MetricValue(day, MetricRecovery)
		if sleep == nil || recovery == nil {
			continue
		}
		switch {
		case *sleep >= goodSleepHours:
			goodSum += *recovery
			goodCount++
		case *sleep <= poorSleepHours:
			poorSum += *recovery
			poorCount++
		}
	}
	if goodCount < 2 || poorCount < 2 {
		return Insight{}, false
	}

	goodAvg := goodSum / float64(goodCount)
	poorAvg := poorSum / float64(poorCount)
	if goodAvg-poorAvg < 5 {
		return Insight{}, false
	}

	return Insight{
		Kind: InsightInfo,
		Text: fmt.Sprintf(
			"Sleeping 7.5h+ lifts your recovery to %.0f%% on average, vs %.0f%% after short nights. Sleep is your biggest lever.",
			goodAvg, poorAvg,
		),
	}, true
}

// bodyTrendInsight looks at the 14-day body fat and muscle mass
// movement.
func bodyTrendInsight(days []healthdata.DayRecord) (Insight, bool) {
	window := lastN(days, 14)

	first14 := firstNonNull(window, MetricBodyFat)
	last14, _, lastOK := Latest(window, MetricBodyFat)
	if first14 != nil && lastOK {
		change := last14 - *first14
		if change <= -0.5 {
			return Insight{
				Kind: InsightPositive,
				Text: fmt.Sprintf(
					"Body fat is down %.1f%% over the last two weeks (%.1f%% now). The plan is working.",
					-change, last14,
				),
			}, true
		}
	}

	firstMuscle := firstNonNull(window, MetricMuscleMass)
	lastMuscle, _, muscleOK := Latest(window, MetricMuscleMass)
	if firstMuscle != nil && muscleOK {
		change := lastMuscle - *firstMuscle
		if change >= 0.3 {
			return Insight{
				Kind: InsightPositive,
				Text: fmt.Sprintf(
					"Muscle mass is up %.1fkg over the last two weeks (%.1fkg now).",
					change, lastMuscle,
				),
			}, true
		}
	}

	return Insight{}, false
}

// trainingFrequencyInsight bands the average weekly workout frequency.
func trainingFrequencyInsight(workouts []healthdata.WorkoutRecord, now time.Time) (Insight, bool) {
	if len(workouts) == 0 {
		return Insight{}, false
	}

	frequency := avgWeeklyFrequency(workouts, now)
	rounded := math.Round(frequency*10) / 10
	switch {
	case frequency >= 4:
		return Insight{
			Kind: InsightPositive,
			Text: fmt.Sprintf("Averaging %.1f workouts per week. Excellent consistency.", rounded),
		}, true
	case frequency >= 2:
		return Insight{
			Kind: InsightInfo,
			Text: fmt.Sprintf("Averaging %.1f workouts per week. One more session would accelerate progress.", rounded),
		}, true
	case frequency < 1:
		return Insight{
			Kind: InsightWarning,
			Text: "Training frequency dropped below once a week. Even a short session keeps momentum.",
		}, true
	}
	return Insight{}, false
}

func firstNonNull(days []healthdata.DayRecord, metric Metric) *float64 {
	for _, day := range days {
		if v := MetricValue(day, metric); v != nil {
			return v
		}
	}
	return nil
}

// onboardingInsights are the fallback hints for users whose data has
// not built up enough history yet.
func onboardingInsights(days []healthdata.DayRecord, workouts []healthdata.WorkoutRecord) []Insight {
	var insights []Insight
	if len(days) == 0 {
		insights = append(insights, Insight{
			Kind: InsightInfo,
			Text: "Connect your wearable and scale to start seeing recovery and body composition trends here.",
		})
	} else {
		insights = append(insights, Insight{
			Kind: InsightInfo,
			Text: "Keep syncing — trend insights appear once about two weeks of data build up.",
		})
	}
	if len(workouts) == 0 {
		insights = append(insights, Insight{
			Kind: InsightInfo,
			Text: "Connect your workout log to track training consistency and muscle fatigue.",
		})
	}
	return insights
}
