// Package analytics derives scores, trends and insights from the cached
// health data. Everything here is a pure function of its inputs, nothing
// is persisted.
package analytics

import (
	"math"

	"github.com/starkhealth/backend/internal/healthdata"
)

type Metric string

const (
	MetricRecovery   Metric = "recovery"
	MetricHRV        Metric = "hrv"
	MetricRHR        Metric = "rhr"
	MetricStrain     Metric = "strain"
	MetricCalories   Metric = "calories"
	MetricSleepHours Metric = "sleepHours"
	MetricSleepScore Metric = "sleepScore"
	MetricDeepSleep  Metric = "deepSleep"
	MetricREMSleep   Metric = "remSleep"
	MetricLightSleep Metric = "lightSleep"
	MetricAwake      Metric = "awake"
	MetricWeight     Metric = "weight"
	MetricBodyFat    Metric = "bodyFat"
	MetricMuscleMass Metric = "muscleMass"
	MetricSteps      Metric = "steps"
)

// lowerIsBetter marks metrics where a negative delta is the good
// direction. Everything else is higher-is-better.
var lowerIsBetter = map[Metric]bool{
	MetricRHR:     true,
	MetricBodyFat: true,
	MetricWeight:  true,
	MetricAwake:   true,
}

// MetricValue reads one metric off a day record, nil when absent.
func MetricValue(day healthdata.DayRecord, metric Metric) *float64 {
	fromInt := func(v *int) *float64 {
		if v == nil {
			return nil
		}
		f := float64(*v)
		return &f
	}

	switch metric {
	case MetricRecovery:
		return fromInt(day.Recovery)
	case MetricHRV:
		return day.HRV
	case MetricRHR:
		return fromInt(day.RHR)
	case MetricStrain:
		return day.Strain
	case MetricCalories:
		return fromInt(day.Calories)
	case MetricSleepHours:
		return day.SleepHours
	case MetricSleepScore:
		return fromInt(day.SleepScore)
	case MetricDeepSleep:
		return day.DeepSleep
	case MetricREMSleep:
		return day.REMSleep
	case MetricLightSleep:
		return day.LightSleep
	case MetricAwake:
		return day.Awake
	case MetricWeight:
		return day.Weight
	case MetricBodyFat:
		return day.BodyFat
	case MetricMuscleMass:
		return day.MuscleMass
	case MetricSteps:
		return fromInt(day.Steps)
	}
	return nil
}

// Latest returns the most recent non-null value of a metric, scanning
// backward from the end of the (date sorted) day list, with the date it
// was observed on. The last record's field may well be null, e.g. a
// scale metric on a day the user only wore the wearable.
func Latest(days []healthdata.DayRecord, metric Metric) (value float64, date string, ok bool) {
	for i := len(days) - 1; i >= 0; i-- {
		if v := MetricValue(days[i], metric); v != nil {
			return *v, days[i].Date, true
		}
	}
	return 0, "", false
}

// Delta returns the difference between the two most recent non-null
// values of a metric.
func Delta(days []healthdata.DayRecord, metric Metric) (float64, bool) {
	var values []float64
	for i := len(days) - 1; i >= 0 && len(values) < 2; i-- {
		if v := MetricValue(days[i], metric); v != nil {
			values = append(values, *v)
		}
	}
	if len(values) < 2 {
		return 0, false
	}
	return values[0] - values[1], true
}

// PositiveChange says whether a delta moves the metric in the good
// direction.
func PositiveChange(metric Metric, delta float64) bool {
	if lowerIsBetter[metric] {
		return delta < 0
	}
	return delta > 0
}

// Sparkline returns up to maxPoints most recent non-null values of a
// metric, in chronological order.
func Sparkline(days []healthdata.DayRecord, metric Metric, maxPoints int) []float64 {
	var points []float64
	for i := len(days) - 1; i >= 0 && len(points) < maxPoints; i-- {
		if v := MetricValue(days[i], metric); v != nil {
			points = append(points, *v)
		}
	}
	// collected backward, flip to chronological
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points
}

// average over the non-null values of a metric; nulls are excluded from
// both the sum and the divisor.
func average(days []healthdata.DayRecord, metric Metric) (float64, bool) {
	var sum float64
	var count int
	for _, day := range days {
		if v := MetricValue(day, metric); v != nil {
			sum += *v
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
