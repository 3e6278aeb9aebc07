package analytics

import (
	"strings"
	"testing"

	"github.com/starkhealth/backend/internal/healthdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hrvDays(priorWeek, recentWeek float64) []healthdata.DayRecord {
	var days []healthdata.DayRecord
	for i := 13; i >= 7; i-- {
		days = append(days, dayWith(isoDaysAgo(i), func(d *healthdata.DayRecord) {
			d.HRV = healthdata.Float64Ptr(priorWeek)
		}))
	}
	for i := 6; i >= 0; i-- {
		days = append(days, dayWith(isoDaysAgo(i), func(d *healthdata.DayRecord) {
			d.HRV = healthdata.Float64Ptr(recentWeek)
		}))
	}
	return days
}

func kinds(insights []Insight) []InsightKind {
	out := make([]InsightKind, 0, len(insights))
	for _, insight := range insights {
		out = append(out, insight.Kind)
	}
	return out
}

func TestComputeInsights_HRVImprovement(t *testing.T) {
	// +10% week over week crosses the +5% bar
	insights := ComputeInsights(hrvDays(50, 55), nil, testNow)
	require.NotEmpty(t, insights)
	assert.Equal(t, InsightPositive, insights[0].Kind)
	assert.Contains(t, insights[0].Text, "HRV is trending up")
}

func TestComputeInsights_HRVDecline(t *testing.T) {
	// -12% decline crosses the -10% bar
	insights := ComputeInsights(hrvDays(50, 44), nil, testNow)
	require.NotEmpty(t, insights)
	assert.Equal(t, InsightWarning, insights[0].Kind)
	assert.Contains(t, insights[0].Text, "HRV dropped")
}

func TestComputeInsights_SmallHRVChangeSilent(t *testing.T) {
	insights := ComputeInsights(hrvDays(50, 51), nil, testNow)
	for _, insight := range insights {
		assert.NotContains(t, insight.Text, "HRV")
	}
}

func TestComputeInsights_RecoveryVsAverage(t *testing.T) {
	var days []healthdata.DayRecord
	for i := 6; i >= 1; i-- {
		days = append(days, dayWith(isoDaysAgo(i), func(d *healthdata.DayRecord) {
			d.Recovery = healthdata.IntPtr(60)
		}))
	}
	days = append(days, dayWith(isoDaysAgo(0), func(d *healthdata.DayRecord) {
		d.Recovery = healthdata.IntPtr(90)
	}))

	insights := ComputeInsights(days, nil, testNow)
	require.NotEmpty(t, insights)
	assert.Equal(t, InsightPositive, insights[0].Kind)
	assert.Contains(t, insights[0].Text, "above your weekly average")
}

func TestComputeInsights_SleepRecoverySplit(t *testing.T) {
	var days []healthdata.DayRecord
	for i := 0; i < 3; i++ {
		days = append(days, dayWith(isoDaysAgo(10+i), func(d *healthdata.DayRecord) {
			d.SleepHours = healthdata.Float64Ptr(8)
			d.Recovery = healthdata.IntPtr(80)
		}))
		days = append(days, dayWith(isoDaysAgo(20+i), func(d *healthdata.DayRecord) {
			d.SleepHours = healthdata.Float64Ptr(6)
			d.Recovery = healthdata.IntPtr(55)
		}))
	}

	insights := ComputeInsights(days, nil, testNow)
	found := false
	for _, insight := range insights {
		if insight.Kind == InsightInfo && strings.Contains(insight.Text, "Sleep is your biggest lever") {
			found = true
		}
	}
	assert.True(t, found, "expected the sleep/recovery split insight")
}

func TestComputeInsights_TrainingFrequencyBands(t *testing.T) {
	var frequent []healthdata.WorkoutRecord
	for i := 0; i < 17; i++ {
		frequent = append(frequent, healthdata.WorkoutRecord{
			ID: isoDaysAgo(27 - i), Date: isoDaysAgo(27 - i),
		})
	}

	insights := ComputeInsights(nil, frequent, testNow)
	require.NotEmpty(t, insights)
	assert.Equal(t, InsightPositive, insights[0].Kind)
	assert.Contains(t, insights[0].Text, "Excellent consistency")

	// history exists but nothing recent
	stale := []healthdata.WorkoutRecord{{ID: "w1", Date: isoDaysAgo(90)}}
	insights = ComputeInsights(nil, stale, testNow)
	require.NotEmpty(t, insights)
	assert.Equal(t, InsightWarning, insights[0].Kind)
	assert.Contains(t, insights[0].Text, "dropped below once a week")
}

func TestComputeInsights_MaxFive(t *testing.T) {
	days := hrvDays(50, 60)
	// stack recovery spike and sleep split on top
	days[len(days)-1].Recovery = healthdata.IntPtr(95)
	insights := ComputeInsights(days, nil, testNow)
	assert.LessOrEqual(t, len(insights), maxInsights)
}

func TestComputeInsights_OnboardingFallbacks(t *testing.T) {
	insights := ComputeInsights(nil, nil, testNow)
	require.Len(t, insights, 2)
	assert.Equal(t, kinds(insights), []InsightKind{InsightInfo, InsightInfo})
	assert.Contains(t, insights[0].Text, "Connect your wearable")
	assert.Contains(t, insights[1].Text, "Connect your workout log")
}
