// Package assistant assembles the grounding context for the AI coach
// and streams chat responses through an OpenAI-compatible API.
package assistant

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/starkhealth/backend/internal/healthdata"
)

// NoDataSentinel is returned when the user has never synced anything.
// The assistant passes it through so the model states the absence of
// data instead of inventing numbers.
const NoDataSentinel = "No health data is cached yet. The user needs to load the Stark Health dashboard " +
	"at least once to sync data from connected providers."

// BuildContext formats the cached health data into a deterministic
// multi-section text block used as the system-level grounding context
// for every chat turn. Assembled fresh per request, never cached: the
// underlying rows may have been resynced in between.
func BuildContext(days []healthdata.DayRecord, workouts []healthdata.WorkoutRecord) string {
	var sections []string

	if len(days) > 0 {
		sections = append(sections, daysSection(days))
	}
	if len(workouts) > 0 {
		sections = append(sections, workoutsSection(workouts))
	}
	if len(sections) == 0 {
		return NoDataSentinel
	}
	return strings.Join(sections, "\n\n")
}

func daysSection(days []healthdata.DayRecord) string {
	latest := days[len(days)-1]
	first := days[0]
	last7 := days
	if len(last7) > 7 {
		last7 = last7[len(last7)-7:]
	}

	daysJson, _ := json.Marshal(days)

	var b strings.Builder
	fmt.Fprintf(&b, "DAILY HEALTH DATA (%s → %s, %d days):\n\n", first.Date, latest.Date, len(days))

	fmt.Fprintf(&b, "TODAY (%s):\n", latest.Date)
	fmt.Fprintf(&b, "• Recovery: %s%% | HRV: %sms | RHR: %sbpm\n",
		fmtInt(latest.Recovery), fmtFloat(latest.HRV), fmtInt(latest.RHR))
	fmt.Fprintf(&b, "• Sleep: %sh (score %s%%) — Deep %sh, REM %sh, Light %sh\n",
		fmtFloat(latest.SleepHours), fmtInt(latest.SleepScore),
		fmtFloat(latest.DeepSleep), fmtFloat(latest.REMSleep), fmtFloat(latest.LightSleep))
	fmt.Fprintf(&b, "• Strain: %s | Calories: %s\n", fmtFloat(latest.Strain), fmtInt(latest.Calories))
	fmt.Fprintf(&b, "• Weight: %skg | Body Fat: %s%% | Muscle Mass: %skg\n",
		fmtFloat(latest.Weight), fmtFloat(latest.BodyFat), fmtFloat(latest.MuscleMass))
	fmt.Fprintf(&b, "• Steps: %s\n\n", fmtInt(latest.Steps))

	b.WriteString("7-DAY AVERAGES:\n")
	fmt.Fprintf(&b, "• Recovery: %s%% | HRV: %sms | Sleep: %sh\n",
		avgInt(last7, func(d healthdata.DayRecord) *int { return d.Recovery }),
		avgFloat(last7, func(d healthdata.DayRecord) *float64 { return d.HRV }),
		avgFloat(last7, func(d healthdata.DayRecord) *float64 { return d.SleepHours }))
	fmt.Fprintf(&b, "• Strain: %s | Weight: %skg | Body Fat: %s%%\n\n",
		avgFloat(last7, func(d healthdata.DayRecord) *float64 { return d.Strain }),
		avgFloat(last7, func(d healthdata.DayRecord) *float64 { return d.Weight }),
		avgFloat(last7, func(d healthdata.DayRecord) *float64 { return d.BodyFat }))

	b.WriteString("30-DAY TRENDS:\n")
	fmt.Fprintf(&b, "• Recovery: %s → %s | HRV: %s → %sms\n",
		fmtIntOr(first.Recovery, "?"), fmtIntOr(latest.Recovery, "?"),
		fmtFloatOr(first.HRV, "?"), fmtFloatOr(latest.HRV, "?"))
	fmt.Fprintf(&b, "• Weight: %skg → %skg | Body Fat: %s%% → %s%%\n\n",
		fmtFloatOr(first.Weight, "?"), fmtFloatOr(latest.Weight, "?"),
		fmtFloatOr(first.BodyFat, "?"), fmtFloatOr(latest.BodyFat, "?"))

	b.WriteString("FULL DAILY DATA (JSON):\n")
	b.Write(daysJson)

	return b.String()
}

func workoutsSection(workouts []healthdata.WorkoutRecord) string {
	var totalVolume float64
	for i := range workouts {
		totalVolume += workouts[i].Volume()
	}
	last := workouts[len(workouts)-1]
	title := last.Title
	if title == "" {
		title = "Workout"
	}

	workoutsJson, _ := json.Marshal(workouts)

	var b strings.Builder
	fmt.Fprintf(&b, "WORKOUT DATA (%d workouts):\n", len(workouts))
	fmt.Fprintf(&b, "Total volume: %.0fkg | Last workout: %s on %s\n", totalVolume, title, last.Date)
	b.WriteString("Full data: ")
	b.Write(workoutsJson)

	return b.String()
}

func fmtInt(v *int) string {
	return fmtIntOr(v, "N/A")
}

func fmtIntOr(v *int, fallback string) string {
	if v == nil {
		return fallback
	}
	return fmt.Sprintf("%d", *v)
}

func fmtFloat(v *float64) string {
	return fmtFloatOr(v, "N/A")
}

func fmtFloatOr(v *float64, fallback string) string {
	if v == nil {
		return fallback
	}
	return trimZeros(*v)
}

// averages exclude nulls from both the sum and the divisor

func avgFloat(days []healthdata.DayRecord, get func(healthdata.DayRecord) *float64) string {
	var sum float64
	var count int
	for _, day := range days {
		if v := get(day); v != nil {
			sum += *v
			count++
		}
	}
	if count == 0 {
		return "N/A"
	}
	return trimZeros(math.Round(sum/float64(count)*10) / 10)
}

func avgInt(days []healthdata.DayRecord, get func(healthdata.DayRecord) *int) string {
	var sum float64
	var count int
	for _, day := range days {
		if v := get(day); v != nil {
			sum += float64(*v)
			count++
		}
	}
	if count == 0 {
		return "N/A"
	}
	return trimZeros(math.Round(sum/float64(count)*10) / 10)
}

func trimZeros(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
