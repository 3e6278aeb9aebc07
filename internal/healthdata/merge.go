package healthdata

import "sort"

// MergeProviderData folds the per-provider day outputs into one sorted
// list of unified day records. Recovery days arrive as fully shaped
// records (body fields nil), body composition days overlay only their
// non-nil fields onto whatever is already there, so the merge result is
// independent of overlay order. Workouts pass through, the adapter
// already sorted them.
func MergeProviderData(
	recoveryDays []DayRecord,
	bodyDays []DayRecord,
	workouts []WorkoutRecord,
) ([]DayRecord, []WorkoutRecord) {
	dayMap := map[string]*DayRecord{}

	for _, recoveryDay := range recoveryDays {
		day := recoveryDay
		dayMap[day.Date] = &day
	}

	for _, bodyDay := range bodyDays {
		day, ok := dayMap[bodyDay.Date]
		if !ok {
			shell := NewDayRecord(bodyDay.Date)
			day = &shell
			dayMap[bodyDay.Date] = day
		}
		if bodyDay.Weight != nil {
			day.Weight = bodyDay.Weight
		}
		if bodyDay.BodyFat != nil {
			day.BodyFat = bodyDay.BodyFat
		}
		if bodyDay.MuscleMass != nil {
			day.MuscleMass = bodyDay.MuscleMass
		}
		if bodyDay.Steps != nil {
			day.Steps = bodyDay.Steps
		}
	}

	days := make([]DayRecord, 0, len(dayMap))
	for _, day := range dayMap {
		days = append(days, *day)
	}
	// ISO dates sort correctly lexically
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})

	return days, workouts
}
