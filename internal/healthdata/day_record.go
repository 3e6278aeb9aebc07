// Package healthdata holds the canonical per-day and per-workout health
// model, the merge engine that folds provider outputs into it, the cache
// repo and the cache policy service on top.
package healthdata

// DayRecord is the unified health metrics row for one user and calendar
// date. Every metric is a pointer: nil means no connected provider
// reported it, which downstream consumers must never conflate with zero.
type DayRecord struct {
	// ISO date (yyyy-mm-dd), the natural key
	Date string `json:"date"`

	// recovery / sleep / strain band
	Recovery   *int     `json:"recovery"`
	HRV        *float64 `json:"hrv"`
	RHR        *int     `json:"rhr"`
	Strain     *float64 `json:"strain"`
	Calories   *int     `json:"calories"`
	SleepHours *float64 `json:"sleepHours"`
	SleepScore *int     `json:"sleepScore"`
	DeepSleep  *float64 `json:"deepSleep"`
	REMSleep   *float64 `json:"remSleep"`
	LightSleep *float64 `json:"lightSleep"`
	Awake      *float64 `json:"awake"`

	// body composition band
	Weight     *float64 `json:"weight"`
	BodyFat    *float64 `json:"bodyFat"`
	MuscleMass *float64 `json:"muscleMass"`
	Steps      *int     `json:"steps"`
}

// NewDayRecord returns an empty shell for the date, all metrics nil.
func NewDayRecord(date string) DayRecord {
	return DayRecord{Date: date}
}

func IntPtr(v int) *int             { return &v }
func Float64Ptr(v float64) *float64 { return &v }
