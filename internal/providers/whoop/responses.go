package whoop

// API response shapes, decoded explicitly instead of passing raw maps
// around. Scores are pointers: records awaiting processing come back
// without one.

type paginatedResponse[T any] struct {
	Records   []T     `json:"records"`
	NextToken *string `json:"next_token"`
}

type cycleScore struct {
	Strain    float64 `json:"strain"`
	Kilojoule float64 `json:"kilojoule"`
}

type cycle struct {
	ID        int64       `json:"id"`
	Start     string      `json:"start"`
	End       string      `json:"end"`
	CreatedAt string      `json:"created_at"`
	Score     *cycleScore `json:"score"`
}

type recoveryScore struct {
	RecoveryScore    float64 `json:"recovery_score"`
	HRVRmssdMilli    float64 `json:"hrv_rmssd_milli"`
	RestingHeartRate float64 `json:"resting_heart_rate"`
}

type recovery struct {
	CycleID   int64          `json:"cycle_id"`
	CreatedAt string         `json:"created_at"`
	Score     *recoveryScore `json:"score"`
}

type sleepStageSummary struct {
	TotalInBedTimeMilli         float64 `json:"total_in_bed_time_milli"`
	TotalAwakeTimeMilli         float64 `json:"total_awake_time_milli"`
	TotalLightSleepTimeMilli    float64 `json:"total_light_sleep_time_milli"`
	TotalSlowWaveSleepTimeMilli float64 `json:"total_slow_wave_sleep_time_milli"`
	TotalREMSleepTimeMilli      float64 `json:"total_rem_sleep_time_milli"`
}

type sleepScore struct {
	StageSummary               *sleepStageSummary `json:"stage_summary"`
	SleepPerformancePercentage float64            `json:"sleep_performance_percentage"`
}

type sleep struct {
	Nap       bool        `json:"nap"`
	Start     string      `json:"start"`
	CreatedAt string      `json:"created_at"`
	Score     *sleepScore `json:"score"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}
