package healthdata

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ cacheRepo = (*repoMock)(nil)

type repoMock struct {
	// user id to date to day record
	Days map[string]map[string]DayRecord
	// user id to workout id to workout record
	Workouts map[string]map[string]WorkoutRecord
	// user id to newest synced_at
	SyncedAt map[string]time.Time

	UpsertDaysErr     error
	UpsertWorkoutsErr error

	mutex sync.Mutex
}

func NewRepoMock() *repoMock {
	return &repoMock{
		Days:     map[string]map[string]DayRecord{},
		Workouts: map[string]map[string]WorkoutRecord{},
		SyncedAt: map[string]time.Time{},
	}
}

func (r *repoMock) GetDays(_ context.Context, userID string) ([]DayRecord, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var days []DayRecord
	for _, day := range r.Days[userID] {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})
	return days, nil
}

func (r *repoMock) GetWorkouts(_ context.Context, userID string) ([]WorkoutRecord, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var workouts []WorkoutRecord
	for _, workout := range r.Workouts[userID] {
		workouts = append(workouts, workout)
	}
	sort.Slice(workouts, func(i, j int) bool {
		return workouts[i].Date < workouts[j].Date
	})
	return workouts, nil
}

func (r *repoMock) LastSyncedAt(_ context.Context, userID string) (*time.Time, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	syncedAt, ok := r.SyncedAt[userID]
	if !ok {
		return nil, nil
	}
	return &syncedAt, nil
}

func (r *repoMock) UpsertDays(_ context.Context, userID string, days []DayRecord, syncedAt time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.UpsertDaysErr != nil {
		return r.UpsertDaysErr
	}

	if r.Days[userID] == nil {
		r.Days[userID] = map[string]DayRecord{}
	}
	for _, day := range days {
		r.Days[userID][day.Date] = day
	}
	r.SyncedAt[userID] = syncedAt
	return nil
}

func (r *repoMock) UpsertWorkouts(_ context.Context, userID string, workouts []WorkoutRecord, syncedAt time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.UpsertWorkoutsErr != nil {
		return r.UpsertWorkoutsErr
	}

	if r.Workouts[userID] == nil {
		r.Workouts[userID] = map[string]WorkoutRecord{}
	}
	for _, workout := range workouts {
		r.Workouts[userID][workout.ID] = workout
	}
	return nil
}

func (r *repoMock) DeleteAllForUser(_ context.Context, userID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.Days, userID)
	delete(r.Workouts, userID)
	delete(r.SyncedAt, userID)
	return nil
}
