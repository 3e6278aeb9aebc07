package goals

import (
	"context"
	"sync"
	"time"
)

type repoMock struct {
	mutex  sync.Mutex
	nextID int
	goals  map[int]Goal
}

var _ goalsRepo = (*repoMock)(nil)

func newRepoMock() *repoMock {
	return &repoMock{
		nextID: 1,
		goals:  map[int]Goal{},
	}
}

func (m *repoMock) Add(_ context.Context, goal *Goal) (*Goal, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	goal.ID = m.nextID
	goal.CreatedAt = time.Now()
	m.nextID++
	m.goals[goal.ID] = *goal
	return goal, nil
}

func (m *repoMock) ListForUser(_ context.Context, userID string) ([]Goal, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var goals []Goal
	for _, goal := range m.goals {
		if goal.UserID == userID {
			goals = append(goals, goal)
		}
	}
	return goals, nil
}

func (m *repoMock) Delete(_ context.Context, userID string, goalID int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	goal, ok := m.goals[goalID]
	if !ok || goal.UserID != userID {
		return ErrGoalNotFound
	}
	delete(m.goals, goalID)
	return nil
}

func (m *repoMock) DeleteAllForUser(_ context.Context, userID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for id, goal := range m.goals {
		if goal.UserID == userID {
			delete(m.goals, id)
		}
	}
	return nil
}
