package settings

import (
	"context"
	"sync"
)

type repoMock struct {
	mutex    sync.Mutex
	profiles map[string]Profile
}

var _ profilesRepo = (*repoMock)(nil)

func newRepoMock() *repoMock {
	return &repoMock{
		profiles: map[string]Profile{},
	}
}

func (m *repoMock) Get(_ context.Context, userID string) (*Profile, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	profile, ok := m.profiles[userID]
	if !ok {
		return &Profile{UserID: userID}, nil
	}
	return &profile, nil
}

func (m *repoMock) Upsert(_ context.Context, profile *Profile) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.profiles[profile.UserID] = *profile
	return nil
}

func (m *repoMock) Delete(_ context.Context, userID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.profiles, userID)
	return nil
}
