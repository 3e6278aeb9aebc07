package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/starkhealth/backend/internal/providers"
)

var _ tokensRepo = (*repoMock)(nil)

type repoMock struct {
	// (userID, provider) to stored token
	Tokens map[string]map[providers.Provider]ProviderToken

	UpdateCredentialsCalls int

	nextID int
	mutex  sync.Mutex
}

func NewRepoMock() *repoMock {
	return &repoMock{
		Tokens: map[string]map[providers.Provider]ProviderToken{},
		nextID: 1,
	}
}

func (r *repoMock) Get(_ context.Context, userID string, provider providers.Provider) (*ProviderToken, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	t, ok := r.Tokens[userID][provider]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &t, nil
}

func (r *repoMock) Upsert(_ context.Context, token ProviderToken) (*ProviderToken, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.Tokens[token.UserID] == nil {
		r.Tokens[token.UserID] = map[providers.Provider]ProviderToken{}
	}

	if existing, ok := r.Tokens[token.UserID][token.Provider]; ok {
		token.ID = existing.ID
		token.CreatedAt = existing.CreatedAt
	} else {
		token.ID = r.nextID
		token.CreatedAt = time.Now()
		r.nextID++
	}
	token.UpdatedAt = time.Now()

	r.Tokens[token.UserID][token.Provider] = token
	return &token, nil
}

func (r *repoMock) UpdateCredentials(_ context.Context, id int, creds RefreshedCredentials) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.UpdateCredentialsCalls++

	for userID, byProvider := range r.Tokens {
		for provider, t := range byProvider {
			if t.ID == id {
				expiresAt := creds.ExpiresAt
				t.AccessToken = creds.AccessToken
				t.RefreshToken = creds.RefreshToken
				t.ExpiresAt = &expiresAt
				t.UpdatedAt = time.Now()
				r.Tokens[userID][provider] = t
				return nil
			}
		}
	}
	return ErrTokenNotFound
}

func (r *repoMock) ListForUser(_ context.Context, userID string) ([]ProviderToken, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var tokenList []ProviderToken
	for _, provider := range providers.All {
		if t, ok := r.Tokens[userID][provider]; ok {
			tokenList = append(tokenList, t)
		}
	}
	return tokenList, nil
}

func (r *repoMock) GetExpiringWithin(_ context.Context, window time.Duration) ([]ProviderToken, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	deadline := time.Now().Add(window)
	var tokenList []ProviderToken
	for _, byProvider := range r.Tokens {
		for _, t := range byProvider {
			if t.ExpiresAt != nil && t.ExpiresAt.Before(deadline) && t.RefreshToken != "" {
				tokenList = append(tokenList, t)
			}
		}
	}
	return tokenList, nil
}

func (r *repoMock) ListUserIDsForProvider(_ context.Context, provider providers.Provider) ([]string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var userIDs []string
	for userID, byProvider := range r.Tokens {
		if _, ok := byProvider[provider]; ok {
			userIDs = append(userIDs, userID)
		}
	}
	return userIDs, nil
}

func (r *repoMock) Delete(_ context.Context, userID string, provider providers.Provider) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Tokens[userID][provider]; !ok {
		return ErrTokenNotFound
	}
	delete(r.Tokens[userID], provider)
	return nil
}

func (r *repoMock) DeleteAllForUser(_ context.Context, userID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.Tokens, userID)
	return nil
}
