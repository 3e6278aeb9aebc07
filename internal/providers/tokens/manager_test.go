package tokens

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starkhealth/backend/internal/providers"
	"github.com/starkhealth/backend/internal/telemetry/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refresherMock struct {
	calls   atomic.Int64
	refresh func(ctx context.Context, refreshToken string) (*RefreshedCredentials, error)
}

func (m *refresherMock) RefreshCredentials(ctx context.Context, refreshToken string) (*RefreshedCredentials, error) {
	m.calls.Add(1)
	return m.refresh(ctx, refreshToken)
}

func newTestManager(repo tokensRepo, refresher Refresher) *Manager {
	refreshers := map[providers.Provider]Refresher{}
	if refresher != nil {
		refreshers[providers.ProviderWhoop] = refresher
		refreshers[providers.ProviderWithings] = refresher
	}
	return NewManager(repo, refreshers, metrics.NewTestManager())
}

func storeToken(t *testing.T, repo *repoMock, provider providers.Provider, expiresIn time.Duration) *ProviderToken {
	t.Helper()
	expiresAt := time.Now().Add(expiresIn)
	stored, err := repo.Upsert(context.Background(), ProviderToken{
		UserID:       "user1",
		Provider:     provider,
		AccessToken:  "access-old",
		RefreshToken: "refresh-old",
		ExpiresAt:    &expiresAt,
	})
	require.NoError(t, err)
	return stored
}

func TestEnsureFreshAccessToken_NotConnected(t *testing.T) {
	manager := newTestManager(NewRepoMock(), nil)

	_, err := manager.EnsureFreshAccessToken(context.Background(), "user1", providers.ProviderWhoop)
	assert.ErrorIs(t, err, providers.ErrNotConnected)
}

func TestEnsureFreshAccessToken_APIKeyCredential(t *testing.T) {
	repo := NewRepoMock()
	_, err := repo.Upsert(context.Background(), ProviderToken{
		UserID:      "user1",
		Provider:    providers.ProviderHevy,
		AccessToken: "hevy-api-key",
	})
	require.NoError(t, err)

	refresher := &refresherMock{refresh: func(context.Context, string) (*RefreshedCredentials, error) {
		return nil, errors.New("must not be called")
	}}
	manager := newTestManager(repo, refresher)

	accessToken, err := manager.EnsureFreshAccessToken(context.Background(), "user1", providers.ProviderHevy)
	require.NoError(t, err)
	assert.Equal(t, "hevy-api-key", accessToken)
	assert.Zero(t, refresher.calls.Load())
}

func TestEnsureFreshAccessToken_FreshTokenNotRefreshed(t *testing.T) {
	repo := NewRepoMock()
	storeToken(t, repo, providers.ProviderWhoop, time.Hour)

	refresher := &refresherMock{refresh: func(context.Context, string) (*RefreshedCredentials, error) {
		return nil, errors.New("must not be called")
	}}
	manager := newTestManager(repo, refresher)

	accessToken, err := manager.EnsureFreshAccessToken(context.Background(), "user1", providers.ProviderWhoop)
	require.NoError(t, err)
	assert.Equal(t, "access-old", accessToken)
	assert.Zero(t, refresher.calls.Load())
}

func TestEnsureFreshAccessToken_WithingsBufferWiderThanWhoop(t *testing.T) {
	// a token valid for 10 more minutes is fresh for whoop but already
	// inside the withings refresh buffer
	repo := NewRepoMock()
	storeToken(t, repo, providers.ProviderWhoop, 10*time.Minute)
	withingsStored := storeToken(t, repo, providers.ProviderWithings, 10*time.Minute)

	refresher := &refresherMock{refresh: func(context.Context, string) (*RefreshedCredentials, error) {
		return &RefreshedCredentials{
			AccessToken:  "access-new",
			RefreshToken: "refresh-new",
			ExpiresAt:    time.Now().Add(3 * time.Hour),
		}, nil
	}}
	manager := newTestManager(repo, refresher)

	whoopToken, err := manager.EnsureFreshAccessToken(context.Background(), "user1", providers.ProviderWhoop)
	require.NoError(t, err)
	assert.Equal(t, "access-old", whoopToken)
	assert.Zero(t, refresher.calls.Load())

	withingsToken, err := manager.EnsureFreshAccessToken(context.Background(), "user1", providers.ProviderWithings)
	require.NoError(t, err)
	assert.Equal(t, "access-new", withingsToken)
	assert.Equal(t, int64(1), refresher.calls.Load())

	// rotated refresh token persisted
	refreshed, err := repo.Get(context.Background(), "user1", providers.ProviderWithings)
	require.NoError(t, err)
	assert.Equal(t, withingsStored.ID, refreshed.ID)
	assert.Equal(t, "refresh-new", refreshed.RefreshToken)
}

func TestEnsureFreshAccessToken_ConcurrentCallersSingleRefresh(t *testing.T) {
	repo := NewRepoMock()
	storeToken(t, repo, providers.ProviderWhoop, 10*time.Second)

	refresher := &refresherMock{refresh: func(context.Context, string) (*RefreshedCredentials, error) {
		time.Sleep(10 * time.Millisecond) // make the exchange window visible
		return &RefreshedCredentials{
			AccessToken:  "access-new",
			RefreshToken: "refresh-new",
			ExpiresAt:    time.Now().Add(time.Hour),
		}, nil
	}}
	manager := newTestManager(repo, refresher)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			accessToken, err := manager.EnsureFreshAccessToken(
				context.Background(), "user1", providers.ProviderWhoop,
			)
			assert.NoError(t, err)
			assert.Equal(t, "access-new", accessToken)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), refresher.calls.Load())
	assert.Equal(t, 1, repo.UpdateCredentialsCalls)
}

func TestEnsureFreshAccessToken_FailedRefreshButStoredTokenFresh(t *testing.T) {
	// another instance rotated the credential while we held a stale
	// refresh token: the exchange fails, but the re-read finds a fresh
	// token and we use it instead of reporting the credential dead
	repo := NewRepoMock()
	stored := storeToken(t, repo, providers.ProviderWhoop, 10*time.Second)

	refresher := &refresherMock{refresh: func(ctx context.Context, _ string) (*RefreshedCredentials, error) {
		require.NoError(t, repo.UpdateCredentials(ctx, stored.ID, RefreshedCredentials{
			AccessToken:  "access-rotated-elsewhere",
			RefreshToken: "refresh-rotated-elsewhere",
			ExpiresAt:    time.Now().Add(time.Hour),
		}))
		return nil, errors.New("invalid_grant")
	}}
	manager := newTestManager(repo, refresher)

	accessToken, err := manager.EnsureFreshAccessToken(context.Background(), "user1", providers.ProviderWhoop)
	require.NoError(t, err)
	assert.Equal(t, "access-rotated-elsewhere", accessToken)
}

func TestEnsureFreshAccessToken_FailedRefreshCredentialExpired(t *testing.T) {
	repo := NewRepoMock()
	storeToken(t, repo, providers.ProviderWhoop, 10*time.Second)

	refresher := &refresherMock{refresh: func(context.Context, string) (*RefreshedCredentials, error) {
		return nil, errors.New("invalid_grant")
	}}
	manager := newTestManager(repo, refresher)

	_, err := manager.EnsureFreshAccessToken(context.Background(), "user1", providers.ProviderWhoop)
	assert.ErrorIs(t, err, providers.ErrCredentialExpired)

	// stored credential untouched by the failed exchange
	storedToken, getErr := repo.Get(context.Background(), "user1", providers.ProviderWhoop)
	require.NoError(t, getErr)
	assert.Equal(t, "access-old", storedToken.AccessToken)
}

func TestEnsureFreshAccessToken_NoRefreshTokenStored(t *testing.T) {
	repo := NewRepoMock()
	expiresAt := time.Now().Add(10 * time.Second)
	_, err := repo.Upsert(context.Background(), ProviderToken{
		UserID:      "user1",
		Provider:    providers.ProviderWhoop,
		AccessToken: "access-old",
		ExpiresAt:   &expiresAt,
	})
	require.NoError(t, err)

	manager := newTestManager(repo, nil)

	_, err = manager.EnsureFreshAccessToken(context.Background(), "user1", providers.ProviderWhoop)
	assert.ErrorIs(t, err, providers.ErrCredentialExpired)
}

func TestRunRefreshJob(t *testing.T) {
	repo := NewRepoMock()

	// expiring soon, should get refreshed
	storeToken(t, repo, providers.ProviderWhoop, 5*time.Minute)
	// valid long enough, out of the job window
	expiresAt := time.Now().Add(5 * time.Hour)
	_, err := repo.Upsert(context.Background(), ProviderToken{
		UserID:       "user2",
		Provider:     providers.ProviderWhoop,
		AccessToken:  "access-valid",
		RefreshToken: "refresh-valid",
		ExpiresAt:    &expiresAt,
	})
	require.NoError(t, err)
	// expiring soon but the exchange will fail
	expiresSoon := time.Now().Add(5 * time.Minute)
	_, err = repo.Upsert(context.Background(), ProviderToken{
		UserID:       "user3",
		Provider:     providers.ProviderWithings,
		AccessToken:  "access-doomed",
		RefreshToken: "refresh-doomed",
		ExpiresAt:    &expiresSoon,
	})
	require.NoError(t, err)

	refresher := &refresherMock{refresh: func(_ context.Context, refreshToken string) (*RefreshedCredentials, error) {
		if refreshToken == "refresh-doomed" {
			return nil, errors.New("invalid_grant")
		}
		return &RefreshedCredentials{
			AccessToken:  "access-new",
			RefreshToken: "refresh-new",
			ExpiresAt:    time.Now().Add(time.Hour),
		}, nil
	}}
	manager := newTestManager(repo, refresher)

	result, err := manager.RunRefreshJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RefreshJobResult{Refreshed: 1, Failed: 1, Total: 2}, result)

	refreshedToken, err := repo.Get(context.Background(), "user1", providers.ProviderWhoop)
	require.NoError(t, err)
	assert.Equal(t, "access-new", refreshedToken.AccessToken)

	untouchedToken, err := repo.Get(context.Background(), "user2", providers.ProviderWhoop)
	require.NoError(t, err)
	assert.Equal(t, "access-valid", untouchedToken.AccessToken)
}
