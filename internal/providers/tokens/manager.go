package tokens

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/starkhealth/backend/internal/providers"
	"github.com/starkhealth/backend/internal/telemetry/metrics"
	"github.com/starkhealth/backend/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// refresh buffers per provider: a token inside its buffer is treated as
// expired and refreshed proactively. Withings access tokens are short
// lived and their API rejects tokens close to expiry, hence the much
// wider buffer.
const (
	whoopRefreshBuffer    = time.Minute
	withingsRefreshBuffer = 30 * time.Minute
)

type tokensRepo interface {
	Get(ctx context.Context, userID string, provider providers.Provider) (*ProviderToken, error)
	Upsert(ctx context.Context, token ProviderToken) (*ProviderToken, error)
	UpdateCredentials(ctx context.Context, id int, creds RefreshedCredentials) error
	ListForUser(ctx context.Context, userID string) ([]ProviderToken, error)
	GetExpiringWithin(ctx context.Context, window time.Duration) ([]ProviderToken, error)
	ListUserIDsForProvider(ctx context.Context, provider providers.Provider) ([]string, error)
	Delete(ctx context.Context, userID string, provider providers.Provider) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

// Refresher performs the provider-specific refresh token exchange.
type Refresher interface {
	RefreshCredentials(ctx context.Context, refreshToken string) (*RefreshedCredentials, error)
}

// Manager hands out access tokens that are guaranteed fresh for at least
// the provider's refresh buffer, refreshing them when needed. Concurrent
// callers for the same user+provider are serialized so a burst of
// requests produces at most one refresh exchange.
type Manager struct {
	repo       tokensRepo
	refreshers map[providers.Provider]Refresher
	metrics    *metrics.Manager

	locksMutex sync.Mutex
	locks      map[string]*sync.Mutex
}

func NewManager(
	repo tokensRepo,
	refreshers map[providers.Provider]Refresher,
	metricsManager *metrics.Manager,
) *Manager {
	return &Manager{
		repo:       repo,
		refreshers: refreshers,
		metrics:    metricsManager,
		locks:      map[string]*sync.Mutex{},
	}
}

func refreshBuffer(provider providers.Provider) time.Duration {
	if provider == providers.ProviderWithings {
		return withingsRefreshBuffer
	}
	return whoopRefreshBuffer
}

func (m *Manager) lockFor(userID string, provider providers.Provider) *sync.Mutex {
	m.locksMutex.Lock()
	defer m.locksMutex.Unlock()

	key := fmt.Sprintf("%s::%s", userID, provider)
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// EnsureFreshAccessToken returns an access token usable for at least the
// provider's refresh buffer, refreshing it first when necessary. For
// API-key providers it returns the stored key as is.
//
// A failed refresh does not immediately mean the credential is dead:
// another instance may have rotated it under us, invalidating our refresh
// token. The stored credential is re-read once after a failure and used
// if it turned out fresh.
func (m *Manager) EnsureFreshAccessToken(
	ctx context.Context, userID string, provider providers.Provider,
) (string, error) {
	return m.ensureFresh(ctx, userID, provider, refreshBuffer(provider))
}

func (m *Manager) ensureFresh(
	ctx context.Context, userID string, provider providers.Provider, buffer time.Duration,
) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "tokens.manager.ensureFresh")
	span.SetAttributes(attribute.String("provider", string(provider)))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	token, err := m.repo.Get(ctx, userID, provider)
	if err != nil {
		if err == ErrTokenNotFound {
			return "", providers.ErrNotConnected
		}
		return "", fmt.Errorf("get token: %w", err)
	}

	if token.ExpiresAt == nil {
		// api-key credential, nothing to refresh
		return token.AccessToken, nil
	}

	if !token.ExpiresWithin(buffer) {
		return token.AccessToken, nil
	}

	lock := m.lockFor(userID, provider)
	lock.Lock()
	defer lock.Unlock()

	// re-read: a caller that held the lock before us likely refreshed
	token, err = m.repo.Get(ctx, userID, provider)
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	if !token.ExpiresWithin(buffer) {
		return token.AccessToken, nil
	}

	refresher, ok := m.refreshers[provider]
	if !ok || token.RefreshToken == "" {
		return "", providers.ErrCredentialExpired
	}

	creds, refreshErr := refresher.RefreshCredentials(ctx, token.RefreshToken)
	if refreshErr != nil {
		m.metrics.CounterTokenRefreshes.
			WithLabelValues(string(provider), "error").Inc()

		token, err = m.repo.Get(ctx, userID, provider)
		if err == nil && !token.ExpiresWithin(buffer) {
			log.Warnf(
				"[tokens] %s refresh failed for user %s, but stored token is fresh again: %s",
				provider, userID, refreshErr,
			)
			return token.AccessToken, nil
		}

		return "", fmt.Errorf("%w: refresh failed: %s", providers.ErrCredentialExpired, refreshErr)
	}

	if err := m.repo.UpdateCredentials(ctx, token.ID, *creds); err != nil {
		return "", fmt.Errorf("store refreshed credentials: %w", err)
	}

	m.metrics.CounterTokenRefreshes.
		WithLabelValues(string(provider), "success").Inc()
	log.Debugf("[tokens] refreshed %s token for user %s", provider, userID)

	return creds.AccessToken, nil
}

// Connect stores a freshly obtained credential, replacing any previous
// one for the same user+provider.
func (m *Manager) Connect(ctx context.Context, token ProviderToken) (*ProviderToken, error) {
	return m.repo.Upsert(ctx, token)
}

func (m *Manager) Disconnect(ctx context.Context, userID string, provider providers.Provider) error {
	return m.repo.Delete(ctx, userID, provider)
}

// UserIDsForProvider lists every user connected to the provider, used
// by webhook-triggered resyncs.
func (m *Manager) UserIDsForProvider(ctx context.Context, provider providers.Provider) ([]string, error) {
	return m.repo.ListUserIDsForProvider(ctx, provider)
}

func (m *Manager) ConnectedProviders(ctx context.Context, userID string) ([]providers.Provider, error) {
	tokenList, err := m.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	connected := make([]providers.Provider, 0, len(tokenList))
	for _, t := range tokenList {
		connected = append(connected, t.Provider)
	}
	return connected, nil
}
