package healthdata

import (
	"context"
	"sync"
	"time"

	"github.com/starkhealth/backend/internal/providers"
	"github.com/starkhealth/backend/internal/telemetry/metrics"
	"github.com/starkhealth/backend/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// freshnessWindow: cached data younger than this is served without any
// provider calls. Evaluated per user, over the newest synced_at.
const freshnessWindow = 4 * time.Hour

type cacheRepo interface {
	GetDays(ctx context.Context, userID string) ([]DayRecord, error)
	GetWorkouts(ctx context.Context, userID string) ([]WorkoutRecord, error)
	LastSyncedAt(ctx context.Context, userID string) (*time.Time, error)
	UpsertDays(ctx context.Context, userID string, days []DayRecord, syncedAt time.Time) error
	UpsertWorkouts(ctx context.Context, userID string, workouts []WorkoutRecord, syncedAt time.Time) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

// DayFetcher is a provider adapter producing day records.
type DayFetcher interface {
	FetchRecentData(ctx context.Context, credential string) ([]DayRecord, error)
}

// WorkoutFetcher is a provider adapter producing workout records.
type WorkoutFetcher interface {
	FetchRecentData(ctx context.Context, credential string) ([]WorkoutRecord, error)
}

type tokenSource interface {
	EnsureFreshAccessToken(ctx context.Context, userID string, provider providers.Provider) (string, error)
	ConnectedProviders(ctx context.Context, userID string) ([]providers.Provider, error)
}

// HealthData is the unified payload served to the dashboard.
type HealthData struct {
	Providers []providers.Provider `json:"providers"`
	Days      []DayRecord          `json:"days"`
	Workouts  []WorkoutRecord      `json:"workouts"`
	Cached    bool                 `json:"cached"`
}

// Service is the cache policy layer: read-through with the per-user
// freshness window, write-through after a resync.
type Service struct {
	repo           cacheRepo
	tokens         tokenSource
	recoveryClient DayFetcher
	bodyClient     DayFetcher
	workoutClient  WorkoutFetcher
	metrics        *metrics.Manager

	// injectable for freshness boundary tests
	now func() time.Time
}

func NewService(
	repo cacheRepo,
	tokens tokenSource,
	recoveryClient DayFetcher,
	bodyClient DayFetcher,
	workoutClient WorkoutFetcher,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		repo:           repo,
		tokens:         tokens,
		recoveryClient: recoveryClient,
		bodyClient:     bodyClient,
		workoutClient:  workoutClient,
		metrics:        metricsManager,
		now:            time.Now,
	}
}

// GetHealthData serves cached data while fresh, otherwise resyncs from
// the connected providers. A provider failure downgrades to partial
// data, never to an error for the whole call.
func (s *Service) GetHealthData(ctx context.Context, userID string) (_ *HealthData, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "healthdata.service.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	connected, err := s.tokens.ConnectedProviders(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(connected) > 0 {
		lastSyncedAt, err := s.repo.LastSyncedAt(ctx, userID)
		if err != nil {
			return nil, err
		}
		if lastSyncedAt != nil && s.now().Sub(*lastSyncedAt) < freshnessWindow {
			s.metrics.CounterCacheReads.WithLabelValues("hit").Inc()
			span.SetAttributes(attribute.Bool("cached", true))
			return s.readCached(ctx, userID, connected)
		}
	}

	s.metrics.CounterCacheReads.WithLabelValues("miss").Inc()
	span.SetAttributes(attribute.Bool("cached", false))
	return s.resync(ctx, userID, connected)
}

// Resync bypasses the freshness check, used by provider webhooks.
func (s *Service) Resync(ctx context.Context, userID string) (*HealthData, error) {
	connected, err := s.tokens.ConnectedProviders(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resync(ctx, userID, connected)
}

func (s *Service) readCached(ctx context.Context, userID string, connected []providers.Provider) (*HealthData, error) {
	days, err := s.repo.GetDays(ctx, userID)
	if err != nil {
		return nil, err
	}
	workouts, err := s.repo.GetWorkouts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &HealthData{
		Providers: connected,
		Days:      days,
		Workouts:  workouts,
		Cached:    true,
	}, nil
}

func (s *Service) resync(ctx context.Context, userID string, connected []providers.Provider) (*HealthData, error) {
	connectedSet := map[providers.Provider]bool{}
	for _, p := range connected {
		connectedSet[p] = true
	}

	var (
		recoveryDays []DayRecord
		bodyDays     []DayRecord
		workouts     []WorkoutRecord
	)

	// a disconnected provider is simply excluded from the fetch set;
	// a failing one contributes nothing and the others still count
	var wg sync.WaitGroup
	if connectedSet[providers.ProviderWhoop] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recoveryDays = fetchGuarded(ctx, s, userID, providers.ProviderWhoop, s.recoveryClient.FetchRecentData)
		}()
	}
	if connectedSet[providers.ProviderWithings] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bodyDays = fetchGuarded(ctx, s, userID, providers.ProviderWithings, s.bodyClient.FetchRecentData)
		}()
	}
	if connectedSet[providers.ProviderHevy] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workouts = fetchGuarded(ctx, s, userID, providers.ProviderHevy, s.workoutClient.FetchRecentData)
		}()
	}
	wg.Wait()

	days, workouts := MergeProviderData(recoveryDays, bodyDays, workouts)

	// write-through; a failed cache write is logged and the fresh data
	// still goes out, the next read simply refetches
	syncedAt := s.now()
	if len(days) > 0 {
		if err := s.repo.UpsertDays(ctx, userID, days, syncedAt); err != nil {
			log.Errorf("[healthdata] cache write days for user %s: %s", userID, err)
		}
	}
	if len(workouts) > 0 {
		if err := s.repo.UpsertWorkouts(ctx, userID, workouts, syncedAt); err != nil {
			log.Errorf("[healthdata] cache write workouts for user %s: %s", userID, err)
		}
	}

	return &HealthData{
		Providers: connected,
		Days:      days,
		Workouts:  workouts,
		Cached:    false,
	}, nil
}

func fetchGuarded[T any](
	ctx context.Context,
	s *Service,
	userID string,
	provider providers.Provider,
	fetch func(ctx context.Context, credential string) ([]T, error),
) []T {
	started := s.now()

	credential, err := s.tokens.EnsureFreshAccessToken(ctx, userID, provider)
	if err != nil {
		s.metrics.CounterProviderSyncs.WithLabelValues(string(provider), "error").Inc()
		log.Errorf("[healthdata] get %s credential for user %s: %s", provider, userID, err)
		return nil
	}

	records, err := fetch(ctx, credential)
	s.metrics.HistProviderFetchDuration.
		WithLabelValues(string(provider)).
		Observe(s.now().Sub(started).Seconds())
	if err != nil {
		s.metrics.CounterProviderSyncs.WithLabelValues(string(provider), "error").Inc()
		log.Errorf("[healthdata] fetch %s data for user %s: %s", provider, userID, err)
		return nil
	}

	s.metrics.CounterProviderSyncs.WithLabelValues(string(provider), "success").Inc()
	return records
}

// DeleteAllForUser wipes the user's cached rows, part of account
// deletion.
func (s *Service) DeleteAllForUser(ctx context.Context, userID string) error {
	return s.repo.DeleteAllForUser(ctx, userID)
}

// CachedData reads whatever is cached without any freshness check or
// provider call. The chat context assembler builds on this.
func (s *Service) CachedData(ctx context.Context, userID string) ([]DayRecord, []WorkoutRecord, error) {
	days, err := s.repo.GetDays(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	workouts, err := s.repo.GetWorkouts(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return days, workouts, nil
}
