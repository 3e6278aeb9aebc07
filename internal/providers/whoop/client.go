// Package whoop is the recovery wearable adapter: recovery, strain and
// sleep metrics over the recent window, joined into day records.
package whoop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starkhealth/backend/internal/healthdata"
	"github.com/starkhealth/backend/internal/providers"
	"github.com/starkhealth/backend/internal/providers/tokens"
	"github.com/starkhealth/backend/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"
)

const (
	fetchWindowDays = 30
	pageSize        = 25
	// hard cap per endpoint, pagination stops here even with a next token
	maxRecords = 100

	pathRecovery = "/v2/recovery"
	pathCycle    = "/v2/cycle"
	pathSleep    = "/v2/activity/sleep"

	kilojoulesPerKcal = 4.184
)

type Client struct {
	httpClient   *http.Client
	apiURL       string
	oauthURL     string
	clientID     string
	clientSecret string
	redirectURL  string
	limiter      *rate.Limiter
}

var _ tokens.Refresher = (*Client)(nil)
var _ tokens.OAuthProvider = (*Client)(nil)

func NewClient(
	httpClient *http.Client,
	apiURL, oauthURL string,
	clientID, clientSecret, redirectURL string,
) *Client {
	return &Client{
		httpClient:   httpClient,
		apiURL:       apiURL,
		oauthURL:     oauthURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		limiter:      rate.NewLimiter(rate.Limit(10), 10),
	}
}

func (c *Client) AuthCodeURL(state string) string {
	query := url.Values{}
	query.Set("client_id", c.clientID)
	query.Set("redirect_uri", c.redirectURL)
	query.Set("response_type", "code")
	query.Set("scope", "read:recovery read:cycles read:sleep offline")
	query.Set("state", state)
	return fmt.Sprintf("%s/oauth/oauth2/auth?%s", c.oauthURL, query.Encode())
}

func (c *Client) ExchangeCode(ctx context.Context, code string) (*tokens.RefreshedCredentials, error) {
	return c.tokenExchange(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.redirectURL},
	})
}

func (c *Client) RefreshCredentials(ctx context.Context, refreshToken string) (*tokens.RefreshedCredentials, error) {
	return c.tokenExchange(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}

func (c *Client) tokenExchange(ctx context.Context, form url.Values) (_ *tokens.RefreshedCredentials, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "whoop.tokenExchange")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		fmt.Sprintf("%s/oauth/oauth2/token", c.oauthURL),
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &providers.UnavailableError{Provider: providers.ProviderWhoop, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("token exchange failed [status %d]: %s", resp.StatusCode, body)
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token exchange returned no access token")
	}

	return &tokens.RefreshedCredentials{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}

// FetchRecentData pulls recovery, cycle and sleep records for the last
// 30 days concurrently and joins them by calendar date.
func (c *Client) FetchRecentData(ctx context.Context, accessToken string) (_ []healthdata.DayRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "whoop.fetchRecentData")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	start := time.Now().AddDate(0, 0, -fetchWindowDays).UTC().Format(time.RFC3339)

	var (
		recoveries []recovery
		cycles     []cycle
		sleeps     []sleep

		recoveriesErr, cyclesErr, sleepsErr error
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		recoveries, recoveriesErr = fetchAll[recovery](ctx, c, accessToken, pathRecovery, start)
	}()
	go func() {
		defer wg.Done()
		cycles, cyclesErr = fetchAll[cycle](ctx, c, accessToken, pathCycle, start)
	}()
	go func() {
		defer wg.Done()
		sleeps, sleepsErr = fetchAll[sleep](ctx, c, accessToken, pathSleep, start)
	}()
	wg.Wait()

	if err := multierr.Combine(recoveriesErr, cyclesErr, sleepsErr); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("recoveries", len(recoveries)),
		attribute.Int("cycles", len(cycles)),
		attribute.Int("sleeps", len(sleeps)),
	)

	return joinByDate(recoveries, cycles, sleeps), nil
}

func fetchAll[T any](ctx context.Context, c *Client, accessToken, path, start string) ([]T, error) {
	var all []T
	nextToken := ""
	for {
		page, err := fetchPage[T](ctx, c, accessToken, path, start, nextToken)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", path, err)
		}

		all = append(all, page.Records...)
		if page.NextToken == nil || *page.NextToken == "" || len(all) >= maxRecords {
			return all, nil
		}
		nextToken = *page.NextToken
	}
}

func fetchPage[T any](
	ctx context.Context, c *Client, accessToken, path, start, nextToken string,
) (*paginatedResponse[T], error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("start", start)
	query.Set("limit", fmt.Sprintf("%d", pageSize))
	if nextToken != "" {
		query.Set("nextToken", nextToken)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		fmt.Sprintf("%s%s?%s", c.apiURL, path, query.Encode()),
		nil,
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &providers.UnavailableError{Provider: providers.ProviderWhoop, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, providers.ErrInvalidCredential
	default:
		return nil, &providers.UnavailableError{
			Provider:   providers.ProviderWhoop,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status"),
		}
	}

	var page paginatedResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &page, nil
}

// joinByDate folds the three record streams into day records. Cycles
// carry strain and calories, recoveries attach via their cycle id (date
// falls back to the recovery's own timestamp when the cycle is unknown),
// sleeps carry the stage breakdown. Naps are excluded.
func joinByDate(recoveries []recovery, cycles []cycle, sleeps []sleep) []healthdata.DayRecord {
	dayMap := map[string]*healthdata.DayRecord{}
	dayFor := func(date string) *healthdata.DayRecord {
		if day, ok := dayMap[date]; ok {
			return day
		}
		day := healthdata.NewDayRecord(date)
		dayMap[date] = &day
		return &day
	}

	cycleDates := make(map[int64]string, len(cycles))
	for _, c := range cycles {
		date := isoDate(c.Start, c.CreatedAt)
		cycleDates[c.ID] = date

		day := dayFor(date)
		if c.Score != nil {
			day.Strain = healthdata.Float64Ptr(round1(c.Score.Strain))
			day.Calories = healthdata.IntPtr(int(math.Round(c.Score.Kilojoule / kilojoulesPerKcal)))
		}
	}

	for _, r := range recoveries {
		date, ok := cycleDates[r.CycleID]
		if !ok {
			date = isoDate(r.CreatedAt, "")
		}
		day, ok := dayMap[date]
		if !ok {
			continue
		}
		if r.Score != nil {
			day.Recovery = healthdata.IntPtr(int(math.Round(r.Score.RecoveryScore)))
			day.HRV = healthdata.Float64Ptr(round1(r.Score.HRVRmssdMilli))
			day.RHR = healthdata.IntPtr(int(math.Round(r.Score.RestingHeartRate)))
		}
	}

	for _, s := range sleeps {
		if s.Nap {
			continue
		}
		day := dayFor(isoDate(s.Start, s.CreatedAt))
		if s.Score == nil {
			continue
		}
		if summary := s.Score.StageSummary; summary != nil {
			day.DeepSleep = healthdata.Float64Ptr(msToHours(summary.TotalSlowWaveSleepTimeMilli))
			day.REMSleep = healthdata.Float64Ptr(msToHours(summary.TotalREMSleepTimeMilli))
			day.LightSleep = healthdata.Float64Ptr(msToHours(summary.TotalLightSleepTimeMilli))
			day.Awake = healthdata.Float64Ptr(msToHours(summary.TotalAwakeTimeMilli))
			day.SleepHours = healthdata.Float64Ptr(
				msToHours(summary.TotalInBedTimeMilli - summary.TotalAwakeTimeMilli),
			)
		}
		if s.Score.SleepPerformancePercentage > 0 {
			day.SleepScore = healthdata.IntPtr(int(math.Round(s.Score.SleepPerformancePercentage)))
		}
	}

	days := make([]healthdata.DayRecord, 0, len(dayMap))
	for _, day := range dayMap {
		days = append(days, *day)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})
	return days
}

// isoDate extracts yyyy-mm-dd from an RFC3339 timestamp, preferring the
// first non-empty one.
func isoDate(primary, fallback string) string {
	ts := primary
	if ts == "" {
		ts = fallback
	}
	date, _, _ := strings.Cut(ts, "T")
	return date
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func msToHours(ms float64) float64 {
	return round1(ms / 3600000)
}
