// Package withings is the body composition adapter: weight, body fat,
// muscle mass and steps from the smart scale service.
package withings

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/starkhealth/backend/internal/healthdata"
	"github.com/starkhealth/backend/internal/providers"
	"github.com/starkhealth/backend/internal/providers/tokens"
	"github.com/starkhealth/backend/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
)

const (
	fetchWindowDays = 30

	// measurement type codes: weight kg, fat ratio %, muscle mass kg
	measTypeWeight     = 1
	measTypeFatRatio   = 6
	measTypeMuscleMass = 76

	// category 1 = real measurements (2 would be user objectives)
	categoryReal = "1"
)

type Client struct {
	httpClient   *http.Client
	apiURL       string
	authURL      string
	clientID     string
	clientSecret string
	redirectURL  string
}

var _ tokens.Refresher = (*Client)(nil)
var _ tokens.OAuthProvider = (*Client)(nil)

func NewClient(
	httpClient *http.Client,
	apiURL, authURL string,
	clientID, clientSecret, redirectURL string,
) *Client {
	return &Client{
		httpClient:   httpClient,
		apiURL:       apiURL,
		authURL:      authURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
	}
}

func (c *Client) AuthCodeURL(state string) string {
	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", c.clientID)
	query.Set("redirect_uri", c.redirectURL)
	query.Set("scope", "user.metrics,user.activity")
	query.Set("state", state)
	return fmt.Sprintf("%s/oauth2_user/authorize2?%s", c.authURL, query.Encode())
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

// tokenExchange hits /v2/oauth2 with action=requesttoken. The endpoint
// answers HTTP 200 even for failures, the real outcome is the status
// field in the body.
func (c *Client) tokenExchange(ctx context.Context, form url.Values) (_ *tokens.RefreshedCredentials, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "withings.tokenExchange")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	form.Set("action", "requesttoken")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	var tokenResp tokenResponse
	if err := c.postForm(ctx, "/v2/oauth2", "", form, &tokenResp); err != nil {
		return nil, err
	}

	if tokenResp.Status != 0 || tokenResp.Body.AccessToken == "" {
		return nil, fmt.Errorf("token exchange failed [api status %d]", tokenResp.Status)
	}

	return &tokens.RefreshedCredentials{
		AccessToken:  tokenResp.Body.AccessToken,
		RefreshToken: tokenResp.Body.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.Body.ExpiresIn) * time.Second),
	}, nil
}

// FetchRecentData pulls measurement groups and daily step counts for
// the last 30 days and joins them by calendar date. A failed steps
// fetch only logs: body metrics alone are still worth returning.
func (c *Client) FetchRecentData(ctx context.Context, accessToken string) (_ []healthdata.DayRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "withings.fetchRecentData")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	now := time.Now()
	start := now.AddDate(0, 0, -fetchWindowDays)

	dayMap := map[string]*healthdata.DayRecord{}
	dayFor := func(date string) *healthdata.DayRecord {
		if day, ok := dayMap[date]; ok {
			return day
		}
		day := healthdata.NewDayRecord(date)
		dayMap[date] = &day
		return &day
	}

	if err := c.fetchMeasures(ctx, accessToken, start, now, dayFor); err != nil {
		return nil, err
	}

	if err := c.fetchSteps(ctx, accessToken, start, now, dayFor); err != nil {
		log.Errorf("[withings] steps fetch failed: %s", err)
	}

	days := make([]healthdata.DayRecord, 0, len(dayMap))
	for _, day := range dayMap {
		days = append(days, *day)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})
	return days, nil
}

func (c *Client) fetchMeasures(
	ctx context.Context, accessToken string,
	start, end time.Time,
	dayFor func(date string) *healthdata.DayRecord,
) error {
	form := url.Values{}
	form.Set("action", "getmeas")
	form.Set("meastypes", fmt.Sprintf("%d,%d,%d", measTypeWeight, measTypeFatRatio, measTypeMuscleMass))
	form.Set("startdate", strconv.FormatInt(start.Unix(), 10))
	form.Set("enddate", strconv.FormatInt(end.Unix(), 10))
	form.Set("category", categoryReal)

	var measResp measureResponse
	if err := c.postForm(ctx, "/measure", accessToken, form, &measResp); err != nil {
		return fmt.Errorf("get measures: %w", err)
	}
	if measResp.Status != 0 {
		return fmt.Errorf("get measures: api status %d", measResp.Status)
	}

	for _, group := range measResp.Body.MeasureGroups {
		day := dayFor(time.Unix(group.Date, 0).UTC().Format("2006-01-02"))
		for _, m := range group.Measures {
			value := decodeScaled(m.Value, m.Unit)
			switch m.Type {
			case measTypeWeight:
				day.Weight = healthdata.Float64Ptr(value)
			case measTypeFatRatio:
				day.BodyFat = healthdata.Float64Ptr(value)
			case measTypeMuscleMass:
				day.MuscleMass = healthdata.Float64Ptr(value)
			}
		}
	}
	return nil
}

func (c *Client) fetchSteps(
	ctx context.Context, accessToken string,
	start, end time.Time,
	dayFor func(date string) *healthdata.DayRecord,
) error {
	form := url.Values{}
	form.Set("action", "getactivity")
	form.Set("startdateymd", start.UTC().Format("2006-01-02"))
	form.Set("enddateymd", end.UTC().Format("2006-01-02"))

	var actResp activityResponse
	if err := c.postForm(ctx, "/v2/measure", accessToken, form, &actResp); err != nil {
		return fmt.Errorf("get activity: %w", err)
	}
	if actResp.Status != 0 {
		return fmt.Errorf("get activity: api status %d", actResp.Status)
	}

	for _, a := range actResp.Body.Activities {
		dayFor(a.Date).Steps = healthdata.IntPtr(a.Steps)
	}
	return nil
}

func (c *Client) postForm(
	ctx context.Context, path, accessToken string, form url.Values, out any,
) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		fmt.Sprintf("%s%s", c.apiURL, path),
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accessToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &providers.UnavailableError{Provider: providers.ProviderWithings, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return providers.ErrInvalidCredential
	default:
		return &providers.UnavailableError{
			Provider:   providers.ProviderWithings,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status"),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// decodeScaled turns the scaled-integer encoding (value x 10^unit, unit
// typically negative) into a real value rounded to one decimal.
func decodeScaled(value int64, unit int) float64 {
	return math.Round(float64(value)*math.Pow(10, float64(unit))*10) / 10
}
