// Package hevy is the workout log adapter. Unlike the OAuth providers it
// authenticates with a static API key sent on every request.
package hevy

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/starkhealth/backend/internal/healthdata"
	"github.com/starkhealth/backend/internal/providers"
	"github.com/starkhealth/backend/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	apiKeyHeader = "api-key"

	workoutsPageSize = 10
	workoutsMaxPages = 5

	templatesPageSize = 100
	templatesMaxPages = 20

	// the exercise template catalog barely changes, cache it in memory
	// so a resync does not re-walk up to 20 catalog pages
	templateCacheTTLSeconds = 3600
)

// muscleNameMap translates the provider's muscle taxonomy onto the
// canonical body-map groups. Anything unmapped falls back to core.
var muscleNameMap = map[string]healthdata.MuscleGroup{
	"abdominals": healthdata.MuscleCore,
	"adductors":  healthdata.MuscleQuads,
	"biceps":     healthdata.MuscleBiceps,
	"calves":     healthdata.MuscleCalves,
	"cardio":     healthdata.MuscleCore,
	"chest":      healthdata.MuscleChest,
	"forearms":   healthdata.MuscleForearms,
	"full_body":  healthdata.MuscleCore,
	"glutes":     healthdata.MuscleGlutes,
	"hamstrings": healthdata.MuscleHamstrings,
	"lats":       healthdata.MuscleBack,
	"lower_back": healthdata.MuscleBack,
	"quadriceps": healthdata.MuscleQuads,
	"shoulders":  healthdata.MuscleShoulders,
	"traps":      healthdata.MuscleTraps,
	"triceps":    healthdata.MuscleTriceps,
	"upper_back": healthdata.MuscleBack,
	"other":      healthdata.MuscleCore,
}

func mapMuscle(hevyName string) healthdata.MuscleGroup {
	if mapped, ok := muscleNameMap[hevyName]; ok {
		return mapped
	}
	return healthdata.MuscleCore
}

type templateMuscles struct {
	Primary   healthdata.MuscleGroup   `json:"primary"`
	Secondary []healthdata.MuscleGroup `json:"secondary"`
}

type Client struct {
	httpClient    *http.Client
	apiURL        string
	templateCache *freecache.Cache
}

func NewClient(httpClient *http.Client, apiURL string, templateCache *freecache.Cache) *Client {
	return &Client{
		httpClient:    httpClient,
		apiURL:        apiURL,
		templateCache: templateCache,
	}
}

// ValidateKey probes the workouts endpoint with the given key. Used when
// a user submits a key in settings, before it gets stored.
func (c *Client) ValidateKey(ctx context.Context, apiKey string) error {
	var resp workoutsResponse
	if err := c.get(ctx, apiKey, "/v1/workouts?page=1&pageSize=1", &resp); err != nil {
		return err
	}
	return nil
}

// FetchRecentData pulls the workout history (bounded page count) and
// resolves each exercise's muscle groups through the template catalog,
// returning workouts sorted chronologically ascending.
func (c *Client) FetchRecentData(ctx context.Context, apiKey string) (_ []healthdata.WorkoutRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "hevy.fetchRecentData")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	templates, err := c.exerciseTemplates(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("fetch exercise templates: %w", err)
	}

	var workouts []healthdata.WorkoutRecord

	for page := 1; page <= workoutsMaxPages; page++ {
		var resp workoutsResponse
		path := fmt.Sprintf("/v1/workouts?page=%d&pageSize=%d", page, workoutsPageSize)
		if err := c.get(ctx, apiKey, path, &resp); err != nil {
			return nil, fmt.Errorf("fetch workouts page %d: %w", page, err)
		}
		if len(resp.Workouts) == 0 {
			break
		}

		for _, w := range resp.Workouts {
			workouts = append(workouts, toWorkoutRecord(w, templates))
		}

		if resp.PageCount > 0 && page >= resp.PageCount {
			break
		}
	}

	sort.Slice(workouts, func(i, j int) bool {
		return workouts[i].Date < workouts[j].Date
	})

	span.SetAttributes(attribute.Int("workouts", len(workouts)))
	return workouts, nil
}

// exerciseTemplates returns the template id to muscle-groups catalog,
// reading through the in-memory cache.
func (c *Client) exerciseTemplates(ctx context.Context, apiKey string) (map[string]templateMuscles, error) {
	cacheKey := templateCacheKey(apiKey)
	if cached, err := c.templateCache.Get(cacheKey); err == nil {
		var templates map[string]templateMuscles
		if err := json.Unmarshal(cached, &templates); err == nil {
			return templates, nil
		}
		log.Errorf("[hevy] corrupt cached template catalog, refetching")
	}

	templates := map[string]templateMuscles{}
	for page := 1; page <= templatesMaxPages; page++ {
		var resp templatesResponse
		path := fmt.Sprintf("/v1/exercise_templates?page=%d&pageSize=%d", page, templatesPageSize)
		if err := c.get(ctx, apiKey, path, &resp); err != nil {
			return nil, err
		}
		if len(resp.ExerciseTemplates) == 0 {
			break
		}

		for _, t := range resp.ExerciseTemplates {
			primary := t.PrimaryMuscleGroup
			if primary == "" {
				primary = "other"
			}
			secondary := make([]healthdata.MuscleGroup, 0, len(t.SecondaryMuscleGroups))
			for _, m := range t.SecondaryMuscleGroups {
				secondary = append(secondary, mapMuscle(m))
			}
			templates[t.ID] = templateMuscles{
				Primary:   mapMuscle(primary),
				Secondary: secondary,
			}
		}

		if resp.PageCount > 0 && page >= resp.PageCount {
			break
		}
	}

	if encoded, err := json.Marshal(templates); err == nil {
		if err := c.templateCache.Set(cacheKey, encoded, templateCacheTTLSeconds); err != nil {
			log.Errorf("[hevy] cache template catalog: %s", err)
		}
	}

	return templates, nil
}

func templateCacheKey(apiKey string) []byte {
	// the raw key never goes into the cache
	digest := sha256.Sum256([]byte(apiKey))
	return []byte(fmt.Sprintf("exercise-templates::%x", digest[:8]))
}

func toWorkoutRecord(w apiWorkout, templates map[string]templateMuscles) healthdata.WorkoutRecord {
	startTime := w.StartTime
	if startTime == "" {
		startTime = w.CreatedAt
	}
	endTime := w.EndTime
	if endTime == "" {
		endTime = w.UpdatedAt
	}

	exercises := make([]healthdata.Exercise, 0, len(w.Exercises))
	for _, ex := range w.Exercises {
		muscles, ok := templates[ex.ExerciseTemplateID]
		if !ok {
			muscles = templateMuscles{Primary: healthdata.MuscleCore}
		}

		name := ex.Title
		if name == "" {
			name = "Unknown"
		}

		sets := make([]healthdata.ExerciseSet, 0, len(ex.Sets))
		for _, s := range ex.Sets {
			sets = append(sets, healthdata.ExerciseSet{
				WeightKg: s.WeightKg,
				Reps:     s.Reps,
				RPE:      s.RPE,
				Type:     setType(s.Type),
			})
		}

		exercises = append(exercises, healthdata.Exercise{
			Name:             name,
			MuscleGroup:      muscles.Primary,
			SecondaryMuscles: muscles.Secondary,
			Sets:             sets,
		})
	}

	title := w.Title
	if title == "" {
		title = "Workout"
	}

	return healthdata.WorkoutRecord{
		ID:          w.ID,
		Date:        isoDate(startTime),
		Title:       title,
		DurationMin: durationMinutes(startTime, endTime),
		Exercises:   exercises,
	}
}

func setType(raw string) healthdata.SetType {
	switch raw {
	case "warmup":
		return healthdata.SetWarmup
	case "dropset":
		return healthdata.SetDropset
	}
	return healthdata.SetNormal
}

func durationMinutes(startTime, endTime string) int {
	start, startErr := time.Parse(time.RFC3339, startTime)
	end, endErr := time.Parse(time.RFC3339, endTime)
	if startErr != nil || endErr != nil {
		return 0
	}
	return int(math.Round(end.Sub(start).Minutes()))
}

func isoDate(ts string) string {
	date, _, _ := strings.Cut(ts, "T")
	return date
}

func (c *Client) get(ctx context.Context, apiKey, path string, out any) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		fmt.Sprintf("%s%s", c.apiURL, path),
		nil,
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &providers.UnavailableError{Provider: providers.ProviderHevy, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return providers.ErrInvalidCredential
	default:
		return &providers.UnavailableError{
			Provider:   providers.ProviderHevy,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status"),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
