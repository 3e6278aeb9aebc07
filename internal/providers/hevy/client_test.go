package hevy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starkhealth/backend/internal/healthdata"
	"github.com/starkhealth/backend/internal/providers"

	"github.com/coocood/freecache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const templatesPage1 = `{"exercise_templates":[
	{"id":"tpl-bench","title":"Bench Press (Barbell)",
	 "primary_muscle_group":"chest","secondary_muscle_groups":["triceps","shoulders"]},
	{"id":"tpl-row","title":"Bent Over Row",
	 "primary_muscle_group":"upper_back","secondary_muscle_groups":["biceps"]},
	{"id":"tpl-weird","title":"Mystery Machine",
	 "primary_muscle_group":"antigravity_muscle","secondary_muscle_groups":[]}
],"page_count":1}`

const workoutsPage1 = `{"workouts":[
	{"id":"w2","title":"Push Day",
	 "start_time":"2026-08-28T17:00:00Z","end_time":"2026-08-28T18:10:00Z",
	 "exercises":[
		{"title":"Bench Press (Barbell)","exercise_template_id":"tpl-bench","sets":[
			{"weight_kg":60,"reps":10,"type":"warmup"},
			{"weight_kg":100,"reps":5,"rpe":8.5,"type":"normal"}
		]},
		{"title":"Mystery Machine","exercise_template_id":"tpl-weird","sets":[
			{"weight_kg":40,"reps":12,"type":"normal"}
		]}
	]},
	{"id":"w1","title":"Pull Day",
	 "start_time":"2026-08-26T17:00:00Z","end_time":"2026-08-26T17:45:00Z",
	 "exercises":[
		{"title":"Bent Over Row","exercise_template_id":"tpl-row","sets":[
			{"weight_kg":80,"reps":8,"type":"normal"}
		]}
	]}
],"page_count":1}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	testServer := httptest.NewServer(handler)
	t.Cleanup(testServer.Close)
	return NewClient(testServer.Client(), testServer.URL, freecache.NewCache(1024*1024))
}

func TestFetchRecentData(t *testing.T) {
	templateCalls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-api-key", r.Header.Get(apiKeyHeader))

		switch r.URL.Path {
		case "/v1/exercise_templates":
			templateCalls++
			fmt.Fprint(w, templatesPage1)
		case "/v1/workouts":
			fmt.Fprint(w, workoutsPage1)
		default:
			http.Error(w, "unexpected path", http.StatusBadRequest)
		}
	})

	workouts, err := client.FetchRecentData(context.Background(), "test-api-key")
	require.NoError(t, err)
	require.Len(t, workouts, 2)

	// sorted ascending by date despite provider returning newest first
	assert.Equal(t, "w1", workouts[0].ID)
	assert.Equal(t, "2026-08-26", workouts[0].Date)
	assert.Equal(t, 45, workouts[0].DurationMin)

	pushDay := workouts[1]
	assert.Equal(t, "Push Day", pushDay.Title)
	assert.Equal(t, 70, pushDay.DurationMin)
	require.Len(t, pushDay.Exercises, 2)

	bench := pushDay.Exercises[0]
	assert.Equal(t, healthdata.MuscleChest, bench.MuscleGroup)
	assert.Equal(t,
		[]healthdata.MuscleGroup{healthdata.MuscleTriceps, healthdata.MuscleShoulders},
		bench.SecondaryMuscles,
	)
	require.Len(t, bench.Sets, 2)
	assert.Equal(t, healthdata.SetWarmup, bench.Sets[0].Type)
	require.NotNil(t, bench.Sets[1].RPE)
	assert.Equal(t, 8.5, *bench.Sets[1].RPE)

	// unmapped provider muscle falls back to core
	assert.Equal(t, healthdata.MuscleCore, pushDay.Exercises[1].MuscleGroup)

	// warmup sets are excluded from volume
	assert.Equal(t, 100.0*5+40*12, pushDay.Volume())

	// second fetch reuses the cached template catalog
	_, err = client.FetchRecentData(context.Background(), "test-api-key")
	require.NoError(t, err)
	assert.Equal(t, 1, templateCalls)
}

func TestFetchRecentData_UnknownTemplate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/exercise_templates":
			fmt.Fprint(w, `{"exercise_templates":[],"page_count":1}`)
		case "/v1/workouts":
			fmt.Fprint(w, `{"workouts":[
				{"id":"w1","start_time":"2026-08-26T17:00:00Z","end_time":"2026-08-26T18:00:00Z",
				 "exercises":[{"exercise_template_id":"nope","sets":[]}]}
			],"page_count":1}`)
		default:
			http.Error(w, "unexpected path", http.StatusBadRequest)
		}
	})

	workouts, err := client.FetchRecentData(context.Background(), "test-api-key")
	require.NoError(t, err)
	require.Len(t, workouts, 1)
	require.Len(t, workouts[0].Exercises, 1)
	assert.Equal(t, healthdata.MuscleCore, workouts[0].Exercises[0].MuscleGroup)
	assert.Equal(t, "Unknown", workouts[0].Exercises[0].Name)
	assert.Equal(t, "Workout", workouts[0].Title)
}

func TestFetchRecentData_InvalidKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	_, err := client.FetchRecentData(context.Background(), "revoked-key")
	assert.ErrorIs(t, err, providers.ErrInvalidCredential)
}

func TestValidateKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(apiKeyHeader) != "good-key" {
			http.Error(w, "bad key", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"workouts":[],"page_count":1}`)
	})

	require.NoError(t, client.ValidateKey(context.Background(), "good-key"))
	assert.ErrorIs(t, client.ValidateKey(context.Background(), "bad-key"), providers.ErrInvalidCredential)
}
