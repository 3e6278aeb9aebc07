package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/starkhealth/backend/internal/auth"
	"github.com/starkhealth/backend/internal/healthdata"
	"github.com/starkhealth/backend/pkg"

	log "github.com/sirupsen/logrus"
)

type cachedDataSource interface {
	CachedData(ctx context.Context, userID string) ([]healthdata.DayRecord, []healthdata.WorkoutRecord, error)
}

// Handler serves the derived analytics over whatever is cached. It
// deliberately does not trigger a provider resync: the dashboard fetches
// /health-data first, which does.
type Handler struct {
	source cachedDataSource
}

func NewHandler(source cachedDataSource) *Handler {
	return &Handler{
		source: source,
	}
}

type analyticsResponse struct {
	HealthScore   HealthScore  `json:"healthScore"`
	TrainingScore int          `json:"trainingScore"`
	MuscleFatigue []MuscleLoad `json:"muscleFatigue"`
	Insights      []Insight    `json:"insights"`
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	days, workouts, err := handler.source.CachedData(r.Context(), userID)
	if err != nil {
		log.Errorf("get cached data for analytics, user %s: %s", userID, err)
		http.Error(w, "failed to get analytics", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	response := analyticsResponse{
		HealthScore:   ComputeHealthScore(days, workouts, now),
		TrainingScore: ComputeTrainingScore(workouts, now),
		MuscleFatigue: ComputeMuscleFatigue(workouts, now),
		Insights:      ComputeInsights(days, workouts, now),
	}

	responseJson, err := json.Marshal(response)
	if err != nil {
		log.Errorf("marshal analytics response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(responseJson))
}
