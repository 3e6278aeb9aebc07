package goals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/starkhealth/backend/internal/auth"
	"github.com/starkhealth/backend/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type goalsRepo interface {
	Add(ctx context.Context, goal *Goal) (*Goal, error)
	ListForUser(ctx context.Context, userID string) ([]Goal, error)
	Delete(ctx context.Context, userID string, goalID int) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

type Handler struct {
	repo goalsRepo
}

func NewHandler(repo goalsRepo) *Handler {
	return &Handler{
		repo: repo,
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	goals, err := handler.repo.ListForUser(r.Context(), userID)
	if err != nil {
		log.Errorf("list goals for user %s: %s", userID, err)
		http.Error(w, "failed to list goals", http.StatusInternalServerError)
		return
	}
	if goals == nil {
		goals = []Goal{}
	}

	goalsJson, err := json.Marshal(map[string][]Goal{"goals": goals})
	if err != nil {
		log.Errorf("marshal goals: %s", err)
		http.Error(w, "marshal goals error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(goalsJson))
}

type addGoalRequest struct {
	Metric      string    `json:"metric"`
	Label       string    `json:"label"`
	TargetValue *float64  `json:"target_value"`
	Direction   Direction `json:"direction"`
	TargetDate  *string   `json:"target_date"`
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req addGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Metric == "" || req.Label == "" || req.TargetValue == nil || !req.Direction.Valid() {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}

	goal, err := handler.repo.Add(r.Context(), &Goal{
		UserID:      userID,
		Metric:      req.Metric,
		Label:       req.Label,
		TargetValue: *req.TargetValue,
		Direction:   req.Direction,
		TargetDate:  req.TargetDate,
	})
	if err != nil {
		log.Errorf("add goal for user %s: %s", userID, err)
		http.Error(w, "failed to add goal", http.StatusInternalServerError)
		return
	}

	log.Debugf("new goal added for user %s: [%s] %d", userID, goal.Metric, goal.ID)

	goalJson, err := json.Marshal(map[string]*Goal{"goal": goal})
	if err != nil {
		log.Errorf("marshal goal: %s", err)
		http.Error(w, "marshal goal error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, goalJson, http.StatusCreated)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	goalID, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "invalid goal id", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(r.Context(), userID, goalID); err != nil {
		if errors.Is(err, ErrGoalNotFound) {
			http.Error(w, "goal not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete goal %d for user %s: %s", goalID, userID, err)
		http.Error(w, "failed to delete goal", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "deleted")
}
