package healthdata

import (
	"encoding/json"
	"net/http"

	"github.com/starkhealth/backend/internal/auth"
	"github.com/starkhealth/backend/internal/providers"
	"github.com/starkhealth/backend/pkg"

	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	data, err := handler.service.GetHealthData(r.Context(), userID)
	if err != nil {
		log.Errorf("get health data for user %s: %s", userID, err)
		http.Error(w, "failed to get health data", http.StatusInternalServerError)
		return
	}

	if data.Days == nil {
		data.Days = []DayRecord{}
	}
	if data.Workouts == nil {
		data.Workouts = []WorkoutRecord{}
	}
	if data.Providers == nil {
		data.Providers = []providers.Provider{}
	}

	dataJson, err := json.Marshal(data)
	if err != nil {
		log.Errorf("marshal health data: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(dataJson))
}
