package settings

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/starkhealth/backend/internal/auth"
	"github.com/starkhealth/backend/pkg"

	log "github.com/sirupsen/logrus"
)

type profilesRepo interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Upsert(ctx context.Context, profile *Profile) error
	Delete(ctx context.Context, userID string) error
}

type Handler struct {
	repo         profilesRepo
	defaultModel string
}

func NewHandler(repo profilesRepo, defaultModel string) *Handler {
	return &Handler{
		repo:         repo,
		defaultModel: defaultModel,
	}
}

type settingsResponse struct {
	APIKeyMasked string `json:"api_key_masked"`
	HasAPIKey    bool   `json:"has_api_key"`
	AIModel      string `json:"ai_model"`
	Units        Units  `json:"units"`
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	profile, err := handler.repo.Get(r.Context(), userID)
	if err != nil {
		log.Errorf("get settings for user %s: %s", userID, err)
		http.Error(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	resp := settingsResponse{
		APIKeyMasked: MaskKey(profile.APIKey),
		HasAPIKey:    profile.APIKey != "",
		AIModel:      profile.AIModel,
		Units:        profile.Units,
	}
	if resp.AIModel == "" {
		resp.AIModel = handler.defaultModel
	}
	if resp.Units == "" {
		resp.Units = UnitsMetric
	}

	respJson, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("marshal settings: %s", err)
		http.Error(w, "marshal settings error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(respJson))
}

type updateSettingsRequest struct {
	APIKey  *string `json:"api_key"`
	AIModel *string `json:"ai_model"`
	Units   *Units  `json:"units"`
}

// HandleUpdate applies only the fields present in the request; absent
// fields keep their stored values.
func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Units != nil && !req.Units.Valid() {
		http.Error(w, "invalid units", http.StatusBadRequest)
		return
	}

	profile, err := handler.repo.Get(r.Context(), userID)
	if err != nil {
		log.Errorf("get settings for user %s: %s", userID, err)
		http.Error(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	if req.APIKey != nil {
		profile.APIKey = *req.APIKey
	}
	if req.AIModel != nil {
		profile.AIModel = *req.AIModel
	}
	if req.Units != nil {
		profile.Units = *req.Units
	}

	if err := handler.repo.Upsert(r.Context(), profile); err != nil {
		log.Errorf("update settings for user %s: %s", userID, err)
		http.Error(w, "failed to update settings", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "updated")
}
