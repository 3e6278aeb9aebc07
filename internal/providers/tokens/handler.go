package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/starkhealth/backend/internal/auth"
	"github.com/starkhealth/backend/internal/providers"
	"github.com/starkhealth/backend/internal/telemetry/metrics"
	"github.com/starkhealth/backend/pkg"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	oauthStateKeyPrefix = "stark-oauth-state||"
	oauthStateTTL       = 10 * time.Minute
)

// OAuthProvider is the part of a provider client the connect flow needs.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*RefreshedCredentials, error)
}

// KeyValidator checks an API key against the provider before storing it.
type KeyValidator interface {
	ValidateKey(ctx context.Context, apiKey string) error
}

type Handler struct {
	manager      *Manager
	oauth        map[providers.Provider]OAuthProvider
	keyValidator KeyValidator
	redisClient  *redis.Client
	siteBaseURL  string
	cronSecret   string
	metrics      *metrics.Manager
}

func NewHandler(
	manager *Manager,
	oauth map[providers.Provider]OAuthProvider,
	keyValidator KeyValidator,
	redisClient *redis.Client,
	siteBaseURL string,
	cronSecret string,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		manager:      manager,
		oauth:        oauth,
		keyValidator: keyValidator,
		redisClient:  redisClient,
		siteBaseURL:  siteBaseURL,
		cronSecret:   cronSecret,
		metrics:      metricsManager,
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	connected, err := handler.manager.ConnectedProviders(r.Context(), userID)
	if err != nil {
		log.Errorf("list connected providers for user %s: %s", userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if connected == nil {
		connected = []providers.Provider{}
	}

	connectedJson, err := json.Marshal(connected)
	if err != nil {
		log.Errorf("marshal connected providers: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(connectedJson))
}

// HandleConnect starts the OAuth flow: it binds a random state to the
// calling user in redis and returns the provider's authorize URL.
func (handler *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	provider, err := providers.ParseProvider(mux.Vars(r)["provider"])
	if err != nil {
		http.Error(w, "unknown provider", http.StatusBadRequest)
		return
	}

	oauthProvider, ok := handler.oauth[provider]
	if !ok {
		http.Error(w, "provider does not support oauth connect", http.StatusBadRequest)
		return
	}

	state, err := pkg.GenerateRandomString(32)
	if err != nil {
		log.Errorf("generate oauth state: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := handler.redisClient.Set(
		r.Context(),
		fmt.Sprintf("%s%s", oauthStateKeyPrefix, state),
		userID,
		oauthStateTTL,
	).Err(); err != nil {
		log.Errorf("store oauth state: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"url":%q}`, oauthProvider.AuthCodeURL(state)))
}

// HandleCallback finishes the OAuth flow. It runs without a session (the
// provider redirects the browser here), so the user is resolved from the
// state parameter stored by HandleConnect.
func (handler *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	provider, err := providers.ParseProvider(mux.Vars(r)["provider"])
	if err != nil {
		http.Error(w, "unknown provider", http.StatusBadRequest)
		return
	}

	oauthProvider, ok := handler.oauth[provider]
	if !ok {
		http.Error(w, "provider does not support oauth connect", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "missing code or state", http.StatusBadRequest)
		return
	}

	stateKey := fmt.Sprintf("%s%s", oauthStateKeyPrefix, state)
	userID, err := handler.redisClient.Get(r.Context(), stateKey).Result()
	if err != nil {
		log.Warnf("oauth callback for %s: unknown state: %s", provider, err)
		http.Error(w, "unknown or expired state", http.StatusBadRequest)
		return
	}
	if err := handler.redisClient.Del(r.Context(), stateKey).Err(); err != nil {
		log.Errorf("delete oauth state: %s", err)
	}

	creds, err := oauthProvider.ExchangeCode(r.Context(), code)
	if err != nil {
		log.Errorf("oauth code exchange for %s failed: %s", provider, err)
		http.Error(w, "code exchange failed", http.StatusBadGateway)
		return
	}

	expiresAt := creds.ExpiresAt
	if _, err := handler.manager.Connect(r.Context(), ProviderToken{
		UserID:       userID,
		Provider:     provider,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    &expiresAt,
	}); err != nil {
		log.Errorf("store %s credentials for user %s: %s", provider, userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("user %s connected provider %s", userID, provider)
	http.Redirect(w, r, fmt.Sprintf("%s/settings?connected=%s", handler.siteBaseURL, provider), http.StatusFound)
}

// HandleConnectHevy stores an API key credential after checking it
// against the provider.
func (handler *Handler) HandleConnectHevy(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var payload struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.APIKey == "" {
		http.Error(w, "api key missing", http.StatusBadRequest)
		return
	}

	if err := handler.keyValidator.ValidateKey(r.Context(), payload.APIKey); err != nil {
		log.Warnf("hevy api key validation for user %s failed: %s", userID, err)
		http.Error(w, "invalid api key", http.StatusUnauthorized)
		return
	}

	if _, err := handler.manager.Connect(r.Context(), ProviderToken{
		UserID:      userID,
		Provider:    providers.ProviderHevy,
		AccessToken: payload.APIKey,
	}); err != nil {
		log.Errorf("store hevy key for user %s: %s", userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, `{"connected":"hevy"}`)
}

func (handler *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	provider, err := providers.ParseProvider(mux.Vars(r)["provider"])
	if err != nil {
		http.Error(w, "unknown provider", http.StatusBadRequest)
		return
	}

	if err := handler.manager.Disconnect(r.Context(), userID, provider); err != nil {
		if err == ErrTokenNotFound {
			http.Error(w, "provider not connected", http.StatusNotFound)
			return
		}
		log.Errorf("disconnect %s for user %s: %s", provider, userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"disconnected":%q}`, provider))
}

// HandleRefreshJob is hit by the scheduler. It authenticates with a
// shared secret instead of a session.
func (handler *Handler) HandleRefreshJob(w http.ResponseWriter, r *http.Request) {
	if handler.cronSecret == "" ||
		r.Header.Get("Authorization") != fmt.Sprintf("Bearer %s", handler.cronSecret) {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	result, err := handler.manager.RunRefreshJob(r.Context())
	if err != nil {
		log.Errorf("token refresh job: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resultJson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(resultJson))
}
