package healthdata

import (
	"context"
	"net/http"

	"github.com/starkhealth/backend/internal/providers"
	"github.com/starkhealth/backend/pkg"

	log "github.com/sirupsen/logrus"
)

type providerUserLister interface {
	UserIDsForProvider(ctx context.Context, provider providers.Provider) ([]string, error)
}

// WebhookHandler receives provider data notifications. The notification
// payload carries no usable user mapping, so it triggers a best-effort
// resync for every user connected to that provider.
// TODO: map the notification's provider-side user id to ours once the
// account linking table stores it, and resync just that user.
type WebhookHandler struct {
	service *Service
	users   providerUserLister
}

func NewWebhookHandler(service *Service, users providerUserLister) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		users:   users,
	}
}

// HandleWithings acknowledges with 200 no matter what: a non-2xx answer
// would make the provider retry and eventually drop the subscription.
func (handler *WebhookHandler) HandleWithings(w http.ResponseWriter, r *http.Request) {
	userIDs, err := handler.users.UserIDsForProvider(r.Context(), providers.ProviderWithings)
	if err != nil {
		log.Errorf("[webhook] list withings users: %s", err)
		pkg.WriteTextResponseOK(w, "ok")
		return
	}

	resynced := 0
	for _, userID := range userIDs {
		if _, err := handler.service.Resync(r.Context(), userID); err != nil {
			log.Errorf("[webhook] resync user %s: %s", userID, err)
			continue
		}
		resynced++
	}

	log.Debugf("[webhook] withings notification: resynced %d/%d users", resynced, len(userIDs))
	pkg.WriteTextResponseOK(w, "ok")
}
