// Package account handles account-wide operations spanning all the
// other stores, currently only full deletion.
package account

import (
	"context"
	"net/http"

	"github.com/starkhealth/backend/internal/auth"
	"github.com/starkhealth/backend/pkg"

	log "github.com/sirupsen/logrus"
)

// userDataDeleter wipes one store's rows for a user.
type userDataDeleter interface {
	DeleteAllForUser(ctx context.Context, userID string) error
}

type profileDeleter interface {
	Delete(ctx context.Context, userID string) error
}

type sessionInvalidator interface {
	Invalidate(ctx context.Context, token string) error
}

type Handler struct {
	tokens   userDataDeleter
	cache    userDataDeleter
	goals    userDataDeleter
	profiles profileDeleter
	sessions sessionInvalidator
}

func NewHandler(
	tokens userDataDeleter,
	cache userDataDeleter,
	goals userDataDeleter,
	profiles profileDeleter,
	sessions sessionInvalidator,
) *Handler {
	return &Handler{
		tokens:   tokens,
		cache:    cache,
		goals:    goals,
		profiles: profiles,
		sessions: sessions,
	}
}

// HandleDelete removes every trace of the user: provider credentials,
// cached health data, goals and the profile, then invalidates the
// session. Cached data goes first so a failure midway never leaves
// orphaned health data behind live credentials.
func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	for _, step := range []struct {
		name   string
		delete func(context.Context, string) error
	}{
		{"health cache", handler.cache.DeleteAllForUser},
		{"provider tokens", handler.tokens.DeleteAllForUser},
		{"goals", handler.goals.DeleteAllForUser},
		{"profile", handler.profiles.Delete},
	} {
		if err := step.delete(ctx, userID); err != nil {
			log.Errorf("delete account for user %s: delete %s: %s", userID, step.name, err)
			http.Error(w, "failed to delete account", http.StatusInternalServerError)
			return
		}
	}

	if token := r.Header.Get("X-Stark-Token"); token != "" {
		if err := handler.sessions.Invalidate(ctx, token); err != nil {
			// data is gone, the session will expire on its own
			log.Errorf("delete account for user %s: invalidate session: %s", userID, err)
		}
	}

	log.Printf("account deleted for user %s", userID)
	pkg.WriteTextResponseOK(w, "deleted")
}
