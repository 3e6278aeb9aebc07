package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/starkhealth/backend/internal/auth"

	log "github.com/sirupsen/logrus"
)

// pathsWithoutAuth are served to anyone. Provider OAuth callbacks arrive
// from the provider's redirect, webhooks and cron from third parties, so
// none of them can carry a session token.
var pathsWithoutAuth = map[string]struct{}{
	"/":                            {},
	"/version":                     {},
	"/webhooks/withings":           {},
	"/cron/refresh-tokens":         {},
	"/providers/whoop/callback":    {},
	"/providers/withings/callback": {},
}

// AuthCheck resolves the session token from the X-Stark-Token header and
// stores the resolved user id on the request context. Requests without a
// valid session get a 401, except for the open paths above.
func AuthCheck(sessionChecker *auth.SessionChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			path := strings.TrimSuffix(r.URL.Path, "/")
			if path == "" {
				path = "/"
			}
			if _, ok := pathsWithoutAuth[path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-Stark-Token")
			if token == "" {
				http.Error(w, "no can do", http.StatusUnauthorized)
				return
			}

			userID, err := sessionChecker.UserID(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrSessionNotFound) {
					log.Tracef("[auth] [%s] check session: %s", path, err)
				}
				http.Error(w, "no can do", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}
