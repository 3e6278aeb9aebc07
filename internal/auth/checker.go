package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "stark-session||"

// DefaultTTL is how long a session stays valid after login.
const DefaultTTL = 7 * 24 * time.Hour

var ErrSessionNotFound = errors.New("session not found")

// SessionChecker resolves a session token (issued by the external identity
// provider integration) to the owning user ID. Sessions live in redis as
// "<user id>||<created at unix>" under the token key.
type SessionChecker struct {
	ttl         time.Duration
	redisClient *redis.Client
}

func NewSessionChecker(ttl time.Duration, redisClient *redis.Client) *SessionChecker {
	return &SessionChecker{
		ttl:         ttl,
		redisClient: redisClient,
	}
}

// UserID returns the user ID owning the given session token, or
// ErrSessionNotFound when the token is unknown or the session expired.
func (c *SessionChecker) UserID(ctx context.Context, token string) (string, error) {
	sessionKey := sessionKeyPrefix + token
	cmd := c.redisClient.Get(ctx, sessionKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("get session: %w", err)
	}

	userID, createdAtUnixStr, found := strings.Cut(cmd.Val(), "||")
	if !found {
		return "", fmt.Errorf("malformed session value for token")
	}

	createdAtUnix, err := strconv.ParseInt(createdAtUnixStr, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse session created at: %w", err)
	}

	if time.Since(time.Unix(createdAtUnix, 0)) > c.ttl {
		return "", ErrSessionNotFound
	}

	return userID, nil
}

// Invalidate removes the session so the token stops resolving.
func (c *SessionChecker) Invalidate(ctx context.Context, token string) error {
	return c.redisClient.Del(ctx, sessionKeyPrefix+token).Err()
}
