package tokens

import (
	"time"

	"github.com/starkhealth/backend/internal/providers"
)

// ProviderToken is a stored credential for one user+provider pair.
// OAuth providers carry a refresh token and expiry; API-key providers
// (hevy) store the key in AccessToken and leave ExpiresAt nil.
type ProviderToken struct {
	ID           int                `json:"id"`
	UserID       string             `json:"userId"`
	Provider     providers.Provider `json:"provider"`
	AccessToken  string             `json:"-"`
	RefreshToken string             `json:"-"`
	ExpiresAt    *time.Time         `json:"expiresAt,omitempty"`
	Scope        string             `json:"scope,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// ExpiresWithin says whether the credential will expire inside the given
// window. Credentials without an expiry never do.
func (t *ProviderToken) ExpiresWithin(d time.Duration) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return time.Until(*t.ExpiresAt) < d
}

// RefreshedCredentials is what a provider token exchange returns.
type RefreshedCredentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
