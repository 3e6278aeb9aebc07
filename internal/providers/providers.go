// Package providers holds what is shared between the individual provider
// integrations: the provider identifiers and the error taxonomy that the
// token manager and sync service branch on.
package providers

import (
	"errors"
	"fmt"
)

type Provider string

const (
	ProviderWhoop    Provider = "whoop"
	ProviderWithings Provider = "withings"
	ProviderHevy     Provider = "hevy"
)

// All lists the supported providers in their canonical order.
var All = []Provider{ProviderWhoop, ProviderWithings, ProviderHevy}

func (p Provider) Valid() bool {
	switch p {
	case ProviderWhoop, ProviderWithings, ProviderHevy:
		return true
	}
	return false
}

func ParseProvider(raw string) (Provider, error) {
	p := Provider(raw)
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q", raw)
	}
	return p, nil
}

// ErrCredentialExpired means the stored credential can no longer be used
// and could not be refreshed. The user has to reconnect the provider.
var ErrCredentialExpired = errors.New("provider credential expired")

// ErrInvalidCredential means the provider rejected the credential outright
// (e.g. a revoked API key), as opposed to a refreshable expiry.
var ErrInvalidCredential = errors.New("provider credential invalid")

// ErrNotConnected means the user never connected this provider.
var ErrNotConnected = errors.New("provider not connected")

// UnavailableError wraps transient provider-side failures (5xx, network)
// so callers can distinguish them from credential problems.
type UnavailableError struct {
	Provider   Provider
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s unavailable [status %d]: %s", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %s", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
