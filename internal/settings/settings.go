// Package settings stores per-user preferences: display units, the
// chat model, and an optional user-supplied API key overriding the
// server one.
package settings

import "strings"

type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

func (u Units) Valid() bool {
	return u == UnitsMetric || u == UnitsImperial
}

type Profile struct {
	UserID  string
	APIKey  string
	AIModel string
	Units   Units
}

// MaskKey keeps the identifying prefix and the last few characters so
// the user can recognize which key is stored without exposing it.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 16 {
		return strings.Repeat("•", len(key))
	}
	return key[:12] + strings.Repeat("•", 20) + key[len(key)-4:]
}
