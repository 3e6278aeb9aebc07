package account

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starkhealth/backend/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deleterMock struct {
	calls []string
	err   error
}

func (m *deleterMock) DeleteAllForUser(_ context.Context, userID string) error {
	m.calls = append(m.calls, userID)
	return m.err
}

func (m *deleterMock) Delete(_ context.Context, userID string) error {
	m.calls = append(m.calls, userID)
	return m.err
}

type sessionMock struct {
	invalidated []string
}

func (m *sessionMock) Invalidate(_ context.Context, token string) error {
	m.invalidated = append(m.invalidated, token)
	return nil
}

func TestHandler_Delete_WipesEverythingAndInvalidatesSession(t *testing.T) {
	tokens := &deleterMock{}
	cache := &deleterMock{}
	goals := &deleterMock{}
	profiles := &deleterMock{}
	sessions := &sessionMock{}
	handler := NewHandler(tokens, cache, goals, profiles, sessions)

	req := httptest.NewRequest(http.MethodDelete, "/account", nil)
	req.Header.Set("X-Stark-Token", "session-token-1")
	req = req.WithContext(auth.WithUserID(req.Context(), "user-1"))
	rr := httptest.NewRecorder()

	handler.HandleDelete(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"user-1"}, tokens.calls)
	assert.Equal(t, []string{"user-1"}, cache.calls)
	assert.Equal(t, []string{"user-1"}, goals.calls)
	assert.Equal(t, []string{"user-1"}, profiles.calls)
	assert.Equal(t, []string{"session-token-1"}, sessions.invalidated)
}

func TestHandler_Delete_StepFailureStopsDeletion(t *testing.T) {
	tokens := &deleterMock{err: errors.New("db down")}
	goals := &deleterMock{}
	sessions := &sessionMock{}
	handler := NewHandler(tokens, &deleterMock{}, goals, &deleterMock{}, sessions)

	req := httptest.NewRequest(http.MethodDelete, "/account", nil)
	req.Header.Set("X-Stark-Token", "session-token-1")
	req = req.WithContext(auth.WithUserID(req.Context(), "user-1"))
	rr := httptest.NewRecorder()

	handler.HandleDelete(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	// provider tokens failed, so goals were never reached and the session survives
	assert.Empty(t, goals.calls)
	assert.Empty(t, sessions.invalidated)
}

func TestHandler_Delete_NoSession(t *testing.T) {
	handler := NewHandler(&deleterMock{}, &deleterMock{}, &deleterMock{}, &deleterMock{}, &sessionMock{})

	rr := httptest.NewRecorder()
	handler.HandleDelete(rr, httptest.NewRequest(http.MethodDelete, "/account", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
