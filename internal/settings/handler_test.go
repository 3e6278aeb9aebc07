package settings

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starkhealth/backend/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", MaskKey(""))
	assert.Equal(t, "••••••", MaskKey("short1"))
	masked := MaskKey("sk-abcdefghij1234567890wxyz")
	assert.Equal(t, "sk-abcdefghi"+strings.Repeat("•", 20)+"wxyz", masked)
	assert.NotContains(t, masked, "1234567890")
}

func settingsRequest(method, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/settings", nil)
	} else {
		req = httptest.NewRequest(method, "/settings", strings.NewReader(body))
	}
	return req.WithContext(auth.WithUserID(req.Context(), "user-1"))
}

func TestHandler_Get_Defaults(t *testing.T) {
	handler := NewHandler(newRepoMock(), "gpt-4o-mini")

	rr := httptest.NewRecorder()
	handler.HandleGet(rr, settingsRequest(http.MethodGet, ""))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(
		t,
		`{"api_key_masked":"","has_api_key":false,"ai_model":"gpt-4o-mini","units":"metric"}`,
		rr.Body.String(),
	)
}

func TestHandler_UpdateThenGet(t *testing.T) {
	repo := newRepoMock()
	handler := NewHandler(repo, "gpt-4o-mini")

	rr := httptest.NewRecorder()
	handler.HandleUpdate(rr, settingsRequest(
		http.MethodPut,
		`{"api_key":"sk-abcdefghij1234567890wxyz","units":"imperial"}`,
	))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.HandleGet(rr, settingsRequest(http.MethodGet, ""))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `"has_api_key":true`)
	assert.Contains(t, body, `"units":"imperial"`)
	// model untouched, default still served
	assert.Contains(t, body, `"ai_model":"gpt-4o-mini"`)
	assert.NotContains(t, body, "1234567890")

	// partial update keeps the stored key
	rr = httptest.NewRecorder()
	handler.HandleUpdate(rr, settingsRequest(http.MethodPut, `{"ai_model":"gpt-4o"}`))
	require.Equal(t, http.StatusOK, rr.Code)

	profile, err := repo.Get(settingsRequest(http.MethodGet, "").Context(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "sk-abcdefghij1234567890wxyz", profile.APIKey)
	assert.Equal(t, "gpt-4o", profile.AIModel)
}

func TestHandler_Update_InvalidUnits(t *testing.T) {
	handler := NewHandler(newRepoMock(), "gpt-4o-mini")

	rr := httptest.NewRecorder()
	handler.HandleUpdate(rr, settingsRequest(http.MethodPut, `{"units":"stone"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_NoSession(t *testing.T) {
	handler := NewHandler(newRepoMock(), "gpt-4o-mini")

	rr := httptest.NewRecorder()
	handler.HandleGet(rr, httptest.NewRequest(http.MethodGet, "/settings", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	handler.HandleUpdate(rr, httptest.NewRequest(http.MethodPut, "/settings", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
