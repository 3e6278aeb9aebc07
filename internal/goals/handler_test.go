package goals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starkhealth/backend/internal/auth"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(auth.WithUserID(req.Context(), "user-1"))
}

func TestHandler_AddAndList(t *testing.T) {
	repo := newRepoMock()
	handler := NewHandler(repo)

	req := authedRequest(http.MethodPost, "/goals",
		`{"metric":"bodyFat","label":"Cut to 15%","target_value":15,"direction":"below","target_date":"2026-12-01"}`)
	rr := httptest.NewRecorder()
	handler.HandleAdd(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var addResp struct {
		Goal Goal `json:"goal"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &addResp))
	assert.Equal(t, 1, addResp.Goal.ID)
	assert.Equal(t, "bodyFat", addResp.Goal.Metric)
	assert.Equal(t, DirectionBelow, addResp.Goal.Direction)
	require.NotNil(t, addResp.Goal.TargetDate)
	assert.Equal(t, "2026-12-01", *addResp.Goal.TargetDate)

	rr = httptest.NewRecorder()
	handler.HandleList(rr, authedRequest(http.MethodGet, "/goals", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	var listResp struct {
		Goals []Goal `json:"goals"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listResp))
	require.Len(t, listResp.Goals, 1)
	assert.InDelta(t, 15, listResp.Goals[0].TargetValue, 0.001)
}

func TestHandler_List_Empty(t *testing.T) {
	handler := NewHandler(newRepoMock())

	rr := httptest.NewRecorder()
	handler.HandleList(rr, authedRequest(http.MethodGet, "/goals", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"goals":[]}`, rr.Body.String())
}

func TestHandler_Add_MissingFields(t *testing.T) {
	handler := NewHandler(newRepoMock())

	for _, body := range []string{
		`{"label":"l","target_value":1,"direction":"above"}`,
		`{"metric":"weight","target_value":1,"direction":"above"}`,
		`{"metric":"weight","label":"l","direction":"above"}`,
		`{"metric":"weight","label":"l","target_value":1,"direction":"sideways"}`,
		`not json`,
	} {
		rr := httptest.NewRecorder()
		handler.HandleAdd(rr, authedRequest(http.MethodPost, "/goals", body))
		assert.Equal(t, http.StatusBadRequest, rr.Code, "body: %s", body)
	}
}

func TestHandler_Delete(t *testing.T) {
	repo := newRepoMock()
	handler := NewHandler(repo)

	_, err := repo.Add(context.Background(), &Goal{UserID: "user-1", Metric: "weight"})
	require.NoError(t, err)
	_, err = repo.Add(context.Background(), &Goal{UserID: "someone-else", Metric: "weight"})
	require.NoError(t, err)

	req := authedRequest(http.MethodDelete, "/goals/1", "")
	req = mux.SetURLVars(req, map[string]string{"id": "1"})
	rr := httptest.NewRecorder()
	handler.HandleDelete(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// cannot delete another user's goal
	req = authedRequest(http.MethodDelete, "/goals/2", "")
	req = mux.SetURLVars(req, map[string]string{"id": "2"})
	rr = httptest.NewRecorder()
	handler.HandleDelete(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_NoSession(t *testing.T) {
	handler := NewHandler(newRepoMock())

	for _, call := range []func(http.ResponseWriter, *http.Request){
		handler.HandleList, handler.HandleAdd, handler.HandleDelete,
	} {
		rr := httptest.NewRecorder()
		call(rr, httptest.NewRequest(http.MethodGet, "/goals", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}
}
