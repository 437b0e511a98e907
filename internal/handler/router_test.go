package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mindcheck/backend/internal/handler/chat"
	"github.com/zhouzirui/mindcheck/backend/internal/service/ai"
	profileService "github.com/zhouzirui/mindcheck/backend/internal/service/profile"
	referralService "github.com/zhouzirui/mindcheck/backend/internal/service/referral"
	"github.com/zhouzirui/mindcheck/backend/internal/store"
)

func setupRouter(t *testing.T) (http.Handler, *store.Memory) {
	t.Helper()
	kv := store.NewMemory()
	profiles := profileService.NewService(kv)
	referrals, err := referralService.NewService("https://www.findtreatment.gov/locator")
	require.NoError(t, err)

	return NewRouter(Services{
		Profiles: profiles,
		Referral: referrals,
		Chat:     chat.Deps{Profiles: profiles, Assistant: ai.NewMock()},
	}), kv
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func TestAssessmentQuestionnaire(t *testing.T) {
	r, _ := setupRouter(t)
	resp := do(t, r, http.MethodGet, "/api/assessment", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	body := decode(t, resp)
	assert.Len(t, body["questions"], 9)
	assert.Len(t, body["answerLabels"], 4)
	assert.EqualValues(t, 27, body["maxScore"])
}

func TestAssessmentScore(t *testing.T) {
	r, _ := setupRouter(t)

	resp := do(t, r, http.MethodPost, "/api/assessment/score", map[string]any{"answers": []int{3, 3, 3, 3, 3, 0, 0, 0, 0}})
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode(t, resp)
	assert.EqualValues(t, 15, body["score"])
	assert.Equal(t, "moderately-severe", body["severity"])
	assert.Equal(t, "Moderately severe depression", body["label"])

	resp = do(t, r, http.MethodPost, "/api/assessment/score", map[string]any{"answers": []int{4}})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/assessment/score", map[string]any{"answers": make([]int, 10)})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestOnboardingLifecycle(t *testing.T) {
	r, kv := setupRouter(t)

	resp := do(t, r, http.MethodGet, "/api/profiles/u1", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/profiles/u1/onboarding", map[string]any{"name": " ", "answers": []int{}})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/profiles/u1/onboarding", map[string]any{"name": "Noa", "answers": []int{1, 2, 3}})
	require.Equal(t, http.StatusCreated, resp.Code)
	body := decode(t, resp)
	assert.EqualValues(t, 6, body["score"])
	assert.Equal(t, "mild", body["severity"])
	assert.Equal(t, "Hi Noa! I'm here to chat with you about how you're feeling today. How can I help?", body["greeting"])

	resp = do(t, r, http.MethodGet, "/api/profiles/u1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Noa", decode(t, resp)["userName"])

	resp = do(t, r, http.MethodGet, "/api/profiles/u1/messages", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode(t, resp)["messages"])

	resp = do(t, r, http.MethodDelete, "/api/profiles/u1", nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Empty(t, kv.Keys())

	resp = do(t, r, http.MethodGet, "/api/profiles/u1", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestInvalidProfileIDRejected(t *testing.T) {
	r, _ := setupRouter(t)
	resp := do(t, r, http.MethodDelete, "/api/profiles/a:b", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestReferral(t *testing.T) {
	r, _ := setupRouter(t)

	resp := do(t, r, http.MethodPost, "/api/referral", map[string]string{"zip": "10001"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "https://www.findtreatment.gov/locator?zipcode=10001", decode(t, resp)["url"])

	resp = do(t, r, http.MethodPost, "/api/referral", map[string]string{"zip": "1000"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCORSHeaderAndHealth(t *testing.T) {
	r, _ := setupRouter(t)
	resp := do(t, r, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}
