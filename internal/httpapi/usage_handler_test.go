package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copymint/internal/models"
)

func getUsage(t *testing.T, mux *http.ServeMux) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/usage", nil)
	req.Header.Set("Authorization", "Bearer "+sessionTokenFor(t, testShop))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestUsage(t *testing.T) {
	_, mux, _, _, store, _ := testDeps(t)
	store.stat = &models.UsageStat{
		Shop:                  testShop,
		Credits:               12,
		MonthlyUsageCount:     18,
		DescriptionsGenerated: 15,
		SEOGenerated:          3,
		PlanName:              sql.NullString{String: "Growth", Valid: true},
		PlanStatus:            sql.NullString{String: "ACTIVE", Valid: true},
	}

	rec := getUsage(t, mux)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp usageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testShop, resp.Shop)
	assert.Equal(t, 12, resp.Credits)
	assert.Equal(t, 18, resp.MonthlyUsageCount)
	assert.Equal(t, 15, resp.DescriptionsGenerated)
	assert.Equal(t, 3, resp.SEOGenerated)
	assert.Equal(t, "Growth", resp.PlanName)
	assert.Equal(t, "ACTIVE", resp.PlanStatus)
}

func TestUsage_FreshShopGetsGrant(t *testing.T) {
	_, mux, _, _, _, _ := testDeps(t)

	rec := getUsage(t, mux)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp usageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 30, resp.Credits)
	assert.Equal(t, 0, resp.MonthlyUsageCount)
	assert.Empty(t, resp.PlanName)
}

func TestUsage_StoreFault(t *testing.T) {
	_, mux, _, _, store, _ := testDeps(t)
	store.getErr = assert.AnError

	rec := getUsage(t, mux)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUsage_NoSession(t *testing.T) {
	_, mux, _, _, _, _ := testDeps(t)

	req := httptest.NewRequest(http.MethodGet, "/api/usage", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPing(t *testing.T) {
	_, mux, _, _, _, _ := testDeps(t)

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer "+sessionTokenFor(t, testShop))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), testShop)
}
