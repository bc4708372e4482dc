package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copymint/internal/shopify"
)

func postWebhook(t *testing.T, mux *http.ServeMux, topic, body string, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks", strings.NewReader(body))
	req.Header.Set(topicHeader, topic)
	req.Header.Set(shopHeader, testShop)
	if sign {
		req.Header.Set(shopify.HMACHeader, shopify.SignWebhookBody(testAPISecret, []byte(body)))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_SubscriptionUpdate(t *testing.T) {
	_, mux, _, _, store, _ := testDeps(t)

	body := `{"app_subscription":{"admin_graphql_api_id":"gid://shopify/AppSubscription/1","name":"Growth","status":"ACTIVE"}}`
	rec := postWebhook(t, mux, "app_subscriptions/update", body, true)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, store.applied, 1)
	assert.Equal(t, testShop, store.applied[0])
	require.NotNil(t, store.lastSubID)
	assert.Equal(t, "gid://shopify/AppSubscription/1", *store.lastSubID)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	_, mux, _, _, store, _ := testDeps(t)

	rec := postWebhook(t, mux, "app_subscriptions/update", `{"app_subscription":{}}`, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, store.applied)
}

func TestWebhook_ShopRedact(t *testing.T) {
	_, mux, _, _, store, _ := testDeps(t)

	rec := postWebhook(t, mux, "shop/redact", `{"shop_domain":"store.myshopify.com"}`, true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{testShop}, store.erased)
}

func TestWebhook_CustomerTopicsAcknowledged(t *testing.T) {
	_, mux, _, _, store, _ := testDeps(t)

	for _, topic := range []string{"customers/data_request", "customers/redact"} {
		rec := postWebhook(t, mux, topic, `{}`, true)
		assert.Equal(t, http.StatusOK, rec.Code, topic)
	}
	assert.Empty(t, store.applied)
	assert.Empty(t, store.erased)
}

func TestWebhook_UnknownTopicAcknowledged(t *testing.T) {
	deps, mux, _, _, _, _ := testDeps(t)

	rec := postWebhook(t, mux, "products/update", `{}`, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	counter := deps.Metrics.WebhooksTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("products/update", "unhandled")))
	assert.Equal(t, 0.0, testutil.ToFloat64(counter.WithLabelValues("products/update", "ok")),
		"unhandled topics are not counted as processed")
}

func TestWebhook_MissingShopHeader(t *testing.T) {
	_, mux, _, _, store, _ := testDeps(t)

	body := `{"app_subscription":{"name":"Growth","status":"ACTIVE"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks", strings.NewReader(body))
	req.Header.Set(topicHeader, "app_subscriptions/update")
	req.Header.Set(shopify.HMACHeader, shopify.SignWebhookBody(testAPISecret, []byte(body)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.applied, "a delivery without a shop must not touch the ledger")
}

func TestWebhook_BadPayload(t *testing.T) {
	_, mux, _, _, _, _ := testDeps(t)

	rec := postWebhook(t, mux, "app_subscriptions/update", `{not json`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_StoreFault(t *testing.T) {
	_, mux, _, _, store, _ := testDeps(t)
	store.applyErr = assert.AnError

	body := `{"app_subscription":{"name":"Growth","status":"ACTIVE"}}`
	rec := postWebhook(t, mux, "app_subscriptions/update", body, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	_, mux, _, _, _, _ := testDeps(t)

	req := httptest.NewRequest(http.MethodGet, "/api/webhooks", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthz(t *testing.T) {
	_, mux, _, _, _, _ := testDeps(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, mux, _, _, _, _ := testDeps(t)

	// Generate once so a counter exists, then scrape.
	rec := postGenerate(t, mux, "/api/generate/description", `{"productTitle":"Cedar Candle"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	scrape := httptest.NewRecorder()
	mux.ServeHTTP(scrape, req)

	require.Equal(t, http.StatusOK, scrape.Code)
	assert.Contains(t, scrape.Body.String(), "generations_total")
}
