package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"copymint/internal/shopify"
	"copymint/internal/utils"
)

const (
	topicHeader = "X-Shopify-Topic"
	shopHeader  = "X-Shopify-Shop-Domain"
)

type subscriptionUpdatePayload struct {
	AppSubscription struct {
		AdminGraphqlAPIID string `json:"admin_graphql_api_id"`
		Name              string `json:"name"`
		Status            string `json:"status"`
	} `json:"app_subscription"`
}

// handleWebhook processes platform webhook deliveries. Every delivery is
// HMAC-verified against the raw body before the topic is looked at.
//
// Topics handled:
//   - app_subscriptions/update: mirror plan fields onto the usage row
//   - shop/redact: erase the shop's data
//   - customers/data_request, customers/redact: acknowledged; we hold no
//     customer-level data
func (d *Dependencies) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	topic := r.Header.Get(topicHeader)
	if !shopify.VerifyWebhookHMAC(d.Cfg.Shopify.APISecret, body, r.Header.Get(shopify.HMACHeader)) {
		d.Metrics.RecordWebhook(topic, "invalid")
		utils.RespondWithError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	shop := r.Header.Get(shopHeader)
	if shop == "" {
		d.Metrics.RecordWebhook(topic, "invalid")
		utils.RespondWithError(w, http.StatusBadRequest, "missing shop domain header")
		return
	}
	ctx := r.Context()

	switch topic {
	case "app_subscriptions/update":
		var payload subscriptionUpdatePayload
		if err := json.Unmarshal(body, &payload); err != nil {
			d.Metrics.RecordWebhook(topic, "error")
			utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		sub := payload.AppSubscription
		if err := d.UsageStats.ApplySubscriptionUpdate(ctx, shop, &sub.AdminGraphqlAPIID, &sub.Status, &sub.Name); err != nil {
			d.Logger.Error("failed to apply subscription update", "shop", shop, "error", err)
			d.Metrics.RecordWebhook(topic, "error")
			utils.RespondWithError(w, http.StatusInternalServerError, "failed to process webhook")
			return
		}
		d.Logger.Info("subscription updated", "shop", shop, "status", sub.Status, "plan", sub.Name)

	case "shop/redact":
		if err := d.UsageStats.Erase(ctx, shop); err != nil {
			d.Logger.Error("failed to erase shop data", "shop", shop, "error", err)
			d.Metrics.RecordWebhook(topic, "error")
			utils.RespondWithError(w, http.StatusInternalServerError, "failed to process webhook")
			return
		}
		d.Logger.Info("shop data erased", "shop", shop)

	case "customers/data_request", "customers/redact":
		// No customer-level data is stored. Acknowledge.

	default:
		// Acknowledge so the platform stops retrying, but keep it visible
		// in the metric as unhandled rather than processed.
		d.Logger.Warn("unhandled webhook topic", "topic", topic, "shop", shop)
		d.Metrics.RecordWebhook(topic, "unhandled")
		w.WriteHeader(http.StatusOK)
		return
	}

	d.Metrics.RecordWebhook(topic, "ok")
	w.WriteHeader(http.StatusOK)
}
