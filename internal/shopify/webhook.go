package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// HMACHeader is the request header carrying the webhook signature.
const HMACHeader = "X-Shopify-Hmac-Sha256"

// VerifyWebhookHMAC checks the signature sent with a webhook delivery against
// the raw request body. The signature is a base64-encoded HMAC-SHA256 of the
// body keyed by the app's API secret. Comparison is constant time.
func VerifyWebhookHMAC(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignWebhookBody computes the signature a delivery for body would carry.
// Only tests need this.
func SignWebhookBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
