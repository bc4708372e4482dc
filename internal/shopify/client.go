// Package shopify talks to the Shopify platform: the Admin GraphQL API for
// subscription lookups and usage charges, webhook signature verification and
// session token validation.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"copymint/internal/billing"
	"copymint/internal/config"
	"copymint/internal/utils"
)

const clientTimeout = 15 * time.Second

// Client is an Admin GraphQL API client. It implements
// billing.SubscriptionSource for the metering gate.
type Client struct {
	cfg        config.ShopifyConfig
	httpClient *http.Client
	logger     *utils.Logger
}

// NewClient creates an Admin API client from platform configuration.
func NewClient(cfg config.ShopifyConfig, logger *utils.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: clientTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

// endpoint returns the GraphQL endpoint for a shop. An explicit AdminURL
// overrides the derived one, which is what tests and single-tenant deploys use.
func (c *Client) endpoint(shop string) string {
	if c.cfg.AdminURL != "" {
		return c.cfg.AdminURL
	}
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shop, c.cfg.APIVersion)
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// execute posts a GraphQL document and decodes the data payload into out.
// Top-level GraphQL errors are returned as a single wrapped error.
func (c *Client) execute(ctx context.Context, shop, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(shop), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Shopify-Access-Token", c.cfg.AdminToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("admin api request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("admin api returned status %d: %s", resp.StatusCode, truncateBody(respBody))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("admin api error: %s", envelope.Errors[0].Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}
	}

	return nil
}

const activeSubscriptionsQuery = `
query ActiveSubscriptions {
  currentAppInstallation {
    activeSubscriptions {
      id
      name
      status
      lineItems {
        id
        plan {
          pricingDetails {
            __typename
          }
        }
      }
    }
  }
}`

// ActiveUsagePlan returns the shop's active subscription that carries a
// usage-pricing line item, or nil when the shop has none. Errors from the
// platform propagate to the caller unchanged.
func (c *Client) ActiveUsagePlan(ctx context.Context, shop string) (*billing.UsagePlan, error) {
	var data struct {
		CurrentAppInstallation struct {
			ActiveSubscriptions []struct {
				ID        string `json:"id"`
				Name      string `json:"name"`
				Status    string `json:"status"`
				LineItems []struct {
					ID   string `json:"id"`
					Plan struct {
						PricingDetails struct {
							Typename string `json:"__typename"`
						} `json:"pricingDetails"`
					} `json:"plan"`
				} `json:"lineItems"`
			} `json:"activeSubscriptions"`
		} `json:"currentAppInstallation"`
	}

	if err := c.execute(ctx, shop, activeSubscriptionsQuery, nil, &data); err != nil {
		return nil, fmt.Errorf("failed to query subscriptions for %s: %w", shop, err)
	}

	for _, sub := range data.CurrentAppInstallation.ActiveSubscriptions {
		if sub.Status != "ACTIVE" {
			continue
		}
		for _, item := range sub.LineItems {
			if item.Plan.PricingDetails.Typename == "AppUsagePricing" {
				return &billing.UsagePlan{
					SubscriptionID: sub.ID,
					LineItemID:     item.ID,
					Name:           sub.Name,
				}, nil
			}
		}
	}

	return nil, nil
}

const usageRecordCreateMutation = `
mutation UsageRecordCreate($lineItemId: ID!, $price: MoneyInput!, $description: String!, $idempotencyKey: String!) {
  appUsageRecordCreate(subscriptionLineItemId: $lineItemId, price: $price, description: $description, idempotencyKey: $idempotencyKey) {
    appUsageRecord {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

// CreateUsageCharge posts a usage record against a subscription line item.
// The idempotency key makes retries safe on the platform side.
func (c *Client) CreateUsageCharge(ctx context.Context, shop, lineItemID, description string, amountUSD float64, idempotencyKey string) error {
	variables := map[string]interface{}{
		"lineItemId": lineItemID,
		"price": map[string]interface{}{
			"amount":       fmt.Sprintf("%.2f", amountUSD),
			"currencyCode": "USD",
		},
		"description":    description,
		"idempotencyKey": idempotencyKey,
	}

	var data struct {
		AppUsageRecordCreate struct {
			AppUsageRecord struct {
				ID string `json:"id"`
			} `json:"appUsageRecord"`
			UserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"appUsageRecordCreate"`
	}

	if err := c.execute(ctx, shop, usageRecordCreateMutation, variables, &data); err != nil {
		return fmt.Errorf("failed to create usage charge for %s: %w", shop, err)
	}
	if errs := data.AppUsageRecordCreate.UserErrors; len(errs) > 0 {
		return fmt.Errorf("usage charge rejected: %s", errs[0].Message)
	}

	c.logger.Info("usage charge created",
		"shop", shop,
		"record_id", data.AppUsageRecordCreate.AppUsageRecord.ID,
		"amount_usd", fmt.Sprintf("%.2f", amountUSD))
	return nil
}

func truncateBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
