package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"copymint/internal/billing"
	"copymint/internal/generation"
	"copymint/internal/middleware"
	"copymint/internal/models"
	"copymint/internal/prompt"
	"copymint/internal/utils"
)

// rateLimitedMessage is shown to merchants for both our own limiter and
// provider-side throttling.
const rateLimitedMessage = "AI usage limit reached. Please wait a minute and try again."

type generateRequest struct {
	ProductTitle       string `json:"productTitle"`
	ProductDescription string `json:"productDescription"`
	Tone               string `json:"tone"`
	Length             string `json:"length"`
	Language           string `json:"language"`
	CustomInstructions string `json:"customInstructions"`
	Keywords           string `json:"keywords"`
}

type generateResponse struct {
	Text        string `json:"text"`
	CreditsUsed int    `json:"creditsUsed"`
	Billable    int    `json:"billable"`
	Attempts    int    `json:"attempts"`
}

type seoResponse struct {
	SEOTitle       string `json:"seoTitle"`
	SEODescription string `json:"seoDescription"`
	CreditsUsed    int    `json:"creditsUsed"`
	Billable       int    `json:"billable"`
	Attempts       int    `json:"attempts"`
}

// handleGenerateDescription generates a product description, drafting from
// scratch or rewriting the existing one depending on what the merchant sent.
//
// Flow:
//  1. Shop from session context
//  2. Decode JSON body
//  3. Per-shop rate limit
//  4. Build prompt (input validation)
//  5. Metering gate (credits vs billable)
//  6. Call provider with failover
//  6. Audit + metrics
func (d *Dependencies) handleGenerateDescription(w http.ResponseWriter, r *http.Request) {
	d.handleGenerate(w, r, models.FeatureDescription)
}

// handleGenerateSEO generates an SEO title and meta description as JSON.
func (d *Dependencies) handleGenerateSEO(w http.ResponseWriter, r *http.Request) {
	d.handleGenerate(w, r, models.FeatureSEO)
}

func (d *Dependencies) handleGenerate(w http.ResponseWriter, r *http.Request, feature models.Feature) {
	start := time.Now()
	ctx := r.Context()

	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	shop, ok := middleware.GetShop(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "missing session")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Rate limit. A limiter fault fails open: generation still works when
	// Redis is down, it is just unprotected.
	allowed, err := d.RateLimit.Allow(ctx, shop)
	if err != nil {
		d.Logger.Warn("rate limiter unavailable, allowing request", "shop", shop, "error", err)
		allowed = true
	}
	if !allowed {
		d.Metrics.RateLimitRejections.Inc()
		utils.RespondWithError(w, http.StatusTooManyRequests, rateLimitedMessage)
		return
	}

	// Validate the input and build the prompt before touching the ledger:
	// a request that cannot even reach the provider must not cost a credit.
	promptText, err := d.buildPrompt(req, feature)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := d.Meter.MeterGeneration(ctx, shop, 1, feature)
	if err != nil {
		if errors.Is(err, billing.ErrBillingRequired) {
			utils.RespondWithError(w, http.StatusPaymentRequired, "An active plan is required to generate content")
			return
		}
		d.Logger.Error("metering failed", "shop", shop, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "billing check failed")
		return
	}

	result, err := d.Generator.Generate(ctx, generation.Request{
		Prompt: promptText,
		Model:  d.Cfg.Provider.Model,
	})
	elapsed := time.Since(start)

	if err != nil {
		status := d.generationErrorStatus(err)
		d.audit(ctx, shop, feature, status, attemptCount(err), decision, elapsed, err.Error())
		d.Metrics.RecordGeneration(string(feature), "error", elapsed.Seconds())

		switch status {
		case http.StatusTooManyRequests:
			utils.RespondWithError(w, status, rateLimitedMessage)
		case http.StatusServiceUnavailable:
			utils.RespondWithError(w, status, "generation service is not configured")
		default:
			utils.RespondWithError(w, status, "generation failed, please try again")
		}
		return
	}

	d.audit(ctx, shop, feature, http.StatusOK, len(result.Attempts), decision, elapsed, "")
	d.Metrics.RecordGeneration(string(feature), "ok", elapsed.Seconds())
	d.Metrics.RecordProviderFailures(d.ProviderName, len(result.Attempts)-1)
	d.Metrics.RecordMetering(decision.CreditsUsed, decision.Billable, decision.ChargeUSD)

	if feature == models.FeatureSEO {
		d.respondSEO(w, result, decision)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, generateResponse{
		Text:        result.Text,
		CreditsUsed: decision.CreditsUsed,
		Billable:    decision.Billable,
		Attempts:    len(result.Attempts),
	})
}

func (d *Dependencies) buildPrompt(req generateRequest, feature models.Feature) (string, error) {
	if feature == models.FeatureSEO {
		return prompt.SEO(prompt.SEOInput{
			ProductTitle:       req.ProductTitle,
			ProductDescription: prompt.StripHTML(req.ProductDescription),
			Keywords:           req.Keywords,
		})
	}
	return prompt.Description(prompt.DescriptionInput{
		ProductTitle:       req.ProductTitle,
		ProductDescription: req.ProductDescription,
		Tone:               req.Tone,
		Length:             req.Length,
		Language:           req.Language,
		CustomInstructions: req.CustomInstructions,
	})
}

// respondSEO parses the model's JSON reply. A reply that is not the expected
// JSON shape is a provider fault, not a client error.
func (d *Dependencies) respondSEO(w http.ResponseWriter, result *generation.Result, decision *billing.Decision) {
	// The prompt asks the model for JSON with "title" and "description"
	// keys; the response body renames them for the storefront client.
	var parsed struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	cleaned := prompt.CleanJSONReply(result.Text)
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		d.Logger.Error("model returned malformed SEO JSON", "error", err)
		utils.RespondWithError(w, http.StatusBadGateway, "generation returned malformed metadata, please try again")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, seoResponse{
		SEOTitle:       parsed.Title,
		SEODescription: parsed.Description,
		CreditsUsed:    decision.CreditsUsed,
		Billable:       decision.Billable,
		Attempts:       len(result.Attempts),
	})
}

func (d *Dependencies) generationErrorStatus(err error) int {
	switch {
	case errors.Is(err, generation.ErrNoCredentials):
		return http.StatusServiceUnavailable
	case generation.IsRateLimited(err):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func attemptCount(err error) int {
	var exhausted *generation.ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Attempts
	}
	return 0
}

// audit enqueues the record; persistence is async and best effort.
func (d *Dependencies) audit(ctx context.Context, shop string, feature models.Feature, status, attempts int, decision *billing.Decision, elapsed time.Duration, errMsg string) {
	rec := &models.AuditRecord{
		Shop:           shop,
		Feature:        feature,
		ModelName:      d.Cfg.Provider.Model,
		StatusCode:     status,
		Attempts:       attempts,
		ResponseTimeMS: int(elapsed.Milliseconds()),
		ErrorMessage:   errMsg,
	}
	if decision != nil {
		rec.CreditsUsed = decision.CreditsUsed
		rec.Billable = decision.Billable
	}
	if err := d.Audit.Enqueue(ctx, rec); err != nil {
		d.Logger.Warn("failed to enqueue audit record", "shop", shop, "error", err)
	}
}
