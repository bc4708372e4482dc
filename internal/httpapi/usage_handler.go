package httpapi

import (
	"net/http"

	"copymint/internal/middleware"
	"copymint/internal/utils"
)

type usageResponse struct {
	Shop                  string `json:"shop"`
	Credits               int    `json:"credits"`
	MonthlyUsageCount     int    `json:"monthlyUsageCount"`
	DescriptionsGenerated int    `json:"descriptionsGenerated"`
	SEOGenerated          int    `json:"seoGenerated"`
	PlanName              string `json:"planName,omitempty"`
	PlanStatus            string `json:"planStatus,omitempty"`
}

// handleUsage returns the shop's credit balance and usage counters. A shop
// that has never generated gets its row, and the free grant, created here.
func (d *Dependencies) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	shop, ok := middleware.GetShop(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "missing session")
		return
	}

	stat, err := d.UsageStats.GetOrInit(r.Context(), shop)
	if err != nil {
		d.Logger.Error("failed to load usage stats", "shop", shop, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to load usage")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, usageResponse{
		Shop:                  stat.Shop,
		Credits:               stat.Credits,
		MonthlyUsageCount:     stat.MonthlyUsageCount,
		DescriptionsGenerated: stat.DescriptionsGenerated,
		SEOGenerated:          stat.SEOGenerated,
		PlanName:              stat.PlanName.String,
		PlanStatus:            stat.PlanStatus.String,
	})
}
