// internal/handlers/dashboard.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pactwise/pactwise-backend/internal/i18n"
	"github.com/pactwise/pactwise-backend/internal/services"
	"github.com/pactwise/pactwise-backend/internal/utils"
)

const (
	defaultRenewalDays = 30
	maxRenewalDays     = 365
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GET /dashboard
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	data, err := h.dashboardService.GetAllDashboardData(c.Request.Context(), sec.EnterpriseID, &sec.UserID)
	if err != nil {
		respondError(c, err, "resource")
		return
	}
	utils.SuccessResponse(c, data)
}

// GET /dashboard/stats
func (h *DashboardHandler) GetStats(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	stats, err := h.dashboardService.GetContractStats(c.Request.Context(), sec.EnterpriseID)
	if err != nil {
		respondError(c, err, "resource")
		return
	}
	utils.SuccessResponse(c, stats)
}

// GET /dashboard/renewals?days=30
func (h *DashboardHandler) GetRenewals(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(defaultRenewalDays)))
	if err != nil || days < 1 || days > maxRenewalDays {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "days"), nil)
		return
	}

	renewals, err := h.dashboardService.GetUpcomingRenewals(c.Request.Context(), sec.EnterpriseID, days)
	if err != nil {
		respondError(c, err, "resource")
		return
	}
	utils.SuccessResponse(c, renewals)
}

// GET /dashboard/risk-alerts
func (h *DashboardHandler) GetRiskAlerts(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	alerts, err := h.dashboardService.GetRiskAlerts(c.Request.Context(), sec.EnterpriseID)
	if err != nil {
		respondError(c, err, "resource")
		return
	}
	utils.SuccessResponse(c, alerts)
}

// GET /dashboard/spend
func (h *DashboardHandler) GetSpendAnalysis(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	spend, err := h.dashboardService.GetSpendAnalysis(c.Request.Context(), sec.EnterpriseID)
	if err != nil {
		respondError(c, err, "resource")
		return
	}
	utils.SuccessResponse(c, spend)
}

// GET /dashboard/activity
func (h *DashboardHandler) GetActivity(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	activity, err := h.dashboardService.GetRecentActivity(c.Request.Context(), sec.EnterpriseID)
	if err != nil {
		respondError(c, err, "resource")
		return
	}
	utils.SuccessResponse(c, activity)
}
