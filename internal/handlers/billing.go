// internal/handlers/billing.go
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pactwise/pactwise-backend/internal/i18n"
	"github.com/pactwise/pactwise-backend/internal/services"
	"github.com/pactwise/pactwise-backend/internal/utils"
)

const maxWebhookBody = 1 << 20

type BillingHandler struct {
	billingService *services.BillingService
	usageService   *services.UsageService
	webhookService *services.WebhookService
}

func NewBillingHandler(billingService *services.BillingService, usageService *services.UsageService, webhookService *services.WebhookService) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
		usageService:   usageService,
		webhookService: webhookService,
	}
}

// GET /billing/plans
func (h *BillingHandler) GetPlans(c *gin.Context) {
	utils.SuccessResponse(c, h.billingService.Plans())
}

// POST /billing/checkout
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	var req services.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.billingService.CreateCheckoutSession(c.Request.Context(), sec, &req)
	if err != nil {
		respondError(c, err, "subscription")
		return
	}
	utils.SuccessResponse(c, session)
}

// POST /billing/portal
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	var req services.PortalRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	url, err := h.billingService.CreatePortalSession(c.Request.Context(), sec, req.ReturnURL)
	if err != nil {
		respondError(c, err, "subscription")
		return
	}
	utils.SuccessResponse(c, gin.H{"url": url})
}

// GET /billing/subscription
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	current, err := h.billingService.GetCurrentSubscription(c.Request.Context(), sec.EnterpriseID)
	if err != nil {
		respondError(c, err, "subscription")
		return
	}
	utils.SuccessResponse(c, current)
}

// POST /billing/subscription/cancel
func (h *BillingHandler) CancelSubscription(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	if err := h.billingService.CancelSubscription(c.Request.Context(), sec); err != nil {
		respondError(c, err, "subscription")
		return
	}
	utils.SuccessResponse(c, gin.H{"cancel_at_period_end": true})
}

// POST /billing/subscription/resume
func (h *BillingHandler) ResumeSubscription(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	if err := h.billingService.ResumeSubscription(c.Request.Context(), sec); err != nil {
		respondError(c, err, "subscription")
		return
	}
	utils.SuccessResponse(c, gin.H{"cancel_at_period_end": false})
}

// GET /billing/invoices?limit=12
func (h *BillingHandler) ListInvoices(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	invoices, err := h.billingService.ListInvoices(c.Request.Context(), sec.EnterpriseID, limit)
	if err != nil {
		respondError(c, err, "subscription")
		return
	}
	utils.SuccessResponse(c, invoices)
}

// GET /billing/usage
func (h *BillingHandler) GetUsage(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	summary, err := h.usageService.GetUsageSummary(c.Request.Context(), sec.EnterpriseID)
	if err != nil {
		respondError(c, err, "resource")
		return
	}
	utils.SuccessResponse(c, summary)
}

// GET /billing/usage/:metric
func (h *BillingHandler) CheckUsage(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	check, err := h.usageService.CheckUsageLimit(c.Request.Context(), sec.EnterpriseID, c.Param("metric"))
	if err != nil {
		respondError(c, err, "resource")
		return
	}
	utils.SuccessResponse(c, check)
}

// POST /webhooks/stripe
//
// A bad signature is a 400. Every other failure is a 500 so the processor
// redelivers the event.
func (h *BillingHandler) StripeWebhook(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "payload"), nil)
		return
	}

	result, err := h.webhookService.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyInvalidSignature), nil)
			return
		}
		logrus.WithError(err).Error("Webhook processing failed")
		utils.Fail(c, utils.CodeWebhookFailed, err.Error(), nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received":  true,
		"event_id":  result.EventID,
		"status":    result.Status,
		"duplicate": result.Duplicate,
	})
}
