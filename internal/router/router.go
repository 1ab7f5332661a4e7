// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/handlers"
	"github.com/pactwise/pactwise-backend/internal/metrics"
	"github.com/pactwise/pactwise-backend/internal/middleware"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/services"
)

const (
	apiRate  = rate.Limit(10)
	apiBurst = 40
)

// Version is reported by /health.
var Version = "dev"

// Initialize builds the engine. The returned release func stops background
// work owned by the router and must be called on shutdown.
func Initialize(svc *services.Container, repos *repository.Repositories, cfg *config.Config) (*gin.Engine, func()) {
	// Initialize handlers
	dashboardHandler := handlers.NewDashboardHandler(svc.Dashboard)
	billingHandler := handlers.NewBillingHandler(svc.Billing, svc.Usage, svc.Webhooks)
	contractHandler := handlers.NewContractHandler(svc.Contracts)
	vendorHandler := handlers.NewVendorHandler(svc.Vendors)
	templateHandler := handlers.NewTemplateHandler(svc.Templates)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)

	apiLimiter := middleware.NewRateLimiter(apiRate, apiBurst)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(metrics.Middleware())
	r.Use(middleware.CORS(cfg.Frontend.AllowedOrigins))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(middleware.AuditLogMiddleware(repos.AuditLogs))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": Version,
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/v1")
	{
		// Payment processor callbacks authenticate by signature
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/stripe", billingHandler.StripeWebhook)
		}

		api := v1.Group("")
		api.Use(middleware.AuthRequired(), apiLimiter.Middleware())

		dashboard := api.Group("/dashboard")
		{
			dashboard.GET("", dashboardHandler.GetDashboard)
			dashboard.GET("/stats", dashboardHandler.GetStats)
			dashboard.GET("/renewals", dashboardHandler.GetRenewals)
			dashboard.GET("/risk-alerts", dashboardHandler.GetRiskAlerts)
			dashboard.GET("/spend", dashboardHandler.GetSpendAnalysis)
			dashboard.GET("/activity", dashboardHandler.GetActivity)
		}

		contracts := api.Group("/contracts")
		{
			contracts.GET("", contractHandler.ListContracts)
			contracts.POST("", contractHandler.CreateContract)
			contracts.GET("/:id", contractHandler.GetContract)
			contracts.PUT("/:id", contractHandler.UpdateContract)
			contracts.PUT("/:id/status", contractHandler.ChangeStatus)
			contracts.POST("/:id/document", contractHandler.UploadDocument)
			contracts.GET("/:id/document", contractHandler.GetDocumentURL)
		}

		vendors := api.Group("/vendors")
		{
			vendors.GET("", vendorHandler.ListVendors)
			vendors.POST("", vendorHandler.CreateVendor)
			vendors.GET("/:id", vendorHandler.GetVendor)
			vendors.PUT("/:id", vendorHandler.UpdateVendor)
			vendors.PUT("/:id/status", vendorHandler.ChangeStatus)
		}

		templates := api.Group("/templates")
		{
			templates.GET("", templateHandler.ListTemplates)
			templates.POST("", templateHandler.CreateTemplate)
			templates.GET("/:id", templateHandler.GetTemplate)
			templates.PUT("/:id", templateHandler.UpdateTemplate)
			templates.DELETE("/:id", templateHandler.DeleteTemplate)
			templates.GET("/:id/versions", templateHandler.ListVersions)
			templates.POST("/:id/generate", templateHandler.GenerateContract)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", notificationHandler.ListNotifications)
			notifications.GET("/unread-count", notificationHandler.UnreadCount)
			notifications.PUT("/read-all", notificationHandler.MarkAllRead)
			notifications.PUT("/:id/read", notificationHandler.MarkRead)
			notifications.DELETE("/:id", notificationHandler.Dismiss)
		}

		billing := api.Group("/billing")
		{
			billing.GET("/plans", billingHandler.GetPlans)
			billing.POST("/checkout", billingHandler.CreateCheckoutSession)
			billing.POST("/portal", billingHandler.CreatePortalSession)
			billing.GET("/subscription", billingHandler.GetSubscription)
			billing.POST("/subscription/cancel", billingHandler.CancelSubscription)
			billing.POST("/subscription/resume", billingHandler.ResumeSubscription)
			billing.GET("/invoices", billingHandler.ListInvoices)
			billing.GET("/usage", billingHandler.GetUsage)
			billing.GET("/usage/:metric", billingHandler.CheckUsage)
		}
	}

	return r, apiLimiter.Close
}
