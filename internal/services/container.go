// internal/services/container.go
package services

import (
	"fmt"

	"github.com/pactwise/pactwise-backend/internal/billing"
	"github.com/pactwise/pactwise-backend/internal/cache"
	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

// Container holds one instance of every service, wired against a single set
// of repositories. Both the API server and pactctl build one.
type Container struct {
	Usage         *UsageService
	Dashboard     *DashboardService
	Billing       *BillingService
	Webhooks      *WebhookService
	Notifications *NotificationService
	Templates     *TemplateService
	Contracts     *ContractService
	Vendors       *VendorService
	Storage       *StorageService
	Maintenance   *MaintenanceService
}

func NewContainer(repos *repository.Repositories, c cache.Cache, gateway PaymentGateway, cfg *config.Config) (*Container, error) {
	plans := billing.DefaultCatalog()

	storage, err := NewStorageService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	usage := NewUsageService(repos, plans)
	dashboard := NewDashboardService(repos, c, cfg)
	notifications := NewNotificationService(repos, cfg)

	return &Container{
		Usage:         usage,
		Dashboard:     dashboard,
		Billing:       NewBillingService(repos, gateway, plans, cfg),
		Webhooks:      NewWebhookService(repos, gateway, notifications, plans),
		Notifications: notifications,
		Templates:     NewTemplateService(repos),
		Contracts:     NewContractService(repos, usage, storage, dashboard),
		Vendors:       NewVendorService(repos, usage, dashboard),
		Storage:       storage,
		Maintenance:   NewMaintenanceService(repos, notifications, dashboard, cfg),
	}, nil
}
