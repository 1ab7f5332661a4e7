// internal/services/maintenance_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

const (
	defaultWebhookEventRetention  = 30 * 24 * time.Hour
	defaultAuditLogRetention      = 90 * 24 * time.Hour
	defaultNotificationArchiveAge = 30 * 24 * time.Hour
	vendorRenewalWindow           = 30 * 24 * time.Hour
)

// MaintenanceService holds the periodic housekeeping tasks. Each task spans
// every tenant and returns the number of rows it touched.
type MaintenanceService struct {
	enterprises   repository.EnterpriseRepository
	contracts     repository.ContractRepository
	vendors       repository.VendorRepository
	billing       repository.BillingRepository
	auditLogs     repository.AuditLogRepository
	notifications *NotificationService
	dashboard     *DashboardService
	config        *config.Config
	now           func() time.Time
}

func NewMaintenanceService(repos *repository.Repositories, notifications *NotificationService, dashboard *DashboardService, config *config.Config) *MaintenanceService {
	return &MaintenanceService{
		enterprises:   repos.Enterprises,
		contracts:     repos.Contracts,
		vendors:       repos.Vendors,
		billing:       repos.Billing,
		auditLogs:     repos.AuditLogs,
		notifications: notifications,
		dashboard:     dashboard,
		config:        config,
		now:           time.Now,
	}
}

func (s *MaintenanceService) CleanupWebhookEvents(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention(s.config.Jobs.WebhookEventRetention, defaultWebhookEventRetention))
	n, err := s.billing.DeleteWebhookEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete webhook events: %w", err)
	}
	return n, nil
}

func (s *MaintenanceService) CleanupAuditLogs(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention(s.config.Jobs.AuditLogRetention, defaultAuditLogRetention))
	n, err := s.auditLogs.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit logs: %w", err)
	}
	return n, nil
}

func (s *MaintenanceService) ArchiveNotifications(ctx context.Context) (int64, error) {
	return s.notifications.ArchiveOld(ctx, s.retention(s.config.Jobs.NotificationArchiveAge, defaultNotificationArchiveAge))
}

// ExpireContracts moves active contracts whose end date has passed to expired
// and notifies whoever created them. A contract that fails to update is
// logged and retried on the next run.
func (s *MaintenanceService) ExpireContracts(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	contracts, err := s.contracts.ListActiveEndedBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list ended contracts: %w", err)
	}

	var expired int64
	var failed int
	touched := make(map[uuid.UUID]bool)
	for i := range contracts {
		contract := contracts[i]
		contract.Status = models.ContractStatusExpired
		if err := s.contracts.Update(ctx, &contract); err != nil {
			failed++
			logrus.WithError(err).WithField("contract_id", contract.ID).Error("Failed to expire contract")
			continue
		}
		expired++
		touched[contract.EnterpriseID] = true

		if contract.CreatedBy != nil {
			contractID := contract.ID
			_, err := s.notifications.Create(ctx, NotificationInput{
				EnterpriseID: contract.EnterpriseID,
				RecipientID:  *contract.CreatedBy,
				Type:         NotificationContractExpired,
				Title:        contract.Title,
				Message:      fmt.Sprintf("%s ended on %s and is now marked expired.", contract.Title, contract.ExtractedEndDate.Format("2006-01-02")),
				ContractID:   &contractID,
				VendorID:     contract.VendorID,
				ActionURL:    "/contracts/" + contract.ID.String(),
			})
			if err != nil {
				logrus.WithError(err).WithField("contract_id", contract.ID).Warn("Failed to notify contract owner")
			}
		}
	}

	for enterpriseID := range touched {
		s.invalidate(ctx, enterpriseID)
	}

	if failed > 0 {
		return expired, fmt.Errorf("%d of %d contracts could not be expired", failed, len(contracts))
	}
	return expired, nil
}

// RefreshVendorScores recomputes every vendor's contract aggregates and risk
// level from its tenant's contracts.
func (s *MaintenanceService) RefreshVendorScores(ctx context.Context) (int64, error) {
	enterprises, err := s.enterprises.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list enterprises: %w", err)
	}

	var updated int64
	for _, enterprise := range enterprises {
		n, err := s.refreshEnterpriseVendors(ctx, enterprise.ID)
		updated += n
		if err != nil {
			return updated, err
		}
	}
	return updated, nil
}

func (s *MaintenanceService) refreshEnterpriseVendors(ctx context.Context, enterpriseID uuid.UUID) (int64, error) {
	vendors, _, err := s.vendors.List(ctx, enterpriseID, repository.VendorFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list vendors: %w", err)
	}
	if len(vendors) == 0 {
		return 0, nil
	}
	contracts, _, err := s.contracts.List(ctx, enterpriseID, repository.ContractFilter{
		Statuses: []models.ContractStatus{models.ContractStatusActive},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list contracts: %w", err)
	}

	now := s.now().UTC()
	var updated int64
	for i := range vendors {
		vendor := &vendors[i]
		scoreVendor(vendor, contracts, now)
		if err := s.vendors.Update(ctx, vendor); err != nil {
			return updated, fmt.Errorf("failed to update vendor %s: %w", vendor.ID, err)
		}
		updated++
	}

	s.invalidate(ctx, enterpriseID)
	return updated, nil
}

// scoreVendor sets the aggregates from the tenant's active contracts. An
// active vendor with nothing under contract is high risk; one with a contract
// ending within the renewal window is medium.
func scoreVendor(vendor *models.Vendor, activeContracts []models.Contract, now time.Time) {
	count := 0
	total := 0.0
	renewalDue := false
	for _, c := range activeContracts {
		if c.VendorID == nil || *c.VendorID != vendor.ID {
			continue
		}
		count++
		total += contractValue(c)
		if c.ExtractedEndDate != nil && c.ExtractedEndDate.Sub(now) <= vendorRenewalWindow {
			renewalDue = true
		}
	}

	vendor.ActiveContracts = count
	vendor.TotalContractValue = total
	switch {
	case vendor.Status == models.VendorStatusActive && count == 0:
		vendor.RiskLevel = models.RiskLevelHigh
	case renewalDue:
		vendor.RiskLevel = models.RiskLevelMedium
	default:
		vendor.RiskLevel = models.RiskLevelLow
	}
	vendor.ScoresUpdatedAt = &now
}

func (s *MaintenanceService) invalidate(ctx context.Context, enterpriseID uuid.UUID) {
	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx, enterpriseID)
	}
}

func (s *MaintenanceService) retention(configured, fallback time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	return fallback
}
