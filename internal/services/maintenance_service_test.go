package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/repository/memory"
)

type MaintenanceServiceTestSuite struct {
	suite.Suite
	ctx        context.Context
	repos      *repository.Repositories
	service    *MaintenanceService
	now        time.Time
	enterprise models.Enterprise
}

func (s *MaintenanceServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.repos = memory.NewRepositories()
	s.now = time.Now().UTC()

	cfg := &config.Config{Jobs: config.JobsConfig{
		WebhookEventRetention: 7 * 24 * time.Hour,
		AuditLogRetention:     90 * 24 * time.Hour,
	}}
	notifications := NewNotificationService(s.repos, cfg)
	notifications.mailer = func(string, string, string) error { return nil }

	s.service = NewMaintenanceService(s.repos, notifications, nil, cfg)
	s.service.now = func() time.Time { return s.now }

	s.enterprise = models.Enterprise{Name: "Acme"}
	s.Require().NoError(s.repos.Enterprises.Create(s.ctx, &s.enterprise))
}

func (s *MaintenanceServiceTestSuite) at(d time.Duration) *time.Time {
	t := s.now.Add(d)
	return &t
}

func (s *MaintenanceServiceTestSuite) TestCleanupWebhookEvents() {
	s.Require().NoError(s.repos.Billing.SaveWebhookEvent(s.ctx, &models.WebhookEvent{StripeEventID: "evt_old", ProcessedAt: s.now.Add(-8 * 24 * time.Hour)}))
	s.Require().NoError(s.repos.Billing.SaveWebhookEvent(s.ctx, &models.WebhookEvent{StripeEventID: "evt_new", ProcessedAt: s.now.Add(-time.Hour)}))

	n, err := s.service.CleanupWebhookEvents(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = s.repos.Billing.GetWebhookEvent(s.ctx, "evt_old")
	s.ErrorIs(err, repository.ErrNotFound)
	_, err = s.repos.Billing.GetWebhookEvent(s.ctx, "evt_new")
	s.NoError(err)
}

func (s *MaintenanceServiceTestSuite) TestCleanupAuditLogs() {
	old := models.AuditLog{Action: "POST /v1/contracts", ResourceType: "contracts"}
	old.CreatedAt = s.now.Add(-100 * 24 * time.Hour)
	recent := models.AuditLog{Action: "PUT /v1/vendors/:id", ResourceType: "vendors"}
	s.Require().NoError(s.repos.AuditLogs.Create(s.ctx, &old))
	s.Require().NoError(s.repos.AuditLogs.Create(s.ctx, &recent))

	n, err := s.service.CleanupAuditLogs(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *MaintenanceServiceTestSuite) TestExpireContracts() {
	creator := models.User{EnterpriseID: s.enterprise.ID, Email: "owner@acme.test", Role: models.UserRoleOwner}
	s.Require().NoError(s.repos.Users.Create(s.ctx, &creator))

	ended := models.Contract{EnterpriseID: s.enterprise.ID, Title: "Old MSA", Status: models.ContractStatusActive, CreatedBy: &creator.ID, ExtractedEndDate: s.at(-24 * time.Hour)}
	running := models.Contract{EnterpriseID: s.enterprise.ID, Title: "Current MSA", Status: models.ContractStatusActive, ExtractedEndDate: s.at(24 * time.Hour)}
	draft := models.Contract{EnterpriseID: s.enterprise.ID, Title: "Draft", Status: models.ContractStatusDraft, ExtractedEndDate: s.at(-24 * time.Hour)}
	for _, c := range []*models.Contract{&ended, &running, &draft} {
		s.Require().NoError(s.repos.Contracts.Create(s.ctx, c))
	}

	n, err := s.service.ExpireContracts(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	got, err := s.repos.Contracts.GetByID(s.ctx, s.enterprise.ID, ended.ID)
	s.Require().NoError(err)
	s.Equal(models.ContractStatusExpired, got.Status)

	got, err = s.repos.Contracts.GetByID(s.ctx, s.enterprise.ID, running.ID)
	s.Require().NoError(err)
	s.Equal(models.ContractStatusActive, got.Status)

	notifications, _, err := s.repos.Notifications.List(s.ctx, creator.ID, repository.NotificationFilter{})
	s.Require().NoError(err)
	s.Require().Len(notifications, 1)
	s.Equal(NotificationContractExpired, notifications[0].Type)
	s.Equal(ended.ID, *notifications[0].ContractID)

	// a second run finds nothing left to expire
	n, err = s.service.ExpireContracts(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *MaintenanceServiceTestSuite) TestRefreshVendorScores() {
	idle := models.Vendor{EnterpriseID: s.enterprise.ID, Name: "Idle", Status: models.VendorStatusActive}
	renewing := models.Vendor{EnterpriseID: s.enterprise.ID, Name: "Renewing", Status: models.VendorStatusActive}
	steady := models.Vendor{EnterpriseID: s.enterprise.ID, Name: "Steady", Status: models.VendorStatusActive}
	retired := models.Vendor{EnterpriseID: s.enterprise.ID, Name: "Retired", Status: models.VendorStatusInactive}
	for _, v := range []*models.Vendor{&idle, &renewing, &steady, &retired} {
		s.Require().NoError(s.repos.Vendors.Create(s.ctx, v))
	}

	contracts := []models.Contract{
		{VendorID: &renewing.ID, Status: models.ContractStatusActive, ExtractedPricing: "$10,000", ExtractedEndDate: s.at(10 * 24 * time.Hour)},
		{VendorID: &steady.ID, Status: models.ContractStatusActive, ExtractedPricing: "$50,000", ExtractedEndDate: s.at(200 * 24 * time.Hour)},
		{VendorID: &steady.ID, Status: models.ContractStatusActive, ExtractedPricing: "N/A"},
		{VendorID: &idle.ID, Status: models.ContractStatusExpired, ExtractedPricing: "$99"},
	}
	for i := range contracts {
		contracts[i].EnterpriseID = s.enterprise.ID
		contracts[i].Title = "contract"
		s.Require().NoError(s.repos.Contracts.Create(s.ctx, &contracts[i]))
	}

	n, err := s.service.RefreshVendorScores(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(4), n)

	want := map[uuid.UUID]struct {
		active int
		value  float64
		risk   models.RiskLevel
	}{
		idle.ID:     {0, 0, models.RiskLevelHigh},
		renewing.ID: {1, 10000, models.RiskLevelMedium},
		steady.ID:   {2, 50000, models.RiskLevelLow},
		retired.ID:  {0, 0, models.RiskLevelLow},
	}
	for id, w := range want {
		v, err := s.repos.Vendors.GetByID(s.ctx, s.enterprise.ID, id)
		s.Require().NoError(err)
		s.Equal(w.active, v.ActiveContracts, v.Name)
		s.Equal(w.value, v.TotalContractValue, v.Name)
		s.Equal(w.risk, v.RiskLevel, v.Name)
		s.Require().NotNil(v.ScoresUpdatedAt)
	}
}

func (s *MaintenanceServiceTestSuite) TestArchiveNotifications() {
	recipient := uuid.New()
	old := models.Notification{EnterpriseID: s.enterprise.ID, RecipientID: recipient, Title: "old", IsRead: true}
	old.CreatedAt = time.Now().Add(-40 * 24 * time.Hour)
	unread := models.Notification{EnterpriseID: s.enterprise.ID, RecipientID: recipient, Title: "unread"}
	unread.CreatedAt = time.Now().Add(-40 * 24 * time.Hour)
	s.Require().NoError(s.repos.Notifications.Create(s.ctx, &old))
	s.Require().NoError(s.repos.Notifications.Create(s.ctx, &unread))

	n, err := s.service.ArchiveNotifications(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func TestMaintenanceServiceTestSuite(t *testing.T) {
	suite.Run(t, new(MaintenanceServiceTestSuite))
}
