package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pactwise/pactwise-backend/internal/cache"
	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/repository/memory"
)

var dashboardNow = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

type dashboardFixture struct {
	ctx          context.Context
	repos        *repository.Repositories
	service      *DashboardService
	enterpriseID uuid.UUID
}

func newDashboardFixture(t *testing.T, c cache.Cache) *dashboardFixture {
	t.Helper()
	repos := memory.NewRepositories()
	cfg := &config.Config{Dashboard: config.DashboardConfig{CacheTTL: time.Minute}}

	service := NewDashboardService(repos, c, cfg)
	service.now = func() time.Time { return dashboardNow }

	return &dashboardFixture{
		ctx:          context.Background(),
		repos:        repos,
		service:      service,
		enterpriseID: uuid.New(),
	}
}

func (f *dashboardFixture) vendor(t *testing.T, name string, status models.VendorStatus) models.Vendor {
	t.Helper()
	v := models.Vendor{EnterpriseID: f.enterpriseID, Name: name, Status: status}
	require.NoError(t, f.repos.Vendors.Create(f.ctx, &v))
	return v
}

func (f *dashboardFixture) contract(t *testing.T, c models.Contract) models.Contract {
	t.Helper()
	c.EnterpriseID = f.enterpriseID
	require.NoError(t, f.repos.Contracts.Create(f.ctx, &c))
	return c
}

func endsIn(d time.Duration) *time.Time {
	end := dashboardNow.Add(d)
	return &end
}

const day = 24 * time.Hour

func TestParsePricing(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"$1,234.56", 1234.56, true},
		{"$50,000", 50000, true},
		{"USD 150000 per year", 150000, true},
		{"1.2.3", 1.2, true},
		{".5", 0.5, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"...", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParsePricing(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestGetContractStats_EmptyTenant(t *testing.T) {
	f := newDashboardFixture(t, nil)

	stats, err := f.service.GetContractStats(f.ctx, f.enterpriseID)
	require.NoError(t, err)

	assert.Equal(t, ContractStats{
		ByStatus: map[string]int{},
		ByType:   map[string]int{},
	}, stats)
}

func TestGetContractStats_PricingAndBuckets(t *testing.T) {
	f := newDashboardFixture(t, nil)
	f.contract(t, models.Contract{Title: "MSA", Status: models.ContractStatusActive, ContractType: "services", ExtractedPricing: "$1,234.56"})
	f.contract(t, models.Contract{Title: "NDA", Status: models.ContractStatusDraft, ExtractedPricing: "N/A"})

	stats, err := f.service.GetContractStats(f.ctx, f.enterpriseID)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.InDelta(t, 1234.56, stats.TotalValue, 1e-9)
	assert.InDelta(t, 617.28, stats.AvgValue, 1e-9)
	assert.Equal(t, map[string]int{"active": 1, "draft": 1}, stats.ByStatus)
	assert.Equal(t, map[string]int{"services": 1, "other": 1}, stats.ByType)
}

func TestGetContractStats_ExpiringSoonBoundary(t *testing.T) {
	f := newDashboardFixture(t, nil)
	f.contract(t, models.Contract{Title: "today", Status: models.ContractStatusActive, ExtractedEndDate: endsIn(0)})
	f.contract(t, models.Contract{Title: "thirty", Status: models.ContractStatusActive, ExtractedEndDate: endsIn(30 * day)})
	f.contract(t, models.Contract{Title: "thirty-one", Status: models.ContractStatusActive, ExtractedEndDate: endsIn(31 * day)})
	f.contract(t, models.Contract{Title: "past", Status: models.ContractStatusActive, ExtractedEndDate: endsIn(-day)})

	stats, err := f.service.GetContractStats(f.ctx, f.enterpriseID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ExpiringSoon)
}

func TestGetRecentActivity(t *testing.T) {
	f := newDashboardFixture(t, nil)
	for i := 0; i < 7; i++ {
		f.contract(t, models.Contract{
			BaseModel: models.BaseModel{CreatedAt: dashboardNow.Add(time.Duration(i) * time.Hour)},
			Title:     fmt.Sprintf("contract %d", i),
			Status:    models.ContractStatusActive,
		})
	}

	items, err := f.service.GetRecentActivity(f.ctx, f.enterpriseID)
	require.NoError(t, err)

	require.Len(t, items, 5)
	assert.Equal(t, "contract 6", items[0].Title)
	assert.Equal(t, "contract_active", items[0].Type)
	assert.Equal(t, "contract 2", items[4].Title)
}

func TestGetUpcomingRenewals_CappedAndSorted(t *testing.T) {
	f := newDashboardFixture(t, nil)
	for i := 14; i >= 0; i-- {
		f.contract(t, models.Contract{
			Title:            fmt.Sprintf("renewal %d", i),
			Status:           models.ContractStatusActive,
			ExtractedEndDate: endsIn(time.Duration(i)*day + time.Hour),
		})
	}
	f.contract(t, models.Contract{Title: "draft", Status: models.ContractStatusDraft, ExtractedEndDate: endsIn(day)})
	f.contract(t, models.Contract{Title: "far", Status: models.ContractStatusActive, ExtractedEndDate: endsIn(60 * day)})

	renewals, err := f.service.GetUpcomingRenewals(f.ctx, f.enterpriseID, 30)
	require.NoError(t, err)

	require.Len(t, renewals, 10)
	for i := 1; i < len(renewals); i++ {
		assert.False(t, renewals[i].EndDate.Before(renewals[i-1].EndDate))
	}
	assert.Equal(t, "renewal 0", renewals[0].Title)
	assert.Equal(t, 1, renewals[0].DaysUntil)
}

func TestGetRiskAlerts(t *testing.T) {
	f := newDashboardFixture(t, nil)
	covered := f.vendor(t, "Covered", models.VendorStatusActive)
	lonely := f.vendor(t, "Lonely", models.VendorStatusActive)
	f.vendor(t, "Dormant", models.VendorStatusInactive)

	f.contract(t, models.Contract{Title: "soon", Status: models.ContractStatusActive, VendorID: &covered.ID, ExtractedEndDate: endsIn(3 * day)})
	f.contract(t, models.Contract{Title: "big", Status: models.ContractStatusPendingAnalysis, ExtractedPricing: "$250,000"})
	f.contract(t, models.Contract{Title: "small", Status: models.ContractStatusPendingAnalysis, ExtractedPricing: "$100,000"})

	alerts, err := f.service.GetRiskAlerts(f.ctx, f.enterpriseID)
	require.NoError(t, err)

	require.Len(t, alerts, 3)
	assert.Equal(t, RiskAlertExpiring, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Equal(t, RiskAlertNeedsReview, alerts[1].Type)
	assert.Equal(t, "medium", alerts[1].Severity)
	assert.Equal(t, RiskAlertNoContracts, alerts[2].Type)
	assert.Equal(t, "low", alerts[2].Severity)
	assert.Equal(t, lonely.ID, *alerts[2].VendorID)
}

func TestGetRiskAlerts_Capped(t *testing.T) {
	f := newDashboardFixture(t, nil)
	for i := 0; i < 12; i++ {
		f.vendor(t, fmt.Sprintf("vendor %d", i), models.VendorStatusActive)
	}

	alerts, err := f.service.GetRiskAlerts(f.ctx, f.enterpriseID)
	require.NoError(t, err)
	assert.Len(t, alerts, 10)
}

func TestGetSpendAnalysis_Percentages(t *testing.T) {
	f := newDashboardFixture(t, nil)
	amounts := []string{"$10,000", "$20,000", "$30,000", "$40,000", "$50,000", "$60,000", "$70,000"}
	for i, amount := range amounts {
		v := f.vendor(t, fmt.Sprintf("vendor %d", i), models.VendorStatusActive)
		f.contract(t, models.Contract{Title: amount, Status: models.ContractStatusActive, VendorID: &v.ID, ContractType: "saas", ExtractedPricing: amount})
	}
	f.contract(t, models.Contract{Title: "unattached", Status: models.ContractStatusActive, ExtractedPricing: "$5,000"})
	f.contract(t, models.Contract{Title: "ignored", Status: models.ContractStatusExpired, ExtractedPricing: "$1,000,000"})

	spend, err := f.service.GetSpendAnalysis(f.ctx, f.enterpriseID)
	require.NoError(t, err)

	assert.InDelta(t, 285000, spend.TotalSpend, 1e-6)
	assert.InDelta(t, 280000, spend.ByCategory["saas"], 1e-6)
	assert.InDelta(t, 5000, spend.ByCategory["other"], 1e-6)
	assert.InDelta(t, 285000.0/12, spend.MonthlySpend["2024-06"], 1e-6)
	assert.Len(t, spend.MonthlySpend, 1)
	assert.Len(t, spend.ByVendor, 7)

	require.Len(t, spend.TopVendors, 5)
	assert.Equal(t, "vendor 6", spend.TopVendors[0].VendorName)

	var sum float64
	for _, v := range spend.TopVendors {
		assert.InDelta(t, v.Amount/spend.TotalSpend*100, v.Percentage, 1e-9)
		sum += v.Percentage
	}
	assert.LessOrEqual(t, sum, 100.0)
}

func TestGetAllDashboardData_EndToEnd(t *testing.T) {
	f := newDashboardFixture(t, cache.NewMemory())
	v := f.vendor(t, "V", models.VendorStatusActive)
	f.contract(t, models.Contract{Title: "A", Status: models.ContractStatusActive, VendorID: &v.ID, ExtractedPricing: "$50,000"})
	f.contract(t, models.Contract{Title: "B", Status: models.ContractStatusActive, VendorID: &v.ID, ExtractedPricing: "$150,000"})

	data, err := f.service.GetAllDashboardData(f.ctx, f.enterpriseID, nil)
	require.NoError(t, err)

	assert.InDelta(t, 200000, data.Stats.TotalValue, 1e-9)
	assert.InDelta(t, 100000, data.Stats.AvgValue, 1e-9)
	require.Len(t, data.SpendAnalysis.TopVendors, 1)
	assert.Equal(t, v.ID, data.SpendAnalysis.TopVendors[0].VendorID)
	assert.InDelta(t, 200000, data.SpendAnalysis.TopVendors[0].Amount, 1e-9)
	assert.InDelta(t, 100, data.SpendAnalysis.TopVendors[0].Percentage, 1e-9)
	assert.Len(t, data.Contracts, 2)
	assert.Len(t, data.Vendors, 1)
	assert.Nil(t, data.UnreadNotifications)
	assert.Equal(t, dashboardNow, data.LastUpdated)
}

func TestGetAllDashboardData_CachedUntilInvalidated(t *testing.T) {
	f := newDashboardFixture(t, cache.NewMemory())
	f.contract(t, models.Contract{Title: "A", Status: models.ContractStatusActive, ExtractedPricing: "$10"})

	first, err := f.service.GetAllDashboardData(f.ctx, f.enterpriseID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Stats.Total)

	f.contract(t, models.Contract{Title: "B", Status: models.ContractStatusActive})

	cached, err := f.service.GetAllDashboardData(f.ctx, f.enterpriseID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Stats.Total)

	f.service.Invalidate(f.ctx, f.enterpriseID)

	fresh, err := f.service.GetAllDashboardData(f.ctx, f.enterpriseID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Stats.Total)
}

func TestGetAllDashboardData_UnreadCountForUser(t *testing.T) {
	f := newDashboardFixture(t, cache.NewMemory())
	userID := uuid.New()
	require.NoError(t, f.repos.Notifications.Create(f.ctx, &models.Notification{
		EnterpriseID: f.enterpriseID, RecipientID: userID, Type: "test", Title: "hi",
	}))

	data, err := f.service.GetAllDashboardData(f.ctx, f.enterpriseID, &userID)
	require.NoError(t, err)
	require.NotNil(t, data.UnreadNotifications)
	assert.Equal(t, int64(1), *data.UnreadNotifications)
}

type failingContracts struct {
	repository.ContractRepository
}

func (failingContracts) List(context.Context, uuid.UUID, repository.ContractFilter) ([]models.Contract, int64, error) {
	return nil, 0, errors.New("connection reset")
}

func TestGetAllDashboardData_FailsWhenAnyPartFails(t *testing.T) {
	f := newDashboardFixture(t, nil)
	f.service.contracts = failingContracts{}

	data, err := f.service.GetAllDashboardData(f.ctx, f.enterpriseID, nil)
	assert.Nil(t, data)
	assert.ErrorContains(t, err, "connection reset")
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, interface{}) (bool, error) {
	return false, errors.New("redis down")
}
func (brokenCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("redis down")
}
func (brokenCache) Delete(context.Context, ...string) error { return errors.New("redis down") }

func TestGetAllDashboardData_CacheFailureDegrades(t *testing.T) {
	f := newDashboardFixture(t, brokenCache{})
	f.contract(t, models.Contract{Title: "A", Status: models.ContractStatusActive})

	data, err := f.service.GetAllDashboardData(f.ctx, f.enterpriseID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, data.Stats.Total)
}
