package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pactwise/pactwise-backend/internal/billing"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/repository/memory"
)

var usageNow = time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC)

func newUsageService(t *testing.T) (*UsageService, *repository.Repositories) {
	t.Helper()
	repos := memory.NewRepositories()
	service := NewUsageService(repos, nil)
	service.now = func() time.Time { return usageNow }
	return service, repos
}

func seedUsage(t *testing.T, repos *repository.Repositories, enterpriseID uuid.UUID, metric string, n int64, at time.Time) {
	t.Helper()
	_, err := repos.Usage.RecordWithinLimit(context.Background(), &models.UsageRecord{
		EnterpriseID: enterpriseID, Metric: metric, Quantity: n, RecordedAt: at,
	}, time.Time{}, repository.Unlimited)
	require.NoError(t, err)
}

func TestCheckUsageLimit_FreePlanThresholds(t *testing.T) {
	ctx := context.Background()
	service, repos := newUsageService(t)
	enterpriseID := uuid.New()

	// last month's usage does not count
	seedUsage(t, repos, enterpriseID, billing.MetricContracts, 9, time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC))

	seedUsage(t, repos, enterpriseID, billing.MetricContracts, 7, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	check, err := service.CheckUsageLimit(ctx, enterpriseID, billing.MetricContracts)
	require.NoError(t, err)
	assert.Equal(t, billing.PlanFree, check.Plan)
	assert.True(t, check.Allowed)
	assert.Equal(t, int64(7), check.Used)
	assert.Equal(t, int64(10), check.Limit)
	assert.Empty(t, check.Warning)

	seedUsage(t, repos, enterpriseID, billing.MetricContracts, 1, usageNow)
	check, err = service.CheckUsageLimit(ctx, enterpriseID, billing.MetricContracts)
	require.NoError(t, err)
	assert.True(t, check.Allowed)
	assert.NotEmpty(t, check.Warning)

	seedUsage(t, repos, enterpriseID, billing.MetricContracts, 2, usageNow)
	check, err = service.CheckUsageLimit(ctx, enterpriseID, billing.MetricContracts)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, int64(10), check.Used)
	assert.Empty(t, check.Warning)
}

func TestCheckUsageLimit_SubscriptionPeriodAndUnlimited(t *testing.T) {
	ctx := context.Background()
	service, repos := newUsageService(t)
	enterpriseID := uuid.New()

	periodStart := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repos.Billing.UpsertSubscription(ctx, &models.Subscription{
		EnterpriseID:         enterpriseID,
		StripeSubscriptionID: "sub_ent",
		Plan:                 billing.PlanEnterprise,
		Status:               models.SubscriptionStatusActive,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodStart.AddDate(0, 1, 0),
	}))

	seedUsage(t, repos, enterpriseID, billing.MetricVendors, 5000, periodStart.Add(-time.Hour))
	seedUsage(t, repos, enterpriseID, billing.MetricVendors, 3, periodStart.Add(time.Hour))

	check, err := service.CheckUsageLimit(ctx, enterpriseID, billing.MetricVendors)
	require.NoError(t, err)
	assert.Equal(t, billing.PlanEnterprise, check.Plan)
	assert.Equal(t, int64(3), check.Used)
	assert.Equal(t, billing.Unlimited, check.Limit)
	assert.True(t, check.Allowed)
	assert.Empty(t, check.Warning)
}

func TestCheckUsageLimit_UnknownMetric(t *testing.T) {
	service, _ := newUsageService(t)

	_, err := service.CheckUsageLimit(context.Background(), uuid.New(), "seats")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordUsage_RefusesPastLimit(t *testing.T) {
	ctx := context.Background()
	service, repos := newUsageService(t)
	enterpriseID := uuid.New()

	for i := 0; i < 5; i++ {
		_, err := service.RecordUsage(ctx, enterpriseID, billing.MetricVendors, 1)
		require.NoError(t, err)
	}

	_, err := service.RecordUsage(ctx, enterpriseID, billing.MetricVendors, 1)
	assert.ErrorIs(t, err, ErrUsageLimitExceeded)

	used, err := repos.Usage.SumSince(ctx, enterpriseID, billing.MetricVendors, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), used)
}

func TestRecordUsage_RejectsNonPositiveQuantity(t *testing.T) {
	service, _ := newUsageService(t)

	_, err := service.RecordUsage(context.Background(), uuid.New(), billing.MetricContracts, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetUsageSummary(t *testing.T) {
	service, _ := newUsageService(t)

	summary, err := service.GetUsageSummary(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, billing.PlanFree, summary.Plan)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), summary.PeriodStart)
	assert.Len(t, summary.Metrics, len(billing.Metrics))
}
