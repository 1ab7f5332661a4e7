// internal/services/usage_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pactwise/pactwise-backend/internal/billing"
	"github.com/pactwise/pactwise-backend/internal/metrics"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

const usageWarningRatio = 0.8

type UsageService struct {
	billing repository.BillingRepository
	usage   repository.UsageRepository
	plans   *billing.Catalog
	now     func() time.Time
}

type UsageCheck struct {
	Metric  string `json:"metric"`
	Plan    string `json:"plan"`
	Allowed bool   `json:"allowed"`
	Used    int64  `json:"used"`
	Limit   int64  `json:"limit"`
	Warning string `json:"warning,omitempty"`
}

type UsageSummary struct {
	Plan        string       `json:"plan"`
	PeriodStart time.Time    `json:"period_start"`
	Metrics     []UsageCheck `json:"metrics"`
}

func NewUsageService(repos *repository.Repositories, plans *billing.Catalog) *UsageService {
	if plans == nil {
		plans = billing.DefaultCatalog()
	}
	return &UsageService{
		billing: repos.Billing,
		usage:   repos.Usage,
		plans:   plans,
		now:     time.Now,
	}
}

// usagePeriod resolves the tenant's plan and the start of its current billing
// period. Tenants without an entitled subscription are on the free plan and
// count from the start of the calendar month.
func (s *UsageService) usagePeriod(ctx context.Context, enterpriseID uuid.UUID) (plan string, since time.Time, sub *models.Subscription, err error) {
	sub, err = s.billing.GetActiveSubscription(ctx, enterpriseID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", time.Time{}, nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	if sub == nil {
		now := s.now().UTC()
		return billing.PlanFree, time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil, nil
	}
	return sub.Plan, sub.CurrentPeriodStart, sub, nil
}

func (s *UsageService) CheckUsageLimit(ctx context.Context, enterpriseID uuid.UUID, metric string) (*UsageCheck, error) {
	plan, since, _, err := s.usagePeriod(ctx, enterpriseID)
	if err != nil {
		return nil, err
	}
	return s.check(ctx, enterpriseID, plan, since, metric)
}

func (s *UsageService) check(ctx context.Context, enterpriseID uuid.UUID, plan string, since time.Time, metric string) (*UsageCheck, error) {
	limit, ok := s.plans.Limit(plan, metric)
	if !ok {
		return nil, invalidInput("unknown usage metric %q", metric)
	}

	used, err := s.usage.SumSince(ctx, enterpriseID, metric, since)
	if err != nil {
		return nil, fmt.Errorf("failed to sum usage: %w", err)
	}

	result := &UsageCheck{
		Metric:  metric,
		Plan:    plan,
		Allowed: limit == billing.Unlimited || used < limit,
		Used:    used,
		Limit:   limit,
	}
	if limit != billing.Unlimited && used < limit && float64(used) >= usageWarningRatio*float64(limit) {
		result.Warning = fmt.Sprintf("You have used %d of %d %s on the %s plan", used, limit, metric, plan)
	}

	metrics.RecordUsageCheck(metric, result.Allowed)
	return result, nil
}

// RecordUsage appends quantity units of metric, refusing with
// ErrUsageLimitExceeded when the write would take usage past the plan limit.
func (s *UsageService) RecordUsage(ctx context.Context, enterpriseID uuid.UUID, metric string, quantity int64) (*UsageCheck, error) {
	if quantity <= 0 {
		return nil, invalidInput("usage quantity must be positive")
	}

	plan, since, sub, err := s.usagePeriod(ctx, enterpriseID)
	if err != nil {
		return nil, err
	}
	limit, ok := s.plans.Limit(plan, metric)
	if !ok {
		return nil, invalidInput("unknown usage metric %q", metric)
	}

	record := &models.UsageRecord{
		EnterpriseID: enterpriseID,
		Metric:       metric,
		Quantity:     quantity,
		RecordedAt:   s.now().UTC(),
	}
	if sub != nil {
		record.SubscriptionID = &sub.ID
	}

	used, err := s.usage.RecordWithinLimit(ctx, record, since, limit)
	if errors.Is(err, repository.ErrLimitExceeded) {
		metrics.RecordUsageCheck(metric, false)
		logrus.WithFields(logrus.Fields{
			"enterprise_id": enterpriseID,
			"metric":        metric,
			"used":          used,
			"limit":         limit,
		}).Info("Usage limit reached")
		return nil, fmt.Errorf("%s limit of %d reached on the %s plan: %w", metric, limit, plan, ErrUsageLimitExceeded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	metrics.RecordUsageCheck(metric, true)
	return &UsageCheck{
		Metric:  metric,
		Plan:    plan,
		Allowed: limit == billing.Unlimited || used < limit,
		Used:    used,
		Limit:   limit,
	}, nil
}

func (s *UsageService) GetUsageSummary(ctx context.Context, enterpriseID uuid.UUID) (*UsageSummary, error) {
	plan, since, _, err := s.usagePeriod(ctx, enterpriseID)
	if err != nil {
		return nil, err
	}

	summary := &UsageSummary{Plan: plan, PeriodStart: since}
	for _, metric := range billing.Metrics {
		check, err := s.check(ctx, enterpriseID, plan, since, metric)
		if err != nil {
			return nil, err
		}
		summary.Metrics = append(summary.Metrics, *check)
	}
	return summary, nil
}
