// internal/services/dashboard_service.go
package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pactwise/pactwise-backend/internal/cache"
	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/metrics"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

const (
	expiringSoonDays      = 30
	riskExpiringDays      = 7
	highValueThreshold    = 100000
	maxRecentActivity     = 5
	maxUpcomingRenewals   = 10
	maxRiskAlerts         = 10
	maxTopVendors         = 5
	dashboardContractsCap = 50
	defaultCategory       = "other"
)

type DashboardService struct {
	contracts     repository.ContractRepository
	vendors       repository.VendorRepository
	notifications repository.NotificationRepository
	cache         cache.Cache
	config        *config.Config
	now           func() time.Time
}

type ContractStats struct {
	Total        int            `json:"total"`
	Active       int            `json:"active"`
	ExpiringSoon int            `json:"expiring_soon"`
	TotalValue   float64        `json:"total_value"`
	AvgValue     float64        `json:"avg_value"`
	ByStatus     map[string]int `json:"by_status"`
	ByType       map[string]int `json:"by_type"`
}

// ActivityItem is a contract relabelled as a feed entry.
type ActivityItem struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

type RenewalItem struct {
	ContractID uuid.UUID  `json:"contract_id"`
	Title      string     `json:"title"`
	VendorID   *uuid.UUID `json:"vendor_id,omitempty"`
	EndDate    time.Time  `json:"end_date"`
	DaysUntil  int        `json:"days_until"`
	Value      float64    `json:"value"`
}

type RiskAlert struct {
	Type       string     `json:"type"`
	Severity   string     `json:"severity"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	ContractID *uuid.UUID `json:"contract_id,omitempty"`
	VendorID   *uuid.UUID `json:"vendor_id,omitempty"`
}

// Risk alert types
const (
	RiskAlertExpiring    = "expiring"
	RiskAlertNeedsReview = "needs_review"
	RiskAlertNoContracts = "no_contracts"
)

type VendorSpend struct {
	VendorID   uuid.UUID `json:"vendor_id"`
	VendorName string    `json:"vendor_name"`
	Amount     float64   `json:"amount"`
	Percentage float64   `json:"percentage"`
}

type SpendAnalysis struct {
	TotalSpend   float64            `json:"total_spend"`
	ByCategory   map[string]float64 `json:"by_category"`
	ByVendor     map[string]float64 `json:"by_vendor"`
	MonthlySpend map[string]float64 `json:"monthly_spend"`
	TopVendors   []VendorSpend      `json:"top_vendors"`
}

type DashboardData struct {
	Stats               ContractStats     `json:"stats"`
	Contracts           []models.Contract `json:"contracts"`
	Vendors             []models.Vendor   `json:"vendors"`
	RecentActivity      []ActivityItem    `json:"recent_activity"`
	UpcomingRenewals    []RenewalItem     `json:"upcoming_renewals"`
	RiskAlerts          []RiskAlert       `json:"risk_alerts"`
	SpendAnalysis       SpendAnalysis     `json:"spend_analysis"`
	LastUpdated         time.Time         `json:"last_updated"`
	UnreadNotifications *int64            `json:"unread_notifications,omitempty"`
}

func NewDashboardService(repos *repository.Repositories, c cache.Cache, config *config.Config) *DashboardService {
	if c == nil {
		c = cache.Noop{}
	}
	return &DashboardService{
		contracts:     repos.Contracts,
		vendors:       repos.Vendors,
		notifications: repos.Notifications,
		cache:         c,
		config:        config,
		now:           time.Now,
	}
}

func dashboardCacheKey(enterpriseID uuid.UUID) string {
	return "dashboard:" + enterpriseID.String()
}

// GetAllDashboardData fans out to every sub-query and fails as a whole if any
// one of them fails. The tenant part is cached; the per-user unread count is not.
func (s *DashboardService) GetAllDashboardData(ctx context.Context, enterpriseID uuid.UUID, userID *uuid.UUID) (*DashboardData, error) {
	var data DashboardData

	key := dashboardCacheKey(enterpriseID)
	hit, err := s.cache.Get(ctx, key, &data)
	if err != nil {
		logrus.WithError(err).WithField("enterprise_id", enterpriseID).Warn("Dashboard cache read failed")
		hit = false
	}
	metrics.RecordCacheLookup(hit)

	if !hit {
		fresh, err := s.loadDashboardData(ctx, enterpriseID)
		if err != nil {
			return nil, err
		}
		data = *fresh

		if err := s.cache.Set(ctx, key, data, s.cacheTTL()); err != nil {
			logrus.WithError(err).WithField("enterprise_id", enterpriseID).Warn("Dashboard cache write failed")
		}
	}

	if userID != nil {
		unread, err := s.notifications.CountUnread(ctx, *userID)
		if err != nil {
			return nil, fmt.Errorf("failed to count unread notifications: %w", err)
		}
		data.UnreadNotifications = &unread
	}

	return &data, nil
}

func (s *DashboardService) loadDashboardData(ctx context.Context, enterpriseID uuid.UUID) (*DashboardData, error) {
	data := &DashboardData{LastUpdated: s.now().UTC()}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		data.Stats, err = s.GetContractStats(gctx, enterpriseID)
		return err
	})
	g.Go(func() error {
		contracts, _, err := s.contracts.List(gctx, enterpriseID, repository.ContractFilter{
			Page: repository.Page{Page: 1, Limit: dashboardContractsCap},
		})
		if err != nil {
			return err
		}
		data.Contracts = contracts
		return nil
	})
	g.Go(func() error {
		vendors, _, err := s.vendors.List(gctx, enterpriseID, repository.VendorFilter{})
		if err != nil {
			return err
		}
		data.Vendors = vendors
		return nil
	})
	g.Go(func() (err error) {
		data.RecentActivity, err = s.GetRecentActivity(gctx, enterpriseID)
		return err
	})
	g.Go(func() (err error) {
		data.UpcomingRenewals, err = s.GetUpcomingRenewals(gctx, enterpriseID, expiringSoonDays)
		return err
	})
	g.Go(func() (err error) {
		data.RiskAlerts, err = s.GetRiskAlerts(gctx, enterpriseID)
		return err
	})
	g.Go(func() (err error) {
		data.SpendAnalysis, err = s.GetSpendAnalysis(gctx, enterpriseID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load dashboard data: %w", err)
	}
	if data.Contracts == nil {
		data.Contracts = []models.Contract{}
	}
	if data.Vendors == nil {
		data.Vendors = []models.Vendor{}
	}
	return data, nil
}

// Invalidate drops the cached read model for a tenant.
func (s *DashboardService) Invalidate(ctx context.Context, enterpriseID uuid.UUID) {
	if err := s.cache.Delete(ctx, dashboardCacheKey(enterpriseID)); err != nil {
		logrus.WithError(err).WithField("enterprise_id", enterpriseID).Warn("Dashboard cache invalidation failed")
	}
}

func (s *DashboardService) GetContractStats(ctx context.Context, enterpriseID uuid.UUID) (ContractStats, error) {
	contracts, err := s.allContracts(ctx, enterpriseID)
	if err != nil {
		return ContractStats{}, err
	}

	now := s.now()
	stats := ContractStats{
		ByStatus: map[string]int{},
		ByType:   map[string]int{},
	}

	for _, c := range contracts {
		stats.Total++
		if c.Status == models.ContractStatusActive {
			stats.Active++
		}
		stats.ByStatus[string(c.Status)]++
		stats.ByType[categoryOf(c)]++

		if c.ExtractedEndDate != nil {
			days := daysUntil(now, *c.ExtractedEndDate)
			if days >= 0 && days <= expiringSoonDays {
				stats.ExpiringSoon++
			}
		}

		stats.TotalValue += contractValue(c)
	}

	if stats.Total > 0 {
		stats.AvgValue = stats.TotalValue / float64(stats.Total)
	}

	return stats, nil
}

func (s *DashboardService) GetRecentActivity(ctx context.Context, enterpriseID uuid.UUID) ([]ActivityItem, error) {
	contracts, _, err := s.contracts.List(ctx, enterpriseID, repository.ContractFilter{
		Page: repository.Page{Page: 1, Limit: maxRecentActivity},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent contracts: %w", err)
	}

	items := make([]ActivityItem, 0, len(contracts))
	for _, c := range contracts {
		items = append(items, ActivityItem{
			ID:          c.ID,
			Type:        "contract_" + string(c.Status),
			Title:       c.Title,
			Description: activityDescription(c),
			Status:      string(c.Status),
			Timestamp:   c.CreatedAt,
		})
	}
	return items, nil
}

func activityDescription(c models.Contract) string {
	switch c.Status {
	case models.ContractStatusDraft:
		return fmt.Sprintf("Contract %q was created", c.Title)
	case models.ContractStatusPendingAnalysis:
		return fmt.Sprintf("Contract %q is awaiting analysis", c.Title)
	case models.ContractStatusActive:
		return fmt.Sprintf("Contract %q is active", c.Title)
	default:
		return fmt.Sprintf("Contract %q is %s", c.Title, strings.ReplaceAll(string(c.Status), "_", " "))
	}
}

// GetUpcomingRenewals lists active contracts ending within days, soonest first.
func (s *DashboardService) GetUpcomingRenewals(ctx context.Context, enterpriseID uuid.UUID, days int) ([]RenewalItem, error) {
	contracts, err := s.allContracts(ctx, enterpriseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	renewals := []RenewalItem{}
	for _, c := range contracts {
		if c.Status != models.ContractStatusActive || c.ExtractedEndDate == nil {
			continue
		}
		until := daysUntil(now, *c.ExtractedEndDate)
		if until < 0 || until > float64(days) {
			continue
		}
		renewals = append(renewals, RenewalItem{
			ContractID: c.ID,
			Title:      c.Title,
			VendorID:   c.VendorID,
			EndDate:    *c.ExtractedEndDate,
			DaysUntil:  int(math.Ceil(until)),
			Value:      contractValue(c),
		})
	}

	sort.SliceStable(renewals, func(i, j int) bool { return renewals[i].EndDate.Before(renewals[j].EndDate) })
	if len(renewals) > maxUpcomingRenewals {
		renewals = renewals[:maxUpcomingRenewals]
	}
	return renewals, nil
}

// GetRiskAlerts concatenates three independent scans and keeps the first ten.
func (s *DashboardService) GetRiskAlerts(ctx context.Context, enterpriseID uuid.UUID) ([]RiskAlert, error) {
	contracts, err := s.allContracts(ctx, enterpriseID)
	if err != nil {
		return nil, err
	}
	vendors, _, err := s.vendors.List(ctx, enterpriseID, repository.VendorFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load vendors: %w", err)
	}

	now := s.now()
	alerts := []RiskAlert{}

	for _, c := range contracts {
		if c.Status != models.ContractStatusActive || c.ExtractedEndDate == nil {
			continue
		}
		until := daysUntil(now, *c.ExtractedEndDate)
		if until < 0 || until > riskExpiringDays {
			continue
		}
		id := c.ID
		alerts = append(alerts, RiskAlert{
			Type:       RiskAlertExpiring,
			Severity:   string(models.RiskLevelHigh),
			Title:      "Contract expiring soon",
			Message:    fmt.Sprintf("%s expires in %d days", c.Title, int(math.Ceil(until))),
			ContractID: &id,
		})
	}

	for _, c := range contracts {
		if c.Status != models.ContractStatusPendingAnalysis || contractValue(c) <= highValueThreshold {
			continue
		}
		id := c.ID
		alerts = append(alerts, RiskAlert{
			Type:       RiskAlertNeedsReview,
			Severity:   string(models.RiskLevelMedium),
			Title:      "High-value contract needs review",
			Message:    fmt.Sprintf("%s is pending analysis", c.Title),
			ContractID: &id,
		})
	}

	for _, v := range vendors {
		if v.Status != models.VendorStatusActive || vendorHasActiveContract(v.ID, contracts) {
			continue
		}
		id := v.ID
		alerts = append(alerts, RiskAlert{
			Type:     RiskAlertNoContracts,
			Severity: string(models.RiskLevelLow),
			Title:    "Vendor without active contracts",
			Message:  fmt.Sprintf("%s has no active contracts", v.Name),
			VendorID: &id,
		})
	}

	if len(alerts) > maxRiskAlerts {
		alerts = alerts[:maxRiskAlerts]
	}
	return alerts, nil
}

func vendorHasActiveContract(vendorID uuid.UUID, contracts []models.Contract) bool {
	for _, c := range contracts {
		if c.Status == models.ContractStatusActive && c.VendorID != nil && *c.VendorID == vendorID {
			return true
		}
	}
	return false
}

// GetSpendAnalysis aggregates active contract value. Every contract's monthly
// share (value/12) is bucketed under the current month.
func (s *DashboardService) GetSpendAnalysis(ctx context.Context, enterpriseID uuid.UUID) (SpendAnalysis, error) {
	contracts, err := s.allContracts(ctx, enterpriseID)
	if err != nil {
		return SpendAnalysis{}, err
	}
	vendors, _, err := s.vendors.List(ctx, enterpriseID, repository.VendorFilter{})
	if err != nil {
		return SpendAnalysis{}, fmt.Errorf("failed to load vendors: %w", err)
	}

	names := make(map[uuid.UUID]string, len(vendors))
	for _, v := range vendors {
		names[v.ID] = v.Name
	}

	month := s.now().Format("2006-01")
	analysis := SpendAnalysis{
		ByCategory:   map[string]float64{},
		ByVendor:     map[string]float64{},
		MonthlySpend: map[string]float64{},
		TopVendors:   []VendorSpend{},
	}
	byVendorID := map[uuid.UUID]float64{}

	for _, c := range contracts {
		if c.Status != models.ContractStatusActive {
			continue
		}
		value := contractValue(c)

		analysis.TotalSpend += value
		analysis.ByCategory[categoryOf(c)] += value
		analysis.MonthlySpend[month] += value / 12
		if c.VendorID != nil {
			byVendorID[*c.VendorID] += value
			analysis.ByVendor[c.VendorID.String()] += value
		}
	}

	for id, amount := range byVendorID {
		spend := VendorSpend{VendorID: id, VendorName: names[id], Amount: amount}
		if analysis.TotalSpend > 0 {
			spend.Percentage = amount / analysis.TotalSpend * 100
		}
		analysis.TopVendors = append(analysis.TopVendors, spend)
	}
	sort.Slice(analysis.TopVendors, func(i, j int) bool {
		a, b := analysis.TopVendors[i], analysis.TopVendors[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		if a.VendorName != b.VendorName {
			return a.VendorName < b.VendorName
		}
		return a.VendorID.String() < b.VendorID.String()
	})
	if len(analysis.TopVendors) > maxTopVendors {
		analysis.TopVendors = analysis.TopVendors[:maxTopVendors]
	}

	return analysis, nil
}

func (s *DashboardService) allContracts(ctx context.Context, enterpriseID uuid.UUID) ([]models.Contract, error) {
	contracts, _, err := s.contracts.List(ctx, enterpriseID, repository.ContractFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load contracts: %w", err)
	}
	return contracts, nil
}

func (s *DashboardService) cacheTTL() time.Duration {
	if s.config != nil && s.config.Dashboard.CacheTTL > 0 {
		return s.config.Dashboard.CacheTTL
	}
	return time.Minute
}

func categoryOf(c models.Contract) string {
	if c.ContractType == "" {
		return defaultCategory
	}
	return c.ContractType
}

func daysUntil(now, end time.Time) float64 {
	return end.Sub(now).Hours() / 24
}

// contractValue is the parsed pricing, or zero when it cannot be read.
func contractValue(c models.Contract) float64 {
	if c.ExtractedPricing == "" {
		return 0
	}
	value, ok := ParsePricing(c.ExtractedPricing)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"contract_id": c.ID,
			"pricing":     c.ExtractedPricing,
		}).Debug("Skipping unparseable contract pricing")
		return 0
	}
	return value
}

// ParsePricing drops every character other than digits and '.', then reads
// the longest leading decimal number. "$1,234.56" parses as 1234.56.
func ParsePricing(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	end, seenDot, seenDigit := 0, false, false
	for end < len(cleaned) {
		ch := cleaned[end]
		if ch == '.' {
			if seenDot {
				break
			}
			seenDot = true
		} else {
			seenDigit = true
		}
		end++
	}
	if !seenDigit {
		return 0, false
	}

	value, err := strconv.ParseFloat(strings.TrimSuffix(cleaned[:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
