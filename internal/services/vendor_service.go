// internal/services/vendor_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pactwise/pactwise-backend/internal/billing"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/security"
)

type VendorService struct {
	vendors   repository.VendorRepository
	usage     *UsageService
	dashboard *DashboardService
}

type CreateVendorRequest struct {
	Name         string   `json:"name" validate:"required,min=1,max=255"`
	Category     string   `json:"category,omitempty" validate:"max=100"`
	ContactName  string   `json:"contact_name,omitempty" validate:"max=255"`
	ContactEmail string   `json:"contact_email,omitempty" validate:"omitempty,email"`
	Website      string   `json:"website,omitempty" validate:"omitempty,url"`
	Tags         []string `json:"tags,omitempty"`
}

type UpdateVendorRequest struct {
	Name         *string   `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Category     *string   `json:"category,omitempty" validate:"omitempty,max=100"`
	ContactName  *string   `json:"contact_name,omitempty" validate:"omitempty,max=255"`
	ContactEmail *string   `json:"contact_email,omitempty" validate:"omitempty,email"`
	Website      *string   `json:"website,omitempty" validate:"omitempty,url"`
	Tags         *[]string `json:"tags,omitempty"`
}

type VendorStatusRequest struct {
	Status models.VendorStatus `json:"status" validate:"required,oneof=active inactive"`
}

type VendorListRequest struct {
	Status   string `form:"status"`
	Category string `form:"category"`
	Search   string `form:"search"`
}

func NewVendorService(repos *repository.Repositories, usage *UsageService, dashboard *DashboardService) *VendorService {
	return &VendorService{
		vendors:   repos.Vendors,
		usage:     usage,
		dashboard: dashboard,
	}
}

func (s *VendorService) Create(ctx context.Context, sec security.Context, req *CreateVendorRequest) (*models.Vendor, error) {
	if err := sec.RequireRole(security.Managers...); err != nil {
		return nil, err
	}

	if _, err := s.usage.RecordUsage(ctx, sec.EnterpriseID, billing.MetricVendors, 1); err != nil {
		return nil, err
	}

	vendor := &models.Vendor{
		EnterpriseID: sec.EnterpriseID,
		Name:         strings.TrimSpace(req.Name),
		Status:       models.VendorStatusActive,
		Category:     req.Category,
		ContactName:  req.ContactName,
		ContactEmail: strings.ToLower(req.ContactEmail),
		Website:      req.Website,
		Tags:         req.Tags,
		RiskLevel:    models.RiskLevelLow,
	}
	if err := s.vendors.Create(ctx, vendor); err != nil {
		return nil, fmt.Errorf("failed to create vendor: %w", err)
	}
	s.invalidate(ctx, sec.EnterpriseID)

	logrus.WithFields(logrus.Fields{
		"vendor_id":     vendor.ID,
		"enterprise_id": sec.EnterpriseID,
	}).Info("Vendor created")
	return vendor, nil
}

func (s *VendorService) Get(ctx context.Context, sec security.Context, id uuid.UUID) (*models.Vendor, error) {
	return s.vendors.GetByID(ctx, sec.EnterpriseID, id)
}

func (s *VendorService) List(ctx context.Context, sec security.Context, req VendorListRequest, page repository.Page) ([]models.Vendor, int64, error) {
	status := models.VendorStatus(req.Status)
	if status != "" && status != models.VendorStatusActive && status != models.VendorStatusInactive {
		return nil, 0, invalidInput("unknown vendor status %q", req.Status)
	}

	vendors, total, err := s.vendors.List(ctx, sec.EnterpriseID, repository.VendorFilter{
		Page:     page,
		Status:   status,
		Category: req.Category,
		Search:   req.Search,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list vendors: %w", err)
	}
	return vendors, total, nil
}

func (s *VendorService) Update(ctx context.Context, sec security.Context, id uuid.UUID, req *UpdateVendorRequest) (*models.Vendor, error) {
	if err := sec.RequireRole(security.Managers...); err != nil {
		return nil, err
	}

	vendor, err := s.vendors.GetByID(ctx, sec.EnterpriseID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		vendor.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		vendor.Category = *req.Category
	}
	if req.ContactName != nil {
		vendor.ContactName = *req.ContactName
	}
	if req.ContactEmail != nil {
		vendor.ContactEmail = strings.ToLower(*req.ContactEmail)
	}
	if req.Website != nil {
		vendor.Website = *req.Website
	}
	if req.Tags != nil {
		vendor.Tags = *req.Tags
	}

	if err := s.vendors.Update(ctx, vendor); err != nil {
		return nil, fmt.Errorf("failed to update vendor: %w", err)
	}
	s.invalidate(ctx, sec.EnterpriseID)
	return vendor, nil
}

func (s *VendorService) ChangeStatus(ctx context.Context, sec security.Context, id uuid.UUID, status models.VendorStatus) (*models.Vendor, error) {
	if err := sec.RequireRole(security.Managers...); err != nil {
		return nil, err
	}
	if status != models.VendorStatusActive && status != models.VendorStatusInactive {
		return nil, invalidInput("unknown vendor status %q", status)
	}

	vendor, err := s.vendors.GetByID(ctx, sec.EnterpriseID, id)
	if err != nil {
		return nil, err
	}
	if vendor.Status == status {
		return vendor, nil
	}

	vendor.Status = status
	if err := s.vendors.Update(ctx, vendor); err != nil {
		return nil, fmt.Errorf("failed to update vendor status: %w", err)
	}
	s.invalidate(ctx, sec.EnterpriseID)

	logrus.WithFields(logrus.Fields{
		"vendor_id": vendor.ID,
		"status":    status,
	}).Info("Vendor status changed")
	return vendor, nil
}

func (s *VendorService) invalidate(ctx context.Context, enterpriseID uuid.UUID) {
	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx, enterpriseID)
	}
}
