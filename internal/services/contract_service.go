// internal/services/contract_service.go
package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pactwise/pactwise-backend/internal/billing"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/security"
)

type ContractService struct {
	contracts repository.ContractRepository
	vendors   repository.VendorRepository
	usage     *UsageService
	storage   *StorageService
	dashboard *DashboardService
}

type CreateContractRequest struct {
	Title              string                `json:"title" validate:"required,min=1,max=255"`
	VendorID           *uuid.UUID            `json:"vendor_id,omitempty"`
	ContractType       string                `json:"contract_type,omitempty" validate:"max=100"`
	Status             models.ContractStatus `json:"status,omitempty" validate:"omitempty,contract_status"`
	Notes              string                `json:"notes,omitempty" validate:"max=5000"`
	ExtractedParties   []string              `json:"extracted_parties,omitempty"`
	ExtractedPricing   string                `json:"extracted_pricing,omitempty" validate:"max=255"`
	ExtractedStartDate *time.Time            `json:"extracted_start_date,omitempty"`
	ExtractedEndDate   *time.Time            `json:"extracted_end_date,omitempty"`
}

type UpdateContractRequest struct {
	Title              *string    `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	VendorID           *uuid.UUID `json:"vendor_id,omitempty"`
	ContractType       *string    `json:"contract_type,omitempty" validate:"omitempty,max=100"`
	Notes              *string    `json:"notes,omitempty" validate:"omitempty,max=5000"`
	ExtractedParties   *[]string  `json:"extracted_parties,omitempty"`
	ExtractedPricing   *string    `json:"extracted_pricing,omitempty" validate:"omitempty,max=255"`
	ExtractedStartDate *time.Time `json:"extracted_start_date,omitempty"`
	ExtractedEndDate   *time.Time `json:"extracted_end_date,omitempty"`
}

type ContractStatusRequest struct {
	Status models.ContractStatus `json:"status" validate:"required,contract_status"`
}

type ContractListRequest struct {
	Status       []string `form:"status"`
	VendorID     string   `form:"vendor_id"`
	ContractType string   `form:"contract_type"`
	Search       string   `form:"search"`
}

type DocumentLink struct {
	URL       string    `json:"url"`
	FileName  string    `json:"file_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewContractService(repos *repository.Repositories, usage *UsageService, storage *StorageService, dashboard *DashboardService) *ContractService {
	return &ContractService{
		contracts: repos.Contracts,
		vendors:   repos.Vendors,
		usage:     usage,
		storage:   storage,
		dashboard: dashboard,
	}
}

// Create records one contracts usage unit before writing; a tenant at its
// plan limit gets ErrUsageLimitExceeded and no contract.
func (s *ContractService) Create(ctx context.Context, sec security.Context, req *CreateContractRequest) (*models.Contract, error) {
	if err := sec.RequireRole(security.ContractWriters...); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.ContractStatusDraft
	}
	if status != models.ContractStatusDraft && status != models.ContractStatusPendingAnalysis {
		return nil, invalidInput("new contracts start as draft or pending_analysis, not %s", status)
	}
	if err := checkContractDates(req.ExtractedStartDate, req.ExtractedEndDate); err != nil {
		return nil, err
	}
	if req.VendorID != nil {
		if _, err := s.vendors.GetByID(ctx, sec.EnterpriseID, *req.VendorID); err != nil {
			return nil, fmt.Errorf("vendor: %w", err)
		}
	}

	if _, err := s.usage.RecordUsage(ctx, sec.EnterpriseID, billing.MetricContracts, 1); err != nil {
		return nil, err
	}

	creator := sec.UserID
	contract := &models.Contract{
		EnterpriseID:       sec.EnterpriseID,
		VendorID:           req.VendorID,
		Title:              strings.TrimSpace(req.Title),
		Status:             status,
		ContractType:       req.ContractType,
		Notes:              req.Notes,
		CreatedBy:          &creator,
		AnalysisStatus:     models.AnalysisStatusPending,
		ExtractedParties:   req.ExtractedParties,
		ExtractedPricing:   req.ExtractedPricing,
		ExtractedStartDate: req.ExtractedStartDate,
		ExtractedEndDate:   req.ExtractedEndDate,
	}

	if err := s.contracts.Create(ctx, contract); err != nil {
		return nil, fmt.Errorf("failed to create contract: %w", err)
	}
	s.invalidate(ctx, sec.EnterpriseID)

	logrus.WithFields(logrus.Fields{
		"contract_id":   contract.ID,
		"enterprise_id": sec.EnterpriseID,
		"user_id":       sec.UserID,
	}).Info("Contract created")
	return contract, nil
}

func (s *ContractService) Get(ctx context.Context, sec security.Context, id uuid.UUID) (*models.Contract, error) {
	return s.contracts.GetByID(ctx, sec.EnterpriseID, id)
}

func (s *ContractService) List(ctx context.Context, sec security.Context, req ContractListRequest, page repository.Page) ([]models.Contract, int64, error) {
	filter := repository.ContractFilter{
		Page:         page,
		ContractType: req.ContractType,
		Search:       req.Search,
	}
	for _, raw := range req.Status {
		for _, part := range strings.Split(raw, ",") {
			status := models.ContractStatus(strings.TrimSpace(part))
			if status == "" {
				continue
			}
			if !status.Valid() {
				return nil, 0, invalidInput("unknown contract status %q", status)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if req.VendorID != "" {
		vendorID, err := uuid.Parse(req.VendorID)
		if err != nil {
			return nil, 0, invalidInput("invalid vendor id %q", req.VendorID)
		}
		filter.VendorID = &vendorID
	}

	contracts, total, err := s.contracts.List(ctx, sec.EnterpriseID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contracts: %w", err)
	}
	return contracts, total, nil
}

// Update applies manual edits, including corrections to extracted fields.
func (s *ContractService) Update(ctx context.Context, sec security.Context, id uuid.UUID, req *UpdateContractRequest) (*models.Contract, error) {
	if err := sec.RequireRole(security.ContractWriters...); err != nil {
		return nil, err
	}

	contract, err := s.contracts.GetByID(ctx, sec.EnterpriseID, id)
	if err != nil {
		return nil, err
	}
	if contract.Status == models.ContractStatusArchived {
		return nil, invalidInput("archived contracts are read-only")
	}

	if req.VendorID != nil {
		if _, err := s.vendors.GetByID(ctx, sec.EnterpriseID, *req.VendorID); err != nil {
			return nil, fmt.Errorf("vendor: %w", err)
		}
		contract.VendorID = req.VendorID
	}
	if req.Title != nil {
		contract.Title = strings.TrimSpace(*req.Title)
	}
	if req.ContractType != nil {
		contract.ContractType = *req.ContractType
	}
	if req.Notes != nil {
		contract.Notes = *req.Notes
	}
	if req.ExtractedParties != nil {
		contract.ExtractedParties = *req.ExtractedParties
	}
	if req.ExtractedPricing != nil {
		contract.ExtractedPricing = *req.ExtractedPricing
	}
	if req.ExtractedStartDate != nil {
		contract.ExtractedStartDate = req.ExtractedStartDate
	}
	if req.ExtractedEndDate != nil {
		contract.ExtractedEndDate = req.ExtractedEndDate
	}
	if err := checkContractDates(contract.ExtractedStartDate, contract.ExtractedEndDate); err != nil {
		return nil, err
	}

	contract.Vendor = nil
	if err := s.contracts.Update(ctx, contract); err != nil {
		return nil, fmt.Errorf("failed to update contract: %w", err)
	}
	s.invalidate(ctx, sec.EnterpriseID)
	return contract, nil
}

// ChangeStatus moves a contract to any other status. Archived is final.
func (s *ContractService) ChangeStatus(ctx context.Context, sec security.Context, id uuid.UUID, status models.ContractStatus) (*models.Contract, error) {
	if err := sec.RequireRole(security.ContractWriters...); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalidInput("unknown contract status %q", status)
	}

	contract, err := s.contracts.GetByID(ctx, sec.EnterpriseID, id)
	if err != nil {
		return nil, err
	}
	if contract.Status == status {
		return contract, nil
	}
	if contract.Status == models.ContractStatusArchived {
		return nil, invalidInput("archived contracts cannot change status")
	}

	previous := contract.Status
	contract.Status = status
	contract.Vendor = nil
	if err := s.contracts.Update(ctx, contract); err != nil {
		return nil, fmt.Errorf("failed to update contract status: %w", err)
	}
	s.invalidate(ctx, sec.EnterpriseID)

	logrus.WithFields(logrus.Fields{
		"contract_id": contract.ID,
		"from":        previous,
		"to":          status,
	}).Info("Contract status changed")
	return contract, nil
}

// AttachDocument stores the contract document and queues it for analysis when
// the contract is still a draft. A replaced document is removed from storage.
func (s *ContractService) AttachDocument(ctx context.Context, sec security.Context, id uuid.UUID, file io.Reader, filename string, size int64, contentType string) (*models.Contract, error) {
	if err := sec.RequireRole(security.ContractWriters...); err != nil {
		return nil, err
	}

	contract, err := s.contracts.GetByID(ctx, sec.EnterpriseID, id)
	if err != nil {
		return nil, err
	}
	if contract.Status == models.ContractStatusArchived {
		return nil, invalidInput("archived contracts are read-only")
	}

	result, err := s.storage.Upload(ctx, file, filename, size, contentType, s.storage.ContractUploadOptions(sec.EnterpriseID))
	if err != nil {
		return nil, err
	}

	previousKey := contract.StorageKey
	contract.FileName = filename
	contract.StorageKey = result.Key
	contract.FileHash = result.Checksum
	contract.FileSize = result.Size
	contract.MimeType = result.MimeType
	contract.AnalysisStatus = models.AnalysisStatusPending
	contract.AnalysisError = ""
	if contract.Status == models.ContractStatusDraft {
		contract.Status = models.ContractStatusPendingAnalysis
	}

	contract.Vendor = nil
	if err := s.contracts.Update(ctx, contract); err != nil {
		if delErr := s.storage.DeleteFile(ctx, result.Key); delErr != nil {
			logrus.WithError(delErr).WithField("key", result.Key).Warn("Failed to remove orphaned upload")
		}
		return nil, fmt.Errorf("failed to save contract document: %w", err)
	}
	s.invalidate(ctx, sec.EnterpriseID)

	if previousKey != "" && previousKey != result.Key {
		go func() {
			if err := s.storage.DeleteFile(context.Background(), previousKey); err != nil {
				logrus.WithError(err).WithField("key", previousKey).Warn("Failed to remove replaced contract document")
			}
		}()
	}

	logrus.WithFields(logrus.Fields{
		"contract_id": contract.ID,
		"key":         result.Key,
		"size":        result.Size,
	}).Info("Contract document uploaded")
	return contract, nil
}

func (s *ContractService) DocumentURL(ctx context.Context, sec security.Context, id uuid.UUID) (*DocumentLink, error) {
	contract, err := s.contracts.GetByID(ctx, sec.EnterpriseID, id)
	if err != nil {
		return nil, err
	}
	if contract.StorageKey == "" {
		return nil, fmt.Errorf("contract document: %w", repository.ErrNotFound)
	}

	expiry := s.storage.config.Storage.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	url, err := s.storage.GeneratePresignedURL(ctx, contract.StorageKey, expiry)
	if err != nil {
		return nil, err
	}
	return &DocumentLink{URL: url, FileName: contract.FileName, ExpiresAt: time.Now().Add(expiry).UTC()}, nil
}

func (s *ContractService) invalidate(ctx context.Context, enterpriseID uuid.UUID) {
	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx, enterpriseID)
	}
}

func checkContractDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return invalidInput("contract end date is before its start date")
	}
	return nil
}
