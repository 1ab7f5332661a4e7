package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/pactwise/pactwise-backend/internal/cache"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/repository/memory"
	"github.com/pactwise/pactwise-backend/internal/security"
)

type ContractServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	repos     *repository.Repositories
	storage   *StorageService
	dashboard *DashboardService
	service   *ContractService
	sec       security.Context
}

func (s *ContractServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.repos = memory.NewRepositories()
	s.storage = newLocalStorage(s.T())
	s.dashboard = NewDashboardService(s.repos, cache.NewMemory(), nil)
	s.service = NewContractService(s.repos, NewUsageService(s.repos, nil), s.storage, s.dashboard)
	s.sec = security.Context{UserID: uuid.New(), EnterpriseID: uuid.New(), Role: models.UserRoleUser}
}

func (s *ContractServiceTestSuite) create(title string) *models.Contract {
	contract, err := s.service.Create(s.ctx, s.sec, &CreateContractRequest{Title: title})
	s.Require().NoError(err)
	return contract
}

func (s *ContractServiceTestSuite) TestCreate() {
	contract := s.create("  Cloud hosting  ")

	s.Equal("Cloud hosting", contract.Title)
	s.Equal(models.ContractStatusDraft, contract.Status)
	s.Equal(models.AnalysisStatusPending, contract.AnalysisStatus)
	s.Equal(s.sec.UserID, *contract.CreatedBy)

	_, err := s.service.Create(s.ctx, s.sec, &CreateContractRequest{Title: "x", Status: models.ContractStatusActive})
	s.ErrorIs(err, ErrInvalidInput)

	viewer := s.sec
	viewer.Role = models.UserRoleViewer
	_, err = s.service.Create(s.ctx, viewer, &CreateContractRequest{Title: "x"})
	s.ErrorIs(err, security.ErrForbidden)

	missingVendor := uuid.New()
	_, err = s.service.Create(s.ctx, s.sec, &CreateContractRequest{Title: "x", VendorID: &missingVendor})
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *ContractServiceTestSuite) TestCreateStopsAtPlanLimit() {
	for i := 0; i < 10; i++ {
		s.create("contract")
	}

	_, err := s.service.Create(s.ctx, s.sec, &CreateContractRequest{Title: "one too many"})
	s.ErrorIs(err, ErrUsageLimitExceeded)

	_, total, err := s.service.List(s.ctx, s.sec, ContractListRequest{}, repository.Page{})
	s.Require().NoError(err)
	s.Equal(int64(10), total)
}

func (s *ContractServiceTestSuite) TestCreateInvalidatesDashboard() {
	data, err := s.dashboard.GetAllDashboardData(s.ctx, s.sec.EnterpriseID, nil)
	s.Require().NoError(err)
	s.Zero(data.Stats.Total)

	s.create("Fresh")

	data, err = s.dashboard.GetAllDashboardData(s.ctx, s.sec.EnterpriseID, nil)
	s.Require().NoError(err)
	s.Equal(1, data.Stats.Total)
}

func (s *ContractServiceTestSuite) TestListFilters() {
	vendor := models.Vendor{EnterpriseID: s.sec.EnterpriseID, Name: "Acme"}
	s.Require().NoError(s.repos.Vendors.Create(s.ctx, &vendor))

	_, err := s.service.Create(s.ctx, s.sec, &CreateContractRequest{Title: "Acme MSA", VendorID: &vendor.ID})
	s.Require().NoError(err)
	pending, err := s.service.Create(s.ctx, s.sec, &CreateContractRequest{Title: "Other NDA", Status: models.ContractStatusPendingAnalysis})
	s.Require().NoError(err)

	contracts, total, err := s.service.List(s.ctx, s.sec, ContractListRequest{Status: []string{"pending_analysis,active"}}, repository.Page{})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal(pending.ID, contracts[0].ID)

	contracts, _, err = s.service.List(s.ctx, s.sec, ContractListRequest{VendorID: vendor.ID.String()}, repository.Page{})
	s.Require().NoError(err)
	s.Require().Len(contracts, 1)
	s.Equal("Acme MSA", contracts[0].Title)

	_, _, err = s.service.List(s.ctx, s.sec, ContractListRequest{Status: []string{"bogus"}}, repository.Page{})
	s.ErrorIs(err, ErrInvalidInput)

	_, _, err = s.service.List(s.ctx, s.sec, ContractListRequest{VendorID: "not-a-uuid"}, repository.Page{})
	s.ErrorIs(err, ErrInvalidInput)
}

func (s *ContractServiceTestSuite) TestUpdateExtractedFields() {
	contract := s.create("MSA")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pricing := "$120,000"
	parties := []string{"Acme", "Pactwise"}

	updated, err := s.service.Update(s.ctx, s.sec, contract.ID, &UpdateContractRequest{
		ExtractedPricing:   &pricing,
		ExtractedParties:   &parties,
		ExtractedStartDate: &start,
		ExtractedEndDate:   &end,
	})
	s.Require().NoError(err)
	s.Equal(pricing, updated.ExtractedPricing)
	s.Equal([]string{"Acme", "Pactwise"}, []string(updated.ExtractedParties))

	before := start.Add(-24 * time.Hour)
	_, err = s.service.Update(s.ctx, s.sec, contract.ID, &UpdateContractRequest{ExtractedEndDate: &before})
	s.ErrorIs(err, ErrInvalidInput)

	other := s.sec
	other.EnterpriseID = uuid.New()
	_, err = s.service.Update(s.ctx, other, contract.ID, &UpdateContractRequest{ExtractedPricing: &pricing})
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *ContractServiceTestSuite) TestChangeStatus() {
	contract := s.create("MSA")

	for _, status := range []models.ContractStatus{
		models.ContractStatusActive,
		models.ContractStatusExpired,
		models.ContractStatusActive,
		models.ContractStatusTerminated,
		models.ContractStatusArchived,
	} {
		updated, err := s.service.ChangeStatus(s.ctx, s.sec, contract.ID, status)
		s.Require().NoError(err)
		s.Equal(status, updated.Status)
	}

	_, err := s.service.ChangeStatus(s.ctx, s.sec, contract.ID, models.ContractStatusActive)
	s.ErrorIs(err, ErrInvalidInput)

	title := "edited"
	_, err = s.service.Update(s.ctx, s.sec, contract.ID, &UpdateContractRequest{Title: &title})
	s.ErrorIs(err, ErrInvalidInput)

	_, err = s.service.ChangeStatus(s.ctx, s.sec, contract.ID, models.ContractStatus("deleted"))
	s.ErrorIs(err, ErrInvalidInput)
}

func (s *ContractServiceTestSuite) TestAttachDocument() {
	contract := s.create("MSA")
	body := "%PDF-1.4 terms"

	updated, err := s.service.AttachDocument(s.ctx, s.sec, contract.ID, strings.NewReader(body), "msa.pdf", int64(len(body)), "application/pdf")
	s.Require().NoError(err)
	s.Equal(models.ContractStatusPendingAnalysis, updated.Status)
	s.Equal("msa.pdf", updated.FileName)
	s.Equal(int64(len(body)), updated.FileSize)
	s.Len(updated.FileHash, 64)
	s.True(strings.HasPrefix(updated.StorageKey, "contracts/"+s.sec.EnterpriseID.String()+"/"))

	link, err := s.service.DocumentURL(s.ctx, s.sec, contract.ID)
	s.Require().NoError(err)
	s.Contains(link.URL, updated.StorageKey)
	s.Equal("msa.pdf", link.FileName)

	_, err = s.service.AttachDocument(s.ctx, s.sec, contract.ID, strings.NewReader("MZ"), "tool.exe", 2, "")
	s.ErrorIs(err, ErrInvalidInput)
}

func (s *ContractServiceTestSuite) TestDocumentURLWithoutDocument() {
	contract := s.create("MSA")

	_, err := s.service.DocumentURL(s.ctx, s.sec, contract.ID)
	s.ErrorIs(err, repository.ErrNotFound)
}

func TestContractServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ContractServiceTestSuite))
}
