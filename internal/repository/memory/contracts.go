package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

type ContractRepository struct{ s *Store }

func (r *ContractRepository) Create(_ context.Context, c *models.Contract) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if c.Status == "" {
		c.Status = models.ContractStatusDraft
	}
	if c.AnalysisStatus == "" {
		c.AnalysisStatus = models.AnalysisStatusPending
	}
	r.s.stampLocked(&c.BaseModel)
	r.s.contracts[c.ID] = *c
	return nil
}

func (r *ContractRepository) Update(_ context.Context, c *models.Contract) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.contracts[c.ID]; !ok {
		return notFound("contract")
	}
	c.UpdatedAt = time.Now().UTC()
	stored := *c
	stored.Vendor = nil
	r.s.contracts[c.ID] = stored
	return nil
}

func (r *ContractRepository) GetByID(_ context.Context, enterpriseID, id uuid.UUID) (*models.Contract, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.contracts[id]
	if !ok || c.EnterpriseID != enterpriseID {
		return nil, notFound("contract")
	}
	if c.VendorID != nil {
		if v, ok := r.s.vendors[*c.VendorID]; ok {
			c.Vendor = &v
		}
	}
	return &c, nil
}

func (r *ContractRepository) List(_ context.Context, enterpriseID uuid.UUID, filter repository.ContractFilter) ([]models.Contract, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.Contract
	for _, c := range r.s.contracts {
		if c.EnterpriseID != enterpriseID || !matchContract(c, filter) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return r.s.newerFirst(out[i].BaseModel, out[j].BaseModel) })

	return window(out, filter.Page), int64(len(out)), nil
}

func (r *ContractRepository) ListActiveEndedBefore(_ context.Context, cutoff time.Time) ([]models.Contract, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.Contract
	for _, c := range r.s.contracts {
		if c.Status == models.ContractStatusActive && c.ExtractedEndDate != nil && c.ExtractedEndDate.Before(cutoff) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExtractedEndDate.Before(*out[j].ExtractedEndDate) })
	return out, nil
}

func matchContract(c models.Contract, filter repository.ContractFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, st := range filter.Statuses {
			if c.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.VendorID != nil && (c.VendorID == nil || *c.VendorID != *filter.VendorID) {
		return false
	}
	if filter.ContractType != "" && c.ContractType != filter.ContractType {
		return false
	}
	if filter.Search != "" && !containsFold(c.Title, filter.Search) {
		return false
	}
	return true
}

type VendorRepository struct{ s *Store }

func (r *VendorRepository) Create(_ context.Context, v *models.Vendor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if v.Status == "" {
		v.Status = models.VendorStatusActive
	}
	if v.RiskLevel == "" {
		v.RiskLevel = models.RiskLevelLow
	}
	r.s.stampLocked(&v.BaseModel)
	r.s.vendors[v.ID] = *v
	return nil
}

func (r *VendorRepository) Update(_ context.Context, v *models.Vendor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.vendors[v.ID]; !ok {
		return notFound("vendor")
	}
	v.UpdatedAt = time.Now().UTC()
	r.s.vendors[v.ID] = *v
	return nil
}

func (r *VendorRepository) GetByID(_ context.Context, enterpriseID, id uuid.UUID) (*models.Vendor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v, ok := r.s.vendors[id]
	if !ok || v.EnterpriseID != enterpriseID {
		return nil, notFound("vendor")
	}
	return &v, nil
}

func (r *VendorRepository) List(_ context.Context, enterpriseID uuid.UUID, filter repository.VendorFilter) ([]models.Vendor, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.Vendor
	for _, v := range r.s.vendors {
		if v.EnterpriseID != enterpriseID {
			continue
		}
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		if filter.Category != "" && v.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !containsFold(v.Name, filter.Search) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return r.s.newerFirst(out[i].BaseModel, out[j].BaseModel) })

	return window(out, filter.Page), int64(len(out)), nil
}
