package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

type TemplateRepository struct{ s *Store }

// Transaction serialises fn against other transactions. Writes made before fn
// returns an error are kept.
func (r *TemplateRepository) Transaction(_ context.Context, fn func(tx repository.TemplateRepository) error) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()
	return fn(r)
}

func (r *TemplateRepository) Create(_ context.Context, t *models.ContractTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if t.Version == 0 {
		t.Version = 1
	}
	r.s.stampLocked(&t.BaseModel)
	r.s.templates[t.ID] = cloneTemplate(*t)
	return nil
}

func (r *TemplateRepository) Update(_ context.Context, t *models.ContractTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.templates[t.ID]; !ok {
		return notFound("template")
	}
	t.UpdatedAt = time.Now().UTC()
	r.s.templates[t.ID] = cloneTemplate(*t)
	return nil
}

func (r *TemplateRepository) GetByID(_ context.Context, enterpriseID, id uuid.UUID) (*models.ContractTemplate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.templates[id]
	if !ok || t.EnterpriseID != enterpriseID {
		return nil, notFound("template")
	}
	t = cloneTemplate(t)
	return &t, nil
}

func (r *TemplateRepository) List(_ context.Context, enterpriseID uuid.UUID, filter repository.TemplateFilter) ([]models.ContractTemplate, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.ContractTemplate
	for _, t := range r.s.templates {
		if t.EnterpriseID != enterpriseID {
			continue
		}
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		if filter.ActiveOnly && !t.IsActive {
			continue
		}
		if filter.Search != "" && !containsFold(t.Name, filter.Search) {
			continue
		}
		out = append(out, cloneTemplate(t))
	}
	sort.Slice(out, func(i, j int) bool { return r.s.newerFirst(out[i].BaseModel, out[j].BaseModel) })

	return window(out, filter.Page), int64(len(out)), nil
}

func (r *TemplateRepository) Delete(_ context.Context, enterpriseID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.templates[id]
	if !ok || t.EnterpriseID != enterpriseID {
		return notFound("template")
	}
	delete(r.s.templates, id)
	return nil
}

func (r *TemplateRepository) CreateVersion(_ context.Context, v *models.TemplateVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.stampLocked(&v.BaseModel)
	r.s.versions = append(r.s.versions, *v)
	return nil
}

func (r *TemplateRepository) ListVersions(_ context.Context, templateID uuid.UUID) ([]models.TemplateVersion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.TemplateVersion
	for _, v := range r.s.versions {
		if v.TemplateID == templateID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func cloneTemplate(t models.ContractTemplate) models.ContractTemplate {
	t.Sections = append(models.TemplateSections(nil), t.Sections...)
	t.Variables = append(models.TemplateVariables(nil), t.Variables...)
	t.Tags = append([]string(nil), t.Tags...)
	return t
}
