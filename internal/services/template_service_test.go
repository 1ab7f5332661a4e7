package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/repository/memory"
	"github.com/pactwise/pactwise-backend/internal/security"
)

func roleContext(enterpriseID uuid.UUID, role models.UserRole) security.Context {
	return security.Context{UserID: uuid.New(), EnterpriseID: enterpriseID, Role: role}
}

func ndaRequest() *CreateTemplateRequest {
	return &CreateTemplateRequest{
		Name:     "Mutual NDA",
		Category: "nda",
		Content:  "This agreement between {{party_a}} and {{party_b}} is governed by {{jurisdiction}}.",
		Sections: []models.TemplateSection{
			{ID: "term", Title: "Term", Content: "Valid for {{term_months}} months.", Order: 2},
			{ID: "parties", Title: "Parties", Content: "{{party_a}} / {{party_b}}", Order: 1, Required: true},
		},
		Variables: []models.TemplateVariable{
			{Name: "party_a", Required: true},
			{Name: "party_b", Required: true},
			{Name: "jurisdiction", Required: true, DefaultValue: "Delaware"},
			{Name: "term_months", DefaultValue: "12"},
		},
	}
}

func TestSubstituteVariables(t *testing.T) {
	values := map[string]string{"name": "Acme", "loop": "{{name}}"}

	assert.Equal(t, "Hello Acme", SubstituteVariables("Hello {{name}}", values))
	assert.Equal(t, "Hello {{ name }}", SubstituteVariables("Hello {{ name }}", values))
	assert.Equal(t, "{{unknown}} stays", SubstituteVariables("{{unknown}} stays", values))
	assert.Equal(t, "{{name}}", SubstituteVariables("{{loop}}", values))
	assert.Equal(t, "{{Acme}}", SubstituteVariables("{{{{name}}}}", values))
}

func TestResolveValuesKeepsExplicitEmpty(t *testing.T) {
	vars := []models.TemplateVariable{
		{Name: "note", DefaultValue: "n/a"},
		{Name: "term", DefaultValue: "12 months"},
	}

	resolved := resolveValues(vars, map[string]string{"note": ""})
	assert.Equal(t, "AB", SubstituteVariables("A{{note}}B", resolved))
	assert.Equal(t, "for 12 months", SubstituteVariables("for {{term}}", resolved))
	assert.Equal(t, "A{{other}}B", SubstituteVariables("A{{other}}B", resolveValues(nil, map[string]string{"note": ""})))
}

func TestMissingVariables(t *testing.T) {
	vars := []models.TemplateVariable{
		{Name: "a", Required: true},
		{Name: "b", Required: true, DefaultValue: "x"},
		{Name: "c"},
		{Name: "d", Required: true},
	}

	assert.Equal(t, []string{"a", "d"}, MissingVariables(vars, nil))
	assert.Equal(t, []string{"d"}, MissingVariables(vars, map[string]string{"a": "1", "d": ""}))
	assert.Empty(t, MissingVariables(vars, map[string]string{"a": "1", "d": "2"}))
}

func TestTemplateRoles(t *testing.T) {
	ctx := context.Background()
	service := NewTemplateService(memory.NewRepositories())
	enterpriseID := uuid.New()

	for _, role := range []models.UserRole{models.UserRoleUser, models.UserRoleViewer} {
		_, err := service.Create(ctx, roleContext(enterpriseID, role), ndaRequest())
		assert.ErrorIs(t, err, security.ErrForbidden, role)
	}

	manager := roleContext(enterpriseID, models.UserRoleManager)
	tmpl, err := service.Create(ctx, manager, ndaRequest())
	require.NoError(t, err)

	name := "Renamed"
	_, err = service.Update(ctx, roleContext(enterpriseID, models.UserRoleViewer), tmpl.ID, &UpdateTemplateRequest{Name: &name})
	assert.ErrorIs(t, err, security.ErrForbidden)

	assert.ErrorIs(t, service.Delete(ctx, manager, tmpl.ID), security.ErrForbidden)
	require.NoError(t, service.Delete(ctx, roleContext(enterpriseID, models.UserRoleAdmin), tmpl.ID))

	_, err = service.Get(ctx, manager, tmpl.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTemplateUpdateSnapshotsPreviousVersion(t *testing.T) {
	ctx := context.Background()
	service := NewTemplateService(memory.NewRepositories())
	enterpriseID := uuid.New()
	manager := roleContext(enterpriseID, models.UserRoleManager)

	tmpl, err := service.Create(ctx, manager, ndaRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, tmpl.Version)
	original := tmpl.Content

	content := "Rewritten {{party_a}}"
	updated, err := service.Update(ctx, manager, tmpl.ID, &UpdateTemplateRequest{Content: &content, ChangeNote: "simplify"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, content, updated.Content)
	assert.Equal(t, manager.UserID, *updated.UpdatedBy)

	versions, err := service.ListVersions(ctx, manager, tmpl.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, original, versions[0].Content)
	assert.Equal(t, "simplify", versions[0].ChangeNote)

	_, err = service.Update(ctx, manager, tmpl.ID, &UpdateTemplateRequest{})
	require.NoError(t, err)
	versions, err = service.ListVersions(ctx, manager, tmpl.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
}

func TestTemplateUpdateOtherTenant(t *testing.T) {
	ctx := context.Background()
	service := NewTemplateService(memory.NewRepositories())

	tmpl, err := service.Create(ctx, roleContext(uuid.New(), models.UserRoleOwner), ndaRequest())
	require.NoError(t, err)

	name := "stolen"
	_, err = service.Update(ctx, roleContext(uuid.New(), models.UserRoleOwner), tmpl.ID, &UpdateTemplateRequest{Name: &name})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTemplateCreateRejectsDuplicateVariables(t *testing.T) {
	req := ndaRequest()
	req.Variables = append(req.Variables, models.TemplateVariable{Name: "party_a"})

	_, err := NewTemplateService(memory.NewRepositories()).Create(context.Background(), roleContext(uuid.New(), models.UserRoleOwner), req)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	service := NewTemplateService(memory.NewRepositories())
	sec := roleContext(uuid.New(), models.UserRoleOwner)

	tmpl, err := service.Create(ctx, sec, ndaRequest())
	require.NoError(t, err)

	viewer := sec
	viewer.Role = models.UserRoleViewer
	out, err := service.Generate(ctx, viewer, tmpl.ID, map[string]string{"party_a": "Acme Corp"})
	require.NoError(t, err)

	assert.Equal(t, "This agreement between Acme Corp and {{party_b}} is governed by Delaware.", out.Content)
	require.Len(t, out.Sections, 2)
	assert.Equal(t, "parties", out.Sections[0].ID)
	assert.Equal(t, "Acme Corp / {{party_b}}", out.Sections[0].Content)
	assert.Equal(t, "Valid for 12 months.", out.Sections[1].Content)
	assert.Equal(t, []string{"party_b"}, out.MissingVariables)
	assert.Equal(t, 1, out.Version)
}
