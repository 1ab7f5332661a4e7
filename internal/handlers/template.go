// internal/handlers/template.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pactwise/pactwise-backend/internal/services"
	"github.com/pactwise/pactwise-backend/internal/utils"
)

type TemplateHandler struct {
	templateService *services.TemplateService
}

func NewTemplateHandler(templateService *services.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

// POST /templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	var req services.CreateTemplateRequest
	if !bindJSON(c, &req) {
		return
	}

	tmpl, err := h.templateService.Create(c.Request.Context(), sec, &req)
	if err != nil {
		respondError(c, err, "template")
		return
	}
	utils.CreatedResponse(c, tmpl)
}

// GET /templates?category=&active_only=true&search=
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	var req services.TemplateListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	params := utils.GetPaginationParams(c)

	templates, total, err := h.templateService.List(c.Request.Context(), sec, req, params.Window())
	if err != nil {
		respondError(c, err, "template")
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(templates, total, params))
}

// GET /templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "template")
	if !ok {
		return
	}

	tmpl, err := h.templateService.Get(c.Request.Context(), sec, id)
	if err != nil {
		respondError(c, err, "template")
		return
	}
	utils.SuccessResponse(c, tmpl)
}

// PUT /templates/:id
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "template")
	if !ok {
		return
	}

	var req services.UpdateTemplateRequest
	if !bindJSON(c, &req) {
		return
	}

	tmpl, err := h.templateService.Update(c.Request.Context(), sec, id, &req)
	if err != nil {
		respondError(c, err, "template")
		return
	}
	utils.SuccessResponse(c, tmpl)
}

// DELETE /templates/:id
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "template")
	if !ok {
		return
	}

	if err := h.templateService.Delete(c.Request.Context(), sec, id); err != nil {
		respondError(c, err, "template")
		return
	}
	utils.SuccessResponse(c, gin.H{"deleted": true})
}

// GET /templates/:id/versions
func (h *TemplateHandler) ListVersions(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "template")
	if !ok {
		return
	}

	versions, err := h.templateService.ListVersions(c.Request.Context(), sec, id)
	if err != nil {
		respondError(c, err, "template")
		return
	}
	utils.SuccessResponse(c, versions)
}

// POST /templates/:id/generate
func (h *TemplateHandler) GenerateContract(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "template")
	if !ok {
		return
	}

	var req services.GenerateRequest
	if !bindJSON(c, &req) {
		return
	}

	generated, err := h.templateService.Generate(c.Request.Context(), sec, id, req.Values)
	if err != nil {
		respondError(c, err, "template")
		return
	}
	utils.SuccessResponse(c, generated)
}
