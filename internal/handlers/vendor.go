// internal/handlers/vendor.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pactwise/pactwise-backend/internal/services"
	"github.com/pactwise/pactwise-backend/internal/utils"
)

type VendorHandler struct {
	vendorService *services.VendorService
}

func NewVendorHandler(vendorService *services.VendorService) *VendorHandler {
	return &VendorHandler{vendorService: vendorService}
}

// POST /vendors
func (h *VendorHandler) CreateVendor(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	var req services.CreateVendorRequest
	if !bindJSON(c, &req) {
		return
	}

	vendor, err := h.vendorService.Create(c.Request.Context(), sec, &req)
	if err != nil {
		respondError(c, err, "vendor")
		return
	}
	utils.CreatedResponse(c, vendor)
}

// GET /vendors
func (h *VendorHandler) ListVendors(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	var req services.VendorListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	params := utils.GetPaginationParams(c)

	vendors, total, err := h.vendorService.List(c.Request.Context(), sec, req, params.Window())
	if err != nil {
		respondError(c, err, "vendor")
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(vendors, total, params))
}

// GET /vendors/:id
func (h *VendorHandler) GetVendor(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "vendor")
	if !ok {
		return
	}

	vendor, err := h.vendorService.Get(c.Request.Context(), sec, id)
	if err != nil {
		respondError(c, err, "vendor")
		return
	}
	utils.SuccessResponse(c, vendor)
}

// PUT /vendors/:id
func (h *VendorHandler) UpdateVendor(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "vendor")
	if !ok {
		return
	}

	var req services.UpdateVendorRequest
	if !bindJSON(c, &req) {
		return
	}

	vendor, err := h.vendorService.Update(c.Request.Context(), sec, id, &req)
	if err != nil {
		respondError(c, err, "vendor")
		return
	}
	utils.SuccessResponse(c, vendor)
}

// PUT /vendors/:id/status
func (h *VendorHandler) ChangeStatus(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "vendor")
	if !ok {
		return
	}

	var req services.VendorStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	vendor, err := h.vendorService.ChangeStatus(c.Request.Context(), sec, id, req.Status)
	if err != nil {
		respondError(c, err, "vendor")
		return
	}
	utils.SuccessResponse(c, vendor)
}
