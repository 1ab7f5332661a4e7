// internal/handlers/contract.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pactwise/pactwise-backend/internal/i18n"
	"github.com/pactwise/pactwise-backend/internal/services"
	"github.com/pactwise/pactwise-backend/internal/utils"
)

type ContractHandler struct {
	contractService *services.ContractService
}

func NewContractHandler(contractService *services.ContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

// POST /contracts
func (h *ContractHandler) CreateContract(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	var req services.CreateContractRequest
	if !bindJSON(c, &req) {
		return
	}

	contract, err := h.contractService.Create(c.Request.Context(), sec, &req)
	if err != nil {
		respondError(c, err, "contract")
		return
	}
	utils.CreatedResponse(c, contract)
}

// GET /contracts?status=active,pending&vendor_id=&contract_type=&search=
func (h *ContractHandler) ListContracts(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	var req services.ContractListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	params := utils.GetPaginationParams(c)

	contracts, total, err := h.contractService.List(c.Request.Context(), sec, req, params.Window())
	if err != nil {
		respondError(c, err, "contract")
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(contracts, total, params))
}

// GET /contracts/:id
func (h *ContractHandler) GetContract(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "contract")
	if !ok {
		return
	}

	contract, err := h.contractService.Get(c.Request.Context(), sec, id)
	if err != nil {
		respondError(c, err, "contract")
		return
	}
	utils.SuccessResponse(c, contract)
}

// PUT /contracts/:id
func (h *ContractHandler) UpdateContract(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "contract")
	if !ok {
		return
	}

	var req services.UpdateContractRequest
	if !bindJSON(c, &req) {
		return
	}

	contract, err := h.contractService.Update(c.Request.Context(), sec, id, &req)
	if err != nil {
		respondError(c, err, "contract")
		return
	}
	utils.SuccessResponse(c, contract)
}

// PUT /contracts/:id/status
func (h *ContractHandler) ChangeStatus(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "contract")
	if !ok {
		return
	}

	var req services.ContractStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	contract, err := h.contractService.ChangeStatus(c.Request.Context(), sec, id, req.Status)
	if err != nil {
		respondError(c, err, "contract")
		return
	}
	utils.SuccessResponse(c, contract)
}

// POST /contracts/:id/document (multipart, field "file")
func (h *ContractHandler) UploadDocument(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "contract")
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyFileRequired), nil)
		return
	}
	file, err := header.Open()
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyFileRequired), err.Error())
		return
	}
	defer file.Close()

	contract, err := h.contractService.AttachDocument(c.Request.Context(), sec, id, file,
		header.Filename, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err, "contract")
		return
	}
	utils.SuccessResponse(c, contract)
}

// GET /contracts/:id/document
func (h *ContractHandler) GetDocumentURL(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "contract")
	if !ok {
		return
	}

	link, err := h.contractService.DocumentURL(c.Request.Context(), sec, id)
	if err != nil {
		respondError(c, err, "contract")
		return
	}
	utils.SuccessResponse(c, link)
}
