// internal/utils/response.go
package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pactwise/pactwise-backend/internal/i18n"
)

// ErrorCode is the machine-readable error identifier clients switch on.
type ErrorCode string

const (
	CodeBadRequest         ErrorCode = "BAD_REQUEST"
	CodeValidation         ErrorCode = "VALIDATION_ERROR"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeUsageLimitExceeded ErrorCode = "USAGE_LIMIT_EXCEEDED"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
	CodeConfiguration      ErrorCode = "CONFIGURATION_ERROR"
	CodeWebhookFailed      ErrorCode = "WEBHOOK_FAILED"
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
)

type codeInfo struct {
	status     int
	messageKey string
}

var errorCodes = map[ErrorCode]codeInfo{
	CodeBadRequest:         {http.StatusBadRequest, i18n.KeyValidationInvalid},
	CodeValidation:         {http.StatusBadRequest, i18n.KeyValidationInvalid},
	CodeUnauthorized:       {http.StatusUnauthorized, i18n.KeyAuthRequired},
	CodeForbidden:          {http.StatusForbidden, i18n.KeyAccessDenied},
	CodeNotFound:           {http.StatusNotFound, i18n.KeyResourceNotFound},
	CodeUsageLimitExceeded: {http.StatusPaymentRequired, i18n.KeyUsageLimitExceeded},
	CodeRateLimited:        {http.StatusTooManyRequests, i18n.KeyRateLimited},
	CodeConfiguration:      {http.StatusInternalServerError, i18n.KeyBillingUnavailable},
	CodeWebhookFailed:      {http.StatusInternalServerError, i18n.KeyInternalError},
	CodeInternal:           {http.StatusInternalServerError, i18n.KeyInternalError},
}

// Status is the HTTP status sent with code. Unknown codes are 500.
func (code ErrorCode) Status() int {
	if info, ok := errorCodes[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Envelope is the body of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Fail writes an error envelope with the status that belongs to code. An empty
// message falls back to the localized default for the code.
func Fail(c *gin.Context, code ErrorCode, message string, details interface{}) {
	if message == "" {
		message = defaultMessage(c, code)
	}
	c.JSON(code.Status(), Envelope{
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

func defaultMessage(c *gin.Context, code ErrorCode) string {
	lang := GetLangFromContext(c)
	info, ok := errorCodes[code]
	if !ok {
		return i18n.T(lang, i18n.KeyInternalError)
	}
	if info.messageKey == i18n.KeyValidationInvalid {
		return i18n.T(lang, info.messageKey, "request")
	}
	return i18n.T(lang, info.messageKey)
}

func BadRequestResponse(c *gin.Context, message string, details interface{}) {
	Fail(c, CodeBadRequest, message, details)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	Fail(c, CodeUnauthorized, message, nil)
}

// NotFoundResponse looks up "<resource>.not_found" and falls back to the
// generic message when the catalogue has no entry for resource.
func NotFoundResponse(c *gin.Context, resource string) {
	key := resource + ".not_found"
	message := i18n.T(GetLangFromContext(c), key)
	if message == key {
		message = ""
	}
	Fail(c, CodeNotFound, message, nil)
}

func ValidationErrorResponse(c *gin.Context, errors []ValidationError) {
	Fail(c, CodeValidation, i18n.T(GetLangFromContext(c), i18n.KeyValidationInvalid, "input"), errors)
}

func PaginatedResponse(c *gin.Context, result PaginationResult) {
	SetPaginationHeaders(c, result)
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    result.Data,
		Meta: gin.H{"pagination": PaginationMeta{
			Page:       result.Page,
			Limit:      result.Limit,
			Total:      result.Total,
			TotalPages: result.TotalPages,
		}},
	})
}

func GetLangFromContext(c *gin.Context) string {
	if lang, ok := c.Get("lang"); ok {
		if s, ok := lang.(string); ok {
			return s
		}
	}
	return "en"
}
