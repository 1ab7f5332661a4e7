// internal/utils/validator.go
package utils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pactwise/pactwise-backend/internal/billing"
	"github.com/pactwise/pactwise-backend/internal/models"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("contract_status", validateContractStatus)
	validate.RegisterValidation("billing_period", validateBillingPeriod)
	validate.RegisterValidation("plan", validatePlan)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateContractStatus(fl validator.FieldLevel) bool {
	return models.ContractStatus(fl.Field().String()).Valid()
}

func validateBillingPeriod(fl validator.FieldLevel) bool {
	switch models.BillingPeriod(fl.Field().String()) {
	case models.BillingPeriodMonthly, models.BillingPeriodAnnual:
		return true
	}
	return false
}

// validatePlan accepts any plan in the built-in catalogue.
func validatePlan(fl validator.FieldLevel) bool {
	return billing.DefaultCatalog().IsPlan(fl.Field().String())
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "url":
		return e.Field() + " must be a valid URL"
	case "min":
		return e.Field() + " must be at least " + e.Param() + " characters"
	case "max":
		return e.Field() + " must be at most " + e.Param() + " characters"
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "contract_status":
		return "Status must be one of draft, pending_analysis, active, expired, terminated, archived"
	case "billing_period":
		return "Billing period must be monthly or annual"
	case "plan":
		return "Unknown plan"
	default:
		return e.Field() + " is invalid"
	}
}
