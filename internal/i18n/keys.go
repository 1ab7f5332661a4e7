// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"
	KeyAccessDenied     = "auth.access_denied"

	// Resources
	KeyContractNotFound     = "contract.not_found"
	KeyVendorNotFound       = "vendor.not_found"
	KeyTemplateNotFound     = "template.not_found"
	KeyNotificationNotFound = "notification.not_found"
	KeySubscriptionNotFound = "subscription.not_found"
	KeyResourceNotFound     = "resource.not_found"

	// Billing
	KeyUsageLimitExceeded = "billing.usage_limit_exceeded"
	KeyInvalidSignature   = "billing.invalid_signature"
	KeyBillingUnavailable = "billing.unavailable"

	// Validation
	KeyValidationInvalid = "validation.invalid"
	KeyInvalidID         = "validation.invalid_id"

	// File Upload
	KeyFileRequired = "file.required"

	// Generic
	KeyRateLimited   = "error.rate_limited"
	KeyInternalError = "error.internal"
)
