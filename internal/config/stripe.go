package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrMissingConfig is returned when a required setting is absent at call time.
var ErrMissingConfig = errors.New("missing configuration")

const (
	EnvStripeSecretKey     = "STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	stripePriceIDPrefix    = "STRIPE_PRICE_ID_"
)

// Required reads key from the environment on every call.
func Required(key string) (string, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrMissingConfig, key)
	}
	return value, nil
}

// PriceIDEnvKey returns the variable holding the processor price for a plan/period pair,
// e.g. STRIPE_PRICE_ID_PROFESSIONAL_MONTHLY.
func PriceIDEnvKey(plan, period string) string {
	return stripePriceIDPrefix + strings.ToUpper(plan) + "_" + strings.ToUpper(period)
}

func StripePriceID(plan, period string) (string, error) {
	return Required(PriceIDEnvKey(plan, period))
}

// PlanForPriceID scans the STRIPE_PRICE_ID_* variables for priceID and returns the
// lower-cased plan and period it was configured under.
func PlanForPriceID(priceID string) (plan, period string, ok bool) {
	if priceID == "" {
		return "", "", false
	}

	for _, kv := range os.Environ() {
		key, value, found := strings.Cut(kv, "=")
		if !found || !strings.HasPrefix(key, stripePriceIDPrefix) || value != priceID {
			continue
		}

		rest := strings.TrimPrefix(key, stripePriceIDPrefix)
		idx := strings.LastIndex(rest, "_")
		if idx <= 0 || idx == len(rest)-1 {
			continue
		}
		return strings.ToLower(rest[:idx]), strings.ToLower(rest[idx+1:]), true
	}

	return "", "", false
}
