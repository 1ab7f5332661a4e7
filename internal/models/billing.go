// internal/models/billing.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// StripeCustomer maps a tenant to its processor customer.
type StripeCustomer struct {
	BaseModel
	EnterpriseID     uuid.UUID `json:"enterprise_id" gorm:"type:uuid;not null;uniqueIndex"`
	StripeCustomerID string    `json:"stripe_customer_id" gorm:"size:255;not null;uniqueIndex"`
	Email            string    `json:"email" gorm:"size:255"`
	Name             string    `json:"name" gorm:"size:255"`
}

// Subscription mirrors a processor subscription. Status changes arrive only through webhooks.
type Subscription struct {
	BaseModel
	EnterpriseID         uuid.UUID          `json:"enterprise_id" gorm:"type:uuid;not null;index"`
	StripeSubscriptionID string             `json:"stripe_subscription_id" gorm:"size:255;not null;uniqueIndex"`
	StripeCustomerID     string             `json:"stripe_customer_id" gorm:"size:255;index"`
	StripePriceID        string             `json:"stripe_price_id" gorm:"size:255"`
	Plan                 string             `json:"plan" gorm:"size:50;not null;index"`
	BillingPeriod        BillingPeriod      `json:"billing_period" gorm:"type:varchar(20)"`
	Status               SubscriptionStatus `json:"status" gorm:"type:varchar(30);not null;index"`
	CurrentPeriodStart   time.Time          `json:"current_period_start"`
	CurrentPeriodEnd     time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end" gorm:"default:false"`
	CanceledAt           *time.Time         `json:"canceled_at"`
	TrialEnd             *time.Time         `json:"trial_end"`
}

// Invoice amounts are in the currency's minor unit.
type Invoice struct {
	BaseModel
	EnterpriseID         uuid.UUID `json:"enterprise_id" gorm:"type:uuid;not null;index"`
	StripeInvoiceID      string    `json:"stripe_invoice_id" gorm:"size:255;not null;uniqueIndex"`
	StripeSubscriptionID string    `json:"stripe_subscription_id" gorm:"size:255;index"`
	AmountDue            int64     `json:"amount_due"`
	AmountPaid           int64     `json:"amount_paid"`
	Currency             string    `json:"currency" gorm:"size:10"`
	Paid                 bool      `json:"paid" gorm:"default:false"`
	Status               string    `json:"status" gorm:"size:30"`
	HostedInvoiceURL     string    `json:"hosted_invoice_url,omitempty" gorm:"type:text"`
	PeriodStart          time.Time `json:"period_start"`
	PeriodEnd            time.Time `json:"period_end"`
}

// UsageRecord is append-only and aggregated on read.
type UsageRecord struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EnterpriseID   uuid.UUID  `json:"enterprise_id" gorm:"type:uuid;not null;index:idx_usage_enterprise_metric_time,priority:1"`
	SubscriptionID *uuid.UUID `json:"subscription_id" gorm:"type:uuid"`
	Metric         string     `json:"metric" gorm:"size:50;not null;index:idx_usage_enterprise_metric_time,priority:2"`
	Quantity       int64      `json:"quantity" gorm:"not null"`
	RecordedAt     time.Time  `json:"recorded_at" gorm:"not null;index:idx_usage_enterprise_metric_time,priority:3"`
}

// WebhookEvent is the ledger of processor events seen by the webhook endpoint.
type WebhookEvent struct {
	BaseModel
	StripeEventID string             `json:"stripe_event_id" gorm:"size:255;not null;uniqueIndex"`
	Type          string             `json:"type" gorm:"size:100;not null;index"`
	Status        WebhookEventStatus `json:"status" gorm:"type:varchar(20);not null"`
	Error         string             `json:"error,omitempty" gorm:"type:text"`
	ProcessedAt   time.Time          `json:"processed_at" gorm:"index"`
}
