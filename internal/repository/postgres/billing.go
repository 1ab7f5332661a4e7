package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pactwise/pactwise-backend/internal/database"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

type BillingRepository struct {
	db *gorm.DB
}

func NewBillingRepository(db *gorm.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

func (r *BillingRepository) Transaction(ctx context.Context, fn func(tx repository.BillingRepository) error) error {
	return database.WithTransaction(r.db.WithContext(ctx), func(tx *gorm.DB) error {
		return fn(&BillingRepository{db: tx})
	})
}

func (r *BillingRepository) GetCustomerByEnterprise(ctx context.Context, enterpriseID uuid.UUID) (*models.StripeCustomer, error) {
	var c models.StripeCustomer
	if err := r.db.WithContext(ctx).Where("enterprise_id = ?", enterpriseID).First(&c).Error; err != nil {
		return nil, lookupErr(err, "customer")
	}
	return &c, nil
}

func (r *BillingRepository) GetCustomerByStripeID(ctx context.Context, stripeCustomerID string) (*models.StripeCustomer, error) {
	var c models.StripeCustomer
	if err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", stripeCustomerID).First(&c).Error; err != nil {
		return nil, lookupErr(err, "customer")
	}
	return &c, nil
}

// UpsertCustomer keys on the processor customer id.
func (r *BillingRepository) UpsertCustomer(ctx context.Context, c *models.StripeCustomer) error {
	var existing models.StripeCustomer
	err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", c.StripeCustomerID).First(&existing).Error
	if err = r.createOrSave(ctx, err, c, &c.BaseModel, existing.BaseModel); err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}
	return nil
}

func (r *BillingRepository) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	var s models.Subscription
	if err := r.db.WithContext(ctx).Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&s).Error; err != nil {
		return nil, lookupErr(err, "subscription")
	}
	return &s, nil
}

// GetActiveSubscription returns the entitled subscription with the latest period start.
func (r *BillingRepository) GetActiveSubscription(ctx context.Context, enterpriseID uuid.UUID) (*models.Subscription, error) {
	var s models.Subscription
	err := r.db.WithContext(ctx).
		Where("enterprise_id = ? AND status IN ?", enterpriseID,
			[]models.SubscriptionStatus{models.SubscriptionStatusActive, models.SubscriptionStatusTrialing}).
		Order("current_period_start DESC").
		First(&s).Error
	if err != nil {
		return nil, lookupErr(err, "subscription")
	}
	return &s, nil
}

func (r *BillingRepository) UpsertSubscription(ctx context.Context, s *models.Subscription) error {
	var existing models.Subscription
	err := r.db.WithContext(ctx).Where("stripe_subscription_id = ?", s.StripeSubscriptionID).First(&existing).Error
	if err = r.createOrSave(ctx, err, s, &s.BaseModel, existing.BaseModel); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (r *BillingRepository) UpsertInvoice(ctx context.Context, inv *models.Invoice) error {
	var existing models.Invoice
	err := r.db.WithContext(ctx).Where("stripe_invoice_id = ?", inv.StripeInvoiceID).First(&existing).Error
	if err = r.createOrSave(ctx, err, inv, &inv.BaseModel, existing.BaseModel); err != nil {
		return fmt.Errorf("failed to upsert invoice: %w", err)
	}
	return nil
}

func (r *BillingRepository) ListInvoices(ctx context.Context, enterpriseID uuid.UUID, limit int) ([]models.Invoice, error) {
	query := r.db.WithContext(ctx).Where("enterprise_id = ?", enterpriseID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var invoices []models.Invoice
	if err := query.Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

func (r *BillingRepository) GetWebhookEvent(ctx context.Context, stripeEventID string) (*models.WebhookEvent, error) {
	var e models.WebhookEvent
	if err := r.db.WithContext(ctx).Where("stripe_event_id = ?", stripeEventID).First(&e).Error; err != nil {
		return nil, lookupErr(err, "webhook event")
	}
	return &e, nil
}

func (r *BillingRepository) SaveWebhookEvent(ctx context.Context, e *models.WebhookEvent) error {
	var existing models.WebhookEvent
	err := r.db.WithContext(ctx).Where("stripe_event_id = ?", e.StripeEventID).First(&existing).Error
	if err = r.createOrSave(ctx, err, e, &e.BaseModel, existing.BaseModel); err != nil {
		return fmt.Errorf("failed to save webhook event: %w", err)
	}
	return nil
}

func (r *BillingRepository) DeleteWebhookEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Unscoped().
		Where("processed_at < ?", cutoff).
		Delete(&models.WebhookEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete webhook events: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// createOrSave finishes a find-then-write upsert: findErr is the result of
// looking up the existing row by its external id.
func (r *BillingRepository) createOrSave(ctx context.Context, findErr error, value interface{}, base *models.BaseModel, existing models.BaseModel) error {
	switch {
	case findErr == nil:
		base.ID = existing.ID
		base.CreatedAt = existing.CreatedAt
		return r.db.WithContext(ctx).Save(value).Error
	case errors.Is(findErr, gorm.ErrRecordNotFound):
		return r.db.WithContext(ctx).Create(value).Error
	default:
		return findErr
	}
}
