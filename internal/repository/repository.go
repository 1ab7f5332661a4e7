// Package repository defines the data-access capabilities the services depend on.
// Implementations live in the postgres and memory subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pactwise/pactwise-backend/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrLimitExceeded = errors.New("usage limit exceeded")
)

// Unlimited is the limit value that disables quota enforcement.
const Unlimited int64 = -1

// Page selects a window of a listing. A zero Limit returns every row.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

type ContractFilter struct {
	Page
	Statuses     []models.ContractStatus
	VendorID     *uuid.UUID
	ContractType string
	Search       string
}

type VendorFilter struct {
	Page
	Status   models.VendorStatus
	Category string
	Search   string
}

type NotificationFilter struct {
	Page
	UnreadOnly bool
	Type       string
}

type TemplateFilter struct {
	Page
	Category   string
	ActiveOnly bool
	Search     string
}

type EnterpriseRepository interface {
	Create(ctx context.Context, e *models.Enterprise) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Enterprise, error)
	List(ctx context.Context) ([]models.Enterprise, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, enterpriseID, id uuid.UUID) (*models.User, error)
	ListByRoles(ctx context.Context, enterpriseID uuid.UUID, roles ...models.UserRole) ([]models.User, error)
}

// ContractRepository listings are ordered newest first.
type ContractRepository interface {
	Create(ctx context.Context, c *models.Contract) error
	Update(ctx context.Context, c *models.Contract) error
	GetByID(ctx context.Context, enterpriseID, id uuid.UUID) (*models.Contract, error)
	List(ctx context.Context, enterpriseID uuid.UUID, filter ContractFilter) ([]models.Contract, int64, error)
	// ListActiveEndedBefore spans all tenants.
	ListActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Contract, error)
}

type VendorRepository interface {
	Create(ctx context.Context, v *models.Vendor) error
	Update(ctx context.Context, v *models.Vendor) error
	GetByID(ctx context.Context, enterpriseID, id uuid.UUID) (*models.Vendor, error)
	List(ctx context.Context, enterpriseID uuid.UUID, filter VendorFilter) ([]models.Vendor, int64, error)
}

// BillingRepository mirrors payment processor state. Upserts are keyed by the
// processor's ids so redelivered events converge on the same rows.
type BillingRepository interface {
	Transaction(ctx context.Context, fn func(tx BillingRepository) error) error

	GetCustomerByEnterprise(ctx context.Context, enterpriseID uuid.UUID) (*models.StripeCustomer, error)
	GetCustomerByStripeID(ctx context.Context, stripeCustomerID string) (*models.StripeCustomer, error)
	UpsertCustomer(ctx context.Context, c *models.StripeCustomer) error

	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	GetActiveSubscription(ctx context.Context, enterpriseID uuid.UUID) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, s *models.Subscription) error

	UpsertInvoice(ctx context.Context, inv *models.Invoice) error
	ListInvoices(ctx context.Context, enterpriseID uuid.UUID, limit int) ([]models.Invoice, error)

	GetWebhookEvent(ctx context.Context, stripeEventID string) (*models.WebhookEvent, error)
	SaveWebhookEvent(ctx context.Context, e *models.WebhookEvent) error
	DeleteWebhookEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type UsageRepository interface {
	SumSince(ctx context.Context, enterpriseID uuid.UUID, metric string, since time.Time) (int64, error)
	// RecordWithinLimit appends rec only if usage since `since` plus rec.Quantity
	// stays within limit. Concurrent calls for one tenant are serialised.
	// Returns the usage total after the call and ErrLimitExceeded on refusal.
	RecordWithinLimit(ctx context.Context, rec *models.UsageRecord, since time.Time, limit int64) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, recipientID, id uuid.UUID) (*models.Notification, error)
	// List excludes dismissed and archived notifications.
	List(ctx context.Context, recipientID uuid.UUID, filter NotificationFilter) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)
	Update(ctx context.Context, n *models.Notification) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error)
	// ArchiveBefore archives read or dismissed notifications created before cutoff.
	ArchiveBefore(ctx context.Context, cutoff, at time.Time) (int64, error)
}

type TemplateRepository interface {
	Transaction(ctx context.Context, fn func(tx TemplateRepository) error) error
	Create(ctx context.Context, t *models.ContractTemplate) error
	Update(ctx context.Context, t *models.ContractTemplate) error
	GetByID(ctx context.Context, enterpriseID, id uuid.UUID) (*models.ContractTemplate, error)
	List(ctx context.Context, enterpriseID uuid.UUID, filter TemplateFilter) ([]models.ContractTemplate, int64, error)
	Delete(ctx context.Context, enterpriseID, id uuid.UUID) error
	CreateVersion(ctx context.Context, v *models.TemplateVersion) error
	ListVersions(ctx context.Context, templateID uuid.UUID) ([]models.TemplateVersion, error)
}

type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repositories bundles one implementation of every capability.
type Repositories struct {
	Enterprises   EnterpriseRepository
	Users         UserRepository
	Contracts     ContractRepository
	Vendors       VendorRepository
	Billing       BillingRepository
	Usage         UsageRepository
	Notifications NotificationRepository
	Templates     TemplateRepository
	AuditLogs     AuditLogRepository
}
