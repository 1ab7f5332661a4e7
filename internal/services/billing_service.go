// internal/services/billing_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pactwise/pactwise-backend/internal/billing"
	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/security"
)

const defaultInvoiceLimit = 12

type BillingService struct {
	enterprises repository.EnterpriseRepository
	billing     repository.BillingRepository
	gateway     PaymentGateway
	plans       *billing.Catalog
	config      *config.Config
}

type CheckoutRequest struct {
	Plan          string `json:"plan" validate:"required,plan"`
	BillingPeriod string `json:"billing_period" validate:"required,billing_period"`
	SuccessURL    string `json:"success_url" validate:"omitempty,url"`
	CancelURL     string `json:"cancel_url" validate:"omitempty,url"`
}

type PortalRequest struct {
	ReturnURL string `json:"return_url" validate:"omitempty,url"`
}

type CurrentSubscription struct {
	Plan         billing.Plan         `json:"plan"`
	Subscription *models.Subscription `json:"subscription"`
}

func NewBillingService(repos *repository.Repositories, gateway PaymentGateway, plans *billing.Catalog, config *config.Config) *BillingService {
	if plans == nil {
		plans = billing.DefaultCatalog()
	}
	return &BillingService{
		enterprises: repos.Enterprises,
		billing:     repos.Billing,
		gateway:     gateway,
		plans:       plans,
		config:      config,
	}
}

// CreateCheckoutSession starts a subscription checkout for the caller's tenant.
func (s *BillingService) CreateCheckoutSession(ctx context.Context, sec security.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if err := sec.RequireRole(security.Admins...); err != nil {
		return nil, err
	}
	if req.Plan == billing.PlanFree || !s.plans.IsPlan(req.Plan) {
		return nil, invalidInput("plan %q cannot be purchased", req.Plan)
	}

	priceID, err := config.StripePriceID(req.Plan, req.BillingPeriod)
	if err != nil {
		return nil, err
	}

	customerID, err := s.ensureCustomer(ctx, sec)
	if err != nil {
		return nil, err
	}

	successURL, cancelURL := req.SuccessURL, req.CancelURL
	if successURL == "" {
		successURL = s.frontendURL("/billing/success?session_id={CHECKOUT_SESSION_ID}")
	}
	if cancelURL == "" {
		cancelURL = s.frontendURL("/billing")
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutSessionInput{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Metadata: map[string]string{
			"enterprise_id":  sec.EnterpriseID.String(),
			"user_id":        sec.UserID.String(),
			"plan":           req.Plan,
			"billing_period": req.BillingPeriod,
		},
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"enterprise_id": sec.EnterpriseID,
		"plan":          req.Plan,
		"period":        req.BillingPeriod,
		"session_id":    session.SessionID,
	}).Info("Checkout session created")

	return session, nil
}

// ensureCustomer returns the tenant's processor customer, creating it on first checkout.
func (s *BillingService) ensureCustomer(ctx context.Context, sec security.Context) (string, error) {
	existing, err := s.billing.GetCustomerByEnterprise(ctx, sec.EnterpriseID)
	if err == nil {
		return existing.StripeCustomerID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("failed to load customer: %w", err)
	}

	name := ""
	if enterprise, err := s.enterprises.GetByID(ctx, sec.EnterpriseID); err == nil {
		name = enterprise.Name
	}

	customerID, err := s.gateway.CreateCustomer(ctx, sec.Email, name, map[string]string{
		"enterprise_id": sec.EnterpriseID.String(),
	})
	if err != nil {
		return "", err
	}

	if err := s.billing.UpsertCustomer(ctx, &models.StripeCustomer{
		EnterpriseID:     sec.EnterpriseID,
		StripeCustomerID: customerID,
		Email:            sec.Email,
		Name:             name,
	}); err != nil {
		return "", fmt.Errorf("failed to store customer: %w", err)
	}
	return customerID, nil
}

func (s *BillingService) CreatePortalSession(ctx context.Context, sec security.Context, returnURL string) (string, error) {
	if err := sec.RequireRole(security.Admins...); err != nil {
		return "", err
	}

	customer, err := s.billing.GetCustomerByEnterprise(ctx, sec.EnterpriseID)
	if err != nil {
		return "", err
	}

	if returnURL == "" {
		returnURL = s.frontendURL("/billing")
	}
	return s.gateway.CreatePortalSession(ctx, customer.StripeCustomerID, returnURL)
}

// GetCurrentSubscription returns the entitled subscription, or only the free
// plan when the tenant has none.
func (s *BillingService) GetCurrentSubscription(ctx context.Context, enterpriseID uuid.UUID) (*CurrentSubscription, error) {
	sub, err := s.billing.GetActiveSubscription(ctx, enterpriseID)
	if errors.Is(err, repository.ErrNotFound) {
		return &CurrentSubscription{Plan: s.plans.Plan(billing.PlanFree)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &CurrentSubscription{Plan: s.plans.Plan(sub.Plan), Subscription: sub}, nil
}

// CancelSubscription asks the processor to cancel at period end. Local state
// follows when the resulting webhook arrives.
func (s *BillingService) CancelSubscription(ctx context.Context, sec security.Context) error {
	return s.setCancelAtPeriodEnd(ctx, sec, true)
}

func (s *BillingService) ResumeSubscription(ctx context.Context, sec security.Context) error {
	return s.setCancelAtPeriodEnd(ctx, sec, false)
}

func (s *BillingService) setCancelAtPeriodEnd(ctx context.Context, sec security.Context, cancel bool) error {
	if err := sec.RequireRole(security.Owners...); err != nil {
		return err
	}

	sub, err := s.billing.GetActiveSubscription(ctx, sec.EnterpriseID)
	if err != nil {
		return err
	}
	if sub.CancelAtPeriodEnd == cancel {
		return nil
	}

	if _, err := s.gateway.SetCancelAtPeriodEnd(ctx, sub.StripeSubscriptionID, cancel); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"enterprise_id":   sec.EnterpriseID,
		"subscription_id": sub.StripeSubscriptionID,
		"cancel":          cancel,
	}).Info("Subscription cancellation updated")
	return nil
}

func (s *BillingService) ListInvoices(ctx context.Context, enterpriseID uuid.UUID, limit int) ([]models.Invoice, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultInvoiceLimit
	}
	invoices, err := s.billing.ListInvoices(ctx, enterpriseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// Plans lists the catalogue, cheapest first.
func (s *BillingService) Plans() []billing.Plan {
	return s.plans.Plans()
}

func (s *BillingService) frontendURL(path string) string {
	base := ""
	if s.config != nil {
		base = s.config.Frontend.BaseURL
	}
	return base + path
}
