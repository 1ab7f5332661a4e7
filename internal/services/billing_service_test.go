package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pactwise/pactwise-backend/internal/billing"
	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/repository/memory"
	"github.com/pactwise/pactwise-backend/internal/security"
)

func newBillingService(t *testing.T) (*BillingService, *repository.Repositories, *fakeGateway) {
	t.Helper()
	repos := memory.NewRepositories()
	gateway := newFakeGateway()
	cfg := &config.Config{Frontend: config.FrontendConfig{BaseURL: "https://app.pactwise.test"}}
	return NewBillingService(repos, gateway, nil, cfg), repos, gateway
}

func ownerContext(enterpriseID uuid.UUID) security.Context {
	return security.Context{UserID: uuid.New(), EnterpriseID: enterpriseID, Role: models.UserRoleOwner, Email: "owner@acme.test"}
}

func TestCreateCheckoutSession(t *testing.T) {
	t.Setenv("STRIPE_PRICE_ID_STARTER_ANNUAL", "price_starter_annual")
	ctx := context.Background()
	service, repos, gateway := newBillingService(t)
	sec := ownerContext(uuid.New())

	session, err := service.CreateCheckoutSession(ctx, sec, &CheckoutRequest{Plan: billing.PlanStarter, BillingPeriod: "annual"})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.SessionID)

	require.Len(t, gateway.checkouts, 1)
	input := gateway.checkouts[0]
	assert.Equal(t, "price_starter_annual", input.PriceID)
	assert.Equal(t, "cus_1", input.CustomerID)
	assert.Equal(t, "https://app.pactwise.test/billing", input.CancelURL)
	assert.Equal(t, sec.EnterpriseID.String(), input.Metadata["enterprise_id"])
	assert.Equal(t, sec.UserID.String(), input.Metadata["user_id"])
	assert.Equal(t, "starter", input.Metadata["plan"])
	assert.Equal(t, "annual", input.Metadata["billing_period"])

	customer, err := repos.Billing.GetCustomerByEnterprise(ctx, sec.EnterpriseID)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", customer.StripeCustomerID)

	// the stored customer is reused
	_, err = service.CreateCheckoutSession(ctx, sec, &CheckoutRequest{Plan: billing.PlanStarter, BillingPeriod: "annual"})
	require.NoError(t, err)
	assert.Equal(t, 1, gateway.customers)
}

func TestCreateCheckoutSession_Rules(t *testing.T) {
	ctx := context.Background()
	service, _, gateway := newBillingService(t)
	enterpriseID := uuid.New()

	manager := security.Context{UserID: uuid.New(), EnterpriseID: enterpriseID, Role: models.UserRoleManager}
	_, err := service.CreateCheckoutSession(ctx, manager, &CheckoutRequest{Plan: billing.PlanStarter, BillingPeriod: "monthly"})
	assert.ErrorIs(t, err, security.ErrForbidden)

	_, err = service.CreateCheckoutSession(ctx, ownerContext(enterpriseID), &CheckoutRequest{Plan: billing.PlanFree, BillingPeriod: "monthly"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	t.Setenv("STRIPE_PRICE_ID_PROFESSIONAL_MONTHLY", "")
	_, err = service.CreateCheckoutSession(ctx, ownerContext(enterpriseID), &CheckoutRequest{Plan: billing.PlanProfessional, BillingPeriod: "monthly"})
	assert.ErrorIs(t, err, config.ErrMissingConfig)

	assert.Empty(t, gateway.checkouts)
}

func TestCreatePortalSession(t *testing.T) {
	ctx := context.Background()
	service, repos, gateway := newBillingService(t)
	sec := ownerContext(uuid.New())

	_, err := service.CreatePortalSession(ctx, sec, "")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repos.Billing.UpsertCustomer(ctx, &models.StripeCustomer{EnterpriseID: sec.EnterpriseID, StripeCustomerID: "cus_42"}))
	url, err := service.CreatePortalSession(ctx, sec, "")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.test/cus_42", url)
	assert.Equal(t, []string{"cus_42"}, gateway.portals)
}

func TestGetCurrentSubscription(t *testing.T) {
	ctx := context.Background()
	service, repos, _ := newBillingService(t)
	enterpriseID := uuid.New()

	current, err := service.GetCurrentSubscription(ctx, enterpriseID)
	require.NoError(t, err)
	assert.Equal(t, billing.PlanFree, current.Plan.ID)
	assert.Nil(t, current.Subscription)

	require.NoError(t, repos.Billing.UpsertSubscription(ctx, &models.Subscription{
		EnterpriseID:         enterpriseID,
		StripeSubscriptionID: "sub_1",
		Plan:                 billing.PlanProfessional,
		Status:               models.SubscriptionStatusActive,
		CurrentPeriodStart:   time.Now().Add(-time.Hour),
	}))
	current, err = service.GetCurrentSubscription(ctx, enterpriseID)
	require.NoError(t, err)
	assert.Equal(t, billing.PlanProfessional, current.Plan.ID)
	assert.Equal(t, int64(1000), current.Plan.Limits[billing.MetricContracts])
	require.NotNil(t, current.Subscription)
}

func TestCancelAndResumeSubscription(t *testing.T) {
	ctx := context.Background()
	service, repos, gateway := newBillingService(t)
	sec := ownerContext(uuid.New())

	assert.ErrorIs(t, service.CancelSubscription(ctx, sec), repository.ErrNotFound)

	require.NoError(t, repos.Billing.UpsertSubscription(ctx, &models.Subscription{
		EnterpriseID:         sec.EnterpriseID,
		StripeSubscriptionID: "sub_1",
		Plan:                 billing.PlanStarter,
		Status:               models.SubscriptionStatusActive,
	}))

	admin := sec
	admin.Role = models.UserRoleAdmin
	assert.ErrorIs(t, service.CancelSubscription(ctx, admin), security.ErrForbidden)

	require.NoError(t, service.CancelSubscription(ctx, sec))
	assert.True(t, gateway.cancelCalls["sub_1"])

	// local state only changes through webhooks
	sub, err := repos.Billing.GetSubscriptionByStripeID(ctx, "sub_1")
	require.NoError(t, err)
	assert.False(t, sub.CancelAtPeriodEnd)

	sub.CancelAtPeriodEnd = true
	require.NoError(t, repos.Billing.UpsertSubscription(ctx, sub))
	require.NoError(t, service.ResumeSubscription(ctx, sec))
	assert.False(t, gateway.cancelCalls["sub_1"])
}

func TestListInvoices(t *testing.T) {
	ctx := context.Background()
	service, repos, _ := newBillingService(t)
	enterpriseID := uuid.New()

	for _, id := range []string{"in_1", "in_2", "in_3"} {
		require.NoError(t, repos.Billing.UpsertInvoice(ctx, &models.Invoice{EnterpriseID: enterpriseID, StripeInvoiceID: id}))
	}
	require.NoError(t, repos.Billing.UpsertInvoice(ctx, &models.Invoice{EnterpriseID: uuid.New(), StripeInvoiceID: "in_other"}))

	invoices, err := service.ListInvoices(ctx, enterpriseID, 2)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, "in_3", invoices[0].StripeInvoiceID)
}
