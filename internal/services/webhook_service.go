// internal/services/webhook_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
	"github.com/tidwall/gjson"

	"github.com/pactwise/pactwise-backend/internal/billing"
	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/metrics"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/security"
)

// Processor event types mirrored locally
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
	EventCustomerUpdated          = "customer.updated"
)

type WebhookService struct {
	billing       repository.BillingRepository
	gateway       PaymentGateway
	notifications *NotificationService
	plans         *billing.Catalog
	now           func() time.Time
	handlers      map[string]webhookHandler
}

// webhookHandler mirrors one event inside a repository transaction. Work that
// must only happen once the transaction commits goes on effects.
type webhookHandler func(ctx context.Context, tx repository.BillingRepository, event *stripe.Event, effects *webhookEffects) error

type webhookEffects struct {
	afterCommit []func(ctx context.Context)
}

func (e *webhookEffects) onCommit(fn func(ctx context.Context)) {
	e.afterCommit = append(e.afterCommit, fn)
}

type WebhookResult struct {
	EventID   string                    `json:"event_id"`
	Type      string                    `json:"type"`
	Status    models.WebhookEventStatus `json:"status"`
	Duplicate bool                      `json:"duplicate,omitempty"`
}

func NewWebhookService(repos *repository.Repositories, gateway PaymentGateway, notifications *NotificationService, plans *billing.Catalog) *WebhookService {
	if plans == nil {
		plans = billing.DefaultCatalog()
	}
	s := &WebhookService{
		billing:       repos.Billing,
		gateway:       gateway,
		notifications: notifications,
		plans:         plans,
		now:           time.Now,
	}
	s.handlers = map[string]webhookHandler{
		EventCheckoutSessionCompleted: s.handleCheckoutCompleted,
		EventSubscriptionCreated:      s.handleSubscriptionChanged,
		EventSubscriptionUpdated:      s.handleSubscriptionChanged,
		EventSubscriptionDeleted:      s.handleSubscriptionDeleted,
		EventInvoicePaymentSucceeded:  s.handleInvoice,
		EventInvoicePaymentFailed:     s.handleInvoice,
		EventCustomerUpdated:          s.handleCustomerUpdated,
	}
	return s
}

// HandleWebhook verifies and applies one processor event. Events already
// recorded are acknowledged without being applied again. A returned error
// other than ErrInvalidSignature means the processor should redeliver.
func (s *WebhookService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	secret, err := config.Required(config.EnvStripeWebhookSecret)
	if err != nil {
		return nil, err
	}
	if err := webhook.ValidatePayload(payload, signatureHeader, secret); err != nil {
		metrics.RecordWebhookEvent("unknown", "invalid_signature")
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	envelope := gjson.GetManyBytes(payload, "id", "type", "livemode")
	eventID, eventType := envelope[0].String(), envelope[1].String()
	if eventID == "" || eventType == "" {
		return nil, invalidInput("webhook payload has no event id or type")
	}

	log := logrus.WithFields(logrus.Fields{
		"event_id":   eventID,
		"event_type": eventType,
		"livemode":   envelope[2].Bool(),
	})
	result := &WebhookResult{EventID: eventID, Type: eventType}

	seen, err := s.billing.GetWebhookEvent(ctx, eventID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check webhook ledger: %w", err)
	}
	if seen != nil && seen.Status != models.WebhookEventStatusFailed {
		log.Info("Webhook event already handled")
		metrics.RecordWebhookEvent(eventType, "duplicate")
		result.Status, result.Duplicate = seen.Status, true
		return result, nil
	}

	handler, ok := s.handlers[eventType]
	if !ok {
		log.Info("Ignoring unhandled webhook event")
		result.Status = models.WebhookEventStatusIgnored
		return result, s.record(ctx, result, nil)
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, invalidInput("malformed webhook event: %v", err)
	}
	if event.Data == nil {
		return nil, invalidInput("webhook event %s has no data", eventID)
	}

	effects := &webhookEffects{}
	handleErr := s.billing.Transaction(ctx, func(tx repository.BillingRepository) error {
		return handler(ctx, tx, &event, effects)
	})
	if handleErr != nil {
		log.WithError(handleErr).Error("Webhook event handling failed")
		result.Status = models.WebhookEventStatusFailed
		if err := s.record(ctx, result, handleErr); err != nil {
			log.WithError(err).Error("Failed to record webhook failure")
		}
		return nil, fmt.Errorf("failed to handle %s: %w", eventType, handleErr)
	}

	for _, fn := range effects.afterCommit {
		fn(ctx)
	}

	log.Info("Webhook event processed")
	result.Status = models.WebhookEventStatusProcessed
	return result, s.record(ctx, result, nil)
}

func (s *WebhookService) record(ctx context.Context, result *WebhookResult, handleErr error) error {
	metrics.RecordWebhookEvent(result.Type, string(result.Status))

	entry := &models.WebhookEvent{
		StripeEventID: result.EventID,
		Type:          result.Type,
		Status:        result.Status,
		ProcessedAt:   s.now().UTC(),
	}
	if handleErr != nil {
		entry.Error = handleErr.Error()
	}
	if err := s.billing.SaveWebhookEvent(ctx, entry); err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}

func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, tx repository.BillingRepository, event *stripe.Event, _ *webhookEffects) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to decode checkout session: %w", err)
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		logrus.WithField("session_id", session.ID).Info("Checkout session has no subscription, nothing to mirror")
		return nil
	}
	if session.Customer == nil || session.Customer.ID == "" {
		return invalidInput("checkout session %s has no customer", session.ID)
	}

	enterpriseID, err := uuid.Parse(session.Metadata["enterprise_id"])
	if err != nil {
		return invalidInput("checkout session %s has no enterprise_id metadata", session.ID)
	}

	customer := &models.StripeCustomer{EnterpriseID: enterpriseID, StripeCustomerID: session.Customer.ID}
	if existing, err := tx.GetCustomerByStripeID(ctx, session.Customer.ID); err == nil {
		customer.Email, customer.Name = existing.Email, existing.Name
	}
	if session.CustomerDetails != nil {
		if session.CustomerDetails.Email != "" {
			customer.Email = session.CustomerDetails.Email
		}
		if session.CustomerDetails.Name != "" {
			customer.Name = session.CustomerDetails.Name
		}
	}
	if err := tx.UpsertCustomer(ctx, customer); err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}

	sub, err := s.gateway.GetSubscription(ctx, session.Subscription.ID)
	if err != nil {
		return err
	}
	_, err = s.mirrorSubscription(ctx, tx, sub, enterpriseID, session.Metadata)
	return err
}

func (s *WebhookService) handleSubscriptionChanged(ctx context.Context, tx repository.BillingRepository, event *stripe.Event, _ *webhookEffects) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to decode subscription: %w", err)
	}

	enterpriseID, err := s.subscriptionEnterprise(ctx, tx, &sub)
	if err != nil {
		return err
	}
	_, err = s.mirrorSubscription(ctx, tx, &sub, enterpriseID, nil)
	return err
}

func (s *WebhookService) handleSubscriptionDeleted(ctx context.Context, tx repository.BillingRepository, event *stripe.Event, _ *webhookEffects) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to decode subscription: %w", err)
	}

	enterpriseID, err := s.subscriptionEnterprise(ctx, tx, &sub)
	if err != nil {
		return err
	}

	sub.Status = stripe.SubscriptionStatusCanceled
	if sub.CanceledAt == 0 {
		sub.CanceledAt = s.now().Unix()
	}
	_, err = s.mirrorSubscription(ctx, tx, &sub, enterpriseID, nil)
	return err
}

func (s *WebhookService) handleInvoice(ctx context.Context, tx repository.BillingRepository, event *stripe.Event, effects *webhookEffects) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return fmt.Errorf("failed to decode invoice: %w", err)
	}
	if inv.Customer == nil || inv.Customer.ID == "" {
		return invalidInput("invoice %s has no customer", inv.ID)
	}

	customer, err := tx.GetCustomerByStripeID(ctx, inv.Customer.ID)
	if err != nil {
		return fmt.Errorf("invoice %s: %w", inv.ID, err)
	}

	invoice := &models.Invoice{
		EnterpriseID:     customer.EnterpriseID,
		StripeInvoiceID:  inv.ID,
		AmountDue:        inv.AmountDue,
		AmountPaid:       inv.AmountPaid,
		Currency:         string(inv.Currency),
		Paid:             inv.Paid,
		Status:           string(inv.Status),
		HostedInvoiceURL: inv.HostedInvoiceURL,
		PeriodStart:      unixTime(inv.PeriodStart),
		PeriodEnd:        unixTime(inv.PeriodEnd),
	}
	if inv.Subscription != nil {
		invoice.StripeSubscriptionID = inv.Subscription.ID
	}
	if err := tx.UpsertInvoice(ctx, invoice); err != nil {
		return fmt.Errorf("failed to upsert invoice: %w", err)
	}

	if string(event.Type) == EventInvoicePaymentFailed && s.notifications != nil {
		effects.onCommit(func(ctx context.Context) {
			s.notifyPaymentFailed(ctx, invoice)
		})
	}
	return nil
}

func (s *WebhookService) notifyPaymentFailed(ctx context.Context, invoice *models.Invoice) {
	amount := float64(invoice.AmountDue) / 100
	_, err := s.notifications.NotifyRoles(ctx, NotificationInput{
		EnterpriseID: invoice.EnterpriseID,
		Type:         NotificationPaymentFailed,
		Title:        "Payment failed",
		Message:      fmt.Sprintf("We could not collect %.2f %s for your subscription.", amount, invoice.Currency),
		Priority:     models.NotificationPriorityHigh,
		ActionURL:    "/billing",
	}, security.Admins...)
	if err != nil {
		logrus.WithError(err).WithField("invoice_id", invoice.StripeInvoiceID).Error("Failed to notify payment failure")
	}
}

func (s *WebhookService) handleCustomerUpdated(ctx context.Context, tx repository.BillingRepository, event *stripe.Event, _ *webhookEffects) error {
	var cust stripe.Customer
	if err := json.Unmarshal(event.Data.Raw, &cust); err != nil {
		return fmt.Errorf("failed to decode customer: %w", err)
	}

	existing, err := tx.GetCustomerByStripeID(ctx, cust.ID)
	if err != nil {
		return err
	}
	existing.Email = cust.Email
	existing.Name = cust.Name
	if err := tx.UpsertCustomer(ctx, existing); err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}

// subscriptionEnterprise resolves the tenant from subscription metadata, then
// from the stored customer mapping.
func (s *WebhookService) subscriptionEnterprise(ctx context.Context, tx repository.BillingRepository, sub *stripe.Subscription) (uuid.UUID, error) {
	if id, err := uuid.Parse(sub.Metadata["enterprise_id"]); err == nil {
		return id, nil
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return uuid.Nil, invalidInput("subscription %s has no customer", sub.ID)
	}
	customer, err := tx.GetCustomerByStripeID(ctx, sub.Customer.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("subscription %s: %w", sub.ID, err)
	}
	return customer.EnterpriseID, nil
}

// mirrorSubscription upserts the processor subscription keyed by its id. Plan
// and period come from metadata, then fallback metadata, then the configured
// price ids, then whatever was stored before.
func (s *WebhookService) mirrorSubscription(ctx context.Context, tx repository.BillingRepository, sub *stripe.Subscription, enterpriseID uuid.UUID, fallback map[string]string) (*models.Subscription, error) {
	local := &models.Subscription{
		EnterpriseID:         enterpriseID,
		StripeSubscriptionID: sub.ID,
		Status:               models.SubscriptionStatus(sub.Status),
		CurrentPeriodStart:   unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:     unixTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		local.StripeCustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		local.StripePriceID = sub.Items.Data[0].Price.ID
	}
	if sub.CanceledAt > 0 {
		t := unixTime(sub.CanceledAt)
		local.CanceledAt = &t
	}
	if sub.TrialEnd > 0 {
		t := unixTime(sub.TrialEnd)
		local.TrialEnd = &t
	}

	plan, period := sub.Metadata["plan"], sub.Metadata["billing_period"]
	if plan == "" {
		plan, period = fallback["plan"], fallback["billing_period"]
	}
	if plan == "" {
		plan, period, _ = config.PlanForPriceID(local.StripePriceID)
	}

	existing, err := tx.GetSubscriptionByStripeID(ctx, sub.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if existing != nil {
		if plan == "" {
			plan, period = existing.Plan, string(existing.BillingPeriod)
		}
		if local.StripeCustomerID == "" {
			local.StripeCustomerID = existing.StripeCustomerID
		}
	}

	if !s.plans.IsPlan(plan) {
		logrus.WithFields(logrus.Fields{
			"subscription_id": sub.ID,
			"plan":            plan,
			"price_id":        local.StripePriceID,
		}).Warn("Subscription plan could not be resolved, using free limits")
		plan = billing.PlanFree
	}
	local.Plan = plan
	local.BillingPeriod = models.BillingPeriod(period)

	if err := tx.UpsertSubscription(ctx, local); err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return local, nil
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
