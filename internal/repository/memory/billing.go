package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

type BillingRepository struct{ s *Store }

// Transaction serialises fn against other transactions. Writes made before fn
// returns an error are kept.
func (r *BillingRepository) Transaction(_ context.Context, fn func(tx repository.BillingRepository) error) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()
	return fn(r)
}

func (r *BillingRepository) GetCustomerByEnterprise(_ context.Context, enterpriseID uuid.UUID) (*models.StripeCustomer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.customers {
		if c.EnterpriseID == enterpriseID {
			return &c, nil
		}
	}
	return nil, notFound("customer")
}

func (r *BillingRepository) GetCustomerByStripeID(_ context.Context, stripeCustomerID string) (*models.StripeCustomer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.customers {
		if c.StripeCustomerID == stripeCustomerID {
			return &c, nil
		}
	}
	return nil, notFound("customer")
}

func (r *BillingRepository) UpsertCustomer(_ context.Context, c *models.StripeCustomer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, existing := range r.s.customers {
		if existing.StripeCustomerID == c.StripeCustomerID {
			c.ID, c.CreatedAt, c.UpdatedAt = id, existing.CreatedAt, time.Now().UTC()
			r.s.customers[id] = *c
			return nil
		}
	}
	r.s.stampLocked(&c.BaseModel)
	r.s.customers[c.ID] = *c
	return nil
}

func (r *BillingRepository) GetSubscriptionByStripeID(_ context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, sub := range r.s.subscriptions {
		if sub.StripeSubscriptionID == stripeSubscriptionID {
			return &sub, nil
		}
	}
	return nil, notFound("subscription")
}

func (r *BillingRepository) GetActiveSubscription(_ context.Context, enterpriseID uuid.UUID) (*models.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var best *models.Subscription
	for _, sub := range r.s.subscriptions {
		if sub.EnterpriseID != enterpriseID || !sub.Status.Entitled() {
			continue
		}
		if best == nil || sub.CurrentPeriodStart.After(best.CurrentPeriodStart) {
			candidate := sub
			best = &candidate
		}
	}
	if best == nil {
		return nil, notFound("subscription")
	}
	return best, nil
}

func (r *BillingRepository) UpsertSubscription(_ context.Context, sub *models.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, existing := range r.s.subscriptions {
		if existing.StripeSubscriptionID == sub.StripeSubscriptionID {
			sub.ID, sub.CreatedAt, sub.UpdatedAt = id, existing.CreatedAt, time.Now().UTC()
			r.s.subscriptions[id] = *sub
			return nil
		}
	}
	r.s.stampLocked(&sub.BaseModel)
	r.s.subscriptions[sub.ID] = *sub
	return nil
}

func (r *BillingRepository) UpsertInvoice(_ context.Context, inv *models.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, existing := range r.s.invoices {
		if existing.StripeInvoiceID == inv.StripeInvoiceID {
			inv.ID, inv.CreatedAt, inv.UpdatedAt = id, existing.CreatedAt, time.Now().UTC()
			r.s.invoices[id] = *inv
			return nil
		}
	}
	r.s.stampLocked(&inv.BaseModel)
	r.s.invoices[inv.ID] = *inv
	return nil
}

func (r *BillingRepository) ListInvoices(_ context.Context, enterpriseID uuid.UUID, limit int) ([]models.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.Invoice
	for _, inv := range r.s.invoices {
		if inv.EnterpriseID == enterpriseID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.s.newerFirst(out[i].BaseModel, out[j].BaseModel) })
	return window(out, repository.Page{Limit: limit}), nil
}

func (r *BillingRepository) GetWebhookEvent(_ context.Context, stripeEventID string) (*models.WebhookEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, e := range r.s.events {
		if e.StripeEventID == stripeEventID {
			return &e, nil
		}
	}
	return nil, notFound("webhook event")
}

func (r *BillingRepository) SaveWebhookEvent(_ context.Context, e *models.WebhookEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, existing := range r.s.events {
		if existing.StripeEventID == e.StripeEventID {
			e.ID, e.CreatedAt, e.UpdatedAt = id, existing.CreatedAt, time.Now().UTC()
			r.s.events[id] = *e
			return nil
		}
	}
	r.s.stampLocked(&e.BaseModel)
	r.s.events[e.ID] = *e
	return nil
}

func (r *BillingRepository) DeleteWebhookEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, e := range r.s.events {
		if e.ProcessedAt.Before(cutoff) {
			delete(r.s.events, id)
			n++
		}
	}
	return n, nil
}

type UsageRepository struct{ s *Store }

func (r *UsageRepository) SumSince(_ context.Context, enterpriseID uuid.UUID, metric string, since time.Time) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.sumLocked(enterpriseID, metric, since), nil
}

// RecordWithinLimit holds the store lock across the check and the append.
func (r *UsageRepository) RecordWithinLimit(_ context.Context, rec *models.UsageRecord, since time.Time, limit int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current := r.sumLocked(rec.EnterpriseID, rec.Metric, since)
	if limit != repository.Unlimited && current+rec.Quantity > limit {
		return current, repository.ErrLimitExceeded
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	r.s.usage = append(r.s.usage, *rec)
	return current + rec.Quantity, nil
}

func (r *UsageRepository) sumLocked(enterpriseID uuid.UUID, metric string, since time.Time) int64 {
	var total int64
	for _, u := range r.s.usage {
		if u.EnterpriseID == enterpriseID && u.Metric == metric && !u.RecordedAt.Before(since) {
			total += u.Quantity
		}
	}
	return total
}
