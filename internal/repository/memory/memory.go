// Package memory is an in-memory implementation of the repository
// capabilities. It is safe for concurrent use and backs the service and
// handler tests as well as local runs without postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

// Store holds every table. Rows are stored by value and copied on the way in
// and out so callers never alias stored state.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	enterprises   map[uuid.UUID]models.Enterprise
	users         map[uuid.UUID]models.User
	contracts     map[uuid.UUID]models.Contract
	vendors       map[uuid.UUID]models.Vendor
	customers     map[uuid.UUID]models.StripeCustomer
	subscriptions map[uuid.UUID]models.Subscription
	invoices      map[uuid.UUID]models.Invoice
	usage         []models.UsageRecord
	events        map[uuid.UUID]models.WebhookEvent
	notifications map[uuid.UUID]models.Notification
	templates     map[uuid.UUID]models.ContractTemplate
	versions      []models.TemplateVersion
	auditLogs     map[uuid.UUID]models.AuditLog

	// insertion order, used to break created_at ties
	seq   int64
	order map[uuid.UUID]int64
}

func New() *Store {
	return &Store{
		enterprises:   make(map[uuid.UUID]models.Enterprise),
		users:         make(map[uuid.UUID]models.User),
		contracts:     make(map[uuid.UUID]models.Contract),
		vendors:       make(map[uuid.UUID]models.Vendor),
		customers:     make(map[uuid.UUID]models.StripeCustomer),
		subscriptions: make(map[uuid.UUID]models.Subscription),
		invoices:      make(map[uuid.UUID]models.Invoice),
		events:        make(map[uuid.UUID]models.WebhookEvent),
		notifications: make(map[uuid.UUID]models.Notification),
		templates:     make(map[uuid.UUID]models.ContractTemplate),
		auditLogs:     make(map[uuid.UUID]models.AuditLog),
		order:         make(map[uuid.UUID]int64),
	}
}

// NewRepositories returns a bundle backed by a fresh store.
func NewRepositories() *repository.Repositories {
	return New().Repositories()
}

func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Enterprises:   &EnterpriseRepository{s: s},
		Users:         &UserRepository{s: s},
		Contracts:     &ContractRepository{s: s},
		Vendors:       &VendorRepository{s: s},
		Billing:       &BillingRepository{s: s},
		Usage:         &UsageRepository{s: s},
		Notifications: &NotificationRepository{s: s},
		Templates:     &TemplateRepository{s: s},
		AuditLogs:     &AuditLogRepository{s: s},
	}
}

// stampLocked assigns an id and timestamps to a row about to be inserted.
func (s *Store) stampLocked(base *models.BaseModel) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	now := time.Now().UTC()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
	s.seq++
	s.order[base.ID] = s.seq
}

// newerFirst orders rows by created_at descending, later inserts first on ties.
func (s *Store) newerFirst(a, b models.BaseModel) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return s.order[a.ID] > s.order[b.ID]
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, repository.ErrNotFound)
}

func window[T any](rows []T, page repository.Page) []T {
	if page.Limit <= 0 {
		return rows
	}
	start := page.Offset()
	if start >= len(rows) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}

type EnterpriseRepository struct{ s *Store }

func (r *EnterpriseRepository) Create(_ context.Context, e *models.Enterprise) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.stampLocked(&e.BaseModel)
	r.s.enterprises[e.ID] = *e
	return nil
}

func (r *EnterpriseRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Enterprise, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.enterprises[id]
	if !ok {
		return nil, notFound("enterprise")
	}
	return &e, nil
}

func (r *EnterpriseRepository) List(_ context.Context) ([]models.Enterprise, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]models.Enterprise, 0, len(r.s.enterprises))
	for _, e := range r.s.enterprises {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return r.s.order[out[i].ID] < r.s.order[out[j].ID] })
	return out, nil
}

type UserRepository struct{ s *Store }

func (r *UserRepository) Create(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if u.Status == "" {
		u.Status = models.UserStatusActive
	}
	r.s.stampLocked(&u.BaseModel)
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, enterpriseID, id uuid.UUID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok || u.EnterpriseID != enterpriseID {
		return nil, notFound("user")
	}
	return &u, nil
}

func (r *UserRepository) ListByRoles(_ context.Context, enterpriseID uuid.UUID, roles ...models.UserRole) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.User
	for _, u := range r.s.users {
		if u.EnterpriseID != enterpriseID || u.Status != models.UserStatusActive {
			continue
		}
		if len(roles) > 0 && !hasRole(roles, u.Role) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return r.s.order[out[i].ID] < r.s.order[out[j].ID] })
	return out, nil
}

func hasRole(roles []models.UserRole, role models.UserRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

type AuditLogRepository struct{ s *Store }

func (r *AuditLogRepository) Create(_ context.Context, entry *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.stampLocked(&entry.BaseModel)
	r.s.auditLogs[entry.ID] = *entry
	return nil
}

func (r *AuditLogRepository) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, entry := range r.s.auditLogs {
		if entry.CreatedAt.Before(cutoff) {
			delete(r.s.auditLogs, id)
			n++
		}
	}
	return n, nil
}
