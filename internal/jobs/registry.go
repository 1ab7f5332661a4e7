// Package jobs schedules the periodic maintenance tasks.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pactwise/pactwise-backend/internal/metrics"
	"github.com/pactwise/pactwise-backend/internal/services"
)

// Job names
const (
	WebhookEventCleanup  = "webhook-event-cleanup"
	VendorScores         = "vendor-scores"
	ContractExpiry       = "contract-expiry"
	AuditLogCleanup      = "audit-log-cleanup"
	NotificationArchival = "notification-archival"
)

// Func runs one job and reports how many rows it touched.
type Func func(ctx context.Context) (int64, error)

type Job struct {
	Name        string `json:"name"`
	Schedule    string `json:"schedule"`
	Description string `json:"description"`
	run         Func
}

// Registry holds jobs by name in registration order.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]Job
	order []string
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

func (r *Registry) Register(name, schedule, description string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[name]; !exists {
		r.order = append(r.order, name)
	}
	r.jobs[name] = Job{Name: name, Schedule: schedule, Description: description, run: fn}
}

func (r *Registry) Get(name string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[name]
	return job, ok
}

func (r *Registry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.jobs[name])
	}
	return out
}

// Names returns the registered job names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Run executes a job by name, logging and counting the outcome.
func (r *Registry) Run(ctx context.Context, name string) (int64, error) {
	job, ok := r.Get(name)
	if !ok {
		return 0, fmt.Errorf("unknown job %q", name)
	}

	log := logrus.WithField("job", name)
	start := time.Now()
	affected, err := job.run(ctx)
	duration := time.Since(start)
	metrics.RecordJobRun(name, duration, err == nil)

	if err != nil {
		log.WithError(err).WithField("duration", duration).Error("Job failed")
		return affected, fmt.Errorf("job %s: %w", name, err)
	}
	log.WithFields(logrus.Fields{
		"affected": affected,
		"duration": duration,
	}).Info("Job completed")
	return affected, nil
}

// MaintenanceRegistry registers the housekeeping tasks on their fixed schedule.
func MaintenanceRegistry(m *services.MaintenanceService) *Registry {
	r := NewRegistry()
	r.Register(WebhookEventCleanup, "@hourly", "Delete processed webhook ledger rows past retention", m.CleanupWebhookEvents)
	r.Register(VendorScores, "0 2 * * *", "Recompute vendor contract totals and risk levels", m.RefreshVendorScores)
	r.Register(ContractExpiry, "0 6 * * *", "Expire ended contracts and notify their creators", m.ExpireContracts)
	r.Register(AuditLogCleanup, "@weekly", "Delete audit logs past retention", m.CleanupAuditLogs)
	r.Register(NotificationArchival, "@monthly", "Archive old read or dismissed notifications", m.ArchiveNotifications)
	return r
}
