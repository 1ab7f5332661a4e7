// Package billing holds the static plan table that maps (plan, metric) to a limit.
package billing

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var plansYAML []byte

const (
	PlanFree         = "free"
	PlanStarter      = "starter"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

// Usage metrics
const (
	MetricContracts  = "contracts"
	MetricVendors    = "vendors"
	MetricUsers      = "users"
	MetricAIAnalysis = "ai_analysis"
	MetricStorageGB  = "storage_gb"
)

// Unlimited is the limit value for metrics without a cap.
const Unlimited int64 = -1

var Metrics = []string{MetricContracts, MetricVendors, MetricUsers, MetricAIAnalysis, MetricStorageGB}

type Plan struct {
	ID       string           `yaml:"-" json:"id"`
	Name     string           `yaml:"name" json:"name"`
	Rank     int              `yaml:"rank" json:"rank"`
	Limits   map[string]int64 `yaml:"limits" json:"limits"`
	Features []string         `yaml:"features" json:"features"`
}

func (p Plan) HasFeature(feature string) bool {
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}

type Catalog struct {
	plans map[string]Plan
}

// ParseCatalog reads a plan table. Every plan must declare every metric.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Plans map[string]Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse plan table: %w", err)
	}
	if _, ok := doc.Plans[PlanFree]; !ok {
		return nil, fmt.Errorf("plan table has no %q plan", PlanFree)
	}

	for id, plan := range doc.Plans {
		plan.ID = id
		for _, metric := range Metrics {
			limit, ok := plan.Limits[metric]
			if !ok {
				return nil, fmt.Errorf("plan %q has no limit for %q", id, metric)
			}
			if limit < Unlimited {
				return nil, fmt.Errorf("plan %q has invalid limit %d for %q", id, limit, metric)
			}
		}
		doc.Plans[id] = plan
	}

	return &Catalog{plans: doc.Plans}, nil
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the embedded plan table.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		catalog, err := ParseCatalog(plansYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = catalog
	})
	return defaultCatalog
}

// Plan falls back to the free plan for unknown ids.
func (c *Catalog) Plan(id string) Plan {
	if plan, ok := c.plans[id]; ok {
		return plan
	}
	return c.plans[PlanFree]
}

func (c *Catalog) IsPlan(id string) bool {
	_, ok := c.plans[id]
	return ok
}

// Limit reports the limit for metric under plan; ok is false for unknown metrics.
func (c *Catalog) Limit(plan, metric string) (limit int64, ok bool) {
	limit, ok = c.Plan(plan).Limits[metric]
	return limit, ok
}

// Plans returns every plan ordered by rank.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// PaidPlans excludes the free plan, which has no checkout.
func (c *Catalog) PaidPlans() []string {
	var out []string
	for _, p := range c.Plans() {
		if p.ID != PlanFree {
			out = append(out, p.ID)
		}
	}
	return out
}
