package pricing

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var plansYAML []byte

// Plan holds the unit prices and free allowances of a Neon plan.
type Plan struct {
	Name               string
	ComputeCUHour      decimal.Decimal
	StorageGBMonth     decimal.Decimal
	EgressGB           decimal.Decimal
	FreeComputeCUHour  decimal.Decimal
	FreeStorageGBMonth decimal.Decimal
	FreeEgressGB       decimal.Decimal
}

type planEntry struct {
	Plan               string  `yaml:"plan"`
	ComputeCUHour      float64 `yaml:"compute_cu_hour"`
	StorageGBMonth     float64 `yaml:"storage_gb_month"`
	EgressGB           float64 `yaml:"egress_gb"`
	FreeComputeCUHour  float64 `yaml:"free_compute_cu_hour"`
	FreeStorageGBMonth float64 `yaml:"free_storage_gb_month"`
	FreeEgressGB       float64 `yaml:"free_egress_gb"`
}

type catalogFile struct {
	Updated string      `yaml:"updated"`
	Default string      `yaml:"default"`
	Plans   []planEntry `yaml:"plans"`
}

// Catalog is an immutable set of plans keyed by lower-case name.
type Catalog struct {
	updated     string
	defaultPlan string
	plans       map[string]Plan
}

// builtin is parsed once at startup and never mutated.
var builtin = mustParse(plansYAML)

// LoadCatalogFromBytes parses YAML pricing data from raw bytes.
func LoadCatalogFromBytes(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse pricing data: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("pricing data: no plans defined")
	}

	c := &Catalog{
		updated:     f.Updated,
		defaultPlan: strings.ToLower(f.Default),
		plans:       make(map[string]Plan, len(f.Plans)),
	}
	for _, e := range f.Plans {
		name := strings.ToLower(strings.TrimSpace(e.Plan))
		if name == "" {
			return nil, fmt.Errorf("pricing data: plan with empty name")
		}
		if _, dup := c.plans[name]; dup {
			return nil, fmt.Errorf("pricing data: duplicate plan %q", name)
		}
		c.plans[name] = Plan{
			Name:               name,
			ComputeCUHour:      decimal.NewFromFloat(e.ComputeCUHour),
			StorageGBMonth:     decimal.NewFromFloat(e.StorageGBMonth),
			EgressGB:           decimal.NewFromFloat(e.EgressGB),
			FreeComputeCUHour:  decimal.NewFromFloat(e.FreeComputeCUHour),
			FreeStorageGBMonth: decimal.NewFromFloat(e.FreeStorageGBMonth),
			FreeEgressGB:       decimal.NewFromFloat(e.FreeEgressGB),
		}
	}

	if _, ok := c.plans[c.defaultPlan]; !ok {
		return nil, fmt.Errorf("pricing data: default plan %q not defined", f.Default)
	}
	return c, nil
}

func mustParse(data []byte) *Catalog {
	c, err := LoadCatalogFromBytes(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns a plan by name, case-insensitively.
func (c *Catalog) Lookup(name string) (Plan, bool) {
	p, ok := c.plans[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Default returns the fallback plan.
func (c *Catalog) Default() Plan {
	return c.plans[c.defaultPlan]
}

// Updated returns the date the prices were last reviewed.
func (c *Catalog) Updated() string { return c.updated }

// Plans returns all plans sorted by name.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve picks the plan to price with: the override when set, then the
// plan reported by the API, then the catalog default. The boolean is false
// when a fallback to the default was needed.
func (c *Catalog) Resolve(override, reported string) (Plan, bool) {
	if override != "" {
		if p, ok := c.Lookup(override); ok {
			return p, true
		}
	}
	if p, ok := c.Lookup(reported); ok {
		return p, true
	}
	return c.Default(), false
}

// Builtin returns the embedded catalog.
func Builtin() *Catalog { return builtin }
