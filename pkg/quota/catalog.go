package quota

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is a closed, versioned table of plans. It is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	version string
	plans   map[string]Plan
}

// NewCatalog validates plans and builds a catalog.
func NewCatalog(version string, plans ...Plan) (*Catalog, error) {
	c := &Catalog{
		version: version,
		plans:   make(map[string]Plan, len(plans)),
	}
	for _, p := range plans {
		if strings.TrimSpace(p.ID) == "" {
			return nil, errors.Join(ErrInvalidCatalog, errors.New("plan with empty id"))
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("duplicate plan %q", p.ID))
		}
		if err := p.Limits.validate(); err != nil {
			return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("plan %q: %w", p.ID, err))
		}
		c.plans[p.ID] = p
	}
	return c, nil
}

type catalogFile struct {
	Version string `yaml:"version"`
	Plans   []Plan `yaml:"plans"`
}

// LoadCatalog parses a YAML catalog document. Unknown fields are rejected so
// that a typo in a limit name cannot silently produce an unlimited plan.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f catalogFile
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlan, err)
	}
	if f.Version == "" {
		return nil, errors.Join(ErrInvalidCatalog, errors.New("missing version"))
	}
	return NewCatalog(f.Version, f.Plans...)
}

// LoadCatalogFile reads a YAML catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlan, err)
	}
	return LoadCatalog(bytes.NewReader(data))
}

// Version returns the catalog version.
func (c *Catalog) Version() string { return c.version }

// Resolve implements PlanResolver.
func (c *Catalog) Resolve(_ context.Context, planID string) (Plan, error) {
	p, ok := c.plans[planID]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrPlanNotFound, planID)
	}
	return p, nil
}

// Plans returns all plans ordered by id.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Plan) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// MarshalYAML writes the catalog back in the format LoadCatalog reads.
func (c *Catalog) MarshalYAML() (any, error) {
	return catalogFile{Version: c.version, Plans: c.Plans()}, nil
}
