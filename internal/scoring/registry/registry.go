// Package registry holds the scoring schema: the Pillar → Category → Factor tree
// and the inclusive upper bound of every factor. A Registry is built once from a
// versioned artifact and never mutated afterwards, so a single value can be shared
// by any number of goroutines without synchronization.
package registry

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// FactorConfig is a leaf scoring rule. Admissible values are [0, Max].
type FactorConfig struct {
	Key   string
	Label string
	Max   float64
}

// Category groups factors within a pillar.
type Category struct {
	ID    string
	Label string

	factors map[string]FactorConfig
	order   []string
}

// FindFactor looks up a factor by key.
func (c Category) FindFactor(key string) (FactorConfig, bool) {
	f, ok := c.factors[key]
	return f, ok
}

// Factors returns the category's factors in artifact order.
func (c Category) Factors() []FactorConfig {
	out := make([]FactorConfig, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.factors[key])
	}
	return out
}

// MaxTotal is the sum of every factor bound in the category.
func (c Category) MaxTotal() float64 {
	var total float64
	for _, f := range c.factors {
		total += f.Max
	}
	return total
}

// Pillar is a top-level scoring dimension.
type Pillar struct {
	ID    string
	Label string

	categories []Category
}

// FindCategory looks up a category within the pillar.
func (p Pillar) FindCategory(id string) (Category, bool) {
	for _, c := range p.categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// Categories returns the pillar's categories in artifact order.
func (p Pillar) Categories() []Category {
	return append([]Category(nil), p.categories...)
}

// Registry is the immutable scoring schema.
type Registry struct {
	version string
	pillars []Pillar
	index   map[string]int
}

// Version identifies the artifact the registry was built from.
func (r *Registry) Version() string {
	return r.version
}

// FindPillar looks up a pillar by id.
func (r *Registry) FindPillar(id string) (Pillar, bool) {
	i, ok := r.index[id]
	if !ok {
		return Pillar{}, false
	}
	return r.pillars[i], true
}

// FindCategory looks up a category within pillar.
func (r *Registry) FindCategory(pillar Pillar, id string) (Category, bool) {
	return pillar.FindCategory(id)
}

// FindFactor looks up a factor within category.
func (r *Registry) FindFactor(category Category, key string) (FactorConfig, bool) {
	return category.FindFactor(key)
}

// Pillars returns every pillar in artifact order.
func (r *Registry) Pillars() []Pillar {
	return append([]Pillar(nil), r.pillars...)
}

// ErrInvalidDefinition is returned when an artifact fails structural checks.
var ErrInvalidDefinition = errors.New("invalid registry definition")

// New validates def and builds a Registry from it.
func New(def Definition) (*Registry, error) {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(def.Version) == "" {
		fail("version is required")
	}
	if len(def.Pillars) == 0 {
		fail("at least one pillar is required")
	}

	r := &Registry{
		version: strings.TrimSpace(def.Version),
		index:   make(map[string]int, len(def.Pillars)),
	}
	for _, pd := range def.Pillars {
		if pd.ID == "" {
			fail("pillar with empty id")
			continue
		}
		if _, dup := r.index[pd.ID]; dup {
			fail("duplicate pillar %q", pd.ID)
			continue
		}
		p := Pillar{ID: pd.ID, Label: labelOr(pd.Label, pd.ID)}
		seenCategories := make(map[string]struct{}, len(pd.Categories))
		for _, cd := range pd.Categories {
			if cd.ID == "" {
				fail("pillar %q: category with empty id", pd.ID)
				continue
			}
			if _, dup := seenCategories[cd.ID]; dup {
				fail("pillar %q: duplicate category %q", pd.ID, cd.ID)
				continue
			}
			seenCategories[cd.ID] = struct{}{}

			c := Category{
				ID:      cd.ID,
				Label:   labelOr(cd.Label, cd.ID),
				factors: make(map[string]FactorConfig, len(cd.Factors)),
			}
			for _, fd := range cd.Factors {
				switch {
				case fd.Key == "":
					fail("%s.%s: factor with empty key", pd.ID, cd.ID)
					continue
				case math.IsNaN(fd.Max) || math.IsInf(fd.Max, 0) || fd.Max <= 0:
					fail("%s.%s.%s: max must be a positive finite number", pd.ID, cd.ID, fd.Key)
					continue
				}
				if _, dup := c.factors[fd.Key]; dup {
					fail("%s.%s: duplicate factor %q", pd.ID, cd.ID, fd.Key)
					continue
				}
				c.factors[fd.Key] = FactorConfig{Key: fd.Key, Label: labelOr(fd.Label, fd.Key), Max: fd.Max}
				c.order = append(c.order, fd.Key)
			}
			p.categories = append(p.categories, c)
		}
		r.index[pd.ID] = len(r.pillars)
		r.pillars = append(r.pillars, p)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(problems, "; "))
	}
	return r, nil
}

func labelOr(label, fallback string) string {
	if l := strings.TrimSpace(label); l != "" {
		return l
	}
	return fallback
}
