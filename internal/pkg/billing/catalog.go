package billing

import "strings"

// Catalog is the immutable plan catalog injected at startup. Lookups are
// pure; an unknown identifier rejects the whole request upstream, never
// substitutes a default plan.
type Catalog struct {
	plans map[string]PlanDefinition
	order []string
}

func NewCatalog(plans ...PlanDefinition) Catalog {
	c := Catalog{plans: make(map[string]PlanDefinition, len(plans))}
	for _, p := range plans {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			continue
		}
		if _, exists := c.plans[id]; exists {
			continue
		}
		p.ID = id
		if p.Currency == "" {
			p.Currency = "BRL"
		}
		c.plans[id] = p
		c.order = append(c.order, id)
	}
	return c
}

func (c Catalog) Lookup(planID string) (PlanDefinition, bool) {
	p, ok := c.plans[strings.TrimSpace(planID)]
	return p, ok
}

// List returns the catalog in declaration order.
func (c Catalog) List() []PlanDefinition {
	out := make([]PlanDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}

// DefaultCatalog is the production plan set.
func DefaultCatalog() Catalog {
	return NewCatalog(
		PlanDefinition{
			ID:                "essencial",
			Title:             "Plano Essencial",
			AmountCents:       3900,
			MaxEvents:         1,
			MaxGuestsPerEvent: 150,
		},
		PlanDefinition{
			ID:                "profissional",
			Title:             "Plano Profissional",
			AmountCents:       7900,
			MaxEvents:         10,
			MaxGuestsPerEvent: 500,
			AISuggestions:     true,
		},
		PlanDefinition{
			ID:                "premium",
			Title:             "Plano Premium",
			AmountCents:       14900,
			MaxEvents:         0, // unlimited
			MaxGuestsPerEvent: 0, // unlimited
			AISuggestions:     true,
		},
	)
}
