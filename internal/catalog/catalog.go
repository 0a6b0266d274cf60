// Package catalog provides read-only lookup over the benchmark case and
// skill reference tables loaded from config.
package catalog

import "github.com/grayline/skillbench/internal/config"

type Catalog struct {
	cases       map[string]config.BenchmarkCase
	skillByID   map[string]config.Skill
	skillBySlug map[string]config.Skill
}

func New(cases []config.BenchmarkCase, skills []config.Skill) *Catalog {
	c := &Catalog{
		cases:       make(map[string]config.BenchmarkCase, len(cases)),
		skillByID:   make(map[string]config.Skill, len(skills)),
		skillBySlug: make(map[string]config.Skill, len(skills)),
	}
	for _, bc := range cases {
		c.cases[bc.ID] = bc
	}
	for _, s := range skills {
		c.skillByID[s.ID] = s
		if s.Slug != "" {
			c.skillBySlug[s.Slug] = s
		}
	}
	return c
}

// Case looks up a benchmark case by id.
func (c *Catalog) Case(id string) (config.BenchmarkCase, bool) {
	bc, ok := c.cases[id]
	return bc, ok
}

// ResolveSkill normalizes a caller-supplied skill reference to its canonical
// skill id, trying id first, then human slug. Returns false when neither
// matches.
func (c *Catalog) ResolveSkill(idOrSlug string) (string, bool) {
	if s, ok := c.skillByID[idOrSlug]; ok {
		return s.ID, true
	}
	if s, ok := c.skillBySlug[idOrSlug]; ok {
		return s.ID, true
	}
	return "", false
}
