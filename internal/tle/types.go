package tle

import (
	"slices"
	"strings"
	"time"

	"github.com/Forken21/botsat/internal/sgp4"
)

// ElementSet is one parsed two-line element set with its initialised
// SGP4 model. It is never modified after Load returns it.
type ElementSet struct {
	Name           string
	CatalogNumber  int
	Classification string
	IntlDesignator string
	Epoch          time.Time

	MeanMotionDot  float64 // rev/day^2, first derivative / 2 as published
	MeanMotionDDot float64 // rev/day^3, second derivative / 6 as published
	BStar          float64

	Inclination   float64 // degrees
	RAAN          float64 // degrees
	Eccentricity  float64
	ArgPerigee    float64 // degrees
	MeanAnomaly   float64 // degrees
	MeanMotion    float64 // rev/day
	ElementNumber int
	RevNumber     int

	Line1 string
	Line2 string

	model *sgp4.Model
}

// Model returns the SGP4 model built from the element set at load time.
func (es *ElementSet) Model() *sgp4.Model {
	return es.model
}

// Elements returns the mean elements in the form the propagator consumes.
func (es *ElementSet) Elements() sgp4.Elements {
	return sgp4.Elements{
		InclinationDeg: es.Inclination,
		RAANDeg:        es.RAAN,
		Eccentricity:   es.Eccentricity,
		ArgPerigeeDeg:  es.ArgPerigee,
		MeanAnomalyDeg: es.MeanAnomaly,
		MeanMotion:     es.MeanMotion,
		BStar:          es.BStar,
	}
}

// DefaultMaxAge is how long a catalog snapshot is served before it is refreshed.
const DefaultMaxAge = 2 * time.Hour

// Catalog is an immutable snapshot of one group's element sets, keyed by name.
type Catalog struct {
	Group       string
	Source      string
	FetchedAt   time.Time
	ParseErrors []*ParseError

	sets  map[string]*ElementSet
	names []string // sorted
}

func newCatalog(group, source string, fetchedAt time.Time, sets map[string]*ElementSet, perrs []*ParseError) *Catalog {
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	slices.Sort(names)
	return &Catalog{
		Group:       group,
		Source:      source,
		FetchedAt:   fetchedAt,
		ParseErrors: perrs,
		sets:        sets,
		names:       names,
	}
}

// Get returns the element set with the given name. An exact match is
// preferred; otherwise the first case-insensitive match in name order wins.
func (c *Catalog) Get(name string) (*ElementSet, error) {
	if es, ok := c.sets[name]; ok {
		return es, nil
	}
	for _, n := range c.names {
		if strings.EqualFold(n, name) {
			return c.sets[n], nil
		}
	}
	return nil, &NotFoundError{Group: c.Group, Name: name}
}

// Len returns the number of element sets.
func (c *Catalog) Len() int {
	return len(c.sets)
}

// Names returns the satellite names in sorted order.
func (c *Catalog) Names() []string {
	return slices.Clone(c.names)
}

// All returns every element set ordered by name.
func (c *Catalog) All() []*ElementSet {
	out := make([]*ElementSet, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.sets[n])
	}
	return out
}

// Match returns the element sets whose name contains substr, ignoring case,
// ordered by name. An empty substr matches everything.
func (c *Catalog) Match(substr string) []*ElementSet {
	if substr == "" {
		return c.All()
	}
	needle := strings.ToUpper(substr)
	var out []*ElementSet
	for _, n := range c.names {
		if strings.Contains(strings.ToUpper(n), needle) {
			out = append(out, c.sets[n])
		}
	}
	return out
}

// Filter returns a new snapshot holding only the sets Match(substr) selects.
func (c *Catalog) Filter(substr string) *Catalog {
	if substr == "" {
		return c
	}
	sets := make(map[string]*ElementSet)
	for _, es := range c.Match(substr) {
		sets[es.Name] = es
	}
	return newCatalog(c.Group, c.Source, c.FetchedAt, sets, c.ParseErrors)
}

// IsStale reports whether the snapshot is older than maxAge at now.
func (c *Catalog) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(c.FetchedAt) > maxAge
}

// Age returns how long ago the snapshot was fetched.
func (c *Catalog) Age(now time.Time) time.Duration {
	return now.Sub(c.FetchedAt)
}
