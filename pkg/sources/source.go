// Package sources collects candidate records for one event from a set of
// automated collectors. Collection runs on a bounded worker pool with a
// timeout per collector; a failing collector yields no candidates and never
// fails the pass.
package sources

import (
	"context"
	"slices"
	"sync"

	"github.com/agentstation/racesync/pkg/races"
)

// ID represents the identifier of a data source.
type ID string

// String returns the string representation of a source name.
func (id ID) String() string {
	return string(id)
}

// Known source identifiers.
const (
	OfficialWebsite      ID = "official_website"
	RegistrationPlatform ID = "registration_platform"
	PrimaryScrape        ID = "primary_scrape"
	WechatOfficial       ID = "wechat_official"
	MarathonMedia        ID = "marathon_media"
	AISearch             ID = "ai_search"
	Inference            ID = "inference"
	Manual               ID = "manual"
)

// IDs returns the known automated source identifiers.
func IDs() []ID {
	return []ID{
		OfficialWebsite,
		RegistrationPlatform,
		PrimaryScrape,
		WechatOfficial,
		MarathonMedia,
		AISearch,
	}
}

// IsKnown reports whether id is one of the known automated sources.
func (id ID) IsKnown() bool {
	return slices.Contains(IDs(), id)
}

// Collector produces one candidate record for an event.
type Collector interface {
	// ID identifies the source for weights and logs.
	ID() ID

	// Collect returns the source's view of the event. A nil candidate with
	// a nil error means the source knows nothing about it.
	Collect(ctx context.Context, eventID string) (*races.Candidate, error)
}

// CollectorFunc adapts a function to a Collector.
type CollectorFunc struct {
	Source ID
	Fn     func(ctx context.Context, eventID string) (*races.Candidate, error)
}

// ID implements Collector.
func (f CollectorFunc) ID() ID { return f.Source }

// Collect implements Collector.
func (f CollectorFunc) Collect(ctx context.Context, eventID string) (*races.Candidate, error) {
	return f.Fn(ctx, eventID)
}

// Set is a thread-safe, ordered registry of collectors.
type Set struct {
	mu         sync.RWMutex
	collectors []Collector
}

// NewSet creates a registry holding the given collectors.
func NewSet(collectors ...Collector) *Set {
	s := &Set{}
	for _, c := range collectors {
		s.Add(c)
	}
	return s
}

// Add registers a collector, replacing one with the same ID in place.
func (s *Set) Add(c Collector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.collectors {
		if existing.ID() == c.ID() {
			s.collectors[i] = c
			return
		}
	}
	s.collectors = append(s.collectors, c)
}

// Get returns a collector by ID.
func (s *Set) Get(id ID) (Collector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.collectors {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// Len returns the number of collectors.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collectors)
}

// List returns the collectors in registration order.
func (s *Set) List() []Collector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.collectors)
}
