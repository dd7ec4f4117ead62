package sources

import (
	"context"
	"os"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/races"
)

// Static serves fixed candidates keyed by event ID.
type Static struct {
	id         ID
	candidates map[string]races.Candidate
	order      []string
}

// NewStatic creates a collector over in-memory candidates.
func NewStatic(id ID, candidates ...races.Candidate) *Static {
	s := &Static{id: id, candidates: make(map[string]races.Candidate)}
	for _, c := range candidates {
		if c.Source == "" {
			c.Source = id.String()
		}
		if _, ok := s.candidates[c.EventID]; !ok {
			s.order = append(s.order, c.EventID)
		}
		s.candidates[c.EventID] = c
	}
	return s
}

// ID implements Collector.
func (s *Static) ID() ID { return s.id }

// Collect implements Collector.
func (s *Static) Collect(ctx context.Context, eventID string) (*races.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := s.candidates[eventID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// EventIDs returns the events this collector knows, in load order.
func (s *Static) EventIDs() []string {
	return append([]string(nil), s.order...)
}

// File is a collector backed by a YAML or JSON document holding one
// candidate or a list of candidates. The file is read lazily on first use.
type File struct {
	id   ID
	path string

	once   sync.Once
	static *Static
	err    error
}

// NewFile creates a file collector. The source ID of candidates that do not
// name one defaults to id.
func NewFile(id ID, path string) *File {
	return &File{id: id, path: path}
}

// ID implements Collector.
func (f *File) ID() ID { return f.id }

// Path returns the backing file.
func (f *File) Path() string { return f.path }

// Collect implements Collector.
func (f *File) Collect(ctx context.Context, eventID string) (*races.Candidate, error) {
	if err := f.load(); err != nil {
		return nil, err
	}
	return f.static.Collect(ctx, eventID)
}

// EventIDs returns the events present in the file.
func (f *File) EventIDs() ([]string, error) {
	if err := f.load(); err != nil {
		return nil, err
	}
	return f.static.EventIDs(), nil
}

func (f *File) load() error {
	f.once.Do(func() {
		candidates, err := LoadCandidates(f.path)
		if err != nil {
			f.err = err
			return
		}
		f.static = NewStatic(f.id, candidates...)
	})
	return f.err
}

// LoadCandidates reads candidates from a YAML or JSON file.
func LoadCandidates(path string) ([]races.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return DecodeCandidates(data)
}

// DecodeCandidates parses one candidate or a list of candidates.
func DecodeCandidates(data []byte) ([]races.Candidate, error) {
	var list []races.Candidate
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var one races.Candidate
	if err := yaml.Unmarshal(data, &one); err != nil {
		return nil, errors.NewValidationError("candidates", nil, err.Error())
	}
	return []races.Candidate{one}, nil
}
