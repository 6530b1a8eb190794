// internal/domain/crop/template.go
package crop

import (
	"errors"
	"fmt"
	"sort"
)

var ErrEmptyCropName = errors.New("crop template has an empty name")
var ErrNoSteps = errors.New("crop template has no steps")
var ErrNegativeOffset = errors.New("crop template step has a negative day offset")
var ErrDuplicateCrop = errors.New("duplicate crop template")

// Step is one care action, due DayOffset days after the planting date.
type Step struct {
	DayOffset int
	Task      string
}

// Template is the care schedule for a single crop.
type Template struct {
	Name  string
	Steps []Step // insertion order is execution order
}

// Store is an immutable set of crop templates keyed by exact crop name.
// It is built once at start-up and shared read-only afterwards.
type Store struct {
	templates map[string]Template
	names     []string
}

// NewStore validates the templates and copies them into a new Store.
func NewStore(templates []Template) (*Store, error) {
	s := &Store{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		if t.Name == "" {
			return nil, ErrEmptyCropName
		}
		if len(t.Steps) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrNoSteps, t.Name)
		}
		if _, exists := s.templates[t.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCrop, t.Name)
		}
		steps := make([]Step, len(t.Steps))
		for i, step := range t.Steps {
			if step.DayOffset < 0 {
				return nil, fmt.Errorf("%w: %q step %d", ErrNegativeOffset, t.Name, i)
			}
			steps[i] = step
		}
		s.templates[t.Name] = Template{Name: t.Name, Steps: steps}
		s.names = append(s.names, t.Name)
	}
	sort.Strings(s.names)
	return s, nil
}

// Lookup returns the template for name. The match is case-sensitive.
// The returned steps are a copy and may be modified by the caller.
func (s *Store) Lookup(name string) (Template, bool) {
	t, ok := s.templates[name]
	if !ok {
		return Template{}, false
	}
	steps := make([]Step, len(t.Steps))
	copy(steps, t.Steps)
	return Template{Name: t.Name, Steps: steps}, true
}

// Names lists the known crops in alphabetical order.
func (s *Store) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

func (s *Store) Len() int {
	return len(s.templates)
}
