package harness

import (
	"fmt"
	"strings"
)

// Registry holds the ordered scenario list. Scenarios execute strictly in
// registration order; selection filters narrow the list but never reorder it.
type Registry struct {
	scenarios []Scenario
	byName    map[string]struct{}
}

// NewRegistry creates an empty scenario registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]struct{})}
}

// Add registers a scenario at the end of the list. Duplicate names are a
// programming error and rejected.
func (r *Registry) Add(s Scenario) error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return fmt.Errorf("scenario name must not be empty")
	}
	if s.Run == nil {
		return fmt.Errorf("scenario %q has no run function", name)
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("scenario %q already registered", name)
	}
	r.byName[name] = struct{}{}
	r.scenarios = append(r.scenarios, s)
	return nil
}

// MustAdd is Add but panics on error. Registration happens at startup from
// static code, so a failure is always a bug.
func (r *Registry) MustAdd(s Scenario) {
	if err := r.Add(s); err != nil {
		panic(err)
	}
}

// All returns the scenarios in registration order.
func (r *Registry) All() []Scenario {
	out := make([]Scenario, len(r.scenarios))
	copy(out, r.scenarios)
	return out
}

// Names returns the registered scenario names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scenarios))
	for _, s := range r.scenarios {
		names = append(names, s.Name)
	}
	return names
}

// Select returns the scenarios matching the given names, preserving
// registration order. An empty selection returns everything. Unknown names
// are an error so typos in TEST_LIST fail loudly instead of silently
// shrinking the suite.
func (r *Registry) Select(names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return r.All(), nil
	}

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, known := r.byName[n]; !known {
			return nil, fmt.Errorf("unknown scenario %q (known: %s)", n, strings.Join(r.Names(), ", "))
		}
		wanted[n] = struct{}{}
	}

	var out []Scenario
	for _, s := range r.scenarios {
		if _, ok := wanted[s.Name]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}
