package bids

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bidsflow/bidsflow/pkg/ziplist"
)

// WildcardConstraint is the pattern every BIDS entity value must match
const WildcardConstraint = "[a-zA-Z0-9]+"

// Dataset is a read-only collection of components keyed by name
type Dataset struct {
	components map[string]Component
}

// NewDataset builds a dataset. Component names must be unique.
func NewDataset(components ...Component) (*Dataset, error) {
	d := &Dataset{components: make(map[string]Component, len(components))}
	for _, c := range components {
		if c.Name == "" {
			return nil, fmt.Errorf("bids: component name is required")
		}
		if _, exists := d.components[c.Name]; exists {
			return nil, fmt.Errorf("bids: duplicate component %s", c.Name)
		}
		d.components[c.Name] = c
	}
	return d, nil
}

// Component returns a component by name
func (d *Dataset) Component(name string) (Component, bool) {
	c, ok := d.components[name]
	return c, ok
}

// Names returns the component names, sorted
func (d *Dataset) Names() []string {
	names := make([]string, 0, len(d.components))
	for name := range d.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Components returns the components sorted by name
func (d *Dataset) Components() []Component {
	out := make([]Component, 0, len(d.components))
	for _, name := range d.Names() {
		out = append(out, d.components[name])
	}
	return out
}

// Len returns the number of components
func (d *Dataset) Len() int {
	return len(d.components)
}

// InputPaths maps each component to its path template
func (d *Dataset) InputPaths() map[string]string {
	out := make(map[string]string, len(d.components))
	for name, c := range d.components {
		out[name] = c.Path
	}
	return out
}

// InputZipLists maps each component to its zip list
func (d *Dataset) InputZipLists() map[string]ziplist.ZipList {
	out := make(map[string]ziplist.ZipList, len(d.components))
	for name, c := range d.components {
		out[name] = c.ZipList
	}
	return out
}

// InputLists maps each component to its distinct entity values
func (d *Dataset) InputLists() map[string]map[string][]string {
	out := make(map[string]map[string][]string, len(d.components))
	for name, c := range d.components {
		out[name] = c.InputLists()
	}
	return out
}

// InputWildcards maps each component to its entity wildcards
func (d *Dataset) InputWildcards() map[string]map[string]string {
	out := make(map[string]map[string]string, len(d.components))
	for name, c := range d.components {
		out[name] = c.InputWildcards()
	}
	return out
}

// Subjects returns every subject found in any component, sorted
func (d *Dataset) Subjects() []string {
	return d.unique("subject")
}

// Sessions returns every session found in any component, sorted
func (d *Dataset) Sessions() []string {
	return d.unique("session")
}

func (d *Dataset) unique(entity string) []string {
	seen := make(map[string]struct{})
	for _, c := range d.components {
		for _, v := range c.ZipList.Unique(entity) {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// SubjWildcards returns the wildcards identifying a subject, plus the
// session when the dataset has sessions
func (d *Dataset) SubjWildcards() map[string]string {
	if len(d.Sessions()) == 0 {
		return map[string]string{"subject": "{subject}"}
	}
	return map[string]string{
		"subject": "{subject}",
		"session": "{session}",
	}
}

// WildcardConstraints maps every entity of every component to the BIDS
// value constraint
func (d *Dataset) WildcardConstraints() map[string]string {
	out := make(map[string]string)
	for _, c := range d.components {
		for _, entity := range c.ZipList.Entities() {
			out[entity] = WildcardConstraint
		}
	}
	return out
}

// Equal reports whether both datasets hold equal components
func (d *Dataset) Equal(other *Dataset) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.components) != len(other.components) {
		return false
	}
	for name, c := range d.components {
		theirs, ok := other.components[name]
		if !ok || !c.Equal(theirs) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the dataset as a list of components
func (d *Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Components())
}

// UnmarshalJSON decodes a list of components
func (d *Dataset) UnmarshalJSON(data []byte) error {
	var components []Component
	if err := json.Unmarshal(data, &components); err != nil {
		return err
	}
	parsed, err := NewDataset(components...)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}
