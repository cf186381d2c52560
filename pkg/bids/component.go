package bids

import (
	"fmt"

	"github.com/bidsflow/bidsflow/pkg/ziplist"
)

// Component maps the entities of one kind of input file to their matched
// values
type Component struct {
	// Name identifies the component, e.g. "t1w" or "bold"
	Name string `json:"name"`
	// Path is the wildcard template matching the component's files, e.g.
	// "sub-{subject}/anat/sub-{subject}_T1w.nii.gz"
	Path string `json:"path"`
	// ZipList holds one entry per matched file
	ZipList ziplist.ZipList `json:"zip_list"`
}

// NewComponent builds a component from entity columns
func NewComponent(name, path string, columns map[string][]string) (Component, error) {
	z, err := ziplist.New(columns)
	if err != nil {
		return Component{}, fmt.Errorf("component %s: %w", name, err)
	}
	return Component{Name: name, Path: path, ZipList: z}, nil
}

// InputLists returns the distinct values of each entity. The lists may
// differ in length.
func (c Component) InputLists() map[string][]string {
	out := make(map[string][]string)
	for _, entity := range c.ZipList.Entities() {
		out[entity] = c.ZipList.Unique(entity)
	}
	return out
}

// InputWildcards returns the brace-wrapped wildcard of each entity
func (c Component) InputWildcards() map[string]string {
	return c.ZipList.Wildcards()
}

// Len returns the number of matched files
func (c Component) Len() int {
	return c.ZipList.Len()
}

// Filter returns a copy of the component holding only the accepted entries
func (c Component) Filter(filters ziplist.Filters, opts ...ziplist.Option) (Component, error) {
	z, err := ziplist.Filter(c.ZipList, filters, opts...)
	if err != nil {
		return Component{}, fmt.Errorf("component %s: %w", c.Name, err)
	}
	return Component{Name: c.Name, Path: c.Path, ZipList: z}, nil
}

// Expand fills the path template with the values of every entry
func (c Component) Expand() ([]string, error) {
	paths := make([]string, 0, c.ZipList.Len())
	for i := 0; i < c.ZipList.Len(); i++ {
		p, err := Format(c.Path, c.ZipList.Row(i))
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", c.Name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Equal reports whether both components have the same name, path and set of
// entries. Entry order is ignored.
func (c Component) Equal(other Component) bool {
	if c.Name != other.Name || c.Path != other.Path {
		return false
	}
	return c.ZipList.SameEntries(other.ZipList)
}
