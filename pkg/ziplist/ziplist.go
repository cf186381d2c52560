package ziplist

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrRagged is returned when the value lists of a zip list differ in length
var ErrRagged = errors.New("ziplist: entity value lists differ in length")

// ZipList is an immutable set of parallel entity value lists. The zero value
// is an empty zip list.
type ZipList struct {
	columns map[string][]string
	n       int
}

// New builds a zip list from entity columns. The columns are copied.
func New(columns map[string][]string) (ZipList, error) {
	z := ZipList{columns: make(map[string][]string, len(columns)), n: -1}
	for entity, values := range columns {
		if z.n >= 0 && len(values) != z.n {
			return ZipList{}, fmt.Errorf("%w: %s has %d values, expected %d", ErrRagged, entity, len(values), z.n)
		}
		z.n = len(values)
		z.columns[entity] = append([]string{}, values...)
	}
	if z.n < 0 {
		z.n = 0
	}
	return z, nil
}

// MustNew is like New but panics on ragged columns
func MustNew(columns map[string][]string) ZipList {
	z, err := New(columns)
	if err != nil {
		panic(err)
	}
	return z
}

// Len returns the number of entries
func (z ZipList) Len() int {
	return z.n
}

// IsEmpty reports whether the zip list has no entities
func (z ZipList) IsEmpty() bool {
	return len(z.columns) == 0
}

// Entities returns the entity names, sorted
func (z ZipList) Entities() []string {
	names := make([]string, 0, len(z.columns))
	for name := range z.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the zip list carries an entity
func (z ZipList) Has(entity string) bool {
	_, ok := z.columns[entity]
	return ok
}

// Values returns a copy of an entity's values, or nil if it is absent
func (z ZipList) Values(entity string) []string {
	values, ok := z.columns[entity]
	if !ok {
		return nil
	}
	return append([]string{}, values...)
}

// Row returns the entity values of entry i
func (z ZipList) Row(i int) map[string]string {
	if i < 0 || i >= z.n {
		return nil
	}
	row := make(map[string]string, len(z.columns))
	for entity, values := range z.columns {
		row[entity] = values[i]
	}
	return row
}

// Rows returns every entry as an entity -> value map
func (z ZipList) Rows() []map[string]string {
	rows := make([]map[string]string, z.n)
	for i := range rows {
		rows[i] = z.Row(i)
	}
	return rows
}

// Unique returns the distinct values of an entity, sorted
func (z ZipList) Unique(entity string) []string {
	seen := make(map[string]struct{})
	for _, v := range z.columns[entity] {
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Wildcards maps every entity to its brace-wrapped wildcard, e.g.
// "subject" -> "{subject}"
func (z ZipList) Wildcards() map[string]string {
	out := make(map[string]string, len(z.columns))
	for entity := range z.columns {
		out[entity] = "{" + entity + "}"
	}
	return out
}

// Map returns a copy of the columns
func (z ZipList) Map() map[string][]string {
	out := make(map[string][]string, len(z.columns))
	for entity, values := range z.columns {
		out[entity] = append([]string{}, values...)
	}
	return out
}

// Select returns a zip list holding only the given positions, in the order
// given. Out of range positions are skipped.
func (z ZipList) Select(indices []int) ZipList {
	out := ZipList{columns: make(map[string][]string, len(z.columns))}
	keep := make([]int, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < z.n {
			keep = append(keep, i)
		}
	}
	for entity, values := range z.columns {
		selected := make([]string, len(keep))
		for j, i := range keep {
			selected[j] = values[i]
		}
		out.columns[entity] = selected
	}
	out.n = len(keep)
	return out
}

// Equal reports whether both zip lists have the same entities with the same
// values at the same positions
func (z ZipList) Equal(other ZipList) bool {
	if len(z.columns) != len(other.columns) || z.n != other.n {
		return false
	}
	for entity, values := range z.columns {
		theirs, ok := other.columns[entity]
		if !ok || len(theirs) != len(values) {
			return false
		}
		for i := range values {
			if values[i] != theirs[i] {
				return false
			}
		}
	}
	return true
}

// SameEntries reports whether both zip lists describe the same set of
// entries, ignoring their order and duplicates
func (z ZipList) SameEntries(other ZipList) bool {
	if len(z.columns) != len(other.columns) {
		return false
	}
	entities := z.Entities()
	for _, entity := range entities {
		if !other.Has(entity) {
			return false
		}
	}
	return equalSets(z.entryKeys(entities), other.entryKeys(entities))
}

func (z ZipList) entryKeys(entities []string) map[string]struct{} {
	keys := make(map[string]struct{}, z.n)
	for i := 0; i < z.n; i++ {
		parts := make([]string, len(entities))
		for j, entity := range entities {
			parts[j] = z.columns[entity][i]
		}
		key, _ := json.Marshal(parts)
		keys[string(key)] = struct{}{}
	}
	return keys
}

func equalSets(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the zip list as a plain entity -> values object
func (z ZipList) MarshalJSON() ([]byte, error) {
	if z.columns == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(z.columns)
}

// UnmarshalJSON decodes an entity -> values object
func (z *ZipList) UnmarshalJSON(data []byte) error {
	var columns map[string][]string
	if err := json.Unmarshal(data, &columns); err != nil {
		return err
	}
	parsed, err := New(columns)
	if err != nil {
		return err
	}
	*z = parsed
	return nil
}

// String renders the zip list as JSON
func (z ZipList) String() string {
	data, err := z.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("ZipList(%d)", z.n)
	}
	return string(data)
}
