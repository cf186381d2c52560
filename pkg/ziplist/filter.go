package ziplist

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/dlclark/regexp2"
)

// ErrBadPattern is returned when a regex filter does not compile
var ErrBadPattern = errors.New("ziplist: invalid filter pattern")

// Filters maps an entity to its acceptable values, or patterns in regex mode
type Filters map[string][]string

// Single builds a filter accepting one value for one entity
func Single(entity, value string) Filters {
	return Filters{entity: {value}}
}

// FromMap builds filters from a single value per entity
func FromMap(values map[string]string) Filters {
	f := make(Filters, len(values))
	for entity, v := range values {
		f[entity] = []string{v}
	}
	return f
}

// Merge returns a new filter set holding the entries of every argument.
// Later arguments replace earlier entries for the same entity.
func Merge(filters ...Filters) Filters {
	out := make(Filters)
	for _, f := range filters {
		for entity, values := range f {
			out[entity] = append([]string{}, values...)
		}
	}
	return out
}

// ParseFilters turns entity=value pairs into filters. Repeating an entity
// accumulates its values.
func ParseFilters(pairs []string) (Filters, error) {
	f := make(Filters, len(pairs))
	for _, pair := range pairs {
		entity, value, ok := strings.Cut(pair, "=")
		if !ok || entity == "" {
			return nil, fmt.Errorf("expected entity=value, got %q", pair)
		}
		f[entity] = append(f[entity], value)
	}
	return f, nil
}

// Option configures filtering
type Option func(*filterOptions)

type filterOptions struct {
	regex bool
}

// WithRegex treats filter values as regular expressions that must match the
// whole entity value
func WithRegex() Option {
	return WithRegexMode(true)
}

// WithRegexMode enables or disables regex matching
func WithRegexMode(enabled bool) Option {
	return func(o *filterOptions) {
		o.regex = enabled
	}
}

type acceptFunc func(value string) (bool, error)

// FilterIndices returns the positions of the entries accepted by every
// filter, in ascending order
func FilterIndices(z ZipList, filters Filters, opts ...Option) ([]int, error) {
	keep, err := keepSet(z, filters, opts)
	if err != nil {
		return nil, err
	}
	indices := make([]int, 0, keep.GetCardinality())
	it := keep.Iterator()
	for it.HasNext() {
		indices = append(indices, int(it.Next()))
	}
	return indices, nil
}

// Filter returns a zip list holding only the entries accepted by every
// filter. Every entity is kept.
func Filter(z ZipList, filters Filters, opts ...Option) (ZipList, error) {
	indices, err := FilterIndices(z, filters, opts...)
	if err != nil {
		return ZipList{}, err
	}
	return z.Select(indices), nil
}

// keepSet intersects the accepted positions of each filter whose entity is
// present in the zip list, starting from every position
func keepSet(z ZipList, filters Filters, opts []Option) (*roaring.Bitmap, error) {
	o := filterOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	keep := roaring.New()
	if z.n == 0 {
		return keep, nil
	}
	keep.AddRange(0, uint64(z.n))

	entities := make([]string, 0, len(filters))
	for entity := range filters {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	for _, entity := range entities {
		values, ok := z.columns[entity]
		if !ok {
			continue
		}
		accept, err := acceptor(filters[entity], o.regex)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", entity, err)
		}
		matched := roaring.New()
		for i, v := range values {
			ok, err := accept(v)
			if err != nil {
				return nil, fmt.Errorf("filter %s: %w", entity, err)
			}
			if ok {
				matched.Add(uint32(i))
			}
		}
		keep.And(matched)
		if keep.IsEmpty() {
			break
		}
	}
	return keep, nil
}

func acceptor(values []string, regex bool) (acceptFunc, error) {
	if !regex {
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		return func(value string) (bool, error) {
			_, ok := set[value]
			return ok, nil
		}, nil
	}

	patterns := make([]*regexp2.Regexp, 0, len(values))
	for _, v := range values {
		re, err := compileAnchored(v)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	return func(value string) (bool, error) {
		for _, re := range patterns {
			ok, err := re.MatchString(value)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}, nil
}

// compileAnchored compiles a pattern that must match the whole value
func compileAnchored(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(`\A(?:`+pattern+`)\z`, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadPattern, pattern, err)
	}
	return re, nil
}
