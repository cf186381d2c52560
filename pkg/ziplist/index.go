package ziplist

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMissingWildcard is returned when a subject wildcard has no value in the
// wildcards being resolved
var ErrMissingWildcard = errors.New("ziplist: wildcard missing from query")

// MatchKind classifies the outcome of an index lookup
type MatchKind int

const (
	// NoMatch means no entry matched
	NoMatch MatchKind = iota
	// SingleMatch means exactly one entry matched
	SingleMatch
	// MultipleMatches means the query was ambiguous
	MultipleMatches
)

// String returns the kind name
func (k MatchKind) String() string {
	switch k {
	case NoMatch:
		return "none"
	case SingleMatch:
		return "single"
	case MultipleMatches:
		return "multiple"
	default:
		return fmt.Sprintf("MatchKind(%d)", int(k))
	}
}

// Match is the result of resolving wildcards to a position
type Match struct {
	indices []int
}

// Kind reports whether the lookup matched nothing, one entry or several
func (m Match) Kind() MatchKind {
	switch len(m.indices) {
	case 0:
		return NoMatch
	case 1:
		return SingleMatch
	default:
		return MultipleMatches
	}
}

// Index returns the matched position when exactly one entry matched
func (m Match) Index() (int, bool) {
	if len(m.indices) != 1 {
		return 0, false
	}
	return m.indices[0], true
}

// Indices returns every matched position
func (m Match) Indices() []int {
	return append([]int(nil), m.indices...)
}

// String renders the match for logs and CLI output
func (m Match) String() string {
	switch m.Kind() {
	case NoMatch:
		return "no match"
	case SingleMatch:
		return fmt.Sprintf("%d", m.indices[0])
	default:
		return fmt.Sprintf("%v", m.indices)
	}
}

// Index resolves the position of one entry within its subject partition.
//
// The zip list is first narrowed to the entries sharing the subject (and
// session) of wildcards, using only the keys of subjWildcards. The returned
// position is relative to that partition, found by filtering it again with
// the full wildcards.
func Index(z ZipList, wildcards, subjWildcards map[string]string) (Match, error) {
	keys := make([]string, 0, len(subjWildcards))
	for key := range subjWildcards {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	subject := make(map[string]string, len(keys))
	for _, key := range keys {
		v, ok := wildcards[key]
		if !ok {
			return Match{}, fmt.Errorf("%w: %s", ErrMissingWildcard, key)
		}
		subject[key] = v
	}

	partition, err := Filter(z, FromMap(subject))
	if err != nil {
		return Match{}, err
	}
	indices, err := FilterIndices(partition, FromMap(wildcards))
	if err != nil {
		return Match{}, err
	}
	return Match{indices: indices}, nil
}
