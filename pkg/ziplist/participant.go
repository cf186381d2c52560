package ziplist

import (
	"errors"
	"strings"

	"github.com/dlclark/regexp2"
)

// ErrConflictingFilters is returned when both inclusion and exclusion lists
// are given
var ErrConflictingFilters = errors.New("ziplist: cannot define both participant_label and exclude_participant_label at the same time")

// ParticipantFilter turns participant inclusion or exclusion lists into
// filter values for the subject entity. Inclusion yields the literal labels.
// Exclusion yields a single pattern accepting every label except the
// excluded ones, so regex reports that the values must be matched with
// WithRegex. A nil list means unset; setting both is an error.
func ParticipantFilter(include, exclude []string) (values []string, regex bool, err error) {
	if include != nil && exclude != nil {
		return nil, false, ErrConflictingFilters
	}
	if include != nil {
		return append([]string{}, include...), false, nil
	}
	if exclude != nil {
		return []string{ExcludePattern(exclude...)}, true, nil
	}
	return nil, false, nil
}

// ExcludePattern builds a pattern matching anything but the given labels,
// of the form ^((?!(a|b)$).*)$
func ExcludePattern(labels ...string) string {
	escaped := make([]string, len(labels))
	for i, label := range labels {
		escaped[i] = regexp2.Escape(label)
	}
	return "^((?!(" + strings.Join(escaped, "|") + ")$).*)$"
}
