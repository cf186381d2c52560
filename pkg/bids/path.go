package bids

import (
	"fmt"
	"regexp"
)

// Tags maps BIDS entity names to the key used for them in file names
var Tags = map[string]string{
	"subject":        "sub",
	"session":        "ses",
	"task":           "task",
	"acquisition":    "acq",
	"ceagent":        "ce",
	"tracer":         "trc",
	"stain":          "stain",
	"reconstruction": "rec",
	"direction":      "dir",
	"run":            "run",
	"modality":       "mod",
	"echo":           "echo",
	"flip":           "flip",
	"inversion":      "inv",
	"mtransfer":      "mt",
	"part":           "part",
	"processing":     "proc",
	"hemisphere":     "hemi",
	"space":          "space",
	"split":          "split",
	"recording":      "recording",
	"chunk":          "chunk",
	"atlas":          "atlas",
	"resolution":     "res",
	"density":        "den",
	"label":          "label",
	"description":    "desc",
}

var (
	suffixValue   = regexp.MustCompile(`.*_([a-zA-Z0-9]+).*$`)
	suffixReplace = regexp.MustCompile(`(.*_)[a-zA-Z0-9]+(.*)$`)
	placeholder   = regexp.MustCompile(`\{([^{}]+)\}`)
)

// ParseBIDSPath replaces the values of the given entities in a BIDS path with
// wildcards, e.g. "sub-01/anat/sub-01_T1w.nii.gz" with wildcards
// [subject suffix] becomes "sub-{subject}/anat/sub-{subject}_{suffix}.nii.gz".
//
// Subject and session keep their entity name as wildcard; other entities use
// their file name key (acquisition -> "acq"). The returned map holds the
// value found for each wildcard, or "" when the entity was not in the path.
func ParseBIDSPath(path string, wildcards []string) (string, map[string]string) {
	values := make(map[string]string, len(wildcards))

	for _, wildcard := range wildcards {
		tag, ok := Tags[wildcard]
		if !ok {
			tag = wildcard
		}

		outName := tag
		if wildcard == "subject" || wildcard == "session" {
			outName = wildcard
		}

		var match []string
		if wildcard == "suffix" {
			match = suffixValue.FindStringSubmatch(path)
			path = suffixReplace.ReplaceAllString(path, "${1}{"+outName+"}${2}")
		} else {
			pattern := regexp.MustCompile(regexp.QuoteMeta(tag) + `-([a-zA-Z0-9]+)`)
			match = pattern.FindStringSubmatch(path)
			path = pattern.ReplaceAllLiteralString(path, tag+"-{"+outName+"}")
		}

		value := ""
		if len(match) > 1 {
			value = match[1]
		}
		values[outName] = value
	}

	return path, values
}

// Format substitutes {key} placeholders in template with values. A
// placeholder without a value is an error.
func Format(template string, values map[string]string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := values[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("bids: no value for wildcard %v in %s", missing, template)
	}
	return out, nil
}
