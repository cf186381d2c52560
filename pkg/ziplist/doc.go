// Package ziplist filters and indexes zip lists.
//
// A zip list maps entity names (subject, session, acquisition, ...) to
// parallel lists of values. Position i across every entity describes one
// matched file, so zipping the lists back together yields the wildcard values
// of each file:
//
//	z := ziplist.MustNew(map[string][]string{
//		"subject": {"01", "01", "02"},
//		"acq":     {"98", "99", "98"},
//	})
//	sub01, err := ziplist.Filter(z, ziplist.Single("subject", "01"))
//
// Filters map an entity to a set of acceptable values. With WithRegex the
// values are patterns that must match the whole entity value. Filters on
// entities the zip list does not have are ignored.
package ziplist
