package catalog

import (
	"fmt"
	"regexp"
	"sort"

	"devt.de/krotik/common/datautil"

	"github.com/alfazet/musing"
)

// Filter is one conjunctive predicate evaluated over a song's tags.
// "regex" is the only supported kind: it matches when the named tag
// exists on the record and its value partially matches Regex.
type Filter struct {
	Kind  string `json:"kind"`
	Tag   string `json:"tag"`
	Regex string `json:"regex"`
}

// Comparator orders select results by a single tag, ascending or
// descending; a list of comparators is applied lexicographically.
type Comparator struct {
	Tag   string `json:"tag"`
	Order string `json:"order"`
}

// Group is one output group of a select query: the group_by tag values
// (empty when group_by was empty) plus the projected data rows.
type Group struct {
	Keys map[string]string
	Data [][]string
}

// regexCache memoizes compiled filter regexes keyed by pattern, the same
// role devt.de/krotik/common/datautil.MapCache plays for the teacher's
// authenticated-peer cache - short TTL, so a client hammering the same
// filter across repeated `select` calls doesn't recompile it every time.
var regexCache = datautil.NewMapCache(256, 300)

func compileRegex(pattern string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Get(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", musing.ErrInvalidRegex, err)
	}
	regexCache.Put(pattern, re)
	return re, nil
}

// Select evaluates a conjunction of filters over the catalog, projects
// tags (plus path) for each matching record, groups by groupBy, and sorts
// within (and across) groups by comparators. See spec.md §4.2 for the
// full semantics.
func (c *Catalog) Select(tags []string, filters []Filter, groupBy []string, comparators []Comparator) ([]Group, error) {
	for _, t := range tags {
		if !musing.IsSupportedTag(t) {
			return nil, fmt.Errorf("%w: %s", musing.ErrUnknownTag, t)
		}
	}
	for _, g := range groupBy {
		if !musing.IsSupportedTag(g) {
			return nil, fmt.Errorf("%w: %s", musing.ErrUnknownTag, g)
		}
	}
	for _, cmp := range comparators {
		if !musing.IsSupportedTag(cmp.Tag) {
			return nil, fmt.Errorf("%w: %s", musing.ErrUnknownTag, cmp.Tag)
		}
		if cmp.Order != "ascending" && cmp.Order != "descending" {
			return nil, fmt.Errorf("%w: invalid order %q", musing.ErrArgOutOfRange, cmp.Order)
		}
	}

	compiled := make([]*regexp.Regexp, len(filters))
	for i, f := range filters {
		if f.Kind == "" || f.Tag == "" || f.Regex == "" {
			return nil, fmt.Errorf("%w: malformed filter", musing.ErrMalformedRequest)
		}
		if f.Kind != "regex" {
			return nil, fmt.Errorf("%w: unknown filter kind %q", musing.ErrMalformedRequest, f.Kind)
		}
		if !musing.IsSupportedTag(f.Tag) {
			return nil, fmt.Errorf("%w: %s", musing.ErrUnknownTag, f.Tag)
		}
		re, err := compileRegex(f.Regex)
		if err != nil {
			return nil, err
		}
		compiled[i] = re
	}

	snap := c.snapshot()
	matched := make([]*Song, 0, len(snap.byPath))
	for _, song := range snap.byPath {
		if matchesAll(song, filters, compiled) {
			matched = append(matched, song)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return lessByComparators(matched[i], matched[j], comparators)
	})

	order := make([]string, 0)
	groups := make(map[string]*Group)

	for _, song := range matched {
		key, keyValues := groupKey(song, groupBy)

		group, ok := groups[key]
		if !ok {
			group = &Group{Keys: keyValues, Data: nil}
			groups[key] = group
			order = append(order, key)
		}

		row := make([]string, 0, len(tags)+1)
		for _, t := range tags {
			row = append(row, song.Tags[t])
		}
		row = append(row, song.Path)
		group.Data = append(group.Data, row)
	}

	result := make([]Group, len(order))
	for i, key := range order {
		result[i] = *groups[key]
	}

	return result, nil
}

func matchesAll(song *Song, filters []Filter, compiled []*regexp.Regexp) bool {
	for i, f := range filters {
		value, ok := song.Tags[f.Tag]
		if !ok || !compiled[i].MatchString(value) {
			return false
		}
	}
	return true
}

// lessByComparators applies the comparator list lexicographically; a
// missing tag sorts after a present one regardless of direction.
func lessByComparators(a, b *Song, comparators []Comparator) bool {
	for _, cmp := range comparators {
		av, aok := a.Tags[cmp.Tag]
		bv, bok := b.Tags[cmp.Tag]

		switch {
		case aok && !bok:
			return true
		case !aok && bok:
			return false
		case !aok && !bok:
			continue
		case av == bv:
			continue
		}

		if cmp.Order == "descending" {
			return av > bv
		}
		return av < bv
	}
	return a.Path < b.Path
}

func groupKey(song *Song, groupBy []string) (string, map[string]string) {
	if len(groupBy) == 0 {
		return "", nil
	}

	values := make(map[string]string, len(groupBy))
	key := ""
	for _, g := range groupBy {
		v := song.Tags[g]
		values[g] = v
		key += v + "\x00"
	}
	return key, values
}
