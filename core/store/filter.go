package store

import (
	"fmt"
	"strings"
)

// Filter is a storage agnostic query filter. Drivers translate it into their native
// query language, the memory driver and embedded lists evaluate it with Match.
type Filter interface {
	// Match returns true if the document satisfies the filter
	Match(doc Document) bool
}

// Eq matches documents whose Field equals Value
type Eq struct {
	Field string
	Value interface{}
}

// In matches documents whose Field equals one of Values
type In struct {
	Field  string
	Values []interface{}
}

// Contains matches documents whose Field is a string containing Value, ignoring case
type Contains struct {
	Field string
	Value string
}

// And matches documents matching all filters
type And []Filter

// Or matches documents matching at least one filter
type Or []Filter

// Match implements Filter
func (f Eq) Match(doc Document) bool {
	return Equal(doc[f.Field], f.Value)
}

// Match implements Filter
func (f In) Match(doc Document) bool {
	v := doc[f.Field]
	for _, candidate := range f.Values {
		if Equal(v, candidate) {
			return true
		}
	}
	return false
}

// Match implements Filter
func (f Contains) Match(doc Document) bool {
	s, ok := doc[f.Field].(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(f.Value))
}

// Match implements Filter
func (f And) Match(doc Document) bool {
	for _, sub := range f {
		if sub != nil && !sub.Match(doc) {
			return false
		}
	}
	return true
}

// Match implements Filter. An empty Or matches nothing.
func (f Or) Match(doc Document) bool {
	for _, sub := range f {
		if sub != nil && sub.Match(doc) {
			return true
		}
	}
	return false
}

// Matches evaluates filter against doc. A nil filter matches everything.
func Matches(filter Filter, doc Document) bool {
	return filter == nil || filter.Match(doc)
}

// AndFilters combines the non-nil filters. It returns nil if there are none.
func AndFilters(filters ...Filter) Filter {
	var and And
	for _, f := range filters {
		if f != nil {
			and = append(and, f)
		}
	}
	switch len(and) {
	case 0:
		return nil
	case 1:
		return and[0]
	}
	return and
}

// Equal compares two property values. Numbers compare by value regardless of their Go
// type, everything else by its string representation.
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
