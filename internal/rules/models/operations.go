package models

import "sort"

// Operation names an action plugin can grant.
const (
	OperationCreate = "create"
	OperationView   = "view"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// OperationSet is a deduplicated set of granted operation names. Grants are
// strictly additive: there is no deny, a rule simply omits an operation.
type OperationSet map[string]struct{}

// NewOperationSet builds a set from the given names.
func NewOperationSet(names ...string) OperationSet {
	s := make(OperationSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts an operation name. Empty names are ignored.
func (s OperationSet) Add(name string) {
	if name == "" {
		return
	}
	s[name] = struct{}{}
}

// Has reports whether the set grants the named operation.
func (s OperationSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Union folds another set into this one.
func (s OperationSet) Union(other OperationSet) {
	for name := range other {
		s[name] = struct{}{}
	}
}

// Names returns the operations in sorted order for stable output.
func (s OperationSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of granted operations.
func (s OperationSet) Len() int { return len(s) }
