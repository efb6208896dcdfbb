package storage

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Predicate reports whether an entity matches. Predicates must not modify the entity.
type Predicate[T any] func(T) bool

// Criteria is the filter shared by the list operations of every kind.
// Empty fields match everything; set fields are combined with AND.
type Criteria struct {
	Scope        string
	Type         string
	Phases       []string
	Labels       map[string]string
	NameContains string
}

// Accessors expose the fields of a kind that Criteria can filter on.
// A nil accessor makes the matching criterion a no-op for that kind.
type Accessors[T any] struct {
	Scope  func(T) string
	Type   func(T) string
	Phase  func(T) string
	Labels func(T) map[string]string
	Name   func(T) string
}

// Compile turns criteria into a conjunctive predicate
func Compile[T any](c Criteria, acc Accessors[T]) Predicate[T] {
	var preds []Predicate[T]

	if c.Scope != "" && acc.Scope != nil {
		scope := c.Scope
		preds = append(preds, func(obj T) bool { return acc.Scope(obj) == scope })
	}
	if c.Type != "" && acc.Type != nil {
		typ := c.Type
		preds = append(preds, func(obj T) bool { return acc.Type(obj) == typ })
	}
	if len(c.Phases) > 0 && acc.Phase != nil {
		phases := mapset.NewSet[string](c.Phases...)
		preds = append(preds, func(obj T) bool { return phases.Contains(acc.Phase(obj)) })
	}
	if len(c.Labels) > 0 && acc.Labels != nil {
		want := make(map[string]string, len(c.Labels))
		for k, v := range c.Labels {
			want[k] = v
		}
		preds = append(preds, func(obj T) bool { return MatchLabels(acc.Labels(obj), want) })
	}
	if c.NameContains != "" && acc.Name != nil {
		needle := strings.ToLower(c.NameContains)
		preds = append(preds, func(obj T) bool {
			return strings.Contains(strings.ToLower(acc.Name(obj)), needle)
		})
	}

	return And(preds...)
}

// And combines predicates; nil predicates are skipped and no predicates match everything
func And[T any](preds ...Predicate[T]) Predicate[T] {
	active := make([]Predicate[T], 0, len(preds))
	for _, p := range preds {
		if p != nil {
			active = append(active, p)
		}
	}
	return func(obj T) bool {
		for _, p := range active {
			if !p(obj) {
				return false
			}
		}
		return true
	}
}

// MatchLabels reports whether every selector pair is present in labels
func MatchLabels(labels, selector map[string]string) bool {
	for k, v := range selector {
		if got, ok := labels[k]; !ok || got != v {
			return false
		}
	}
	return true
}
