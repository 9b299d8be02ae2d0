// Package filter evaluates structured predicates against document attributes.
//
// A Filter is an AND of per-field predicates. Backends without native
// filtering call Matches on each candidate; backends that can filter during
// retrieval consume the backend-neutral Pushdown form instead. Both paths
// must select the same documents.
package filter

import (
	"fmt"
	"sort"

	skerrors "github.com/skuseek/skuseek/internal/errors"
)

// Attributes holds a document's filterable fields.
// Numeric fields are float64, exact-match fields string, and
// multi-valued fields []string.
type Attributes map[string]any

// Predicate constrains a single attribute value.
type Predicate interface {
	// Matches reports whether the attribute value satisfies the predicate.
	Matches(value any) bool
	// validate reports whether the predicate itself is well-formed.
	validate(field string) error
	// clause converts the predicate to its backend-neutral form.
	clause(field string) Clause
}

// NumericRange matches numbers within [Min, Max]. A nil bound is unbounded.
type NumericRange struct {
	Min *float64
	Max *float64
}

// OneOf matches a string attribute contained in Values, or a []string
// attribute sharing at least one element with Values.
type OneOf struct {
	Values []string
}

// Equals matches a string attribute exactly. A []string attribute matches
// when it contains the value.
type Equals struct {
	Value string
}

// Filter is an AND of named predicates. The zero value matches everything.
type Filter struct {
	Predicates map[string]Predicate
}

// ClauseKind identifies the predicate shape of a pushdown clause.
type ClauseKind int

const (
	ClauseNumericRange ClauseKind = iota
	ClauseOneOf
	ClauseEquals
)

// Clause is the backend-neutral predicate form consumed by engines with
// native filtering. Exactly the fields for its Kind are populated.
type Clause struct {
	Field  string
	Kind   ClauseKind
	Min    *float64
	Max    *float64
	Values []string
	Value  string
}

// New creates an empty filter ready for With* calls.
func New() Filter {
	return Filter{Predicates: map[string]Predicate{}}
}

// WithRange adds a numeric range predicate on field.
func (f Filter) WithRange(field string, min, max *float64) Filter {
	f.ensure()
	f.Predicates[field] = NumericRange{Min: min, Max: max}
	return f
}

// WithOneOf adds a set-membership predicate on field.
func (f Filter) WithOneOf(field string, values ...string) Filter {
	f.ensure()
	f.Predicates[field] = OneOf{Values: values}
	return f
}

// WithEquals adds an exact-match predicate on field.
func (f Filter) WithEquals(field, value string) Filter {
	f.ensure()
	f.Predicates[field] = Equals{Value: value}
	return f
}

func (f *Filter) ensure() {
	if f.Predicates == nil {
		f.Predicates = map[string]Predicate{}
	}
}

// Empty reports whether the filter constrains nothing.
func (f Filter) Empty() bool {
	return len(f.Predicates) == 0
}

// Matches reports whether attrs satisfies every predicate.
// A document missing a filtered attribute does not match.
func (f Filter) Matches(attrs Attributes) bool {
	for field, pred := range f.Predicates {
		value, ok := attrs[field]
		if !ok {
			return false
		}
		if !pred.Matches(value) {
			return false
		}
	}
	return true
}

// Validate checks every predicate for well-formedness.
func (f Filter) Validate() error {
	for field, pred := range f.Predicates {
		if err := pred.validate(field); err != nil {
			return err
		}
	}
	return nil
}

// Pushdown converts the filter to backend-neutral clauses, sorted by field
// for deterministic query construction.
func (f Filter) Pushdown() []Clause {
	if f.Empty() {
		return nil
	}
	clauses := make([]Clause, 0, len(f.Predicates))
	for field, pred := range f.Predicates {
		clauses = append(clauses, pred.clause(field))
	}
	sort.Slice(clauses, func(i, j int) bool {
		return clauses[i].Field < clauses[j].Field
	})
	return clauses
}

// Matches implements Predicate.
func (r NumericRange) Matches(value any) bool {
	n, ok := toFloat(value)
	if !ok {
		return false
	}
	if r.Min != nil && n < *r.Min {
		return false
	}
	if r.Max != nil && n > *r.Max {
		return false
	}
	return true
}

func (r NumericRange) validate(field string) error {
	if r.Min == nil && r.Max == nil {
		return skerrors.New(skerrors.ErrCodeInvalidFilter,
			fmt.Sprintf("range on %q has no bounds", field), nil)
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return skerrors.New(skerrors.ErrCodeInvalidFilter,
			fmt.Sprintf("range on %q has min %v > max %v", field, *r.Min, *r.Max), nil)
	}
	return nil
}

func (r NumericRange) clause(field string) Clause {
	return Clause{Field: field, Kind: ClauseNumericRange, Min: r.Min, Max: r.Max}
}

// Matches implements Predicate.
func (o OneOf) Matches(value any) bool {
	switch v := value.(type) {
	case string:
		return contains(o.Values, v)
	case []string:
		for _, elem := range v {
			if contains(o.Values, elem) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (o OneOf) validate(field string) error {
	if len(o.Values) == 0 {
		return skerrors.New(skerrors.ErrCodeInvalidFilter,
			fmt.Sprintf("one-of on %q has no values", field), nil)
	}
	return nil
}

func (o OneOf) clause(field string) Clause {
	return Clause{Field: field, Kind: ClauseOneOf, Values: o.Values}
}

// Matches implements Predicate.
func (e Equals) Matches(value any) bool {
	switch v := value.(type) {
	case string:
		return v == e.Value
	case []string:
		return contains(v, e.Value)
	default:
		return false
	}
}

func (e Equals) validate(field string) error {
	if e.Value == "" {
		return skerrors.New(skerrors.ErrCodeInvalidFilter,
			fmt.Sprintf("equals on %q has empty value", field), nil)
	}
	return nil
}

func (e Equals) clause(field string) Clause {
	return Clause{Field: field, Kind: ClauseEquals, Value: e.Value}
}

// toFloat coerces common numeric representations to float64.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// Ptr returns a pointer to v, for building range bounds inline.
func Ptr(v float64) *float64 {
	return &v
}
