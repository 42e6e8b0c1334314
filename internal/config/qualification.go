package config

import (
	"fmt"
	"strings"

	"github.com/jonathanpberger/typingpool/internal/domain"
)

// QualificationTypes lists the worker attributes the marketplace can filter on.
var QualificationTypes = map[string]struct{}{
	"approval_rate":   {},
	"submission_rate": {},
	"abandoned_rate":  {},
	"return_rate":     {},
	"rejection_rate":  {},
	"hits_approved":   {},
	"adult":           {},
	"country":         {},
}

var comparators = map[string]domain.Comparator{
	">":      domain.ComparatorGreaterThan,
	">=":     domain.ComparatorGreaterThanOrEqual,
	"<":      domain.ComparatorLessThan,
	"<=":     domain.ComparatorLessThanOrEqual,
	"==":     domain.ComparatorEqual,
	"!=":     domain.ComparatorNotEqual,
	"true":   domain.ComparatorEqual,
	"exists": domain.ComparatorExists,
}

// ParseQualification parses "TYPE COMPARATOR [VALUE]", e.g. "approval_rate >= 95".
// The value defaults to 1 when omitted.
func ParseQualification(spec string) (domain.Qualification, error) {
	tokens := strings.Fields(spec)
	if len(tokens) < 2 || len(tokens) > 3 {
		return domain.Qualification{}, &domain.ArgumentError{
			Field: "qualification", Value: spec,
			Reason: fmt.Sprintf("unexpected number of qualification tokens (%d)", len(tokens)),
		}
	}
	if _, ok := QualificationTypes[tokens[0]]; !ok {
		return domain.Qualification{}, &domain.ArgumentError{
			Field: "qualification", Value: spec,
			Reason: fmt.Sprintf("unknown qualification type %q", tokens[0]),
		}
	}
	cmp, ok := comparators[tokens[1]]
	if !ok {
		return domain.Qualification{}, &domain.ArgumentError{
			Field: "qualification", Value: spec,
			Reason: fmt.Sprintf("unknown comparator %q", tokens[1]),
		}
	}

	q := domain.Qualification{Attribute: tokens[0], Comparator: cmp}
	switch {
	case len(tokens) == 3:
		q.Value = tokens[2]
	case cmp != domain.ComparatorExists:
		q.Value = "1"
	}
	return q, nil
}
