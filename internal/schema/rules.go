package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/timmy/tally/internal/domain"
	"github.com/timmy/tally/internal/tabular"
)

var hundred = decimal.NewFromInt(100)

// checker accumulates field errors for one row.
type checker struct {
	row    tabular.Row
	errors []domain.FieldError
}

func newChecker(row tabular.Row) *checker {
	return &checker{row: row}
}

func (c *checker) add(field, message string) {
	c.errors = append(c.errors, domain.FieldError{
		Field:   field,
		Value:   c.row.Get(field),
		Message: message,
	})
}

// required reports every blank field in the list.
func (c *checker) required(fields ...string) {
	for _, f := range fields {
		if !c.row.Has(f) {
			c.add(f, fmt.Sprintf("%s is required", f))
		}
	}
}

// count checks a whole number with a lower bound; blank values are left to required.
func (c *checker) count(field string, min int64) {
	if !c.row.Has(field) {
		return
	}
	n, ok := parseCount(c.row.Get(field))
	if !ok || n < min {
		if min > 0 {
			c.add(field, fmt.Sprintf("%s must be a whole number greater than %d", field, min-1))
		} else {
			c.add(field, fmt.Sprintf("%s must be a non-negative whole number", field))
		}
	}
}

// year checks an election year inside the supported range.
func (c *checker) year(field string) {
	if !c.row.Has(field) {
		return
	}
	n, ok := parseCount(c.row.Get(field))
	if !ok || n < domain.MinElectionYear || n > domain.MaxElectionYear {
		c.add(field, fmt.Sprintf("%s must be a year between %d and %d", field, domain.MinElectionYear, domain.MaxElectionYear))
	}
}

// percentage checks a decimal inside [0, 100].
func (c *checker) percentage(field string) {
	if !c.row.Has(field) {
		return
	}
	d, ok := parseDecimal(c.row.Get(field))
	if !ok || d.IsNegative() || d.GreaterThan(hundred) {
		c.add(field, fmt.Sprintf("%s must be a number between 0 and 100", field))
	}
}

// coordinate checks an optional float inside [-limit, limit].
func (c *checker) coordinate(field string, limit float64) {
	if !c.row.Has(field) {
		return
	}
	f, ok := parseFloat(c.row.Get(field))
	if !ok || f < -limit || f > limit {
		c.add(field, fmt.Sprintf("%s must be a number between %g and %g", field, -limit, limit))
	}
}

// oneOf checks a case-insensitive enumeration.
func (c *checker) oneOf(field string, allowed ...string) {
	if !c.row.Has(field) {
		return
	}
	v := strings.ToLower(c.row.Get(field))
	for _, a := range allowed {
		if v == a {
			return
		}
	}
	c.add(field, fmt.Sprintf("%s must be one of %s", field, strings.Join(allowed, ", ")))
}

// cleanNumber strips thousand separators and surrounding space.
func cleanNumber(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}

// parseCount parses a whole number, accepting integral floats such as "1200.0".
func parseCount(s string) (int64, bool) {
	s = cleanNumber(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	// int64(f) is implementation-defined outside [-2^63, 2^63).
	if f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSuffix(cleanNumber(s), "%")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parseFloat(s string) (float64, bool) {
	s = cleanNumber(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// countOr returns the parsed whole number or def.
func countOr(row tabular.Row, field string, def int64) int64 {
	if n, ok := parseCount(row.Get(field)); ok {
		return n
	}
	return def
}

// decimalOr returns the parsed decimal or def.
func decimalOr(row tabular.Row, field string, def decimal.Decimal) decimal.Decimal {
	if d, ok := parseDecimal(row.Get(field)); ok {
		return d
	}
	return def
}

// floatPtr returns the parsed float or nil.
func floatPtr(row tabular.Row, field string) *float64 {
	if f, ok := parseFloat(row.Get(field)); ok {
		return &f
	}
	return nil
}

// mustCount parses a required whole number for Transform.
func mustCount(row tabular.Row, field string) (int64, error) {
	n, ok := parseCount(row.Get(field))
	if !ok {
		return 0, fmt.Errorf("%s: invalid number %q", field, row.Get(field))
	}
	return n, nil
}
