// Package schema validates and transforms raw result rows for each record type.
package schema

import (
	"fmt"

	"github.com/timmy/tally/internal/domain"
	"github.com/timmy/tally/internal/tabular"
)

// MaxParticipants bounds the indexed participant columns scanned per row
// (candidate_1..candidate_10, participant_1_name..participant_10_name).
// Slots are independent: a blank slot is skipped and later slots are still read.
const MaxParticipants = 10

// FieldParticipantDetails tags the cross-field rule on the number of participants.
const FieldParticipantDetails = "participant_details"

// Schema is the row contract of one record type.
type Schema interface {
	// RecordType returns the record type this schema reads.
	RecordType() domain.RecordType

	// RequiredFields returns the columns every row must populate.
	RequiredFields() []string

	// Validate checks a raw row and returns one FieldError per violated rule.
	// It never panics; malformed values are reported as errors.
	Validate(row tabular.Row) []domain.FieldError

	// Transform maps a validated row into a typed result record.
	Transform(row tabular.Row) (domain.ResultRecord, error)

	// BusinessKey returns the identifying fields present on the row, even if invalid.
	BusinessKey(row tabular.Row) map[string]string

	// Template returns the upload template header and one sample row.
	Template() Template
}

// Template is the column contract and a sample row for uploads.
type Template struct {
	Header []string
	Sample []string
}

// Rows returns the sample as a single-row grid for writers.
func (t Template) Rows() [][]string {
	return [][]string{t.Sample}
}

var (
	constituency = &ConstituencySchema{}
	center       = &CenterSchema{}
)

// For returns the schema for a record type.
func For(rt domain.RecordType) (Schema, error) {
	switch rt {
	case domain.RecordTypeConstituency:
		return constituency, nil
	case domain.RecordTypeCenter:
		return center, nil
	}
	return nil, fmt.Errorf("unknown record type %q", rt)
}

func businessKey(row tabular.Row, fields ...string) map[string]string {
	key := make(map[string]string, len(fields))
	for _, f := range fields {
		if v := row.Get(f); v != "" {
			key[f] = v
		}
	}
	return key
}
