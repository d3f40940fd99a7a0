package schema

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/timmy/tally/internal/domain"
	"github.com/timmy/tally/internal/tabular"
)

// Constituency columns.
const (
	FieldElection           = "election"
	FieldElectionYear       = "election_year"
	FieldConstituencyNumber = "constituency_number"
	FieldConstituencyName   = "constituency_name"
	FieldTotalVoters        = "total_voters"
	FieldTotalCenters       = "total_centers"
	FieldSuspendedCenters   = "suspended_centers"
	FieldTotalValidVotes    = "total_valid_votes"
	FieldCancelledVotes     = "cancelled_votes"
	FieldTotalTurnout       = "total_turnout"
	FieldPercentTurnout     = "percent_turnout"
)

// minCandidates is the smallest contest a constituency result can describe.
const minCandidates = 2

var constituencyRequired = []string{
	FieldElection,
	FieldElectionYear,
	FieldConstituencyNumber,
	FieldConstituencyName,
	FieldTotalVoters,
	FieldTotalCenters,
	FieldTotalValidVotes,
	FieldCancelledVotes,
	FieldTotalTurnout,
	FieldPercentTurnout,
}

func candidateField(i int) string { return fmt.Sprintf("candidate_%d", i) }
func partyField(i int) string     { return fmt.Sprintf("party_%d", i) }
func symbolField(i int) string    { return fmt.Sprintf("symbol_%d", i) }
func voteField(i int) string      { return fmt.Sprintf("vote_%d", i) }
func percentField(i int) string   { return fmt.Sprintf("percent_%d", i) }

// ConstituencySchema reads one aggregated result row per constituency.
type ConstituencySchema struct{}

// RecordType implements Schema.
func (s *ConstituencySchema) RecordType() domain.RecordType {
	return domain.RecordTypeConstituency
}

// RequiredFields implements Schema.
func (s *ConstituencySchema) RequiredFields() []string {
	out := make([]string, len(constituencyRequired))
	copy(out, constituencyRequired)
	return out
}

// Validate implements Schema.
//
// Rules:
//   - every required field is populated
//   - election_year is within the supported range
//   - constituency_number is a positive whole number
//   - total_voters is positive; center and vote counts are non-negative
//   - percent_turnout is within [0, 100]
//   - each populated candidate slot carries a non-negative vote and, when
//     given, a percentage within [0, 100]
//   - at least two candidate slots are populated
func (s *ConstituencySchema) Validate(row tabular.Row) []domain.FieldError {
	c := newChecker(row)
	c.required(constituencyRequired...)

	c.year(FieldElectionYear)
	c.count(FieldConstituencyNumber, 1)
	c.count(FieldTotalVoters, 1)
	c.count(FieldTotalCenters, 0)
	c.count(FieldSuspendedCenters, 0)
	c.count(FieldTotalValidVotes, 0)
	c.count(FieldCancelledVotes, 0)
	c.count(FieldTotalTurnout, 0)
	c.percentage(FieldPercentTurnout)

	candidates := 0
	for i := 1; i <= MaxParticipants; i++ {
		if !row.Has(candidateField(i)) {
			continue
		}
		candidates++
		if !row.Has(voteField(i)) {
			c.add(voteField(i), fmt.Sprintf("%s is required for %s", voteField(i), candidateField(i)))
		} else {
			c.count(voteField(i), 0)
		}
		c.percentage(percentField(i))
	}

	if candidates < minCandidates {
		c.errors = append(c.errors, domain.FieldError{
			Field:   FieldParticipantDetails,
			Message: fmt.Sprintf("at least %d candidates are required, found %d", minCandidates, candidates),
		})
	}

	return c.errors
}

// Transform implements Schema.
func (s *ConstituencySchema) Transform(row tabular.Row) (domain.ResultRecord, error) {
	year, err := mustCount(row, FieldElectionYear)
	if err != nil {
		return nil, err
	}
	number, err := mustCount(row, FieldConstituencyNumber)
	if err != nil {
		return nil, err
	}

	rec := &domain.ConstituencyResult{
		Election:           row.Get(FieldElection),
		ElectionYear:       int(year),
		ConstituencyNumber: int(number),
		ConstituencyName:   row.Get(FieldConstituencyName),
		TotalVoters:        countOr(row, FieldTotalVoters, 0),
		TotalCenters:       int(countOr(row, FieldTotalCenters, 0)),
		SuspendedCenters:   int(countOr(row, FieldSuspendedCenters, 0)),
		TotalValidVotes:    countOr(row, FieldTotalValidVotes, 0),
		CancelledVotes:     countOr(row, FieldCancelledVotes, 0),
		TotalTurnout:       countOr(row, FieldTotalTurnout, 0),
		PercentTurnout:     decimalOr(row, FieldPercentTurnout, decimal.Zero).Round(2),
	}

	for i := 1; i <= MaxParticipants; i++ {
		name := row.Get(candidateField(i))
		if name == "" {
			continue
		}
		vote := countOr(row, voteField(i), 0)
		percent, ok := parseDecimal(row.Get(percentField(i)))
		if !ok {
			percent = share(vote, rec.TotalValidVotes)
		}
		rec.Participants = append(rec.Participants, domain.Candidate{
			Candidate: name,
			Party:     row.Get(partyField(i)),
			Symbol:    row.Get(symbolField(i)),
			Vote:      vote,
			Percent:   percent.Round(2),
		})
	}

	return rec, nil
}

// share returns part as a percentage of total, zero when total is zero.
func share(part, total int64) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(total))
}

// BusinessKey implements Schema.
func (s *ConstituencySchema) BusinessKey(row tabular.Row) map[string]string {
	return businessKey(row, FieldElectionYear, FieldConstituencyNumber, FieldConstituencyName)
}

// Template implements Schema.
func (s *ConstituencySchema) Template() Template {
	header := append(s.RequiredFields(), FieldSuspendedCenters)
	sample := []string{
		"National Parliamentary Election",
		"2024",
		"1",
		"Panchagarh-1",
		"250000",
		"120",
		"180000",
		"1500",
		"181500",
		"72.60",
		"0",
	}
	candidates := [][]string{
		{"Candidate A", "Party A", "Boat", "100000", "55.56"},
		{"Candidate B", "Party B", "Sheaf of Paddy", "80000", "44.44"},
	}
	for i, cand := range candidates {
		n := i + 1
		header = append(header, candidateField(n), partyField(n), symbolField(n), voteField(n), percentField(n))
		sample = append(sample, cand...)
	}
	return Template{Header: header, Sample: sample}
}
