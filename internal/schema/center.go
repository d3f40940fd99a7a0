package schema

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/timmy/tally/internal/domain"
	"github.com/timmy/tally/internal/tabular"
)

// Center columns not shared with constituency rows.
const (
	FieldConstituencyID    = "constituency_id"
	FieldCenterNo          = "center_no"
	FieldCenter            = "center"
	FieldGender            = "gender"
	FieldLat               = "lat"
	FieldLon               = "lon"
	FieldMaleVoters        = "male_voters"
	FieldFemaleVoters      = "female_voters"
	FieldTotalInvalidVotes = "total_invalid_votes"
	FieldTotalVotesCast    = "total_votes_cast"
	FieldTurnoutPercentage = "turnout_percentage"
)

// Center genders.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderBoth   = "both"
)

var centerRequired = []string{
	FieldElection,
	FieldElectionYear,
	FieldConstituencyID,
	FieldConstituencyName,
	FieldCenterNo,
	FieldCenter,
	FieldGender,
	FieldTotalVoters,
	FieldTotalValidVotes,
	FieldTotalInvalidVotes,
	FieldTotalVotesCast,
	FieldTurnoutPercentage,
}

func participantNameField(i int) string   { return fmt.Sprintf("participant_%d_name", i) }
func participantSymbolField(i int) string { return fmt.Sprintf("participant_%d_symbol", i) }
func participantVoteField(i int) string   { return fmt.Sprintf("participant_%d_vote", i) }

// CenterSchema reads one result row per polling center.
type CenterSchema struct{}

// RecordType implements Schema.
func (s *CenterSchema) RecordType() domain.RecordType {
	return domain.RecordTypeCenter
}

// RequiredFields implements Schema.
func (s *CenterSchema) RequiredFields() []string {
	out := make([]string, len(centerRequired))
	copy(out, centerRequired)
	return out
}

// Validate implements Schema.
func (s *CenterSchema) Validate(row tabular.Row) []domain.FieldError {
	c := newChecker(row)
	c.required(centerRequired...)

	c.year(FieldElectionYear)
	c.count(FieldConstituencyID, 1)
	c.count(FieldCenterNo, 1)
	c.oneOf(FieldGender, GenderMale, GenderFemale, GenderBoth)
	c.coordinate(FieldLat, 90)
	c.coordinate(FieldLon, 180)
	c.count(FieldTotalVoters, 1)
	c.count(FieldMaleVoters, 0)
	c.count(FieldFemaleVoters, 0)
	c.count(FieldTotalValidVotes, 0)
	c.count(FieldTotalInvalidVotes, 0)
	c.count(FieldTotalVotesCast, 0)
	c.percentage(FieldTurnoutPercentage)

	participants := 0
	for i := 1; i <= MaxParticipants; i++ {
		if !row.Has(participantNameField(i)) {
			continue
		}
		participants++
		if !row.Has(participantVoteField(i)) {
			c.add(participantVoteField(i), fmt.Sprintf("%s is required for %s", participantVoteField(i), participantNameField(i)))
		} else {
			c.count(participantVoteField(i), 0)
		}
	}

	if participants == 0 {
		c.errors = append(c.errors, domain.FieldError{
			Field:   FieldParticipantDetails,
			Message: "at least 1 participant is required",
		})
	}

	return c.errors
}

// Transform implements Schema.
func (s *CenterSchema) Transform(row tabular.Row) (domain.ResultRecord, error) {
	year, err := mustCount(row, FieldElectionYear)
	if err != nil {
		return nil, err
	}
	constituencyID, err := mustCount(row, FieldConstituencyID)
	if err != nil {
		return nil, err
	}
	centerNo, err := mustCount(row, FieldCenterNo)
	if err != nil {
		return nil, err
	}

	rec := &domain.CenterResult{
		Election:          row.Get(FieldElection),
		ElectionYear:      int(year),
		ConstituencyID:    int(constituencyID),
		ConstituencyName:  row.Get(FieldConstituencyName),
		CenterNo:          int(centerNo),
		Center:            row.Get(FieldCenter),
		Gender:            strings.ToLower(row.Get(FieldGender)),
		Lat:               floatPtr(row, FieldLat),
		Lon:               floatPtr(row, FieldLon),
		TotalVoters:       countOr(row, FieldTotalVoters, 0),
		MaleVoters:        countOr(row, FieldMaleVoters, 0),
		FemaleVoters:      countOr(row, FieldFemaleVoters, 0),
		TotalValidVotes:   countOr(row, FieldTotalValidVotes, 0),
		TotalInvalidVotes: countOr(row, FieldTotalInvalidVotes, 0),
		TotalVotesCast:    countOr(row, FieldTotalVotesCast, 0),
		TurnoutPercentage: decimalOr(row, FieldTurnoutPercentage, decimal.Zero).Round(2),
	}

	for i := 1; i <= MaxParticipants; i++ {
		name := row.Get(participantNameField(i))
		if name == "" {
			continue
		}
		rec.Participants = append(rec.Participants, domain.CenterParticipant{
			Name:   name,
			Symbol: row.Get(participantSymbolField(i)),
			Vote:   countOr(row, participantVoteField(i), 0),
		})
	}

	return rec, nil
}

// BusinessKey implements Schema.
func (s *CenterSchema) BusinessKey(row tabular.Row) map[string]string {
	return businessKey(row, FieldElectionYear, FieldConstituencyID, FieldCenterNo, FieldCenter)
}

// Template implements Schema.
func (s *CenterSchema) Template() Template {
	header := append(s.RequiredFields(),
		FieldLat, FieldLon, FieldMaleVoters, FieldFemaleVoters,
		participantNameField(1), participantSymbolField(1), participantVoteField(1),
	)
	sample := []string{
		"National Parliamentary Election",
		"2024",
		"1",
		"Panchagarh-1",
		"1",
		"Govt. Primary School",
		GenderBoth,
		"3000",
		"2100",
		"50",
		"2150",
		"71.67",
		"26.3411",
		"88.5541",
		"1500",
		"1500",
		"Candidate A",
		"Boat",
		"1200",
	}
	return Template{Header: header, Sample: sample}
}
