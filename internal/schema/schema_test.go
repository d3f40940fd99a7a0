package schema

import (
	"strings"
	"testing"

	"github.com/timmy/tally/internal/domain"
	"github.com/timmy/tally/internal/tabular"
)

// rowFrom zips a template-shaped header and values into a row.
func rowFrom(number int, header, values []string) tabular.Row {
	fields := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(values) {
			fields[h] = values[i]
		}
	}
	return tabular.Row{Number: number, Fields: fields}
}

func sampleRow(t *testing.T, rt domain.RecordType) (Schema, tabular.Row) {
	t.Helper()
	s, err := For(rt)
	if err != nil {
		t.Fatalf("For(%s): %v", rt, err)
	}
	tpl := s.Template()
	return s, rowFrom(1, tpl.Header, tpl.Sample)
}

func fieldsOf(errs []domain.FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func hasField(errs []domain.FieldError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestFor(t *testing.T) {
	for _, rt := range []domain.RecordType{domain.RecordTypeConstituency, domain.RecordTypeCenter} {
		s, err := For(rt)
		if err != nil {
			t.Fatalf("For(%s): %v", rt, err)
		}
		if s.RecordType() != rt {
			t.Errorf("For(%s).RecordType() = %s", rt, s.RecordType())
		}
	}
	if _, err := For("ward"); err == nil {
		t.Error("For(ward) should fail")
	}
}

func TestTemplate_SampleValidates(t *testing.T) {
	for _, rt := range []domain.RecordType{domain.RecordTypeConstituency, domain.RecordTypeCenter} {
		t.Run(string(rt), func(t *testing.T) {
			s, row := sampleRow(t, rt)
			tpl := s.Template()

			if len(tpl.Header) != len(tpl.Sample) {
				t.Fatalf("header has %d columns, sample has %d", len(tpl.Header), len(tpl.Sample))
			}

			header := make(map[string]bool, len(tpl.Header))
			for _, h := range tpl.Header {
				header[h] = true
			}
			for _, f := range s.RequiredFields() {
				if !header[f] {
					t.Errorf("template header missing required field %q", f)
				}
			}

			if errs := s.Validate(row); len(errs) != 0 {
				t.Errorf("sample row errors = %v, want none", errs)
			}
		})
	}
}

func TestConstituency_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(f map[string]string)
		wantField string
	}{
		{
			name:      "missing election",
			mutate:    func(f map[string]string) { f["election"] = "  " },
			wantField: "election",
		},
		{
			name:      "zero voters",
			mutate:    func(f map[string]string) { f["total_voters"] = "0" },
			wantField: "total_voters",
		},
		{
			name:      "negative valid votes",
			mutate:    func(f map[string]string) { f["total_valid_votes"] = "-1" },
			wantField: "total_valid_votes",
		},
		{
			name:      "non numeric centers",
			mutate:    func(f map[string]string) { f["total_centers"] = "many" },
			wantField: "total_centers",
		},
		{
			name:      "year out of range",
			mutate:    func(f map[string]string) { f["election_year"] = "1800" },
			wantField: "election_year",
		},
		{
			name:      "turnout above 100",
			mutate:    func(f map[string]string) { f["percent_turnout"] = "101" },
			wantField: "percent_turnout",
		},
		{
			name:      "candidate without vote",
			mutate:    func(f map[string]string) { f["vote_2"] = "" },
			wantField: "vote_2",
		},
		{
			name:      "negative vote",
			mutate:    func(f map[string]string) { f["vote_1"] = "-5" },
			wantField: "vote_1",
		},
		{
			name:      "single candidate",
			mutate:    func(f map[string]string) { f["candidate_2"] = "" },
			wantField: FieldParticipantDetails,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, row := sampleRow(t, domain.RecordTypeConstituency)
			tt.mutate(row.Fields)

			errs := s.Validate(row)
			if !hasField(errs, tt.wantField) {
				t.Errorf("errors %v do not include %q", fieldsOf(errs), tt.wantField)
			}
		})
	}
}

func TestConstituency_Validate_MultipleErrors(t *testing.T) {
	errs := (&ConstituencySchema{}).Validate(tabular.Row{Number: 4, Fields: map[string]string{}})

	// Every required field plus the candidate count.
	want := len(constituencyRequired) + 1
	if len(errs) != want {
		t.Fatalf("len(errs) = %d, want %d: %v", len(errs), want, fieldsOf(errs))
	}
	if errs[len(errs)-1].Field != FieldParticipantDetails {
		t.Errorf("last error field = %q, want %q", errs[len(errs)-1].Field, FieldParticipantDetails)
	}
}

func TestConstituency_Validate_NonContiguousSlots(t *testing.T) {
	s, row := sampleRow(t, domain.RecordTypeConstituency)
	// Move candidate 2 to slot 7, leaving slots 2..6 blank.
	for _, col := range []string{"candidate", "party", "symbol", "vote", "percent"} {
		row.Fields[col+"_7"] = row.Fields[col+"_2"]
		row.Fields[col+"_2"] = ""
	}

	if errs := s.Validate(row); len(errs) != 0 {
		t.Fatalf("errors = %v, want none", errs)
	}

	rec, err := s.Transform(row)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	got := rec.(*domain.ConstituencyResult)
	if len(got.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(got.Participants))
	}
	if got.Participants[1].Candidate != "Candidate B" {
		t.Errorf("second participant = %q, want Candidate B", got.Participants[1].Candidate)
	}
}

func TestConstituency_Transform(t *testing.T) {
	s, row := sampleRow(t, domain.RecordTypeConstituency)
	row.Fields["suspended_centers"] = ""
	row.Fields["total_voters"] = "250,000"
	row.Fields["percent_2"] = ""

	rec, err := s.Transform(row)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	got, ok := rec.(*domain.ConstituencyResult)
	if !ok {
		t.Fatalf("Transform returned %T", rec)
	}

	if got.ElectionYear != 2024 || got.ConstituencyNumber != 1 {
		t.Errorf("key = (%d, %d), want (2024, 1)", got.ElectionYear, got.ConstituencyNumber)
	}
	if got.SuspendedCenters != 0 {
		t.Errorf("SuspendedCenters = %d, want 0", got.SuspendedCenters)
	}
	if got.TotalVoters != 250000 {
		t.Errorf("TotalVoters = %d, want 250000", got.TotalVoters)
	}
	if got.PercentTurnout.String() != "72.6" {
		t.Errorf("PercentTurnout = %s, want 72.6", got.PercentTurnout)
	}
	if len(got.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(got.Participants))
	}
	// 80000 / 180000 computed when the column is blank.
	if p := got.Participants[1].Percent.String(); p != "44.44" {
		t.Errorf("derived percent = %s, want 44.44", p)
	}
	if got.Participants[0].Symbol != "Boat" {
		t.Errorf("symbol = %q, want Boat", got.Participants[0].Symbol)
	}
}

func TestCenter_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(f map[string]string)
		wantField string
		wantMsg   string
	}{
		{
			name:      "turnout above 100",
			mutate:    func(f map[string]string) { f["turnout_percentage"] = "150" },
			wantField: "turnout_percentage",
			wantMsg:   "between 0 and 100",
		},
		{
			name:      "unknown gender",
			mutate:    func(f map[string]string) { f["gender"] = "mixed" },
			wantField: "gender",
			wantMsg:   "male, female, both",
		},
		{
			name:      "latitude out of range",
			mutate:    func(f map[string]string) { f["lat"] = "91" },
			wantField: "lat",
		},
		{
			name:      "longitude out of range",
			mutate:    func(f map[string]string) { f["lon"] = "-180.5" },
			wantField: "lon",
		},
		{
			name:      "zero center number",
			mutate:    func(f map[string]string) { f["center_no"] = "0" },
			wantField: "center_no",
		},
		{
			name:      "negative invalid votes",
			mutate:    func(f map[string]string) { f["total_invalid_votes"] = "-2" },
			wantField: "total_invalid_votes",
		},
		{
			name:      "no participants",
			mutate:    func(f map[string]string) { f["participant_1_name"] = "" },
			wantField: FieldParticipantDetails,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, row := sampleRow(t, domain.RecordTypeCenter)
			tt.mutate(row.Fields)

			errs := s.Validate(row)
			if len(errs) != 1 {
				t.Fatalf("errors = %v, want exactly one", errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("field = %q, want %q", errs[0].Field, tt.wantField)
			}
			if tt.wantMsg != "" && !strings.Contains(errs[0].Message, tt.wantMsg) {
				t.Errorf("message = %q, want it to mention %q", errs[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestCenter_Validate_OptionalCoordinates(t *testing.T) {
	s, row := sampleRow(t, domain.RecordTypeCenter)
	delete(row.Fields, "lat")
	row.Fields["lon"] = ""

	if errs := s.Validate(row); len(errs) != 0 {
		t.Fatalf("errors = %v, want none", errs)
	}
	rec, err := s.Transform(row)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	got := rec.(*domain.CenterResult)
	if got.Lat != nil || got.Lon != nil {
		t.Errorf("coordinates = %v, %v, want nil", got.Lat, got.Lon)
	}
}

func TestCenter_Transform(t *testing.T) {
	s, row := sampleRow(t, domain.RecordTypeCenter)
	row.Fields["gender"] = "Both"
	row.Fields["participant_3_name"] = "Candidate C"
	row.Fields["participant_3_vote"] = "900"

	rec, err := s.Transform(row)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	got := rec.(*domain.CenterResult)

	if got.Gender != "both" {
		t.Errorf("Gender = %q, want both", got.Gender)
	}
	if got.Lat == nil || *got.Lat != 26.3411 {
		t.Errorf("Lat = %v, want 26.3411", got.Lat)
	}
	if len(got.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(got.Participants))
	}
	if got.Participants[1].Name != "Candidate C" || got.Participants[1].Vote != 900 {
		t.Errorf("participant 3 = %+v", got.Participants[1])
	}

	key := got.NaturalKey()
	if key["constituency_id"] != 1 || key["center_no"] != 1 || key["election_year"] != 2024 {
		t.Errorf("NaturalKey = %v", key)
	}
}

func TestBusinessKey_InvalidRow(t *testing.T) {
	row := tabular.Row{Number: 3, Fields: map[string]string{
		"election_year":       "2024",
		"constituency_number": "abc",
	}}
	key := (&ConstituencySchema{}).BusinessKey(row)
	if key["constituency_number"] != "abc" || key["election_year"] != "2024" {
		t.Errorf("BusinessKey = %v", key)
	}
	if _, ok := key["constituency_name"]; ok {
		t.Errorf("BusinessKey should omit blank fields: %v", key)
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12", 12, true},
		{" 1,200 ", 1200, true},
		{"1200.0", 1200, true},
		{"12.5", 0, false},
		{"", 0, false},
		{"NaN", 0, false},
		{"abc", 0, false},
		{"Inf", 0, false},
		{"1e19", 0, false},
		{"-1e19", 0, false},
		{"9.2e18", 9200000000000000000, true},
	}
	for _, tt := range tests {
		got, ok := parseCount(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseCount(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
