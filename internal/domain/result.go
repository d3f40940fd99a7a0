package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ResultRecord is a typed election result ready to be handed to the result store.
// ConstituencyResult and CenterResult are the only implementations.
type ResultRecord interface {
	// RecordType returns the schema the record belongs to.
	RecordType() RecordType

	// TableName returns the table the record is stored in.
	TableName() string

	// NaturalKey returns the column/value pairs that identify the record,
	// matching the table's unique index.
	NaturalKey() map[string]interface{}

	// GetID returns the primary key, empty if not yet persisted.
	GetID() string

	// SetID assigns the primary key.
	SetID(id string)

	// SetProvenance records which upload wrote the record and for whom.
	SetProvenance(uploadID, uploadedBy string)
}

// Candidate is one participant of a constituency result.
type Candidate struct {
	Candidate string          `json:"candidate"`
	Party     string          `json:"party"`
	Symbol    string          `json:"symbol"`
	Vote      int64           `json:"vote"`
	Percent   decimal.Decimal `json:"percent"`
}

// ConstituencyResult represents the aggregated result of one constituency in one election year.
type ConstituencyResult struct {
	ID                 string                         `gorm:"type:text;primaryKey" json:"id"`
	Election           string                         `gorm:"type:text;not null" json:"election"`
	ElectionYear       int                            `gorm:"not null;uniqueIndex:idx_constituency_results_key" json:"election_year"`
	ConstituencyNumber int                            `gorm:"not null;uniqueIndex:idx_constituency_results_key" json:"constituency_number"`
	ConstituencyName   string                         `gorm:"type:text;not null" json:"constituency_name"`
	TotalVoters        int64                          `json:"total_voters"`
	TotalCenters       int                            `json:"total_centers"`
	SuspendedCenters   int                            `json:"suspended_centers"`
	TotalValidVotes    int64                          `json:"total_valid_votes"`
	CancelledVotes     int64                          `json:"cancelled_votes"`
	TotalTurnout       int64                          `json:"total_turnout"`
	PercentTurnout     decimal.Decimal                `gorm:"type:decimal(6,2)" json:"percent_turnout"`
	Participants       datatypes.JSONSlice[Candidate] `json:"participant_details"`
	UploadID           string                         `gorm:"type:text;index" json:"upload_id,omitempty"`
	UploadedBy         string                         `gorm:"type:text" json:"uploaded_by,omitempty"`
	CreatedAt          time.Time                      `json:"created_at"`
	UpdatedAt          time.Time                      `json:"updated_at"`
}

// TableName returns the database table name for ConstituencyResult.
func (ConstituencyResult) TableName() string {
	return "constituency_results"
}

// RecordType implements ResultRecord.
func (*ConstituencyResult) RecordType() RecordType { return RecordTypeConstituency }

// NaturalKey implements ResultRecord.
func (r *ConstituencyResult) NaturalKey() map[string]interface{} {
	return map[string]interface{}{
		"election_year":       r.ElectionYear,
		"constituency_number": r.ConstituencyNumber,
	}
}

// GetID implements ResultRecord.
func (r *ConstituencyResult) GetID() string { return r.ID }

// SetID implements ResultRecord.
func (r *ConstituencyResult) SetID(id string) { r.ID = id }

// SetProvenance implements ResultRecord.
func (r *ConstituencyResult) SetProvenance(uploadID, uploadedBy string) {
	r.UploadID, r.UploadedBy = uploadID, uploadedBy
}

// CenterParticipant is one participant of a polling center result.
type CenterParticipant struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Vote   int64  `json:"vote"`
}

// CenterResult represents the result of one polling center.
type CenterResult struct {
	ID                string                                 `gorm:"type:text;primaryKey" json:"id"`
	Election          string                                 `gorm:"type:text;not null" json:"election"`
	ElectionYear      int                                    `gorm:"not null;uniqueIndex:idx_center_results_key" json:"election_year"`
	ConstituencyID    int                                    `gorm:"not null;uniqueIndex:idx_center_results_key" json:"constituency_id"`
	ConstituencyName  string                                 `gorm:"type:text" json:"constituency_name"`
	CenterNo          int                                    `gorm:"not null;uniqueIndex:idx_center_results_key" json:"center_no"`
	Center            string                                 `gorm:"type:text;not null" json:"center"`
	Gender            string                                 `gorm:"type:text" json:"gender"`
	Lat               *float64                               `json:"lat,omitempty"`
	Lon               *float64                               `json:"lon,omitempty"`
	TotalVoters       int64                                  `json:"total_voters"`
	MaleVoters        int64                                  `json:"male_voters"`
	FemaleVoters      int64                                  `json:"female_voters"`
	TotalValidVotes   int64                                  `json:"total_valid_votes"`
	TotalInvalidVotes int64                                  `json:"total_invalid_votes"`
	TotalVotesCast    int64                                  `json:"total_votes_cast"`
	TurnoutPercentage decimal.Decimal                        `gorm:"type:decimal(6,2)" json:"turnout_percentage"`
	Participants      datatypes.JSONSlice[CenterParticipant] `json:"participant_info"`
	UploadID          string                                 `gorm:"type:text;index" json:"upload_id,omitempty"`
	UploadedBy        string                                 `gorm:"type:text" json:"uploaded_by,omitempty"`
	CreatedAt         time.Time                              `json:"created_at"`
	UpdatedAt         time.Time                              `json:"updated_at"`
}

// TableName returns the database table name for CenterResult.
func (CenterResult) TableName() string {
	return "center_results"
}

// RecordType implements ResultRecord.
func (*CenterResult) RecordType() RecordType { return RecordTypeCenter }

// NaturalKey implements ResultRecord.
func (r *CenterResult) NaturalKey() map[string]interface{} {
	return map[string]interface{}{
		"election_year":   r.ElectionYear,
		"constituency_id": r.ConstituencyID,
		"center_no":       r.CenterNo,
	}
}

// GetID implements ResultRecord.
func (r *CenterResult) GetID() string { return r.ID }

// SetID implements ResultRecord.
func (r *CenterResult) SetID(id string) { r.ID = id }

// SetProvenance implements ResultRecord.
func (r *CenterResult) SetProvenance(uploadID, uploadedBy string) {
	r.UploadID, r.UploadedBy = uploadID, uploadedBy
}
