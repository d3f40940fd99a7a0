package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/timmy/tally/internal/domain"
	"gorm.io/gorm"
)

// ResultRepository stores constituency and center results, keyed by each
// record's natural key.
type ResultRepository struct {
	db *gorm.DB
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// FindByKey looks up the record sharing rec's natural key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - rec: record whose natural key is matched.
// Returns:
//   - string: ID of the existing record.
//   - bool: false if no record has the key.
//   - error: non-nil if the lookup fails.
func (r *ResultRepository) FindByKey(ctx context.Context, rec domain.ResultRecord) (string, bool, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Table(rec.TableName()).
		Where(rec.NaturalKey()).
		Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return "", false, fmt.Errorf("failed to look up %s: %w", rec.RecordType(), err)
	}
	if len(ids) == 0 {
		return "", false, nil
	}
	return ids[0], true, nil
}

// Insert creates the record and returns its ID.
func (r *ResultRepository) Insert(ctx context.Context, rec domain.ResultRecord) (string, error) {
	if rec.GetID() == "" {
		rec.SetID(uuid.NewString())
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return "", fmt.Errorf("failed to insert %s: %w", rec.RecordType(), err)
	}
	return rec.GetID(), nil
}

// UpdateByID overwrites every column of the record with the given ID,
// keeping its creation time.
func (r *ResultRepository) UpdateByID(ctx context.Context, id string, rec domain.ResultRecord) error {
	rec.SetID(id)
	res := r.db.WithContext(ctx).
		Model(rec).
		Select("*").
		Omit("id", "created_at").
		Updates(rec)
	if res.Error != nil {
		return fmt.Errorf("failed to update %s %s: %w", rec.RecordType(), id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored records of a type.
func (r *ResultRepository) Count(ctx context.Context, rt domain.RecordType) (int64, error) {
	model, err := modelFor(rt)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(model).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func modelFor(rt domain.RecordType) (interface{}, error) {
	switch rt {
	case domain.RecordTypeConstituency:
		return &domain.ConstituencyResult{}, nil
	case domain.RecordTypeCenter:
		return &domain.CenterResult{}, nil
	}
	return nil, fmt.Errorf("unknown record type %q", rt)
}
